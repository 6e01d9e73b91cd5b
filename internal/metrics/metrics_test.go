package metrics_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/AlfredDev/ratelimit-gateway/internal/metrics"
)

func TestRecordAllowedIncrementsTotalAndAllowedOnly(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	rec.Record(metrics.Outcome{
		RuleID: "rule-1", Route: "/v1/orders", Algorithm: "token-bucket",
		TrackingType: "by-ip", Status: http.StatusOK,
	})

	expected := `
		# HELP rate_limit_requests_allowed_total Requests the gateway allowed through.
		# TYPE rate_limit_requests_allowed_total counter
		rate_limit_requests_allowed_total{algorithm="token-bucket",http_status="200",route="/v1/orders",rule_id="rule-1",tracking_type="by-ip"} 1
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "rate_limit_requests_allowed_total"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
		# HELP rate_limit_requests_total Total rate-limited requests classified by the gateway.
		# TYPE rate_limit_requests_total counter
		rate_limit_requests_total{algorithm="token-bucket",http_status="200",route="/v1/orders",rule_id="rule-1",tracking_type="by-ip"} 1
	`), "rate_limit_requests_total"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
		# HELP rate_limit_requests_rejected_total Requests the gateway rejected with HTTP 429.
		# TYPE rate_limit_requests_rejected_total counter
	`), "rate_limit_requests_rejected_total"); err != nil {
		t.Fatal(err)
	}
}

func TestRecordErrorStatusCountsOnlyTowardTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	rec.Record(metrics.Outcome{
		RuleID: "rule-1", Route: "/v1/orders", Algorithm: "token-bucket",
		TrackingType: "by-ip", Status: http.StatusInternalServerError,
	})

	expected := `
		# HELP rate_limit_requests_total Total rate-limited requests classified by the gateway.
		# TYPE rate_limit_requests_total counter
		rate_limit_requests_total{algorithm="token-bucket",http_status="500",route="/v1/orders",rule_id="rule-1",tracking_type="by-ip"} 1
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "rate_limit_requests_total"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
		# HELP rate_limit_requests_allowed_total Requests the gateway allowed through.
		# TYPE rate_limit_requests_allowed_total counter
	`), "rate_limit_requests_allowed_total"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
		# HELP rate_limit_requests_rejected_total Requests the gateway rejected with HTTP 429.
		# TYPE rate_limit_requests_rejected_total counter
	`), "rate_limit_requests_rejected_total"); err != nil {
		t.Fatal(err)
	}
}

func TestRecordRejectedIncrementsTotalAndRejectedOnly(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	rec.Record(metrics.Outcome{
		RuleID: "rule-1", Route: "/v1/orders", Algorithm: "token-bucket",
		TrackingType: "by-ip", Status: http.StatusTooManyRequests,
	})

	expected := `
		# HELP rate_limit_requests_rejected_total Requests the gateway rejected with HTTP 429.
		# TYPE rate_limit_requests_rejected_total counter
		rate_limit_requests_rejected_total{algorithm="token-bucket",http_status="429",route="/v1/orders",rule_id="rule-1",tracking_type="by-ip"} 1
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "rate_limit_requests_rejected_total"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
		# HELP rate_limit_requests_total Total rate-limited requests classified by the gateway.
		# TYPE rate_limit_requests_total counter
		rate_limit_requests_total{algorithm="token-bucket",http_status="429",route="/v1/orders",rule_id="rule-1",tracking_type="by-ip"} 1
	`), "rate_limit_requests_total"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.GatherAndCompare(reg, strings.NewReader(`
		# HELP rate_limit_requests_allowed_total Requests the gateway allowed through.
		# TYPE rate_limit_requests_allowed_total counter
	`), "rate_limit_requests_allowed_total"); err != nil {
		t.Fatal(err)
	}
}
