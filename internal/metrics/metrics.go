// Package metrics exposes three monotone counters — total, allowed,
// rejected requests — each tagged by
// {rule_id, route, algorithm, tracking_type, http_status}, so an
// operator can break down enforcement by rule without scraping logs.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder emits the three counters required by the gateway request
// path on every terminal outcome, including error exits.
type Recorder struct {
	total    *prometheus.CounterVec
	allowed  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

var labelNames = []string{"rule_id", "route", "algorithm", "tracking_type", "http_status"}

// NewRecorder registers the three counter families against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total rate-limited requests classified by the gateway.",
		}, labelNames),
		allowed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_requests_allowed_total",
			Help: "Requests the gateway allowed through.",
		}, labelNames),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_requests_rejected_total",
			Help: "Requests the gateway rejected with HTTP 429.",
		}, labelNames),
	}
}

// Outcome is one terminal request classification dimension set.
type Outcome struct {
	RuleID       string
	Route        string
	Algorithm    string
	TrackingType string
	Status       int
}

// Record always increments total, plus rejected on a 429 or allowed on
// a true 200 decision. A 400/500 terminal outcome (bad tracking key,
// counter store error) is neither an allow nor a reject, so it only
// counts toward total.
func (rec *Recorder) Record(o Outcome) {
	labels := prometheus.Labels{
		"rule_id":       o.RuleID,
		"route":         o.Route,
		"algorithm":     o.Algorithm,
		"tracking_type": o.TrackingType,
		"http_status":   strconv.Itoa(o.Status),
	}
	rec.total.With(labels).Inc()
	switch o.Status {
	case http.StatusTooManyRequests:
		rec.rejected.With(labels).Inc()
	case http.StatusOK:
		rec.allowed.With(labels).Inc()
	}
}
