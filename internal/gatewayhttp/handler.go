// Package gatewayhttp implements the gateway's request path: the
// per-request pipeline that matches a route, fetches its rule,
// extracts a tracking key, invokes the matching limiter algorithm, and
// writes the HTTP response.
package gatewayhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/ratelimit-gateway/internal/limiter"
	"github.com/AlfredDev/ratelimit-gateway/internal/metrics"
	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
	"github.com/AlfredDev/ratelimit-gateway/internal/ruleplane"
)

// Handler is the terminal http.Handler for every request the gateway
// receives: it IS the decision engine, not a pass-through middleware.
type Handler struct {
	plane   *ruleplane.Plane
	client  redis.Cmdable
	engine  *limiter.Engine
	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// New builds the gateway request-path handler.
func New(plane *ruleplane.Plane, client redis.Cmdable, engine *limiter.Engine, rec *metrics.Recorder, logger zerolog.Logger) *Handler {
	return &Handler{plane: plane, client: client, engine: engine, metrics: rec, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := h.plane.Current().Match(r.URL.Path)
	if !ok {
		h.record(metrics.Outcome{RuleID: "", Route: r.URL.Path, Algorithm: "", TrackingType: "", Status: http.StatusOK})
		writeBody(w, http.StatusOK, "no matching rule")
		return
	}

	mr, err := h.fetchRule(r.Context(), ruleID)
	if err != nil {
		h.logger.Error().Err(err).Str("rule_id", ruleID).Msg("counter store error fetching rule")
		h.record(metrics.Outcome{RuleID: ruleID, Route: r.URL.Path, Status: http.StatusInternalServerError})
		writeBody(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !mr.Status {
		h.record(metrics.Outcome{RuleID: ruleID, Route: mr.Route, Algorithm: string(mr.Algorithm), TrackingType: string(mr.TrackingType), Status: http.StatusOK})
		writeBody(w, http.StatusOK, "rate limit not exceeded")
		return
	}

	trackingKey, err := extractTrackingKey(r, string(mr.TrackingType), mr.CustomTrackingKey)
	if err != nil {
		status := http.StatusBadRequest
		h.logger.Warn().Err(err).Str("rule_id", ruleID).Msg("tracking key extraction failed")
		h.record(metrics.Outcome{RuleID: ruleID, Route: mr.Route, Algorithm: string(mr.Algorithm), TrackingType: string(mr.TrackingType), Status: status})
		writeBody(w, status, err.Error())
		return
	}

	decision, err := h.engine.Decide(r.Context(), mr, trackingKey)
	if err != nil {
		wrapped := &CounterStoreError{Op: "algorithm invocation", Err: err}
		h.logger.Error().Err(wrapped).Str("rule_id", ruleID).Msg("counter store error invoking limiter")
		h.record(metrics.Outcome{RuleID: ruleID, Route: mr.Route, Algorithm: string(mr.Algorithm), TrackingType: string(mr.TrackingType), Status: http.StatusInternalServerError})
		writeBody(w, http.StatusInternalServerError, wrapped.Error())
		return
	}

	w.Header().Set("limit", strconv.Itoa(decision.Limit))
	w.Header().Set("remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("reset", strconv.Itoa(decision.Reset))
	w.Header().Set("policy", mr.Algorithm.Code())

	status := http.StatusOK
	body := "rate limit not exceeded"
	if !decision.Allowed {
		status = http.StatusTooManyRequests
		body = "Rate limit exceeded!"
	}

	h.record(metrics.Outcome{RuleID: ruleID, Route: mr.Route, Algorithm: string(mr.Algorithm), TrackingType: string(mr.TrackingType), Status: status})
	writeBody(w, status, body)
}

func (h *Handler) record(o metrics.Outcome) {
	if h.metrics != nil {
		h.metrics.Record(o)
	}
}

// fetchRule performs the single JSON.GET rules $.{rule_id} lookup.
// RedisJSON path queries reply with a JSON array of matches.
func (h *Handler) fetchRule(ctx context.Context, ruleID string) (rule.MinimalRule, error) {
	path := fmt.Sprintf("$.%s", ruleID)
	res, err := h.client.Do(ctx, "JSON.GET", ruleplane.SnapshotKey, path).Result()
	if err != nil {
		return rule.MinimalRule{}, &CounterStoreError{Op: "rule fetch", Err: err}
	}

	raw, ok := res.(string)
	if !ok {
		return rule.MinimalRule{}, &CounterStoreError{Op: "rule fetch", Err: fmt.Errorf("unexpected reply type %T", res)}
	}

	var matches []rule.MinimalRule
	if err := json.Unmarshal([]byte(raw), &matches); err != nil {
		return rule.MinimalRule{}, &CounterStoreError{Op: "rule fetch", Err: fmt.Errorf("decode rule: %w", err)}
	}
	if len(matches) == 0 {
		return rule.MinimalRule{}, &CounterStoreError{Op: "rule fetch", Err: fmt.Errorf("rule %s absent from snapshot", ruleID)}
	}

	return matches[0], nil
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
