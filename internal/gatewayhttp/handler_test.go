package gatewayhttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/ratelimit-gateway/internal/ruleplane"
)

// emptySnapshotClient answers every JSON.GET with redis.Nil, the same
// reply the real counter store gives for an absent key — enough to let
// ruleplane.Plane.Bootstrap build an empty Matcher without a live Redis.
type emptySnapshotClient struct {
	redis.Cmdable
}

func (emptySnapshotClient) Do(ctx context.Context, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx, args...)
	cmd.SetErr(redis.Nil)
	return cmd
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	log := zerolog.New(io.Discard)
	plane := ruleplane.New(emptySnapshotClient{}, log)
	if err := plane.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return New(plane, emptySnapshotClient{}, nil, nil, log)
}

func TestServeHTTPNoMatchingRulePassesThrough(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/unconfigured/path", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (pass-through on no match)", rec.Code)
	}
	if rec.Body.String() != "no matching rule" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
