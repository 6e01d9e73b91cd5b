package matcher_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/AlfredDev/ratelimit-gateway/internal/matcher"
	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

func snapshotOf(routes ...string) (rule.Snapshot, map[string]uuid.UUID) {
	snap := rule.Snapshot{}
	ids := map[string]uuid.UUID{}
	for _, route := range routes {
		id := uuid.New()
		snap[id] = rule.MinimalRule{ID: id, Route: route, Algorithm: rule.FixedWindow, Limit: 1, Expiration: 1, TrackingType: rule.ByIP, Status: true}
		ids[route] = id
	}
	return snap, ids
}

func TestMatchLiteralRoute(t *testing.T) {
	snap, ids := snapshotOf("/v1/orders", "/v1/orders/export")
	m, errs := matcher.Build(snap)
	if len(errs) != 0 {
		t.Fatalf("unexpected build errors: %v", errs)
	}

	got, ok := m.Match("/v1/orders")
	if !ok || got != ids["/v1/orders"].String() {
		t.Fatalf("Match(/v1/orders) = (%s, %v), want (%s, true)", got, ok, ids["/v1/orders"])
	}

	if _, ok := m.Match("/v1/unknown"); ok {
		t.Fatal("expected miss for unconfigured path")
	}
}

func TestMatchParameterizedRoute(t *testing.T) {
	snap, ids := snapshotOf("/v1/orders/{id}")
	m, errs := matcher.Build(snap)
	if len(errs) != 0 {
		t.Fatalf("unexpected build errors: %v", errs)
	}

	got, ok := m.Match("/v1/orders/42")
	if !ok || got != ids["/v1/orders/{id}"].String() {
		t.Fatalf("Match(/v1/orders/42) = (%s, %v), want (%s, true)", got, ok, ids["/v1/orders/{id}"])
	}

	if _, ok := m.Match("/v1/orders/42/extra"); ok {
		t.Fatal("expected miss for path with extra segment")
	}
}

func TestLiteralRouteBeatsParameterizedRoute(t *testing.T) {
	snap, ids := snapshotOf("/v1/orders/{id}", "/v1/orders/export")
	m, errs := matcher.Build(snap)
	if len(errs) != 0 {
		t.Fatalf("unexpected build errors: %v", errs)
	}

	got, ok := m.Match("/v1/orders/export")
	if !ok || got != ids["/v1/orders/export"].String() {
		t.Fatalf("literal route did not win: got %s, want %s", got, ids["/v1/orders/export"])
	}
}

func TestMoreSpecificParameterizedRouteWinsOverLessSpecific(t *testing.T) {
	snap, ids := snapshotOf("/v1/{resource}/{id}", "/v1/orders/{id}")
	m, errs := matcher.Build(snap)
	if len(errs) != 0 {
		t.Fatalf("unexpected build errors: %v", errs)
	}

	got, ok := m.Match("/v1/orders/42")
	if !ok || got != ids["/v1/orders/{id}"].String() {
		t.Fatalf("Match = (%s, %v), want the more specific route %s", got, ok, ids["/v1/orders/{id}"])
	}
}

func TestBuildSkipsMalformedAndDuplicateRoutesWithoutFailingOthers(t *testing.T) {
	snap, ids := snapshotOf("/v1/orders")
	badID := uuid.New()
	snap[badID] = rule.MinimalRule{ID: badID, Route: "v1/missing-leading-slash", Algorithm: rule.FixedWindow, Limit: 1, Expiration: 1, TrackingType: rule.ByIP}
	dupID := uuid.New()
	snap[dupID] = rule.MinimalRule{ID: dupID, Route: "/v1/orders", Algorithm: rule.FixedWindow, Limit: 1, Expiration: 1, TrackingType: rule.ByIP}

	m, errs := matcher.Build(snap)
	if len(errs) != 2 {
		t.Fatalf("expected 2 build errors (malformed + duplicate), got %d: %v", len(errs), errs)
	}

	got, ok := m.Match("/v1/orders")
	if !ok || got != ids["/v1/orders"].String() {
		t.Fatalf("surviving route broken by sibling errors: got (%s, %v)", got, ok)
	}
}
