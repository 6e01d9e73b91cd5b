package authstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AlfredDev/ratelimit-gateway/internal/authstore"
	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

type fakeStore struct {
	byRoute map[string]rule.Rule
}

func newFakeStore() *fakeStore {
	return &fakeStore{byRoute: map[string]rule.Rule{}}
}

func (f *fakeStore) FetchModifiedSince(ctx context.Context, since time.Time) ([]rule.Rule, error) {
	panic("not used by seed loader")
}

func (f *fakeStore) FetchByRoute(ctx context.Context, route string) (*rule.Rule, error) {
	r, ok := f.byRoute[route]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (f *fakeStore) Upsert(ctx context.Context, r rule.Rule) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.byRoute[r.Route] = r
	return r.ID, nil
}

const seedYAML = `
rules:
  - route: /v1/orders
    algorithm: token-bucket
    limit: 10
    expiration: 60
    tracking_type: by-ip
    status: true
  - route: /v1/webhooks
    algorithm: fixed-window
    limit: 5
    expiration: 30
    tracking_type: by-header
    custom_tracking_key: x-api-key
    status: true
`

func writeSeedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoadSeedUpsertsEveryRule(t *testing.T) {
	store := newFakeStore()
	path := writeSeedFile(t)

	n, err := authstore.LoadSeed(context.Background(), store, path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d rules, want 2", n)
	}
	if _, ok := store.byRoute["/v1/orders"]; !ok {
		t.Fatal("expected /v1/orders to be upserted")
	}
	if _, ok := store.byRoute["/v1/webhooks"]; !ok {
		t.Fatal("expected /v1/webhooks to be upserted")
	}
}

func TestLoadSeedReusesExistingIDForSameRoute(t *testing.T) {
	store := newFakeStore()
	existingID := uuid.New()
	store.byRoute["/v1/orders"] = rule.Rule{ID: existingID, Route: "/v1/orders"}

	path := writeSeedFile(t)
	if _, err := authstore.LoadSeed(context.Background(), store, path); err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}

	if got := store.byRoute["/v1/orders"].ID; got != existingID {
		t.Fatalf("id = %s, want reused id %s", got, existingID)
	}
}

func TestLoadSeedRejectsInvalidRule(t *testing.T) {
	store := newFakeStore()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	bad := "rules:\n  - route: /v1/broken\n    algorithm: fixed-window\n    limit: 0\n    expiration: 10\n    tracking_type: by-ip\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if _, err := authstore.LoadSeed(context.Background(), store, path); err == nil {
		t.Fatal("expected validation error for limit=0")
	}
}
