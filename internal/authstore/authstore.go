// Package authstore is the Go-side contract for the authoritative rule
// store — operators author and edit rules here, not in the counter
// store. Only the Watcher talks to it; the gateway never does.
package authstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

// Store is the contract the Watcher uses: it polls "fetch rules
// modified at or after timestamp T" and "fetch a single rule by route",
// and the seed loader writes through Upsert.
type Store interface {
	// FetchModifiedSince returns every rule whose date_modification is
	// >= since, ordered by date_modification ascending.
	FetchModifiedSince(ctx context.Context, since time.Time) ([]rule.Rule, error)

	// FetchByRoute returns the rule with the given route, if any. Used
	// by the seed loader to reuse an existing id for a route instead of
	// minting a new one.
	FetchByRoute(ctx context.Context, route string) (*rule.Rule, error)

	// Upsert creates or updates a rule, matching existing rows by route
	// and reusing their id so a re-applied seed file never mints
	// duplicate rules for the same route.
	Upsert(ctx context.Context, r rule.Rule) (uuid.UUID, error)
}
