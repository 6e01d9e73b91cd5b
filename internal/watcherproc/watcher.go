// Package watcherproc implements the Watcher half of the rule plane:
// it polls the authoritative store for changed rules, writes them into
// the counter store's snapshot document, and publishes "update" so
// every gateway instance rebuilds its Matcher.
package watcherproc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/ratelimit-gateway/internal/authstore"
	"github.com/AlfredDev/ratelimit-gateway/internal/ruleplane"
)

// publishScript ensures the snapshot document exists, writes each
// changed rule at its own path, then publishes the literal "update"
// notification — all inside one script. Running it as one script means
// no gateway ever observes a half-written snapshot paired with a stale
// notification, or vice versa.
var publishScript = redis.NewScript(`
redis.call('JSON.SET', KEYS[1], '$', '{}', 'NX')
for i = 1, #ARGV, 2 do
	redis.call('JSON.SET', KEYS[1], '$.' .. ARGV[i], ARGV[i+1])
end
redis.call('PUBLISH', KEYS[2], 'update')
return #ARGV / 2
`)

// Watcher polls store on Interval and pushes changed rules into client.
type Watcher struct {
	store    authstore.Store
	client   redis.Cmdable
	logger   zerolog.Logger
	interval time.Duration

	cursor time.Time
}

// New creates a Watcher that will begin polling for rules modified at
// or after since (typically time.Time{} on a cold start, or the last
// known cursor on a warm restart).
func New(store authstore.Store, client redis.Cmdable, logger zerolog.Logger, interval time.Duration, since time.Time) *Watcher {
	return &Watcher{store: store, client: client, logger: logger, interval: interval, cursor: since}
}

// Run polls until ctx is cancelled, sleeping Interval between rounds.
func (w *Watcher) Run(ctx context.Context) {
	if err := w.poll(ctx); err != nil {
		w.logger.Error().Err(err).Msg("watcher poll failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				w.logger.Error().Err(err).Msg("watcher poll failed")
			}
		}
	}
}

// poll fetches everything modified since the last cursor, publishes it,
// and advances the cursor past the newest row seen — so a row is never
// re-fetched on the next round.
func (w *Watcher) poll(ctx context.Context) error {
	rules, err := w.store.FetchModifiedSince(ctx, w.cursor)
	if err != nil {
		return fmt.Errorf("fetch modified rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	args := make([]any, 0, len(rules)*2)
	newest := w.cursor
	for _, r := range rules {
		payload, err := json.Marshal(r.Minimal())
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		args = append(args, r.ID.String(), string(payload))
		if r.DateModification.After(newest) {
			newest = r.DateModification
		}
	}

	keys := []string{ruleplane.SnapshotKey, ruleplane.UpdateChannel}
	if err := publishScript.Run(ctx, w.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("publish snapshot update: %w", err)
	}

	w.cursor = newest.Add(time.Microsecond)
	w.logger.Info().Int("rule_count", len(rules)).Time("cursor", w.cursor).Msg("watcher published rule update")
	return nil
}
