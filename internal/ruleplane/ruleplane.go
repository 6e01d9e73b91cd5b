// Package ruleplane holds the gateway-side half of the rule plane: it
// fetches the RuleSnapshot from the counter store, builds a Matcher,
// and swaps it in whenever "rl_update" fires on the pub/sub channel —
// without blocking readers and without tearing.
package ruleplane

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/ratelimit-gateway/internal/matcher"
	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

// SnapshotKey is the well-known counter-store key holding the full
// RuleSnapshot document.
const SnapshotKey = "rules"

// UpdateChannel is the pub/sub channel the Watcher publishes "update" on.
const UpdateChannel = "rl_update"

// Plane owns the atomically-swapped Matcher every request task reads.
// Readers take the pointer under a read lock, copy it, and release —
// the lookup itself runs on the detached copy, so the lock is only
// ever held for the pointer copy, never for the lookup itself.
type Plane struct {
	client redis.Cmdable
	logger zerolog.Logger

	mu      sync.RWMutex
	current *matcher.Matcher
}

// New creates a Plane. Call Bootstrap before serving traffic and Run
// in a background goroutine to keep it in sync thereafter.
func New(client redis.Cmdable, logger zerolog.Logger) *Plane {
	return &Plane{client: client, logger: logger}
}

// Current returns the live Matcher. Safe for concurrent use by every
// request goroutine.
func (p *Plane) Current() *matcher.Matcher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Bootstrap fetches the initial snapshot and builds the first Matcher.
// A failure here is fatal — the gateway has no rules to enforce and
// should not start serving traffic.
func (p *Plane) Bootstrap(ctx context.Context) error {
	return p.rebuild(ctx)
}

// Run subscribes to rl_update and rebuilds the Matcher on every
// notification until ctx is cancelled. On a lost subscription it
// auto-resubscribes with backoff; the stale Matcher keeps serving
// traffic during the gap rather than failing requests outright.
func (p *Plane) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		sub := p.client.Subscribe(ctx, UpdateChannel)
		ch := sub.Channel()

		if _, err := sub.Receive(ctx); err != nil {
			p.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("rule plane subscribe failed")
			sub.Close()
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = time.Second

		p.logger.Info().Str("channel", UpdateChannel).Msg("rule plane subscribed")

		for msg := range ch {
			_ = msg // payload is always the literal "update"; the fetch is what matters
			if err := p.rebuild(ctx); err != nil {
				p.logger.Error().Err(err).Msg("rule plane rebuild failed — serving stale matcher")
				continue
			}
			p.logger.Info().Msg("rule plane matcher rebuilt")
		}

		sub.Close()
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn().Msg("rule plane subscription lost — resubscribing")
	}
}

func (p *Plane) rebuild(ctx context.Context) error {
	snapshot, err := p.fetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	next, buildErrs := matcher.Build(snapshot)
	for _, e := range buildErrs {
		p.logger.Warn().Err(e).Msg("skipping rule with matcher build failure")
	}

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	return nil
}

// fetchSnapshot performs the single JSON.GET producing the full rule map.
func (p *Plane) fetchSnapshot(ctx context.Context) (rule.Snapshot, error) {
	res, err := p.client.Do(ctx, "JSON.GET", SnapshotKey).Result()
	if err != nil {
		if err == redis.Nil {
			return rule.Snapshot{}, nil
		}
		return nil, err
	}

	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected JSON.GET reply type %T", res)
	}

	var snapshot rule.Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
