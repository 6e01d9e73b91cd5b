// Package limiter executes the five atomic rate-limit algorithms
// against the counter store, each as a single Lua script invoked by
// SHA-1.
package limiter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

// Decision is the (limit, remaining, reset, decision) four-tuple every
// algorithm returns.
type Decision struct {
	Limit     int
	Remaining int
	Reset     int
	Allowed   bool
}

// Engine dispatches to the algorithm script matching a rule and owns
// the per-algorithm key namespacing that keeps each algorithm's counters
// from colliding with another algorithm's for the same rule and caller.
type Engine struct {
	client redis.Cmdable
	table  map[rule.Algorithm]*redis.Script
}

// NewEngine builds the dense dispatch table used to route a rule's
// configured algorithm to its script without a type switch per call.
func NewEngine(client redis.Cmdable) *Engine {
	return &Engine{
		client: client,
		table: map[rule.Algorithm]*redis.Script{
			rule.FixedWindow:          fixedWindowScript,
			rule.SlidingWindowLog:     slidingWindowLogScript,
			rule.SlidingWindowCounter: slidingWindowCounterScript,
			rule.TokenBucket:          tokenBucketScript,
			rule.LeakyBucket:          leakyBucketScript,
		},
	}
}

// Preload uploads every script once so later calls hit EVALSHA rather
// than re-sending the script body on every invocation.
func (e *Engine) Preload(ctx context.Context) error {
	for algo, script := range e.table {
		if err := script.Load(ctx, e.client).Err(); err != nil {
			return fmt.Errorf("preload script for %s: %w", algo, err)
		}
	}
	return nil
}

// CounterKey builds the composite key {algorithm_code}:{rule_id}:{tracking_key}
// that the algorithm's script owns exclusively.
func CounterKey(algo rule.Algorithm, ruleID uuid.UUID, trackingKey string) string {
	return fmt.Sprintf("%s:%s:%s", algo.Code(), ruleID.String(), trackingKey)
}

// Decide invokes the algorithm matching r against the CounterKey for
// trackingKey. Sliding Window Log additionally needs a sibling key
// (":ss"/":counter") and Sliding Window Counter / Token Bucket / Leaky
// Bucket each need exactly one hash key — both shapes are handled here
// since KEYS is built per-algorithm.
func (e *Engine) Decide(ctx context.Context, r rule.MinimalRule, trackingKey string) (Decision, error) {
	script, ok := e.table[r.Algorithm]
	if !ok {
		return Decision{}, fmt.Errorf("no script registered for algorithm %q", r.Algorithm)
	}

	base := CounterKey(r.Algorithm, r.ID, trackingKey)
	keys := []string{base}
	if r.Algorithm == rule.SlidingWindowLog {
		keys = []string{base + ":ss", base + ":counter"}
	}

	res, err := script.Run(ctx, e.client, keys, r.Limit, r.Expiration).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("counter store script error: %w", err)
	}
	if len(res) != 4 {
		return Decision{}, fmt.Errorf("counter store script returned %d values, want 4", len(res))
	}

	limit, err1 := toInt(res[0])
	remaining, err2 := toInt(res[1])
	reset, err3 := toInt(res[2])
	decision, err4 := toInt(res[3])
	if err := firstErr(err1, err2, err3, err4); err != nil {
		return Decision{}, fmt.Errorf("counter store script returned malformed values: %w", err)
	}

	return Decision{
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
		Allowed:   decision == 1,
	}, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
