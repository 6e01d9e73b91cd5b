// Package rule defines the configuration unit the gateway enforces
// against: the full Rule as the authoritative store holds it, and the
// MinimalRule projection cached in the counter store and read on every
// request.
package rule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Algorithm identifies one of the five limiter scripts.
type Algorithm string

const (
	FixedWindow          Algorithm = "fixed-window"
	SlidingWindowLog     Algorithm = "sliding-window-log"
	SlidingWindowCounter Algorithm = "sliding-window-counter"
	TokenBucket          Algorithm = "token-bucket"
	LeakyBucket          Algorithm = "leaky-bucket"
)

// Code returns the short code used in CounterKey (fw|swl|swc|tb|lb).
func (a Algorithm) Code() string {
	switch a {
	case FixedWindow:
		return "fw"
	case SlidingWindowLog:
		return "swl"
	case SlidingWindowCounter:
		return "swc"
	case TokenBucket:
		return "tb"
	case LeakyBucket:
		return "lb"
	default:
		return ""
	}
}

// Valid reports whether a is one of the five known algorithms.
func (a Algorithm) Valid() bool {
	return a.Code() != ""
}

// TrackingType identifies how the caller's tracking key is derived.
type TrackingType string

const (
	ByIP     TrackingType = "by-ip"
	ByHeader TrackingType = "by-header"
)

func (t TrackingType) Valid() bool {
	return t == ByIP || t == ByHeader
}

// Rule is the unit of configuration held by the authoritative store.
type Rule struct {
	ID                uuid.UUID    `json:"id"`
	Route             string       `json:"route"`
	Algorithm         Algorithm    `json:"algorithm"`
	Limit             int          `json:"limit"`
	Expiration        int          `json:"expiration"`
	TrackingType      TrackingType `json:"tracking_type"`
	CustomTrackingKey string       `json:"custom_tracking_key,omitempty"`
	Status            bool         `json:"status"`
	TTL               int          `json:"ttl"`
	DateCreation      time.Time    `json:"date_creation"`
	DateModification  time.Time    `json:"date_modification"`
}

// Minimal projects a Rule down to the fields the gateway needs at
// request time — everything except the timestamps.
func (r Rule) Minimal() MinimalRule {
	return MinimalRule{
		ID:                r.ID,
		Route:             r.Route,
		Algorithm:         r.Algorithm,
		Limit:             r.Limit,
		Expiration:        r.Expiration,
		TrackingType:      r.TrackingType,
		CustomTrackingKey: r.CustomTrackingKey,
		Status:            r.Status,
		TTL:               r.TTL,
	}
}

// Validate enforces the invariants every rule must hold before it can
// be published to the counter store:
//   - tracking_type = by-header ⇒ custom_tracking_key present and non-empty
//   - limit and expiration are positive
//   - algorithm and tracking_type are known values
func (r Rule) Validate() error {
	if r.Route == "" {
		return fmt.Errorf("rule %s: route must not be empty", r.ID)
	}
	if !r.Algorithm.Valid() {
		return fmt.Errorf("rule %s: unknown algorithm %q", r.ID, r.Algorithm)
	}
	if !r.TrackingType.Valid() {
		return fmt.Errorf("rule %s: unknown tracking_type %q", r.ID, r.TrackingType)
	}
	if r.TrackingType == ByHeader && r.CustomTrackingKey == "" {
		return fmt.Errorf("rule %s: custom_tracking_key required when tracking_type=by-header", r.ID)
	}
	if r.Limit <= 0 {
		return fmt.Errorf("rule %s: limit must be positive, got %d", r.ID, r.Limit)
	}
	if r.Expiration <= 0 {
		return fmt.Errorf("rule %s: expiration must be positive, got %d", r.ID, r.Expiration)
	}
	return nil
}

// MinimalRule is the projection stored in the counter store at
// rules.$.{id} and consumed by the gateway request path.
type MinimalRule struct {
	ID                uuid.UUID    `json:"id"`
	Route             string       `json:"route"`
	Algorithm         Algorithm    `json:"algorithm"`
	Limit             int          `json:"limit"`
	Expiration        int          `json:"expiration"`
	TrackingType      TrackingType `json:"tracking_type"`
	CustomTrackingKey string       `json:"custom_tracking_key,omitempty"`
	Status            bool         `json:"status"`
	TTL               int          `json:"ttl"`
}

// Snapshot is the full rule_id → MinimalRule map held as the single
// JSON document at counter-store key "rules".
type Snapshot map[uuid.UUID]MinimalRule
