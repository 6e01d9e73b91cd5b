package authstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

// seedRule is the YAML shape an operator hand-writes: every Rule field
// except the two timestamps, which LoadSeed sets, and id, which is
// assigned on first load or reused by matching route on every load after.
type seedRule struct {
	Route             string `yaml:"route"`
	Algorithm         string `yaml:"algorithm"`
	Limit             int    `yaml:"limit"`
	Expiration        int    `yaml:"expiration"`
	TrackingType      string `yaml:"tracking_type"`
	CustomTrackingKey string `yaml:"custom_tracking_key"`
	Status            bool   `yaml:"status"`
	TTL               int    `yaml:"ttl"`
}

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

// LoadSeed reads a YAML rule file and upserts every entry into store,
// matching existing rows by route and reusing their id.
func LoadSeed(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file %s: %w", path, err)
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	now := time.Now()
	count := 0
	for _, s := range parsed.Rules {
		r := rule.Rule{
			Route:             s.Route,
			Algorithm:         rule.Algorithm(s.Algorithm),
			Limit:             s.Limit,
			Expiration:        s.Expiration,
			TrackingType:      rule.TrackingType(s.TrackingType),
			CustomTrackingKey: s.CustomTrackingKey,
			Status:            s.Status,
			TTL:               s.TTL,
			DateCreation:      now,
			DateModification:  now,
		}
		if err := r.Validate(); err != nil {
			return count, fmt.Errorf("seed file %s: %w", path, err)
		}

		existing, err := store.FetchByRoute(ctx, r.Route)
		if err != nil {
			return count, fmt.Errorf("seed file %s: %w", path, err)
		}
		if existing != nil {
			r.ID = existing.ID
			r.DateCreation = existing.DateCreation
		}

		if _, err := store.Upsert(ctx, r); err != nil {
			return count, fmt.Errorf("seed file %s: %w", path, err)
		}
		count++
	}

	return count, nil
}
