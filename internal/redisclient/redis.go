// Package redisclient constructs the shared go-redis client used as
// both the counter store for limiter decisions and the transport for
// rule-plane pub/sub.
package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/AlfredDev/ratelimit-gateway/internal/config"
)

// Client wraps *redis.Client so callers outside this package depend on
// redis.Cmdable rather than the concrete type.
type Client struct {
	c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{c: r}, nil
}

// Cmdable exposes the underlying client as redis.Cmdable, the interface
// every other package (limiter, ruleplane, gatewayhttp, watcherproc)
// depends on.
func (r *Client) Cmdable() redis.Cmdable {
	return r.c
}

// Ping verifies connectivity within the given timeout.
func (r *Client) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Client) Close() error {
	return r.c.Close()
}
