// Package redis wraps the go-redis client with configuration and health
// checking for the cohort cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"kanon/internal/platform/config"
)

// Client carries the shared go-redis connection.
type Client struct {
	*redis.Client
}

// New dials Redis from configuration and verifies the connection.
// A nil client is returned when no URL is configured; callers fall back to
// in-process caches.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
