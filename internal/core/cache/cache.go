// Package cache defines the key/value store that holds the gateway
// settings document and short-lived pairing codes.
package cache

import (
	"context"
	"time"
)

// Type selects the cache backend.
type Type string

// TypeRedis is the only supported backend.
const TypeRedis Type = "redis"

// Cache is a byte-oriented key/value store.
type Cache interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) (bool, error)

	// DeletePattern removes every key matching a glob pattern and returns how many went.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
