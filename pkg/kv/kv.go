// Package kv provides the key-value store abstraction backing the message
// cache. Values are JSON-encoded so the in-memory and Redis implementations
// are interchangeable; multiple service instances can share one Redis store.
package kv

import (
	"context"
	"time"
)

// Store is a key-value store with per-key expiration.
type Store interface {
	// Get decodes the value stored under key into dest. It returns false
	// when the key is absent or expired, which is not an error.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Keys returns every live key with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
