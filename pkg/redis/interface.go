// pkg/redis/interface.go
package redis

import (
	"context"
	"time"
)

// Storage is a byte-oriented key/value store with expiry.
type Storage interface {
	// Get returns the value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. ttl <= 0 uses the configured default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Ping checks the connection.
	Ping(ctx context.Context) error
	// Close releases the client.
	Close() error
}
