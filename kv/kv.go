package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures so callers can fail open on them.
var ErrUnavailable = errors.New("kv store unavailable")

// Store is a minimal string key-value store with per-key expiry.
// Get reports absence through its bool result, never through an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
