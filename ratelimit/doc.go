// Package ratelimit implements fixed-window request limiting keyed by
// client identifier and path.
//
// # Window semantics
//
// Unseen -> Counting(window) -> Counting(next window) ... A new window starts
// on the first hit after the previous window's reset time.
//
// # Strategies
//
// In priority order: a kv.Store (JSON counter with TTL), the storage
// backend's native counters (storage.RateLimitStore), or a process-local
// map. Errors from the first two fail open and are logged.
//
// # Rule resolution
//
// Exact path, then the first glob ("*") match in table order, then the
// configured default.
package ratelimit
