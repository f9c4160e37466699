package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/storage"
)

// counter is the state of one fixed window after a hit.
type counter struct {
	count   int
	resetAt time.Time
}

type strategy interface {
	name() string
	hit(ctx context.Context, key string, p Policy, now time.Time) (counter, error)
	cleanup(ctx context.Context, now time.Time) (int, error)
}

// kvStrategy keeps counters as JSON in a kv.Store with a TTL equal to the
// rest of the window. The read-modify-write is not atomic; concurrent hits
// on one key may undercount, which is acceptable for advisory counters.
type kvStrategy struct {
	store kv.Store
}

type kvCounter struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"resetAt"` // unix milliseconds
}

func (s kvStrategy) name() string { return "kv" }

func (s kvStrategy) hit(ctx context.Context, key string, p Policy, now time.Time) (counter, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return counter{}, err
	}

	var c kvCounter
	if ok {
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			// A corrupt counter restarts the window.
			ok = false
		}
	}
	if !ok || now.UnixMilli() >= c.ResetAt {
		c = kvCounter{ResetAt: now.Add(p.Window).UnixMilli()}
	}
	c.Count++

	data, err := json.Marshal(c)
	if err != nil {
		return counter{}, err
	}
	resetAt := time.UnixMilli(c.ResetAt)
	ttl := resetAt.Sub(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.store.Set(ctx, key, string(data), ttl); err != nil {
		return counter{}, err
	}
	return counter{count: c.Count, resetAt: resetAt}, nil
}

// Keys expire in the store itself.
func (s kvStrategy) cleanup(context.Context, time.Time) (int, error) { return 0, nil }

// storageStrategy delegates to the storage backend's native counters.
type storageStrategy struct {
	store storage.RateLimitStore
}

func (s storageStrategy) name() string { return "storage" }

func (s storageStrategy) hit(ctx context.Context, key string, p Policy, _ time.Time) (counter, error) {
	c, err := s.store.IncrementRateLimit(ctx, key, p.Window, p.Max)
	if err != nil {
		return counter{}, err
	}
	return counter{count: c.Count, resetAt: c.ResetAt}, nil
}

func (s storageStrategy) cleanup(ctx context.Context, _ time.Time) (int, error) {
	return s.store.CleanupRateLimits(ctx)
}

// memoryStrategy is a mutex-guarded map owned by one Limiter.
type memoryStrategy struct {
	mu      sync.Mutex
	entries map[string]*counter
}

func newMemoryStrategy() *memoryStrategy {
	return &memoryStrategy{entries: make(map[string]*counter)}
}

func (s *memoryStrategy) name() string { return "memory" }

func (s *memoryStrategy) hit(_ context.Context, key string, p Policy, now time.Time) (counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &counter{resetAt: now.Add(p.Window)}
		s.entries[key] = e
	}
	e.count++
	return *e, nil
}

func (s *memoryStrategy) cleanup(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

func (s *memoryStrategy) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func selectStrategy(kvStore kv.Store, store storage.Store) strategy {
	if kvStore != nil {
		return kvStrategy{store: kvStore}
	}
	if rl, ok := store.(storage.RateLimitStore); ok {
		return storageStrategy{store: rl}
	}
	return newMemoryStrategy()
}
