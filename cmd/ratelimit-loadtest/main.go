// Command ratelimit-loadtest drives the Redis-backed session store and rate
// limiter with concurrent workers and prints latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/ratelimit"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/storage/redisstore"
)

type clientHeader string

func (h clientHeader) Get(name string) (string, bool) {
	if name == "X-Forwarded-For" {
		return string(h), true
	}
	return "", false
}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		clients     = flag.Int("clients", 5000, "number of distinct client IPs")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (lookup + rate limit)")
		maxPerWin   = flag.Int("max", 100, "requests allowed per client per window")
		window      = flag.Duration("window", 10*time.Second, "rate-limit window")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gs", "key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *clients <= 0 || *concurrency <= 0 || *ops <= 0 || *maxPerWin <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, clients, concurrency, ops, and max must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := redisstore.NewSessionStore(client, *prefix)

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		ids[i] = fmt.Sprintf("sid-%d", i)
		if err := store.Create(ctx, buildSession(ids[i], i)); err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	enabled := true
	cfg := ratelimit.DefaultConfig()
	cfg.Enabled = &enabled
	cfg.Window = *window
	cfg.Max = *maxPerWin
	cfg.Rules = []ratelimit.Rule{}
	cfg.KeyPrefix = *prefix + ":rl"
	limiter, err := ratelimit.New(cfg, ratelimit.Deps{
		KV:     kv.NewRedisStore(client, ""),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "limiter: %v\n", err)
		os.Exit(1)
	}

	lookupStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		_, err := store.FindByID(ctx, ids[r.Intn(len(ids))])
		return err == nil
	})

	var denied atomic.Int64
	limitStats := runPhase(*ops, *concurrency, func(r *rand.Rand) bool {
		ip := "10.0." + strconv.Itoa(r.Intn(*clients)/256) + "." + strconv.Itoa(r.Intn(*clients)%256)
		d := limiter.Check(ctx, ratelimit.RequestInfo{
			Method:  "POST",
			Path:    "/sign-in/email",
			Headers: clientHeader(ip),
		})
		if !d.Allowed {
			denied.Add(1)
		}
		return true
	})

	fmt.Println("---- results ----")
	printStats("session lookup", lookupStats)
	printStats("rate limit", limitStats)
	fmt.Printf("rate limit: denied=%d fail_open=%d\n", denied.Load(), limiter.FailOpens())
}

// runPhase spreads ops calls of op over concurrency workers. op reports
// success.
func runPhase(ops, concurrency int, op func(r *rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildSession(id string, i int) *storage.Session {
	now := time.Now()
	return &storage.Session{
		ID:             id,
		UserID:         "u" + strconv.Itoa(i%1000),
		ExpiresAt:      now.Add(24 * time.Hour),
		CreatedAt:      now,
		LastAccessedAt: now,
		IPAddress:      "203.0.113.7",
		UserAgent:      "ratelimit-loadtest",
	}
}
