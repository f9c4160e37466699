package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/storage"
)

// RequestInfo is what the limiter sees of a request. Path is relative to
// the engine's base path.
type RequestInfo struct {
	Method  string
	Path    string
	Headers Headers
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed bool
	// Limit is zero when no policy applied (limiter or rule disabled, or
	// fail-open).
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// Deps are the optional backends a Limiter counts with. KV wins over
// Store; with neither, counters live in process memory.
type Deps struct {
	KV     kv.Store
	Store  storage.Store
	Logger *slog.Logger
}

// Limiter is a fixed-window request limiter keyed by client identifier and
// path. Each engine owns its own Limiter, so counters never leak between
// instances.
type Limiter struct {
	cfg      Config
	enabled  bool
	strategy strategy
	logger   *slog.Logger
	now      func() time.Time

	failOpen atomic.Uint64
	denied   atomic.Uint64
}

// New builds a limiter. cfg is validated and defaulted.
func New(cfg Config, deps Deps) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Limiter{
		cfg:      cfg,
		enabled:  cfg.IsEnabled(),
		strategy: selectStrategy(deps.KV, deps.Store),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Enabled reports whether Check enforces anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Strategy names the active counting backend: "kv", "storage" or "memory".
func (l *Limiter) Strategy() string {
	if l == nil {
		return ""
	}
	return l.strategy.name()
}

// Key returns the counter key for identifier and path.
func (l *Limiter) Key(identifier, path string) string {
	return l.cfg.KeyPrefix + ":" + identifier + ":" + path
}

// Identify extracts the client identifier from headers.
func (l *Limiter) Identify(h Headers) string {
	return Identify(h, l.cfg.IPHeaders)
}

// Check counts the request and decides whether it may proceed. Backend and
// dynamic-rule errors fail open and are logged.
func (l *Limiter) Check(ctx context.Context, req RequestInfo) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}

	policy, ok := l.policyFor(ctx, req)
	if !ok || policy.Disabled {
		return Decision{Allowed: true}
	}

	now := l.now()
	key := l.Key(l.Identify(req.Headers), req.Path)
	c, err := l.strategy.hit(ctx, key, policy, now)
	if err != nil {
		l.failOpen.Add(1)
		l.logger.WarnContext(ctx, "rate limit check failed, allowing request",
			"path", req.Path, "strategy", l.strategy.name(), "err", err)
		return Decision{Allowed: true}
	}

	d := Decision{
		Allowed:   c.count <= policy.Max,
		Limit:     policy.Max,
		Remaining: max(policy.Max-c.count, 0),
		ResetAt:   c.resetAt,
	}
	if !d.Allowed {
		l.denied.Add(1)
		d.RetryAfter = max(c.resetAt.Sub(now), time.Second)
	}
	return d
}

func (l *Limiter) policyFor(ctx context.Context, req RequestInfo) (Policy, bool) {
	rule := l.cfg.ruleFor(req.Path)
	if rule == nil {
		return Policy{Window: l.cfg.Window, Max: l.cfg.Max}, true
	}
	if rule.Disabled {
		return Policy{Disabled: true}, true
	}
	if rule.Dynamic == nil {
		return Policy{Window: rule.Window, Max: rule.Max}, true
	}

	p, err := rule.Dynamic(ctx, req)
	if err != nil {
		l.failOpen.Add(1)
		l.logger.WarnContext(ctx, "dynamic rate limit rule failed, allowing request",
			"path", req.Path, "rule", rule.Path, "err", err)
		return Policy{}, false
	}
	if !p.Disabled && (p.Window <= 0 || p.Max <= 0) {
		l.logger.WarnContext(ctx, "dynamic rate limit rule returned invalid policy, using default",
			"path", req.Path, "rule", rule.Path)
		return Policy{Window: l.cfg.Window, Max: l.cfg.Max}, true
	}
	return p, true
}

// Cleanup purges expired counters from the active strategy. Hosts call it
// periodically; it is safe to run alongside Check.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	if l == nil {
		return 0, nil
	}
	return l.strategy.cleanup(ctx, l.now())
}

// FailOpens returns how many checks were allowed because of an error.
func (l *Limiter) FailOpens() uint64 {
	if l == nil {
		return 0
	}
	return l.failOpen.Load()
}

// Denied returns how many checks were rejected.
func (l *Limiter) Denied() uint64 {
	if l == nil {
		return 0
	}
	return l.denied.Load()
}
