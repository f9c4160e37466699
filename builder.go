package goSession

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/ratelimit"
	"github.com/MrEthical07/goSession/router"
	"github.com/MrEthical07/goSession/storage"
)

// Builder defines a public type used by goSession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	store  storage.Store
	kv     kv.Store
	logger *slog.Logger

	plugins   []Plugin
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. It is required.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithKVStore sets the key-value store the rate limiter counts in. Without
// one, the limiter uses the storage backend's counters when available and
// process memory otherwise.
func (b *Builder) WithKVStore(store kv.Store) *Builder {
	b.kv = store
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger may return an error when input validation, dependency calls, or security checks fail.
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithPlugins appends plugins. They are initialized in order during Build.
func (b *Builder) WithPlugins(plugins ...Plugin) *Builder {
	b.plugins = append(b.plugins, plugins...)
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("storage backend required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	codec, err := cookie.New(cookie.Options{
		Name:     cfg.Cookie.Name,
		Path:     cfg.Cookie.Path,
		Domain:   cfg.Cookie.Domain,
		SameSite: cfg.Cookie.SameSite,
		Secure:   cfg.Cookie.Secure || cfg.Security.ProductionMode,
		MaxAge:   cfg.Session.Lifetime,
		Secret:   cfg.Cookie.Secret,
	})
	if err != nil {
		return nil, err
	}

	rl := cfg.RateLimit
	rl.ProductionMode = cfg.Security.ProductionMode
	limiter, err := ratelimit.New(rl, ratelimit.Deps{
		KV:     b.kv,
		Store:  b.store,
		Logger: logger.With("component", "ratelimit"),
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		basePath:   normalizeBasePath(cfg.BasePath),
		users:      b.store.Users(),
		sessions:   b.store.Sessions(),
		store:      b.store,
		hasher:     hasher,
		cookies:    codec,
		limiter:    limiter,
		router:     router.New[HandlerFunc](),
		events:     events.New(events.Config{Logger: logger.With("component", "events")}),
		hooks:      events.New(events.Config{Logger: logger.With("component", "hooks")}),
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
		extensions: make(map[string]any),
		now:        time.Now,
	}

	if err := e.registerRoutes(); err != nil {
		return nil, err
	}

	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = events.NewJSONWriterSink(slogWriter{logger: logger})
	}
	if sink != nil {
		e.audit = events.NewForwarder(events.ForwarderConfig{
			BufferSize: max(cfg.Audit.BufferSize, 1),
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink)
		e.audit.Attach(e.events)
	}

	seen := make(map[string]struct{}, len(b.plugins))
	for _, p := range b.plugins {
		if p == nil {
			continue
		}
		id := p.ID()
		if _, dup := seen[id]; dup {
			e.Close()
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlugin, id)
		}
		seen[id] = struct{}{}

		if err := p.Init(&PluginAPI{engine: e, id: id}); err != nil {
			e.Close()
			return nil, fmt.Errorf("plugin %s: %w", id, err)
		}
		e.plugins = append(e.plugins, id)
	}

	b.built = true
	return e, nil
}

// slogWriter feeds JSON audit lines into the engine logger when audit is
// enabled without an explicit sink.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	line := string(p)
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	w.logger.Info("audit", "record", line)
	return len(p), nil
}
