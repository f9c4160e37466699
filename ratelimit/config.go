package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultWindow    = 10 * time.Second
	defaultMax       = 100
	defaultKeyPrefix = "rl"
)

// DefaultIPHeaders is the header scan order used when Config.IPHeaders is nil.
var DefaultIPHeaders = []string{"X-Forwarded-For", "CF-Connecting-IP", "X-Real-IP"}

// Policy is a resolved window/max pair for one request.
type Policy struct {
	Window   time.Duration
	Max      int
	Disabled bool
}

// Rule overrides the default policy for paths matching Path. Path is an
// exact path or a simple glob where "*" matches any run of characters.
type Rule struct {
	Path     string
	Disabled bool
	Window   time.Duration
	Max      int

	// Dynamic computes the policy per request. When set, Window and Max are
	// ignored. An error fails open.
	Dynamic func(ctx context.Context, req RequestInfo) (Policy, error)
}

// Config configures a Limiter.
type Config struct {
	// Enabled overrides enablement. When nil, limiting is on only in
	// production mode.
	Enabled        *bool
	ProductionMode bool

	Window time.Duration
	Max    int

	// Rules is the per-path table. Nil selects DefaultRules; an empty
	// non-nil slice disables the defaults.
	Rules []Rule

	IPHeaders []string
	KeyPrefix string
}

// DefaultRules throttles the credential endpoints harder than the rest.
func DefaultRules() []Rule {
	return []Rule{
		{Path: "/sign-in/*", Window: 10 * time.Second, Max: 3},
		{Path: "/sign-up/*", Window: 10 * time.Second, Max: 3},
		{Path: "/password/*", Window: 10 * time.Second, Max: 3},
	}
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Window:    defaultWindow,
		Max:       defaultMax,
		IPHeaders: append([]string(nil), DefaultIPHeaders...),
		KeyPrefix: defaultKeyPrefix,
	}
}

// IsEnabled resolves the enablement policy.
func (c Config) IsEnabled() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return c.ProductionMode
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window < 0 {
		return errors.New("rate limit window must be >= 0")
	}
	if c.Max < 0 {
		return errors.New("rate limit max must be >= 0")
	}
	for _, r := range c.Rules {
		if r.Path == "" {
			return errors.New("rate limit rule path must not be empty")
		}
		if r.Disabled || r.Dynamic != nil {
			continue
		}
		if r.Window <= 0 || r.Max <= 0 {
			return errors.New("rate limit rule " + r.Path + " requires window > 0 and max > 0")
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Max <= 0 {
		c.Max = defaultMax
	}
	if c.Rules == nil {
		c.Rules = DefaultRules()
	}
	if c.IPHeaders == nil {
		c.IPHeaders = append([]string(nil), DefaultIPHeaders...)
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	return c
}

// ruleFor resolves the rule for path: exact match first, then the first
// glob match in table order. It returns nil when the default applies.
func (c Config) ruleFor(path string) *Rule {
	for i := range c.Rules {
		if c.Rules[i].Path == path {
			return &c.Rules[i]
		}
	}
	for i := range c.Rules {
		if strings.Contains(c.Rules[i].Path, "*") && globMatch(c.Rules[i].Path, path) {
			return &c.Rules[i]
		}
	}
	return nil
}

// globMatch matches s against a pattern where "*" is any run of characters,
// "/" included.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(s, mid)
		if i < 0 {
			return false
		}
		s = s[i+len(mid):]
	}
	return strings.HasSuffix(s, last)
}
