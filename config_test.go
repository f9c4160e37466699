package goSession

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/ratelimit"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "base path without slash invalid",
			mutate: func(c *Config) {
				c.BasePath = "api/auth"
			},
			wantValid: false,
		},
		{
			name: "empty base path valid",
			mutate: func(c *Config) {
				c.BasePath = ""
			},
			wantValid: true,
		},
		{
			name: "zero lifetime invalid",
			mutate: func(c *Config) {
				c.Session.Lifetime = 0
			},
			wantValid: false,
		},
		{
			name: "cookie name blank invalid",
			mutate: func(c *Config) {
				c.Cookie.Name = "  "
			},
			wantValid: false,
		},
		{
			name: "cookie name with separator invalid",
			mutate: func(c *Config) {
				c.Cookie.Name = "a;b"
			},
			wantValid: false,
		},
		{
			name: "short cookie secret invalid",
			mutate: func(c *Config) {
				c.Cookie.Secret = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "cookie secret valid",
			mutate: func(c *Config) {
				c.Cookie.Secret = []byte(strings.Repeat("k", 32))
			},
			wantValid: true,
		},
		{
			name: "samesite none without secure invalid",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
			},
			wantValid: false,
		},
		{
			name: "samesite none with secure valid",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = true
			},
			wantValid: true,
		},
		{
			name: "argon2 memory too low invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "policy max below min invalid",
			mutate: func(c *Config) {
				c.Password.Policy.MaxLength = 4
			},
			wantValid: false,
		},
		{
			name: "require verification while disabled invalid",
			mutate: func(c *Config) {
				c.EmailVerification.Enabled = false
				c.EmailVerification.RequireForLogin = true
			},
			wantValid: false,
		},
		{
			name: "send on sign up while disabled invalid",
			mutate: func(c *Config) {
				c.EmailVerification.Enabled = false
				c.EmailVerification.SendOnSignUp = true
			},
			wantValid: false,
		},
		{
			name: "reset ttl zero invalid",
			mutate: func(c *Config) {
				c.PasswordReset.TokenTTL = 0
			},
			wantValid: false,
		},
		{
			name: "reset ttl ignored when disabled",
			mutate: func(c *Config) {
				c.PasswordReset.Enabled = false
				c.PasswordReset.TokenTTL = 0
			},
			wantValid: true,
		},
		{
			name: "lockout threshold zero invalid",
			mutate: func(c *Config) {
				c.Lockout.MaxFailedAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "lockout threshold ignored when disabled",
			mutate: func(c *Config) {
				c.Lockout.Enabled = false
				c.Lockout.MaxFailedAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "rate limit rule without window invalid",
			mutate: func(c *Config) {
				c.RateLimit.Rules = []ratelimit.Rule{{Path: "/sign-in/*", Max: 3}}
			},
			wantValid: false,
		},
		{
			name: "audit buffer zero invalid when enabled",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigValidateProductionFloors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"argon2 memory", func(c *Config) { c.Password.Memory = 32 * 1024 }, "Memory"},
		{"argon2 time", func(c *Config) { c.Password.Time = 1 }, "Time"},
		{"key length", func(c *Config) { c.Password.KeyLength = 16 }, "KeyLength"},
		{"salt length", func(c *Config) { c.Password.SaltLength = 16 }, "SaltLength"},
		{"min length", func(c *Config) { c.Password.Policy.MinLength = 6 }, "MinLength"},
		{"session lifetime", func(c *Config) { c.Session.Lifetime = 90 * 24 * time.Hour }, "Lifetime"},
		{"lockout threshold", func(c *Config) { c.Lockout.MaxFailedAttempts = 50 }, "MaxFailedAttempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.ProductionMode = true
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %s rejection, got %v", tt.want, err)
			}
		})
	}
}

func TestHighSecurityConfigValid(t *testing.T) {
	cfg := HighSecurityConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("HighSecurityConfig must validate: %v", err)
	}
	if !cfg.Security.ProductionMode || !cfg.Cookie.Secure {
		t.Fatal("HighSecurityConfig must be production-ready")
	}
}

func TestWithConfigClonesSlices(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cookie.Secret = []byte(strings.Repeat("s", 32))
	cfg.RateLimit.IPHeaders = []string{"X-Real-IP"}

	b := New().WithConfig(cfg)
	cfg.Cookie.Secret[0] = 'x'
	cfg.RateLimit.IPHeaders[0] = "X-Mutated"

	if b.config.Cookie.Secret[0] != 's' {
		t.Fatal("cookie secret shared with caller")
	}
	if b.config.RateLimit.IPHeaders[0] != "X-Real-IP" {
		t.Fatal("ip headers shared with caller")
	}
}

func TestProductionModeForcesSecureCookieAndRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Security.ProductionMode = true
		c.Password.Memory = 64 * 1024
		c.Password.Time = 2
		c.Password.SaltLength = 32
		c.Password.KeyLength = 32
	})

	res, _ := env.register(t, "a@x.com")
	if !res.Cookie.Secure {
		t.Fatal("production mode must set Secure")
	}

	report := env.engine.SecurityReport()
	if !report.CookieSecure || !report.RateLimitingActive {
		t.Fatalf("unexpected report %+v", report)
	}
}
