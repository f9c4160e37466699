package goSession

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/ratelimit"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BasePath is stripped from every request path before routing.
	BasePath          string
	Session           SessionConfig
	Cookie            CookieConfig
	Account           AccountConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Lockout           LockoutConfig
	RateLimit         ratelimit.Config
	Audit             AuditConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goSession APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// Lifetime is the time from creation to expiry. It is also the cookie
	// Max-Age.
	Lifetime time.Duration
	// DeleteExpiredOnLookup removes an expired session the first time a
	// lookup finds it.
	DeleteExpiredOnLookup bool
}

// CookieConfig defines a public type used by goSession APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	SameSite http.SameSite
	// Secure is forced on in production mode.
	Secure bool
	// Secret, when set (>= 32 bytes), makes cookie values HS256-signed
	// tokens instead of opaque JSON.
	Secret []byte
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by goSession APIs.
//
// AccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	SignUpEnabled bool
	// AutoSignIn issues a session and cookie on successful registration.
	AutoSignIn bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goSession APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Policy      password.Policy
}

// EmailVerificationConfig defines a public type used by goSession APIs.
//
// EmailVerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationConfig struct {
	// Enabled registers the verification endpoints. When false, new users
	// are created verified.
	Enabled  bool
	TokenTTL time.Duration
	// SendOnSignUp issues a verification token right after registration.
	SendOnSignUp    bool
	RequireForLogin bool
}

// PasswordResetConfig defines a public type used by goSession APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled  bool
	TokenTTL time.Duration
}

// LockoutConfig defines a public type used by goSession APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Enabled           bool
	MaxFailedAttempts int
	Duration          time.Duration
}

/*
====================================
AUDIT / METRICS / SECURITY
====================================
*/

// AuditConfig defines a public type used by goSession APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goSession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig defines a public type used by goSession APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	// ProductionMode forces secure cookies, enables rate limiting unless
	// explicitly disabled, and raises the Argon2 floors checked by Validate.
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by [New] before WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		BasePath: "/api/auth",
		Session: SessionConfig{
			Lifetime:              7 * 24 * time.Hour,
			DeleteExpiredOnLookup: true,
		},
		Cookie: CookieConfig{
			Name:     "gosession.session",
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
		Account: AccountConfig{
			SignUpEnabled: true,
			AutoSignIn:    true,
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
			Policy:      password.DefaultPolicy(),
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:  true,
			TokenTTL: time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:  true,
			TokenTTL: time.Hour,
		},
		Lockout: LockoutConfig{
			Enabled:           true,
			MaxFailedAttempts: 5,
			Duration:          15 * time.Minute,
		},
		RateLimit: ratelimit.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns defaults tightened for internet-facing
// deployments: production mode, signed-cookie ready, shorter sessions and
// verification required before login.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Cookie.Secure = true
	cfg.Cookie.SameSite = http.SameSiteStrictMode
	cfg.Session.Lifetime = 24 * time.Hour
	cfg.EmailVerification.RequireForLogin = true
	cfg.EmailVerification.SendOnSignUp = true
	cfg.EmailVerification.TokenTTL = 30 * time.Minute
	cfg.PasswordReset.TokenTTL = 15 * time.Minute
	cfg.Lockout.MaxFailedAttempts = 5
	cfg.Lockout.Duration = 30 * time.Minute
	cfg.Audit.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cookie.Secret = cloneBytes(cfg.Cookie.Secret)
	if cfg.RateLimit.Enabled != nil {
		v := *cfg.RateLimit.Enabled
		out.RateLimit.Enabled = &v
	}
	if cfg.RateLimit.Rules != nil {
		out.RateLimit.Rules = append([]ratelimit.Rule{}, cfg.RateLimit.Rules...)
	}
	if cfg.RateLimit.IPHeaders != nil {
		out.RateLimit.IPHeaders = append([]string{}, cfg.RateLimit.IPHeaders...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		return errors.New("BasePath must start with '/'")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name is required")
	}
	if strings.ContainsAny(c.Cookie.Name, " \t;,=") {
		return errors.New("Cookie Name contains invalid characters")
	}
	if len(c.Cookie.Secret) > 0 && len(c.Cookie.Secret) < 32 {
		return errors.New("Cookie Secret must be >= 32 bytes")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure && !c.Security.ProductionMode {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.Policy.MinLength < 1 {
		return errors.New("Password Policy MinLength must be >= 1")
	}
	if c.Password.Policy.MaxLength > 0 && c.Password.Policy.MaxLength < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxLength must be >= MinLength")
	}

	// Tokens
	if c.EmailVerification.Enabled && c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.EmailVerification.RequireForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequireForLogin requires EmailVerification Enabled")
	}
	if c.EmailVerification.SendOnSignUp && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification SendOnSignUp requires EmailVerification Enabled")
	}
	if c.PasswordReset.Enabled && c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	// Lockout
	if c.Lockout.Enabled {
		if c.Lockout.MaxFailedAttempts <= 0 {
			return errors.New("Lockout MaxFailedAttempts must be > 0")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("Lockout Duration must be > 0")
		}
	}

	// Rate limit
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Password.SaltLength < 32 {
			return errors.New("ProductionMode requires Password SaltLength >= 32")
		}
		if c.Password.Policy.MinLength < 8 {
			return errors.New("ProductionMode requires Password Policy MinLength >= 8")
		}
		if c.Session.Lifetime > 30*24*time.Hour {
			return errors.New("ProductionMode requires Session Lifetime <= 30d")
		}
		if c.Lockout.Enabled && c.Lockout.MaxFailedAttempts > 20 {
			return errors.New("ProductionMode requires Lockout MaxFailedAttempts <= 20")
		}
	}

	return nil
}
