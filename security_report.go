package goSession

import (
	"net/http"
	"time"
)

// SecurityReport summarizes the effective security posture of an engine, for
// startup logs and health endpoints. It never contains secrets.
type SecurityReport struct {
	ProductionMode          bool
	BasePath                string
	SessionLifetime         time.Duration
	CookieName              string
	CookieSecure            bool
	CookieSigned            bool
	CookieSameSite          string
	Argon2                  PasswordConfigReport
	MinPasswordLength       int
	LockoutEnabled          bool
	LockoutThreshold        int
	LockoutDuration         time.Duration
	RateLimitingActive      bool
	RateLimitStrategy       string
	EmailVerificationActive bool
	VerificationRequired    bool
	PasswordResetActive     bool
	SignUpEnabled           bool
	AuditActive             bool
	Plugins                 []string
	LintCodes               []string
}

// PasswordConfigReport is the argon2id parameter set in effect.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return SecurityReport{
		ProductionMode:  cfg.Security.ProductionMode,
		BasePath:        e.basePath,
		SessionLifetime: cfg.Session.Lifetime,
		CookieName:      e.cookies.Name(),
		CookieSecure:    cfg.Cookie.Secure || cfg.Security.ProductionMode,
		CookieSigned:    e.cookies.Signed(),
		CookieSameSite:  sameSiteName(cfg.Cookie.SameSite),
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		MinPasswordLength:       cfg.Password.Policy.MinLength,
		LockoutEnabled:          cfg.Lockout.Enabled,
		LockoutThreshold:        cfg.Lockout.MaxFailedAttempts,
		LockoutDuration:         cfg.Lockout.Duration,
		RateLimitingActive:      e.limiter.Enabled(),
		RateLimitStrategy:       e.limiter.Strategy(),
		EmailVerificationActive: cfg.EmailVerification.Enabled,
		VerificationRequired:    cfg.EmailVerification.Enabled && cfg.EmailVerification.RequireForLogin,
		PasswordResetActive:     cfg.PasswordReset.Enabled,
		SignUpEnabled:           cfg.Account.SignUpEnabled,
		AuditActive:             e.audit != nil,
		Plugins:                 e.Plugins(),
		LintCodes:               cfg.Lint().Codes(),
	}
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return "Lax"
	}
}
