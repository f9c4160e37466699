package goSession

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo marks settings that are acceptable but worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks settings that weaken security in most deployments.
	LintWarn
	// LintHigh marks contradictory or dangerous settings.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding produced by [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns
// nil when there is none.
func (r LintResult) AsError(min LintSeverity) error {
	filtered := r.BySeverity(min)
	if len(filtered) == 0 {
		return nil
	}
	parts := make([]string, 0, len(filtered))
	for _, w := range filtered {
		parts = append(parts, "["+w.Severity.String()+"] "+w.Code+": "+w.Message)
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but are risky. It never fails;
// hosts decide which severities block startup.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Session.Lifetime > 30*24*time.Hour {
		add("session_lifetime_long", LintWarn, "sessions live longer than 30 days")
	}
	if !c.Cookie.Secure && !c.Security.ProductionMode {
		add("cookie_not_secure", LintInfo, "session cookie is sent over plain HTTP")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode {
		add("samesite_none", LintWarn, "session cookie is sent on cross-site requests")
	}
	if len(c.Cookie.Secret) == 0 {
		add("cookie_unsigned", LintInfo, "cookie values are opaque but not tamper-evident")
	}

	switch {
	case c.Security.ProductionMode && c.RateLimit.Enabled != nil && !*c.RateLimit.Enabled:
		add("rate_limits_disabled", LintHigh, "rate limiting is explicitly disabled in production mode")
	case !c.RateLimit.IsEnabled() && !c.Security.ProductionMode:
		add("rate_limits_off", LintInfo, "rate limiting is off outside production mode")
	}

	if !c.Lockout.Enabled {
		add("lockout_disabled", LintWarn, "failed logins never lock the account")
	} else if c.Lockout.MaxFailedAttempts > 10 {
		add("lockout_threshold_high", LintWarn, "more than 10 failed logins are allowed before lockout")
	}

	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory is below 64 MB")
	}
	if c.Password.Policy.MinLength < 8 {
		add("password_min_length_low", LintWarn, "passwords shorter than 8 characters are accepted")
	}

	if c.PasswordReset.Enabled && c.PasswordReset.TokenTTL > time.Hour {
		add("reset_ttl_long", LintWarn, "password reset tokens live longer than 1 hour")
	}
	if c.EmailVerification.Enabled && c.EmailVerification.TokenTTL > 24*time.Hour {
		add("verification_ttl_long", LintInfo, "verification tokens live longer than 24 hours")
	}
	if c.Security.ProductionMode && !c.EmailVerification.RequireForLogin {
		add("verification_not_required", LintInfo, "unverified users can sign in")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "domain events are not forwarded to an audit sink")
	}

	return ws
}
