package goSession

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/storage"
)

// Register creates a user and, with AutoSignIn, a session. Every violated
// email and password rule is reported in one error.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if !e.config.Account.SignUpEnabled {
		return nil, ErrSignUpDisabled
	}

	email := credential.NormalizeEmail(in.Email)
	var issues []string
	emailOK := credential.ValidEmail(email)
	if !emailOK {
		issues = append(issues, "email is invalid")
	}
	strength := password.CheckStrength(in.Password, e.config.Password.Policy)
	issues = append(issues, strength.Issues...)
	if len(issues) > 0 {
		e.metricInc(MetricRegisterInvalid)
		if !emailOK {
			return nil, validationError(ErrInvalidEmail, issues)
		}
		return nil, validationError(ErrWeakPassword, issues)
	}

	if _, err := e.users.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return nil, ErrEmailExists
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	hash, salt, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := e.now()
	user := &storage.User{
		ID:            credential.NewUserID(),
		Email:         email,
		EmailVerified: !e.config.EmailVerification.Enabled,
		Name:          trimOptional(in.Name),
		Image:         trimOptional(in.Image),
		PasswordHash:  hash,
		PasswordSalt:  salt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricRegisterSuccess)
	e.emit(ctx, TopicUserCreated, UserEvent{User: user.Clone(), IP: ip})

	if e.config.EmailVerification.SendOnSignUp {
		if err := e.sendVerification(ctx, user); err != nil {
			e.logger.WarnContext(ctx, "issue verification token on sign up failed", "user_id", user.ID, "err", err)
		}
	}

	if !e.config.Account.AutoSignIn {
		return &AuthResult{User: user}, nil
	}
	return e.createSession(ctx, user)
}

// Login verifies credentials and issues a session. An unknown email and a
// wrong password fail identically.
func (e *Engine) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := credential.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, validationError(ErrInvalidRequest, []string{"email and password are required"})
	}
	ip, ua := clientMeta(ctx)

	user, err := e.users.FindByEmail(ctx, email)
	if isNotFound(err) {
		e.metricInc(MetricLoginFailure)
		e.emit(ctx, TopicLoginFailed, LoginEvent{Email: email, IP: ip, UserAgent: ua, Err: ErrInvalidCredentials})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	now := e.now()
	attempts := user.FailedLoginAttempts
	if e.config.Lockout.Enabled && user.LockedUntil != nil {
		if now.Before(*user.LockedUntil) {
			e.metricInc(MetricLoginLockedRejected)
			e.emit(ctx, TopicLoginFailed, LoginEvent{UserID: user.ID, Email: email, IP: ip, UserAgent: ua, Err: ErrAccountLocked})
			apiErr := newAPIError(ErrAccountLocked)
			apiErr.RetryAfter = int(math.Ceil(user.LockedUntil.Sub(now).Seconds()))
			return nil, apiErr
		}
		// An expired lock counts as absent; the next failure is the first.
		attempts = 0
	}

	if !e.hasher.Verify(in.Password, user.PasswordHash, user.PasswordSalt) {
		return nil, e.recordLoginFailure(ctx, user, attempts, now)
	}

	patch := storage.UserUpdate{LastLoginAt: &now}
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		zero := 0
		patch.FailedLoginAttempts = &zero
		patch.ClearLockedUntil = true
	}
	updated, err := e.users.Update(ctx, user.ID, patch)
	if isNotFound(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("update user after login: %w", err)
	}

	if e.config.EmailVerification.RequireForLogin && !updated.EmailVerified {
		e.emit(ctx, TopicLoginFailed, LoginEvent{UserID: user.ID, Email: email, IP: ip, UserAgent: ua, Err: ErrEmailNotVerified})
		return nil, ErrEmailNotVerified
	}

	res, err := e.createSession(ctx, updated)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emit(ctx, TopicLogin, LoginEvent{UserID: user.ID, Email: email, SessionID: res.Session.ID, IP: ip, UserAgent: ua})
	return res, nil
}

// recordLoginFailure counts a wrong password. Reaching the threshold locks
// the account, but the attempt that locks still reports invalid
// credentials.
func (e *Engine) recordLoginFailure(ctx context.Context, user *storage.User, attempts int, now time.Time) error {
	ip, ua := clientMeta(ctx)
	e.metricInc(MetricLoginFailure)
	e.emit(ctx, TopicLoginFailed, LoginEvent{UserID: user.ID, Email: user.Email, IP: ip, UserAgent: ua, Err: ErrInvalidCredentials})

	if !e.config.Lockout.Enabled {
		return ErrInvalidCredentials
	}

	attempts++
	patch := storage.UserUpdate{FailedLoginAttempts: &attempts}
	locked := attempts >= e.config.Lockout.MaxFailedAttempts
	var until time.Time
	if locked {
		until = now.Add(e.config.Lockout.Duration)
		patch.LockedUntil = &until
	} else if user.LockedUntil != nil {
		patch.ClearLockedUntil = true
	}

	if _, err := e.users.Update(ctx, user.ID, patch); err != nil {
		if isNotFound(err) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("record failed login: %w", err)
	}

	if locked {
		e.metricInc(MetricAccountLocked)
		e.logger.WarnContext(ctx, "account locked", "user_id", user.ID, "attempts", attempts, "until", until)
		e.emit(ctx, TopicUserLocked, LockoutEvent{UserID: user.ID, Attempts: attempts, LockedUntil: until, IP: ip})
	}
	return ErrInvalidCredentials
}

// ChangePassword replaces the caller's password after checking the current
// one. It returns how many other sessions were revoked.
func (e *Engine) ChangePassword(ctx context.Context, cookieValue string, in ChangePasswordInput) (int, error) {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return 0, err
	}
	user := res.User

	if !e.hasher.Verify(in.CurrentPassword, user.PasswordHash, user.PasswordSalt) {
		e.metricInc(MetricPasswordChangeFailure)
		return 0, ErrInvalidPassword
	}
	if strength := password.CheckStrength(in.NewPassword, e.config.Password.Policy); !strength.IsStrong {
		e.metricInc(MetricPasswordChangeFailure)
		return 0, validationError(ErrWeakPassword, strength.Issues)
	}
	if e.hasher.Verify(in.NewPassword, user.PasswordHash, user.PasswordSalt) {
		e.metricInc(MetricPasswordChangeFailure)
		return 0, ErrPasswordReuse
	}

	hash, salt, err := e.hasher.Hash(in.NewPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if _, err := e.users.Update(ctx, user.ID, storage.UserUpdate{PasswordHash: &hash, PasswordSalt: &salt}); err != nil {
		if isNotFound(err) {
			return 0, ErrUnauthenticated
		}
		return 0, fmt.Errorf("update password: %w", err)
	}

	revoked := 0
	if in.RevokeOtherSessions {
		revoked, err = e.revokeAllExcept(ctx, user.ID, res.Session.ID, revokeReasonPasswordChange)
		if err != nil {
			return revoked, err
		}
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricPasswordChangeSuccess)
	e.emit(ctx, TopicPasswordChanged, PasswordEvent{UserID: user.ID, RevokedSessions: revoked, IP: ip})
	return revoked, nil
}

// UpdateUser changes the caller's display name and image.
func (e *Engine) UpdateUser(ctx context.Context, cookieValue string, in ProfileUpdate) (*storage.User, error) {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return nil, err
	}
	if in.Name == nil && in.Image == nil {
		return nil, validationError(ErrInvalidRequest, []string{"no fields to update"})
	}

	updated, err := e.users.Update(ctx, res.User.ID, storage.UserUpdate{
		Name:  trimOptional(in.Name),
		Image: trimOptional(in.Image),
	})
	if isNotFound(err) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricUserUpdated)
	e.emit(ctx, TopicUserUpdated, UserEvent{User: updated.Clone(), IP: ip})
	return updated, nil
}

// DeleteAccount removes the caller's sessions and user record, tokens and
// credentials included. When currentPassword is non-empty it must match.
func (e *Engine) DeleteAccount(ctx context.Context, cookieValue, currentPassword string) error {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return err
	}
	user := res.User

	if currentPassword != "" && !e.hasher.Verify(currentPassword, user.PasswordHash, user.PasswordSalt) {
		return ErrInvalidPassword
	}

	if _, err := e.revokeAll(ctx, user.ID, revokeReasonAccountDelete); err != nil {
		return err
	}
	if err := e.users.Delete(ctx, user.ID); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete user: %w", err)
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricAccountDeleted)
	e.emit(ctx, TopicUserDeleted, UserEvent{User: user, IP: ip})
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
