package goSession

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/storage"
)

// RequestEmailVerification issues a verification token when email belongs
// to an unverified user. The outcome is the same whether or not the user
// exists; the raw token only leaves through the verification:requested
// event.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationDisabled
	}
	email = credential.NormalizeEmail(email)
	if !credential.ValidEmail(email) {
		return validationError(ErrInvalidEmail, []string{"email is invalid"})
	}
	e.metricInc(MetricEmailVerificationRequest)

	user, err := e.users.FindByEmail(ctx, email)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if user.EmailVerified {
		return nil
	}
	return e.sendVerification(ctx, user)
}

func (e *Engine) sendVerification(ctx context.Context, user *storage.User) error {
	raw, updated, err := e.issueToken(ctx, user, storage.TokenEmailVerification, e.config.EmailVerification.TokenTTL)
	if err != nil {
		return err
	}
	e.emit(ctx, TopicVerificationRequested, TokenEvent{
		User:      updated.Clone(),
		Token:     raw,
		ExpiresAt: updated.VerificationToken.ExpiresAt,
	})
	return nil
}

// VerifyEmail consumes a verification token and marks the user verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*storage.User, error) {
	if !e.config.EmailVerification.Enabled {
		return nil, ErrEmailVerificationDisabled
	}

	user, hash, err := e.lookupToken(ctx, token, storage.SlotVerification)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return nil, err
	}

	verified := true
	updated, err := e.users.Update(ctx, user.ID, storage.UserUpdate{
		EmailVerified:          &verified,
		ClearVerificationToken: true,
		IfToken:                &storage.TokenGuard{Slot: storage.SlotVerification, Hash: hash},
	})
	if isNotFound(err) {
		e.metricInc(MetricEmailVerificationFailure)
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emit(ctx, TopicVerificationCompleted, UserEvent{User: updated.Clone()})
	e.emit(ctx, TopicUserUpdated, UserEvent{User: updated.Clone()})
	return updated, nil
}

// RequestPasswordReset issues a reset token when email belongs to a user.
// The outcome is the same whether or not the user exists; the raw token
// only leaves through the password:reset_requested event.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}
	email = credential.NormalizeEmail(email)
	if !credential.ValidEmail(email) {
		return validationError(ErrInvalidEmail, []string{"email is invalid"})
	}
	e.metricInc(MetricPasswordResetRequest)

	user, err := e.users.FindByEmail(ctx, email)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}

	raw, updated, err := e.issueToken(ctx, user, storage.TokenPasswordReset, e.config.PasswordReset.TokenTTL)
	if err != nil {
		return err
	}
	e.emit(ctx, TopicPasswordResetRequest, TokenEvent{
		User:      updated.Clone(),
		Token:     raw,
		ExpiresAt: updated.ResetToken.ExpiresAt,
	})
	return nil
}

// ResetPassword consumes a reset token, sets the new password, clears any
// lockout and revokes every session of the user. It returns how many
// sessions were revoked.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (int, error) {
	if !e.config.PasswordReset.Enabled {
		return 0, ErrPasswordResetDisabled
	}
	if strength := password.CheckStrength(newPassword, e.config.Password.Policy); !strength.IsStrong {
		e.metricInc(MetricPasswordResetFailure)
		return 0, validationError(ErrWeakPassword, strength.Issues)
	}

	user, tokenHash, err := e.lookupToken(ctx, token, storage.SlotReset)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return 0, err
	}

	hash, salt, err := e.hasher.Hash(newPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	zero := 0
	_, err = e.users.Update(ctx, user.ID, storage.UserUpdate{
		PasswordHash:        &hash,
		PasswordSalt:        &salt,
		ClearResetToken:     true,
		FailedLoginAttempts: &zero,
		ClearLockedUntil:    true,
		IfToken:             &storage.TokenGuard{Slot: storage.SlotReset, Hash: tokenHash},
	})
	if isNotFound(err) {
		e.metricInc(MetricPasswordResetFailure)
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("reset password: %w", err)
	}

	revoked, err := e.revokeAll(ctx, user.ID, revokeReasonPasswordReset)
	if err != nil {
		return 0, err
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricPasswordResetSuccess)
	e.emit(ctx, TopicPasswordReset, PasswordEvent{UserID: user.ID, RevokedSessions: revoked, IP: ip})
	return revoked, nil
}

// issueToken stores the hash of a fresh token in the user's slot for typ,
// replacing any previous one, and returns the raw token.
func (e *Engine) issueToken(ctx context.Context, user *storage.User, typ storage.TokenType, ttl time.Duration) (string, *storage.User, error) {
	raw, err := credential.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	tok := &storage.Token{
		Type:      typ,
		UserID:    user.ID,
		Hash:      credential.HashToken(raw),
		ExpiresAt: e.now().Add(ttl),
	}

	var patch storage.UserUpdate
	switch typ {
	case storage.TokenEmailVerification:
		patch.VerificationToken = tok
	case storage.TokenPasswordReset:
		patch.ResetToken = tok
	}

	updated, err := e.users.Update(ctx, user.ID, patch)
	if err != nil {
		return "", nil, fmt.Errorf("store %s token: %w", typ, err)
	}
	return raw, updated, nil
}

// lookupToken finds the user holding a valid token in slot. It returns the
// token hash for the guarded update that consumes it.
func (e *Engine) lookupToken(ctx context.Context, raw string, slot storage.TokenSlot) (*storage.User, string, error) {
	if raw == "" {
		return nil, "", ErrInvalidToken
	}
	hash := credential.HashToken(raw)

	var (
		user *storage.User
		err  error
	)
	switch slot {
	case storage.SlotVerification:
		user, err = e.users.FindByVerificationToken(ctx, hash)
	case storage.SlotReset:
		user, err = e.users.FindByResetToken(ctx, hash)
	default:
		return nil, "", ErrInvalidToken
	}
	if isNotFound(err) {
		return nil, "", ErrInvalidToken
	}
	if err != nil {
		return nil, "", fmt.Errorf("find user by token: %w", err)
	}

	tok := user.VerificationToken
	if slot == storage.SlotReset {
		tok = user.ResetToken
	}
	if tok == nil || tok.Hash != hash || !tok.Valid(e.now()) {
		return nil, "", ErrInvalidToken
	}
	return user, hash, nil
}
