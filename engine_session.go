package goSession

import (
	"context"
	"fmt"
	"slices"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/storage"
)

const (
	revokeReasonLogout         = "logout"
	revokeReasonExplicit       = "revoked"
	revokeReasonOthers         = "revoke_others"
	revokeReasonPasswordReset  = "password_reset"
	revokeReasonPasswordChange = "password_change"
	revokeReasonAccountDelete  = "account_deleted"
)

// createSession persists a new session for user and encodes its cookie.
func (e *Engine) createSession(ctx context.Context, user *storage.User) (*AuthResult, error) {
	id, err := credential.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := e.now()
	ip, ua := clientMeta(ctx)
	sess := &storage.Session{
		ID:             id,
		UserID:         user.ID,
		ExpiresAt:      now.Add(e.config.Session.Lifetime),
		CreatedAt:      now,
		LastAccessedAt: now,
		IPAddress:      ip,
		UserAgent:      ua,
		Device:         parseDevice(ua),
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	directive, err := e.cookies.Encode(cookie.Payload{UserID: user.ID, SessionID: id})
	if err != nil {
		return nil, fmt.Errorf("encode session cookie: %w", err)
	}

	e.metricInc(MetricSessionCreated)
	e.emit(ctx, TopicSessionCreated, SessionEvent{Session: sess.Clone(), IP: ip})

	return &AuthResult{User: user, Session: sess, Cookie: directive}, nil
}

// resolveSession turns a cookie value into the live user and session. Any
// mismatch or absence yields (nil, nil); only backend failures are errors.
// A successful lookup refreshes LastAccessedAt.
func (e *Engine) resolveSession(ctx context.Context, raw string) (*AuthResult, error) {
	if raw == "" {
		return nil, nil
	}
	payload := e.cookies.Decode(raw)
	if payload == nil {
		e.metricInc(MetricSessionLookupMiss)
		return nil, nil
	}

	sess, err := e.sessions.FindByID(ctx, payload.SessionID)
	if isNotFound(err) {
		e.metricInc(MetricSessionLookupMiss)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	if sess.UserID != payload.UserID {
		e.metricInc(MetricSessionUserMismatch)
		e.logger.WarnContext(ctx, "session cookie user does not match session owner", "session_id", sess.ID)
		return nil, nil
	}

	now := e.now()
	if !sess.Active(now) {
		e.metricInc(MetricSessionLookupMiss)
		if e.config.Session.DeleteExpiredOnLookup {
			if err := e.sessions.Delete(ctx, sess.ID); err != nil && !isNotFound(err) {
				e.logger.WarnContext(ctx, "delete expired session failed", "session_id", sess.ID, "err", err)
			}
		}
		return nil, nil
	}

	user, err := e.users.FindByID(ctx, sess.UserID)
	if isNotFound(err) {
		e.metricInc(MetricSessionLookupMiss)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session user: %w", err)
	}

	if err := e.sessions.UpdateLastAccessed(ctx, sess.ID, now); err != nil {
		if isNotFound(err) {
			e.metricInc(MetricSessionLookupMiss)
			return nil, nil
		}
		return nil, fmt.Errorf("touch session: %w", err)
	}
	sess.LastAccessedAt = now

	e.metricInc(MetricSessionLookupHit)
	return &AuthResult{User: user, Session: sess}, nil
}

func (e *Engine) requireSession(ctx context.Context, raw string) (*AuthResult, error) {
	res, err := e.resolveSession(ctx, raw)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrUnauthenticated
	}
	return res, nil
}

// GetSession resolves a session cookie value. Absence is not an error: an
// unknown, expired, tampered or mismatched cookie returns (nil, nil).
func (e *Engine) GetSession(ctx context.Context, cookieValue string) (*AuthResult, error) {
	return e.resolveSession(ctx, cookieValue)
}

// Logout deletes the session behind cookieValue.
func (e *Engine) Logout(ctx context.Context, cookieValue string) error {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return err
	}

	if err := e.sessions.Delete(ctx, res.Session.ID); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete session: %w", err)
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emit(ctx, TopicSessionRevoked, SessionEvent{Session: res.Session, Reason: revokeReasonLogout, IP: ip})
	e.emit(ctx, TopicLogout, SessionEvent{Session: res.Session, Reason: revokeReasonLogout, IP: ip})
	return nil
}

// ListSessions returns the caller's unexpired sessions, oldest first, with
// the current one flagged.
func (e *Engine) ListSessions(ctx context.Context, cookieValue string) ([]SessionInfo, error) {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return nil, err
	}

	all, err := e.sessions.FindByUserID(ctx, res.User.ID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := e.now()
	out := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		if !s.Active(now) {
			continue
		}
		if s.ID == res.Session.ID {
			s = res.Session
		}
		out = append(out, SessionInfo{Session: s, IsCurrent: s.ID == res.Session.ID})
	}
	slices.SortStableFunc(out, func(a, b SessionInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// RevokeSession deletes one of the caller's sessions. A session owned by
// someone else is reported as not found. It reports whether the revoked
// session was the caller's own.
func (e *Engine) RevokeSession(ctx context.Context, cookieValue, sessionID string) (bool, error) {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, ErrSessionNotFound
	}

	target, err := e.sessions.FindByID(ctx, sessionID)
	if isNotFound(err) {
		return false, ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("find session: %w", err)
	}
	if target.UserID != res.User.ID {
		return false, ErrSessionNotFound
	}

	if err := e.sessions.Delete(ctx, target.ID); err != nil {
		if isNotFound(err) {
			return false, ErrSessionNotFound
		}
		return false, fmt.Errorf("delete session: %w", err)
	}

	ip, _ := clientMeta(ctx)
	e.metricInc(MetricSessionRevoked)
	e.emit(ctx, TopicSessionRevoked, SessionEvent{Session: target, Reason: revokeReasonExplicit, IP: ip})
	return target.ID == res.Session.ID, nil
}

// RevokeOtherSessions deletes every session of the caller except the
// current one and returns how many were deleted.
func (e *Engine) RevokeOtherSessions(ctx context.Context, cookieValue string) (int, error) {
	res, err := e.requireSession(ctx, cookieValue)
	if err != nil {
		return 0, err
	}
	return e.revokeAllExcept(ctx, res.User.ID, res.Session.ID, revokeReasonOthers)
}

// revokeAllExcept deletes the user's sessions other than keep. An empty
// keep revokes everything.
func (e *Engine) revokeAllExcept(ctx context.Context, userID, keep, reason string) (int, error) {
	all, err := e.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	ip, _ := clientMeta(ctx)
	n := 0
	for _, s := range all {
		if s.ID == keep {
			continue
		}
		if err := e.sessions.Delete(ctx, s.ID); err != nil {
			if isNotFound(err) {
				continue
			}
			return n, fmt.Errorf("delete session: %w", err)
		}
		n++
		e.metricInc(MetricSessionRevoked)
		e.emit(ctx, TopicSessionRevoked, SessionEvent{Session: s, Reason: reason, IP: ip})
	}
	return n, nil
}

// revokeAll deletes every session of the user in one backend call.
func (e *Engine) revokeAll(ctx context.Context, userID, reason string) (int, error) {
	n, err := e.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	for range n {
		e.metricInc(MetricSessionRevoked)
	}
	if n > 0 {
		e.logger.InfoContext(ctx, "sessions revoked", "user_id", userID, "count", n, "reason", reason)
	}
	return n, nil
}
