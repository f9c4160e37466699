package goSession

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/storage"
)

// Domain event topics. Subscribe with [Engine.Events]; "user:*" and "*"
// patterns work as usual.
const (
	TopicUserCreated           = "user:created"
	TopicUserUpdated           = "user:updated"
	TopicUserDeleted           = "user:deleted"
	TopicUserLocked            = "user:locked"
	TopicSessionCreated        = "session:created"
	TopicSessionRevoked        = "session:revoked"
	TopicLogin                 = "auth:login"
	TopicLoginFailed           = "auth:login_failed"
	TopicLogout                = "auth:logout"
	TopicVerificationRequested = "verification:requested"
	TopicVerificationCompleted = "verification:completed"
	TopicPasswordResetRequest  = "password:reset_requested"
	TopicPasswordReset         = "password:reset"
	TopicPasswordChanged       = "password:changed"
)

// UserEvent is the payload of user:* and verification:completed.
type UserEvent struct {
	User *storage.User
	IP   string
}

func (e UserEvent) AuditRecord() events.Record {
	rec := events.Record{IP: e.IP, Success: true}
	if e.User != nil {
		rec.UserID = e.User.ID
	}
	return rec
}

// LockoutEvent is the payload of user:locked.
type LockoutEvent struct {
	UserID      string
	Attempts    int
	LockedUntil time.Time
	IP          string
}

func (e LockoutEvent) AuditRecord() events.Record {
	return events.Record{
		UserID:  e.UserID,
		IP:      e.IP,
		Success: true,
		Metadata: map[string]string{
			"attempts":     strconv.Itoa(e.Attempts),
			"locked_until": e.LockedUntil.UTC().Format(time.RFC3339),
		},
	}
}

// SessionEvent is the payload of session:* and auth:logout. Reason names
// why a session was revoked.
type SessionEvent struct {
	Session *storage.Session
	Reason  string
	IP      string
}

func (e SessionEvent) AuditRecord() events.Record {
	rec := events.Record{IP: e.IP, Success: true}
	if e.Session != nil {
		rec.UserID = e.Session.UserID
		rec.SessionID = e.Session.ID
	}
	if e.Reason != "" {
		rec.Metadata = map[string]string{"reason": e.Reason}
	}
	return rec
}

// LoginEvent is the payload of auth:login and auth:login_failed. UserID is
// empty when no account matched the email.
type LoginEvent struct {
	UserID    string
	Email     string
	SessionID string
	IP        string
	UserAgent string
	Err       error
}

func (e LoginEvent) AuditRecord() events.Record {
	rec := events.Record{
		UserID:    e.UserID,
		SessionID: e.SessionID,
		IP:        e.IP,
		Success:   e.Err == nil,
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}
	return rec
}

// TokenEvent is the payload of verification:requested and
// password:reset_requested. Token is the raw secret the host delivers to
// the user; it is never stored and never audited.
type TokenEvent struct {
	User      *storage.User
	Token     string
	ExpiresAt time.Time
}

func (e TokenEvent) AuditRecord() events.Record {
	rec := events.Record{
		Success:  true,
		Metadata: map[string]string{"expires_at": e.ExpiresAt.UTC().Format(time.RFC3339)},
	}
	if e.User != nil {
		rec.UserID = e.User.ID
	}
	return rec
}

// PasswordEvent is the payload of password:reset and password:changed.
type PasswordEvent struct {
	UserID          string
	RevokedSessions int
	IP              string
}

func (e PasswordEvent) AuditRecord() events.Record {
	return events.Record{
		UserID:   e.UserID,
		IP:       e.IP,
		Success:  true,
		Metadata: map[string]string{"revoked_sessions": strconv.Itoa(e.RevokedSessions)},
	}
}

// emit is best-effort: handler failures are isolated by the dispatcher.
func (e *Engine) emit(ctx context.Context, topic string, payload any) {
	e.events.Emit(ctx, topic, payload)
}
