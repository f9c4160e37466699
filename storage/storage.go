package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record is absent or a guarded update's
	// precondition no longer holds.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a unique constraint (email, id) is violated.
	ErrConflict = errors.New("storage: conflict")
)

// UserStore persists users. Find methods return ErrNotFound on absence.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByVerificationToken(ctx context.Context, hash string) (*User, error)
	FindByResetToken(ctx context.Context, hash string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, id string, patch UserUpdate) (*User, error)
	Delete(ctx context.Context, id string) error
}

// SessionStore persists sessions. Backends may return expired sessions;
// the engine treats them as absent.
type SessionStore interface {
	FindByID(ctx context.Context, id string) (*Session, error)
	FindByUserID(ctx context.Context, userID string) ([]*Session, error)
	Create(ctx context.Context, s *Session) error
	UpdateLastAccessed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Store is the persistence contract the engine depends on.
type Store interface {
	Users() UserStore
	Sessions() SessionStore
}

// RateLimitStore is optionally implemented by a Store that can hold
// fixed-window counters natively.
type RateLimitStore interface {
	// IncrementRateLimit counts one hit for key, starting a new window when
	// the previous one has ended, and returns the counter after the hit.
	IncrementRateLimit(ctx context.Context, key string, window time.Duration, max int) (RateLimitCounter, error)
	// CleanupRateLimits deletes counters whose window has ended.
	CleanupRateLimits(ctx context.Context) (int, error)
}

// Combine returns a Store serving users and sessions from separate
// backends, e.g. users in SQL and sessions in Redis.
func Combine(users UserStore, sessions SessionStore) Store {
	return combined{users: users, sessions: sessions}
}

type combined struct {
	users    UserStore
	sessions SessionStore
}

func (c combined) Users() UserStore       { return c.users }
func (c combined) Sessions() SessionStore { return c.sessions }
