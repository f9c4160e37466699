// Package storagetest is a conformance suite for storage.Store backends.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/storage"
)

// Clocked is implemented by backends whose internal clock can be replaced.
// Counter-window tests are skipped for backends without it.
type Clocked interface {
	SetClock(now func() time.Time)
}

// Run exercises every contract behavior against stores produced by factory.
// Each subtest gets a fresh store.
func Run(t *testing.T, factory func(t *testing.T) storage.Store) {
	t.Run("UserCreateAndFind", func(t *testing.T) { testUserCreateAndFind(t, factory(t)) })
	t.Run("UserUniqueness", func(t *testing.T) { testUserUniqueness(t, factory(t)) })
	t.Run("UserUpdate", func(t *testing.T) { testUserUpdate(t, factory(t)) })
	t.Run("UserTokenGuard", func(t *testing.T) { testUserTokenGuard(t, factory(t)) })
	t.Run("UserDelete", func(t *testing.T) { testUserDelete(t, factory(t)) })
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, factory(t)) })
	t.Run("SessionDeleteExpired", func(t *testing.T) { testSessionDeleteExpired(t, factory(t)) })
	t.Run("RateLimitCounters", func(t *testing.T) { testRateLimitCounters(t, factory(t)) })
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newUser(id, email string) *storage.User {
	return &storage.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hash-" + id,
		PasswordSalt: "salt-" + id,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func newSession(id, userID string, expires time.Time) *storage.Session {
	return &storage.Session{
		ID:             id,
		UserID:         userID,
		ExpiresAt:      expires,
		CreatedAt:      base,
		LastAccessedAt: base,
		IPAddress:      "203.0.113.7",
		UserAgent:      "Mozilla/5.0",
		Device:         storage.Device{Browser: "Firefox", OS: "Linux", Class: storage.DeviceDesktop},
	}
}

func testUserCreateAndFind(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser("u1", "a@x.com")
	u.Name = strPtr("Alice")
	require.NoError(t, s.Users().Create(ctx, u))

	got, err := s.Users().FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "hash-u1", got.PasswordHash)
	assert.Equal(t, "salt-u1", got.PasswordSalt)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Alice", *got.Name)
	assert.Nil(t, got.Image)
	assert.Nil(t, got.LastLoginAt)
	assert.True(t, got.CreatedAt.Equal(base))

	got, err = s.Users().FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = s.Users().FindByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Users().FindByEmail(ctx, "nope@x.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Returned values are copies.
	got.Email = "mutated@x.com"
	again, err := s.Users().FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", again.Email)
}

func testUserUniqueness(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Users().Create(ctx, newUser("u1", "a@x.com")))

	err := s.Users().Create(ctx, newUser("u2", "a@x.com"))
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = s.Users().Create(ctx, newUser("u1", "b@x.com"))
	assert.ErrorIs(t, err, storage.ErrConflict)

	require.NoError(t, s.Users().Create(ctx, newUser("u3", "c@x.com")))
	_, err = s.Users().Update(ctx, "u3", storage.UserUpdate{Email: strPtr("a@x.com")})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func testUserUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if c, ok := s.(Clocked); ok {
		c.SetClock(func() time.Time { return base.Add(time.Hour) })
	}
	u := newUser("u1", "a@x.com")
	u.Image = strPtr("https://img")
	require.NoError(t, s.Users().Create(ctx, u))

	verified := true
	attempts := 3
	locked := base.Add(15 * time.Minute)
	login := base.Add(time.Minute)
	updated, err := s.Users().Update(ctx, "u1", storage.UserUpdate{
		Name:                strPtr("Alice"),
		EmailVerified:       &verified,
		PasswordHash:        strPtr("new-hash"),
		PasswordSalt:        strPtr("new-salt"),
		FailedLoginAttempts: &attempts,
		LockedUntil:         &locked,
		LastLoginAt:         &login,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", *updated.Name)
	assert.Equal(t, "https://img", *updated.Image, "unset fields are kept")
	assert.True(t, updated.EmailVerified)

	got, err := s.Users().FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, "new-salt", got.PasswordSalt)
	assert.Equal(t, 3, got.FailedLoginAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.LockedUntil.Equal(locked))
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(login))
	assert.True(t, got.UpdatedAt.After(base), "update stamps UpdatedAt")

	zero := 0
	_, err = s.Users().Update(ctx, "u1", storage.UserUpdate{FailedLoginAttempts: &zero, ClearLockedUntil: true})
	require.NoError(t, err)
	got, err = s.Users().FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LockedUntil)

	_, err = s.Users().Update(ctx, "missing", storage.UserUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUserTokenGuard(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Users().Create(ctx, newUser("u1", "a@x.com")))

	tok := &storage.Token{Type: storage.TokenEmailVerification, UserID: "u1", Hash: "vhash", ExpiresAt: base.Add(time.Hour)}
	_, err := s.Users().Update(ctx, "u1", storage.UserUpdate{VerificationToken: tok})
	require.NoError(t, err)

	found, err := s.Users().FindByVerificationToken(ctx, "vhash")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)
	require.NotNil(t, found.VerificationToken)
	assert.Equal(t, storage.TokenEmailVerification, found.VerificationToken.Type)
	assert.True(t, found.VerificationToken.ExpiresAt.Equal(base.Add(time.Hour)))
	assert.False(t, found.VerificationToken.Used)

	_, err = s.Users().FindByResetToken(ctx, "vhash")
	assert.ErrorIs(t, err, storage.ErrNotFound, "token slots are separate")
	_, err = s.Users().FindByVerificationToken(ctx, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	verified := true
	consume := storage.UserUpdate{
		EmailVerified:          &verified,
		ClearVerificationToken: true,
		IfToken:                &storage.TokenGuard{Slot: storage.SlotVerification, Hash: "vhash"},
	}
	_, err = s.Users().Update(ctx, "u1", consume)
	require.NoError(t, err)

	_, err = s.Users().Update(ctx, "u1", consume)
	assert.ErrorIs(t, err, storage.ErrNotFound, "a consumed token cannot be replayed")

	_, err = s.Users().FindByVerificationToken(ctx, "vhash")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	used := &storage.Token{Type: storage.TokenPasswordReset, UserID: "u1", Hash: "rhash", ExpiresAt: base.Add(time.Hour), Used: true}
	_, err = s.Users().Update(ctx, "u1", storage.UserUpdate{ResetToken: used})
	require.NoError(t, err)
	_, err = s.Users().Update(ctx, "u1", storage.UserUpdate{
		PasswordHash: strPtr("x"),
		IfToken:      &storage.TokenGuard{Slot: storage.SlotReset, Hash: "rhash"},
	})
	assert.ErrorIs(t, err, storage.ErrNotFound, "a used token fails the guard")

	got, err := s.Users().FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hash-u1", got.PasswordHash, "failed guard leaves the record untouched")
}

func testUserDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Users().Create(ctx, newUser("u1", "a@x.com")))
	require.NoError(t, s.Users().Delete(ctx, "u1"))

	_, err := s.Users().FindByID(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Users().Delete(ctx, "u1"), storage.ErrNotFound)

	// The email is free again.
	require.NoError(t, s.Users().Create(ctx, newUser("u2", "a@x.com")))
}

func testSessionLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	sessions := s.Sessions()

	first := newSession("s1", "u1", base.Add(time.Hour))
	second := newSession("s2", "u1", base.Add(time.Hour))
	second.CreatedAt = base.Add(time.Second)
	require.NoError(t, sessions.Create(ctx, second))
	require.NoError(t, sessions.Create(ctx, first))
	require.NoError(t, sessions.Create(ctx, newSession("s3", "u2", base.Add(time.Hour))))
	assert.ErrorIs(t, sessions.Create(ctx, newSession("s1", "u9", base)), storage.ErrConflict)

	got, err := sessions.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.ExpiresAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, "203.0.113.7", got.IPAddress)
	assert.Equal(t, storage.Device{Browser: "Firefox", OS: "Linux", Class: storage.DeviceDesktop}, got.Device)

	list, err := sessions.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].ID, "ordered by creation")
	assert.Equal(t, "s2", list[1].ID)

	touched := base.Add(5 * time.Minute)
	require.NoError(t, sessions.UpdateLastAccessed(ctx, "s1", touched))
	got, err = sessions.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.LastAccessedAt.Equal(touched))
	assert.ErrorIs(t, sessions.UpdateLastAccessed(ctx, "nope", touched), storage.ErrNotFound)

	require.NoError(t, sessions.Delete(ctx, "s1"))
	_, err = sessions.FindByID(ctx, "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, sessions.Delete(ctx, "s1"), storage.ErrNotFound)

	n, err := sessions.DeleteByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = sessions.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = sessions.FindByID(ctx, "s3")
	assert.NoError(t, err, "other users' sessions survive")
}

func testSessionDeleteExpired(t *testing.T, s storage.Store) {
	ctx := context.Background()
	sessions := s.Sessions()
	require.NoError(t, sessions.Create(ctx, newSession("old1", "u1", base.Add(-time.Minute))))
	require.NoError(t, sessions.Create(ctx, newSession("old2", "u2", base)))
	require.NoError(t, sessions.Create(ctx, newSession("live", "u1", base.Add(time.Minute))))

	n, err := sessions.DeleteExpired(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = sessions.DeleteExpired(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second sweep is a no-op")

	_, err = sessions.FindByID(ctx, "live")
	assert.NoError(t, err)
}

func testRateLimitCounters(t *testing.T, s storage.Store) {
	rl, ok := s.(storage.RateLimitStore)
	if !ok {
		t.Skip("backend has no native rate-limit counters")
	}
	c, ok := s.(Clocked)
	if !ok {
		t.Skip("backend clock cannot be controlled")
	}
	ctx := context.Background()
	now := base
	c.SetClock(func() time.Time { return now })

	for i := 1; i <= 3; i++ {
		counter, err := rl.IncrementRateLimit(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
		assert.Equal(t, i, counter.Count)
		assert.True(t, counter.ResetAt.Equal(base.Add(time.Minute)))
	}
	_, err := rl.IncrementRateLimit(ctx, "other", time.Hour, 3)
	require.NoError(t, err)

	now = base.Add(time.Minute)
	counter, err := rl.IncrementRateLimit(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.Count, "a new window starts once resetAt has passed")
	assert.True(t, counter.ResetAt.Equal(now.Add(time.Minute)))

	now = base.Add(2 * time.Minute)
	n, err := rl.CleanupRateLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = rl.CleanupRateLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
