package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

const sessionColumns = `id, user_id, expires_at, created_at, last_accessed_at,
	ip_address, user_agent, device_browser, device_os, device_class`

func scanSession(row rowScanner) (*storage.Session, error) {
	var (
		s                                storage.Session
		expiresAt, createdAt, lastAccess int64
		class                            string
	)
	err := row.Scan(&s.ID, &s.UserID, &expiresAt, &createdAt, &lastAccess,
		&s.IPAddress, &s.UserAgent, &s.Device.Browser, &s.Device.OS, &class)
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = fromUnix(expiresAt)
	s.CreatedAt = fromUnix(createdAt)
	s.LastAccessedAt = fromUnix(lastAccess)
	s.Device.Class = storage.DeviceClass(class)
	return &s, nil
}

type sessionStore struct{ s *Store }

func (r sessionStore) FindByID(ctx context.Context, id string) (*storage.Session, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func (r sessionStore) FindByUserID(ctx context.Context, userID string) ([]*storage.Session, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*storage.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return out, nil
}

func (r sessionStore) Create(ctx context.Context, sess *storage.Session) error {
	_, err := r.s.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, toUnix(sess.ExpiresAt), toUnix(sess.CreatedAt), toUnix(sess.LastAccessedAt),
		sess.IPAddress, sess.UserAgent, sess.Device.Browser, sess.Device.OS, string(sess.Device.Class),
	)
	if err != nil {
		if isConstraint(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r sessionStore) UpdateLastAccessed(ctx context.Context, id string, at time.Time) error {
	res, err := r.s.db.ExecContext(ctx, `UPDATE sessions SET last_accessed_at = ? WHERE id = ?`, toUnix(at), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return requireAffected(res)
}

func (r sessionStore) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireAffected(res)
}

func (r sessionStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	return r.deleteWhere(ctx, `user_id = ?`, userID)
}

func (r sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.deleteWhere(ctx, `expires_at <= ?`, toUnix(now))
}

func (r sessionStore) deleteWhere(ctx context.Context, where string, arg any) (int, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(n), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// IncrementRateLimit implements storage.RateLimitStore with a single upsert.
func (s *Store) IncrementRateLimit(ctx context.Context, key string, window time.Duration, _ int) (storage.RateLimitCounter, error) {
	now := toUnix(s.now())
	reset := now + int64(window)

	var count int
	var resetAt int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_limits (key, count, reset_at) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN rate_limits.reset_at <= ? THEN 1 ELSE rate_limits.count + 1 END,
			reset_at = CASE WHEN rate_limits.reset_at <= ? THEN excluded.reset_at ELSE rate_limits.reset_at END
		RETURNING count, reset_at`,
		key, reset, now, now,
	).Scan(&count, &resetAt)
	if err != nil {
		return storage.RateLimitCounter{}, fmt.Errorf("failed to increment rate limit[%s]: %w", key, err)
	}
	return storage.RateLimitCounter{Count: count, ResetAt: fromUnix(resetAt)}, nil
}

// CleanupRateLimits implements storage.RateLimitStore.
func (s *Store) CleanupRateLimits(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE reset_at <= ?`, toUnix(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limits: %w", err)
	}
	return int(n), nil
}
