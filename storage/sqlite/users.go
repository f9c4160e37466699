package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/storage"
)

const userColumns = `id, email, email_verified, name, image, password_hash, password_salt,
	verification_token_hash, verification_token_expires_at, verification_token_used,
	reset_token_hash, reset_token_expires_at, reset_token_used,
	failed_login_attempts, locked_until, created_at, updated_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type tokenColumns struct {
	hash      sql.NullString
	expiresAt sql.NullInt64
	used      int
}

func (c tokenColumns) token(typ storage.TokenType, userID string) *storage.Token {
	if !c.hash.Valid {
		return nil
	}
	return &storage.Token{
		Type:      typ,
		UserID:    userID,
		Hash:      c.hash.String,
		ExpiresAt: fromUnix(c.expiresAt.Int64),
		Used:      c.used != 0,
	}
}

func tokenArgs(t *storage.Token) (sql.NullString, sql.NullInt64, int) {
	if t == nil {
		return sql.NullString{}, sql.NullInt64{}, 0
	}
	return sql.NullString{String: t.Hash, Valid: true},
		sql.NullInt64{Int64: toUnix(t.ExpiresAt), Valid: true},
		boolInt(t.Used)
}

func scanUser(row rowScanner) (*storage.User, error) {
	var (
		u                      storage.User
		verified               int
		name, image            sql.NullString
		vt, rt                 tokenColumns
		lockedUntil, lastLogin sql.NullInt64
		createdAt, updatedAt   int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &verified, &name, &image, &u.PasswordHash, &u.PasswordSalt,
		&vt.hash, &vt.expiresAt, &vt.used,
		&rt.hash, &rt.expiresAt, &rt.used,
		&u.FailedLoginAttempts, &lockedUntil, &createdAt, &updatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}

	u.EmailVerified = verified != 0
	u.Name = stringPtr(name)
	u.Image = stringPtr(image)
	u.VerificationToken = vt.token(storage.TokenEmailVerification, u.ID)
	u.ResetToken = rt.token(storage.TokenPasswordReset, u.ID)
	u.LockedUntil = timePtr(lockedUntil)
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

type userStore struct{ s *Store }

func (r userStore) findOne(ctx context.Context, where string, arg any) (*storage.User, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func (r userStore) FindByID(ctx context.Context, id string) (*storage.User, error) {
	return r.findOne(ctx, `id = ?`, id)
}

func (r userStore) FindByEmail(ctx context.Context, email string) (*storage.User, error) {
	return r.findOne(ctx, `email = ?`, email)
}

func (r userStore) FindByVerificationToken(ctx context.Context, hash string) (*storage.User, error) {
	if hash == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, `verification_token_hash = ?`, hash)
}

func (r userStore) FindByResetToken(ctx context.Context, hash string) (*storage.User, error) {
	if hash == "" {
		return nil, storage.ErrNotFound
	}
	return r.findOne(ctx, `reset_token_hash = ?`, hash)
}

func (r userStore) Create(ctx context.Context, u *storage.User) error {
	vHash, vExp, vUsed := tokenArgs(u.VerificationToken)
	rHash, rExp, rUsed := tokenArgs(u.ResetToken)

	_, err := r.s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, boolInt(u.EmailVerified), nullString(u.Name), nullString(u.Image),
		u.PasswordHash, u.PasswordSalt,
		vHash, vExp, vUsed,
		rHash, rExp, rUsed,
		u.FailedLoginAttempts, nullTime(u.LockedUntil),
		toUnix(u.CreatedAt), toUnix(u.UpdatedAt), nullTime(u.LastLoginAt),
	)
	if err != nil {
		if isConstraint(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r userStore) Update(ctx context.Context, id string, patch storage.UserUpdate) (*storage.User, error) {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin user update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !patch.GuardHolds(current) {
		return nil, storage.ErrNotFound
	}

	next := current.Clone()
	patch.Apply(next, r.s.now())

	vHash, vExp, vUsed := tokenArgs(next.VerificationToken)
	rHash, rExp, rUsed := tokenArgs(next.ResetToken)

	query := `UPDATE users SET
		email = ?, email_verified = ?, name = ?, image = ?, password_hash = ?, password_salt = ?,
		verification_token_hash = ?, verification_token_expires_at = ?, verification_token_used = ?,
		reset_token_hash = ?, reset_token_expires_at = ?, reset_token_used = ?,
		failed_login_attempts = ?, locked_until = ?, updated_at = ?, last_login_at = ?
		WHERE id = ?`
	args := []any{
		next.Email, boolInt(next.EmailVerified), nullString(next.Name), nullString(next.Image),
		next.PasswordHash, next.PasswordSalt,
		vHash, vExp, vUsed,
		rHash, rExp, rUsed,
		next.FailedLoginAttempts, nullTime(next.LockedUntil), toUnix(next.UpdatedAt), nullTime(next.LastLoginAt),
		id,
	}
	if g := patch.IfToken; g != nil {
		switch g.Slot {
		case storage.SlotVerification:
			query += ` AND verification_token_hash = ? AND verification_token_used = 0`
		case storage.SlotReset:
			query += ` AND reset_token_hash = ? AND reset_token_used = 0`
		}
		args = append(args, g.Hash)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isConstraint(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	} else if n == 0 {
		return nil, storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}
	return next, nil
}

func (r userStore) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
