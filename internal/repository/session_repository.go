package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/model"
)

// SessionRepo persists refresh sessions (one 'refresh_token_hash' per row).
// Rows are only ever soft-revoked; nothing here deletes.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const insertSessionSQL = "INSERT INTO sessions (id, user_id, refresh_token_hash, expires_at, revoked, created_at) VALUES (?,?,?,?,?,?)"

// CreateSession inserts a session row.
func (r *SessionRepo) CreateSession(ctx context.Context, s model.Session) error {
	_, err := r.DB.ExecContext(ctx, insertSessionSQL,
		s.ID, s.UserID, s.RefreshTokenHash, s.ExpiresAt, s.Revoked, s.CreatedAt)
	return apperr.StoreUnavailable("insert session", err)
}

// FindSessionByTokenHash returns the session holding tokenHash whatever its
// state; the caller decides between revoked, expired and usable.
func (r *SessionRepo) FindSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, refresh_token_hash, expires_at, revoked, created_at FROM sessions WHERE refresh_token_hash=? LIMIT 1",
		tokenHash).Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &s.Revoked, &s.CreatedAt)
	return s, rowErr("find session", err)
}

// RevokeSession flips revoked for one session. It reports false when the
// row was already revoked or does not exist.
func (r *SessionRepo) RevokeSession(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked=1 WHERE id=? AND revoked=0", id)
	if err != nil {
		return false, apperr.StoreUnavailable("revoke session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.StoreUnavailable("revoke session", err)
	}
	return n == 1, nil
}

// RotateSession revokes oldID and inserts next in one transaction. The
// revoke is conditional on the row still being active, so of two concurrent
// rotations of the same session exactly one commits; the other gets
// ErrSessionNotActive and inserts nothing.
func (r *SessionRepo) RotateSession(ctx context.Context, oldID string, next model.Session) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.StoreUnavailable("rotate session", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET revoked=1 WHERE id=? AND revoked=0 AND expires_at > ?",
		oldID, time.Now().UTC())
	if err != nil {
		return apperr.StoreUnavailable("rotate session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreUnavailable("rotate session", err)
	}
	if n != 1 {
		return ErrSessionNotActive
	}

	if _, err := tx.ExecContext(ctx, insertSessionSQL,
		next.ID, next.UserID, next.RefreshTokenHash, next.ExpiresAt, next.Revoked, next.CreatedAt); err != nil {
		return apperr.StoreUnavailable("rotate session", err)
	}
	return apperr.StoreUnavailable("rotate session", tx.Commit())
}

// ListActiveSessions returns the user's unrevoked, unexpired sessions, newest first.
func (r *SessionRepo) ListActiveSessions(ctx context.Context, userID uint64) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, refresh_token_hash, expires_at, revoked, created_at FROM sessions WHERE user_id=? AND revoked=0 AND expires_at > ? ORDER BY created_at DESC",
		userID, time.Now().UTC())
	if err != nil {
		return nil, apperr.StoreUnavailable("list sessions", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &s.Revoked, &s.CreatedAt); err != nil {
			return nil, apperr.StoreUnavailable("list sessions", err)
		}
		out = append(out, s)
	}
	return out, apperr.StoreUnavailable("list sessions", rows.Err())
}

// RevokeAllSessions revokes all of the user's active sessions and returns
// how many were flipped.
func (r *SessionRepo) RevokeAllSessions(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked=1 WHERE user_id=? AND revoked=0 AND expires_at > ?",
		userID, time.Now().UTC())
	if err != nil {
		return 0, apperr.StoreUnavailable("revoke all sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.StoreUnavailable("revoke all sessions", err)
	}
	return n, nil
}
