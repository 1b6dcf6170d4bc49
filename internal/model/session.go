package model

import "time"

// SessionState is derived from a Session row at a point in time; it is
// never stored.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionRevoked SessionState = "revoked"
	SessionExpired SessionState = "expired"
)

// Session models an entry in the `sessions` table. Each session belongs to
// a user and holds the hash of exactly one issued refresh token; the plain
// token is never stored.
//
// Fields:
//
//	ID               – uuid primary key.
//	UserID           – owner of the session.
//	RefreshTokenHash – SHA-256 hex digest of the refresh token.
//	ExpiresAt        – absolute expiry.
//	Revoked          – soft-revocation flag; once true it never flips back.
//	CreatedAt        – timestamp of creation.
type Session struct {
	ID               string    // sessions.id
	UserID           uint64    // sessions.user_id
	RefreshTokenHash string    // sessions.refresh_token_hash
	ExpiresAt        time.Time // sessions.expires_at
	Revoked          bool      // sessions.revoked
	CreatedAt        time.Time // sessions.created_at
}

// State reports the session's lifecycle state at now. Revocation wins over
// expiry so that replaying a rotated token is reported as a revocation.
func (s Session) State(now time.Time) SessionState {
	switch {
	case s.Revoked:
		return SessionRevoked
	case !s.ExpiresAt.After(now):
		return SessionExpired
	default:
		return SessionActive
	}
}

// Usable reports whether the session can still be exchanged for tokens.
func (s Session) Usable(now time.Time) bool {
	return s.State(now) == SessionActive
}
