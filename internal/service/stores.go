package service

import (
	"context"

	"github.com/iliyamo/promptvault/internal/model"
)

// CredentialStore persists users. Implementations return
// repository.ErrNotFound for a missing row, apperr.ErrAlreadyExists for a
// duplicate email and wrap infrastructure failures with
// apperr.StoreUnavailable.
type CredentialStore interface {
	Create(ctx context.Context, email, passwordHash string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
}

// SessionStore persists refresh sessions.
//
// RotateSession must revoke oldID and insert next atomically, and only when
// oldID is still active; otherwise it returns repository.ErrSessionNotActive
// and changes nothing. RevokeSession reports whether it flipped the row.
type SessionStore interface {
	CreateSession(ctx context.Context, s model.Session) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	RevokeSession(ctx context.Context, id string) (bool, error)
	RotateSession(ctx context.Context, oldID string, next model.Session) error
	ListActiveSessions(ctx context.Context, userID uint64) ([]model.Session, error)
	RevokeAllSessions(ctx context.Context, userID uint64) (int64, error)
}
