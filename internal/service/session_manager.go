// Package service holds the session manager: signup, login, refresh-token
// rotation, logout and bulk revocation on top of injected credential and
// session stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/model"
	"github.com/iliyamo/promptvault/internal/queue"
	"github.com/iliyamo/promptvault/internal/repository"
	"github.com/iliyamo/promptvault/internal/utils"
)

// ErrInvalidInput is returned by Signup for an empty email or a password
// bcrypt cannot take. Handlers answer it with 400.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultRefreshTTL   = 7 * 24 * time.Hour
	DefaultStoreTimeout = 5 * time.Second

	eventTimeout = 2 * time.Second
	// dummyPassword is hashed once at construction so that a login for an
	// unknown email still pays for one bcrypt comparison.
	dummyPassword = "promptvault-login-timing-equalizer"
)

// ManagerConfig tunes the session manager. Zero values select defaults.
type ManagerConfig struct {
	RefreshTTL   time.Duration
	BcryptCost   int
	StoreTimeout time.Duration
	// RevokeAllOnReuse revokes every session of a user when one of their
	// already-revoked refresh tokens is presented again.
	RevokeAllOnReuse bool
}

// LoginResult is returned once per successful login. Refresh.Raw is never
// stored and cannot be recovered later.
type LoginResult struct {
	User      model.User
	Access    utils.AccessToken
	Refresh   utils.RefreshToken
	SessionID string
}

// RefreshResult carries the tokens of the successor session.
type RefreshResult struct {
	User      model.User
	Access    utils.AccessToken
	Refresh   utils.RefreshToken
	SessionID string
}

// SessionManager implements the session lifecycle. It is safe for
// concurrent use; all shared state lives in the stores.
type SessionManager struct {
	users     CredentialStore
	sessions  SessionStore
	codec     *utils.TokenCodec
	events    EventPublisher
	log       *zap.Logger
	cfg       ManagerConfig
	now       func() time.Time
	dummyHash string
}

// NewSessionManager wires the manager. events and log may be nil.
func NewSessionManager(users CredentialStore, sessions SessionStore, codec *utils.TokenCodec,
	cfg ManagerConfig, events EventPublisher, log *zap.Logger) (*SessionManager, error) {
	if users == nil || sessions == nil || codec == nil {
		return nil, errors.New("session manager: stores and codec are required")
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := utils.HashPassword(dummyPassword, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("session manager: dummy hash: %w", err)
	}
	return &SessionManager{
		users:     users,
		sessions:  sessions,
		codec:     codec,
		events:    events,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// WithClock replaces the time source used for session expiry.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// Codec exposes the access token codec the manager mints with.
func (m *SessionManager) Codec() *utils.TokenCodec { return m.codec }

// RefreshTTL reports the lifetime given to new sessions.
func (m *SessionManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// Signup registers a credential. It does not create a session.
func (m *SessionManager) Signup(ctx context.Context, email, password string) (model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	hash, err := utils.HashPassword(password, m.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordEmpty) || errors.Is(err, utils.ErrPasswordTooLong) {
			return model.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return model.User{}, err
	}

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	u, err := m.users.Create(ctx, email, hash)
	if err != nil {
		return model.User{}, storeErr("signup", err)
	}
	m.publish(ctx, queue.AuthEvent{Type: queue.EventSignup, UserID: u.ID, Email: u.Email})
	return u, nil
}

// Login checks a password and opens a new session. Unknown email and wrong
// password both return apperr.ErrInvalidCredentials after one bcrypt
// comparison each.
func (m *SessionManager) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = model.NormalizeEmail(email)

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	u, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.VerifyPassword(m.dummyHash, password)
			return LoginResult{}, apperr.ErrInvalidCredentials
		}
		return LoginResult{}, storeErr("login", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, apperr.ErrInvalidCredentials
	}

	access, err := m.codec.Mint(u.Email)
	if err != nil {
		return LoginResult{}, err
	}
	rt, err := utils.NewRefreshToken(m.now(), m.cfg.RefreshTTL)
	if err != nil {
		return LoginResult{}, err
	}
	s := m.newSession(u.ID, rt)
	if err := m.sessions.CreateSession(ctx, s); err != nil {
		return LoginResult{}, storeErr("login", err)
	}

	m.publish(ctx, queue.AuthEvent{Type: queue.EventLogin, UserID: u.ID, Email: u.Email, SessionID: s.ID})
	return LoginResult{User: u, Access: access, Refresh: rt, SessionID: s.ID}, nil
}

// Refresh exchanges a refresh token for a new access token and a new
// refresh token. The presented token's session is revoked in the same
// store operation that creates its successor, so a token works once.
func (m *SessionManager) Refresh(ctx context.Context, raw string) (RefreshResult, error) {
	if raw == "" {
		return RefreshResult{}, apperr.ErrInvalidToken
	}

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	s, err := m.sessions.FindSessionByTokenHash(ctx, utils.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResult{}, apperr.ErrInvalidToken
		}
		return RefreshResult{}, storeErr("refresh", err)
	}

	now := m.now()
	switch s.State(now) {
	case model.SessionRevoked:
		m.onReuse(ctx, s)
		return RefreshResult{}, apperr.ErrRevoked
	case model.SessionExpired:
		return RefreshResult{}, apperr.ErrExpired
	}

	u, err := m.users.FindByID(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResult{}, apperr.ErrInvalidToken
		}
		return RefreshResult{}, storeErr("refresh", err)
	}

	access, err := m.codec.Mint(u.Email)
	if err != nil {
		return RefreshResult{}, err
	}
	rt, err := utils.NewRefreshToken(now, m.cfg.RefreshTTL)
	if err != nil {
		return RefreshResult{}, err
	}
	next := m.newSession(u.ID, rt)
	if err := m.sessions.RotateSession(ctx, s.ID, next); err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			// Either it lapsed since the lookup or another request rotated
			// or revoked it first.
			if s.State(m.now()) == model.SessionExpired {
				return RefreshResult{}, apperr.ErrExpired
			}
			return RefreshResult{}, apperr.ErrRevoked
		}
		return RefreshResult{}, storeErr("refresh", err)
	}

	m.publish(ctx, queue.AuthEvent{Type: queue.EventRefresh, UserID: u.ID, Email: u.Email, SessionID: next.ID})
	return RefreshResult{User: u, Access: access, Refresh: rt, SessionID: next.ID}, nil
}

// Logout revokes the session behind raw. Unknown, revoked and expired
// tokens are not errors; only a store failure is.
func (m *SessionManager) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	s, err := m.sessions.FindSessionByTokenHash(ctx, utils.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storeErr("logout", err)
	}
	if !s.Usable(m.now()) {
		return nil
	}
	flipped, err := m.sessions.RevokeSession(ctx, s.ID)
	if err != nil {
		return storeErr("logout", err)
	}
	if flipped {
		m.publish(ctx, queue.AuthEvent{Type: queue.EventLogout, UserID: s.UserID, SessionID: s.ID})
	}
	return nil
}

// RevokeAll revokes every active session of userID and returns the count.
func (m *SessionManager) RevokeAll(ctx context.Context, userID uint64) (int64, error) {
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	n, err := m.sessions.RevokeAllSessions(ctx, userID)
	if err != nil {
		return 0, storeErr("revoke all", err)
	}
	m.publish(ctx, queue.AuthEvent{Type: queue.EventRevokeAll, UserID: userID, Count: n})
	return n, nil
}

// ActiveSessions lists the user's usable sessions, newest first.
func (m *SessionManager) ActiveSessions(ctx context.Context, userID uint64) ([]model.Session, error) {
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	list, err := m.sessions.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	return list, nil
}

// Authenticate resolves an access token to its credential.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (model.User, error) {
	sub, err := m.codec.Verify(accessToken)
	if err != nil {
		return model.User{}, err
	}
	return m.UserByEmail(ctx, sub)
}

// UserByEmail loads the credential behind a verified token subject. A
// subject that no longer exists is reported as apperr.ErrInvalidToken.
func (m *SessionManager) UserByEmail(ctx context.Context, email string) (model.User, error) {
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()
	u, err := m.users.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, apperr.ErrInvalidToken
		}
		return model.User{}, storeErr("load user", err)
	}
	return u, nil
}

// onReuse handles a revoked refresh token being presented again.
func (m *SessionManager) onReuse(ctx context.Context, s model.Session) {
	m.log.Warn("revoked refresh token presented",
		zap.String("session_id", s.ID), zap.Uint64("user_id", s.UserID))
	ev := queue.AuthEvent{Type: queue.EventRefreshReuse, UserID: s.UserID, SessionID: s.ID}
	if m.cfg.RevokeAllOnReuse {
		n, err := m.sessions.RevokeAllSessions(ctx, s.UserID)
		if err != nil {
			m.log.Error("revoke all after reuse failed", zap.Uint64("user_id", s.UserID), zap.Error(err))
		}
		ev.Count = n
	}
	m.publish(ctx, ev)
}

func (m *SessionManager) newSession(userID uint64, rt utils.RefreshToken) model.Session {
	return model.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		RefreshTokenHash: utils.HashToken(rt.Raw),
		ExpiresAt:        rt.Exp,
		CreatedAt:        m.now().UTC(),
	}
}

func (m *SessionManager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.StoreTimeout)
}

// publish sends ev without letting a broker failure reach the caller. It
// detaches from ctx cancellation so an event still goes out when the
// request finishes first.
func (m *SessionManager) publish(ctx context.Context, ev queue.AuthEvent) {
	ev.OccurredAt = m.now().UTC().Format(time.RFC3339)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := m.events.Publish(ctx, ev); err != nil {
		m.log.Warn("auth event publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// storeErr passes domain kinds and already-classified outages through and
// classifies anything else as a store outage.
func storeErr(op string, err error) error {
	if apperr.IsDomain(err) || errors.Is(err, apperr.ErrStoreUnavailable) {
		return err
	}
	return apperr.StoreUnavailable(op, err)
}
