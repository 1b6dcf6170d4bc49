package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/model"
)

// MemoryStore keeps credentials and sessions in process memory. It backs
// STORE_DRIVER=memory for local development and the service and handler
// tests. Every instance is independent; there is no shared package state.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]model.User
	byEmail  map[string]uint64
	sessions map[string]model.Session
	byHash   map[string]string
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uint64]model.User),
		byEmail:  make(map[string]uint64),
		sessions: make(map[string]model.Session),
		byHash:   make(map[string]string),
		now:      time.Now,
	}
}

// WithClock sets the time source used to decide whether a session is active.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryStore) Create(_ context.Context, email, passwordHash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return model.User{}, apperr.ErrAlreadyExists
	}
	m.nextID++
	u := model.User{ID: m.nextID, Email: email, PasswordHash: passwordHash, CreatedAt: m.now().UTC()}
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	return u, nil
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *MemoryStore) FindByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(s)
	return nil
}

func (m *MemoryStore) insertLocked(s model.Session) {
	m.sessions[s.ID] = s
	m.byHash[s.RefreshTokenHash] = s.ID
}

func (m *MemoryStore) FindSessionByTokenHash(_ context.Context, tokenHash string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[tokenHash]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return m.sessions[id], nil
}

func (m *MemoryStore) RevokeSession(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Revoked {
		return false, nil
	}
	s.Revoked = true
	m.sessions[id] = s
	return true, nil
}

// RotateSession holds the store lock across check, revoke and insert, which
// gives the same single-winner guarantee as the SQL conditional update.
func (m *MemoryStore) RotateSession(_ context.Context, oldID string, next model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[oldID]
	if !ok || !s.Usable(m.now()) {
		return ErrSessionNotActive
	}
	s.Revoked = true
	m.sessions[oldID] = s
	m.insertLocked(next)
	return nil
}

func (m *MemoryStore) ListActiveSessions(_ context.Context, userID uint64) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []model.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.Usable(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RevokeAllSessions(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID && s.Usable(now) {
			s.Revoked = true
			m.sessions[id] = s
			n++
		}
	}
	return n, nil
}
