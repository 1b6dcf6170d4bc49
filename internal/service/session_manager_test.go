package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/model"
	"github.com/iliyamo/promptvault/internal/queue"
	"github.com/iliyamo/promptvault/internal/repository"
	"github.com/iliyamo/promptvault/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	mgr    *SessionManager
	store  *repository.MemoryStore
	events *recordingPublisher
	clock  *time.Time
}

func newFixture(t *testing.T, cfg ManagerConfig) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	tick := func() time.Time { return *clock }

	store := repository.NewMemoryStore().WithClock(tick)
	codec, err := utils.NewTokenCodec("test-secret", 30*time.Minute)
	require.NoError(t, err)
	codec = codec.WithClock(tick)

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.MinCost
	}
	events := &recordingPublisher{}
	mgr, err := NewSessionManager(store, store, codec, cfg, events, nil)
	require.NoError(t, err)
	mgr.WithClock(tick)
	return &fixture{mgr: mgr, store: store, events: events, clock: clock}
}

func (f *fixture) signupAndLogin(t *testing.T) LoginResult {
	t.Helper()
	ctx := context.Background()
	_, err := f.mgr.Signup(ctx, "Alice@Example.com ", "correct horse")
	require.NoError(t, err)
	res, err := f.mgr.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	return res
}

func TestSignup(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	ctx := context.Background()

	u, err := f.mgr.Signup(ctx, "  Bob@Example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.NotEqual(t, "pw", u.PasswordHash)

	_, err = f.mgr.Signup(ctx, "bob@example.com", "other")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = f.mgr.Signup(ctx, "", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.mgr.Signup(ctx, "c@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	active, err := f.mgr.ActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestLogin_IssuesTokens(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	res := f.signupAndLogin(t)

	assert.Len(t, res.Refresh.Raw, 43)
	assert.True(t, f.clock.Add(DefaultRefreshTTL).Equal(res.Refresh.Exp))

	sub, err := f.mgr.Codec().Verify(res.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sub)

	s, err := f.store.FindSessionByTokenHash(context.Background(), utils.HashToken(res.Refresh.Raw))
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, s.ID)
	assert.NotEqual(t, res.Refresh.Raw, s.RefreshTokenHash)
	assert.Equal(t, []string{queue.EventSignup, queue.EventLogin}, f.events.types())
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	f.signupAndLogin(t)
	ctx := context.Background()

	_, errUnknown := f.mgr.Login(ctx, "nobody@example.com", "correct horse")
	_, errWrong := f.mgr.Login(ctx, "alice@example.com", "wrong")
	assert.Equal(t, apperr.ErrInvalidCredentials, errUnknown)
	assert.Equal(t, errUnknown, errWrong)
}

func TestLogin_RejectsPasswordPastBcryptLimit(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	ctx := context.Background()
	stored := strings.Repeat("é", 36)
	_, err := f.mgr.Signup(ctx, "carol@example.com", stored)
	require.NoError(t, err)

	_, err = f.mgr.Login(ctx, "carol@example.com", stored+"anything-else")
	assert.Equal(t, apperr.ErrInvalidCredentials, err)

	_, err = f.mgr.Login(ctx, "carol@example.com", stored)
	assert.NoError(t, err)
}

func TestRefresh_RotatesOnce(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	login := f.signupAndLogin(t)
	ctx := context.Background()

	res, err := f.mgr.Refresh(ctx, login.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, login.Refresh.Raw, res.Refresh.Raw)
	assert.NotEqual(t, login.SessionID, res.SessionID)

	_, err = f.mgr.Refresh(ctx, login.Refresh.Raw)
	assert.ErrorIs(t, err, apperr.ErrRevoked)

	// The successor still works.
	_, err = f.mgr.Refresh(ctx, res.Refresh.Raw)
	require.NoError(t, err)

	assert.Contains(t, f.events.types(), queue.EventRefreshReuse)
}

func TestRefresh_UnknownAndEmpty(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	ctx := context.Background()

	_, err := f.mgr.Refresh(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
	_, err = f.mgr.Refresh(ctx, "never-issued")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t, ManagerConfig{RefreshTTL: time.Hour})
	login := f.signupAndLogin(t)

	*f.clock = f.clock.Add(time.Hour)
	_, err := f.mgr.Refresh(context.Background(), login.Refresh.Raw)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

// lapsingStore moves the clock past every session's expiry just before the
// rotation reaches the store.
type lapsingStore struct {
	*repository.MemoryStore
	clock *time.Time
}

func (s lapsingStore) RotateSession(ctx context.Context, oldID string, next model.Session) error {
	*s.clock = s.clock.Add(2 * time.Hour)
	return s.MemoryStore.RotateSession(ctx, oldID, next)
}

func TestRefresh_ExpiresDuringRotation(t *testing.T) {
	f := newFixture(t, ManagerConfig{RefreshTTL: time.Hour})
	login := f.signupAndLogin(t)

	mgr, err := NewSessionManager(f.store, lapsingStore{MemoryStore: f.store, clock: f.clock}, f.mgr.Codec(),
		ManagerConfig{RefreshTTL: time.Hour, BcryptCost: bcrypt.MinCost}, nil, nil)
	require.NoError(t, err)
	mgr.WithClock(func() time.Time { return *f.clock })

	_, err = mgr.Refresh(context.Background(), login.Refresh.Raw)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestRefresh_ReuseRevokesAllWhenConfigured(t *testing.T) {
	f := newFixture(t, ManagerConfig{RevokeAllOnReuse: true})
	login := f.signupAndLogin(t)
	ctx := context.Background()

	next, err := f.mgr.Refresh(ctx, login.Refresh.Raw)
	require.NoError(t, err)

	_, err = f.mgr.Refresh(ctx, login.Refresh.Raw)
	assert.ErrorIs(t, err, apperr.ErrRevoked)

	_, err = f.mgr.Refresh(ctx, next.Refresh.Raw)
	assert.ErrorIs(t, err, apperr.ErrRevoked)
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	login := f.signupAndLogin(t)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		revoked int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.mgr.Refresh(context.Background(), login.Refresh.Raw)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, apperr.ErrRevoked):
				revoked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, revoked)

	active, err := f.mgr.ActiveSessions(context.Background(), login.User.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	login := f.signupAndLogin(t)
	ctx := context.Background()

	require.NoError(t, f.mgr.Logout(ctx, login.Refresh.Raw))
	require.NoError(t, f.mgr.Logout(ctx, login.Refresh.Raw))
	require.NoError(t, f.mgr.Logout(ctx, "unknown"))
	require.NoError(t, f.mgr.Logout(ctx, ""))

	_, err := f.mgr.Refresh(ctx, login.Refresh.Raw)
	assert.ErrorIs(t, err, apperr.ErrRevoked)

	logouts := 0
	for _, typ := range f.events.types() {
		if typ == queue.EventLogout {
			logouts++
		}
	}
	assert.Equal(t, 1, logouts)
}

func TestRevokeAll(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	first := f.signupAndLogin(t)
	ctx := context.Background()

	tokens := []string{first.Refresh.Raw}
	for i := 0; i < 2; i++ {
		res, err := f.mgr.Login(ctx, "alice@example.com", "correct horse")
		require.NoError(t, err)
		tokens = append(tokens, res.Refresh.Raw)
	}

	n, err := f.mgr.RevokeAll(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, raw := range tokens {
		_, err := f.mgr.Refresh(ctx, raw)
		assert.ErrorIs(t, err, apperr.ErrRevoked)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	login := f.signupAndLogin(t)
	ctx := context.Background()

	u, err := f.mgr.Authenticate(ctx, login.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, u.ID)

	_, err = f.mgr.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	orphan, err := f.mgr.Codec().Mint("ghost@example.com")
	require.NoError(t, err)
	_, err = f.mgr.Authenticate(ctx, orphan.Token)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)

	*f.clock = f.clock.Add(31 * time.Minute)
	_, err = f.mgr.Authenticate(ctx, login.Access.Token)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestEventFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t, ManagerConfig{})
	f.events.err = errors.New("broker down")
	f.signupAndLogin(t)
}

// downStore fails every call with a driver-level error.
type downStore struct{}

var errDown = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")

func (downStore) Create(context.Context, string, string) (model.User, error) {
	return model.User{}, errDown
}
func (downStore) FindByEmail(context.Context, string) (model.User, error) {
	return model.User{}, errDown
}
func (downStore) FindByID(context.Context, uint64) (model.User, error) { return model.User{}, errDown }
func (downStore) CreateSession(context.Context, model.Session) error  { return errDown }
func (downStore) FindSessionByTokenHash(context.Context, string) (model.Session, error) {
	return model.Session{}, errDown
}
func (downStore) RevokeSession(context.Context, string) (bool, error) { return false, errDown }
func (downStore) RotateSession(context.Context, string, model.Session) error {
	return errDown
}
func (downStore) ListActiveSessions(context.Context, uint64) ([]model.Session, error) {
	return nil, errDown
}
func (downStore) RevokeAllSessions(context.Context, uint64) (int64, error) { return 0, errDown }

func TestStoreOutageIsDistinct(t *testing.T) {
	codec, err := utils.NewTokenCodec("test-secret", 0)
	require.NoError(t, err)
	mgr, err := NewSessionManager(downStore{}, downStore{}, codec, ManagerConfig{BcryptCost: bcrypt.MinCost}, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = mgr.Signup(ctx, "a@x.com", "pw")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDown)

	_, err = mgr.Login(ctx, "a@x.com", "pw")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = mgr.Refresh(ctx, "tok")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)

	assert.ErrorIs(t, mgr.Logout(ctx, "tok"), apperr.ErrStoreUnavailable)

	_, err = mgr.RevokeAll(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestNewSessionManager_RequiresStores(t *testing.T) {
	codec, err := utils.NewTokenCodec("s", 0)
	require.NoError(t, err)
	_, err = NewSessionManager(nil, downStore{}, codec, ManagerConfig{}, nil, nil)
	assert.Error(t, err)
}
