package auth

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/token"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(value))
	copy(out, value)
	m.data[key] = out
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fakeBackend struct {
	pair       *domain.TokenPair
	loginErr   error
	profile    *domain.UserProfile
	profileErr error

	lastLogin    [2]string
	lastChange   [2]string
	lastVerify   [2]string
	lastReset    [3]string
	resetToken   string
	passwordErrs error
}

func (f *fakeBackend) Login(_ context.Context, username, password string) (*domain.TokenPair, error) {
	f.lastLogin = [2]string{username, password}
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.pair, nil
}

func (f *fakeBackend) Me(context.Context) (*domain.UserProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeBackend) ChangePassword(_ context.Context, oldPassword, newPassword string) error {
	f.lastChange = [2]string{oldPassword, newPassword}
	return f.passwordErrs
}

func (f *fakeBackend) RequestPasswordReset(_ context.Context, email string) error {
	f.lastVerify = [2]string{email, ""}
	return f.passwordErrs
}

func (f *fakeBackend) VerifyResetCode(_ context.Context, email, code string) (string, error) {
	f.lastVerify = [2]string{email, code}
	if f.passwordErrs != nil {
		return "", f.passwordErrs
	}
	return f.resetToken, nil
}

func (f *fakeBackend) ResetPassword(_ context.Context, email, resetToken, newPassword string) error {
	f.lastReset = [3]string{email, resetToken, newPassword}
	return f.passwordErrs
}

type eventCounter struct {
	mu sync.Mutex
	n  int
}

func (c *eventCounter) bump(_ ...interface{}) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *eventCounter) seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type authEnv struct {
	svc     Service
	kv      *memKV
	store   *cache.Store
	tokens  token.Service
	backend *fakeBackend
	logins  *eventCounter
	logouts *eventCounter
}

func newTestAuth(t *testing.T) *authEnv {
	t.Helper()
	log := logger.Mock()
	kv := newMemKV()
	cfg := &domain.Config{
		VaultSecret: "test-secret",
		Cache:       domain.CacheConfig{TTLMinutes: 30},
	}
	store := cache.NewStore(context.Background(), log, kv, cfg)
	tokens := token.NewService(log, kv, cfg)
	backend := &fakeBackend{
		pair:    &domain.TokenPair{Access: "access-1", Refresh: "refresh-1"},
		profile: &domain.UserProfile{ID: 4, Username: "brian", Email: "brian@hamu.co.ke"},
	}

	bus := EventBus.New()
	logins := &eventCounter{}
	logouts := &eventCounter{}
	require.NoError(t, bus.Subscribe(domain.EventAuthLogin, logins.bump))
	require.NoError(t, bus.Subscribe(domain.EventAuthLogout, logouts.bump))

	return &authEnv{
		svc:     NewService(log, bus, tokens, backend, store),
		kv:      kv,
		store:   store,
		tokens:  tokens,
		backend: backend,
		logins:  logins,
		logouts: logouts,
	}
}

func TestService_Login(t *testing.T) {
	env := newTestAuth(t)
	ctx := context.Background()

	profile, err := env.svc.Login(ctx, "brian", "hunter2")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "brian", profile.Username)

	assert.Equal(t, [2]string{"brian", "hunter2"}, env.backend.lastLogin)
	assert.Equal(t, "access-1", env.tokens.Access())
	assert.Equal(t, "refresh-1", env.tokens.Refresh())
	assert.True(t, env.svc.Authenticated())
	assert.Equal(t, 1, env.logins.seen())

	cached, ok := env.store.Get(ctx, "user-profile")
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Contains(t, string(cached[0]), "brian@hamu.co.ke")
}

func TestService_Login_BadCredentials(t *testing.T) {
	env := newTestAuth(t)
	env.backend.loginErr = &domain.APIError{
		Kind:       domain.KindClient,
		StatusCode: 401,
		Message:    "No active account found with the given credentials",
	}

	profile, err := env.svc.Login(context.Background(), "brian", "wrong")
	require.Error(t, err)
	assert.Nil(t, profile)
	assert.False(t, env.svc.Authenticated())
	assert.Zero(t, env.logins.seen())
}

func TestService_Login_ProfileFetchFailureStillLogsIn(t *testing.T) {
	env := newTestAuth(t)
	env.backend.profileErr = &domain.APIError{Kind: domain.KindUnreachable, Message: "dial tcp: i/o timeout"}

	profile, err := env.svc.Login(context.Background(), "brian", "hunter2")
	require.NoError(t, err)
	assert.Nil(t, profile)
	assert.True(t, env.svc.Authenticated())
	assert.Equal(t, 1, env.logins.seen())

	_, ok := env.store.Get(context.Background(), "user-profile")
	assert.False(t, ok)
}

func TestService_Logout(t *testing.T) {
	env := newTestAuth(t)
	ctx := context.Background()

	_, err := env.svc.Login(ctx, "brian", "hunter2")
	require.NoError(t, err)
	require.NoError(t, env.store.Set(ctx, "shops", []json.RawMessage{json.RawMessage(`{"id":1}`)}))
	require.NoError(t, env.kv.Set(ctx, domain.QueueKey, []byte(`[{"id":"q1"}]`)))

	require.NoError(t, env.svc.Logout(ctx))

	assert.False(t, env.svc.Authenticated())
	assert.Equal(t, 1, env.logouts.seen())

	_, ok := env.store.Get(ctx, "shops")
	assert.False(t, ok)
	_, ok = env.store.Get(ctx, "user-profile")
	assert.False(t, ok)
	// queued mutations are user data and must survive the wipe
	assert.True(t, env.kv.has(domain.QueueKey))
}

func TestService_Restore(t *testing.T) {
	env := newTestAuth(t)
	ctx := context.Background()
	require.NoError(t, env.tokens.Save(ctx, "access-9", "refresh-9"))

	// fresh service over the same store, as after an app restart
	restored := token.NewService(logger.Mock(), env.kv, &domain.Config{VaultSecret: "test-secret"})
	bus := EventBus.New()
	logins := &eventCounter{}
	require.NoError(t, bus.Subscribe(domain.EventAuthLogin, logins.bump))
	svc := NewService(logger.Mock(), bus, restored, env.backend, env.store)

	require.True(t, svc.Restore(ctx))
	assert.True(t, svc.Authenticated())
	assert.Equal(t, "access-9", restored.Access())
	assert.Equal(t, 1, logins.seen())
}

func TestService_Restore_EmptyVault(t *testing.T) {
	env := newTestAuth(t)

	assert.False(t, env.svc.Restore(context.Background()))
	assert.False(t, env.svc.Authenticated())
	assert.Zero(t, env.logins.seen())
}

func TestService_PasswordFlows(t *testing.T) {
	env := newTestAuth(t)
	ctx := context.Background()
	env.backend.resetToken = "reset-token-1"

	require.NoError(t, env.svc.ChangePassword(ctx, "hunter2", "hunter3"))
	assert.Equal(t, [2]string{"hunter2", "hunter3"}, env.backend.lastChange)

	tokenOut, err := env.svc.VerifyResetCode(ctx, "brian@hamu.co.ke", "482913")
	require.NoError(t, err)
	assert.Equal(t, "reset-token-1", tokenOut)

	require.NoError(t, env.svc.ResetPassword(ctx, "brian@hamu.co.ke", tokenOut, "hunter4"))
	assert.Equal(t, [3]string{"brian@hamu.co.ke", "reset-token-1", "hunter4"}, env.backend.lastReset)
}
