package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/credstore"
	"github.com/nkiryanov/courierdash/internal/session"
	"github.com/nkiryanov/courierdash/internal/testutil"
	"github.com/nkiryanov/courierdash/internal/testutil/fakeapi"
)

const (
	testEmail    = "owner@example.com"
	testPassword = "secret-pass"
)

type testEnv struct {
	srv       *fakeapi.Server
	clock     *testutil.Clock
	durable   *credstore.MemoryBackend
	ephemeral *credstore.MemoryBackend
	store     *credstore.Store
	state     *session.State
	svc       *Service
}

func newTestEnv(t *testing.T, opts ...fakeapi.Option) *testEnv {
	t.Helper()

	clock := testutil.NewClock()
	srv := fakeapi.New(t, append([]fakeapi.Option{fakeapi.WithClock(clock.Now)}, opts...)...)
	srv.AddAccount(testEmail, testPassword)

	durable, ephemeral := credstore.NewMemoryBackend(), credstore.NewMemoryBackend()
	store := credstore.NewStore(durable, ephemeral, clock.Now, nil)
	state := session.NewState(store, clock.Now)

	svc, err := NewService(Config{Clock: clock.Now}, api.NewClient(srv.URL), store, state)
	require.NoError(t, err)

	return &testEnv{
		srv:       srv,
		clock:     clock,
		durable:   durable,
		ephemeral: ephemeral,
		store:     store,
		state:     state,
		svc:       svc,
	}
}

func TestNewService(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		store := credstore.NewStore(credstore.NewMemoryBackend(), credstore.NewMemoryBackend(), nil, nil)

		svc, err := NewService(Config{}, api.NewClient("http://backend"), store, session.NewState(store, nil))

		require.NoError(t, err)
		require.Equal(t, 5*time.Minute, svc.Config().ProactiveWindow)
		require.Equal(t, 60*time.Second, svc.Config().ImmediateWindow)
		require.Equal(t, 10*time.Second, svc.Config().Timeout)
	})

	t.Run("nil dependencies", func(t *testing.T) {
		_, err := NewService(Config{}, nil, nil, nil)

		require.Error(t, err)
	})
}

func TestService_Login(t *testing.T) {
	t.Run("remember me writes durable storage", func(t *testing.T) {
		env := newTestEnv(t)

		s, err := env.svc.Login(t.Context(), testEmail, testPassword, true)

		require.NoError(t, err)
		require.True(t, s.IsAuthenticated)
		require.Equal(t, testEmail, s.User.Email)
		require.Equal(t, []string{"owner"}, s.User.Roles)
		require.WithinDuration(t, env.clock.Now().Add(15*time.Minute), *s.ExpiresAt, time.Millisecond)
		require.Equal(t, 0, env.ephemeral.Len())

		holder, err := env.store.Holder(t.Context())
		require.NoError(t, err)
		require.Equal(t, credstore.ScopeDurable, holder)

		snap, err := env.store.Snapshots(t.Context())
		require.NoError(t, err)
		require.Equal(t, testEmail, snap.User.Email)
		require.Equal(t, []string{"owner"}, snap.Roles)
	})

	t.Run("without remember me tokens are ephemeral", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.Login(t.Context(), testEmail, testPassword, false)
		require.NoError(t, err)

		holder, err := env.store.Holder(t.Context())
		require.NoError(t, err)
		require.Equal(t, credstore.ScopeEphemeral, holder)
		require.Equal(t, 3, env.ephemeral.Len())
		require.Equal(t, 2, env.durable.Len(), "user and roles snapshots stay durable")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.Login(t.Context(), testEmail, "wrong", true)

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, "Invalid email or password", apperrors.Message(err, ""))
		require.False(t, env.state.IsAuthenticated())

		creds, err := env.store.Read(t.Context())
		require.NoError(t, err)
		require.Nil(t, creds)
	})

	t.Run("invalid input never reaches backend", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.Login(t.Context(), "not-an-email", "", true)

		require.ErrorIs(t, err, apperrors.ErrValidation)
		require.Equal(t, 0, env.srv.Calls("POST /auth/sessions"))
	})

	t.Run("jwt expiry fallback", func(t *testing.T) {
		env := newTestEnv(t, fakeapi.WithJWTAccessTokens(), fakeapi.WithAccessTTL(10*time.Minute))

		s, err := env.svc.Login(t.Context(), testEmail, testPassword, true)

		require.NoError(t, err)
		require.NotNil(t, s.ExpiresAt, "expiry must come from exp claim")
		require.WithinDuration(t, env.clock.Now().Add(10*time.Minute), *s.ExpiresAt, time.Second)
	})

	t.Run("backend unreachable", func(t *testing.T) {
		env := newTestEnv(t)
		svc, err := NewService(Config{Clock: env.clock.Now}, api.NewClient("http://127.0.0.1:1"), env.store, env.state)
		require.NoError(t, err)

		_, err = svc.Login(t.Context(), testEmail, testPassword, true)

		require.ErrorIs(t, err, apperrors.ErrNetwork)
	})
}

func TestService_Register(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.svc.Register(t.Context(), api.RegisterRequest{
		Email:        "new@example.com",
		Password:     "secret-pass",
		BusinessName: "Fast Couriers",
	})

	require.NoError(t, err)
	require.True(t, s.IsAuthenticated)
	require.Equal(t, "Fast Couriers", s.Business.Name)
	require.Equal(t, []string{"owner"}, s.User.Roles)

	holder, err := env.store.Holder(t.Context())
	require.NoError(t, err)
	require.Equal(t, credstore.ScopeDurable, holder, "registration is always remembered")

	snap, err := env.store.Snapshots(t.Context())
	require.NoError(t, err)
	require.Equal(t, "Fast Couriers", snap.Business.Name)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.svc.Register(t.Context(), api.RegisterRequest{
			Email:        "new@example.com",
			Password:     "secret-pass",
			BusinessName: "Again",
		})

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, "Email has already been taken", apperrors.Message(err, ""))
	})

	t.Run("short password", func(t *testing.T) {
		_, err := env.svc.Register(t.Context(), api.RegisterRequest{Email: "x@example.com", Password: "123", BusinessName: "X"})

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestService_Logout(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.svc.Login(t.Context(), testEmail, testPassword, true)
	require.NoError(t, err)

	err = env.svc.Logout(t.Context())

	require.NoError(t, err)
	require.Contains(t, env.srv.Revoked(), s.RefreshToken)
	require.Equal(t, 0, env.durable.Len())
	require.Equal(t, 0, env.ephemeral.Len())
	require.Equal(t, session.StatusAnonymous, env.state.Status())

	t.Run("revoke failure is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Login(t.Context(), testEmail, testPassword, false)
		require.NoError(t, err)
		svc, err := NewService(Config{Clock: env.clock.Now, Timeout: 100 * time.Millisecond}, api.NewClient("http://127.0.0.1:1"), env.store, env.state)
		require.NoError(t, err)

		err = svc.Logout(t.Context())

		require.NoError(t, err)
		require.Equal(t, 0, env.ephemeral.Len())
	})
}

func TestService_Me(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Login(t.Context(), testEmail, testPassword, true)
	require.NoError(t, err)
	require.NoError(t, env.durable.Delete(t.Context(), credstore.KeyUser))

	user, err := env.svc.Me(t.Context())

	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
	snap, err := env.store.Snapshots(t.Context())
	require.NoError(t, err)
	require.Equal(t, testEmail, snap.User.Email)
}
