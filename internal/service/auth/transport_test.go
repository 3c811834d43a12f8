package auth

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/credstore"
	"github.com/nkiryanov/courierdash/internal/session"
)

func TestService_HTTPClient(t *testing.T) {
	t.Run("401 refreshes once and replays", func(t *testing.T) {
		env := newTestEnv(t)
		s, err := env.svc.Login(t.Context(), testEmail, testPassword, false)
		require.NoError(t, err)
		env.srv.InvalidateAccess(s.AccessToken)
		meCalls := env.srv.Calls("GET /auth/me")

		user, err := env.svc.Client().Me(t.Context(), "")

		require.NoError(t, err)
		require.Equal(t, testEmail, user.Email)
		require.Equal(t, 1, env.srv.Calls("POST /auth/sessions/refresh"))
		require.Equal(t, meCalls+2, env.srv.Calls("GET /auth/me"), "original request and one replay")

		stored, err := env.store.Read(t.Context())
		require.NoError(t, err)
		require.NotEqual(t, s.AccessToken, stored.AccessToken, "rotated token must be persisted")
		holder, err := env.store.Holder(t.Context())
		require.NoError(t, err)
		require.Equal(t, credstore.ScopeEphemeral, holder)
	})

	t.Run("refresh failure logs out", func(t *testing.T) {
		env := newTestEnv(t)
		s, err := env.svc.Login(t.Context(), testEmail, testPassword, true)
		require.NoError(t, err)
		env.srv.InvalidateAccess(s.AccessToken)
		env.srv.FailRefresh(http.StatusBadRequest)

		_, err = env.svc.Client().Me(t.Context(), "")

		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
		require.Equal(t, 1, env.srv.Calls("POST /auth/sessions/refresh"))
		require.Equal(t, 0, env.durable.Len(), "storage must be cleared")
		require.Equal(t, 0, env.ephemeral.Len())
		require.Equal(t, session.StatusAnonymous, env.state.Status())
	})

	t.Run("second 401 is unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		target, err := url.Parse(env.srv.URL)
		require.NoError(t, err)
		// everything goes to the fake except /auth/me which always rejects
		mux := http.NewServeMux()
		mux.Handle("/", httputil.NewSingleHostReverseProxy(target))
		mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		proxy := httptest.NewServer(mux)
		t.Cleanup(proxy.Close)

		svc, err := NewService(Config{Clock: env.clock.Now}, api.NewClient(proxy.URL), env.store, env.state)
		require.NoError(t, err)
		env.state.SignIn(env.srv.Issue(testEmail), nil, nil, nil)

		_, err = svc.Client().Me(t.Context(), "")

		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.NotErrorIs(t, err, apperrors.ErrRefreshFailed)
		require.Equal(t, 1, env.srv.Calls("POST /auth/sessions/refresh"), "exactly one refresh per request")
		require.True(t, env.state.IsAuthenticated(), "refresh worked, session stays")
	})

	t.Run("request body is replayed", func(t *testing.T) {
		env := newTestEnv(t)
		var bodies []string
		var auths []string
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(data))
			auths = append(auths, r.Header.Get("Authorization"))
			if len(bodies) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
		}))
		t.Cleanup(backend.Close)
		s, err := env.svc.Login(t.Context(), testEmail, testPassword, true)
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, backend.URL, bytes.NewBufferString(`{"name":"box"}`))
		require.NoError(t, err)
		resp, err := env.svc.HTTPClient(nil).Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, []string{`{"name":"box"}`, `{"name":"box"}`}, bodies)
		require.Equal(t, "Bearer "+s.AccessToken, auths[0])
		require.Equal(t, "Bearer "+env.state.Current().AccessToken, auths[1])
		require.NotEqual(t, auths[0], auths[1])
	})

	t.Run("anonymous request never hits backend", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.svc.Client().Me(t.Context(), "")

		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.Equal(t, 0, env.srv.Calls("GET /auth/me"))
	})
}
