package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nkiryanov/courierdash/internal/apperrors"
)

func TestClient_Do(t *testing.T) {
	t.Run("sends json and decodes response", func(t *testing.T) {
		var got *http.Request
		var body map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"Acme"}`))
		}))
		t.Cleanup(srv.Close)

		var out struct {
			Name string `json:"name"`
		}
		err := NewClient(srv.URL+"/").Do(t.Context(), Request{
			Method: http.MethodPost,
			Path:   "/things",
			Query:  url.Values{"page": {"2"}},
			Body:   map[string]string{"key": "value"},
			Token:  "secret",
		}, &out)

		require.NoError(t, err)
		require.Equal(t, "Acme", out.Name)
		require.Equal(t, "/things", got.URL.Path)
		require.Equal(t, "2", got.URL.Query().Get("page"))
		require.Equal(t, "application/json", got.Header.Get("Content-Type"))
		require.Equal(t, "application/json", got.Header.Get("Accept"))
		require.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
		require.Equal(t, map[string]string{"key": "value"}, body)

		_, err = uuid.Parse(got.Header.Get(HeaderRequestID))
		require.NoError(t, err, "request id must be uuid")
	})

	t.Run("no body no content type", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		err := NewClient(srv.URL).Do(t.Context(), Request{Method: http.MethodDelete, Path: "/things/1"}, nil)

		require.NoError(t, err)
		require.Empty(t, got.Header.Get("Content-Type"))
		require.Empty(t, got.Header.Get("Authorization"))
	})

	t.Run("status mapping", func(t *testing.T) {
		tests := []struct {
			name     string
			status   int
			body     string
			sentinel error
			message  string
		}{
			{"unauthorized", http.StatusUnauthorized, `{"message":"Token expired"}`, apperrors.ErrUnauthorized, "Token expired"},
			{"not found", http.StatusNotFound, `{"message":"Delivery not found"}`, apperrors.ErrNotFound, "Delivery not found"},
			{"gone", http.StatusGone, `{}`, apperrors.ErrLinkExpired, ""},
			{"unprocessable", http.StatusUnprocessableEntity, `{"error":"already confirmed"}`, apperrors.ErrUnexpectedStatus, "already confirmed"},
			{"server error not json", http.StatusInternalServerError, `oops`, apperrors.ErrUnexpectedStatus, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.body))
				}))
				t.Cleanup(srv.Close)

				err := NewClient(srv.URL).Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, nil)

				require.ErrorIs(t, err, tt.sentinel)
				require.Equal(t, tt.status, StatusOf(err))
				require.Equal(t, tt.message, apperrors.Message(err, ""))
			})
		}
	})

	t.Run("throttled", func(t *testing.T) {
		tests := []struct {
			name   string
			header string
			want   time.Duration
		}{
			{"retry after header", "7", 7 * time.Second},
			{"missing header", "", 60 * time.Second},
			{"http date not supported", "Wed, 21 Oct 2015 07:28:00 GMT", 60 * time.Second},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if tt.header != "" {
						w.Header().Set("Retry-After", tt.header)
					}
					w.WriteHeader(http.StatusTooManyRequests)
				}))
				t.Cleanup(srv.Close)

				err := NewClient(srv.URL).Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, nil)

				require.ErrorIs(t, err, apperrors.ErrTooManyRequests)
				require.Equal(t, tt.want, apperrors.RetryAfter(err))
			})
		}
	})

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		err := NewClient(addr).Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, nil)

		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.Equal(t, 0, StatusOf(err))
	})

	t.Run("timeout is network error", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		err := NewClient(srv.URL, WithTimeout(50*time.Millisecond)).Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, nil)

		require.ErrorIs(t, err, apperrors.ErrNetwork)
	})

	t.Run("invalid json response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		}))
		t.Cleanup(srv.Close)

		var out map[string]any
		err := NewClient(srv.URL).Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, &out)

		require.Error(t, err)
		require.False(t, errors.Is(err, apperrors.ErrNetwork))
	})

	t.Run("rate limiter cancelled by context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		t.Cleanup(srv.Close)
		// burst of one, next token in an hour
		c := NewClient(srv.URL, WithRateLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))

		require.NoError(t, c.Do(t.Context(), Request{Method: http.MethodGet, Path: "/"}, nil))

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()
		err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/"}, nil)
		require.ErrorIs(t, err, apperrors.ErrNetwork)
	})
}

func TestClient_With(t *testing.T) {
	base := NewClient("http://backend", WithTimeout(time.Second))
	custom := &http.Client{}

	c := base.With(WithHTTPClient(custom))

	assert.Same(t, custom, c.client)
	assert.NotSame(t, custom, base.client, "original client must be untouched")
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, "http://backend", c.BaseURL)
}
