// Package fakeapi is an in memory delivery backend for tests.
// It issues real token triples, rotates refresh tokens and rejects expired access tokens
package fakeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/courierdash/internal/models"
)

const jwtSecret = "fakeapi-secret"

type account struct {
	password string
	user     models.UserSnapshot
	business models.BusinessSnapshot
}

type grant struct {
	userID    int64
	expiresAt time.Time
}

type confirmation struct {
	tracking  models.Tracking
	confirmed *models.ConfirmRequest
}

type Server struct {
	URL string

	srv *httptest.Server

	mu            sync.Mutex
	now           func() time.Time
	accessTTL     time.Duration
	jwtAccess     bool
	refreshStatus int
	refreshHook   func()
	refreshRoles  []string

	accounts map[string]*account
	byID     map[int64]*account
	access   map[string]grant
	refresh  map[string]int64
	revoked  []string

	deliveries    map[int64]*models.Delivery
	locations     map[int64]*models.BusinessLocation
	tracking      map[string]models.Tracking
	confirmations map[string]*confirmation
	expiredLinks  map[string]bool

	nextID int64
	calls  map[string]int
}

type Option func(*Server)

// WithClock makes the server judge token expiry by the given clock
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithAccessTTL sets lifetime of issued access tokens. Default 15 minutes
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithJWTAccessTokens issues signed JWT access tokens and omits expires_in from responses
func WithJWTAccessTokens() Option {
	return func(s *Server) { s.jwtAccess = true }
}

// WithRefreshRoles makes refresh responses carry roles
func WithRefreshRoles(roles ...string) Option {
	return func(s *Server) { s.refreshRoles = roles }
}

// New starts the server and stops it on test cleanup
func New(t *testing.T, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		now:           time.Now,
		accessTTL:     15 * time.Minute,
		accounts:      make(map[string]*account),
		byID:          make(map[int64]*account),
		access:        make(map[string]grant),
		refresh:       make(map[string]int64),
		deliveries:    make(map[int64]*models.Delivery),
		locations:     make(map[int64]*models.BusinessLocation),
		tracking:      make(map[string]models.Tracking),
		confirmations: make(map[string]*confirmation),
		expiredLinks:  make(map[string]bool),
		calls:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = httptest.NewServer(s.router())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)

	return s
}

func (s *Server) router() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "POST /auth/sessions", s.handleLogin)
	s.handle(mux, "POST /auth/registrations", s.handleRegister)
	s.handle(mux, "POST /auth/sessions/refresh", s.handleRefresh)
	s.handle(mux, "POST /auth/sessions/revoke", s.handleRevoke)
	s.handle(mux, "GET /auth/me", s.withAuth(s.handleMe))

	s.handle(mux, "GET /deliveries", s.withAuth(s.handleListDeliveries))
	s.handle(mux, "POST /deliveries", s.withAuth(s.handleCreateDelivery))
	s.handle(mux, "GET /deliveries/{id}", s.withAuth(s.handleGetDelivery))
	s.handle(mux, "PATCH /deliveries/{id}", s.withAuth(s.handleUpdateDelivery))
	s.handle(mux, "PATCH /deliveries/{id}/cancel", s.withAuth(s.handleCancelDelivery))
	s.handle(mux, "DELETE /deliveries/{id}", s.withAuth(s.handleDeleteDelivery))

	s.handle(mux, "GET /business_locations", s.withAuth(s.handleListLocations))
	s.handle(mux, "POST /business_locations", s.withAuth(s.handleCreateLocation))
	s.handle(mux, "PATCH /business_locations/{id}", s.withAuth(s.handleUpdateLocation))
	s.handle(mux, "DELETE /business_locations/{id}", s.withAuth(s.handleDeleteLocation))

	s.handle(mux, "GET /track/{token}", s.handleTrack)
	s.handle(mux, "GET /customers/confirmation", s.handleConfirmationPreview)
	s.handle(mux, "POST /customers/confirmation/confirm", s.handleConfirm)

	return mux
}

// handle registers h and counts calls per pattern
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		s.mu.Unlock()
		h(w, r)
	})
}

type userKey struct{}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			serviceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		s.mu.Lock()
		g, found := s.access[token]
		expired := found && !s.now().Before(g.expiresAt)
		acc := s.byID[g.userID]
		s.mu.Unlock()

		switch {
		case !found || acc == nil:
			serviceError(w, "Unauthorized", http.StatusUnauthorized)
		case expired:
			serviceError(w, "Token expired", http.StatusUnauthorized)
		default:
			next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, acc)))
		}
	}
}

func accountFrom(r *http.Request) *account {
	return r.Context().Value(userKey{}).(*account)
}

// AddAccount creates business owner account and returns its user snapshot
func (s *Server) AddAccount(email, password string) models.UserSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(email, password, "Acme "+email, "")
}

func (s *Server) addAccountLocked(email, password, businessName, supportEmail string) models.UserSnapshot {
	businessID := s.nextIDLocked()
	acc := &account{
		password: password,
		user: models.UserSnapshot{
			ID:         s.nextIDLocked(),
			Email:      email,
			BusinessID: businessID,
			Roles:      []string{"owner"},
		},
		business: models.BusinessSnapshot{
			ID:           businessID,
			Name:         businessName,
			Slug:         strings.ToLower(strings.ReplaceAll(businessName, " ", "-")),
			SupportEmail: supportEmail,
		},
	}
	s.accounts[email] = acc
	s.byID[acc.user.ID] = acc
	return acc.user
}

// Issue returns fresh credentials of the account as if it logged in
func (s *Server) Issue(email string) models.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.accounts[email].user.ID)
}

func (s *Server) issueLocked(userID int64) models.Credentials {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)

	creds := models.Credentials{
		RefreshToken: "rt-" + uuid.NewString(),
		TokenType:    "Bearer",
	}

	if s.jwtAccess {
		claims := jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		}
		// error is impossible for HMAC with a non empty key
		creds.AccessToken, _ = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	} else {
		creds.AccessToken = "at-" + uuid.NewString()
		creds.ExpiresIn = int64(s.accessTTL / time.Second)
	}

	s.access[creds.AccessToken] = grant{userID: userID, expiresAt: expiresAt}
	s.refresh[creds.RefreshToken] = userID
	return creds
}

func (s *Server) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// InvalidateAccess makes the server reject the token before its expiry
func (s *Server) InvalidateAccess(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, token)
}

// FailRefresh makes refresh endpoint respond with status. Zero restores normal behavior
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// OnRefresh is called by refresh handler before it rotates tokens
func (s *Server) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshHook = fn
}

// Calls returns number of requests served by the route pattern, e.g. "POST /auth/sessions/refresh"
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// Revoked returns refresh tokens revoked so far
func (s *Server) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revoked...)
}

// ValidRefresh reports whether the refresh token still can be exchanged
func (s *Server) ValidRefresh(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[token]
	return ok
}
