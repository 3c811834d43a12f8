package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nkiryanov/courierdash/internal/credstore"
	"github.com/nkiryanov/courierdash/internal/models"
)

type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// Session is a value copy of the authentication state
type Session struct {
	User         *models.UserSnapshot
	Business     *models.BusinessSnapshot
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time

	IsAuthenticated bool
}

// Valid recomputes authentication against now: token present and not expired
func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Remaining returns time left until expiry. ok=false when expiry is unknown
func (s Session) Remaining(now time.Time) (time.Duration, bool) {
	if s.ExpiresAt == nil {
		return 0, false
	}
	return s.ExpiresAt.Sub(now), true
}

// State holds the in-memory session of the process
type State struct {
	store *credstore.Store
	now   credstore.Clock

	mu      sync.RWMutex
	current Session
}

func NewState(store *credstore.Store, now credstore.Clock) *State {
	if now == nil {
		now = time.Now
	}
	return &State{store: store, now: now}
}

// Load reads storage and builds a session from it.
// Missing or expired access token yields an anonymous session; storage is left untouched
func (st *State) Load(ctx context.Context) (Session, error) {
	creds, err := st.store.Read(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session: load credentials: %w", err)
	}
	if creds == nil || creds.Expired(st.now()) {
		return Session{}, nil
	}

	snap, err := st.store.Snapshots(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session: load snapshots: %w", err)
	}

	user := snap.User
	if user != nil && snap.Roles != nil {
		u := user.WithRoles(snap.Roles)
		user = &u
	}

	return Session{
		User:            user,
		Business:        snap.Business,
		AccessToken:     creds.AccessToken,
		RefreshToken:    creds.RefreshToken,
		ExpiresAt:       creds.ExpiresAt,
		IsAuthenticated: true,
	}, nil
}

// Initialize replaces in-memory state with the stored one. Safe to call many times
func (st *State) Initialize(ctx context.Context) error {
	s, err := st.Load(ctx)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.current = s
	st.mu.Unlock()
	return nil
}

// Current returns a copy of the session with IsAuthenticated recomputed against now
func (st *State) Current() Session {
	st.mu.RLock()
	s := st.current
	st.mu.RUnlock()

	s.IsAuthenticated = s.Valid(st.now())
	return s
}

func (st *State) IsAuthenticated() bool {
	return st.Current().IsAuthenticated
}

func (st *State) Status() Status {
	if st.IsAuthenticated() {
		return StatusAuthenticated
	}
	return StatusAnonymous
}

// SignIn replaces the whole session with freshly issued credentials
func (st *State) SignIn(creds models.Credentials, expiresAt *time.Time, user *models.UserSnapshot, business *models.BusinessSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.current = Session{
		User:            user,
		Business:        business,
		AccessToken:     creds.AccessToken,
		RefreshToken:    creds.RefreshToken,
		ExpiresAt:       expiresAt,
		IsAuthenticated: true,
	}
}

// Rotate swaps tokens after a refresh. User and business are kept,
// except when the refresh returned roles: then the user is replaced by a copy with new roles
func (st *State) Rotate(creds models.Credentials, expiresAt *time.Time, roles []string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.current.AccessToken = creds.AccessToken
	st.current.RefreshToken = creds.RefreshToken
	st.current.ExpiresAt = expiresAt
	st.current.IsAuthenticated = true

	if roles != nil && st.current.User != nil {
		u := st.current.User.WithRoles(roles)
		st.current.User = &u
	}
}

// SetUser replaces the user snapshot
func (st *State) SetUser(user *models.UserSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current.User = user
}

func (st *State) SignOut() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = Session{}
}
