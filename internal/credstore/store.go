package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/models"
)

// Storage keys. Token keys live in exactly one backend, snapshot keys always in durable
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expiry"

	KeyUser     = "user"
	KeyBusiness = "business"
	KeyRoles    = "roles"
)

var (
	tokenKeys    = []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry}
	snapshotKeys = []string{KeyUser, KeyBusiness, KeyRoles}
)

// Scope tells which backend holds the tokens
type Scope int

const (
	ScopeNone Scope = iota
	ScopeDurable
	ScopeEphemeral
)

func (s Scope) String() string {
	switch s {
	case ScopeDurable:
		return "durable"
	case ScopeEphemeral:
		return "ephemeral"
	default:
		return "none"
	}
}

// Clock returns current time. Injected so tests can simulate time
type Clock func() time.Time

// Snapshots of the identity last returned by the backend. Nil when absent
type Snapshots struct {
	User     *models.UserSnapshot
	Business *models.BusinessSnapshot
	Roles    []string
}

type Store struct {
	durable   Backend
	ephemeral Backend

	now    Clock
	logger logger.Logger
}

func NewStore(durable Backend, ephemeral Backend, now Clock, l logger.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Store{
		durable:   durable,
		ephemeral: ephemeral,
		now:       now,
		logger:    l,
	}
}

// backendFor returns the backend selected by scope plus the other one.
// ScopeNone selects durable
func (s *Store) backendFor(scope Scope) (target Backend, other Backend) {
	if scope == ScopeEphemeral {
		return s.ephemeral, s.durable
	}
	return s.durable, s.ephemeral
}

// ScopeFor maps "remember me" to the backend scope
func ScopeFor(rememberMe bool) Scope {
	if rememberMe {
		return ScopeDurable
	}
	return ScopeEphemeral
}

// Write persists the token triple in durable storage if rememberMe, in ephemeral otherwise
func (s *Store) Write(ctx context.Context, creds models.Credentials, rememberMe bool) error {
	return s.WriteScope(ctx, ScopeFor(rememberMe), creds)
}

// WriteScope persists the token triple into the backend of scope.
// Tokens in the other backend are removed so a session never spans both of them
func (s *Store) WriteScope(ctx context.Context, scope Scope, creds models.Credentials) error {
	target, other := s.backendFor(scope)

	values := map[string]string{
		KeyAccessToken:  creds.AccessToken,
		KeyRefreshToken: creds.RefreshToken,
	}
	expiresAt := creds.ExpiresAt(s.now())
	hasExpiry := expiresAt != nil
	if hasExpiry {
		values[KeyTokenExpiry] = strconv.FormatInt(expiresAt.UnixMilli(), 10)
	}

	if err := target.SetMany(ctx, values); err != nil {
		return fmt.Errorf("credstore: write tokens: %w", err)
	}
	if !hasExpiry {
		// Expiry from an earlier session must not survive
		if err := target.Delete(ctx, KeyTokenExpiry); err != nil {
			return fmt.Errorf("credstore: drop stale expiry: %w", err)
		}
	}

	if err := other.Delete(ctx, tokenKeys...); err != nil {
		return fmt.Errorf("credstore: drop tokens of other backend: %w", err)
	}

	return nil
}

// WriteSnapshots stores non nil snapshots in durable storage
func (s *Store) WriteSnapshots(ctx context.Context, user *models.UserSnapshot, business *models.BusinessSnapshot, roles []string) error {
	values := make(map[string]string, 3)

	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("credstore: encode user: %w", err)
		}
		values[KeyUser] = string(data)
	}
	if business != nil {
		data, err := json.Marshal(business)
		if err != nil {
			return fmt.Errorf("credstore: encode business: %w", err)
		}
		values[KeyBusiness] = string(data)
	}
	if roles != nil {
		data, err := json.Marshal(roles)
		if err != nil {
			return fmt.Errorf("credstore: encode roles: %w", err)
		}
		values[KeyRoles] = string(data)
	}

	if len(values) == 0 {
		return nil
	}
	if err := s.durable.SetMany(ctx, values); err != nil {
		return fmt.Errorf("credstore: write snapshots: %w", err)
	}
	return nil
}

// Read returns stored credentials, durable first. Nil if no backend holds an access token.
// Expired credentials are returned as is: expiry is the caller's decision
func (s *Store) Read(ctx context.Context) (*models.StoredCredentials, error) {
	for _, b := range []Backend{s.durable, s.ephemeral} {
		creds, err := s.readFrom(ctx, b)
		if err != nil {
			return nil, err
		}
		if creds != nil {
			return creds, nil
		}
	}
	return nil, nil
}

func (s *Store) readFrom(ctx context.Context, b Backend) (*models.StoredCredentials, error) {
	access, ok, err := b.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("credstore: read access token: %w", err)
	}
	if !ok || access == "" {
		return nil, nil
	}

	refresh, _, err := b.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("credstore: read refresh token: %w", err)
	}

	creds := &models.StoredCredentials{AccessToken: access, RefreshToken: refresh}

	raw, ok, err := b.Get(ctx, KeyTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("credstore: read token expiry: %w", err)
	}
	if ok && raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Unparsable expiry is unknown expiry
			s.logger.Warn("Stored token expiry is malformed, ignoring", "value", raw)
		} else {
			expiresAt := time.UnixMilli(millis)
			creds.ExpiresAt = &expiresAt
		}
	}

	return creds, nil
}

// RefreshToken returns the refresh token stored next to the current access token.
// Falls back to any stored refresh token when no access token is present
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	creds, err := s.Read(ctx)
	if err != nil {
		return "", err
	}
	if creds != nil && creds.RefreshToken != "" {
		return creds.RefreshToken, nil
	}

	for _, b := range []Backend{s.durable, s.ephemeral} {
		v, ok, err := b.Get(ctx, KeyRefreshToken)
		if err != nil {
			return "", fmt.Errorf("credstore: read refresh token: %w", err)
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Holder returns the scope of the backend currently holding the access token
func (s *Store) Holder(ctx context.Context) (Scope, error) {
	for _, scope := range []Scope{ScopeDurable, ScopeEphemeral} {
		b, _ := s.backendFor(scope)
		v, ok, err := b.Get(ctx, KeyAccessToken)
		if err != nil {
			return ScopeNone, fmt.Errorf("credstore: detect holder: %w", err)
		}
		if ok && v != "" {
			return scope, nil
		}
	}
	return ScopeNone, nil
}

// Snapshots reads identity snapshots from durable storage. Malformed values are treated as absent
func (s *Store) Snapshots(ctx context.Context) (Snapshots, error) {
	var snap Snapshots

	var user models.UserSnapshot
	ok, err := s.readJSON(ctx, KeyUser, &user)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.User = &user
	}

	var business models.BusinessSnapshot
	ok, err = s.readJSON(ctx, KeyBusiness, &business)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.Business = &business
	}

	var roles []string
	ok, err = s.readJSON(ctx, KeyRoles, &roles)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.Roles = roles
	}

	return snap, nil
}

func (s *Store) readJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.durable.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("credstore: read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("Stored snapshot is malformed, ignoring", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Clear removes tokens from both backends and snapshots from durable storage
func (s *Store) Clear(ctx context.Context) error {
	durableKeys := append(append([]string{}, tokenKeys...), snapshotKeys...)
	if err := s.durable.Delete(ctx, durableKeys...); err != nil {
		return fmt.Errorf("credstore: clear durable: %w", err)
	}
	if err := s.ephemeral.Delete(ctx, tokenKeys...); err != nil {
		return fmt.Errorf("credstore: clear ephemeral: %w", err)
	}
	return nil
}
