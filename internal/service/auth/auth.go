package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/credstore"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/metrics"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/session"
	"github.com/nkiryanov/courierdash/internal/validate"
)

const (
	defaultProactiveWindow = 5 * time.Minute
	defaultImmediateWindow = 60 * time.Second
	defaultTimeout         = 10 * time.Second

	refreshKey = "refresh"
)

// Service config with sensible defaults
type Config struct {
	// Refresh ahead of expiry when less than this is left
	// If not set than default is used
	ProactiveWindow time.Duration

	// Token is considered about to expire within this window right before a request
	// If not set than default is used
	ImmediateWindow time.Duration

	// Bound of a single refresh exchange and of revoke on logout
	// If not set than default is used
	Timeout time.Duration

	// Base transport of authenticated requests. http.DefaultTransport if nil
	Transport http.RoundTripper

	// Optional collaborators
	Clock   credstore.Clock
	Metrics metrics.Recorder
	Logger  logger.Logger
}

// Service owns the token lifecycle: login, refresh, logout.
// Safe for concurrent use
type Service struct {
	cfg Config

	client *api.Client
	authed *api.Client
	store  *credstore.Store
	state  *session.State

	now     credstore.Clock
	metrics metrics.Recorder
	logger  logger.Logger

	group singleflight.Group
}

func NewService(cfg Config, client *api.Client, store *credstore.Store, state *session.State) (*Service, error) {
	if client == nil || store == nil || state == nil {
		return nil, errors.New("client, store and state must not be nil")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.ProactiveWindow, defaultProactiveWindow)
	setDefaultDuration(&cfg.ImmediateWindow, defaultImmediateWindow)
	setDefaultDuration(&cfg.Timeout, defaultTimeout)

	s := &Service{
		cfg:     cfg,
		client:  client,
		store:   store,
		state:   state,
		now:     cfg.Clock,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.Noop{}
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	s.authed = client.With(api.WithHTTPClient(s.HTTPClient(cfg.Transport)))

	return s, nil
}

func (s *Service) Config() Config {
	return s.cfg
}

// State returns the session state the service drives
func (s *Service) State() *session.State {
	return s.state
}

// Login authenticates with email and password and persists tokens.
// rememberMe selects durable storage
func (s *Service) Login(ctx context.Context, email string, password string, rememberMe bool) (session.Session, error) {
	req := api.LoginRequest{Email: email, Password: password}
	if err := validate.Struct(req); err != nil {
		return session.Session{}, err
	}

	creds, err := s.client.Login(ctx, req)
	if err != nil {
		return session.Session{}, rejected(err, "Invalid credentials")
	}
	creds = s.withExpiry(creds)

	if err := s.store.Write(ctx, creds, rememberMe); err != nil {
		return session.Session{}, fmt.Errorf("auth: persist credentials: %w", err)
	}

	// User details are best effort: login succeeds without them
	var user *models.UserSnapshot
	me, err := s.client.Me(ctx, creds.AccessToken)
	switch {
	case err != nil:
		s.logger.Warn("Failed to fetch current user after login", "error", err)
	default:
		user = &me
		if err := s.store.WriteSnapshots(ctx, user, nil, me.Roles); err != nil {
			s.logger.Warn("Failed to store user snapshot", "error", err)
		}
	}

	// Business snapshot is whatever registration left behind
	var business *models.BusinessSnapshot
	if snap, err := s.store.Snapshots(ctx); err == nil {
		business = snap.Business
	}

	s.state.SignIn(creds, creds.ExpiresAt(s.now()), user, business)
	s.logger.Info("Logged in", "user_id", userID(user), "remember_me", rememberMe)

	return s.state.Current(), nil
}

// Register creates business account and signs its owner in. Registration is always remembered
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) (session.Session, error) {
	if err := validate.Struct(req); err != nil {
		return session.Session{}, err
	}

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return session.Session{}, rejected(err, "Registration failed")
	}
	creds := s.withExpiry(resp.Credentials)

	if err := s.store.Write(ctx, creds, true); err != nil {
		return session.Session{}, fmt.Errorf("auth: persist credentials: %w", err)
	}

	user := resp.User
	if user != nil && resp.Roles != nil {
		u := user.WithRoles(resp.Roles)
		user = &u
	}
	if err := s.store.WriteSnapshots(ctx, user, resp.Business, resp.Roles); err != nil {
		return session.Session{}, fmt.Errorf("auth: persist snapshots: %w", err)
	}

	s.state.SignIn(creds, creds.ExpiresAt(s.now()), user, resp.Business)
	s.logger.Info("Registered business", "user_id", userID(user))

	return s.state.Current(), nil
}

// Refresh exchanges the refresh token for a new triple and returns the new access token.
// Concurrent callers share one exchange. The exchange outlives a caller that gives up
func (s *Service) Refresh(ctx context.Context) (string, error) {
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer cancel()
		return s.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context) (string, error) {
	refreshToken := s.state.Current().RefreshToken
	if refreshToken == "" {
		var err error
		refreshToken, err = s.store.RefreshToken(ctx)
		if err != nil {
			return "", fmt.Errorf("auth: read refresh token: %w", err)
		}
	}
	if refreshToken == "" {
		s.metrics.RefreshResult(metrics.OutcomeNoToken)
		return "", apperrors.ErrNoRefreshToken
	}

	holder, err := s.store.Holder(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: detect token holder: %w", err)
	}

	s.metrics.RefreshAttempt()
	resp, err := s.client.Refresh(ctx, refreshToken)
	if err != nil {
		s.metrics.RefreshResult(metrics.OutcomeFailure)
		s.logger.Warn("Token refresh failed", "status", api.StatusOf(err), "error", err)
		return "", fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}
	creds := s.withExpiry(resp.Credentials)

	// Backend already rotated the pair: memory follows even if persisting fails
	s.state.Rotate(creds, creds.ExpiresAt(s.now()), resp.Roles)

	if err := s.store.WriteScope(ctx, holder, creds); err != nil {
		s.logger.Error("Failed to persist refreshed tokens", "holder", holder.String(), "error", err)
	}
	if resp.Roles != nil {
		if err := s.store.WriteSnapshots(ctx, s.state.Current().User, nil, resp.Roles); err != nil {
			s.logger.Warn("Failed to store refreshed roles", "error", err)
		}
	}

	s.metrics.RefreshResult(metrics.OutcomeSuccess)
	s.logger.Debug("Token refreshed", "holder", holder.String(), "expires_in", creds.ExpiresIn)

	return creds.AccessToken, nil
}

// Logout revokes refresh token (best effort) and clears all stored credentials
func (s *Service) Logout(ctx context.Context) error {
	refreshToken := s.state.Current().RefreshToken
	if refreshToken == "" {
		refreshToken, _ = s.store.RefreshToken(ctx)
	}

	if refreshToken != "" {
		revokeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := s.client.Revoke(revokeCtx, refreshToken)
		cancel()
		if err != nil {
			s.logger.Warn("Failed to revoke refresh token, ignoring", "error", err)
		}
	}

	return s.ForceLogout(ctx)
}

// ForceLogout clears storage and memory without talking to the backend
func (s *Service) ForceLogout(ctx context.Context) error {
	s.state.SignOut()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("auth: clear credentials: %w", err)
	}
	s.logger.Info("Logged out")
	return nil
}

// Client returns API client whose requests carry the session token and survive one 401
func (s *Service) Client() *api.Client {
	return s.authed
}

// Me reloads the current user through the authenticated client and replaces its snapshot
func (s *Service) Me(ctx context.Context) (models.UserSnapshot, error) {
	user, err := s.authed.Me(ctx, "")
	if err != nil {
		return user, err
	}

	if err := s.store.WriteSnapshots(ctx, &user, nil, user.Roles); err != nil {
		s.logger.Warn("Failed to store user snapshot", "error", err)
	}
	s.state.SetUser(&user)

	return user, nil
}

// rejected turns backend 4xx into ErrInvalidCredentials keeping backend message
func rejected(err error, fallback string) error {
	status := api.StatusOf(err)
	if status < 400 || status > 499 {
		return err
	}
	return &apperrors.APIError{
		Status:  status,
		Message: apperrors.Message(err, fallback),
		Err:     apperrors.ErrInvalidCredentials,
	}
}

func userID(u *models.UserSnapshot) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
