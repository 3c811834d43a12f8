// Package gate guards protected views: it loads the session once per mount,
// sends anonymous visitors to the login page and renews tokens close to expiry.
package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/metrics"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/service/auth"
	"github.com/nkiryanov/courierdash/internal/session"
)

const (
	DefaultRedirectTo = "/login"

	defaultSettleDelay = 100 * time.Millisecond
	defaultTimeout     = 15 * time.Second
)

// Redirect reasons reported to metrics
const (
	ReasonAnonymous     = "anonymous"
	ReasonExpired       = "expired"
	ReasonRefreshFailed = "refresh_failed"
)

// Navigator moves the user to another view
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(ctx context.Context, path string) error

func (f NavigatorFunc) Navigate(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Authenticator is the part of auth.Service the gate drives
type Authenticator interface {
	Config() auth.Config
	State() *session.State
	Refresh(ctx context.Context) (string, error)
	ForceLogout(ctx context.Context) error
}

// CredentialReader exposes raw stored credentials, expired ones included
type CredentialReader interface {
	Read(ctx context.Context) (*models.StoredCredentials, error)
}

type Config struct {
	// Pause between loading the session and acting on it
	// If not set than default is used
	SettleDelay time.Duration

	// Bound of the whole mount check
	// If not set than default is used
	Timeout time.Duration

	// Optional collaborators
	Clock   func() time.Time
	Metrics metrics.Recorder
	Logger  logger.Logger
}

type Gate struct {
	cfg Config

	auth  Authenticator
	store CredentialReader
	nav   Navigator

	now     func() time.Time
	metrics metrics.Recorder
	logger  logger.Logger
}

func New(cfg Config, a Authenticator, store CredentialReader, nav Navigator) (*Gate, error) {
	if a == nil || store == nil || nav == nil {
		return nil, errors.New("authenticator, store and navigator must not be nil")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	g := &Gate{
		cfg:     cfg,
		auth:    a,
		store:   store,
		nav:     nav,
		now:     cfg.Clock,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.metrics == nil {
		g.metrics = metrics.Noop{}
	}
	if g.logger == nil {
		g.logger = logger.NewNoOpLogger()
	}
	return g, nil
}

type mountOptions struct {
	requireAuth bool
	redirectTo  string
}

type MountOption func(*mountOptions)

// Public lets anonymous visitors stay on the view
func Public() MountOption {
	return func(o *mountOptions) { o.requireAuth = false }
}

// RedirectTo overrides the login path
func RedirectTo(path string) MountOption {
	return func(o *mountOptions) { o.redirectTo = path }
}

// Mount creates a guard for one mount of a protected view
func (g *Gate) Mount(opts ...MountOption) *Guard {
	o := mountOptions{requireAuth: true, redirectTo: DefaultRedirectTo}
	for _, opt := range opts {
		opt(&o)
	}

	guard := &Guard{gate: g, opts: o}
	guard.loading.Store(true)
	return guard
}

// Result is what a protected view renders from
type Result struct {
	IsAuthenticated bool
	IsLoading       bool
	AccessToken     string
	Redirected      bool
	RedirectTo      string
}

type Guard struct {
	gate *Gate
	opts mountOptions

	once       sync.Once
	loading    atomic.Bool
	redirected atomic.Bool
}

// Check runs the mount check once. Later calls return the current state
func (gd *Guard) Check(ctx context.Context) Result {
	gd.once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, gd.gate.cfg.Timeout)
		defer cancel()
		gd.run(ctx)
	})
	return gd.State()
}

// State reports the guard without running the check
func (gd *Guard) State() Result {
	s := gd.gate.auth.State().Current()

	r := Result{
		IsAuthenticated: s.IsAuthenticated,
		IsLoading:       gd.loading.Load(),
		Redirected:      gd.redirected.Load(),
	}
	if s.IsAuthenticated {
		r.AccessToken = s.AccessToken
	}
	if r.Redirected {
		r.RedirectTo = gd.opts.redirectTo
	}
	return r
}

func (gd *Guard) run(ctx context.Context) {
	g := gd.gate
	state := g.auth.State()

	if err := state.Initialize(ctx); err != nil {
		g.logger.Error("Failed to load session", "error", err)
	}

	timer := time.NewTimer(g.cfg.SettleDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	gd.loading.Store(false)

	s := state.Current()
	if !s.IsAuthenticated {
		reason := ReasonAnonymous
		if gd.staleCredentials(ctx) {
			reason = ReasonExpired
			if err := g.auth.ForceLogout(ctx); err != nil {
				g.logger.Error("Failed to clear expired credentials", "error", err)
			}
		}
		if gd.opts.requireAuth {
			gd.redirect(ctx, reason)
		}
		return
	}

	remaining, ok := s.Remaining(g.now())
	if !ok || remaining <= 0 || remaining >= g.auth.Config().ProactiveWindow {
		return
	}

	if _, err := g.auth.Refresh(ctx); err != nil {
		g.logger.Warn("Proactive token refresh failed, logging out", "error", err)
		if err := g.auth.ForceLogout(ctx); err != nil {
			g.logger.Error("Failed to clear credentials", "error", err)
		}
		gd.redirect(ctx, ReasonRefreshFailed)
	}
}

// staleCredentials reports whether storage still holds tokens the session rejected
func (gd *Guard) staleCredentials(ctx context.Context) bool {
	creds, err := gd.gate.store.Read(ctx)
	if err != nil {
		gd.gate.logger.Warn("Failed to read credentials", "error", err)
		return false
	}
	return creds != nil
}

func (gd *Guard) redirect(ctx context.Context, reason string) {
	g := gd.gate
	gd.redirected.Store(true)
	g.metrics.GateRedirect(reason)

	// Navigation happens even when the check ran out of time
	if err := g.nav.Navigate(context.WithoutCancel(ctx), gd.opts.redirectTo); err != nil {
		g.logger.Error("Failed to navigate", "to", gd.opts.redirectTo, "error", err)
		return
	}
	g.logger.Debug("Redirected", "to", gd.opts.redirectTo, "reason", reason)
}

// EnsureValidToken is checked right before a sensitive call.
// A token expiring within the immediate window is refreshed first; the result tells whether it worked
func (gd *Guard) EnsureValidToken(ctx context.Context) bool {
	g := gd.gate
	s := g.auth.State().Current()
	if !s.IsAuthenticated {
		return false
	}

	if s.ExpiresAt != nil && !g.now().Before(s.ExpiresAt.Add(-g.auth.Config().ImmediateWindow)) {
		if _, err := g.auth.Refresh(ctx); err != nil {
			g.logger.Warn("Token refresh before request failed", "error", err)
			return false
		}
	}
	return true
}

// ValidToken returns a freshly refreshed access token.
// Anonymous visitors are redirected; a failed refresh falls back to the current token
func (gd *Guard) ValidToken(ctx context.Context) (string, bool) {
	g := gd.gate
	s := g.auth.State().Current()
	if !s.IsAuthenticated {
		gd.redirect(ctx, ReasonAnonymous)
		return "", false
	}

	token, err := g.auth.Refresh(ctx)
	if err != nil {
		g.logger.Warn("Token refresh failed, using current token", "error", err)
		return s.AccessToken, true
	}
	return token, true
}
