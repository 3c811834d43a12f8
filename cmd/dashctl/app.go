package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/credstore"
	"github.com/nkiryanov/courierdash/internal/credstore/postgres"
	"github.com/nkiryanov/courierdash/internal/db"
	"github.com/nkiryanov/courierdash/internal/gate"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/metrics"
	"github.com/nkiryanov/courierdash/internal/render"
	"github.com/nkiryanov/courierdash/internal/service/auth"
	"github.com/nkiryanov/courierdash/internal/service/confirmation"
	"github.com/nkiryanov/courierdash/internal/service/delivery"
	"github.com/nkiryanov/courierdash/internal/service/location"
	"github.com/nkiryanov/courierdash/internal/service/tracking"
	"github.com/nkiryanov/courierdash/internal/session"
)

// IO is where commands read input and write results
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type App struct {
	cfg    *Config
	getenv func(string) string
	now    func() time.Time

	in      *bufio.Reader
	errOut  io.Writer
	printer *render.Printer
	logger  logger.Logger

	registry *prometheus.Registry
	pool     *pgxpool.Pool

	store *credstore.Store
	state *session.State
	auth  *auth.Service
	gate  *gate.Gate

	deliveries   *delivery.DeliveryService
	locations    *location.LocationService
	tracking     *tracking.TrackingService
	watcher      *tracking.Watcher
	confirmation *confirmation.ConfirmationService
}

func NewApp(ctx context.Context, c *Config, getenv func(string) string, stdio IO) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	format, _ := render.ParseFormat(c.Output)

	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}
	l = l.With("profile", c.Profile)

	app := &App{
		cfg:      c,
		getenv:   getenv,
		now:      time.Now,
		in:       bufio.NewReader(stdio.In),
		errOut:   stdio.Err,
		printer:  render.New(stdio.Out, format),
		logger:   l,
		registry: prometheus.NewRegistry(),
	}

	// Credentials storage: durable per profile, ephemeral per terminal session
	durable, err := app.durableBackend(ctx)
	if err != nil {
		return nil, err
	}
	ephemeral := credstore.NewFileBackend(filepath.Join(
		c.RuntimeDir, "dashctl", fmt.Sprintf("%s-%s.json", c.Profile, c.SessionID),
	))
	app.store = credstore.NewStore(durable, ephemeral, app.now, l)
	app.state = session.NewState(app.store, app.now)

	// Backend clients
	collector := metrics.NewCollector(app.registry)
	transport := api.NewLoggingTransport(http.DefaultTransport, l, collector)

	opts := []api.Option{
		api.WithHTTPClient(&http.Client{Transport: transport}),
		api.WithLogger(l),
		api.WithTimeout(c.RequestTimeout),
	}
	if c.RateLimit > 0 {
		opts = append(opts, api.WithRateLimiter(rate.NewLimiter(rate.Limit(c.RateLimit), max(1, int(c.RateLimit)))))
	}
	client := api.NewClient(c.APIURL, opts...)

	// Initialize services
	app.auth, err = auth.NewService(auth.Config{
		Transport: transport,
		Clock:     app.now,
		Metrics:   collector,
		Logger:    l,
	}, client, app.store, app.state)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.gate, err = gate.New(gate.Config{Clock: app.now, Metrics: collector, Logger: l}, app.auth, app.store, gate.NavigatorFunc(app.navigate))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating gate. Err: %w", err)
	}

	app.deliveries = delivery.NewService(app.auth.Client(), l)
	app.locations = location.NewService(app.auth.Client(), l)
	app.tracking = tracking.NewService(client, l)
	app.watcher = tracking.NewWatcher(client, l)
	app.confirmation = confirmation.NewService(client, l)

	return app, nil
}

func (a *App) durableBackend(ctx context.Context) (credstore.Backend, error) {
	if a.cfg.DatabaseDSN == "" {
		return credstore.NewFileBackend(filepath.Join(a.cfg.StateDir, a.cfg.Profile, "credentials.json")), nil
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, a.cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	a.pool = pool

	return &postgres.Backend{DB: pool, Namespace: a.cfg.Profile}, nil
}

// navigate maps gate redirects to the command a user has to run
func (a *App) navigate(_ context.Context, path string) error {
	if path == gate.DefaultRedirectTo {
		_, err := fmt.Fprintln(a.errOut, "Login required: run `dashctl login`")
		return err
	}
	_, err := fmt.Fprintf(a.errOut, "Redirected to %s\n", path)
	return err
}

// Close flushes metrics and releases the database
func (a *App) Close() {
	if a.cfg.MetricsFile != "" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.MetricsFile), 0o755); err != nil {
			a.logger.Warn("Failed to create metrics directory", "error", err)
		} else if err := metrics.WriteTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			a.logger.Warn("Failed to write metrics", "path", a.cfg.MetricsFile, "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
