package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/render"
)

const (
	defaultAPIURL       = "http://localhost:3000"
	defaultLoggingLevel = logger.LevelWarn
	defaultEnvironment  = logger.EnvDevelopment
	defaultProfile      = "default"
	defaultOutput       = string(render.FormatTable)
)

type Config struct {
	// Delivery backend base URL
	APIURL string

	// Default logging level. Logs go to stderr
	LogLevel string

	// Environment (development, production)
	Environment string

	// Directory of durable credentials, one subdirectory per profile
	StateDir string

	// Directory of ephemeral credentials, cleared on reboot
	RuntimeDir string

	// Optional database for durable credentials instead of files
	DatabaseDSN string

	// Credentials namespace, lets one machine hold several accounts
	Profile string

	// Bound of a single backend request
	RequestTimeout time.Duration

	// Requests per second to the backend, 0 means unlimited
	RateLimit float64

	// Prometheus textfile metrics are written to on exit, empty to skip
	MetricsFile string

	// Output format: table, json or yaml
	Output string

	// Ephemeral credentials live as long as this id, the parent shell pid by default
	SessionID string
}

func NewConfig() *Config {
	return &Config{
		APIURL:         defaultAPIURL,
		LogLevel:       defaultLoggingLevel,
		Environment:    defaultEnvironment,
		StateDir:       defaultStateDir(),
		RuntimeDir:     os.TempDir(),
		Profile:        defaultProfile,
		RequestTimeout: api.DefaultTimeout,
		Output:         defaultOutput,
		SessionID:      strconv.Itoa(os.Getppid()),
	}
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".dashctl"
	}
	return filepath.Join(dir, "dashctl")
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setFloat := func(o *float64) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return err
			}
			*o = f
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"API_URL":         setString(&c.APIURL),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"STATE_DIR":       setString(&c.StateDir),
		"XDG_RUNTIME_DIR": setString(&c.RuntimeDir),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"PROFILE":         setString(&c.Profile),
		"REQUEST_TIMEOUT": setDuration(&c.RequestTimeout),
		"RATE_LIMIT":      setFloat(&c.RateLimit),
		"METRICS_FILE":    setString(&c.MetricsFile),
		"OUTPUT":          setString(&c.Output),
		"SESSION_ID":      setString(&c.SessionID),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ParseFlags parses global flags placed before the command and returns the rest
func (c *Config) ParseFlags(args []string) ([]string, error) {
	fs := pflag.NewFlagSet("dashctl", pflag.ContinueOnError)
	fs.SetInterspersed(false)

	fs.StringVarP(&c.APIURL, "api-url", "u", c.APIURL, "Delivery backend base URL")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.StringVar(&c.StateDir, "state-dir", c.StateDir, "Directory of durable credentials")
	fs.StringVar(&c.RuntimeDir, "runtime-dir", c.RuntimeDir, "Directory of ephemeral credentials")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string for durable credentials")
	fs.StringVarP(&c.Profile, "profile", "p", c.Profile, "Credentials profile")
	fs.DurationVar(&c.RequestTimeout, "timeout", c.RequestTimeout, "Backend request timeout")
	fs.Float64Var(&c.RateLimit, "rate-limit", c.RateLimit, "Backend requests per second, 0 is unlimited")
	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "Write metrics in textfile format on exit")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "Output format (table, json, yaml)")
	fs.StringVar(&c.SessionID, "session", c.SessionID, "Ephemeral session id")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// Validate reports settings no command can work with
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api url must not be empty")
	}
	if c.Profile == "" || c.Profile == "." || c.Profile == ".." || filepath.Base(c.Profile) != c.Profile {
		return fmt.Errorf("invalid profile name %q", c.Profile)
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if _, err := render.ParseFormat(c.Output); err != nil {
		return err
	}
	return nil
}
