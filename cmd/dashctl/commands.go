package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/render"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

// Environment variable read when --password is not given
const passwordEnv = "DASHCTL_PASSWORD"

var (
	errLoginRequired   = fmt.Errorf("%w: login required", apperrors.ErrUnauthorized)
	errNothingToUpdate = errors.New("nothing to update, pass at least one flag")
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

func (a *App) commands() []command {
	return []command{
		{"login", "login [--email E] [--password P] [--remember]", a.login},
		{"register", "register --email E --business NAME [--support-email E] [--password P]", a.register},
		{"logout", "logout", a.logout},
		{"status", "status", a.status},
		{"whoami", "whoami", a.whoami},
		{"refresh", "refresh", a.refresh},
		{"deliveries", "deliveries list|stats|get|create|update|cancel|delete", a.group(a.deliveryCommands())},
		{"locations", "locations list|create|update|delete", a.group(a.locationCommands())},
		{"track", "track TOKEN... [--watch] [--interval D]", a.track},
		{"confirm", "confirm TOKEN [--name N --phone P --address1 A --city C --region R --country CC]", a.confirm},
		{"version", "version", a.version},
	}
}

// Run executes the command named by the first argument
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		return a.help(a.commands())
	}
	return a.dispatch(ctx, a.commands(), args)
}

func (a *App) dispatch(ctx context.Context, cmds []command, args []string) error {
	name, rest := args[0], args[1:]
	for _, c := range cmds {
		if c.name == name {
			a.logger.Debug("Running command", "command", name)
			return c.run(ctx, rest)
		}
	}
	return fmt.Errorf("%w: unknown command %q, see `dashctl help`", errUsage, name)
}

func (a *App) group(cmds []command) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 || args[0] == "help" {
			return a.help(cmds)
		}
		return a.dispatch(ctx, cmds, args)
	}
}

func (a *App) help(cmds []command) error {
	lines := []string{"Usage: dashctl [global flags] <command>", "", "Commands:"}
	for _, c := range cmds {
		lines = append(lines, "  "+c.usage)
	}
	return a.printer.Message("%s", strings.Join(lines, "\n"))
}

func (a *App) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// protect runs the gate check of a protected command.
// fresh also renews a token about to expire, for commands that change data
func (a *App) protect(ctx context.Context, fresh bool) error {
	guard := a.gate.Mount()
	if res := guard.Check(ctx); !res.IsAuthenticated {
		return errLoginRequired
	}
	if fresh && !guard.EnsureValidToken(ctx) {
		return errLoginRequired
	}
	return nil
}

// prompt reads one line from input
func (a *App) prompt(label string) (string, error) {
	fmt.Fprintf(a.errOut, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("%w: read %s: %w", errUsage, strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *App) password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := a.getenv(passwordEnv); v != "" {
		return v, nil
	}
	return a.prompt("Password")
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected exactly one id", errUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errUsage, args[0])
	}
	return id, nil
}

func (a *App) login(ctx context.Context, args []string) error {
	var email, password string
	var remember bool

	fs := a.flags("login")
	fs.StringVar(&email, "email", "", "Account email")
	fs.StringVar(&password, "password", "", "Account password, $"+passwordEnv+" or prompt if empty")
	fs.BoolVar(&remember, "remember", false, "Keep the session after the terminal is closed")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	var err error
	if email == "" {
		if email, err = a.prompt("Email"); err != nil {
			return err
		}
	}
	if password, err = a.password(password); err != nil {
		return err
	}

	s, err := a.auth.Login(ctx, email, password, remember)
	if err != nil {
		return err
	}
	return a.printer.Session(s, a.now())
}

func (a *App) register(ctx context.Context, args []string) error {
	var req api.RegisterRequest
	var password string

	fs := a.flags("register")
	fs.StringVar(&req.Email, "email", "", "Owner email")
	fs.StringVar(&req.BusinessName, "business", "", "Business name")
	fs.StringVar(&req.SupportEmail, "support-email", "", "Business support email")
	fs.StringVar(&password, "password", "", "Owner password, $"+passwordEnv+" or prompt if empty")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	var err error
	if req.Password, err = a.password(password); err != nil {
		return err
	}

	s, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	return a.printer.Session(s, a.now())
}

func (a *App) logout(ctx context.Context, _ []string) error {
	if err := a.state.Initialize(ctx); err != nil {
		a.logger.Warn("Failed to load session before logout", "error", err)
	}
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	return a.printer.Message("Logged out")
}

// status reports the stored session without contacting the backend
func (a *App) status(ctx context.Context, _ []string) error {
	if err := a.state.Initialize(ctx); err != nil {
		return err
	}
	return a.printer.Session(a.state.Current(), a.now())
}

func (a *App) whoami(ctx context.Context, _ []string) error {
	if err := a.protect(ctx, false); err != nil {
		return err
	}
	if _, err := a.auth.Me(ctx); err != nil {
		return err
	}
	return a.printer.Session(a.state.Current(), a.now())
}

// refresh renews tokens, even when the access token has already expired
func (a *App) refresh(ctx context.Context, _ []string) error {
	if err := a.state.Initialize(ctx); err != nil {
		return err
	}
	if _, err := a.auth.Refresh(ctx); err != nil {
		return err
	}
	// Snapshots of an expired session are loaded only now
	if err := a.state.Initialize(ctx); err != nil {
		return err
	}
	return a.printer.Session(a.state.Current(), a.now())
}

func (a *App) version(_ context.Context, _ []string) error {
	if a.printer.Format() == render.FormatTable {
		if err := a.printer.Message("%s", figure.NewFigure("dashctl", "cybermedium", true).String()); err != nil {
			return err
		}
	}
	return a.printer.Message("dashctl %s", version)
}
