package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/render"
)

// Exit codes
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitValidation
	exitAuth
	exitNotFound
	exitUnavailable
)

var errUsage = errors.New("usage")

func main() {
	// Initialize context that cancelled on SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stdio := IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	err := run(ctx, os.Getenv, os.Getwd, os.Args[1:], stdio)
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		if perr := render.New(stdio.Err, render.FormatTable).Error(err); perr != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	cancel()
	os.Exit(exitCode(err))
}

func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string, stdio IO) error {
	c := NewConfig()
	if err := c.LoadDotEnv(getwd); err != nil {
		return fmt.Errorf("%w: .env: %w", errUsage, err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	rest, err := c.ParseFlags(args)
	if err != nil {
		return usageError(err)
	}
	if len(rest) == 0 {
		return fmt.Errorf("%w: no command given, see `dashctl help`", errUsage)
	}

	app, err := NewApp(ctx, c, getenv, stdio)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx, rest)
}

func usageError(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %w", errUsage, err)
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, apperrors.ErrValidation):
		return exitValidation
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrUnauthorized),
		errors.Is(err, apperrors.ErrNoRefreshToken),
		errors.Is(err, apperrors.ErrRefreshFailed):
		return exitAuth
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrLinkExpired):
		return exitNotFound
	case errors.Is(err, apperrors.ErrNetwork), errors.Is(err, apperrors.ErrTooManyRequests):
		return exitUnavailable
	default:
		return exitFailure
	}
}
