package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoRefreshToken     = errors.New("no refresh token")
	ErrRefreshFailed      = errors.New("refresh failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNetwork            = errors.New("network error")

	ErrNotFound         = errors.New("not found")
	ErrLinkExpired      = errors.New("link expired")
	ErrAlreadyConfirmed = errors.New("delivery already confirmed")
	ErrNotCancellable   = errors.New("delivery can not be cancelled")
	ErrValidation       = errors.New("validation failed")
	ErrTooManyRequests  = errors.New("too many requests")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// APIError carries the backend status and message next to one of the sentinel errors above
// Has to be matched with errors.Is against the sentinel, errors.As to read the message
type APIError struct {
	Status  int
	Message string
	Err     error

	// Set for throttled responses only
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Err, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Message returns the backend message if err carries one, fallback otherwise
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// RetryAfter returns how long the backend asked to wait, 0 if it did not
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// WithStatus replaces the sentinel of an APIError with the given status, keeping its message.
// Other errors are returned unchanged
func WithStatus(err error, status int, sentinel error, fallback string) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != status {
		return err
	}
	return &APIError{Status: status, Message: Message(err, fallback), Err: sentinel}
}
