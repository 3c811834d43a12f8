package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/logger"
)

const (
	DefaultTimeout = 10 * time.Second

	HeaderRequestID = "X-Request-ID"

	// Error bodies larger than this are truncated before decoding
	maxErrorBody = 64 << 10

	// Seconds to wait when a throttled response has no usable Retry-After
	defaultRetryAfter = 60
)

// Request describes a single backend call. Path is relative to the client base URL
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Bearer token set explicitly. Empty means the transport decides
	Token string
}

// Client is a JSON REST client of the delivery backend
type Client struct {
	BaseURL string

	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the http client, usually with an authenticated one
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithRateLimiter throttles outgoing calls. Nil disables throttling
func WithRateLimiter(l *rate.Limiter) Option {
	return func(cl *Client) {
		cl.limiter = l
	}
}

// WithTimeout bounds every call. Zero or negative keeps the default
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		logger:  logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Transport: NewLoggingTransport(nil, c.logger, nil)}
	}
	return c
}

// With returns a copy of the client sharing base URL, limiter and logger with different options applied
func (c *Client) With(opts ...Option) *Client {
	cp := *c
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Do sends the request and decodes JSON response into out (if not nil).
// Transport failures are ErrNetwork; non 2xx responses are *apperrors.APIError
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %w", apperrors.ErrNetwork, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Errors raised by an authenticated transport already carry their meaning
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrNetwork, r.Method, r.Path, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("Failed to decode response", "path", r.Path, "error", err)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u := c.BaseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	var data []byte
	if r.Body != nil {
		var err error
		data, err = json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	return req, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) statusError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(data, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = apperrors.ErrUnauthorized
	case http.StatusNotFound:
		sentinel = apperrors.ErrNotFound
	case http.StatusGone:
		sentinel = apperrors.ErrLinkExpired
	case http.StatusTooManyRequests:
		return c.throttled(resp, msg)
	default:
		sentinel = apperrors.ErrUnexpectedStatus
	}

	c.logger.Debug("Backend returned error status", "status", resp.StatusCode, "message", msg)
	return &apperrors.APIError{Status: resp.StatusCode, Message: msg, Err: sentinel}
}

func (c *Client) throttled(resp *http.Response, msg string) error {
	retryAfter, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
	if err != nil || retryAfter < 0 {
		retryAfter = defaultRetryAfter
	}

	c.logger.Warn("Backend throttled", "retry_after", retryAfter)
	return &apperrors.APIError{
		Status:     resp.StatusCode,
		Message:    msg,
		Err:        apperrors.ErrTooManyRequests,
		RetryAfter: time.Duration(retryAfter) * time.Second,
	}
}

// StatusOf returns the backend status carried by err, 0 if none
func StatusOf(err error) int {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
