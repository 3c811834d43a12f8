package api

import (
	"net/http"
	"time"

	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/metrics"
)

// loggingTransport logs every round trip and records its latency.
// Authorization header and bodies are never logged
type loggingTransport struct {
	next    http.RoundTripper
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewLoggingTransport wraps next (http.DefaultTransport if nil)
func NewLoggingTransport(next http.RoundTripper, l logger.Logger, m metrics.Recorder) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &loggingTransport{next: next, logger: l, metrics: m}
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(r)
	duration := time.Since(start)

	if err != nil {
		t.metrics.Request(r.Method, 0, duration)
		t.logger.Warn(
			"HTTP request failed",
			"method", r.Method,
			"uri", r.URL.Path,
			"request_id", r.Header.Get(HeaderRequestID),
			"duration", duration,
			"error", err,
		)
		return nil, err
	}

	t.metrics.Request(r.Method, resp.StatusCode, duration)
	t.logger.Debug(
		"got HTTP response",
		"method", r.Method,
		"uri", r.URL.Path,
		"request_id", r.Header.Get(HeaderRequestID),
		"duration", duration,
		"status", resp.StatusCode,
		"size", resp.ContentLength,
	)
	return resp, nil
}
