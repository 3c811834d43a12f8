package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/nkiryanov/courierdash/internal/apperrors"
)

// HTTPClient returns client authorizing requests with the session token.
// A 401 triggers one refresh and one replay; base is http.DefaultTransport if nil
func (s *Service) HTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &retryTransport{
			svc:  s,
			next: &oauth2.Transport{Source: s, Base: base},
		},
	}
}

type retryTransport struct {
	svc  *Service
	next http.RoundTripper
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	used := t.svc.state.Current().AccessToken

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, fmt.Errorf("%w: request body can not be replayed", apperrors.ErrUnauthorized)
	}

	// Another request may have rotated the token while this one was in flight
	if cur := t.svc.state.Current().AccessToken; cur == "" || cur == used {
		if _, err := t.svc.Refresh(req.Context()); err != nil {
			if errors.Is(err, apperrors.ErrRefreshFailed) || errors.Is(err, apperrors.ErrNoRefreshToken) {
				if logoutErr := t.svc.ForceLogout(context.WithoutCancel(req.Context())); logoutErr != nil {
					t.svc.logger.Error("Failed to clear credentials after refresh failure", "error", logoutErr)
				}
			}
			return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
	}
	t.svc.metrics.UnauthorizedRetry()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
		retry.Body = body
	}

	resp, err = t.next.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, &apperrors.APIError{Status: http.StatusUnauthorized, Err: apperrors.ErrUnauthorized}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
