package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/models"
)

// Token implements oauth2.TokenSource over the current session.
// An expired session token is refreshed first
func (s *Service) Token() (*oauth2.Token, error) {
	cur := s.state.Current()

	if cur.AccessToken == "" || !cur.IsAuthenticated {
		if cur.RefreshToken == "" {
			return nil, apperrors.ErrUnauthorized
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if _, err := s.Refresh(ctx); err != nil {
			if errors.Is(err, apperrors.ErrRefreshFailed) {
				if logoutErr := s.ForceLogout(ctx); logoutErr != nil {
					s.logger.Error("Failed to clear credentials after refresh failure", "error", logoutErr)
				}
			}
			return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		cur = s.state.Current()
	}

	token := &oauth2.Token{
		AccessToken:  cur.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: cur.RefreshToken,
	}
	if cur.ExpiresAt != nil {
		token.Expiry = *cur.ExpiresAt
	}
	return token, nil
}

// withExpiry fills missing expires_in from the access token exp claim.
// The token is not verified: the client only needs to know when to refresh
func (s *Service) withExpiry(creds models.Credentials) models.Credentials {
	if creds.ExpiresIn > 0 {
		return creds
	}

	exp, ok := jwtExpiry(creds.AccessToken)
	if !ok {
		return creds
	}

	// A token that is already expired gets the shortest lifetime so it is never treated as eternal
	creds.ExpiresIn = max(int64(exp.Sub(s.now())/time.Second), 1)
	return creds
}

func jwtExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
