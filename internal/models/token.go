package models

import (
	"time"
)

// Token triple issued by backend on login, registration or refresh
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// Credentials as they were read back from storage
type StoredCredentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time // nil if expiry unknown
}

// Expired reports whether the stored access token must be treated as absent at 'now'
func (c StoredCredentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// ExpiresAt converts relative lifetime to an absolute expiry. Nil when lifetime is unknown
func (c Credentials) ExpiresAt(now time.Time) *time.Time {
	if c.ExpiresIn <= 0 {
		return nil
	}
	t := now.Add(time.Duration(c.ExpiresIn) * time.Second)
	return &t
}
