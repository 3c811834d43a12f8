package api

import (
	"context"
	"net/http"

	"github.com/nkiryanov/courierdash/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	BusinessName string `json:"business_name" validate:"required"`
	SupportEmail string `json:"support_email,omitempty" validate:"omitempty,email"`
}

type RegisterResponse struct {
	models.Credentials
	User     *models.UserSnapshot     `json:"user"`
	Business *models.BusinessSnapshot `json:"business"`
	Roles    []string                 `json:"roles"`
}

type RefreshResponse struct {
	models.Credentials
	Roles []string `json:"roles,omitempty"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges email and password for a token triple
func (c *Client) Login(ctx context.Context, r LoginRequest) (models.Credentials, error) {
	var creds models.Credentials
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/sessions", Body: r}, &creds)
	return creds, err
}

// Register creates business with its owner and returns the owner credentials
func (c *Client) Register(ctx context.Context, r RegisterRequest) (RegisterResponse, error) {
	var resp RegisterResponse
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/registrations", Body: r}, &resp)
	return resp, err
}

// Refresh rotates the token pair. The old refresh token is invalidated by the backend
func (c *Client) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	var resp RefreshResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/sessions/refresh",
		Body:   refreshTokenRequest{RefreshToken: refreshToken},
	}, &resp)
	return resp, err
}

// Revoke invalidates refresh token on the backend side
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/sessions/revoke",
		Body:   refreshTokenRequest{RefreshToken: refreshToken},
	}, nil)
}

// Me returns the user the token belongs to. Empty token leaves authorization to the transport
func (c *Client) Me(ctx context.Context, token string) (models.UserSnapshot, error) {
	var user models.UserSnapshot
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me", Token: token}, &user)
	return user, err
}
