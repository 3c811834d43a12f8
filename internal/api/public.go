package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
)

var (
	_ repository.TrackingRepo     = (*Client)(nil)
	_ repository.ConfirmationRepo = (*Client)(nil)
)

type trackingResponse struct {
	Delivery models.Tracking `json:"delivery"`
}

// Track returns public view of the delivery behind the tracking token
func (c *Client) Track(ctx context.Context, token string) (models.Tracking, error) {
	var resp trackingResponse
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/track/" + url.PathEscape(token)}, &resp)
	return resp.Delivery, err
}

func (c *Client) ConfirmationPreview(ctx context.Context, token string) (models.ConfirmationPreview, error) {
	var p models.ConfirmationPreview
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/customers/confirmation",
		Query:  url.Values{"token": {token}},
	}, &p)
	return p, err
}

func (c *Client) Confirm(ctx context.Context, req models.ConfirmRequest) (models.ConfirmationPreview, error) {
	var p models.ConfirmationPreview
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/customers/confirmation/confirm", Body: req}, &p)
	return p, err
}
