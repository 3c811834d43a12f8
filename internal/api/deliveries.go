package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
)

var (
	_ repository.DeliveryRepo = (*Client)(nil)
	_ repository.LocationRepo = (*Client)(nil)
)

func deliveryPath(id int64) string {
	return "/deliveries/" + strconv.FormatInt(id, 10)
}

func locationPath(id int64) string {
	return "/business_locations/" + strconv.FormatInt(id, 10)
}

func (c *Client) ListDeliveries(ctx context.Context) ([]models.Delivery, error) {
	var list []models.Delivery
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/deliveries"}, &list)
	return list, err
}

func (c *Client) GetDelivery(ctx context.Context, id int64) (models.Delivery, error) {
	var d models.Delivery
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: deliveryPath(id)}, &d)
	return d, err
}

func (c *Client) CreateDelivery(ctx context.Context, req models.CreateDeliveryRequest) (models.Delivery, error) {
	var d models.Delivery
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/deliveries", Body: req}, &d)
	return d, err
}

func (c *Client) UpdateDelivery(ctx context.Context, id int64, req models.UpdateDeliveryRequest) (models.Delivery, error) {
	var d models.Delivery
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: deliveryPath(id), Body: req}, &d)
	return d, err
}

func (c *Client) CancelDelivery(ctx context.Context, id int64) (models.Delivery, error) {
	var d models.Delivery
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: deliveryPath(id) + "/cancel", Body: struct{}{}}, &d)
	return d, err
}

func (c *Client) DeleteDelivery(ctx context.Context, id int64) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: deliveryPath(id)}, nil)
}

func (c *Client) ListLocations(ctx context.Context) ([]models.BusinessLocation, error) {
	var list []models.BusinessLocation
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/business_locations"}, &list)
	return list, err
}

func (c *Client) CreateLocation(ctx context.Context, req models.CreateLocationRequest) (models.BusinessLocation, error) {
	var l models.BusinessLocation
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/business_locations", Body: req}, &l)
	return l, err
}

func (c *Client) UpdateLocation(ctx context.Context, id int64, req models.UpdateLocationRequest) (models.BusinessLocation, error) {
	var l models.BusinessLocation
	err := c.Do(ctx, Request{Method: http.MethodPatch, Path: locationPath(id), Body: req}, &l)
	return l, err
}

func (c *Client) DeleteLocation(ctx context.Context, id int64) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: locationPath(id)}, nil)
}
