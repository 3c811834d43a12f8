package repository

import (
	"context"

	"github.com/nkiryanov/courierdash/internal/models"
)

// Delivery repository interface. Scoped to the business of the authenticated user
type DeliveryRepo interface {
	// List deliveries, newest first
	ListDeliveries(ctx context.Context) ([]models.Delivery, error)

	// Get delivery by id
	// If delivery not found must return apperrors.ErrNotFound
	GetDelivery(ctx context.Context, id int64) (models.Delivery, error)

	// Create delivery. New deliveries wait for the recipient to confirm the dropoff address
	CreateDelivery(ctx context.Context, req models.CreateDeliveryRequest) (models.Delivery, error)

	// Update only non nil fields of the request
	UpdateDelivery(ctx context.Context, id int64, req models.UpdateDeliveryRequest) (models.Delivery, error)

	// Cancel delivery
	// Backend refuses to cancel a delivery that is already picked up
	CancelDelivery(ctx context.Context, id int64) (models.Delivery, error)

	DeleteDelivery(ctx context.Context, id int64) error
}

// Business location repository interface
type LocationRepo interface {
	ListLocations(ctx context.Context) ([]models.BusinessLocation, error)
	CreateLocation(ctx context.Context, req models.CreateLocationRequest) (models.BusinessLocation, error)

	// If location not found must return apperrors.ErrNotFound
	UpdateLocation(ctx context.Context, id int64, req models.UpdateLocationRequest) (models.BusinessLocation, error)
	DeleteLocation(ctx context.Context, id int64) error
}

// Public tracking repository interface. No authentication
type TrackingRepo interface {
	// If token is unknown must return apperrors.ErrNotFound
	// If the link has expired must return apperrors.ErrLinkExpired
	Track(ctx context.Context, token string) (models.Tracking, error)
}

// Recipient confirmation repository interface. No authentication
type ConfirmationRepo interface {
	// Same token errors as TrackingRepo.Track
	ConfirmationPreview(ctx context.Context, token string) (models.ConfirmationPreview, error)

	// Submit recipient details and the dropoff address
	Confirm(ctx context.Context, req models.ConfirmRequest) (models.ConfirmationPreview, error)
}
