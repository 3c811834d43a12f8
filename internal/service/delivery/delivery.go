package delivery

import (
	"context"
	"net/http"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
	"github.com/nkiryanov/courierdash/internal/validate"
)

type DeliveryService struct {
	// Backend deliveries of the signed in business
	deliveryRepo repository.DeliveryRepo

	logger logger.Logger
}

func NewService(deliveryRepo repository.DeliveryRepo, l logger.Logger) *DeliveryService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &DeliveryService{
		deliveryRepo: deliveryRepo,
		logger:       l,
	}
}

func (s *DeliveryService) List(ctx context.Context) ([]models.Delivery, error) {
	return s.deliveryRepo.ListDeliveries(ctx)
}

func (s *DeliveryService) Get(ctx context.Context, id int64) (models.Delivery, error) {
	return s.deliveryRepo.GetDelivery(ctx, id)
}

// Create validates the request before sending it
func (s *DeliveryService) Create(ctx context.Context, req models.CreateDeliveryRequest) (models.Delivery, error) {
	if err := validate.Struct(req); err != nil {
		return models.Delivery{}, err
	}

	d, err := s.deliveryRepo.CreateDelivery(ctx, req)
	if err != nil {
		return d, apperrors.WithStatus(err, http.StatusUnprocessableEntity, apperrors.ErrValidation, "Delivery is invalid")
	}

	s.logger.Info("Delivery created", "delivery_id", d.ID, "public_id", d.PublicID)
	return d, nil
}

func (s *DeliveryService) Update(ctx context.Context, id int64, req models.UpdateDeliveryRequest) (models.Delivery, error) {
	if err := validate.Struct(req); err != nil {
		return models.Delivery{}, err
	}

	d, err := s.deliveryRepo.UpdateDelivery(ctx, id, req)
	if err != nil {
		return d, apperrors.WithStatus(err, http.StatusUnprocessableEntity, apperrors.ErrValidation, "Delivery is invalid")
	}
	return d, nil
}

// Cancel asks backend to cancel the delivery.
// Refusal is apperrors.ErrNotCancellable with backend message
func (s *DeliveryService) Cancel(ctx context.Context, id int64) (models.Delivery, error) {
	d, err := s.deliveryRepo.CancelDelivery(ctx, id)
	if err != nil {
		return d, apperrors.WithStatus(err, http.StatusUnprocessableEntity, apperrors.ErrNotCancellable, "Delivery can not be cancelled")
	}

	s.logger.Info("Delivery cancelled", "delivery_id", d.ID)
	return d, nil
}

func (s *DeliveryService) Delete(ctx context.Context, id int64) error {
	if err := s.deliveryRepo.DeleteDelivery(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Delivery deleted", "delivery_id", id)
	return nil
}
