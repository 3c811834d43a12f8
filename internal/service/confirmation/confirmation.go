package confirmation

import (
	"context"
	"net/http"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
	"github.com/nkiryanov/courierdash/internal/validate"
)

// TrackPath is where the recipient goes once the address is confirmed
func TrackPath(token string) string {
	return "/track/" + token
}

type ConfirmationService struct {
	confirmationRepo repository.ConfirmationRepo
	logger           logger.Logger
}

func NewService(confirmationRepo repository.ConfirmationRepo, l logger.Logger) *ConfirmationService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &ConfirmationService{
		confirmationRepo: confirmationRepo,
		logger:           l,
	}
}

// Preview loads the delivery behind the confirmation link.
// Check NeedsConfirmation: a confirmed delivery has to be shown as tracking
func (s *ConfirmationService) Preview(ctx context.Context, token string) (models.ConfirmationPreview, error) {
	return s.confirmationRepo.ConfirmationPreview(ctx, token)
}

// Confirm submits recipient details and the dropoff address.
// Second confirmation is apperrors.ErrAlreadyConfirmed with backend message
func (s *ConfirmationService) Confirm(ctx context.Context, req models.ConfirmRequest) (models.ConfirmationPreview, error) {
	if err := validate.Struct(req); err != nil {
		return models.ConfirmationPreview{}, err
	}

	p, err := s.confirmationRepo.Confirm(ctx, req)
	if err != nil {
		return p, apperrors.WithStatus(err, http.StatusUnprocessableEntity, apperrors.ErrAlreadyConfirmed, "This delivery has already been confirmed.")
	}

	s.logger.Info("Delivery confirmed by recipient", "public_id", p.Delivery.PublicID)
	return p, nil
}
