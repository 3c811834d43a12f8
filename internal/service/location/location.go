package location

import (
	"context"
	"net/http"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
	"github.com/nkiryanov/courierdash/internal/validate"
)

type LocationService struct {
	locationRepo repository.LocationRepo
	logger       logger.Logger
}

func NewService(locationRepo repository.LocationRepo, l logger.Logger) *LocationService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &LocationService{
		locationRepo: locationRepo,
		logger:       l,
	}
}

func (s *LocationService) List(ctx context.Context) ([]models.BusinessLocation, error) {
	return s.locationRepo.ListLocations(ctx)
}

// Active returns locations available as pickup points
func (s *LocationService) Active(ctx context.Context) ([]models.BusinessLocation, error) {
	list, err := s.locationRepo.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]models.BusinessLocation, 0, len(list))
	for _, l := range list {
		if l.Active {
			active = append(active, l)
		}
	}
	return active, nil
}

func (s *LocationService) Create(ctx context.Context, req models.CreateLocationRequest) (models.BusinessLocation, error) {
	if err := validate.Struct(req); err != nil {
		return models.BusinessLocation{}, err
	}

	l, err := s.locationRepo.CreateLocation(ctx, req)
	if err != nil {
		return l, apperrors.WithStatus(err, http.StatusUnprocessableEntity, apperrors.ErrValidation, "Location is invalid")
	}

	s.logger.Info("Business location created", "location_id", l.ID)
	return l, nil
}

func (s *LocationService) Update(ctx context.Context, id int64, req models.UpdateLocationRequest) (models.BusinessLocation, error) {
	if err := validate.Struct(req); err != nil {
		return models.BusinessLocation{}, err
	}

	l, err := s.locationRepo.UpdateLocation(ctx, id, req)
	if err != nil {
		return l, apperrors.WithStatus(err, http.StatusUnprocessableEntity, apperrors.ErrValidation, "Location is invalid")
	}
	return l, nil
}

func (s *LocationService) Delete(ctx context.Context, id int64) error {
	if err := s.locationRepo.DeleteLocation(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Business location deleted", "location_id", id)
	return nil
}
