package tracking

import (
	"context"

	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
)

// Timeline labels
const (
	EventCreated   = "Order Created"
	EventConfirmed = "Confirmed"
	EventAccepted  = "Accepted"
	EventPickedUp  = "Picked Up"
	EventInTransit = "In Transit"
	EventDelivered = "Delivered"
)

type TrackingService struct {
	trackingRepo repository.TrackingRepo
	logger       logger.Logger
}

func NewService(trackingRepo repository.TrackingRepo, l logger.Logger) *TrackingService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &TrackingService{
		trackingRepo: trackingRepo,
		logger:       l,
	}
}

// Track returns public delivery view.
// Unknown token is apperrors.ErrNotFound, expired link is apperrors.ErrLinkExpired
func (s *TrackingService) Track(ctx context.Context, token string) (models.Tracking, error) {
	t, err := s.trackingRepo.Track(ctx, token)
	if err != nil {
		s.logger.Debug("Failed to track delivery", "error", err)
		return t, err
	}
	return t, nil
}

// Timeline lists the steps the delivery has reached, in order.
// A delivery still waiting for the recipient has no timeline, a cancelled one has only its creation
func Timeline(t models.Tracking) []models.TimelineEvent {
	if t.Status == models.DeliveryStatusAwaitingRecipient {
		return nil
	}

	events := []models.TimelineEvent{
		{Status: EventCreated, At: t.CreatedAt, Completed: t.CreatedAt != nil},
	}
	rank, ok := statusRank[t.Status]
	if !ok {
		return events
	}

	events = append(events, models.TimelineEvent{Status: EventConfirmed, At: t.CreatedAt, Completed: true})
	if rank >= statusRank[models.DeliveryStatusAccepted] {
		events = append(events, models.TimelineEvent{Status: EventAccepted, At: t.AcceptedAt, Completed: true})
	}
	if rank >= statusRank[models.DeliveryStatusPickedUp] {
		events = append(events, models.TimelineEvent{
			Status:    EventPickedUp,
			At:        t.PickedUpAt,
			Completed: t.PickedUpAt != nil || rank >= statusRank[models.DeliveryStatusInTransit],
		})
	}
	if rank >= statusRank[models.DeliveryStatusInTransit] {
		events = append(events, models.TimelineEvent{Status: EventInTransit, At: t.PickedUpAt, Completed: true})
	}
	if rank >= statusRank[models.DeliveryStatusDelivered] {
		events = append(events, models.TimelineEvent{Status: EventDelivered, At: t.DeliveredAt, Completed: t.DeliveredAt != nil})
	}
	return events
}

// Order of statuses along the happy path
var statusRank = map[string]int{
	models.DeliveryStatusAwaitingRecipient: 0,
	models.DeliveryStatusPending:           1,
	models.DeliveryStatusAccepted:          2,
	models.DeliveryStatusPickedUp:          3,
	models.DeliveryStatusInTransit:         4,
	models.DeliveryStatusDelivered:         5,
}

// Label returns human readable status
func Label(status string) string {
	switch status {
	case models.DeliveryStatusAwaitingRecipient:
		return "Awaiting Confirmation"
	case models.DeliveryStatusPending:
		return "Pending"
	case models.DeliveryStatusAccepted:
		return "Accepted"
	case models.DeliveryStatusPickedUp:
		return "Picked Up"
	case models.DeliveryStatusInTransit:
		return "In Transit"
	case models.DeliveryStatusDelivered:
		return "Delivered"
	case models.DeliveryStatusCancelled:
		return "Cancelled"
	default:
		return status
	}
}
