package fakeapi

import (
	"net/http"

	"github.com/nkiryanov/courierdash/internal/models"
)

// AddTracking publishes tracking view under the token
func (s *Server) AddTracking(token string, t models.Tracking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking[token] = t
}

// AddConfirmation registers recipient confirmation link
func (s *Server) AddConfirmation(token string, t models.Tracking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[token] = &confirmation{tracking: t}
}

// ExpireLink makes tracking or confirmation link answer 410
func (s *Server) ExpireLink(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiredLinks[token] = true
}

// Confirmed returns what the recipient submitted for the link
func (s *Server) Confirmed(token string) (models.ConfirmRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmations[token]
	if !ok || c.confirmed == nil {
		return models.ConfirmRequest{}, false
	}
	return *c.confirmed, true
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	s.mu.Lock()
	t, found := s.tracking[token]
	expired := s.expiredLinks[token]
	s.mu.Unlock()

	switch {
	case expired:
		serviceError(w, "Tracking link has expired", http.StatusGone)
	case !found:
		serviceError(w, "Delivery not found", http.StatusNotFound)
	default:
		renderJSON(w, map[string]any{"delivery": t})
	}
}

func (s *Server) handleConfirmationPreview(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	c, found := s.confirmations[token]
	expired := s.expiredLinks[token]
	var t models.Tracking
	if found {
		t = c.tracking
	}
	s.mu.Unlock()

	switch {
	case expired:
		serviceError(w, "Confirmation link has expired", http.StatusGone)
	case !found:
		serviceError(w, "Confirmation link not found", http.StatusNotFound)
	default:
		renderJSON(w, models.ConfirmationPreview{Delivery: t})
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	data, ok := bind[models.ConfirmRequest](w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	c, found := s.confirmations[data.Token]
	expired := s.expiredLinks[data.Token]
	status := http.StatusOK
	var msg string
	switch {
	case expired:
		status, msg = http.StatusGone, "Confirmation link has expired"
	case !found:
		status, msg = http.StatusNotFound, "Confirmation link not found"
	case c.tracking.Status != models.DeliveryStatusAwaitingRecipient:
		status, msg = http.StatusUnprocessableEntity, "Delivery has already been confirmed"
	default:
		c.confirmed = &data
		c.tracking.Status = models.DeliveryStatusPending
	}
	var t models.Tracking
	if found {
		t = c.tracking
	}
	s.mu.Unlock()

	if status != http.StatusOK {
		serviceError(w, msg, status)
		return
	}
	renderJSON(w, models.ConfirmationPreview{Delivery: t})
}
