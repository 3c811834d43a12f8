package fakeapi

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/courierdash/internal/models"
)

// AddDelivery stores delivery for the business of the account and returns it with ids assigned
func (s *Server) AddDelivery(email string, d models.Delivery) models.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.nextIDLocked()
	d.BusinessID = s.accounts[email].business.ID
	if d.PublicID == "" {
		d.PublicID = publicID()
	}
	if d.Status == "" {
		d.Status = models.DeliveryStatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.deliveries[d.ID] = &d
	return d
}

// Delivery returns stored delivery by id
func (s *Server) Delivery(id int64) (models.Delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return models.Delivery{}, false
	}
	return *d, true
}

func publicID() string {
	return "DLV-" + strings.ToUpper(uuid.NewString()[:8])
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// ownDeliveryLocked returns delivery of the requesting business. Caller holds the lock
func (s *Server) ownDeliveryLocked(r *http.Request) (*models.Delivery, bool) {
	id, ok := pathID(r)
	if !ok {
		return nil, false
	}
	d, ok := s.deliveries[id]
	if !ok || d.BusinessID != accountFrom(r).business.ID {
		return nil, false
	}
	return d, true
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	businessID := accountFrom(r).business.ID

	s.mu.Lock()
	list := make([]models.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.BusinessID == businessID {
			list = append(list, *d)
		}
	}
	s.mu.Unlock()

	// newest first
	slices.SortFunc(list, func(a, b models.Delivery) int { return int(b.ID - a.ID) })
	renderJSON(w, list)
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, ok := s.ownDeliveryLocked(r)
	var out models.Delivery
	if ok {
		out = *d
	}
	s.mu.Unlock()

	if !ok {
		serviceError(w, "Delivery not found", http.StatusNotFound)
		return
	}
	renderJSON(w, out)
}

func (s *Server) handleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	data, ok := bind[models.CreateDeliveryRequest](w, r)
	if !ok {
		return
	}
	if data.RecipientEmail == "" || len(data.Items) == 0 {
		serviceError(w, "Recipient email and items are required", http.StatusUnprocessableEntity)
		return
	}
	acc := accountFrom(r)

	s.mu.Lock()
	d := &models.Delivery{
		ID:          s.nextIDLocked(),
		PublicID:    publicID(),
		Status:      models.DeliveryStatusAwaitingRecipient,
		Price:       data.Price,
		Description: data.Description,
		BusinessID:  acc.business.ID,
		CreatedAt:   s.now(),
		Stops: []models.DeliveryStop{{
			ID:           s.nextIDLocked(),
			Kind:         models.StopKindPickup,
			Sequence:     1,
			Address1:     data.Pickup.Address1,
			Address2:     data.Pickup.Address2,
			City:         data.Pickup.City,
			Region:       data.Pickup.Region,
			PostalCode:   data.Pickup.PostalCode,
			CountryCode:  data.Pickup.CountryCode,
			Latitude:     data.Pickup.Latitude,
			Longitude:    data.Pickup.Longitude,
			ContactName:  data.Pickup.ContactName,
			ContactPhone: data.Pickup.ContactPhone,
			Instructions: data.Pickup.Instructions,
		}},
	}
	for _, item := range data.Items {
		d.Items = append(d.Items, models.DeliveryItem{ID: s.nextIDLocked(), Name: item.Name, Quantity: item.Quantity})
	}
	s.deliveries[d.ID] = d
	out := *d
	s.mu.Unlock()

	jsonWithStatus(w, out, http.StatusCreated)
}

func (s *Server) handleUpdateDelivery(w http.ResponseWriter, r *http.Request) {
	data, ok := bind[models.UpdateDeliveryRequest](w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	d, ok := s.ownDeliveryLocked(r)
	var out models.Delivery
	if ok {
		if data.Description != nil {
			d.Description = *data.Description
		}
		if data.Price != nil {
			d.Price = *data.Price
		}
		out = *d
	}
	s.mu.Unlock()

	if !ok {
		serviceError(w, "Delivery not found", http.StatusNotFound)
		return
	}
	renderJSON(w, out)
}

func (s *Server) handleCancelDelivery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, ok := s.ownDeliveryLocked(r)
	var out models.Delivery
	var cancellable bool
	if ok {
		cancellable = d.Cancellable()
		if cancellable {
			now := s.now()
			d.Status = models.DeliveryStatusCancelled
			d.CancelledAt = &now
		}
		out = *d
	}
	s.mu.Unlock()

	switch {
	case !ok:
		serviceError(w, "Delivery not found", http.StatusNotFound)
	case !cancellable:
		serviceError(w, fmt.Sprintf("Delivery in status %s cannot be cancelled", out.Status), http.StatusUnprocessableEntity)
	default:
		renderJSON(w, out)
	}
}

func (s *Server) handleDeleteDelivery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, ok := s.ownDeliveryLocked(r)
	if ok {
		delete(s.deliveries, d.ID)
	}
	s.mu.Unlock()

	if !ok {
		serviceError(w, "Delivery not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	businessID := accountFrom(r).business.ID

	s.mu.Lock()
	list := make([]models.BusinessLocation, 0, len(s.locations))
	for _, l := range s.locations {
		if l.BusinessID == businessID {
			list = append(list, *l)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(list, func(a, b models.BusinessLocation) int { return int(a.ID - b.ID) })
	renderJSON(w, list)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	data, ok := bind[models.CreateLocationRequest](w, r)
	if !ok {
		return
	}
	if data.Name == "" || data.CountryCode == "" {
		serviceError(w, "Name and country code are required", http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	now := s.now()
	l := &models.BusinessLocation{
		ID:           s.nextIDLocked(),
		BusinessID:   accountFrom(r).business.ID,
		Name:         data.Name,
		Address1:     data.Address1,
		Address2:     data.Address2,
		City:         data.City,
		Region:       data.Region,
		PostalCode:   data.PostalCode,
		CountryCode:  data.CountryCode,
		Latitude:     data.Latitude,
		Longitude:    data.Longitude,
		Instructions: data.Instructions,
		Active:       data.Active == nil || *data.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.locations[l.ID] = l
	out := *l
	s.mu.Unlock()

	jsonWithStatus(w, out, http.StatusCreated)
}

func (s *Server) ownLocationLocked(r *http.Request) (*models.BusinessLocation, bool) {
	id, ok := pathID(r)
	if !ok {
		return nil, false
	}
	l, ok := s.locations[id]
	if !ok || l.BusinessID != accountFrom(r).business.ID {
		return nil, false
	}
	return l, true
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	data, ok := bind[models.UpdateLocationRequest](w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	l, ok := s.ownLocationLocked(r)
	var out models.BusinessLocation
	if ok {
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = *v
			}
		}
		set(&l.Name, data.Name)
		set(&l.CountryCode, data.CountryCode)
		set(&l.Address1, data.Address1)
		set(&l.Address2, data.Address2)
		set(&l.City, data.City)
		set(&l.Region, data.Region)
		set(&l.PostalCode, data.PostalCode)
		set(&l.Latitude, data.Latitude)
		set(&l.Longitude, data.Longitude)
		set(&l.Instructions, data.Instructions)
		if data.Active != nil {
			l.Active = *data.Active
		}
		l.UpdatedAt = s.now()
		out = *l
	}
	s.mu.Unlock()

	if !ok {
		serviceError(w, "Location not found", http.StatusNotFound)
		return
	}
	renderJSON(w, out)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	l, ok := s.ownLocationLocked(r)
	if ok {
		delete(s.locations, l.ID)
	}
	s.mu.Unlock()

	if !ok {
		serviceError(w, "Location not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
