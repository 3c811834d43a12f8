package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DeliveryStatusAwaitingRecipient = "awaiting_recipient"
	DeliveryStatusPending           = "pending"
	DeliveryStatusAccepted          = "accepted"
	DeliveryStatusPickedUp          = "picked_up"
	DeliveryStatusInTransit         = "in_transit"
	DeliveryStatusDelivered         = "delivered"
	DeliveryStatusCancelled         = "cancelled"
)

const (
	StopKindPickup  = "pickup"
	StopKindDropoff = "dropoff"
)

type DeliveryStop struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	Sequence     int    `json:"sequence"`
	Address1     string `json:"address1,omitempty"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city,omitempty"`
	Region       string `json:"region,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	Latitude     string `json:"latitude,omitempty"`
	Longitude    string `json:"longitude,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type DeliveryItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Delivery struct {
	ID          int64           `json:"id"`
	PublicID    string          `json:"public_id"`
	Status      string          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	BusinessID  int64           `json:"business_id"`
	DriverID    *int64          `json:"driver_id"`
	CustomerID  *int64          `json:"customer_id"`
	AcceptedAt  *time.Time      `json:"accepted_at"`
	PickedUpAt  *time.Time      `json:"picked_up_at"`
	DeliveredAt *time.Time      `json:"delivered_at"`
	CancelledAt *time.Time      `json:"cancelled_at"`
	CreatedAt   time.Time       `json:"created_at"`
	Stops       []DeliveryStop  `json:"stops,omitempty"`
	Items       []DeliveryItem  `json:"items,omitempty"`
}

// Stop returns the first stop of the given kind
func (d Delivery) Stop(kind string) (DeliveryStop, bool) {
	for _, s := range d.Stops {
		if s.Kind == kind {
			return s, true
		}
	}
	return DeliveryStop{}, false
}

// Cancellable reports whether the backend still accepts a cancel for the delivery
func (d Delivery) Cancellable() bool {
	switch d.Status {
	case DeliveryStatusAwaitingRecipient, DeliveryStatusPending, DeliveryStatusAccepted:
		return true
	default:
		return false
	}
}
