package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TrackingBusiness struct {
	Name string `json:"name"`
}

type TrackingDriver struct {
	FullName       string     `json:"full_name"`
	Phone          string     `json:"phone"`
	VehicleType    string     `json:"vehicle_type"`
	LastLatitude   string     `json:"last_latitude,omitempty"`
	LastLongitude  string     `json:"last_longitude,omitempty"`
	LastLocationAt *time.Time `json:"last_location_at,omitempty"`
}

type TrackingStop struct {
	Address1    string `json:"address1"`
	City        string `json:"city"`
	Region      string `json:"region,omitempty"`
	ContactName string `json:"contact_name"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
}

// Public view of a delivery, available by tracking token without authentication
type Tracking struct {
	PublicID    string            `json:"public_id"`
	Status      string            `json:"status"`
	Price       decimal.Decimal   `json:"price"`
	Description string            `json:"description,omitempty"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	AcceptedAt  *time.Time        `json:"accepted_at,omitempty"`
	PickedUpAt  *time.Time        `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
	Business    *TrackingBusiness `json:"business,omitempty"`
	Driver      *TrackingDriver   `json:"driver,omitempty"`
	Pickup      *TrackingStop     `json:"pickup,omitempty"`
	Dropoff     *TrackingStop     `json:"dropoff,omitempty"`
}

type TimelineEvent struct {
	Status    string
	At        *time.Time
	Completed bool
}
