package models

import (
	"time"
)

type BusinessLocation struct {
	ID           int64     `json:"id"`
	BusinessID   int64     `json:"business_id"`
	Name         string    `json:"name"`
	Address1     string    `json:"address1,omitempty"`
	Address2     string    `json:"address2,omitempty"`
	City         string    `json:"city,omitempty"`
	Region       string    `json:"region,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	CountryCode  string    `json:"country_code"`
	Latitude     string    `json:"latitude,omitempty"`
	Longitude    string    `json:"longitude,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
