package models

import (
	"github.com/shopspring/decimal"
)

type PickupAddress struct {
	Address1     string `json:"address1" validate:"required"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city" validate:"required"`
	Region       string `json:"region" validate:"required"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code" validate:"required,iso3166_1_alpha2"`
	Latitude     string `json:"latitude,omitempty" validate:"omitempty,coord=lat"`
	Longitude    string `json:"longitude,omitempty" validate:"omitempty,coord=lng"`
	ContactName  string `json:"contact_name" validate:"required"`
	ContactPhone string `json:"contact_phone" validate:"required"`
	Instructions string `json:"instructions,omitempty"`
}

type NewDeliveryItem struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

type CreateDeliveryRequest struct {
	Description    string            `json:"description,omitempty"`
	Price          decimal.Decimal   `json:"price" validate:"decimal_gte0"`
	RecipientEmail string            `json:"recipient_email" validate:"required,email"`
	Pickup         PickupAddress     `json:"pickup"`
	Items          []NewDeliveryItem `json:"items" validate:"required,min=1,dive"`
}

// UpdateDeliveryRequest changes only non nil fields
type UpdateDeliveryRequest struct {
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,decimal_gte0"`
}

type CreateLocationRequest struct {
	Name         string `json:"name" validate:"required"`
	CountryCode  string `json:"country_code" validate:"required,iso3166_1_alpha2"`
	Address1     string `json:"address1,omitempty"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city,omitempty"`
	Region       string `json:"region,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Latitude     string `json:"latitude,omitempty" validate:"omitempty,coord=lat"`
	Longitude    string `json:"longitude,omitempty" validate:"omitempty,coord=lng"`
	Instructions string `json:"instructions,omitempty"`
	Active       *bool  `json:"active,omitempty"`
}

// UpdateLocationRequest is a partial update: nil fields are not sent
type UpdateLocationRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1"`
	CountryCode  *string `json:"country_code,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	Address1     *string `json:"address1,omitempty"`
	Address2     *string `json:"address2,omitempty"`
	City         *string `json:"city,omitempty"`
	Region       *string `json:"region,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Latitude     *string `json:"latitude,omitempty" validate:"omitempty,coord=lat"`
	Longitude    *string `json:"longitude,omitempty" validate:"omitempty,coord=lng"`
	Instructions *string `json:"instructions,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

type ConfirmRequest struct {
	Token    string         `json:"token" validate:"required"`
	FullName string         `json:"full_name" validate:"required"`
	Phone    string         `json:"phone" validate:"required"`
	Email    string         `json:"email,omitempty" validate:"omitempty,email"`
	Dropoff  DropoffAddress `json:"dropoff"`
}
