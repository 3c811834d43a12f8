package models

// Delivery as the recipient sees it before confirming the dropoff address
type ConfirmationPreview struct {
	Delivery Tracking `json:"delivery"`
}

// NeedsConfirmation is false when the recipient has already confirmed the address.
// Such a link has to be shown as a tracking page instead
func (p ConfirmationPreview) NeedsConfirmation() bool {
	return p.Delivery.Status == DeliveryStatusAwaitingRecipient
}

type DropoffAddress struct {
	Address1     string `json:"address1" validate:"required"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city" validate:"required"`
	Region       string `json:"region" validate:"required"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code" validate:"required,iso3166_1_alpha2"`
	Latitude     string `json:"latitude,omitempty" validate:"omitempty,coord=lat"`
	Longitude    string `json:"longitude,omitempty" validate:"omitempty,coord=lng"`
	Instructions string `json:"instructions,omitempty"`
}
