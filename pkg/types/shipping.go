package types

import "strings"

// ShippingSnapshot is the delivery address captured at checkout. Every order
// of a checkout group stores its own copy and it is never edited afterwards.
type ShippingSnapshot struct {
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"omitempty,max=100"`
	Phone      string `json:"phone" validate:"required,max=30"`
}

// Normalize trims whitespace and fills the default country.
func (s ShippingSnapshot) Normalize() ShippingSnapshot {
	out := ShippingSnapshot{
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Country:    strings.TrimSpace(s.Country),
		Phone:      strings.TrimSpace(s.Phone),
	}
	if out.Country == "" {
		out.Country = "Madagascar"
	}
	return out
}

// Missing lists the json names of required fields that are blank.
func (s ShippingSnapshot) Missing() []string {
	var missing []string
	if s.Address == "" {
		missing = append(missing, "address")
	}
	if s.City == "" {
		missing = append(missing, "city")
	}
	if s.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if s.Phone == "" {
		missing = append(missing, "phone")
	}
	return missing
}
