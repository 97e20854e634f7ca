package domain

import "time"

// GuestResponse is one guest's submitted preferences for an event.
// Responses are written once and never mutated; every ranking run rereads
// the full set for the event.
type GuestResponse struct {
	// ID uniquely identifies the response.
	ID string `json:"id"`

	// EventID is the event the response belongs to.
	EventID string `json:"event_id"`

	// Name and Email identify the guest for the host only.
	Name  string `json:"name"`
	Email string `json:"email"`

	// DietaryRestrictions are accommodation requirements such as
	// "Vegetarian" or "Halal".
	DietaryRestrictions []string `json:"dietary_restrictions"`

	// PreferredCuisines is ordered from most to least preferred.
	PreferredCuisines []string `json:"preferred_cuisines"`

	// AntiPreferredCuisines are cuisines the guest refuses.
	AntiPreferredCuisines []string `json:"anti_preferred_cuisines"`

	// AcceptablePriceRanges holds price tokens such as "$" or "$$".
	AcceptablePriceRanges []string `json:"acceptable_price_ranges"`

	// Comments is free text shown to the host.
	Comments string `json:"comments,omitempty"`

	// SubmittedAt is when the response was stored.
	SubmittedAt time.Time `json:"submitted_at"`
}
