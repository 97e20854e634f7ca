package domain

import (
	"maps"
	"slices"
)

// Per-guest point budget for ranked cuisine preferences. A lone preference
// takes the whole budget; otherwise the first choice takes FirstChoiceShare
// and the remainder is split evenly across the rest.
const (
	GuestPointBudget = 5.0
	FirstChoiceShare = 3.0
)

// AggregatedPreferences is the combined profile for an event, folded from
// every guest response in a single ranking run. Treat it as read-only once
// built; it is shared by every scoring call.
type AggregatedPreferences struct {
	// CuisineScores maps a provider category to accumulated points.
	CuisineScores map[string]float64 `json:"cuisine_scores"`

	// AntiPreferredCuisines maps a provider category to the number of
	// guests vetoing it.
	AntiPreferredCuisines map[string]int `json:"anti_preferred_cuisines"`

	// DietaryRestrictions is the union of every guest's restrictions.
	DietaryRestrictions map[string]struct{} `json:"dietary_restrictions"`

	// MaxEffectivePrice is the lowest of the guests' personal maxima.
	MaxEffectivePrice PriceCeiling `json:"max_effective_price"`

	// ResponseCount is how many responses were folded in.
	ResponseCount int `json:"response_count"`
}

// NewAggregatedPreferences returns an empty, unconstrained aggregate.
func NewAggregatedPreferences() AggregatedPreferences {
	return AggregatedPreferences{
		CuisineScores:         make(map[string]float64),
		AntiPreferredCuisines: make(map[string]int),
		DietaryRestrictions:   make(map[string]struct{}),
		MaxEffectivePrice:     Unconstrained(),
	}
}

// HasRestriction reports whether any guest declared restriction r.
func (p AggregatedPreferences) HasRestriction(r string) bool {
	_, ok := p.DietaryRestrictions[r]
	return ok
}

// Restrictions returns the dietary union in sorted order.
func (p AggregatedPreferences) Restrictions() []string {
	return slices.Sorted(maps.Keys(p.DietaryRestrictions))
}

// TopCuisines returns scored categories ordered by descending score, with
// ties broken by category name. The unmapped sentinel is omitted.
func (p AggregatedPreferences) TopCuisines() []string {
	out := make([]string, 0, len(p.CuisineScores))
	for c := range p.CuisineScores {
		if c != UnmappedCuisine {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b string) int {
		sa, sb := p.CuisineScores[a], p.CuisineScores[b]
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return out
}

// Empty reports whether no responses contributed to the aggregate.
func (p AggregatedPreferences) Empty() bool { return p.ResponseCount == 0 }
