package domain

import "fmt"

// PriceTier is the ordinal cost bucket shared by guest budgets and
// restaurant listings. Higher values are more expensive.
type PriceTier int

const (
	// PriceUnspecified marks an unknown price. Candidates carrying it are
	// treated as acceptable and receive no price contribution.
	PriceUnspecified PriceTier = iota
	PriceInexpensive
	PriceModerate
	PriceExpensive
	PriceVeryExpensive
)

var priceTierNames = [...]string{
	PriceUnspecified:   "UNSPECIFIED",
	PriceInexpensive:   "INEXPENSIVE",
	PriceModerate:      "MODERATE",
	PriceExpensive:     "EXPENSIVE",
	PriceVeryExpensive: "VERY_EXPENSIVE",
}

// Valid reports whether p is one of the defined tiers.
func (p PriceTier) Valid() bool {
	return p >= PriceUnspecified && p <= PriceVeryExpensive
}

// String returns the enum name of the tier.
func (p PriceTier) String() string {
	if !p.Valid() {
		return fmt.Sprintf("PriceTier(%d)", int(p))
	}
	return priceTierNames[p]
}

// PriceCeiling is the group's most restrictive acceptable tier.
// The zero value is unconstrained, which never penalizes a candidate.
type PriceCeiling struct {
	Tier        PriceTier `json:"tier"`
	Constrained bool      `json:"constrained"`
}

// Unconstrained returns a ceiling that admits every tier.
func Unconstrained() PriceCeiling { return PriceCeiling{} }

// CeilingAt returns a ceiling bounded at tier.
func CeilingAt(tier PriceTier) PriceCeiling {
	return PriceCeiling{Tier: tier, Constrained: true}
}

// Admits reports whether a candidate priced at tier fits under the ceiling.
// Unknown prices always fit.
func (c PriceCeiling) Admits(tier PriceTier) bool {
	if !c.Constrained || tier == PriceUnspecified {
		return true
	}
	return tier <= c.Tier
}

// Lower returns the tighter of c and tier.
func (c PriceCeiling) Lower(tier PriceTier) PriceCeiling {
	if !c.Constrained || tier < c.Tier {
		return CeilingAt(tier)
	}
	return c
}

func (c PriceCeiling) String() string {
	if !c.Constrained {
		return "unconstrained"
	}
	return c.Tier.String()
}
