package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceTier_String(t *testing.T) {
	assert.Equal(t, "MODERATE", PriceModerate.String())
	assert.Equal(t, "UNSPECIFIED", PriceUnspecified.String())
	assert.Equal(t, "PriceTier(7)", PriceTier(7).String())
	assert.False(t, PriceTier(-1).Valid())
}

// TestPriceCeiling covers admission and tightening of the group ceiling.
func TestPriceCeiling(t *testing.T) {
	tests := []struct {
		name    string
		ceiling PriceCeiling
		tier    PriceTier
		admits  bool
	}{
		{"unconstrained admits very expensive", Unconstrained(), PriceVeryExpensive, true},
		{"unknown price always admitted", CeilingAt(PriceInexpensive), PriceUnspecified, true},
		{"at ceiling", CeilingAt(PriceModerate), PriceModerate, true},
		{"below ceiling", CeilingAt(PriceModerate), PriceInexpensive, true},
		{"above ceiling", CeilingAt(PriceModerate), PriceExpensive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.admits, tt.ceiling.Admits(tt.tier))
		})
	}

	c := Unconstrained().Lower(PriceExpensive).Lower(PriceModerate).Lower(PriceVeryExpensive)
	assert.Equal(t, CeilingAt(PriceModerate), c)
	assert.Equal(t, "MODERATE", c.String())
	assert.Equal(t, "unconstrained", Unconstrained().String())
}
