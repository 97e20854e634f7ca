package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregatedPreferences_TopCuisines(t *testing.T) {
	prefs := NewAggregatedPreferences()
	prefs.CuisineScores["mexican_restaurant"] = 3
	prefs.CuisineScores["italian_restaurant"] = 7
	prefs.CuisineScores["cafe"] = 3
	prefs.CuisineScores[UnmappedCuisine] = 5

	assert.Equal(t, []string{"italian_restaurant", "cafe", "mexican_restaurant"}, prefs.TopCuisines())
}

func TestAggregatedPreferences_Empty(t *testing.T) {
	prefs := NewAggregatedPreferences()

	assert.True(t, prefs.Empty())
	assert.False(t, prefs.MaxEffectivePrice.Constrained)
	assert.Empty(t, prefs.Restrictions())
	assert.Empty(t, prefs.TopCuisines())

	prefs.DietaryRestrictions["Vegan"] = struct{}{}
	prefs.DietaryRestrictions["Halal"] = struct{}{}
	assert.Equal(t, []string{"Halal", "Vegan"}, prefs.Restrictions())
	assert.True(t, prefs.HasRestriction("Vegan"))
}
