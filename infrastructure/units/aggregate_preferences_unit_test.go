package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
)

func newAggregateUnit(t *testing.T) *AggregatePreferencesUnit {
	t.Helper()
	u, err := NewAggregatePreferencesUnit("aggregate", DefaultAggregatePreferencesConfig(), domain.DefaultVocabulary())
	require.NoError(t, err)
	return u
}

// twoGuestResponses is the two-guest dinner used across scoring tests.
func twoGuestResponses() []domain.GuestResponse {
	return []domain.GuestResponse{
		{
			ID:                    "a",
			PreferredCuisines:     []string{"Italian"},
			AcceptablePriceRanges: []string{"$", "$$"},
		},
		{
			ID:                    "b",
			PreferredCuisines:     []string{"Mexican", "Italian"},
			AntiPreferredCuisines: []string{"Thai"},
			AcceptablePriceRanges: []string{"$$"},
		},
	}
}

// TestNewAggregatePreferencesUnit verifies constructor validation.
func TestNewAggregatePreferencesUnit(t *testing.T) {
	vocab := domain.DefaultVocabulary()
	tests := []struct {
		name    string
		unit    string
		config  AggregatePreferencesConfig
		vocab   *domain.Vocabulary
		wantErr error
		errText string
	}{
		{name: "valid", unit: "agg", config: DefaultAggregatePreferencesConfig(), vocab: vocab},
		{name: "empty name", config: DefaultAggregatePreferencesConfig(), vocab: vocab, wantErr: ErrEmptyUnitName},
		{name: "missing vocabulary", unit: "agg", config: DefaultAggregatePreferencesConfig(), wantErr: ErrMissingVocabulary},
		{name: "cap too low", unit: "agg", config: AggregatePreferencesConfig{MaxPreferredCuisines: 0}, vocab: vocab, errText: "configuration validation failed"},
		{name: "cap too high", unit: "agg", config: AggregatePreferencesConfig{MaxPreferredCuisines: 21}, vocab: vocab, errText: "configuration validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewAggregatePreferencesUnit(tt.unit, tt.config, tt.vocab)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.unit, u.Name())
				assert.NoError(t, u.Validate())
			}
		})
	}
}

// TestAggregatePreferencesUnit_TwoGuests checks the worked two-guest example.
func TestAggregatePreferencesUnit_TwoGuests(t *testing.T) {
	u := newAggregateUnit(t)

	prefs := u.Aggregate(twoGuestResponses())

	assert.InDelta(t, 7.0, prefs.CuisineScores["italian_restaurant"], 1e-9, "Italian gets 5 from A and 2 from B.")
	assert.InDelta(t, 3.0, prefs.CuisineScores["mexican_restaurant"], 1e-9, "Mexican is B's first choice.")
	assert.Len(t, prefs.CuisineScores, 2)
	assert.Equal(t, map[string]int{"thai_restaurant": 1}, prefs.AntiPreferredCuisines)
	assert.Empty(t, prefs.DietaryRestrictions)
	assert.Equal(t, domain.CeilingAt(domain.PriceModerate), prefs.MaxEffectivePrice)
	assert.Equal(t, 2, prefs.ResponseCount)
	assert.Equal(t, []string{"italian_restaurant", "mexican_restaurant"}, prefs.TopCuisines())
}

// TestAggregatePreferencesUnit_Empty verifies that no responses produce an
// empty, unconstrained aggregate.
func TestAggregatePreferencesUnit_Empty(t *testing.T) {
	u := newAggregateUnit(t)

	for _, responses := range [][]domain.GuestResponse{nil, {}} {
		prefs := u.Aggregate(responses)
		assert.Empty(t, prefs.CuisineScores)
		assert.Empty(t, prefs.AntiPreferredCuisines)
		assert.Empty(t, prefs.DietaryRestrictions)
		assert.False(t, prefs.MaxEffectivePrice.Constrained)
		assert.True(t, prefs.Empty())
	}
}

// TestAggregatePreferencesUnit_PointConservation verifies each guest
// contributes exactly the point budget whatever the list length.
func TestAggregatePreferencesUnit_PointConservation(t *testing.T) {
	u := newAggregateUnit(t)
	all := []string{"Italian", "Mexican", "Thai", "Korean", "Greek"}

	for n := 1; n <= len(all); n++ {
		prefs := u.Aggregate([]domain.GuestResponse{{PreferredCuisines: all[:n]}})

		var sum float64
		for _, v := range prefs.CuisineScores {
			sum += v
		}
		assert.InDelta(t, domain.GuestPointBudget, sum, 1e-9, "list of %d should spend the full budget.", n)
	}
}

// TestAggregatePreferencesUnit_UnmappedLabels verifies unknown labels still
// consume budget under the unmapped sentinel.
func TestAggregatePreferencesUnit_UnmappedLabels(t *testing.T) {
	u := newAggregateUnit(t)

	prefs := u.Aggregate([]domain.GuestResponse{
		{PreferredCuisines: []string{"Klingon", "Italian"}, AntiPreferredCuisines: []string{"Martian"}},
	})

	assert.InDelta(t, 3.0, prefs.CuisineScores[domain.UnmappedCuisine], 1e-9)
	assert.InDelta(t, 2.0, prefs.CuisineScores["italian_restaurant"], 1e-9)
	assert.Equal(t, 1, prefs.AntiPreferredCuisines[domain.UnmappedCuisine])
	assert.Equal(t, []string{"italian_restaurant"}, prefs.TopCuisines(), "The sentinel is never a top cuisine.")
}

// TestAggregatePreferencesUnit_Normalization covers duplicates, blanks,
// case and the preference cap.
func TestAggregatePreferencesUnit_Normalization(t *testing.T) {
	tests := []struct {
		name      string
		cap       int
		preferred []string
		want      map[string]float64
	}{
		{
			name:      "duplicates keep first position",
			cap:       5,
			preferred: []string{"Italian", "Mexican", "Italian"},
			want:      map[string]float64{"italian_restaurant": 3, "mexican_restaurant": 2},
		},
		{
			name:      "blanks ignored",
			cap:       5,
			preferred: []string{"  ", "Thai", ""},
			want:      map[string]float64{"thai_restaurant": 5},
		},
		{
			name:      "case insensitive labels",
			cap:       5,
			preferred: []string{"italian", "MEXICAN"},
			want:      map[string]float64{"italian_restaurant": 3, "mexican_restaurant": 2},
		},
		{
			name:      "category names accepted",
			cap:       5,
			preferred: []string{"sushi_restaurant"},
			want:      map[string]float64{"sushi_restaurant": 5},
		},
		{
			name:      "cap truncates the ranked list",
			cap:       2,
			preferred: []string{"Italian", "Mexican", "Thai"},
			want:      map[string]float64{"italian_restaurant": 3, "mexican_restaurant": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewAggregatePreferencesUnit("agg", AggregatePreferencesConfig{MaxPreferredCuisines: tt.cap}, domain.DefaultVocabulary())
			require.NoError(t, err)

			prefs := u.Aggregate([]domain.GuestResponse{{PreferredCuisines: tt.preferred}})
			assert.InDeltaMapValues(t, tt.want, prefs.CuisineScores, 1e-9)
			assert.Len(t, prefs.CuisineScores, len(tt.want))
		})
	}
}

// TestAggregatePreferencesUnit_VetoesAndRestrictions checks per-guest veto
// counting and the dietary union.
func TestAggregatePreferencesUnit_VetoesAndRestrictions(t *testing.T) {
	u := newAggregateUnit(t)

	prefs := u.Aggregate([]domain.GuestResponse{
		{AntiPreferredCuisines: []string{"Thai", "Thai"}, DietaryRestrictions: []string{"vegetarian"}},
		{AntiPreferredCuisines: []string{"Thai", "Korean"}, DietaryRestrictions: []string{"Gluten-Free", " Vegetarian "}},
		{DietaryRestrictions: []string{"Paleo"}},
	})

	assert.Equal(t, 2, prefs.AntiPreferredCuisines["thai_restaurant"], "A guest vetoes a cuisine at most once.")
	assert.Equal(t, 1, prefs.AntiPreferredCuisines["korean_restaurant"])
	assert.Equal(t, []string{"Gluten-Free", "Paleo", "Vegetarian"}, prefs.Restrictions())
}

// TestAggregatePreferencesUnit_PriceCeiling covers how personal maxima
// combine into the group ceiling.
func TestAggregatePreferencesUnit_PriceCeiling(t *testing.T) {
	tests := []struct {
		name   string
		ranges [][]string
		want   domain.PriceCeiling
	}{
		{name: "minimum of maxima", ranges: [][]string{{"$", "$$$"}, {"$$"}}, want: domain.CeilingAt(domain.PriceModerate)},
		{name: "single guest", ranges: [][]string{{"$$$$"}}, want: domain.CeilingAt(domain.PriceVeryExpensive)},
		{name: "no tokens do not constrain", ranges: [][]string{nil, {"$$$"}}, want: domain.CeilingAt(domain.PriceExpensive)},
		{name: "unspecified token does not constrain", ranges: [][]string{{"?"}, {"$$"}}, want: domain.CeilingAt(domain.PriceModerate)},
		{name: "unknown tokens ignored", ranges: [][]string{{"cheap", "$"}}, want: domain.CeilingAt(domain.PriceInexpensive)},
		{name: "nobody constrains", ranges: [][]string{nil, {"?"}, {"free"}}, want: domain.Unconstrained()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newAggregateUnit(t)
			responses := make([]domain.GuestResponse, len(tt.ranges))
			for i, r := range tt.ranges {
				responses[i].AcceptablePriceRanges = r
			}
			assert.Equal(t, tt.want, u.Aggregate(responses).MaxEffectivePrice)
		})
	}
}

// TestAggregatePreferencesUnit_OrderInvariance verifies that permuting
// responses yields the same aggregate.
func TestAggregatePreferencesUnit_OrderInvariance(t *testing.T) {
	u := newAggregateUnit(t)
	responses := append(twoGuestResponses(), domain.GuestResponse{
		PreferredCuisines:     []string{"Thai", "Korean", "Italian"},
		DietaryRestrictions:   []string{"Vegan"},
		AcceptablePriceRanges: []string{"$"},
	})
	reversed := []domain.GuestResponse{responses[2], responses[1], responses[0]}

	a, b := u.Aggregate(responses), u.Aggregate(reversed)

	assert.InDeltaMapValues(t, a.CuisineScores, b.CuisineScores, 1e-9)
	assert.Equal(t, a.AntiPreferredCuisines, b.AntiPreferredCuisines)
	assert.Equal(t, a.DietaryRestrictions, b.DietaryRestrictions)
	assert.Equal(t, a.MaxEffectivePrice, b.MaxEffectivePrice)
}

// TestAggregatePreferencesUnit_Execute verifies state handling.
func TestAggregatePreferencesUnit_Execute(t *testing.T) {
	u := newAggregateUnit(t)

	t.Run("writes preferences", func(t *testing.T) {
		state := domain.With(domain.NewState(), domain.KeyGuestResponses, twoGuestResponses())

		out, err := u.Execute(context.Background(), state)
		require.NoError(t, err)

		prefs, ok := domain.Get(out, domain.KeyPreferences)
		require.True(t, ok)
		assert.Equal(t, 2, prefs.ResponseCount)

		_, ok = domain.Get(state, domain.KeyPreferences)
		assert.False(t, ok, "The input state must not change.")
	})

	t.Run("missing responses", func(t *testing.T) {
		_, err := u.Execute(context.Background(), domain.NewState())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("too many responses", func(t *testing.T) {
		state := domain.With(domain.NewState(), domain.KeyGuestResponses, make([]domain.GuestResponse, MaxResponses+1))
		_, err := u.Execute(context.Background(), state)
		assert.ErrorIs(t, err, ErrTooManyInputs)
	})
}

// TestBordaShare checks individual shares including out of range input.
func TestBordaShare(t *testing.T) {
	tests := []struct {
		i, n int
		want float64
	}{
		{0, 1, 5},
		{0, 2, 3},
		{1, 2, 2},
		{0, 5, 3},
		{4, 5, 0.5},
		{5, 5, 0},
		{-1, 3, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, BordaShare(tt.i, tt.n), 1e-9, "BordaShare(%d, %d)", tt.i, tt.n)
	}
}

// TestAggregatePreferencesUnit_Parameters covers YAML and map configuration.
func TestAggregatePreferencesUnit_Parameters(t *testing.T) {
	u := newAggregateUnit(t)

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("max_preferred_cuisines: 3"), &node))
	require.NoError(t, u.UnmarshalParameters(*node.Content[0]))
	assert.Equal(t, 3, u.config.MaxPreferredCuisines)

	require.NoError(t, yaml.Unmarshal([]byte("max_preferred_cuisines: 0"), &node))
	assert.Error(t, u.UnmarshalParameters(*node.Content[0]))
	assert.Equal(t, 3, u.config.MaxPreferredCuisines, "Config is unchanged on error.")

	unit, err := NewAggregatePreferencesFromConfig("agg", map[string]any{"max_preferred_cuisines": 2},
		Dependencies{Vocabulary: domain.DefaultVocabulary()})
	require.NoError(t, err)
	assert.Equal(t, 2, unit.(*AggregatePreferencesUnit).config.MaxPreferredCuisines)

	_, err = NewAggregatePreferencesFromConfig("agg", nil, Dependencies{})
	assert.ErrorIs(t, err, ErrMissingVocabulary)
}
