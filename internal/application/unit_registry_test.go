package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tablefit/infrastructure/units"
	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
	"github.com/ahrav/go-tablefit/internal/testutils"
)

// TestDefaultUnitRegistry_SupportedTypes verifies that every built-in type
// is registered.
func TestDefaultUnitRegistry_SupportedTypes(t *testing.T) {
	r := NewDefaultUnitRegistry(units.Dependencies{Vocabulary: domain.DefaultVocabulary()})

	assert.Equal(t, []string{
		UnitTypeAggregatePreferences,
		UnitTypeClassifyCuisine,
		UnitTypeDedupeCandidates,
		UnitTypeNormalizeScores,
		UnitTypeRank,
		UnitTypeRuleBonus,
		UnitTypeScore,
	}, r.GetSupportedTypes())

	for unitType := range unitPhases {
		assert.Contains(t, unitParameterTypes, unitType, "%s should have a parameter schema.", unitType)
	}
}

// TestDefaultUnitRegistry_CreateUnit verifies creation of each built-in
// type and the common error paths.
func TestDefaultUnitRegistry_CreateUnit(t *testing.T) {
	r := NewDefaultUnitRegistry(units.Dependencies{
		Vocabulary: domain.DefaultVocabulary(),
		LLM:        testutils.NewMockLLMClient("mock"),
	})

	tests := []struct {
		name     string
		unitType string
		id       string
		config   map[string]any
		wantErr  string
	}{
		{name: "aggregate", unitType: UnitTypeAggregatePreferences, id: "agg"},
		{name: "dedupe", unitType: UnitTypeDedupeCandidates, id: "dedupe"},
		{name: "classify", unitType: UnitTypeClassifyCuisine, id: "classify"},
		{name: "score with overrides", unitType: UnitTypeScore, id: "score", config: map[string]any{"veto_weight": 45.0}},
		{name: "rule bonus", unitType: UnitTypeRuleBonus, id: "rules", config: map[string]any{
			"rules": []any{map[string]any{"name": "good", "expr": "rating >= 4.0", "weight": 2.0}},
		}},
		{name: "rank", unitType: UnitTypeRank, id: "rank", config: map[string]any{"max_results": 3}},
		{name: "normalize", unitType: UnitTypeNormalizeScores, id: "norm"},
		{name: "unknown type", unitType: "bogus", id: "x", wantErr: "unsupported unit type: bogus"},
		{name: "empty id", unitType: UnitTypeRank, id: "", wantErr: "unit ID cannot be empty"},
		{name: "invalid config", unitType: UnitTypeScore, id: "s", config: map[string]any{"veto_weight": 10.0}, wantErr: "failed to create unit s of type score"},
		{name: "invalid rule", unitType: UnitTypeRuleBonus, id: "r", config: map[string]any{
			"rules": []any{map[string]any{"name": "bad", "expr": "name + 1", "weight": 1.0}},
		}, wantErr: "rule \"bad\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := r.CreateUnit(tt.unitType, tt.id, tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, u.Name())
			assert.NoError(t, u.Validate())
		})
	}
}

// TestDefaultUnitRegistry_MissingDependencies verifies that units needing
// collaborators fail clearly without them.
func TestDefaultUnitRegistry_MissingDependencies(t *testing.T) {
	r := NewDefaultUnitRegistry(units.Dependencies{})

	_, err := r.CreateUnit(UnitTypeAggregatePreferences, "agg", nil)
	assert.ErrorIs(t, err, units.ErrMissingVocabulary)

	_, err = r.CreateUnit(UnitTypeClassifyCuisine, "classify", nil)
	assert.ErrorIs(t, err, units.ErrMissingLLMClient)

	_, err = r.CreateUnit(UnitTypeScore, "score", nil)
	assert.NoError(t, err, "score needs no collaborators.")
}

// TestDefaultUnitRegistry_SetDependencies verifies that new dependencies
// reach units created afterwards.
func TestDefaultUnitRegistry_SetDependencies(t *testing.T) {
	r := NewDefaultUnitRegistry(units.Dependencies{})
	_, err := r.CreateUnit(UnitTypeAggregatePreferences, "agg", nil)
	require.Error(t, err)

	vocab := domain.DefaultVocabulary()
	r.SetDependencies(units.Dependencies{Vocabulary: vocab})

	_, err = r.CreateUnit(UnitTypeAggregatePreferences, "agg", nil)
	require.NoError(t, err)
	assert.Same(t, vocab, r.Dependencies().Vocabulary)
}

// TestDefaultUnitRegistry_RegisterUnitFactory verifies custom factories and
// their validation.
func TestDefaultUnitRegistry_RegisterUnitFactory(t *testing.T) {
	r := NewDefaultUnitRegistry(units.Dependencies{})

	assert.Error(t, r.RegisterUnitFactory("", func(string, map[string]any) (ports.Unit, error) { return nil, nil }))
	assert.Error(t, r.RegisterUnitFactory("custom", nil))

	require.NoError(t, r.RegisterUnitFactory("custom", func(id string, _ map[string]any) (ports.Unit, error) {
		return &stepUnit{name: id}, nil
	}))
	assert.Contains(t, r.GetSupportedTypes(), "custom")

	u, err := r.CreateUnit("custom", "mine", nil)
	require.NoError(t, err)
	assert.Equal(t, "mine", u.Name())

	// SetDependencies rebinds built-ins only.
	r.SetDependencies(units.Dependencies{Vocabulary: domain.DefaultVocabulary()})
	assert.Contains(t, r.GetSupportedTypes(), "custom")
}
