package application

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parametersNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return *doc.Content[0]
	}
	return doc
}

// TestValidateUnitParameters verifies strict parameter checking per unit
// type.
func TestValidateUnitParameters(t *testing.T) {
	tests := []struct {
		name     string
		unitType string
		params   string
		wantErr  error
		errMsg   string
	}{
		{name: "known score keys", unitType: UnitTypeScore, params: "veto_weight: 40\nprice_bonus: 5"},
		{name: "known classify keys", unitType: UnitTypeClassifyCuisine, params: "cache_ttl: 24h\nonly_missing: false"},
		{name: "rule list", unitType: UnitTypeRuleBonus, params: "rules:\n  - name: a\n    expr: rating > 4.0\n    weight: 1"},
		{name: "null parameters", unitType: UnitTypeRank, params: "~"},
		{name: "custom type passes through", unitType: "custom", params: "anything: 1"},
		{name: "misspelled key", unitType: UnitTypeScore, params: "veto_wieght: 40", wantErr: ErrUnknownParameter},
		{name: "unknown rank key", unitType: UnitTypeRank, params: "limit: 3", wantErr: ErrUnknownParameter},
		{name: "sequence", unitType: UnitTypeRank, params: "[1, 2]", errMsg: "must be a mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnitParameters(tt.unitType, parametersNode(t, tt.params))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				assert.ErrorContains(t, err, tt.errMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateUnitParameters_ZeroNode verifies that omitted parameters are
// accepted.
func TestValidateUnitParameters_ZeroNode(t *testing.T) {
	assert.NoError(t, ValidateUnitParameters(UnitTypeScore, yaml.Node{}))
}

// TestValidatePipelineOrder verifies phase ordering and the required units.
func TestValidatePipelineOrder(t *testing.T) {
	tests := []struct {
		name   string
		types  []string
		errMsg string
	}{
		{
			name:  "full plan",
			types: []string{"aggregate_preferences", "dedupe_candidates", "classify_cuisine", "score", "rule_bonus", "rank", "normalize_scores"},
		},
		{
			name:  "preparation units in any order",
			types: []string{"dedupe_candidates", "aggregate_preferences", "score"},
		},
		{
			name:  "custom types are unordered",
			types: []string{"aggregate_preferences", "score", "custom", "rank", "custom_two"},
		},
		{
			name:   "score before aggregate",
			types:  []string{"score", "aggregate_preferences"},
			errMsg: "cannot run after score",
		},
		{
			name:   "normalize before rank",
			types:  []string{"aggregate_preferences", "score", "normalize_scores", "rank"},
			errMsg: "rank cannot run after normalize_scores",
		},
		{
			name:   "no aggregate",
			types:  []string{"score"},
			errMsg: "plan has no aggregate_preferences unit",
		},
		{
			name:   "two scores",
			types:  []string{"aggregate_preferences", "score", "score"},
			errMsg: "exactly one is allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePipelineOrder(tt.types)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

// TestPlanValidators verifies the semver and identifier struct tags.
func TestPlanValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterPlanValidators(v))

	semver := map[string]bool{
		"1.0.0":    true,
		"10.20.30": true,
		"1.0":      false,
		"1.0.0.1":  false,
		"v1.0.0":   false,
		"1.0.0 x":  false,
		"":         false,
	}
	for in, want := range semver {
		assert.Equal(t, want, v.Var(in, "semver") == nil, "semver(%q).", in)
	}

	identifiers := map[string]bool{
		"score":        true,
		"rule-bonus_2": true,
		"Score":        false,
		"2score":       false,
		"has space":    false,
		"":             false,
	}
	for in, want := range identifiers {
		assert.Equal(t, want, v.Var(in, "identifier") == nil, "identifier(%q).", in)
	}
}

// TestPlanConfig_Order verifies the definition-order fallback.
func TestPlanConfig_Order(t *testing.T) {
	cfg := PlanConfig{Units: []UnitConfig{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, []string{"a", "b"}, cfg.order())

	cfg.Pipeline = []string{"b", "a"}
	assert.Equal(t, []string{"b", "a"}, cfg.order())
}
