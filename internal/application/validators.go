package application

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/infrastructure/units"
)

// Built-in unit type names.
const (
	UnitTypeAggregatePreferences = "aggregate_preferences"
	UnitTypeDedupeCandidates     = "dedupe_candidates"
	UnitTypeClassifyCuisine      = "classify_cuisine"
	UnitTypeScore                = "score"
	UnitTypeRuleBonus            = "rule_bonus"
	UnitTypeRank                 = "rank"
	UnitTypeNormalizeScores      = "normalize_scores"
)

// unitPhases orders the built-in unit types. A plan must never run a unit
// before one from an earlier phase. Registered custom types have no phase
// and may appear anywhere.
var unitPhases = map[string]int{
	UnitTypeAggregatePreferences: 0,
	UnitTypeDedupeCandidates:     0,
	UnitTypeClassifyCuisine:      0,
	UnitTypeScore:                1,
	UnitTypeRuleBonus:            2,
	UnitTypeRank:                 3,
	UnitTypeNormalizeScores:      4,
}

// unitParameterTypes returns a fresh config value for strict parameter
// decoding of each built-in type.
var unitParameterTypes = map[string]func() any{
	UnitTypeAggregatePreferences: func() any { return &units.AggregatePreferencesConfig{} },
	UnitTypeDedupeCandidates:     func() any { return &units.DedupeCandidatesConfig{} },
	UnitTypeClassifyCuisine:      func() any { return &units.ClassifyCuisineConfig{} },
	UnitTypeScore:                func() any { return &units.ScoreConfig{} },
	UnitTypeRuleBonus:            func() any { return &units.RuleBonusConfig{} },
	UnitTypeRank:                 func() any { return &units.RankConfig{} },
	UnitTypeNormalizeScores:      func() any { return &units.NormalizeScoresConfig{} },
}

// ErrUnknownParameter is returned when a plan sets a parameter the unit
// type does not define.
var ErrUnknownParameter = errors.New("unknown unit parameter")

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateUnitParameters checks that params is a mapping whose keys are all
// known to the built-in unit type, so a typo such as "veto_wieght" fails
// the plan instead of silently keeping a default. Value ranges are checked
// later by the unit's constructor. Types without a parameter schema are
// accepted as they are.
func ValidateUnitParameters(unitType string, params yaml.Node) error {
	if params.Kind == 0 || (params.Kind == yaml.ScalarNode && params.Tag == "!!null") {
		return nil
	}
	if params.Kind != yaml.MappingNode {
		return fmt.Errorf("parameters for %s must be a mapping", unitType)
	}

	newConfig, ok := unitParameterTypes[unitType]
	if !ok {
		return nil
	}

	data, err := yaml.Marshal(&params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(newConfig()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownParameter, err)
	}
	return nil
}

// validatePipelineOrder checks the phase ordering of the unit types in
// execution order and that exactly one aggregate and one score unit run.
func validatePipelineOrder(types []string) error {
	counts := make(map[string]int)
	last, lastType := -1, ""
	for _, t := range types {
		counts[t]++
		phase, ok := unitPhases[t]
		if !ok {
			continue
		}
		if phase < last {
			return fmt.Errorf("unit type %s cannot run after %s", t, lastType)
		}
		last, lastType = phase, t
	}

	for _, required := range []string{UnitTypeAggregatePreferences, UnitTypeScore} {
		switch n := counts[required]; {
		case n == 0:
			return fmt.Errorf("plan has no %s unit", required)
		case n > 1:
			return fmt.Errorf("plan has %d %s units; exactly one is allowed", n, required)
		}
	}
	return nil
}

// RegisterPlanValidators registers the custom struct tags used by plan
// configuration.
func RegisterPlanValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("identifier", validateIdentifier); err != nil {
		return fmt.Errorf("failed to register identifier validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(fl.Field().String()+" end", "%d.%d.%d %s", &major, &minor, &patch, &rest)
	return n == 4 && rest == "end" && major >= 0 && minor >= 0 && patch >= 0
}

// validateIdentifier accepts lower-case snake or kebab case.
func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}
