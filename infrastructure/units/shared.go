// Package units provides the ranking steps that implement the ports.Unit
// interface: preference aggregation, candidate dedupe and enrichment,
// scoring, rule bonuses, ranking and presentation rescaling.
package units

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// Input limits that keep a single ranking run bounded.
const (
	// MaxCandidates is the largest candidate set a run will score.
	MaxCandidates = 5000
	// MaxResponses is the largest number of guest responses folded per run.
	MaxResponses = 10000
)

// Common errors returned by ranking units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrMissingVocabulary is returned when a unit that maps labels is built
	// without a vocabulary.
	ErrMissingVocabulary = errors.New("vocabulary is required")

	// ErrMissingLLMClient is returned when an LLM-backed unit has no client.
	ErrMissingLLMClient = errors.New("LLM client is required")

	// ErrTooManyInputs is returned when a run exceeds MaxCandidates or
	// MaxResponses.
	ErrTooManyInputs = errors.New("too many inputs")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// Dependencies are the collaborators a unit factory may inject.
// Units take only what they use; nil fields are fine for units that do not
// need them.
type Dependencies struct {
	Vocabulary *domain.Vocabulary
	LLM        ports.LLMClient
	Cache      ports.CacheStore
}

// overlayConfig marshals a loosely typed parameter map to YAML and decodes
// it over cfg, so unset keys keep their defaults.
func overlayConfig[T any](params map[string]any, cfg *T) error {
	if len(params) == 0 {
		return nil
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// decodeParameters decodes a YAML node into a copy of current and validates
// it. The caller keeps current unchanged on error.
func decodeParameters[T any](params yaml.Node, current T) (T, error) {
	cfg := current
	if err := params.Decode(&cfg); err != nil {
		return current, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return current, fmt.Errorf("parameter validation failed: %w", err)
	}
	return cfg, nil
}
