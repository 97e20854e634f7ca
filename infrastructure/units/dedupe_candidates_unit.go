package units

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.Unit = (*DedupeCandidatesUnit)(nil)

// DedupeCandidatesUnit merges candidates returned by overlapping area
// searches. Records sharing a PlaceID collapse to the richer one; records
// without an ID pass through. It can also strip provider tags that are not
// cuisine categories, such as "point_of_interest".
type DedupeCandidatesUnit struct {
	name   string
	config DedupeCandidatesConfig
	vocab  *domain.Vocabulary
	tracer trace.Tracer
}

// DedupeCandidatesConfig controls tag cleanup.
type DedupeCandidatesConfig struct {
	// FilterUnknownCuisines drops tags the vocabulary does not list.
	FilterUnknownCuisines bool `yaml:"filter_unknown_cuisines" json:"filter_unknown_cuisines"`
}

// DefaultDedupeCandidatesConfig filters unknown tags.
func DefaultDedupeCandidatesConfig() DedupeCandidatesConfig {
	return DedupeCandidatesConfig{FilterUnknownCuisines: true}
}

// NewDedupeCandidatesUnit creates a DedupeCandidatesUnit. The vocabulary
// is required only when FilterUnknownCuisines is set.
func NewDedupeCandidatesUnit(
	name string,
	config DedupeCandidatesConfig,
	vocab *domain.Vocabulary,
) (*DedupeCandidatesUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if config.FilterUnknownCuisines && vocab == nil {
		return nil, ErrMissingVocabulary
	}
	return &DedupeCandidatesUnit{
		name:   name,
		config: config,
		vocab:  vocab,
		tracer: otel.Tracer("dedupe-candidates-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *DedupeCandidatesUnit) Name() string { return u.name }

// Execute rewrites domain.KeyCandidates without duplicates.
func (u *DedupeCandidatesUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "DedupeCandidatesUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "dedupe_candidates"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	candidates, err := domain.Require(state, domain.KeyCandidates)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}

	merged := u.Dedupe(candidates)

	span.SetAttributes(
		attribute.Int("dedupe.input", len(candidates)),
		attribute.Int("dedupe.output", len(merged)),
	)
	return domain.With(state, domain.KeyCandidates, merged), nil
}

// Dedupe merges duplicates and, if configured, drops unknown tags.
func (u *DedupeCandidatesUnit) Dedupe(candidates []domain.RestaurantCandidate) []domain.RestaurantCandidate {
	if u.config.FilterUnknownCuisines {
		cleaned := make([]domain.RestaurantCandidate, len(candidates))
		for i, c := range candidates {
			c.Cuisines = u.knownCuisines(c.Cuisines)
			cleaned[i] = c
		}
		candidates = cleaned
	}
	return domain.MergeCandidates(candidates)
}

func (u *DedupeCandidatesUnit) knownCuisines(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if u.vocab.IsCategory(t) {
			out = append(out, t)
		}
	}
	return out
}

// Validate verifies the unit is properly configured.
func (u *DedupeCandidatesUnit) Validate() error {
	if u.config.FilterUnknownCuisines && u.vocab == nil {
		return ErrMissingVocabulary
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a YAML node.
func (u *DedupeCandidatesUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	if cfg.FilterUnknownCuisines && u.vocab == nil {
		return ErrMissingVocabulary
	}
	u.config = cfg
	return nil
}

// NewDedupeCandidatesFromConfig creates the unit from a plan parameter map.
func NewDedupeCandidatesFromConfig(id string, config map[string]any, deps Dependencies) (ports.Unit, error) {
	cfg := DefaultDedupeCandidatesConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewDedupeCandidatesUnit(id, cfg, deps.Vocabulary)
}
