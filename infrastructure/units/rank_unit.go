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

var _ ports.Unit = (*RankUnit)(nil)

// RankUnit orders scored results best first with a stable sort, so
// candidates with equal scores keep the order the source returned them in.
type RankUnit struct {
	name   string
	config RankConfig
	tracer trace.Tracer
}

// RankConfig controls result truncation.
type RankConfig struct {
	// MaxResults keeps only the top results. Zero keeps everything.
	MaxResults int `yaml:"max_results" json:"max_results" validate:"min=0"`
}

// DefaultRankConfig keeps every result.
func DefaultRankConfig() RankConfig { return RankConfig{} }

// NewRankUnit creates a RankUnit.
func NewRankUnit(name string, config RankConfig) (*RankUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &RankUnit{name: name, config: config, tracer: otel.Tracer("rank-unit")}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *RankUnit) Name() string { return u.name }

// Execute sorts domain.KeyResults in place of the unsorted list.
func (u *RankUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "RankUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "rank"),
			attribute.String("unit.id", u.name),
			attribute.Int("config.max_results", u.config.MaxResults),
		),
	)
	defer span.End()

	results, err := domain.Require(state, domain.KeyResults)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}

	SortResults(results)
	if u.config.MaxResults > 0 && len(results) > u.config.MaxResults {
		results = results[:u.config.MaxResults]
	}

	span.SetAttributes(attribute.Int("rank.results", len(results)))
	return domain.With(state, domain.KeyResults, results), nil
}

// Validate verifies the unit is properly configured.
func (u *RankUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a YAML node.
func (u *RankUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// NewRankFromConfig creates a RankUnit from a plan parameter map.
func NewRankFromConfig(id string, config map[string]any, _ Dependencies) (ports.Unit, error) {
	cfg := DefaultRankConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewRankUnit(id, cfg)
}
