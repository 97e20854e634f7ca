package units

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.Unit = (*NormalizeScoresUnit)(nil)

// NormalizeScoresUnit rescales raw scores into DisplayScore for
// presentation. It min-max maps the batch onto [0, Band]; a batch whose
// scores are all equal maps every result to Band. Raw scores and ordering
// are left untouched.
type NormalizeScoresUnit struct {
	name   string
	config NormalizeScoresConfig
	tracer trace.Tracer
}

// NormalizeScoresConfig sets the display band.
type NormalizeScoresConfig struct {
	// Band is the upper end of the display range, such as 100 or 10.
	Band float64 `yaml:"band" json:"band" validate:"gt=0"`

	// Precision is the number of decimal places kept.
	Precision int `yaml:"precision" json:"precision" validate:"min=0,max=6"`
}

// DefaultNormalizeScoresConfig maps scores onto 0-100 with one decimal.
func DefaultNormalizeScoresConfig() NormalizeScoresConfig {
	return NormalizeScoresConfig{Band: 100, Precision: 1}
}

// NewNormalizeScoresUnit creates a NormalizeScoresUnit.
func NewNormalizeScoresUnit(name string, config NormalizeScoresConfig) (*NormalizeScoresUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &NormalizeScoresUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("normalize-scores-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *NormalizeScoresUnit) Name() string { return u.name }

// Execute fills DisplayScore on every entry of domain.KeyResults.
func (u *NormalizeScoresUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "NormalizeScoresUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "normalize_scores"),
			attribute.String("unit.id", u.name),
			attribute.Float64("config.band", u.config.Band),
		),
	)
	defer span.End()

	results, err := domain.Require(state, domain.KeyResults)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}

	u.Normalize(results)
	return domain.With(state, domain.KeyResults, results), nil
}

// Normalize sets DisplayScore on results in place.
func (u *NormalizeScoresUnit) Normalize(results []domain.RankingResult) {
	if len(results) == 0 {
		return
	}
	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		lo = math.Min(lo, r.Score)
		hi = math.Max(hi, r.Score)
	}

	scale := math.Pow(10, float64(u.config.Precision))
	for i := range results {
		v := u.config.Band
		if hi > lo {
			v = (results[i].Score - lo) / (hi - lo) * u.config.Band
		}
		results[i].DisplayScore = math.Round(v*scale) / scale
	}
}

// Validate verifies the unit is properly configured.
func (u *NormalizeScoresUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a YAML node.
func (u *NormalizeScoresUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// NewNormalizeScoresFromConfig creates the unit from a plan parameter map.
func NewNormalizeScoresFromConfig(id string, config map[string]any, _ Dependencies) (ports.Unit, error) {
	cfg := DefaultNormalizeScoresConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewNormalizeScoresUnit(id, cfg)
}
