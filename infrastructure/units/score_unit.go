package units

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.Unit = (*ScoreUnit)(nil)

// ScoreUnit computes an additive score for every candidate against the
// event's aggregated preferences.
//
// The score is the sum of independent terms:
//
//	cuisine    Σ over distinct tags of CuisineScores[t]*CuisineWeight - Vetoes[t]*VetoWeight
//	rating     Rating*RatingWeight
//	popularity min(log10(TotalRatings)*PopularityWeight, PopularityCap)
//	price      +PriceBonus at or under the ceiling, -PricePenalty above it,
//	           0 for unknown prices or an unconstrained ceiling
//	dietary    -DietaryPenalty when a vegetarian-style restriction is declared
//	           and the candidate cannot serve it
//
// Mismatches are penalized rather than filtered so a ranking is never
// empty while candidates exist.
//
// Execute stores results in candidate order; the rank unit sorts them.
// Rank scores and sorts in one call for callers that skip the pipeline.
type ScoreUnit struct {
	name   string
	config ScoreConfig
	tracer trace.Tracer
}

// ScoreConfig holds the scoring weights.
type ScoreConfig struct {
	// CuisineWeight multiplies each aggregated preference point.
	CuisineWeight float64 `yaml:"cuisine_weight" json:"cuisine_weight" validate:"gt=0"`

	// VetoWeight multiplies each guest veto. It must exceed the most one
	// guest can add for a cuisine, CuisineWeight*GuestPointBudget, so a
	// single veto outweighs a single guest's preference.
	VetoWeight float64 `yaml:"veto_weight" json:"veto_weight" validate:"gt=0"`

	// RatingWeight multiplies the blended star rating.
	RatingWeight float64 `yaml:"rating_weight" json:"rating_weight" validate:"gte=0"`

	// PopularityWeight multiplies log10 of the review count.
	PopularityWeight float64 `yaml:"popularity_weight" json:"popularity_weight" validate:"gte=0"`

	// PopularityCap bounds the popularity term.
	PopularityCap float64 `yaml:"popularity_cap" json:"popularity_cap" validate:"gte=0"`

	// PriceBonus is added when the candidate fits the group ceiling.
	PriceBonus float64 `yaml:"price_bonus" json:"price_bonus" validate:"gte=0"`

	// PricePenalty is subtracted when the candidate exceeds the ceiling.
	PricePenalty float64 `yaml:"price_penalty" json:"price_penalty" validate:"gtfield=PriceBonus"`

	// DietaryPenalty is subtracted once when a required vegetarian-style
	// accommodation is missing.
	DietaryPenalty float64 `yaml:"dietary_penalty" json:"dietary_penalty" validate:"gte=0"`

	// VegetarianRestrictions are the restrictions served by a candidate
	// whose serves_vegetarian flag is set.
	VegetarianRestrictions []string `yaml:"vegetarian_restrictions" json:"vegetarian_restrictions" validate:"dive,required"`

	// Parallelism bounds concurrent scoring goroutines. Values below 2
	// score sequentially.
	Parallelism int `yaml:"parallelism" json:"parallelism" validate:"min=0,max=256"`

	// ParallelThreshold is the candidate count below which scoring stays
	// sequential regardless of Parallelism.
	ParallelThreshold int `yaml:"parallel_threshold" json:"parallel_threshold" validate:"min=0"`
}

// DefaultScoreConfig returns the canonical weights.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		CuisineWeight:          5,
		VetoWeight:             30,
		RatingWeight:           5,
		PopularityWeight:       2,
		PopularityCap:          10,
		PriceBonus:             10,
		PricePenalty:           15,
		DietaryPenalty:         50,
		VegetarianRestrictions: []string{"Vegetarian", "Vegan"},
		Parallelism:            4,
		ParallelThreshold:      256,
	}
}

func validateScoreConfig(config ScoreConfig) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if floor := config.CuisineWeight * domain.GuestPointBudget; config.VetoWeight <= floor {
		return fmt.Errorf("configuration validation failed: veto_weight %.2f must exceed cuisine_weight*%.0f = %.2f",
			config.VetoWeight, domain.GuestPointBudget, floor)
	}
	return nil
}

// NewScoreUnit creates a ScoreUnit with validated weights.
func NewScoreUnit(name string, config ScoreConfig) (*ScoreUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validateScoreConfig(config); err != nil {
		return nil, err
	}
	return &ScoreUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("score-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *ScoreUnit) Name() string { return u.name }

// Execute reads domain.KeyPreferences and domain.KeyCandidates and writes
// domain.KeyResults in candidate order.
func (u *ScoreUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "ScoreUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "score"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	prefs, err := domain.Require(state, domain.KeyPreferences)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}
	candidates, err := domain.Require(state, domain.KeyCandidates)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}
	if len(candidates) > MaxCandidates {
		err := fmt.Errorf("unit %s: %w: %d candidates exceeds limit of %d",
			u.name, ErrTooManyInputs, len(candidates), MaxCandidates)
		span.RecordError(err)
		return state, err
	}

	results, err := u.ScoreAll(ctx, candidates, prefs)
	if err != nil {
		span.RecordError(err)
		return state, fmt.Errorf("unit %s: %w", u.name, err)
	}

	span.SetAttributes(
		attribute.Int("score.candidates", len(results)),
		attribute.Bool("no_llm_cost", true),
	)
	return domain.With(state, domain.KeyResults, results), nil
}

// Score returns the raw score of one candidate.
func (u *ScoreUnit) Score(c domain.RestaurantCandidate, prefs domain.AggregatedPreferences) float64 {
	return u.Breakdown(c, prefs).Total()
}

// Breakdown returns every term of the candidate's score.
func (u *ScoreUnit) Breakdown(c domain.RestaurantCandidate, prefs domain.AggregatedPreferences) domain.ScoreBreakdown {
	cfg := u.config
	var b domain.ScoreBreakdown

	for _, tag := range c.UniqueCuisines() {
		b.Cuisine += prefs.CuisineScores[tag] * cfg.CuisineWeight
		b.Cuisine -= float64(prefs.AntiPreferredCuisines[tag]) * cfg.VetoWeight
	}

	if rating := c.Rating; !math.IsNaN(rating) && !math.IsInf(rating, 0) {
		b.Rating = rating * cfg.RatingWeight
	}
	if c.TotalRatings > 1 {
		b.Popularity = math.Min(math.Log10(float64(c.TotalRatings))*cfg.PopularityWeight, cfg.PopularityCap)
	}

	if c.PriceLevel != domain.PriceUnspecified && prefs.MaxEffectivePrice.Constrained {
		if prefs.MaxEffectivePrice.Admits(c.PriceLevel) {
			b.Price = cfg.PriceBonus
		} else {
			b.Price = -cfg.PricePenalty
		}
	}

	if u.missesDietaryNeed(c, prefs) {
		b.Dietary = -cfg.DietaryPenalty
	}
	return b
}

func (u *ScoreUnit) missesDietaryNeed(c domain.RestaurantCandidate, prefs domain.AggregatedPreferences) bool {
	for _, r := range u.config.VegetarianRestrictions {
		if !prefs.HasRestriction(r) {
			continue
		}
		if !c.Features.ServesVegetarian && !c.Accommodates(r) {
			return true
		}
	}
	return false
}

// ScoreAll scores every candidate and returns results in input order.
// Large sets are scored concurrently; the output order does not depend on
// completion order.
func (u *ScoreUnit) ScoreAll(
	ctx context.Context,
	candidates []domain.RestaurantCandidate,
	prefs domain.AggregatedPreferences,
) ([]domain.RankingResult, error) {
	results := make([]domain.RankingResult, len(candidates))
	score := func(i int) {
		b := u.Breakdown(candidates[i], prefs)
		results[i] = domain.RankingResult{
			Restaurant: candidates[i],
			Score:      b.Total(),
			Breakdown:  b,
		}
	}

	if u.config.Parallelism < 2 || len(candidates) < u.config.ParallelThreshold {
		for i := range candidates {
			score(i)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.config.Parallelism)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each goroutine owns results[i]; no lock needed.
			score(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring cancelled: %w", err)
	}
	return results, nil
}

// Rank scores candidates and returns them best first. Equal scores keep
// their input order.
func (u *ScoreUnit) Rank(
	ctx context.Context,
	candidates []domain.RestaurantCandidate,
	prefs domain.AggregatedPreferences,
) ([]domain.RankingResult, error) {
	results, err := u.ScoreAll(ctx, candidates, prefs)
	if err != nil {
		return nil, err
	}
	SortResults(results)
	return results, nil
}

// SortResults orders results by descending score with a stable sort.
func SortResults(results []domain.RankingResult) {
	slices.SortStableFunc(results, func(a, b domain.RankingResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// Validate verifies the unit is properly configured.
func (u *ScoreUnit) Validate() error { return validateScoreConfig(u.config) }

// UnmarshalParameters replaces the weights from a YAML node. The
// configuration is unchanged on error.
func (u *ScoreUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	if err := validateScoreConfig(cfg); err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// NewScoreFromConfig creates a ScoreUnit from a plan parameter map.
// Scoring is deterministic and ignores the LLM dependency.
func NewScoreFromConfig(id string, config map[string]any, _ Dependencies) (ports.Unit, error) {
	cfg := DefaultScoreConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewScoreUnit(id, cfg)
}
