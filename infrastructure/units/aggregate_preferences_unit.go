package units

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.Unit = (*AggregatePreferencesUnit)(nil)

// AggregatePreferencesUnit folds every guest response for an event into a
// single AggregatedPreferences profile.
//
// Cuisine preferences use a Borda-style budget: each guest distributes
// domain.GuestPointBudget points over their ranked list. A lone preference
// takes all of it; otherwise the first choice takes domain.FirstChoiceShare
// and the rest is split evenly. Vetoes count one per guest, dietary
// restrictions are unioned, and the group price ceiling is the lowest of
// the guests' personal maxima.
//
// Aggregation never fails on content. Missing lists count as empty and
// unknown labels or tokens fall through to sentinels that match nothing.
// The unit is stateless and safe for concurrent use.
type AggregatePreferencesUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config AggregatePreferencesConfig
	// vocab maps guest labels and price tokens.
	vocab *domain.Vocabulary
	// tracer emits spans for Execute.
	tracer trace.Tracer
}

// AggregatePreferencesConfig controls how responses are folded.
type AggregatePreferencesConfig struct {
	// MaxPreferredCuisines caps how many ranked cuisines count per guest.
	// Entries past the cap are ignored; the budget is still fully spent.
	MaxPreferredCuisines int `yaml:"max_preferred_cuisines" json:"max_preferred_cuisines" validate:"min=1,max=20"`
}

// DefaultAggregatePreferencesConfig matches the five-choice response form.
func DefaultAggregatePreferencesConfig() AggregatePreferencesConfig {
	return AggregatePreferencesConfig{MaxPreferredCuisines: 5}
}

// NewAggregatePreferencesUnit creates an AggregatePreferencesUnit.
// Returns ErrEmptyUnitName if name is empty, ErrMissingVocabulary if vocab
// is nil, or a configuration validation error.
func NewAggregatePreferencesUnit(
	name string,
	config AggregatePreferencesConfig,
	vocab *domain.Vocabulary,
) (*AggregatePreferencesUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if vocab == nil {
		return nil, ErrMissingVocabulary
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &AggregatePreferencesUnit{
		name:   name,
		config: config,
		vocab:  vocab,
		tracer: otel.Tracer("aggregate-preferences-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *AggregatePreferencesUnit) Name() string { return u.name }

// Execute reads domain.KeyGuestResponses and writes domain.KeyPreferences.
// An empty response list yields an empty, unconstrained aggregate.
func (u *AggregatePreferencesUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "AggregatePreferencesUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "aggregate_preferences"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	responses, err := domain.Require(state, domain.KeyGuestResponses)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}
	if len(responses) > MaxResponses {
		err := fmt.Errorf("unit %s: %w: %d responses exceeds limit of %d",
			u.name, ErrTooManyInputs, len(responses), MaxResponses)
		span.RecordError(err)
		return state, err
	}

	prefs := u.Aggregate(responses)

	span.SetAttributes(
		attribute.Int("aggregate.responses", prefs.ResponseCount),
		attribute.Int("aggregate.cuisines", len(prefs.CuisineScores)),
		attribute.Int("aggregate.vetoes", len(prefs.AntiPreferredCuisines)),
		attribute.Int("aggregate.restrictions", len(prefs.DietaryRestrictions)),
		attribute.String("aggregate.price_ceiling", prefs.MaxEffectivePrice.String()),
	)

	return domain.With(state, domain.KeyPreferences, prefs), nil
}

// Aggregate folds responses into a fresh profile. It is a pure function of
// its input: permuting responses changes sums only within floating point
// rounding.
func (u *AggregatePreferencesUnit) Aggregate(responses []domain.GuestResponse) domain.AggregatedPreferences {
	prefs := domain.NewAggregatedPreferences()
	for _, r := range responses {
		u.fold(&prefs, r)
	}
	return prefs
}

func (u *AggregatePreferencesUnit) fold(acc *domain.AggregatedPreferences, r domain.GuestResponse) {
	acc.ResponseCount++

	ranked := distinct(r.PreferredCuisines)
	if len(ranked) > u.config.MaxPreferredCuisines {
		ranked = ranked[:u.config.MaxPreferredCuisines]
	}
	for i, label := range ranked {
		acc.CuisineScores[u.vocab.Category(label)] += BordaShare(i, len(ranked))
	}

	for _, label := range distinct(r.AntiPreferredCuisines) {
		acc.AntiPreferredCuisines[u.vocab.Category(label)]++
	}

	for _, tag := range r.DietaryRestrictions {
		if canonical, _ := u.vocab.Restriction(tag); canonical != "" {
			acc.DietaryRestrictions[canonical] = struct{}{}
		}
	}

	if ceiling, ok := u.personalMax(r.AcceptablePriceRanges); ok {
		acc.MaxEffectivePrice = acc.MaxEffectivePrice.Lower(ceiling)
	}
}

// personalMax returns the highest tier a guest accepts. Guests who gave no
// usable price tier do not constrain the group.
func (u *AggregatePreferencesUnit) personalMax(tokens []string) (domain.PriceTier, bool) {
	highest := domain.PriceUnspecified
	for _, tok := range tokens {
		if tier := u.vocab.PriceTier(tok); tier > highest {
			highest = tier
		}
	}
	return highest, highest != domain.PriceUnspecified
}

// BordaShare returns the points awarded to the cuisine at position i of an
// n-item ranked list. Shares over a full list always sum to
// domain.GuestPointBudget.
func BordaShare(i, n int) float64 {
	switch {
	case n <= 0 || i < 0 || i >= n:
		return 0
	case n == 1:
		return domain.GuestPointBudget
	case i == 0:
		return domain.FirstChoiceShare
	default:
		return (domain.GuestPointBudget - domain.FirstChoiceShare) / float64(n-1)
	}
}

// distinct trims labels and drops blanks and repeats, keeping the first
// occurrence so rank order survives.
func distinct(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Validate verifies the unit is properly configured.
func (u *AggregatePreferencesUnit) Validate() error {
	if u.vocab == nil {
		return ErrMissingVocabulary
	}
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a YAML node. The
// configuration is unchanged on error.
func (u *AggregatePreferencesUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// NewAggregatePreferencesFromConfig creates the unit from a plan parameter
// map. This is the boundary adapter for YAML/JSON configuration.
func NewAggregatePreferencesFromConfig(id string, config map[string]any, deps Dependencies) (ports.Unit, error) {
	cfg := DefaultAggregatePreferencesConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewAggregatePreferencesUnit(id, cfg, deps.Vocabulary)
}
