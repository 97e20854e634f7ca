package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-tablefit/infrastructure/units"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry creates ranking units by type name. The built-in
// types are registered on construction and receive the shared
// dependencies; hosts may add their own types with RegisterUnitFactory.
type DefaultUnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// deps are injected into built-in units that need them.
	deps units.Dependencies
	mu   sync.RWMutex
}

// NewDefaultUnitRegistry creates a registry with every built-in unit type.
// A nil deps.LLM only matters to plans that use classify_cuisine.
func NewDefaultUnitRegistry(deps units.Dependencies) *DefaultUnitRegistry {
	r := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
		deps:      deps,
	}
	r.registerBuiltinFactories()
	return r
}

type depsFactory func(id string, config map[string]any, deps units.Dependencies) (ports.Unit, error)

// registerBuiltinFactories binds the current dependencies into each
// built-in factory. Callers must hold mu or be the constructor.
func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	deps := r.deps
	builtin := map[string]depsFactory{
		UnitTypeAggregatePreferences: units.NewAggregatePreferencesFromConfig,
		UnitTypeDedupeCandidates:     units.NewDedupeCandidatesFromConfig,
		UnitTypeClassifyCuisine:      units.NewClassifyCuisineFromConfig,
		UnitTypeScore:                units.NewScoreFromConfig,
		UnitTypeRuleBonus:            units.NewRuleBonusFromConfig,
		UnitTypeRank:                 units.NewRankFromConfig,
		UnitTypeNormalizeScores:      units.NewNormalizeScoresFromConfig,
	}
	for name, f := range builtin {
		r.factories[name] = func(id string, config map[string]any) (ports.Unit, error) {
			return f(id, config, deps)
		}
	}
}

// CreateUnit instantiates a unit of unitType.
func (r *DefaultUnitRegistry) CreateUnit(unitType string, id string, config map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}
	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}
	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterUnitFactory adds or replaces the factory for unitType.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[unitType] = factory
	return nil
}

// GetSupportedTypes returns every registered unit type in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	slices.Sort(types)
	return types
}

// SetDependencies swaps the dependencies used by built-in units created
// from now on. Custom factories are left alone.
func (r *DefaultUnitRegistry) SetDependencies(deps units.Dependencies) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = deps
	r.registerBuiltinFactories()
}

// Dependencies returns the dependencies injected into built-in units.
func (r *DefaultUnitRegistry) Dependencies() units.Dependencies {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deps
}
