// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-tablefit/internal/domain"
)

// Unit represents one step of the ranking pipeline.
// Each Unit performs a specific transformation on the ranking State, such
// as folding guest responses or scoring candidates.
// Units should be stateless and thread-safe for concurrent execution.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, tracing, and configuration.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// It returns a new State containing the results of the transformation.
	// The original State must not be modified.
	// Any errors during execution should be returned rather than panicking.
	//
	// Example:
	//
	//	newState, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return domain.State{}, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks if the unit is properly configured and ready for execution.
	// It is called during plan construction before any event is ranked.
	Validate() error
}

// UnitFactory builds a Unit from its plan identifier and decoded parameters.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry creates units by type name so ranking plans can be described
// in configuration.
type UnitRegistry interface {
	// CreateUnit instantiates a unit of unitType with the given id and
	// parameters.
	CreateUnit(unitType string, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for unitType.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes lists every registered unit type.
	GetSupportedTypes() []string
}
