package ports

import (
	"context"

	"github.com/ahrav/go-tablefit/internal/domain"
)

// Executable defines the contract for components that run as a step of a
// ranking plan.
type Executable interface {
	// Execute processes the given state and returns the updated state.
	// The context allows for cancellation and timeout control.
	// Execute must be safe for concurrent use when called on different states.
	//
	// IMPORTANT: The input state is immutable and MUST NOT be modified.
	// domain.State uses copy-on-write semantics; use domain.With or
	// state.WithMultiple to create a new state with modifications.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the unique string identifier for this component.
	// The ID must remain constant throughout the component's lifetime.
	ID() string
}

// Pipeline runs executables in strict order, feeding each one's output
// state to the next.
type Pipeline interface {
	Executable

	// Add appends an executable to the end of the sequence.
	// Add returns an error if the executable is nil or its ID is taken.
	Add(exec Executable) error

	// Executables returns the ordered list of executables.
	// The returned slice should not be modified by callers.
	Executables() []Executable
}
