package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is wrapped by StateError when a unit's input is absent.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTypeMismatch is wrapped by StateError when a key holds a value of
	// another type.
	ErrTypeMismatch = errors.New("type mismatch")

	ErrInvalidConfiguration = errors.New("invalid configuration")

	ErrEventNotFound = errors.New("event not found")

	// ErrNoResponses means nobody has answered the survey yet. Callers
	// treat it as "no data", not as a ranking failure.
	ErrNoResponses = errors.New("no guest responses")

	// ErrRankingNotFound means the event has never been ranked.
	ErrRankingNotFound = errors.New("ranking not found")

	// ErrDuplicateResponse means a response with the same ID is stored.
	ErrDuplicateResponse = errors.New("duplicate response")

	// ErrPlaceNotRanked means a host picked a restaurant that is not in
	// the event's latest ranking.
	ErrPlaceNotRanked = errors.New("restaurant is not in the latest ranking")
)

// StateError reports a State entry a unit could not use.
type StateError struct {
	Key       string
	Operation string
	Err       error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// NewStateError wraps err with the key and operation it came from.
func NewStateError(key, operation string, err error) *StateError {
	return &StateError{Key: key, Operation: operation, Err: err}
}

// ValidationError collects every problem found in one entity so callers
// can report them together.
type ValidationError struct {
	Entity string
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError appends msg.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors reports whether any message was added.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError returns an empty ValidationError for entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity, Errors: make([]string, 0)}
}
