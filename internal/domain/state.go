// Package domain contains the pure models of the ranking engine: guest
// responses, the aggregated preference profile, restaurant candidates, the
// vocabulary joining them, and the copy-on-write State passed between
// pipeline units.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Key names a State entry holding a value of type T.
type Key[T any] struct{ name string }

// NewKey returns a key for units defined outside this package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Predefined state keys read and written by ranking units.
var (
	// KeyEventID identifies the event being ranked.
	KeyEventID = Key[string]{"event_id"}

	// KeyGuestResponses holds every guest response for the event.
	KeyGuestResponses = Key[[]GuestResponse]{"guest_responses"}

	// KeyPreferences holds the aggregate folded from KeyGuestResponses.
	KeyPreferences = Key[AggregatedPreferences]{"preferences"}

	// KeyCandidates holds the restaurants under consideration.
	KeyCandidates = Key[[]RestaurantCandidate]{"candidates"}

	// KeyResults holds scored candidates. Before the rank unit runs they
	// are in candidate order; afterwards they are sorted.
	KeyResults = Key[[]RankingResult]{"results"}

	// KeyPlanID identifies the ranking plan being executed.
	KeyPlanID = Key[string]{"execution.plan_id"}

	// KeyRunID identifies this execution for tracing and persistence.
	KeyRunID = Key[string]{"execution.run_id"}
)

// cloneValue copies slices, maps, pointers and exported struct fields
// recursively so that State never shares mutable memory with callers.
func cloneValue(value any) any {
	if value == nil {
		return nil
	}
	if t, ok := value.(time.Time); ok {
		return t
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			cloneInto(out.Index(i), v.Index(i))
		}
		return out.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val := reflect.New(v.Type().Elem()).Elem()
			cloneInto(val, iter.Value())
			out.SetMapIndex(iter.Key(), val)
		}
		return out.Interface()

	case reflect.Pointer:
		if v.IsNil() {
			return value
		}
		out := reflect.New(v.Elem().Type())
		cloneInto(out.Elem(), v.Elem())
		return out.Interface()

	case reflect.Struct:
		// Unexported fields keep a shallow copy.
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range v.NumField() {
			if out.Field(i).CanSet() {
				cloneInto(out.Field(i), v.Field(i))
			}
		}
		return out.Interface()

	default:
		return value
	}
}

// cloneInto stores a copy of src in the settable dst. A nil interface
// leaves dst at its zero value.
func cloneInto(dst, src reflect.Value) {
	if c := cloneValue(src.Interface()); c != nil {
		dst.Set(reflect.ValueOf(c))
	}
}

// State is the immutable bag of values a ranking plan threads through its
// units. Every write returns a new State; reads return copies, so a State
// may be shared freely between goroutines.
type State struct {
	data map[string]any
}

// NewState returns an empty State.
func NewState() State {
	return State{data: make(map[string]any)}
}

// Get returns a copy of the value stored under key. The bool is false when
// the key is absent or holds a different type.
//
//	prefs, ok := Get(state, KeyPreferences)
func Get[T any](s State, key Key[T]) (T, bool) {
	raw, ok := s.data[key.name]
	if !ok {
		var zero T
		return zero, false
	}
	val, ok := cloneValue(raw).(T)
	return val, ok
}

// Require is Get for inputs a unit cannot run without. It returns a
// *StateError wrapping ErrKeyNotFound or ErrTypeMismatch.
func Require[T any](s State, key Key[T]) (T, error) {
	var zero T
	raw, ok := s.data[key.name]
	if !ok {
		return zero, NewStateError(key.name, "require", ErrKeyNotFound)
	}
	val, ok := cloneValue(raw).(T)
	if !ok {
		return zero, NewStateError(key.name, "require", fmt.Errorf("%w: got %T", ErrTypeMismatch, raw))
	}
	return val, nil
}

// With returns a State that has value stored under key. s is unchanged.
//
//	next := With(state, KeyEventID, "evt_123")
func With[T any](s State, key Key[T], value T) State {
	data := maps.Clone(s.data)
	data[key.name] = cloneValue(value)
	return State{data: data}
}

// WithMultiple applies several updates with a single clone of the
// underlying map. Keys are the string names of typed keys.
func (s State) WithMultiple(updates map[string]any) State {
	data := maps.Clone(s.data)
	for k, v := range updates {
		data[k] = cloneValue(v)
	}
	return State{data: data}
}

// Keys lists the names of the stored entries in no particular order.
func (s State) Keys() []string {
	return slices.Collect(maps.Keys(s.data))
}

func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// ExecutionContext identifies a single ranking run.
type ExecutionContext struct {
	PlanID  string
	EventID string
	RunID   string
}

// WithExecutionContext returns a State carrying ctx.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyPlanID.name:  ctx.PlanID,
		KeyEventID.name: ctx.EventID,
		KeyRunID.name:   ctx.RunID,
	})
}

// GetExecutionContext extracts the execution context. It reports false
// if any field is missing.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	planID, ok1 := Get(s, KeyPlanID)
	eventID, ok2 := Get(s, KeyEventID)
	runID, ok3 := Get(s, KeyRunID)
	if !ok1 || !ok2 || !ok3 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{PlanID: planID, EventID: eventID, RunID: runID}, true
}
