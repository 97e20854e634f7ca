package application

import (
	"gopkg.in/yaml.v3"
)

// PlanConfig is the declarative description of a ranking plan: the units
// to build and the order they run in.
type PlanConfig struct {
	// Version is the plan schema version in X.Y.Z form.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata names and describes the plan.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Units defines every unit the plan may run.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`
	// Pipeline lists unit IDs in execution order. When empty, units run in
	// the order they are defined.
	Pipeline []string `yaml:"pipeline" validate:"omitempty,dive,identifier"`
}

// Metadata describes a plan for operators and logs.
type Metadata struct {
	// Name identifies the plan and is recorded on every ranking run.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what the plan favours.
	Description string `yaml:"description" validate:"max=1000"`
	// Labels are free-form key-value pairs.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// UnitConfig defines one unit of a plan.
type UnitConfig struct {
	// ID is unique within the plan and referenced by Pipeline.
	ID string `yaml:"id" validate:"required,identifier,max=100"`
	// Type selects the unit implementation from the registry.
	Type string `yaml:"type" validate:"required,identifier"`
	// Parameters are decoded by the unit's factory over its defaults.
	Parameters yaml.Node `yaml:"parameters"`
}

// order returns the unit IDs in execution order.
func (c *PlanConfig) order() []string {
	if len(c.Pipeline) > 0 {
		return c.Pipeline
	}
	ids := make([]string, len(c.Units))
	for i, u := range c.Units {
		ids[i] = u.ID
	}
	return ids
}
