package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

//go:embed plans/*.yaml
var builtinPlans embed.FS

// Plan is a compiled ranking plan. It is immutable once loaded and may be
// shared by concurrent ranking runs.
type Plan struct {
	// Name comes from the plan metadata.
	Name string
	// Hash is the SHA-256 of the normalized configuration.
	Hash string

	pipeline *Pipeline
	units    map[string]ports.Unit
}

// Execute runs the plan over state, tagging it with the plan name.
func (p *Plan) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return p.pipeline.Execute(ctx, domain.With(state, domain.KeyPlanID, p.Name))
}

// Steps returns the unit IDs in execution order.
func (p *Plan) Steps() []string {
	execs := p.pipeline.Executables()
	ids := make([]string, len(execs))
	for i, e := range execs {
		ids[i] = e.ID()
	}
	return ids
}

// Unit returns the unit built for id.
func (p *Plan) Unit(id string) (ports.Unit, bool) {
	u, ok := p.units[id]
	return u, ok
}

// SetMetrics forwards per-step latency to m.
func (p *Plan) SetMetrics(m ports.MetricsCollector) { p.pipeline.SetMetrics(m) }

// PlanLoader parses, validates and compiles ranking plans. Compiled plans
// are cached by the hash of their normalized configuration, and concurrent
// loads of the same plan compile it once.
type PlanLoader struct {
	validator    *validator.Validate
	unitRegistry ports.UnitRegistry
	// cache maps a config hash to its compiled plan. Cached plans are
	// shared and must not be modified.
	cache   map[string]*Plan
	cacheMu sync.RWMutex
	sf      singleflight.Group
}

// NewPlanLoader creates a loader that builds units from unitRegistry.
func NewPlanLoader(unitRegistry ports.UnitRegistry) (*PlanLoader, error) {
	v := validator.New()
	if err := RegisterPlanValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &PlanLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		cache:        make(map[string]*Plan),
	}, nil
}

// LoadFromFile loads a plan from a YAML file.
func (pl *PlanLoader) LoadFromFile(ctx context.Context, path string) (*Plan, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pl.load(ctx, data)
}

// LoadFromReader loads a plan from r.
func (pl *PlanLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.load(ctx, data)
}

// LoadBuiltin loads one of the plans compiled into the binary, such as
// "default" or "classified".
func (pl *PlanLoader) LoadBuiltin(ctx context.Context, name string) (*Plan, error) {
	data, err := builtinPlans.ReadFile("plans/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown builtin plan %q: %w", name, err)
	}
	return pl.load(ctx, data)
}

func (pl *PlanLoader) load(ctx context.Context, data []byte) (*Plan, error) {
	config, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if plan, ok := pl.getCachedPlan(hash); ok {
			return plan, nil
		}
		if err := pl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		plan, err := pl.buildPlan(ctx, config, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to build plan: %w", err)
		}
		pl.cachePlan(hash, plan)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Plan), nil
}

// parseYAML decodes strictly so misspelled top-level keys fail.
func (pl *PlanLoader) parseYAML(data []byte) (*PlanConfig, error) {
	var config PlanConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (pl *PlanLoader) validateConfig(config *PlanConfig) error {
	if err := pl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := pl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics checks rules struct tags cannot express: unique IDs,
// registered types, known parameters, pipeline references and unit
// ordering.
func (pl *PlanLoader) validateSemantics(config *PlanConfig) error {
	supported := pl.unitRegistry.GetSupportedTypes()
	types := make(map[string]string, len(config.Units))
	for _, u := range config.Units {
		if _, dup := types[u.ID]; dup {
			return fmt.Errorf("duplicate unit ID %q", u.ID)
		}
		if !slices.Contains(supported, u.Type) {
			return fmt.Errorf("unit %s has unsupported type %q", u.ID, u.Type)
		}
		if err := ValidateUnitParameters(u.Type, u.Parameters); err != nil {
			return fmt.Errorf("unit %s parameter validation failed: %w", u.ID, err)
		}
		types[u.ID] = u.Type
	}

	order := config.order()
	seen := make(map[string]struct{}, len(order))
	ordered := make([]string, 0, len(order))
	for _, id := range order {
		t, ok := types[id]
		if !ok {
			return fmt.Errorf("pipeline references non-existent unit: %s", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("pipeline lists unit %s more than once", id)
		}
		seen[id] = struct{}{}
		ordered = append(ordered, t)
	}
	return validatePipelineOrder(ordered)
}

func (pl *PlanLoader) buildPlan(ctx context.Context, config *PlanConfig, hash string) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]UnitConfig, len(config.Units))
	for _, u := range config.Units {
		byID[u.ID] = u
	}

	plan := &Plan{
		Name:     config.Metadata.Name,
		Hash:     hash,
		pipeline: NewPipeline(config.Metadata.Name),
		units:    make(map[string]ports.Unit),
	}
	for _, id := range config.order() {
		unit, err := pl.createUnit(byID[id])
		if err != nil {
			return nil, fmt.Errorf("failed to create unit %s: %w", id, err)
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("unit %s is not ready: %w", id, err)
		}
		if err := plan.pipeline.Add(NewUnitAdapter(unit, id)); err != nil {
			return nil, err
		}
		plan.units[id] = unit
	}
	return plan, nil
}

func (pl *PlanLoader) createUnit(config UnitConfig) (ports.Unit, error) {
	params := make(map[string]any)
	if config.Parameters.Kind == yaml.MappingNode {
		if err := config.Parameters.Decode(&params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	return pl.unitRegistry.CreateUnit(config.Type, config.ID, params)
}

// calculateConfigHash hashes the re-encoded configuration so formatting
// and comments do not affect caching.
func calculateConfigHash(config *PlanConfig) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (pl *PlanLoader) getCachedPlan(hash string) (*Plan, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()
	p, ok := pl.cache[hash]
	return p, ok
}

func (pl *PlanLoader) cachePlan(hash string, plan *Plan) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()
	pl.cache[hash] = plan
}

// ClearCache drops every compiled plan.
func (pl *PlanLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()
	pl.cache = make(map[string]*Plan)
}
