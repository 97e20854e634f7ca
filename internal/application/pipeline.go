package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var (
	_ ports.Pipeline   = (*Pipeline)(nil)
	_ ports.Executable = (*UnitAdapter)(nil)
)

// Pipeline runs executables in strict order, feeding each one's output
// state to the next. It is safe to Execute concurrently on different
// states once built.
type Pipeline struct {
	id          string
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet   map[string]struct{}
	metrics ports.MetricsCollector
	tracer  trace.Tracer
	mu      sync.RWMutex
}

// NewPipeline creates an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
		tracer:      otel.Tracer("ranking-pipeline"),
	}
}

// SetMetrics records per-step latency on m. A nil collector disables
// step metrics.
func (p *Pipeline) SetMetrics(m ports.MetricsCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// Execute runs every step in order. It stops at the first failure or when
// ctx is cancelled between steps, returning the last good state.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	executables := make([]ports.Executable, len(p.executables))
	copy(executables, p.executables)
	metrics := p.metrics
	p.mu.RUnlock()

	ctx, span := p.tracer.Start(ctx, "Pipeline.Execute",
		trace.WithAttributes(
			attribute.String("pipeline.id", p.id),
			attribute.Int("pipeline.steps", len(executables)),
		),
	)
	defer span.End()

	current := state
	for _, exec := range executables {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return current, err
		}

		start := time.Now()
		next, err := exec.Execute(ctx, current)
		if metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			metrics.RecordLatency("unit_execution", time.Since(start), map[string]string{
				"unit":   exec.ID(),
				"status": status,
			})
		}
		if err != nil {
			span.RecordError(err)
			return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		current = next
	}
	return current, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends exec to the end of the pipeline.
// Add returns an error if exec is nil or its ID is already present.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := exec.ID()
	if _, exists := p.idSet[id]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", id)
	}
	p.executables = append(p.executables, exec)
	p.idSet[id] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered steps.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}

// UnitAdapter lets a ports.Unit run as a pipeline step.
type UnitAdapter struct {
	unit ports.Unit
	id   string
}

// NewUnitAdapter wraps unit under the plan identifier id.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{unit: unit, id: id}
}

// Execute delegates to the wrapped unit.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return ua.unit.Execute(ctx, state)
}

// ID returns the plan identifier of the wrapped unit.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
