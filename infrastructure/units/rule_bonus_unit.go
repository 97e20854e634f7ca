package units

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/cel-go/cel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.Unit = (*RuleBonusUnit)(nil)

// errNonFiniteRule marks a rule whose value is NaN or infinite. Such a rule
// counts as failed so scores stay finite.
var errNonFiniteRule = errors.New("rule result is not finite")

// RuleBonusUnit lets a host adjust scores with CEL expressions over a
// candidate's attributes, for example favouring wheelchair access:
//
//	- name: accessible
//	  expr: features.wheelchair_accessible
//	  weight: 8
//
// A boolean rule adds Weight when true. A numeric rule adds Weight times
// its value. Rules run after scoring and before ranking.
//
// Expressions see these variables:
//
//	name            string
//	cuisines        list(string)
//	accommodations  list(string)
//	rating          double
//	total_ratings   int
//	price_level     int
//	features        map(string, bool)
//	score           double (score before any rule)
type RuleBonusUnit struct {
	name     string
	config   RuleBonusConfig
	programs []compiledRule
	tracer   trace.Tracer
}

// Rule is one named CEL expression and its weight.
type Rule struct {
	Name   string  `yaml:"name" json:"name" validate:"required"`
	Expr   string  `yaml:"expr" json:"expr" validate:"required"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// RuleBonusConfig lists the rules to apply.
type RuleBonusConfig struct {
	Rules []Rule `yaml:"rules" json:"rules" validate:"dive"`

	// Strict fails the run when a rule errors on a candidate. Otherwise
	// the failing rule contributes nothing for that candidate.
	Strict bool `yaml:"strict" json:"strict"`
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// DefaultRuleBonusConfig has no rules.
func DefaultRuleBonusConfig() RuleBonusConfig { return RuleBonusConfig{} }

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("cuisines", cel.ListType(cel.StringType)),
		cel.Variable("accommodations", cel.ListType(cel.StringType)),
		cel.Variable("rating", cel.DoubleType),
		cel.Variable("total_ratings", cel.IntType),
		cel.Variable("price_level", cel.IntType),
		cel.Variable("features", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("score", cel.DoubleType),
	)
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, iss := env.Compile(r.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("rule %q: compile: %w", r.Name, iss.Err())
		}
		switch t := ast.OutputType().String(); t {
		case "bool", "double", "int", "dyn":
		default:
			return nil, fmt.Errorf("rule %q: expression must be bool or numeric, got %s", r.Name, t)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: program: %w", r.Name, err)
		}
		out = append(out, compiledRule{Rule: r, prg: prg})
	}
	return out, nil
}

// NewRuleBonusUnit compiles the configured rules.
func NewRuleBonusUnit(name string, config RuleBonusConfig) (*RuleBonusUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	programs, err := compileRules(config.Rules)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &RuleBonusUnit{
		name:     name,
		config:   config,
		programs: programs,
		tracer:   otel.Tracer("rule-bonus-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *RuleBonusUnit) Name() string { return u.name }

// Execute adds rule bonuses to every entry of domain.KeyResults.
func (u *RuleBonusUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "RuleBonusUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "rule_bonus"),
			attribute.String("unit.id", u.name),
			attribute.Int("config.rules", len(u.programs)),
		),
	)
	defer span.End()

	results, err := domain.Require(state, domain.KeyResults)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}

	failures := 0
	for i := range results {
		bonus, n, err := u.Apply(results[i])
		if err != nil {
			span.RecordError(err)
			return state, fmt.Errorf("unit %s: %w", u.name, err)
		}
		failures += n
		results[i].Breakdown.Rules += bonus
		results[i].Score += bonus
	}

	span.SetAttributes(attribute.Int("rules.failures", failures))
	return domain.With(state, domain.KeyResults, results), nil
}

// Apply evaluates every rule against r and returns the total bonus and the
// number of rules that failed to evaluate. An error is returned only in
// strict mode.
func (u *RuleBonusUnit) Apply(r domain.RankingResult) (float64, int, error) {
	c := r.Restaurant
	accommodations := c.Accommodations
	if accommodations == nil {
		accommodations = []string{}
	}
	vars := map[string]any{
		"name":           c.Name,
		"cuisines":       c.UniqueCuisines(),
		"accommodations": accommodations,
		"rating":         c.Rating,
		"total_ratings":  int64(c.TotalRatings),
		"price_level":    int64(c.PriceLevel),
		"features":       c.Features.Map(),
		"score":          r.Score,
	}

	var bonus float64
	failures := 0
	for _, p := range u.programs {
		v, err := evalRule(p, vars)
		if err != nil {
			if u.config.Strict {
				return 0, failures + 1, fmt.Errorf("rule %q on %s: %w", p.Name, c.PlaceID, err)
			}
			failures++
			continue
		}
		contribution := v * p.Weight
		if math.IsInf(contribution, 0) {
			if u.config.Strict {
				return 0, failures + 1, fmt.Errorf("rule %q on %s: %w: %v", p.Name, c.PlaceID, errNonFiniteRule, contribution)
			}
			failures++
			continue
		}
		bonus += contribution
	}
	return bonus, failures, nil
}

func evalRule(p compiledRule, vars map[string]any) (float64, error) {
	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return 0, err
	}
	switch v := out.Value().(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %v", errNonFiniteRule, v)
		}
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported result type %T", v)
	}
}

// Validate verifies the unit is properly configured.
func (u *RuleBonusUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(u.programs) != len(u.config.Rules) {
		return fmt.Errorf("unit %s: rules are not compiled", u.name)
	}
	return nil
}

// UnmarshalParameters replaces and recompiles the rules from a YAML node.
func (u *RuleBonusUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	programs, err := compileRules(cfg.Rules)
	if err != nil {
		return err
	}
	u.config, u.programs = cfg, programs
	return nil
}

// NewRuleBonusFromConfig creates the unit from a plan parameter map.
func NewRuleBonusFromConfig(id string, config map[string]any, _ Dependencies) (ports.Unit, error) {
	cfg := DefaultRuleBonusConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewRuleBonusUnit(id, cfg)
}
