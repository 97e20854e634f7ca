package units

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.Unit = (*ClassifyCuisineUnit)(nil)

// DefaultClassifyPrompt asks the model to pick cuisine labels and dietary
// accommodations from closed lists.
const DefaultClassifyPrompt = `You classify restaurants for a group dining planner.

Restaurant: {{.Name}}
Address: {{.Address}}
Provider tags: {{join .Tags ", "}}

Choose the cuisines that best describe this restaurant, using ONLY labels from this list:
{{join .Labels ", "}}

Choose the dietary restrictions this restaurant can reliably accommodate, using ONLY values from this list:
{{join .Restrictions ", "}}

Respond with JSON only, in exactly this format:
{"cuisines": ["<label>", ...], "dietary": ["<restriction>", ...]}`

// Classification is the cached outcome of classifying one restaurant.
type Classification struct {
	Cuisines []string `json:"cuisines"`
	Dietary  []string `json:"dietary"`
}

// ClassifyCuisineUnit fills in cuisine categories and dietary
// accommodations for candidates the places provider described poorly. It
// asks the LLM to choose from the vocabulary's closed lists, discards
// anything outside them, and caches results by place ID.
//
// A failed classification leaves that candidate as it was; the run
// continues unless FailOnError is set.
type ClassifyCuisineUnit struct {
	name     string
	config   ClassifyCuisineConfig
	llm      ports.LLMClient
	cache    ports.CacheStore
	vocab    *domain.Vocabulary
	template *template.Template
	tracer   trace.Tracer
}

// ClassifyCuisineConfig controls the classifier.
type ClassifyCuisineConfig struct {
	// PromptTemplate is a text/template rendered per candidate.
	PromptTemplate string `yaml:"prompt_template" json:"prompt_template" validate:"required"`

	// Temperature for the LLM call.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`

	// MaxTokens bounds the response length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"min=16,max=4096"`

	// MaxConcurrency bounds simultaneous LLM calls.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"min=1,max=64"`

	// OnlyMissing classifies only candidates lacking cuisines or
	// accommodations.
	OnlyMissing bool `yaml:"only_missing" json:"only_missing"`

	// CacheTTL is how long classifications are cached. Zero never expires.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"min=0"`

	// FailOnError aborts the run on the first classification failure.
	FailOnError bool `yaml:"fail_on_error" json:"fail_on_error"`
}

// DefaultClassifyCuisineConfig returns conservative defaults.
func DefaultClassifyCuisineConfig() ClassifyCuisineConfig {
	return ClassifyCuisineConfig{
		PromptTemplate: DefaultClassifyPrompt,
		Temperature:    0,
		MaxTokens:      256,
		MaxConcurrency: 4,
		OnlyMissing:    true,
		CacheTTL:       30 * 24 * time.Hour,
	}
}

var promptFuncs = template.FuncMap{"join": strings.Join}

// NewClassifyCuisineUnit creates a ClassifyCuisineUnit. The cache is
// optional.
func NewClassifyCuisineUnit(
	name string,
	config ClassifyCuisineConfig,
	llm ports.LLMClient,
	cache ports.CacheStore,
	vocab *domain.Vocabulary,
) (*ClassifyCuisineUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if llm == nil {
		return nil, ErrMissingLLMClient
	}
	if vocab == nil {
		return nil, ErrMissingVocabulary
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	tmpl, err := template.New(name).Funcs(promptFuncs).Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}

	return &ClassifyCuisineUnit{
		name:     name,
		config:   config,
		llm:      llm,
		cache:    cache,
		vocab:    vocab,
		template: tmpl,
		tracer:   otel.Tracer("classify-cuisine-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *ClassifyCuisineUnit) Name() string { return u.name }

// Execute enriches domain.KeyCandidates in place.
func (u *ClassifyCuisineUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "ClassifyCuisineUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "classify_cuisine"),
			attribute.String("unit.id", u.name),
			attribute.String("llm.model", u.llm.GetModel()),
		),
	)
	defer span.End()

	candidates, err := domain.Require(state, domain.KeyCandidates)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", u.name, err)
		span.RecordError(err)
		return state, err
	}

	var classified, cached, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.config.MaxConcurrency)

	for i := range candidates {
		if u.config.OnlyMissing && !needsClassification(candidates[i]) {
			continue
		}
		g.Go(func() error {
			c, hit, err := u.classify(gctx, candidates[i])
			if err != nil {
				failed.Add(1)
				span.RecordError(err)
				if u.config.FailOnError {
					return fmt.Errorf("unit %s: %w", u.name, err)
				}
				return nil
			}
			if hit {
				cached.Add(1)
			}
			classified.Add(1)
			// Each goroutine owns candidates[i].
			candidates[i] = applyClassification(candidates[i], c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state, err
	}

	span.SetAttributes(
		attribute.Int64("classify.classified", classified.Load()),
		attribute.Int64("classify.cache_hits", cached.Load()),
		attribute.Int64("classify.failures", failed.Load()),
	)
	return domain.With(state, domain.KeyCandidates, candidates), nil
}

func needsClassification(c domain.RestaurantCandidate) bool {
	return len(c.UniqueCuisines()) == 0 || len(c.Accommodations) == 0
}

// classify returns the classification for c and whether it came from the
// cache.
func (u *ClassifyCuisineUnit) classify(ctx context.Context, c domain.RestaurantCandidate) (Classification, bool, error) {
	key := cacheKey(c.PlaceID)
	if u.cache != nil && key != "" {
		if data, ok, err := u.cache.Get(ctx, key); err == nil && ok {
			var cl Classification
			if err := json.Unmarshal(data, &cl); err == nil {
				return cl, true, nil
			}
		}
	}

	var prompt bytes.Buffer
	err := u.template.Execute(&prompt, struct {
		Name         string
		Address      string
		Tags         []string
		Labels       []string
		Restrictions []string
	}{
		Name:         c.Name,
		Address:      c.Address,
		Tags:         c.Cuisines,
		Labels:       u.vocab.Labels(),
		Restrictions: u.vocab.Restrictions(),
	})
	if err != nil {
		return Classification{}, false, fmt.Errorf("render prompt for %s: %w", c.PlaceID, err)
	}

	resp, err := u.llm.Complete(ctx, prompt.String(), map[string]any{
		"temperature":     u.config.Temperature,
		"max_tokens":      u.config.MaxTokens,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return Classification{}, false, fmt.Errorf("classify %s: %w", c.PlaceID, err)
	}

	cl, err := u.parseClassification(resp)
	if err != nil {
		return Classification{}, false, fmt.Errorf("classify %s: %w", c.PlaceID, err)
	}

	if u.cache != nil && key != "" {
		if data, err := json.Marshal(cl); err == nil {
			// A cache write failure only costs a repeat LLM call later.
			_ = u.cache.Set(ctx, key, data, u.config.CacheTTL)
		}
	}
	return cl, false, nil
}

// parseClassification extracts the JSON object from resp and keeps only
// values the vocabulary recognizes, mapped to categories and canonical
// restriction names.
func (u *ClassifyCuisineUnit) parseClassification(resp string) (Classification, error) {
	raw := extractJSON(resp)
	if raw == "" {
		return Classification{}, fmt.Errorf("%w: no JSON object in response", ports.ErrInvalidResponse)
	}
	var parsed Classification
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err)
	}

	out := Classification{Cuisines: []string{}, Dietary: []string{}}
	for _, label := range distinct(parsed.Cuisines) {
		if cat := u.vocab.Category(label); cat != domain.UnmappedCuisine {
			out.Cuisines = appendUnique(out.Cuisines, cat)
		}
	}
	for _, tag := range distinct(parsed.Dietary) {
		if canonical, ok := u.vocab.Restriction(tag); ok {
			out.Dietary = appendUnique(out.Dietary, canonical)
		}
	}
	return out, nil
}

func applyClassification(c domain.RestaurantCandidate, cl Classification) domain.RestaurantCandidate {
	cuisines := append([]string(nil), c.Cuisines...)
	for _, t := range cl.Cuisines {
		cuisines = appendUnique(cuisines, t)
	}
	accommodations := append([]string{}, c.Accommodations...)
	for _, r := range cl.Dietary {
		accommodations = appendUnique(accommodations, r)
	}
	c.Cuisines = cuisines
	c.Accommodations = accommodations
	return c
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func cacheKey(placeID string) string {
	if placeID == "" {
		return ""
	}
	return "tablefit:classification:" + placeID
}

// extractJSON pulls the first JSON object out of a model response that may
// wrap it in prose or a markdown fence.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		body := response[start+3:]
		if nl := strings.Index(body, "\n"); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			if candidate := strings.TrimSpace(body[:end]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// Validate verifies the unit is properly configured.
func (u *ClassifyCuisineUnit) Validate() error {
	if u.llm == nil {
		return fmt.Errorf("unit %s: %w", u.name, ErrMissingLLMClient)
	}
	if u.llm.GetModel() == "" {
		return fmt.Errorf("unit %s: LLM client model is not configured", u.name)
	}
	if u.vocab == nil {
		return fmt.Errorf("unit %s: %w", u.name, ErrMissingVocabulary)
	}
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a YAML node and
// reparses the prompt template.
func (u *ClassifyCuisineUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := decodeParameters(params, u.config)
	if err != nil {
		return err
	}
	tmpl, err := template.New(u.name).Funcs(promptFuncs).Parse(cfg.PromptTemplate)
	if err != nil {
		return fmt.Errorf("invalid prompt template: %w", err)
	}
	u.config, u.template = cfg, tmpl
	return nil
}

// NewClassifyCuisineFromConfig creates the unit from a plan parameter map.
func NewClassifyCuisineFromConfig(id string, config map[string]any, deps Dependencies) (ports.Unit, error) {
	cfg := DefaultClassifyCuisineConfig()
	if err := overlayConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewClassifyCuisineUnit(id, cfg, deps.LLM, deps.Cache, deps.Vocabulary)
}
