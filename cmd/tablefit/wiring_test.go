package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/infrastructure/units"
	"github.com/ahrav/go-tablefit/internal/application"
	"github.com/ahrav/go-tablefit/internal/config"
	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// TestNewLLMClient verifies provider selection and validation.
func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{name: "openai", cfg: config.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini", MaxRetries: 2}},
		{name: "anthropic", cfg: config.LLMConfig{Provider: "anthropic", APIKey: "k", Model: "claude-3-5-haiku-latest", RequestsPerSecond: 1}},
		{name: "google", cfg: config.LLMConfig{Provider: "google", APIKey: "k", Model: "gemini-2.0-flash"}},
		{name: "unknown provider", cfg: config.LLMConfig{Provider: "mistral", APIKey: "k", Model: "m"}, wantErr: true},
		{name: "missing key", cfg: config.LLMConfig{Provider: "openai", Model: "m"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newLLMClient(tt.cfg, nil, zap.NewNop())
			if tt.wantErr {
				var cfgErr *ports.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Model, client.GetModel())
		})
	}
}

// TestNewCandidateSource verifies that Yelp is optional and Google is not.
func TestNewCandidateSource(t *testing.T) {
	vocab := domain.DefaultVocabulary()

	_, err := newCandidateSource(config.PlacesConfig{Google: config.GoogleConfig{APIKey: "g"}}, vocab, nil, zap.NewNop())
	assert.NoError(t, err)

	_, err = newCandidateSource(config.PlacesConfig{
		Google: config.GoogleConfig{APIKey: "g"},
		Yelp:   config.YelpConfig{APIKey: "y"},
	}, vocab, nil, zap.NewNop())
	assert.NoError(t, err)

	_, err = newCandidateSource(config.PlacesConfig{}, vocab, nil, zap.NewNop())
	assert.Error(t, err)
}

// TestLoadPlan verifies the builtin fallback and the file override.
func TestLoadPlan(t *testing.T) {
	registry := application.NewDefaultUnitRegistry(units.Dependencies{Vocabulary: domain.DefaultVocabulary()})
	loader, err := application.NewPlanLoader(registry)
	require.NoError(t, err)

	plan, err := loadPlan(context.Background(), loader, config.PlanConfig{Builtin: "default"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aggregate", "dedupe", "score", "rank", "normalize"}, plan.Steps())

	_, err = loadPlan(context.Background(), loader, config.PlanConfig{File: "does-not-exist.yaml", Builtin: "default"})
	assert.Error(t, err, "an explicit file must exist even when a builtin is set.")
}
