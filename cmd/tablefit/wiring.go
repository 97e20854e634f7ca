package main

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-tablefit/infrastructure/llm"
	"github.com/ahrav/go-tablefit/infrastructure/places"
	"github.com/ahrav/go-tablefit/internal/config"
	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

const serviceName = "tablefit"

// newLLMClient builds the classifier client. The first middleware is
// outermost, so each retry passes through the breaker, the rate limiter
// and its own timeout.
func newLLMClient(cfg config.LLMConfig, metrics ports.MetricsCollector, logger *zap.Logger) (*llm.Client, error) {
	provider := llm.Provider(cfg.Provider)

	breaker := llm.DefaultBreakerSettings(cfg.Provider)
	if cfg.MaxFailures > 0 {
		breaker.MaxFailures = cfg.MaxFailures
	}
	if cfg.Cooldown > 0 {
		breaker.Cooldown = cfg.Cooldown
	}
	breaker.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("llm circuit breaker state change",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	chain := []llm.Middleware{
		llm.TracingMiddleware(serviceName),
		llm.MetricsMiddleware(metrics, provider),
		llm.RetryMiddleware(cfg.MaxRetries, 500*time.Millisecond, 10*time.Second),
		llm.CircuitBreakerMiddleware(breaker),
		llm.RateLimitMiddleware(limit, max(cfg.Burst, 1)),
	}
	if cfg.Timeout > 0 {
		chain = append(chain, llm.TimeoutMiddleware(cfg.Timeout))
	}

	return llm.NewClient(llm.ClientConfig{
		Provider:   provider,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		Middleware: chain,
	})
}

// newCandidateSource builds the Google search with optional Yelp
// enrichment.
func newCandidateSource(
	cfg config.PlacesConfig,
	vocab *domain.Vocabulary,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) (*places.AreaSearchSource, error) {
	googleLimits := places.DefaultLimits()
	if cfg.Google.RequestsPerSecond > 0 {
		googleLimits.RequestsPerSecond = cfg.Google.RequestsPerSecond
	}
	google, err := places.NewGoogleClient(places.GoogleConfig{
		APIKey:     cfg.Google.APIKey,
		BaseURL:    cfg.Google.BaseURL,
		MaxResults: cfg.Google.MaxResults,
		Limits:     googleLimits,
	}, vocab, metrics)
	if err != nil {
		return nil, err
	}

	var matcher places.ListingMatcher
	if cfg.Yelp.APIKey != "" {
		yelpLimits := places.DefaultLimits()
		if cfg.Yelp.RequestsPerSecond > 0 {
			yelpLimits.RequestsPerSecond = cfg.Yelp.RequestsPerSecond
		}
		yelp, err := places.NewYelpClient(places.YelpConfig{
			APIKey:  cfg.Yelp.APIKey,
			BaseURL: cfg.Yelp.BaseURL,
			Limits:  yelpLimits,
		}, metrics)
		if err != nil {
			return nil, err
		}
		matcher = yelp
	} else {
		logger.Info("yelp enrichment disabled")
	}

	return places.NewAreaSearchSource(google, matcher, vocab, logger), nil
}
