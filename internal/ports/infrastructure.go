package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tablefit/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	// The implementation should handle rate limiting, retries, and timeouts.
	//
	// Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// CacheStore defines a byte-oriented cache for expensive enrichment
// results such as LLM classifications.
type CacheStore interface {
	// Get retrieves a cached value by key.
	// Returns the value and true if found, or nil and false if not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value in the cache with an expiration time.
	// A zero duration means the item doesn't expire.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache.
	// Returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// ResponseStore persists guest responses.
type ResponseStore interface {
	// EventExists reports whether eventID names a known event.
	EventExists(ctx context.Context, eventID string) (bool, error)

	// ListResponses returns every response for eventID in submission order.
	ListResponses(ctx context.Context, eventID string) ([]domain.GuestResponse, error)

	// SaveResponse stores a validated response.
	SaveResponse(ctx context.Context, resp domain.GuestResponse) error
}

// EventStore persists events and the host's final restaurant choice.
type EventStore interface {
	// CreateEvent stores a new event.
	CreateEvent(ctx context.Context, event domain.Event) error

	// GetEvent returns the event or domain.ErrEventNotFound.
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)

	// SaveSelection replaces the event's selection.
	SaveSelection(ctx context.Context, eventID string, sel domain.Selection) error

	// ClearSelection removes the event's selection. Clearing an event with
	// no selection is not an error.
	ClearSelection(ctx context.Context, eventID string) error
}

// AreaStore supplies the search areas configured for an event.
type AreaStore interface {
	ListAreas(ctx context.Context, eventID string) ([]domain.SearchArea, error)
}

// ResultStore persists ranked output.
type ResultStore interface {
	// SaveRanking replaces any prior ranking for the event with run.
	SaveRanking(ctx context.Context, run domain.RankingRun) error

	// LatestRanking returns the most recent ranking for eventID or
	// domain.ErrRankingNotFound.
	LatestRanking(ctx context.Context, eventID string) (domain.RankingRun, error)
}

// CandidateSource finds restaurants within the given areas. Results are
// enriched with provider categories and blended ratings; duplicates across
// areas may remain and are merged by the pipeline.
type CandidateSource interface {
	FindCandidates(ctx context.Context, areas []domain.SearchArea) ([]domain.RestaurantCandidate, error)
}
