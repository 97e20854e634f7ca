package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

// TestNewPrometheusMetrics verifies that every vector is registered on the
// supplied registry and that two collectors can coexist on separate
// registries.
func TestNewPrometheusMetrics(t *testing.T) {
	pm, _ := newTestMetrics(t)
	require.NotNil(t, pm)

	assert.NotPanics(t, func() {
		_, _ = newTestMetrics(t)
	}, "separate registries should not conflict.")
}

// TestPrometheusMetrics_RecordCounter verifies that well-known counters are
// routed to their dedicated vectors with the expected labels.
func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter("ranking_runs_total", 1, map[string]string{"plan": "default", "status": "success"})
	pm.RecordCounter("ranking_runs_total", 1, map[string]string{"plan": "default", "status": "success"})
	pm.RecordCounter("ranking_runs_total", 1, map[string]string{"plan": "default", "status": "error"})
	pm.RecordCounter("llm_tokens_total", 120, map[string]string{"provider": "openai", "model": "gpt-4o-mini", "token_type": "input"})
	pm.RecordCounter("cache_operations_total", 1, map[string]string{"operation": "get", "result": "hit"})
	pm.RecordCounter("places_requests_total", 1, map[string]string{"provider": "google", "status": "success"})

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.rankingRuns.WithLabelValues("default", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.rankingRuns.WithLabelValues("default", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("openai", "gpt-4o-mini", "input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.cacheOps.WithLabelValues("get", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.placesRequests.WithLabelValues("google", "success")))
}

// TestPrometheusMetrics_RecordCounter_Fallback verifies that unknown metric
// names and missing labels do not panic.
func TestPrometheusMetrics_RecordCounter_Fallback(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter("custom_events", 3, nil)
	pm.RecordCounter("ranking_runs_total", 1, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(pm.operations.WithLabelValues("custom_events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.rankingRuns.WithLabelValues("unknown", "unknown")),
		"missing labels should be recorded as unknown.")
}

// TestPrometheusMetrics_RecordLatency verifies routing of latency
// observations.
func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordLatency("unit_execution", 15*time.Millisecond, map[string]string{"unit": "score", "status": "success"})
	pm.RecordLatency("ranking_duration", 300*time.Millisecond, map[string]string{"plan": "default", "status": "success"})
	pm.RecordLatency("places_lookup", time.Second, nil)

	count, err := testutil.GatherAndCount(reg,
		"tablefit_unit_duration_seconds",
		"tablefit_ranking_duration_seconds",
		"tablefit_operation_duration_seconds",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "each histogram should hold one series.")
}

// TestPrometheusMetrics_RecordHistogramAndGauge verifies the LLM latency
// histogram and gauge handling.
func TestPrometheusMetrics_RecordHistogramAndGauge(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordHistogram("llm_latency_seconds", 0.8, map[string]string{"provider": "openai", "model": "m", "status": "success"})
	pm.RecordGauge("candidates_in_flight", 12, nil)
	pm.RecordGauge("candidates_in_flight", 4, nil)

	count, err := testutil.GatherAndCount(reg, "tablefit_llm_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 4.0, testutil.ToFloat64(pm.gauges.WithLabelValues("candidates_in_flight")),
		"gauges should hold the last value.")
}
