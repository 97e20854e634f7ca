// Package middleware provides cross-cutting concerns for the ranking
// service.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tablefit/internal/ports"
)

const namespace = "tablefit"

// PrometheusMetrics implements ports.MetricsCollector with Prometheus.
// Well-known metric names map to dedicated vectors with fixed labels;
// anything else lands in a generic vector keyed by metric name.
type PrometheusMetrics struct {
	rankingRuns     *prometheus.CounterVec
	rankingDuration *prometheus.HistogramVec
	unitDuration    *prometheus.HistogramVec
	llmRequests     *prometheus.CounterVec
	llmTokens       *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	cacheOps        *prometheus.CounterVec
	placesRequests  *prometheus.CounterVec
	operations      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	gauges          *prometheus.GaugeVec
}

// NewPrometheusMetrics registers every metric on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler, or a
// fresh registry in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		rankingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_runs_total",
			Help:      "Ranking runs by plan and outcome.",
		}, []string{"plan", "status"}),
		rankingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "End-to-end ranking latency including candidate lookup and persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"plan", "status"}),
		unitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Execution time of each plan unit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"unit", "status"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM classification requests.",
		}, []string{"provider", "model", "status"}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by LLM classification.",
		}, []string{"provider", "model", "token_type"}),
		llmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "model", "status"}),
		cacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Classification cache operations by result.",
		}, []string{"operation", "result"}),
		placesRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_requests_total",
			Help:      "Requests to places providers.",
		}, []string{"provider", "status"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Counters without a dedicated metric.",
		}, []string{"metric"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latencies without a dedicated metric.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Point-in-time values.",
		}, []string{"metric"}),
	}
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

// RecordLatency records an operation duration.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case "ranking_duration":
		pm.rankingDuration.WithLabelValues(label(labels, "plan"), label(labels, "status")).Observe(duration.Seconds())
	case "unit_execution":
		pm.unitDuration.WithLabelValues(label(labels, "unit"), label(labels, "status")).Observe(duration.Seconds())
	default:
		pm.latency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter adds value to a counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "ranking_runs_total":
		pm.rankingRuns.WithLabelValues(label(labels, "plan"), label(labels, "status")).Add(value)
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "token_type")).Add(value)
	case "cache_operations_total":
		pm.cacheOps.WithLabelValues(label(labels, "operation"), label(labels, "result")).Add(value)
	case "places_requests_total":
		pm.placesRequests.WithLabelValues(label(labels, "provider"), label(labels, "status")).Add(value)
	default:
		pm.operations.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets a gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.gauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value. LLM latency has its own histogram;
// other values share the generic latency histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_latency_seconds":
		pm.llmLatency.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Observe(value)
	default:
		pm.latency.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
