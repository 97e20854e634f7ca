package llm

import (
	"sync"
	"time"
)

type metricCall struct {
	name   string
	value  float64
	labels map[string]string
}

// captureMetrics records every call made through ports.MetricsCollector.
type captureMetrics struct {
	mu         sync.Mutex
	counters   []metricCall
	histograms []metricCall
}

func (c *captureMetrics) RecordLatency(string, time.Duration, map[string]string) {}

func (c *captureMetrics) RecordGauge(string, float64, map[string]string) {}

func (c *captureMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = append(c.counters, metricCall{name: metric, value: value, labels: labels})
}

func (c *captureMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms = append(c.histograms, metricCall{name: metric, value: value, labels: labels})
}

func (c *captureMetrics) countersNamed(name string) []metricCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []metricCall
	for _, m := range c.counters {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

var (
	errRetryable    = NewProviderError(ProviderOpenAI, ErrorTypeServerError, 503, "unavailable", nil)
	errNonRetryable = NewProviderError(ProviderOpenAI, ErrorTypeBadRequest, 400, "bad prompt", nil)
)
