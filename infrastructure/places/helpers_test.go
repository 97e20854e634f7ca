package places

import (
	"sync"
	"time"
)

type recordingMetrics struct {
	mu       sync.Mutex
	statuses []string
}

func (m *recordingMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (m *recordingMetrics) RecordGauge(string, float64, map[string]string)         {}
func (m *recordingMetrics) RecordHistogram(string, float64, map[string]string)     {}

func (m *recordingMetrics) RecordCounter(metric string, _ float64, labels map[string]string) {
	if metric != "places_requests_total" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, labels["provider"]+":"+labels["status"])
}

func (m *recordingMetrics) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statuses...)
}
