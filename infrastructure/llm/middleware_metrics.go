package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-tablefit/internal/ports"
)

type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  Provider
}

// MetricsMiddleware records llm_requests_total, llm_latency_seconds and,
// on success, llm_tokens_total for input and output tokens.
func MetricsMiddleware(collector ports.MetricsCollector, provider Provider) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector, provider: provider}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, in, out, err := m.next.DoRequest(ctx, prompt, opts)
	if m.collector == nil {
		return response, in, out, err
	}

	labels := map[string]string{
		"provider": string(m.provider),
		"model":    m.next.GetModel(),
		"status":   requestStatus(err),
	}
	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(in), tokenLabels(labels, "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(out), tokenLabels(labels, "output"))
	}
	return response, in, out, err
}

func requestStatus(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pe):
		return pe.Type.String()
	default:
		return "error"
	}
}

func tokenLabels(base map[string]string, tokenType string) map[string]string {
	return map[string]string{
		"provider":   base["provider"],
		"model":      base["model"],
		"token_type": tokenType,
	}
}

func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
