package llm

import (
	"sync"
)

// DefaultMaxTokens bounds the response when the caller does not.
const DefaultMaxTokens = 512

// Recognized request option keys.
const (
	OptMaxTokens      = "max_tokens"
	OptModel          = "model"
	OptSystem         = "system"
	OptTemperature    = "temperature"
	OptTopP           = "top_p"
	OptResponseFormat = "response_format"
)

// RequestOptions is the provider-neutral form of the options map passed
// to Complete.
type RequestOptions struct {
	MaxTokens int
	Model     string
	System    string

	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64

	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool

	// Extra holds unrecognized keys for provider-specific handling.
	Extra map[string]any
}

// ParseRequestOptions reads opts into RequestOptions. Missing or invalid
// values fall back to defaults rather than failing the request.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: DefaultMaxTokens,
		Model:     defaultModel,
		Extra:     make(map[string]any),
	}

	for k, v := range opts {
		switch k {
		case OptMaxTokens:
			if n, ok := asInt(v); ok && n > 0 {
				options.MaxTokens = n
			}
		case OptModel:
			if s, ok := v.(string); ok && s != "" {
				options.Model = s
			}
		case OptSystem:
			if s, ok := v.(string); ok {
				options.System = s
			}
		case OptTemperature:
			if f, ok := asFloat(v); ok && f >= 0 && f <= 2 {
				options.Temperature = &f
			}
		case OptTopP:
			if f, ok := asFloat(v); ok && f >= 0 && f <= 1 {
				options.TopP = &f
			}
		case OptResponseFormat:
			options.JSONMode = isJSONFormat(v)
		default:
			options.Extra[k] = v
		}
	}
	return options
}

// isJSONFormat accepts "json", "json_object" or {"type": "json_object"}.
func isJSONFormat(v any) bool {
	switch f := v.(type) {
	case string:
		return f == "json" || f == "json_object"
	case map[string]string:
		return f["type"] == "json_object"
	case map[string]any:
		t, _ := f["type"].(string)
		return t == "json_object"
	}
	return false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int:
		return float64(f), true
	}
	return 0, false
}

// estimateTokens approximates four characters per token, rounding up.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// tokenCount prefers the provider-reported count.
func tokenCount(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return estimateTokens(text)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// modelHolder gives providers a concurrency-safe model field.
type modelHolder struct {
	mu    sync.RWMutex
	model string
}

func (m *modelHolder) GetModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

func (m *modelHolder) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}
