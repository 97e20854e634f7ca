// Package llm adapts hosted language models to ports.LLMClient for the
// cuisine and dietary classification of restaurant candidates.
//
// Providers (OpenAI, Anthropic, Google) sit behind the small CoreLLM
// interface. Operational concerns are layered on as Middleware so the
// ranking code sees a single Complete call:
//
//	client, err := llm.NewClient(llm.ClientConfig{
//	    Provider: llm.ProviderOpenAI,
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	    Model:    "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("tablefit"),
//	        llm.MetricsMiddleware(metrics, llm.ProviderOpenAI),
//	        llm.CircuitBreakerMiddleware(llm.DefaultBreakerSettings("openai")),
//	        llm.RateLimitMiddleware(5, 10),
//	        llm.TimeoutMiddleware(20 * time.Second),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-tablefit/internal/ports"
)

// Provider names a supported LLM backend.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// CoreLLM is the minimal contract a provider implements. Middleware wraps
// a CoreLLM and returns another.
type CoreLLM interface {
	// DoRequest sends prompt and returns the response text with input and
	// output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	GetModel() string
	SetModel(model string)
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	// Provider selects the backend.
	Provider Provider `validate:"required,oneof=openai anthropic google"`

	// APIKey authenticates with the provider.
	APIKey string `validate:"required"`

	// Model is the provider's model identifier.
	Model string `validate:"required"`

	// BaseURL overrides the provider endpoint. Tests point it at an
	// httptest server.
	BaseURL string `validate:"omitempty,url"`

	// Timeout bounds the underlying HTTP client. Zero uses the SDK default.
	Timeout time.Duration `validate:"min=0"`

	// Middleware is applied in order; the first entry is outermost.
	Middleware []Middleware `validate:"-"`
}

// Middleware wraps a CoreLLM with cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

type providerFactory func(ClientConfig) (CoreLLM, error)

var providers = map[Provider]providerFactory{
	ProviderOpenAI:    newOpenAIProvider,
	ProviderAnthropic: newAnthropicProvider,
	ProviderGoogle:    newGoogleProvider,
}

var configValidator = validator.New()

// Client implements ports.LLMClient over a middleware-wrapped CoreLLM.
type Client struct {
	core CoreLLM
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient validates config, builds the provider and applies the
// middleware chain.
func NewClient(config ClientConfig) (*Client, error) {
	if err := configValidator.Struct(config); err != nil {
		return nil, ports.NewConfigError("llm", err)
	}

	factory, ok := providers[config.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", config.Provider, err)
	}

	return NewClientFromCore(core, config.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM, such as a MockCoreLLM, in
// middleware.
func NewClientFromCore(core CoreLLM, middleware ...Middleware) *Client {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Complete returns the model's response to prompt.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage is Complete plus input and output token counts.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	if prompt == "" {
		return "", 0, 0, fmt.Errorf("prompt cannot be empty")
	}
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens approximates four characters per token.
func (c *Client) EstimateTokens(text string) (int, error) {
	return estimateTokens(text), nil
}

// GetModel returns the configured model.
func (c *Client) GetModel() string { return c.core.GetModel() }
