package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// jsonInstruction is appended to the system prompt in JSON mode, since the
// Messages API has no response-format switch.
const jsonInstruction = "Respond with a single JSON object and no other text."

type anthropicProvider struct {
	modelHolder
	client     anthropic.Client
	classifier errorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// RetryMiddleware owns retries.
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &anthropicProvider{
		modelHolder: modelHolder{model: config.Model},
		client:      anthropic.NewClient(opts...),
		classifier:  errorClassifier{provider: ProviderAnthropic},
	}, nil
}

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	message, err := p.client.Messages.New(ctx, p.buildParams(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := text.String()
	if content == "" {
		return "", 0, 0, NewProviderError(ProviderAnthropic, ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}

	return content,
		tokenCount(message.Usage.InputTokens, prompt),
		tokenCount(message.Usage.OutputTokens, content),
		nil
}

func (p *anthropicProvider) buildParams(prompt string, options RequestOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.Temperature != nil {
		// The Messages API accepts 0 to 1.
		params.Temperature = anthropic.Float(clamp(*options.Temperature, 0, 1))
	}
	if options.TopP != nil {
		params.TopP = anthropic.Float(*options.TopP)
	}

	system := options.System
	if options.JSONMode {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (p *anthropicProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.classifyContext(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.classifier.classifyHTTP(apiErr.StatusCode, "request failed", err)
	}
	return NewProviderError(ProviderAnthropic, ErrorTypeNetwork, 0, "request failed", err)
}
