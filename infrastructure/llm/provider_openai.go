package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type openAIProvider struct {
	modelHolder
	client     *openai.Client
	classifier errorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		modelHolder: modelHolder{model: config.Model},
		client:      openai.NewClientWithConfig(clientConfig),
		classifier:  errorClassifier{provider: ProviderOpenAI},
	}, nil
}

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, NewProviderError(ProviderOpenAI, ErrorTypeUnknown, 0, "", ErrNoResponseChoice)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", 0, 0, NewProviderError(ProviderOpenAI, ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}
	return content,
		tokenCount(int64(resp.Usage.PromptTokens), prompt),
		tokenCount(int64(resp.Usage.CompletionTokens), content),
		nil
}

func (p *openAIProvider) buildRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		req.Temperature = float32(clamp(*options.Temperature, 0, 2))
	}
	if options.TopP != nil {
		req.TopP = float32(*options.TopP)
	}
	if options.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.classifyContext(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.classifier.classifyHTTP(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.classifier.classifyHTTP(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError(ProviderOpenAI, ErrorTypeNetwork, 0, "request failed", err)
}
