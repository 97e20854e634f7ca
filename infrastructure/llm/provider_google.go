package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

type googleProvider struct {
	modelHolder
	client     *genai.Client
	classifier errorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	if config.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		modelHolder: modelHolder{model: config.Model},
		client:      client,
		classifier:  errorClassifier{provider: ProviderGoogle},
	}, nil
}

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, p.buildConfig(options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, NewProviderError(ProviderGoogle, ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}

	var in, out int64
	if resp.UsageMetadata != nil {
		in = int64(resp.UsageMetadata.PromptTokenCount)
		out = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return content, tokenCount(in, prompt), tokenCount(out, content), nil
}

func (p *googleProvider) buildConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(options.MaxTokens, math.MaxInt32)),
	}
	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(clamp(*options.Temperature, 0, 2)))
	}
	if options.TopP != nil {
		config.TopP = genai.Ptr(float32(*options.TopP))
	}
	if options.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.classifyContext(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyBlock(apiErr.Message, apiErr.Status) {
			return NewProviderError(ProviderGoogle, ErrorTypeContentPolicy, apiErr.Code, "request blocked by safety filters", err)
		}
		return p.classifier.classifyHTTP(apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		if message == "" && len(gErr.Errors) > 0 {
			message = gErr.Errors[0].Message
		}
		reason := ""
		if len(gErr.Errors) > 0 {
			reason = gErr.Errors[0].Reason
		}
		if isSafetyBlock(message, reason) {
			return NewProviderError(ProviderGoogle, ErrorTypeContentPolicy, gErr.Code, "request blocked by safety filters", err)
		}
		return p.classifier.classifyHTTP(gErr.Code, message, err)
	}

	return NewProviderError(ProviderGoogle, ErrorTypeNetwork, 0, "request failed", err)
}

func isSafetyBlock(message, reason string) bool {
	if reason == "SAFETY" || reason == "BLOCKED" {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}
