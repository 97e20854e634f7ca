// Package testutils provides test doubles and fixtures shared by the
// ranking packages' tests.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-tablefit/internal/ports"
)

var _ ports.LLMClient = (*MockLLMClient)(nil)

// MockLLMClient implements ports.LLMClient with canned responses chosen
// by substring match on the prompt. It records every prompt it receives
// and is safe for concurrent use.
type MockLLMClient struct {
	model string

	mu        sync.Mutex
	responses []MockResponse
	fallback  string
	err       error
	prompts   []string
}

// MockResponse maps a prompt substring to a response.
type MockResponse struct {
	// Pattern is matched case-insensitively against the prompt.
	Pattern string
	// Response is returned for matching prompts.
	Response string
	// Err, if set, is returned instead of Response.
	Err error
}

// NewMockLLMClient creates a mock whose unmatched prompts receive an empty
// classification.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:    model,
		fallback: `{"cuisines": [], "dietary": []}`,
	}
}

// AddResponse registers a response. Earlier registrations win when more
// than one pattern matches.
func (m *MockLLMClient) AddResponse(r MockResponse) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// SetError makes every call fail with err.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete returns the first matching canned response.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, _ map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	if m.err != nil {
		return "", m.err
	}
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, r.Err
		}
	}
	return m.fallback, nil
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel returns the mock model identifier.
func (m *MockLLMClient) GetModel() string { return m.model }

// Prompts returns a copy of every prompt received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns how many times Complete was called.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
