package llm

import (
	"context"
	"sync"
	"time"
)

// errSimulated is returned by MockCoreLLM when FailUntilAttempt is set
// without an Error.
var errSimulated = NewProviderError("mock", ErrorTypeServerError, 503, "simulated failure", nil)

// MockCoreLLM is a scriptable CoreLLM for middleware and client tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail with Error, or with a
	// retryable server error when Error is nil.
	FailUntilAttempt int

	CallCount   int
	LastPrompt  string
	LastOpts    map[string]any
	LastContext context.Context
}

// NewMockCoreLLM returns a mock that answers every prompt with an empty
// classification.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  `{"cuisines": [], "dietary": []}`,
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.LastContext = ctx
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		if m.Error != nil {
			return "", 0, 0, m.Error
		}
		return "", 0, 0, errSimulated
	}
	if m.Error != nil && m.FailUntilAttempt == 0 {
		return "", 0, 0, m.Error
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// Calls returns the number of DoRequest calls so far.
func (m *MockCoreLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
