package llm

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCircuitBreaker_TripsOnRetryableFailures verifies that consecutive
// retryable failures open the breaker and that it then rejects without
// calling the provider.
func TestCircuitBreaker_TripsOnRetryableFailures(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Error = errRetryable

	var transitions []gobreaker.State
	wrapped := CircuitBreakerMiddleware(BreakerSettings{
		Name:        "test",
		MaxFailures: 3,
		Cooldown:    time.Hour,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})(mock)

	for range 3 {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		assert.ErrorIs(t, err, errRetryable)
	}
	assert.Equal(t, gobreaker.StateOpen, wrapped.(*circuitBreakerLLM).State())

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, mock.Calls(), "an open breaker should not reach the provider.")
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

// TestCircuitBreaker_IgnoresNonRetryable verifies that bad requests and
// cancellations do not open the breaker.
func TestCircuitBreaker_IgnoresNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "bad request", err: errNonRetryable},
		{name: "canceled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			mock.Error = tt.err
			wrapped := CircuitBreakerMiddleware(BreakerSettings{Name: "t", MaxFailures: 2, Cooldown: time.Hour})(mock)

			for range 5 {
				_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, gobreaker.StateClosed, wrapped.(*circuitBreakerLLM).State())
			assert.Equal(t, 5, mock.Calls())
		})
	}
}

// TestCircuitBreaker_Recovers verifies the half-open probe after the
// cooldown closes the breaker again.
func TestCircuitBreaker_Recovers(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 2
	wrapped := CircuitBreakerMiddleware(BreakerSettings{Name: "t", MaxFailures: 2, Cooldown: 20 * time.Millisecond})(mock)

	for range 2 {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.Error(t, err)
	}
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(50 * time.Millisecond)

	text, in, out, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, mock.Response, text)
	assert.Equal(t, 10, in)
	assert.Equal(t, 20, out)
	assert.Equal(t, gobreaker.StateClosed, wrapped.(*circuitBreakerLLM).State())
}

// TestCircuitBreaker_Passthrough verifies the model accessors.
func TestCircuitBreaker_Passthrough(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := CircuitBreakerMiddleware(DefaultBreakerSettings("t"))(mock)

	wrapped.SetModel("gpt-4o-mini")
	assert.Equal(t, "gpt-4o-mini", wrapped.GetModel())
	assert.Equal(t, "gpt-4o-mini", mock.GetModel())
}
