package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries retryable provider errors with jittered
// exponential backoff. It gives up at once on an open breaker, a
// non-retryable error or a finished context.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		response, in, out, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, in, out, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || !IsRetryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, ctx.Err()
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return "", 0, 0, lastErr
	}
	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// delay doubles per attempt with ±25% jitter, capped at maxDelay.
func (r *retryLLM) delay(attempt int) time.Duration {
	d := r.baseDelay << min(attempt, 30)
	if d <= 0 || d > r.maxDelay {
		d = r.maxDelay
	}
	jitter := time.Duration(rand.Float64() * float64(d) * 0.5)
	return min(d-d/4+jitter, r.maxDelay)
}

func (r *retryLLM) GetModel() string { return r.next.GetModel() }

func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
