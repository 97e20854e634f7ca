package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerSettings configures CircuitBreakerMiddleware.
type BreakerSettings struct {
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32

	// Cooldown is how long the breaker stays open before a probe request.
	Cooldown time.Duration

	// OnStateChange, if set, observes transitions.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerSettings opens after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{Name: name, MaxFailures: 5, Cooldown: 30 * time.Second}
}

type completion struct {
	text      string
	tokensIn  int
	tokensOut int
}

type circuitBreakerLLM struct {
	next CoreLLM
	cb   *gobreaker.CircuitBreaker[completion]
}

// CircuitBreakerMiddleware stops calling a failing provider. Only
// retryable provider errors count as failures; bad requests and caller
// cancellation leave the breaker untouched.
func CircuitBreakerMiddleware(s BreakerSettings) Middleware {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker[completion](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: s.OnStateChange,
	})

	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb}
	}
}

func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	res, err := c.cb.Execute(func() (completion, error) {
		text, in, out, err := c.next.DoRequest(ctx, prompt, opts)
		return completion{text: text, tokensIn: in, tokensOut: out}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", 0, 0, ErrCircuitOpen
	}
	if err != nil {
		return "", 0, 0, err
	}
	return res.text, res.tokensIn, res.tokensOut, nil
}

// State reports the breaker state for the wrapped provider.
func (c *circuitBreakerLLM) State() gobreaker.State { return c.cb.State() }

func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }

func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
