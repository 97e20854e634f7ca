// Package places finds restaurant candidates through Google Places and
// enriches them with Yelp ratings.
package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-tablefit/internal/ports"
)

// Limits bounds how hard a client drives its upstream API.
type Limits struct {
	// RequestsPerSecond caps the request rate. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" json:"burst" validate:"min=0"`

	// MaxFailures consecutive retryable failures open the breaker for
	// Cooldown.
	MaxFailures uint32        `yaml:"max_failures" json:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown" json:"cooldown" validate:"min=0"`

	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0"`
}

// DefaultLimits returns conservative limits for a places API.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerSecond: 5,
		Burst:             5,
		MaxFailures:       5,
		Cooldown:          30 * time.Second,
		Timeout:           10 * time.Second,
	}
}

// transport performs rate limited, circuit broken HTTP calls against one
// provider and counts them in places_requests_total.
type transport struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	metrics  ports.MetricsCollector
}

func newTransport(provider string, limits Limits, client *http.Client, metrics ports.MetricsCollector) *transport {
	if client == nil {
		client = &http.Client{Timeout: limits.Timeout}
	}
	var limiter *rate.Limiter
	if limits.RequestsPerSecond > 0 {
		burst := max(limits.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}
	maxFailures := limits.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultLimits().MaxFailures
	}

	return &transport{
		provider: provider,
		client:   client,
		limiter:  limiter,
		metrics:  metrics,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        provider,
			MaxRequests: 1,
			Timeout:     limits.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			IsExcluded: func(err error) bool {
				return errors.Is(err, context.Canceled)
			},
			IsSuccessful: func(err error) bool {
				var se *ports.SourceError
				if errors.As(err, &se) {
					return !se.IsRetryable()
				}
				return err == nil
			},
		}),
	}
}

// do sends req and returns the response body of a 2xx reply.
func (t *transport) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			t.record("rate_limited")
			return nil, ports.NewSourceError(t.provider, op, 0, fmt.Errorf("rate limit: %w", err))
		}
	}

	body, err := t.breaker.Execute(func() ([]byte, error) {
		return t.roundTrip(ctx, op, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		t.record("circuit_open")
		return nil, ports.NewSourceError(t.provider, op, 0, fmt.Errorf("%w: circuit open", ports.ErrServiceUnavailable))
	}
	if err != nil {
		var se *ports.SourceError
		if errors.As(err, &se) && se.StatusCode != 0 {
			t.record(fmt.Sprintf("%d", se.StatusCode))
		} else {
			t.record("error")
		}
		return nil, err
	}
	t.record("ok")
	return body, nil
}

func (t *transport) roundTrip(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		}
		return nil, ports.NewSourceError(t.provider, op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ports.NewSourceError(t.provider, op, resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		return nil, ports.NewSourceError(t.provider, op, resp.StatusCode, statusError(resp.StatusCode, body))
	}
	return body, nil
}

const maxBodyBytes = 8 << 20

func statusError(status int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ports.ErrRateLimited, snippet)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ports.ErrAuthenticationFailed, snippet)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ports.ErrTimeout, snippet)
	case status >= 500:
		return fmt.Errorf("%w: %s", ports.ErrServiceUnavailable, snippet)
	default:
		return fmt.Errorf("%w: %s", ports.ErrInvalidResponse, snippet)
	}
}

func (t *transport) record(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordCounter("places_requests_total", 1, map[string]string{
		"provider": t.provider,
		"status":   status,
	})
}

// State exposes the breaker state for health reporting.
func (t *transport) State() gobreaker.State { return t.breaker.State() }
