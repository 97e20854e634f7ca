package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-tablefit/internal/ports"
)

var (
	// ErrEmptyResponse is returned when the provider answered with no text.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice is returned when a chat response has no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType classifies provider failures.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServerError:
		return "server_error"
	case ErrorTypeContentPolicy:
		return "content_policy"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProviderError is a classified failure from an LLM provider. It matches
// the ports sentinels with errors.Is, so callers need not know which
// provider produced it.
type ProviderError struct {
	Type       ErrorType
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider Provider, errType ErrorType, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{
		Type:       errType,
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s error", e.Provider)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		msg += fmt.Sprintf(" [%s]", e.Type)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is maps the error type onto the ports sentinels.
func (e *ProviderError) Is(target error) bool {
	switch e.Type {
	case ErrorTypeAuthentication:
		return target == ports.ErrAuthenticationFailed
	case ErrorTypeRateLimit:
		return target == ports.ErrRateLimited
	case ErrorTypeServerError:
		return target == ports.ErrServiceUnavailable
	case ErrorTypeTimeout:
		return target == ports.ErrTimeout
	case ErrorTypeContentPolicy:
		return target == ports.ErrInvalidResponse
	}
	return false
}

// IsRetryable reports whether the same request may succeed later.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}

// errorClassifier turns HTTP statuses and context errors into
// ProviderErrors for one provider.
type errorClassifier struct {
	provider Provider
}

func (c errorClassifier) classifyHTTP(status int, message string, err error) *ProviderError {
	var t ErrorType
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrorTypeAuthentication
		message = fmt.Sprintf("%s authentication failed", c.provider)
	case status == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
		message = fmt.Sprintf("%s rate limit exceeded", c.provider)
	case status == http.StatusNotFound:
		t = ErrorTypeNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		t = ErrorTypeTimeout
	case status >= 500:
		t = ErrorTypeServerError
	case status >= 400:
		t = ErrorTypeBadRequest
	}
	return NewProviderError(c.provider, t, status, message, err)
}

func (c errorClassifier) classifyContext(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(c.provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(c.provider, ErrorTypeNetwork, 0, "request canceled", err)
	}
	return NewProviderError(c.provider, ErrorTypeUnknown, 0, "", err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
