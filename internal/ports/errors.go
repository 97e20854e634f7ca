package ports

import (
	"errors"
	"fmt"
)

// Failure kinds shared by the LLM, places and cache adapters. Adapters wrap
// one of these so callers can branch with errors.Is without knowing which
// provider failed.
var (
	ErrRateLimited          = errors.New("rate limited")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrTimeout              = errors.New("operation timed out")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCacheCorrupted marks a cached value that no longer decodes.
	ErrCacheCorrupted = errors.New("cache corrupted")
)

// CacheError is a failed cache operation on a single key.
type CacheError struct {
	Key       string
	Operation string
	Err       error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError wraps err with the key and operation it came from.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{Key: key, Operation: operation, Err: err}
}

// StoreError represents a failed persistence operation.
type StoreError struct {
	// Store names the backing store, such as "postgres".
	Store string

	// Operation is the name of the store operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: store=%s, operation=%s, err=%v", e.Store, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(store, operation string, err error) *StoreError {
	return &StoreError{Store: store, Operation: operation, Err: err}
}

// SourceError represents a failed call to a places or reviews provider.
type SourceError struct {
	// Provider names the upstream API, such as "google_places".
	Provider string

	// Operation is the call that failed.
	Operation string

	// StatusCode is the upstream HTTP status, or 0 if none was received.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for SourceError.
func (e *SourceError) Error() string {
	msg := fmt.Sprintf("source error: provider=%s, operation=%s, err=%v", e.Provider, e.Operation, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// IsRetryable reports whether the call may succeed if repeated.
func (e *SourceError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewSourceError creates a new SourceError with the given details.
func NewSourceError(provider, operation string, status int, err error) *SourceError {
	return &SourceError{Provider: provider, Operation: operation, StatusCode: status, Err: err}
}

// ConfigError reports an invalid or missing setting under ConfigKey.
type ConfigError struct {
	ConfigKey string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err with the offending key.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{ConfigKey: key, Err: err}
}
