package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure for callers that need to react
// differently to, say, a missing credential versus a timeout.
type ErrorKind string

const (
	ErrTimeout           ErrorKind = "timeout"
	ErrAuth              ErrorKind = "auth"
	ErrRateLimited       ErrorKind = "rate_limited"
	ErrMalformedResponse ErrorKind = "malformed_response"
	ErrUnavailable       ErrorKind = "unavailable"
)

// ProviderError is the single error type the completion client returns.
// Kind is stable and safe to switch on; the wrapped error carries detail.
type ProviderError struct {
	Kind ErrorKind
	err  error
}

func (e *ProviderError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("provider error: %s", e.Kind)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.err)
}

func (e *ProviderError) Unwrap() error {
	return e.err
}

// NewProviderError wraps err with a classification kind.
func NewProviderError(kind ErrorKind, err error) error {
	return &ProviderError{Kind: kind, err: err}
}

// KindOf returns the classification of err, or "" if err is not a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
