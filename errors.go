package llmgateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrRateLimited           = errors.New("llmgateway: rate limit exceeded")
	ErrBudgetExceeded        = errors.New("llmgateway: token budget exceeded")
	ErrNoProvidersConfigured = errors.New("llmgateway: no providers configured")
	ErrAllProvidersExhausted = errors.New("llmgateway: all providers failed")

	// Returned by provider adapters.
	ErrProviderRateLimited = errors.New("llmgateway: rate limited by provider")
	ErrProviderUnavailable = errors.New("llmgateway: provider unavailable")
	ErrProviderTimeout     = errors.New("llmgateway: provider timeout")
	ErrProtocol            = errors.New("llmgateway: provider protocol error")
)

// AdmissionReason names the check that rejected a request.
type AdmissionReason string

const (
	ReasonRateLimited    AdmissionReason = "rate_limited"
	ReasonBudgetExceeded AdmissionReason = "budget_exceeded"
)

// AdmissionError is returned when a request is rejected before any provider
// call. RetryAfter is set for rate limiting, ResetAt for budget exhaustion.
type AdmissionError struct {
	Reason     AdmissionReason
	Principal  string
	RetryAfter time.Duration
	ResetAt    time.Time
	Rate       RateInfo
	Budget     BudgetInfo
}

func (e *AdmissionError) Error() string {
	switch e.Reason {
	case ReasonRateLimited:
		return fmt.Sprintf("llmgateway: principal=%s: rate limit exceeded, retry after %s", e.Principal, e.RetryAfter)
	case ReasonBudgetExceeded:
		return fmt.Sprintf("llmgateway: principal=%s: token budget exceeded, resets at %s",
			e.Principal, e.ResetAt.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("llmgateway: principal=%s: admission denied (%s)", e.Principal, e.Reason)
	}
}

func (e *AdmissionError) Unwrap() error {
	switch e.Reason {
	case ReasonRateLimited:
		return ErrRateLimited
	case ReasonBudgetExceeded:
		return ErrBudgetExceeded
	default:
		return nil
	}
}

// FailureKind classifies a provider attempt failure.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"
	FailureTimeout     FailureKind = "timeout"
	FailureProtocol    FailureKind = "protocol_error"
	FailureUnexpected  FailureKind = "unexpected"
)

// Classify maps an adapter error to a FailureKind. Every kind is retryable.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrProviderRateLimited):
		return FailureRateLimited
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrProviderUnavailable):
		return FailureUnavailable
	case errors.Is(err, ErrProtocol):
		return FailureProtocol
	default:
		return FailureUnexpected
	}
}

// ProviderError wraps a failed attempt with routing context.
type ProviderError struct {
	Kind     FailureKind
	Provider string
	Model    string
	Attempt  int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llmgateway: provider=%s model=%s attempt=%d kind=%s: %v",
		e.Provider, e.Model, e.Attempt, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when no provider produced a result. It matches
// ErrAllProvidersExhausted and unwraps to the last observed failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("llmgateway: all providers failed after %d attempt(s): last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrAllProvidersExhausted}
	}
	return []error{ErrAllProvidersExhausted, e.Last}
}

// NoProvidersError reports a request that could not be attempted because the
// registry is empty. Model is the string resolved against the default label.
type NoProvidersError struct {
	Model string
}

func (e *NoProvidersError) Error() string {
	return fmt.Sprintf("llmgateway: no providers configured (resolved model %q)", e.Model)
}

func (e *NoProvidersError) Unwrap() error {
	return ErrNoProvidersConfigured
}

// StreamError reports a provider failure after a stream was opened.
// Delivered counts the fragments relayed before the failure.
type StreamError struct {
	Provider  string
	Delivered int
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("llmgateway: stream from provider=%s failed after %d fragment(s): %v",
		e.Provider, e.Delivered, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
