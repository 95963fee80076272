package llmgateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// HealthState represents the circuit state of a provider.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
	HealthHalfOpen  HealthState = "half-open"
)

// HealthTracker runs provider calls through one circuit breaker per provider.
// An open breaker fails the attempt fast as unavailable; it never reorders
// the failover sequence.
type HealthTracker struct {
	cfg      CircuitBreakerConfig
	onChange func(provider string, from, to HealthState)

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// HealthOption configures a HealthTracker.
type HealthOption func(*HealthTracker)

// WithStateChange registers a callback for breaker transitions.
func WithStateChange(fn func(provider string, from, to HealthState)) HealthOption {
	return func(h *HealthTracker) {
		h.onChange = fn
	}
}

// NewHealthTracker creates a HealthTracker. Zero-valued settings fall back to
// the DefaultConfig circuit breaker values.
func NewHealthTracker(cfg CircuitBreakerConfig, opts ...HealthOption) *HealthTracker {
	def := DefaultConfig().CircuitBreaker
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}

	h := &HealthTracker{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute runs fn through the provider's breaker. A rejected call returns an
// error matching ErrProviderUnavailable.
func (h *HealthTracker) Execute(provider string, fn func() error) error {
	cb := h.breaker(provider)
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit for %s: %w", ErrProviderUnavailable, provider, err)
	}
	return err
}

// State returns the current health state of a provider. Unknown providers
// are healthy.
func (h *HealthTracker) State(provider string) HealthState {
	h.mu.RLock()
	cb, ok := h.breakers[provider]
	h.mu.RUnlock()
	if !ok {
		return HealthHealthy
	}
	return healthFromBreaker(cb.State())
}

func (h *HealthTracker) breaker(provider string) *gobreaker.CircuitBreaker {
	h.mu.RLock()
	cb, ok := h.breakers[provider]
	h.mu.RUnlock()
	if ok {
		return cb
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cb, ok := h.breakers[provider]; ok {
		return cb
	}

	maxFailures := h.cfg.MaxFailures
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    h.cfg.Interval,
		Timeout:     h.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Caller cancellation says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if h.onChange != nil {
				h.onChange(name, healthFromBreaker(from), healthFromBreaker(to))
			}
		},
	})
	h.breakers[provider] = cb
	return cb
}

func healthFromBreaker(s gobreaker.State) HealthState {
	switch s {
	case gobreaker.StateOpen:
		return HealthUnhealthy
	case gobreaker.StateHalfOpen:
		return HealthHalfOpen
	default:
		return HealthHealthy
	}
}

// ProviderStatus is a diagnostic snapshot of one registry entry.
type ProviderStatus struct {
	Name     string        `json:"name"`
	Priority int           `json:"priority"`
	Health   HealthState   `json:"health"`
	Timeout  time.Duration `json:"timeout"`
}
