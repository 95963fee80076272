package llmgateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Gateway resolves models and fails over across the registry's providers in
// priority order. It holds no per-principal state; admission is layered on
// top by Service.
type Gateway struct {
	cfg      Config
	registry *Registry
	meter    Meter
	health   *HealthTracker
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(g *Gateway) { g.meter = m }
}

// WithHealthTracker runs every provider call through the tracker's circuit breakers.
func WithHealthTracker(h *HealthTracker) Option {
	return func(g *Gateway) { g.health = h }
}

// WithClock overrides the time source used for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a Gateway. An empty registry is valid: requests then
// fail with ErrNoProvidersConfigured.
func NewGateway(cfg Config, registry *Registry, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry(nil)
	}

	g := &Gateway{
		cfg:      cfg,
		registry: registry,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.meter == nil {
		g.meter = noopMeter{}
	}
	if g.now == nil {
		g.now = time.Now
	}

	return g, nil
}

// Registry returns the gateway's provider registry.
func (g *Gateway) Registry() *Registry { return g.registry }

// Providers reports the configured providers in failover order.
func (g *Gateway) Providers() []ProviderStatus {
	out := make([]ProviderStatus, 0, g.registry.Len())
	for _, e := range g.registry.entries {
		state := HealthHealthy
		if g.health != nil {
			state = g.health.State(e.Name)
		}
		out = append(out, ProviderStatus{
			Name:     e.Name,
			Priority: e.Priority,
			Health:   state,
			Timeout:  g.cfg.Defaults.Timeout,
		})
	}
	return out
}

// Complete performs a chat completion, trying each provider at most once in
// registry order with a fixed delay between attempts. Every provider failure
// is retryable.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	start := g.now()
	req = g.applyDefaults(req)

	if g.registry.Len() == 0 {
		err := &NoProvidersError{Model: g.registry.Resolve(req.Model, "")}
		g.meter.OnUsage(UsageEvent{
			RequestID: req.RequestID,
			Principal: req.UserID,
			Model:     err.Model,
			Latency:   g.now().Sub(start),
			Error:     err,
		})
		return CompletionResult{}, err
	}

	var (
		lastErr  error
		attempts int
		model    string
	)
	for i, e := range g.registry.entries {
		if i > 0 {
			if err := sleepCtx(ctx, g.cfg.Defaults.RetryDelay); err != nil {
				lastErr = errors.Join(err, lastErr)
				break
			}
		}

		model = g.registry.Resolve(req.Model, e.Name)
		attempts++

		provReq := ProviderRequest{
			Model:       model,
			Messages:    req.Messages,
			MaxTokens:   *req.MaxTokens,
			Temperature: *req.Temperature,
		}

		attemptStart := g.now()
		resp, err := g.call(ctx, e, provReq)
		duration := g.now().Sub(attemptStart)

		if err != nil {
			perr := &ProviderError{
				Kind:     Classify(err),
				Provider: e.Name,
				Model:    model,
				Attempt:  attempts,
				Err:      err,
			}
			g.meter.OnAttempt(AttemptEvent{
				RequestID: req.RequestID,
				Provider:  e.Name,
				Model:     model,
				Attempt:   attempts,
				Kind:      perr.Kind,
				Duration:  duration,
				Error:     err,
			})
			lastErr = perr
			continue
		}

		// Success.
		usage := resp.Usage
		usage.TotalTokens = usage.Total()
		latency := g.now().Sub(start)
		// Priced by the requested model; aliases rename it per provider.
		cost := EstimateCost(req.Model, usage.TotalTokens)

		g.meter.OnAttempt(AttemptEvent{
			RequestID: req.RequestID,
			Provider:  e.Name,
			Model:     model,
			Attempt:   attempts,
			Success:   true,
			Duration:  duration,
		})
		g.meter.OnUsage(UsageEvent{
			RequestID: req.RequestID,
			Principal: req.UserID,
			Model:     model,
			Provider:  e.Name,
			Usage:     usage,
			CostUSD:   cost,
			Latency:   latency,
			Attempts:  attempts,
			Success:   true,
		})

		return CompletionResult{
			RequestID:        req.RequestID,
			Content:          resp.Content,
			Model:            model,
			Provider:         e.Name,
			Usage:            usage,
			FinishReason:     resp.FinishReason,
			LatencyMs:        float64(latency) / float64(time.Millisecond),
			EstimatedCostUSD: cost,
			Attempts:         attempts,
		}, nil
	}

	err := &ExhaustedError{Attempts: attempts, Last: lastErr}
	g.meter.OnUsage(UsageEvent{
		RequestID: req.RequestID,
		Principal: req.UserID,
		Model:     model,
		Latency:   g.now().Sub(start),
		Attempts:  attempts,
		Error:     err,
	})
	return CompletionResult{}, err
}

// Stream opens a streaming completion on the first provider only. The
// per-attempt timeout bounds the open; the relay is bounded by ctx alone.
func (g *Gateway) Stream(ctx context.Context, req CompletionRequest) (*Stream, error) {
	start := g.now()
	req = g.applyDefaults(req)

	if g.registry.Len() == 0 {
		err := &NoProvidersError{Model: g.registry.Resolve(req.Model, "")}
		g.meter.OnUsage(UsageEvent{
			RequestID: req.RequestID,
			Principal: req.UserID,
			Model:     err.Model,
			Latency:   g.now().Sub(start),
			Stream:    true,
			Error:     err,
		})
		return nil, err
	}

	e := g.registry.entries[0]
	model := g.registry.Resolve(req.Model, e.Name)
	provReq := ProviderRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   *req.MaxTokens,
		Temperature: *req.Temperature,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	var timedOut atomic.Bool
	timer := time.AfterFunc(g.cfg.Defaults.Timeout, func() {
		timedOut.Store(true)
		cancel()
	})

	var inner ProviderStream
	open := func() error {
		var err error
		inner, err = e.Provider.Stream(streamCtx, provReq)
		if err != nil && timedOut.Load() {
			err = fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		return err
	}

	var err error
	if g.health != nil {
		err = g.health.Execute(e.Name, open)
	} else {
		err = open()
	}
	stopped := timer.Stop()
	duration := g.now().Sub(start)

	if err == nil && !stopped && timedOut.Load() {
		// Opened right as the deadline fired; the call context is gone.
		_ = inner.Close()
		err = context.DeadlineExceeded
	}
	if err != nil {
		cancel()
		if timedOut.Load() && !errors.Is(err, ErrProviderTimeout) {
			err = fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		perr := &ProviderError{
			Kind:     Classify(err),
			Provider: e.Name,
			Model:    model,
			Attempt:  1,
			Err:      err,
		}
		g.meter.OnAttempt(AttemptEvent{
			RequestID: req.RequestID,
			Provider:  e.Name,
			Model:     model,
			Attempt:   1,
			Kind:      perr.Kind,
			Duration:  duration,
			Error:     err,
		})
		exhausted := &ExhaustedError{Attempts: 1, Last: perr}
		g.meter.OnUsage(UsageEvent{
			RequestID: req.RequestID,
			Principal: req.UserID,
			Model:     model,
			Provider:  e.Name,
			Latency:   duration,
			Attempts:  1,
			Stream:    true,
			Error:     exhausted,
		})
		return nil, exhausted
	}

	g.meter.OnAttempt(AttemptEvent{
		RequestID: req.RequestID,
		Provider:  e.Name,
		Model:     model,
		Attempt:   1,
		Success:   true,
		Duration:  duration,
	})

	return &Stream{
		inner:        inner,
		cancel:       cancel,
		meter:        g.meter,
		now:          g.now,
		start:        start,
		requestID:    req.RequestID,
		principal:    req.UserID,
		provider:     e.Name,
		model:        model,
		costModel:    req.Model,
		promptTokens: EstimateTokens(req.Messages),
	}, nil
}

// call runs one provider attempt under the per-attempt timeout.
func (g *Gateway) call(ctx context.Context, e ProviderEntry, req ProviderRequest) (ProviderResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Defaults.Timeout)
	defer cancel()

	var resp ProviderResponse
	fn := func() error {
		var err error
		resp, err = e.Provider.Complete(attemptCtx, req)
		return err
	}

	var err error
	if g.health != nil {
		err = g.health.Execute(e.Name, fn)
	} else {
		err = fn()
	}
	if err != nil {
		// The attempt deadline expired but the caller is still waiting.
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil &&
			!errors.Is(err, ErrProviderTimeout) {
			err = fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		return ProviderResponse{}, err
	}
	return resp, nil
}

// applyDefaults fills unset request fields. An explicit zero temperature is kept.
func (g *Gateway) applyDefaults(req CompletionRequest) CompletionRequest {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Model == "" {
		req.Model = g.cfg.Defaults.Model
	}
	if req.MaxTokens == nil || *req.MaxTokens <= 0 {
		req.MaxTokens = IntPtr(g.cfg.Defaults.MaxTokens)
	}
	if req.Temperature == nil {
		req.Temperature = Float64Ptr(g.cfg.Defaults.Temperature)
	}
	return req
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
