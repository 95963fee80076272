package main

import (
	"context"
	"fmt"

	"github.com/ineyio/llmgateway"
	"github.com/ineyio/llmgateway/budget"
	"github.com/ineyio/llmgateway/meter"
	"github.com/ineyio/llmgateway/provider/builtin"
	"github.com/ineyio/llmgateway/ratelimit"
	"go.uber.org/zap"
)

type globalOptions struct {
	configPath string
	debug      bool
}

type requestOptions struct {
	user        string
	model       string
	system      string
	maxTokens   int
	temperature float64
}

func (o requestOptions) build(prompt string, changedTemp bool) llmgateway.CompletionRequest {
	var msgs []llmgateway.Message
	if o.system != "" {
		msgs = append(msgs, llmgateway.Message{Role: "system", Content: o.system})
	}
	msgs = append(msgs, llmgateway.Message{Role: "user", Content: prompt})

	req := llmgateway.CompletionRequest{
		Messages: msgs,
		UserID:   o.user,
		Model:    o.model,
	}
	if o.maxTokens > 0 {
		req.MaxTokens = llmgateway.IntPtr(o.maxTokens)
	}
	if changedTemp {
		req.Temperature = llmgateway.Float64Ptr(o.temperature)
	}
	return req
}

type app struct {
	cfg     llmgateway.Config
	logger  *zap.Logger
	gateway *llmgateway.Gateway
	service *llmgateway.Service
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(path string) (llmgateway.Config, error) {
	if path == "" {
		return llmgateway.ConfigFromEnv()
	}
	return llmgateway.LoadConfig(path)
}

func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	logger, err := newLogger(opts.debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	registry, err := builtin.NewRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 {
		logger.Warn("no LLM providers configured")
	}
	logger.Info("providers initialized", zap.Strings("providers", registry.Names()))

	gwOpts := []llmgateway.Option{
		llmgateway.WithMeter(meter.NewZapMeter(logger)),
	}
	if cfg.CircuitBreaker.Enabled {
		health := llmgateway.NewHealthTracker(cfg.CircuitBreaker,
			llmgateway.WithStateChange(func(provider string, from, to llmgateway.HealthState) {
				logger.Warn("provider health changed",
					zap.String("provider", provider),
					zap.String("from", string(from)),
					zap.String("to", string(to)),
				)
			}),
		)
		gwOpts = append(gwOpts, llmgateway.WithHealthTracker(health))
	}

	gw, err := llmgateway.NewGateway(cfg, registry, gwOpts...)
	if err != nil {
		return nil, err
	}

	svc := llmgateway.NewService(gw,
		ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.Window),
		budget.New(cfg.Budget.DailyTokens),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		gateway: gw,
		service: svc,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
