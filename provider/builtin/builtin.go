// Package builtin constructs the Azure, Bedrock and Vertex adapters from
// configuration.
package builtin

import (
	"context"
	"fmt"

	"github.com/ineyio/llmgateway"
	"github.com/ineyio/llmgateway/provider/openaicompat"
	"github.com/ineyio/llmgateway/provider/vertex"
)

// FromConfig returns the providers whose credentials are present, in the
// fixed order azure, bedrock, vertex. No credentials yields an empty slice.
func FromConfig(ctx context.Context, cfg llmgateway.ProvidersConfig) ([]llmgateway.Provider, error) {
	var providers []llmgateway.Provider

	for _, name := range cfg.Available() {
		switch name {
		case llmgateway.ProviderAzure:
			providers = append(providers, openaicompat.NewAzure(
				cfg.Azure.Endpoint, cfg.Azure.APIKey, cfg.Azure.APIVersion))

		case llmgateway.ProviderBedrock:
			var opts []openaicompat.Option
			if cfg.Bedrock.BaseURL != "" {
				opts = append(opts, openaicompat.WithBaseURL(cfg.Bedrock.BaseURL))
			}
			providers = append(providers, openaicompat.NewBedrock(cfg.Bedrock.Region, cfg.Bedrock.APIKey, opts...))

		case llmgateway.ProviderVertex:
			var opts []vertex.Option
			if cfg.Vertex.BaseURL != "" {
				opts = append(opts, vertex.WithBaseURL(cfg.Vertex.BaseURL))
			}
			p, err := vertex.NewFromCredentials(ctx, cfg.Vertex.ProjectID, cfg.Vertex.Location, cfg.Vertex.CredentialsFile, opts...)
			if err != nil {
				return nil, fmt.Errorf("llmgateway: init vertex: %w", err)
			}
			providers = append(providers, p)
		}
	}

	return providers, nil
}

// NewRegistry builds a registry from cfg's providers and alias overrides.
func NewRegistry(ctx context.Context, cfg llmgateway.Config) (*llmgateway.Registry, error) {
	providers, err := FromConfig(ctx, cfg.Providers)
	if err != nil {
		return nil, err
	}
	return llmgateway.NewRegistry(providers, llmgateway.WithAliases(cfg.Aliases)), nil
}
