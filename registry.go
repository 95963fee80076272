package llmgateway

import "strings"

// staticAliases maps short model names to provider-qualified strings.
var staticAliases = map[string]map[string]string{
	ProviderAzure: {
		"gpt-4":         "azure/gpt-4",
		"gpt-4o":        "azure/gpt-4o",
		"gpt-3.5-turbo": "azure/gpt-35-turbo",
	},
	ProviderBedrock: {
		"claude-2":       "bedrock/anthropic.claude-v2",
		"claude-instant": "bedrock/anthropic.claude-instant-v1",
		"llama-2":        "bedrock/meta.llama2-70b-chat-v1",
	},
	ProviderVertex: {
		"gemini-pro": "vertex_ai/gemini-pro",
		"palm-2":     "vertex_ai/chat-bison",
	},
}

// ProviderEntry is one configured provider and its failover rank.
type ProviderEntry struct {
	Name     string
	Priority int
	Provider Provider
}

// Registry is the immutable, priority-ordered provider list plus the model
// alias table. Its order is the failover sequence for every request.
type Registry struct {
	entries []ProviderEntry
	aliases map[string]map[string]string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAliases overlays alias tables (provider -> short name -> qualified model)
// on the built-in table.
func WithAliases(aliases map[string]map[string]string) RegistryOption {
	return func(r *Registry) {
		for provider, table := range aliases {
			merged := make(map[string]string, len(r.aliases[provider])+len(table))
			for k, v := range r.aliases[provider] {
				merged[k] = v
			}
			for k, v := range table {
				merged[k] = v
			}
			r.aliases[provider] = merged
		}
	}
}

// NewRegistry builds a registry from providers in priority order. Nil
// providers are skipped.
func NewRegistry(providers []Provider, opts ...RegistryOption) *Registry {
	r := &Registry{
		aliases: make(map[string]map[string]string, len(staticAliases)),
	}
	for provider, table := range staticAliases {
		r.aliases[provider] = table
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		r.entries = append(r.entries, ProviderEntry{
			Name:     p.Name(),
			Priority: len(r.entries),
			Provider: p,
		})
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entries returns a copy of the ordered provider entries.
func (r *Registry) Entries() []ProviderEntry {
	out := make([]ProviderEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the provider labels in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of configured providers.
func (r *Registry) Len() int { return len(r.entries) }

// Resolve converts a model name into a provider-qualified model string.
// A model that already carries a qualifier is returned unchanged. When
// provider is empty the first configured provider is used, or
// DefaultProviderLabel if none is configured.
func (r *Registry) Resolve(model, provider string) string {
	if strings.Contains(model, "/") {
		return model
	}

	if provider == "" {
		provider = DefaultProviderLabel
		if len(r.entries) > 0 {
			provider = r.entries[0].Name
		}
	}

	if qualified, ok := r.aliases[provider][model]; ok {
		return qualified
	}
	return provider + "/" + model
}
