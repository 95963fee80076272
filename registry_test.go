package llmgateway_test

import (
	"testing"

	gw "github.com/ineyio/llmgateway"
	"github.com/ineyio/llmgateway/provider/mock"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	reg := gw.NewRegistry([]gw.Provider{
		mock.New(mock.WithName("azure")),
		mock.New(mock.WithName("bedrock")),
	})

	tests := []struct {
		name     string
		model    string
		provider string
		want     string
	}{
		{"qualified passes through", "bedrock/anthropic.claude-v2", "azure", "bedrock/anthropic.claude-v2"},
		{"azure alias", "gpt-3.5-turbo", "azure", "azure/gpt-35-turbo"},
		{"azure gpt-4", "gpt-4", "azure", "azure/gpt-4"},
		{"bedrock alias", "claude-2", "bedrock", "bedrock/anthropic.claude-v2"},
		{"bedrock llama", "llama-2", "bedrock", "bedrock/meta.llama2-70b-chat-v1"},
		{"vertex alias", "gemini-pro", "vertex", "vertex_ai/gemini-pro"},
		{"vertex palm", "palm-2", "vertex", "vertex_ai/chat-bison"},
		{"unknown model", "mistral-large", "bedrock", "bedrock/mistral-large"},
		{"alias of another provider", "claude-2", "azure", "azure/claude-2"},
		{"empty provider uses first entry", "claude-instant", "", "azure/claude-instant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Resolve(tt.model, tt.provider))
		})
	}
}

func TestResolve_EmptyRegistryUsesDefaultLabel(t *testing.T) {
	reg := gw.NewRegistry(nil)
	assert.Equal(t, "azure/gpt-35-turbo", reg.Resolve("gpt-3.5-turbo", ""))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_OrderAndAliases(t *testing.T) {
	reg := gw.NewRegistry(
		[]gw.Provider{mock.New(mock.WithName("bedrock")), nil, mock.New(mock.WithName("vertex"))},
		gw.WithAliases(map[string]map[string]string{
			"vertex": {"gemini-flash": "vertex_ai/gemini-1.5-flash"},
		}),
	)

	assert.Equal(t, []string{"bedrock", "vertex"}, reg.Names())
	entries := reg.Entries()
	assert.Equal(t, 0, entries[0].Priority)
	assert.Equal(t, 1, entries[1].Priority)

	assert.Equal(t, "vertex_ai/gemini-1.5-flash", reg.Resolve("gemini-flash", "vertex"))
	assert.Equal(t, "vertex_ai/gemini-pro", reg.Resolve("gemini-pro", "vertex"), "overlay keeps built-in aliases")
}

func TestSplitModel(t *testing.T) {
	p, m := gw.SplitModel("vertex_ai/gemini-pro")
	assert.Equal(t, "vertex_ai", p)
	assert.Equal(t, "gemini-pro", m)

	p, m = gw.SplitModel("bedrock/meta/llama")
	assert.Equal(t, "bedrock", p)
	assert.Equal(t, "meta/llama", m)

	p, m = gw.SplitModel("gpt-4")
	assert.Empty(t, p)
	assert.Equal(t, "gpt-4", m)
}
