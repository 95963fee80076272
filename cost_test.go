package llmgateway_test

import (
	"testing"

	gw "github.com/ineyio/llmgateway"
	"github.com/stretchr/testify/assert"
)

func TestCostPer1K(t *testing.T) {
	tests := []struct {
		model string
		want  float64
	}{
		{"azure/gpt-4", 0.045},
		{"azure/GPT-4-32k", 0.045},
		{"azure/gpt-4o", 0.045}, // "gpt-4" matches first
		{"gpt-3.5-turbo", 0.00175},
		{"openai/gpt-3.5-turbo", 0.00175},
		{"claude-2", 0.008},
		{"bedrock/anthropic.claude-2", 0.008},
		{"vertex_ai/gemini-pro", 0.001},
		{"gemini-pro", 0.001},
		{"palm-2", 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, gw.CostPer1K(tt.model))
		})
	}
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.045, gw.EstimateCost("azure/gpt-4", 1000), 1e-12)
	assert.InDelta(t, 0.005, gw.EstimateCost("unknown/model", 500), 1e-12)
	assert.Equal(t, 0.0, gw.EstimateCost("azure/gpt-4", 0))
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		msgs []gw.Message
		want int64
	}{
		{"empty", nil, 0},
		{"one word", []gw.Message{{Content: "hi"}}, 2},
		{"three words", []gw.Message{{Content: "hello big world"}}, 4},
		{"ten words across messages", []gw.Message{
			{Content: "one two three four five"},
			{Content: "  six\tseven\neight nine ten "},
		}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gw.EstimateTokens(tt.msgs))
		})
	}
}
