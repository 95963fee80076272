package llmgateway

import (
	"context"
	"strings"
)

// Provider is the interface that AI completion backends must implement.
type Provider interface {
	// Name returns the provider label used for resolution and failover order
	// (e.g. "azure", "bedrock", "vertex").
	Name() string

	// Complete performs a synchronous chat completion.
	Complete(ctx context.Context, req ProviderRequest) (ProviderResponse, error)

	// Stream opens a streaming chat completion.
	Stream(ctx context.Context, req ProviderRequest) (ProviderStream, error)
}

// ProviderRequest is the request sent to a provider adapter. Model is the
// provider-qualified model string produced by Registry.Resolve.
type ProviderRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ProviderResponse is the response from a provider adapter.
type ProviderResponse struct {
	ID           string
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
}

// StreamChunk is a single decoded chunk of a provider stream.
type StreamChunk struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// ProviderStream is the interface for streaming responses.
type ProviderStream interface {
	// Next returns the next chunk. Returns io.EOF when the provider finished
	// cleanly; any other error is a mid-stream failure.
	Next() (StreamChunk, error)

	// Close releases the underlying call.
	Close() error
}

// SplitModel splits a provider-qualified model string at the first "/".
// An unqualified model yields an empty provider.
func SplitModel(qualified string) (provider, model string) {
	if i := strings.Index(qualified, "/"); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}
