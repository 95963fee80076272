package vertex_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ineyio/llmgateway"
	"github.com/ineyio/llmgateway/provider/vertex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func staticToken() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
}

func TestComplete_RequestShapeAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Hi "}, {"text": "there"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6}
		}`)
	}))
	defer srv.Close()

	p := vertex.New("my-proj", "europe-west1",
		vertex.WithBaseURL(srv.URL),
		vertex.WithTokenSource(staticToken()),
	)
	assert.Equal(t, "vertex", p.Name())

	resp, err := p.Complete(context.Background(), llmgateway.ProviderRequest{
		Model: "vertex_ai/gemini-pro",
		Messages: []llmgateway.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hey"},
			{Role: "user", Content: "again"},
		},
		MaxTokens:   64,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/projects/my-proj/locations/europe-west1/publishers/google/models/gemini-pro:generateContent", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Contains(t, gotBody, "systemInstruction")
	cfg := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, float64(64), cfg["maxOutputTokens"])

	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, int64(6), resp.Usage.TotalTokens)
}

func TestComplete_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, llmgateway.ErrProviderRateLimited},
		{http.StatusServiceUnavailable, llmgateway.ErrProviderUnavailable},
		{http.StatusGatewayTimeout, llmgateway.ErrProviderTimeout},
		{http.StatusForbidden, llmgateway.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := vertex.New("p", "us-central1", vertex.WithBaseURL(srv.URL), vertex.WithTokenSource(staticToken()))
			_, err := p.Complete(context.Background(), llmgateway.ProviderRequest{Model: "vertex_ai/gemini-pro"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestComplete_NoCandidatesIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	p := vertex.New("p", "", vertex.WithBaseURL(srv.URL), vertex.WithTokenSource(staticToken()))
	_, err := p.Complete(context.Background(), llmgateway.ProviderRequest{Model: "gemini-pro"})
	assert.ErrorIs(t, err, llmgateway.ErrProtocol)
}

func TestStream_SSE(t *testing.T) {
	var gotPath, gotAlt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAlt = r.URL.Query().Get("alt")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]},\"finishReason\":\"STOP\"}],\"usageMetadata\":{\"promptTokenCount\":1,\"candidatesTokenCount\":2,\"totalTokenCount\":3}}\n\n")
	}))
	defer srv.Close()

	p := vertex.New("p", "us-central1", vertex.WithBaseURL(srv.URL), vertex.WithTokenSource(staticToken()))
	stream, err := p.Stream(context.Background(), llmgateway.ProviderRequest{Model: "vertex_ai/gemini-pro"})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	var usage *llmgateway.Usage
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		text += chunk.Content
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	assert.Equal(t, "/projects/p/locations/us-central1/publishers/google/models/gemini-pro:streamGenerateContent", gotPath)
	assert.Equal(t, "sse", gotAlt)
	assert.Equal(t, "Hello", text)
	require.NotNil(t, usage)
	assert.Equal(t, int64(3), usage.TotalTokens)
}

func TestNewFromCredentials_MissingFile(t *testing.T) {
	_, err := vertex.NewFromCredentials(context.Background(), "p", "us-central1",
		filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
