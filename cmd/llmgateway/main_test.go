package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAzureConfig(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llmgateway.yaml")
	cfg := fmt.Sprintf("providers:\n  azure:\n    api_key: k\n    endpoint: %s\n", endpoint)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestRun_ProvidersListsConfigured(t *testing.T) {
	path := writeAzureConfig(t, "http://127.0.0.1:1")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"providers", "-c", path}, &out))

	assert.Contains(t, out.String(), "PRIORITY")
	assert.Contains(t, out.String(), "azure/gpt-4")
}

func TestRun_StreamCancelReleasesProviderCall(t *testing.T) {
	flushed := make(chan struct{})
	released := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		close(flushed)
		<-r.Context().Done()
		close(released)
	}))
	defer srv.Close()

	path := writeAzureConfig(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		errCh <- run(ctx, []string{"stream", "-c", path, "hello"}, &out)
	}()

	select {
	case <-flushed:
	case <-time.After(5 * time.Second):
		t.Fatal("provider was not called")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream command did not return after cancellation")
	}

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("provider request was not released")
	}
	assert.False(t, strings.Contains(out.String(), "\n"), "no end marker newline after cancellation")
}
