package vertex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ineyio/llmgateway"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Provider is the Vertex AI Gemini adapter. Requests are authenticated with
// an OAuth2 access token for the configured project.
type Provider struct {
	project     string
	location    string
	baseURL     string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

var _ llmgateway.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithTokenSource sets the OAuth2 token source.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(p *Provider) { p.tokenSource = ts }
}

// WithHTTPClient sets a custom, already authenticated HTTP client. It takes
// precedence over WithTokenSource.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Vertex AI provider for project and location.
func New(project, location string, opts ...Option) *Provider {
	if location == "" {
		location = "us-central1"
	}
	p := &Provider{
		project:  project,
		location: location,
		baseURL:  fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		if p.tokenSource != nil {
			p.httpClient = oauth2.NewClient(context.Background(), p.tokenSource)
		} else {
			p.httpClient = http.DefaultClient
		}
	}
	return p
}

// NewFromCredentials creates a provider authenticated with a service account
// JSON file, or Application Default Credentials when credentialsFile is empty.
func NewFromCredentials(ctx context.Context, project, location, credentialsFile string, opts ...Option) (*Provider, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if credentialsFile != "" {
		data, rerr := os.ReadFile(credentialsFile)
		if rerr != nil {
			return nil, fmt.Errorf("llmgateway: vertex: read credentials: %w", rerr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, cloudPlatformScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, cloudPlatformScope)
	}
	if err != nil {
		return nil, fmt.Errorf("llmgateway: vertex: load credentials: %w", err)
	}

	if project == "" {
		project = creds.ProjectID
	}
	opts = append([]Option{WithTokenSource(creds.TokenSource)}, opts...)
	return New(project, location, opts...), nil
}

func (p *Provider) Name() string { return llmgateway.ProviderVertex }

type vertexRequest struct {
	Contents          []vertexContent         `json:"contents"`
	SystemInstruction *vertexContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *vertexGenerationConfig `json:"generationConfig,omitempty"`
}

type vertexContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []vertexPart `json:"parts"`
}

type vertexPart struct {
	Text string `json:"text"`
}

type vertexGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type vertexResponse struct {
	Candidates []struct {
		Content      vertexContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (r vertexResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func (r vertexResponse) usage() llmgateway.Usage {
	return llmgateway.Usage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}

func (p *Provider) Complete(ctx context.Context, req llmgateway.ProviderRequest) (llmgateway.ProviderResponse, error) {
	httpResp, err := p.doRequest(ctx, p.modelURL(req.Model, "generateContent"), p.buildRequest(req))
	if err != nil {
		return llmgateway.ProviderResponse{}, err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return llmgateway.ProviderResponse{}, err
	}

	var resp vertexResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return llmgateway.ProviderResponse{}, readError(ctx, fmt.Errorf("decode vertex response: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return llmgateway.ProviderResponse{}, fmt.Errorf("%w: empty candidates in vertex response", llmgateway.ErrProtocol)
	}

	return llmgateway.ProviderResponse{
		Content:      resp.text(),
		FinishReason: strings.ToLower(resp.Candidates[0].FinishReason),
		Model:        req.Model,
		Usage:        resp.usage(),
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req llmgateway.ProviderRequest) (llmgateway.ProviderStream, error) {
	url := p.modelURL(req.Model, "streamGenerateContent") + "?alt=sse"

	httpResp, err := p.doRequest(ctx, url, p.buildRequest(req))
	if err != nil {
		return nil, err
	}

	if err := mapHTTPError(httpResp); err != nil {
		return nil, err
	}

	return &vertexStream{
		ctx:    ctx,
		reader: bufio.NewReader(httpResp.Body),
		body:   httpResp.Body,
	}, nil
}

func (p *Provider) modelURL(qualified, method string) string {
	_, model := llmgateway.SplitModel(qualified)
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
		p.baseURL, p.project, p.location, model, method)
}

func (p *Provider) buildRequest(req llmgateway.ProviderRequest) vertexRequest {
	var vr vertexRequest
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if vr.SystemInstruction == nil {
				vr.SystemInstruction = &vertexContent{}
			}
			vr.SystemInstruction.Parts = append(vr.SystemInstruction.Parts, vertexPart{Text: m.Content})
		case "assistant":
			vr.Contents = append(vr.Contents, vertexContent{Role: "model", Parts: []vertexPart{{Text: m.Content}}})
		default:
			vr.Contents = append(vr.Contents, vertexContent{Role: "user", Parts: []vertexPart{{Text: m.Content}}})
		}
	}

	vr.GenerationConfig = &vertexGenerationConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	return vr
}

func (p *Provider) doRequest(ctx context.Context, url string, body vertexRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal vertex request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: create vertex request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, readError(ctx, err)
	}

	return resp, nil
}

func readError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", llmgateway.ErrProviderTimeout, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %w", llmgateway.ErrProtocol, err)
	}
	return fmt.Errorf("%w: %w", llmgateway.ErrProviderUnavailable, err)
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", llmgateway.ErrProviderRateLimited, msg)
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", llmgateway.ErrProviderTimeout, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", llmgateway.ErrProviderUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", llmgateway.ErrProtocol, resp.StatusCode, msg)
	}
}

type vertexStream struct {
	ctx    context.Context
	reader *bufio.Reader
	body   io.ReadCloser
}

func (s *vertexStream) Next() (llmgateway.StreamChunk, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				return llmgateway.StreamChunk{}, io.EOF
			}
			return llmgateway.StreamChunk{}, readError(s.ctx, err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var resp vertexResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		chunk := llmgateway.StreamChunk{Content: resp.text()}
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			chunk.FinishReason = strings.ToLower(resp.Candidates[0].FinishReason)
		}
		if resp.UsageMetadata.TotalTokenCount > 0 {
			u := resp.usage()
			chunk.Usage = &u
		}

		return chunk, nil
	}
}

func (s *vertexStream) Close() error {
	return s.body.Close()
}
