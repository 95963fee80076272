package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ineyio/llmgateway"
)

// Provider is an adapter for OpenAI-compatible chat completion APIs.
// Azure OpenAI and the Bedrock OpenAI endpoint differ only in URL layout
// and auth header.
type Provider struct {
	name       string
	baseURL    string
	apiKey     string
	apiVersion string
	azure      bool
	httpClient *http.Client
}

var _ llmgateway.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithName overrides the provider label.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// New creates a provider for an OpenAI-compatible API with bearer auth.
func New(name, baseURL, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewAzure creates an Azure OpenAI provider. The model part of a qualified
// model string is used as the deployment name.
func NewAzure(endpoint, apiKey, apiVersion string, opts ...Option) *Provider {
	p := New(llmgateway.ProviderAzure, endpoint, apiKey, opts...)
	p.azure = true
	p.apiVersion = apiVersion
	return p
}

// NewBedrock creates a provider for the AWS Bedrock OpenAI-compatible
// endpoint using a Bedrock API key.
func NewBedrock(region, apiKey string, opts ...Option) *Provider {
	base := fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/openai/v1", region)
	return New(llmgateway.ProviderBedrock, base, apiKey, opts...)
}

func (p *Provider) Name() string { return p.name }

type apiRequest struct {
	Model         string         `json:"model,omitempty"`
	Messages      []apiMessage   `json:"messages"`
	Temperature   float64        `json:"temperature"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func (u apiUsage) toUsage() llmgateway.Usage {
	return llmgateway.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int        `json:"index"`
		Message      apiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage apiUsage `json:"usage"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type apiStreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *apiUsage `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

func (p *Provider) Complete(ctx context.Context, req llmgateway.ProviderRequest) (llmgateway.ProviderResponse, error) {
	httpResp, err := p.doRequest(ctx, req, false)
	if err != nil {
		return llmgateway.ProviderResponse{}, err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return llmgateway.ProviderResponse{}, err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return llmgateway.ProviderResponse{}, readError(ctx, fmt.Errorf("decode response: %w", err))
	}

	if len(resp.Choices) == 0 {
		return llmgateway.ProviderResponse{}, fmt.Errorf("%w: empty choices in response", llmgateway.ErrProtocol)
	}

	return llmgateway.ProviderResponse{
		ID:           resp.ID,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
		Model:        resp.Model,
		Usage:        resp.Usage.toUsage(),
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req llmgateway.ProviderRequest) (llmgateway.ProviderStream, error) {
	httpResp, err := p.doRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	if err := mapHTTPError(httpResp); err != nil {
		return nil, err
	}

	return &sseStream{
		ctx:    ctx,
		reader: bufio.NewReader(httpResp.Body),
		body:   httpResp.Body,
	}, nil
}

func (p *Provider) buildRequest(req llmgateway.ProviderRequest, stream bool) apiRequest {
	_, model := llmgateway.SplitModel(req.Model)

	msgs := make([]apiMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = apiMessage{Role: m.Role, Content: m.Content}
	}

	body := apiRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	if p.azure {
		// Azure routes by deployment in the URL.
		body.Model = ""
	}
	return body
}

func (p *Provider) endpoint(model string) string {
	if !p.azure {
		return p.baseURL + "/chat/completions"
	}
	q := url.Values{}
	if p.apiVersion != "" {
		q.Set("api-version", p.apiVersion)
	}
	u := p.baseURL + "/openai/deployments/" + url.PathEscape(model) + "/chat/completions"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (p *Provider) doRequest(ctx context.Context, req llmgateway.ProviderRequest, stream bool) (*http.Response, error) {
	jsonBody, err := json.Marshal(p.buildRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: marshal request: %w", err)
	}

	_, model := llmgateway.SplitModel(req.Model)
	return p.send(ctx, model, jsonBody)
}

func (p *Provider) send(ctx context.Context, model string, jsonBody []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(model), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("llmgateway: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if p.azure {
		httpReq.Header.Set("api-key", p.apiKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, readError(ctx, err)
	}
	return resp, nil
}

// readError classifies a transport or body read failure.
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

// mapHTTPError converts a non-2xx response into an adapter error and closes
// the body.
func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
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

// sseStream parses Server-Sent Events from an HTTP response body.
type sseStream struct {
	ctx    context.Context
	reader *bufio.Reader
	body   io.ReadCloser
}

func (s *sseStream) Next() (llmgateway.StreamChunk, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// A clean end is signalled by [DONE]; a bare EOF means the connection dropped.
			if errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				return llmgateway.StreamChunk{}, fmt.Errorf("%w: stream ended before [DONE]: %w",
					llmgateway.ErrProviderUnavailable, io.ErrUnexpectedEOF)
			}
			return llmgateway.StreamChunk{}, readError(s.ctx, err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return llmgateway.StreamChunk{}, io.EOF
		}

		var chunk apiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed chunks
		}

		if chunk.Error != nil {
			return llmgateway.StreamChunk{}, fmt.Errorf("%w: %s", llmgateway.ErrProviderUnavailable, chunk.Error.Message)
		}

		var result llmgateway.StreamChunk
		if len(chunk.Choices) > 0 {
			result.Content = chunk.Choices[0].Delta.Content
			result.FinishReason = chunk.Choices[0].FinishReason
		}
		if chunk.Usage != nil {
			u := chunk.Usage.toUsage()
			result.Usage = &u
		}
		return result, nil
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
