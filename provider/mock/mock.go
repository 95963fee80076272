package mock

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/llmgateway"
)

// Provider is a mock LLM provider for testing.
type Provider struct {
	name         string
	content      string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	scripted     []error
	usage        llmgateway.Usage
	responseFunc func(llmgateway.ProviderRequest) (llmgateway.ProviderResponse, error)

	fragments     []string
	fragmentDelay time.Duration
	streamErrAt   int
	streamErr     error
	noStreamUsage bool

	mu          sync.Mutex
	lastRequest llmgateway.ProviderRequest
	streams     []*Stream
}

var _ llmgateway.Provider = (*Provider)(nil)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:    "mock",
		content: "Hello from mock provider",
		usage: llmgateway.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		streamErrAt: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithContent sets the completion text.
func WithContent(content string) Option {
	return func(p *Provider) { p.content = content }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// WithFailAfter makes the provider fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(p *Provider) { p.failAfter = n }
}

// WithError makes the provider always return this error.
func WithError(err error) Option {
	return func(p *Provider) { p.staticErr = err }
}

// WithErrors scripts per-call results: call i returns errs[i]; a nil entry
// or a call past the end succeeds.
func WithErrors(errs ...error) Option {
	return func(p *Provider) { p.scripted = errs }
}

// WithUsage sets the usage returned by the mock.
func WithUsage(u llmgateway.Usage) Option {
	return func(p *Provider) { p.usage = u }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(llmgateway.ProviderRequest) (llmgateway.ProviderResponse, error)) Option {
	return func(p *Provider) { p.responseFunc = fn }
}

// WithFragments sets the text fragments a stream yields.
func WithFragments(fragments ...string) Option {
	return func(p *Provider) { p.fragments = fragments }
}

// WithFragmentDelay delays each stream fragment.
func WithFragmentDelay(d time.Duration) Option {
	return func(p *Provider) { p.fragmentDelay = d }
}

// WithStreamErrorAfter makes a stream fail with err after n fragments.
func WithStreamErrorAfter(n int, err error) Option {
	return func(p *Provider) {
		p.streamErrAt = n
		p.streamErr = err
	}
}

// WithoutStreamUsage omits usage from the final stream chunk.
func WithoutStreamUsage() Option {
	return func(p *Provider) { p.noStreamUsage = true }
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Complete(ctx context.Context, req llmgateway.ProviderRequest) (llmgateway.ProviderResponse, error) {
	p.mu.Lock()
	p.lastRequest = req
	p.mu.Unlock()

	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			p.callCount.Add(1)
			return llmgateway.ProviderResponse{}, ctx.Err()
		}
	}

	count := p.callCount.Add(1)

	if p.staticErr != nil {
		return llmgateway.ProviderResponse{}, p.staticErr
	}

	if i := int(count) - 1; i < len(p.scripted) && p.scripted[i] != nil {
		return llmgateway.ProviderResponse{}, p.scripted[i]
	}

	if p.failAfter > 0 && int(count) > p.failAfter {
		return llmgateway.ProviderResponse{}, llmgateway.ErrProviderUnavailable
	}

	if p.responseFunc != nil {
		return p.responseFunc(req)
	}

	return llmgateway.ProviderResponse{
		ID:           "mock-response-id",
		Content:      p.content,
		FinishReason: "stop",
		Usage:        p.usage,
		Model:        req.Model,
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req llmgateway.ProviderRequest) (llmgateway.ProviderStream, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	fragments := p.fragments
	if len(fragments) == 0 {
		fragments = []string{resp.Content}
	}

	s := &Stream{
		ctx:       ctx,
		fragments: fragments,
		delay:     p.fragmentDelay,
		errAt:     p.streamErrAt,
		err:       p.streamErr,
	}
	if !p.noStreamUsage {
		u := resp.Usage
		s.usage = &u
	}

	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	return s, nil
}

// CallCount returns the number of calls made to the provider.
func (p *Provider) CallCount() int64 { return p.callCount.Load() }

// LastRequest returns the most recent request received.
func (p *Provider) LastRequest() llmgateway.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRequest
}

// Streams returns the streams opened so far.
func (p *Provider) Streams() []*Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Stream, len(p.streams))
	copy(out, p.streams)
	return out
}

// Stream is the mock provider stream.
type Stream struct {
	ctx       context.Context
	fragments []string
	delay     time.Duration
	errAt     int
	err       error
	usage     *llmgateway.Usage

	index  int
	done   bool
	closed atomic.Bool
}

func (s *Stream) Next() (llmgateway.StreamChunk, error) {
	if s.done {
		return llmgateway.StreamChunk{}, io.EOF
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return llmgateway.StreamChunk{}, s.ctx.Err()
		}
	}
	if err := s.ctx.Err(); err != nil {
		return llmgateway.StreamChunk{}, err
	}

	if s.errAt >= 0 && s.index == s.errAt {
		return llmgateway.StreamChunk{}, s.err
	}

	if s.index >= len(s.fragments) {
		s.done = true
		return llmgateway.StreamChunk{FinishReason: "stop", Usage: s.usage}, nil
	}

	chunk := llmgateway.StreamChunk{Content: s.fragments[s.index]}
	s.index++
	return chunk, nil
}

func (s *Stream) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool { return s.closed.Load() }
