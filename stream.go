package llmgateway

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// Stream relays one provider stream to the caller. It is finite and not
// restartable: once Next returns an error, every later call returns the
// same error. Text already delivered is never retried on another provider.
type Stream struct {
	inner        ProviderStream
	cancel       context.CancelFunc
	meter        Meter
	now          func() time.Time
	start        time.Time
	requestID    string
	principal    string
	provider     string
	model        string
	costModel    string
	promptTokens int64

	// onEnd runs once when the provider finishes cleanly.
	onEnd func(Usage)

	mu           sync.Mutex
	delivered    int
	text         strings.Builder
	usage        *Usage
	finishReason string
	terminal     error
	closed       bool
}

// RequestID returns the request id of the stream.
func (s *Stream) RequestID() string { return s.requestID }

// Provider returns the label of the provider serving the stream.
func (s *Stream) Provider() string { return s.provider }

// Model returns the resolved, provider-qualified model.
func (s *Stream) Model() string { return s.model }

// Next returns the next non-empty text fragment. It returns io.EOF when the
// provider finished cleanly and a *StreamError on a mid-stream failure.
func (s *Stream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal != nil {
		return "", s.terminal
	}
	if s.closed {
		s.fail(context.Canceled)
		return "", s.terminal
	}

	for {
		chunk, err := s.inner.Next()
		if chunk.Usage != nil {
			u := *chunk.Usage
			s.usage = &u
		}
		if chunk.FinishReason != "" {
			s.finishReason = chunk.FinishReason
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.end()
			} else {
				s.fail(err)
			}
			return "", s.terminal
		}

		if chunk.Content == "" {
			continue
		}
		s.delivered++
		s.text.WriteString(chunk.Content)
		return chunk.Content, nil
	}
}

// Fragments relays the stream as the wire contract: text fragments in order,
// then exactly one FragmentEnd or FragmentError marker, then the channel is
// closed. Cancelling ctx stops the relay, closes the provider stream and
// closes the channel without a marker. The stream is closed when the
// channel closes.
func (s *Stream) Fragments(ctx context.Context) <-chan Fragment {
	out := make(chan Fragment)
	stop := context.AfterFunc(ctx, s.cancel)

	go func() {
		defer close(out)
		defer stop()
		defer s.Close()

		for {
			text, err := s.Next()

			f := Fragment{Kind: FragmentText, Text: text}
			switch {
			case err == nil:
			case errors.Is(err, io.EOF):
				f = Fragment{Kind: FragmentEnd}
			default:
				f = Fragment{Kind: FragmentError, Err: err}
			}

			if ctx.Err() != nil {
				return
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			if f.Kind != FragmentText {
				return
			}
		}
	}()

	return out
}

// Usage returns the provider-reported usage when present, otherwise an
// estimate from the prompt and the delivered text.
func (s *Stream) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUsage()
}

// Delivered returns the number of text fragments relayed so far.
func (s *Stream) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// Close releases the provider call and emits the usage record. A stream
// closed before its end counts as failed. Close is idempotent.
func (s *Stream) Close() error {
	// Cancel first so an in-flight Next returns and releases the lock.
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := s.inner.Close()

	if s.terminal == nil {
		s.fail(context.Canceled)
	}

	success := errors.Is(s.terminal, io.EOF)
	var streamErr error
	if !success {
		streamErr = s.terminal
	}

	usage := s.currentUsage()
	s.meter.OnUsage(UsageEvent{
		RequestID: s.requestID,
		Principal: s.principal,
		Model:     s.model,
		Provider:  s.provider,
		Usage:     usage,
		CostUSD:   EstimateCost(s.costModel, usage.TotalTokens),
		Latency:   s.now().Sub(s.start),
		Attempts:  1,
		Success:   success,
		Stream:    true,
		Error:     streamErr,
	})

	return err
}

func (s *Stream) end() {
	s.terminal = io.EOF
	if s.onEnd != nil {
		s.onEnd(s.currentUsage())
	}
}

func (s *Stream) fail(err error) {
	s.terminal = &StreamError{
		Provider:  s.provider,
		Delivered: s.delivered,
		Err:       err,
	}
}

func (s *Stream) currentUsage() Usage {
	if s.usage != nil {
		u := *s.usage
		u.TotalTokens = u.Total()
		return u
	}
	completion := estimateText(s.text.String())
	return Usage{
		PromptTokens:     s.promptTokens,
		CompletionTokens: completion,
		TotalTokens:      s.promptTokens + completion,
	}
}
