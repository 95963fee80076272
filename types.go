package llmgateway

// CompletionRequest represents a chat completion request routed by the gateway.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	UserID      string    `json:"user_id"`
	RequestID   string    `json:"request_id,omitempty"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Total returns TotalTokens, falling back to prompt+completion when the
// provider did not report a total.
func (u Usage) Total() int64 {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// CompletionResult is the normalized outcome of a successful completion.
type CompletionResult struct {
	RequestID        string  `json:"request_id"`
	Content          string  `json:"content"`
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Usage            Usage   `json:"tokens_used"`
	FinishReason     string  `json:"finish_reason"`
	LatencyMs        float64 `json:"latency_ms"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	Attempts         int     `json:"attempts"`
}

// FragmentKind distinguishes stream payloads from terminal markers.
type FragmentKind int

const (
	FragmentText FragmentKind = iota
	FragmentEnd
	FragmentError
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentText:
		return "text"
	case FragmentEnd:
		return "end"
	case FragmentError:
		return "error"
	default:
		return "unknown"
	}
}

// Fragment is one element of the streaming wire contract: zero or more text
// fragments followed by exactly one end or error marker.
type Fragment struct {
	Kind FragmentKind
	Text string
	Err  error
}

// IntPtr returns a pointer to the given int.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(v float64) *float64 { return &v }
