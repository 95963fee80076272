package llmgateway

import "time"

// Meter observes gateway events for monitoring, logging and auditing.
// Implementations must be safe for concurrent use and must not block.
type Meter interface {
	// OnAdmission is called for every rate limit and budget check.
	OnAdmission(event AdmissionEvent)

	// OnAttempt is called once per provider attempt.
	OnAttempt(event AttemptEvent)

	// OnUsage is called once per completed or failed request.
	OnUsage(event UsageEvent)
}

// AdmissionCheck names an admission gate.
type AdmissionCheck string

const (
	CheckRateLimit AdmissionCheck = "rate_limit"
	CheckBudget    AdmissionCheck = "budget"
)

// AdmissionEvent describes one admission decision.
type AdmissionEvent struct {
	RequestID string
	Principal string
	Check     AdmissionCheck
	Allowed   bool
	Remaining int64
	Limit     int64
	Estimated int64
}

// AttemptEvent describes the outcome of a single provider call.
type AttemptEvent struct {
	RequestID string
	Provider  string
	Model     string
	Attempt   int
	Success   bool
	Kind      FailureKind
	Duration  time.Duration
	Error     error
}

// UsageEvent is the per-request usage record.
type UsageEvent struct {
	RequestID string
	Principal string
	Model     string
	Provider  string
	Usage     Usage
	CostUSD   float64
	Latency   time.Duration
	Attempts  int
	Success   bool
	Stream    bool
	Error     error
}

// noopMeter discards every event.
type noopMeter struct{}

func (noopMeter) OnAdmission(AdmissionEvent) {}
func (noopMeter) OnAttempt(AttemptEvent)     {}
func (noopMeter) OnUsage(UsageEvent)         {}
