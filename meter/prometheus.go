package meter

import (
	"strconv"

	"github.com/ineyio/llmgateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "llmgateway"

// PromMeter exports gateway events as Prometheus metrics. Principals are
// never used as labels.
type PromMeter struct {
	admissions      *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	cost            *prometheus.CounterVec
}

var _ llmgateway.Meter = (*PromMeter)(nil)

// NewPromMeter registers the gateway metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPromMeter(reg prometheus.Registerer) *PromMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PromMeter{
		admissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "checks_total",
				Help:      "Admission checks by gate and result",
			},
			[]string{"check", "result"},
		),
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "attempts_total",
				Help:      "Provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		attemptDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "attempt_duration_seconds",
				Help:      "Provider attempt duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "request",
				Name:      "total",
				Help:      "Completed requests by status",
			},
			[]string{"provider", "status", "stream"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "request",
				Name:      "duration_seconds",
				Help:      "End-to-end request latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status", "stream"},
		),
		tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens consumed by successful requests",
			},
			[]string{"provider", "model"},
		),
		cost: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_usd_total",
				Help:      "Estimated cost in USD of successful requests",
			},
			[]string{"provider", "model"},
		),
	}
}

func (m *PromMeter) OnAdmission(e llmgateway.AdmissionEvent) {
	m.admissions.WithLabelValues(string(e.Check), result(e.Allowed)).Inc()
}

func (m *PromMeter) OnAttempt(e llmgateway.AttemptEvent) {
	outcome := "success"
	if !e.Success {
		outcome = string(e.Kind)
	}
	m.attempts.WithLabelValues(e.Provider, outcome).Inc()
	m.attemptDuration.WithLabelValues(e.Provider).Observe(e.Duration.Seconds())
}

func (m *PromMeter) OnUsage(e llmgateway.UsageEvent) {
	status := "success"
	if !e.Success {
		status = "error"
	}
	stream := strconv.FormatBool(e.Stream)

	m.requests.WithLabelValues(e.Provider, status, stream).Inc()
	m.requestDuration.WithLabelValues(status, stream).Observe(e.Latency.Seconds())

	if e.Success {
		m.tokens.WithLabelValues(e.Provider, e.Model).Add(float64(e.Usage.Total()))
		m.cost.WithLabelValues(e.Provider, e.Model).Add(e.CostUSD)
	}
}

func result(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
