package meter

import (
	"context"
	"log/slog"

	"github.com/ineyio/llmgateway"
)

// LogMeter logs gateway events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ llmgateway.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnAdmission(e llmgateway.AdmissionEvent) {
	if e.Allowed {
		m.Logger.Debug("admission",
			"request_id", e.RequestID,
			"user_id", e.Principal,
			"check", string(e.Check),
			"remaining", e.Remaining,
			"limit", e.Limit,
		)
		return
	}
	m.Logger.Warn("admission_denied",
		"request_id", e.RequestID,
		"user_id", e.Principal,
		"check", string(e.Check),
		"remaining", e.Remaining,
		"limit", e.Limit,
		"estimated", e.Estimated,
	)
}

func (m *LogMeter) OnAttempt(e llmgateway.AttemptEvent) {
	if e.Success {
		m.Logger.Info("attempt",
			"request_id", e.RequestID,
			"provider", e.Provider,
			"model", e.Model,
			"attempt", e.Attempt,
			"duration_ms", e.Duration.Milliseconds(),
		)
		return
	}
	m.Logger.Warn("attempt_failed",
		"request_id", e.RequestID,
		"provider", e.Provider,
		"model", e.Model,
		"attempt", e.Attempt,
		"kind", string(e.Kind),
		"duration_ms", e.Duration.Milliseconds(),
		"error", e.Error,
	)
}

func (m *LogMeter) OnUsage(e llmgateway.UsageEvent) {
	level := slog.LevelInfo
	if !e.Success {
		level = slog.LevelWarn
	}
	m.Logger.Log(context.Background(), level, "model_usage",
		"request_id", e.RequestID,
		"user_id", e.Principal,
		"model", e.Model,
		"provider", e.Provider,
		"tokens_used", e.Usage.TotalTokens,
		"cost_usd", e.CostUSD,
		"latency_ms", e.Latency.Milliseconds(),
		"attempts", e.Attempts,
		"stream", e.Stream,
		"success", e.Success,
		"error", e.Error,
	)
}
