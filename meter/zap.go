package meter

import (
	"github.com/ineyio/llmgateway"
	"go.uber.org/zap"
)

// ZapMeter logs gateway events as structured zap entries.
type ZapMeter struct {
	logger *zap.Logger
}

var _ llmgateway.Meter = (*ZapMeter)(nil)

// NewZapMeter creates a ZapMeter. A nil logger discards everything.
func NewZapMeter(logger *zap.Logger) *ZapMeter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapMeter{logger: logger}
}

func (m *ZapMeter) OnAdmission(e llmgateway.AdmissionEvent) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.String("user_id", e.Principal),
		zap.String("check", string(e.Check)),
		zap.Int64("remaining", e.Remaining),
		zap.Int64("limit", e.Limit),
	}
	if e.Allowed {
		m.logger.Debug("admission", fields...)
		return
	}
	m.logger.Warn("admission denied", append(fields, zap.Int64("estimated", e.Estimated))...)
}

func (m *ZapMeter) OnAttempt(e llmgateway.AttemptEvent) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.String("provider", e.Provider),
		zap.String("model", e.Model),
		zap.Int("attempt", e.Attempt),
		zap.Duration("duration", e.Duration),
	}
	if e.Success {
		m.logger.Info("provider attempt", fields...)
		return
	}
	m.logger.Warn("provider attempt failed",
		append(fields, zap.String("kind", string(e.Kind)), zap.Error(e.Error))...)
}

func (m *ZapMeter) OnUsage(e llmgateway.UsageEvent) {
	fields := []zap.Field{
		zap.String("request_id", e.RequestID),
		zap.String("user_id", e.Principal),
		zap.String("model", e.Model),
		zap.String("provider", e.Provider),
		zap.Int64("tokens_used", e.Usage.Total()),
		zap.Float64("cost_usd", e.CostUSD),
		zap.Int64("latency_ms", e.Latency.Milliseconds()),
		zap.Int("attempts", e.Attempts),
		zap.Bool("stream", e.Stream),
		zap.Bool("success", e.Success),
	}
	if e.Success {
		m.logger.Info("model usage", fields...)
		return
	}
	m.logger.Warn("model usage", append(fields, zap.Error(e.Error))...)
}
