package meter

import "github.com/ineyio/llmgateway"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ llmgateway.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnAdmission(llmgateway.AdmissionEvent) {}
func (m *NoopMeter) OnAttempt(llmgateway.AttemptEvent)     {}
func (m *NoopMeter) OnUsage(llmgateway.UsageEvent)         {}
