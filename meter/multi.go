package meter

import "github.com/ineyio/llmgateway"

// Multi fans every event out to several meters in order.
type Multi []llmgateway.Meter

var _ llmgateway.Meter = Multi(nil)

// NewMulti drops nil meters.
func NewMulti(meters ...llmgateway.Meter) Multi {
	out := make(Multi, 0, len(meters))
	for _, m := range meters {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (m Multi) OnAdmission(e llmgateway.AdmissionEvent) {
	for _, mm := range m {
		mm.OnAdmission(e)
	}
}

func (m Multi) OnAttempt(e llmgateway.AttemptEvent) {
	for _, mm := range m {
		mm.OnAttempt(e)
	}
}

func (m Multi) OnUsage(e llmgateway.UsageEvent) {
	for _, mm := range m {
		mm.OnUsage(e)
	}
}
