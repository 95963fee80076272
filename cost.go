package llmgateway

import "strings"

// DefaultCostPer1K is the rate applied when no table key matches.
const DefaultCostPer1K = 0.01

// costRate maps a model-name substring to a $/1000 token rate.
type costRate struct {
	key   string
	per1K float64
}

// costTable is matched in order; the first key contained in the base model
// name wins. "gpt-4" precedes "gpt-4o", so gpt-4o models price as gpt-4.
var costTable = []costRate{
	{key: "gpt-4", per1K: 0.045},
	{key: "gpt-4o", per1K: 0.03},
	{key: "gpt-3.5-turbo", per1K: 0.00175},
	{key: "claude-2", per1K: 0.008},
	{key: "gemini-pro", per1K: 0.001},
}

// CostPer1K returns the advisory $/1000 token rate for a model.
func CostPer1K(model string) float64 {
	base := model
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ToLower(base)

	for _, r := range costTable {
		if strings.Contains(base, r.key) {
			return r.per1K
		}
	}
	return DefaultCostPer1K
}

// EstimateCost computes the advisory USD cost for tokens on a model.
// Not authoritative billing.
func EstimateCost(model string, tokens int64) float64 {
	return float64(tokens) / 1000 * CostPer1K(model)
}
