package llmgateway

import "time"

// RateLimiter gates requests per principal. Implementations must make the
// read-modify-write of one principal's state atomic.
type RateLimiter interface {
	// Check consumes cost rate tokens if available. A denial is reported through
	// the boolean, not as an error.
	Check(principal string, cost int) (bool, RateInfo)
}

// BudgetManager tracks the rolling daily token budget per principal.
type BudgetManager interface {
	// Check reports whether estimated tokens fit into the remaining budget.
	Check(principal string, estimated int64) (bool, BudgetInfo)

	// RecordUsage adds the actual tokens consumed by a successful completion.
	RecordUsage(principal string, actual int64) BudgetInfo

	// Stats returns a read-only snapshot for the principal.
	Stats(principal string) BudgetInfo
}

// RateInfo describes a rate limit decision.
type RateInfo struct {
	Principal       string        `json:"user_id"`
	Allowed         bool          `json:"allowed"`
	TokensRemaining int           `json:"tokens_remaining"`
	Limit           int           `json:"limit"`
	ResetIn         time.Duration `json:"reset_in"`
}

// BudgetInfo describes a principal's daily token budget.
type BudgetInfo struct {
	Principal  string    `json:"user_id"`
	Allowed    bool      `json:"allowed"`
	UsedToday  int64     `json:"tokens_used_today"`
	Remaining  int64     `json:"tokens_remaining"`
	DailyLimit int64     `json:"daily_limit"`
	ResetAt    time.Time `json:"reset_at"`
}

// allowAllLimiter is a rate limiter that admits everything.
type allowAllLimiter struct{}

func (allowAllLimiter) Check(principal string, _ int) (bool, RateInfo) {
	return true, RateInfo{Principal: principal, Allowed: true}
}

// unlimitedBudget is a budget manager without limits.
type unlimitedBudget struct{}

func (unlimitedBudget) Check(principal string, _ int64) (bool, BudgetInfo) {
	return true, BudgetInfo{Principal: principal, Allowed: true}
}
func (unlimitedBudget) RecordUsage(principal string, _ int64) BudgetInfo {
	return BudgetInfo{Principal: principal, Allowed: true}
}
func (unlimitedBudget) Stats(principal string) BudgetInfo {
	return BudgetInfo{Principal: principal, Allowed: true}
}
