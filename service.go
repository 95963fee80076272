package llmgateway

import (
	"context"

	"github.com/google/uuid"
)

// Service composes admission control with the gateway: the rate limiter and
// budget are consulted before any provider call, and the budget is trued up
// with the provider-reported usage after a success.
type Service struct {
	gateway *Gateway
	limiter RateLimiter
	budget  BudgetManager
}

// NewService creates a Service. A nil limiter or budget admits everything.
func NewService(gw *Gateway, limiter RateLimiter, budget BudgetManager) *Service {
	if limiter == nil {
		limiter = allowAllLimiter{}
	}
	if budget == nil {
		budget = unlimitedBudget{}
	}
	return &Service{
		gateway: gw,
		limiter: limiter,
		budget:  budget,
	}
}

// Gateway returns the underlying gateway.
func (s *Service) Gateway() *Gateway { return s.gateway }

// Complete admits the request and routes it through the gateway. Failed
// completions never touch budget state.
func (s *Service) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if err := s.admit(req); err != nil {
		return CompletionResult{}, err
	}

	res, err := s.gateway.Complete(ctx, req)
	if err != nil {
		return CompletionResult{}, err
	}

	s.budget.RecordUsage(req.UserID, res.Usage.Total())
	return res, nil
}

// Stream admits the request and opens a stream. The budget is trued up when
// the stream ends cleanly.
func (s *Service) Stream(ctx context.Context, req CompletionRequest) (*Stream, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if err := s.admit(req); err != nil {
		return nil, err
	}

	stream, err := s.gateway.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	principal := req.UserID
	stream.onEnd = func(u Usage) {
		s.budget.RecordUsage(principal, u.Total())
	}
	return stream, nil
}

// Usage returns the principal's budget snapshot. Unseen principals report
// the defaults.
func (s *Service) Usage(principal string) BudgetInfo {
	return s.budget.Stats(principal)
}

func (s *Service) admit(req CompletionRequest) error {
	meter := s.gateway.meter

	ok, rate := s.limiter.Check(req.UserID, 1)
	meter.OnAdmission(AdmissionEvent{
		RequestID: req.RequestID,
		Principal: req.UserID,
		Check:     CheckRateLimit,
		Allowed:   ok,
		Remaining: int64(rate.TokensRemaining),
		Limit:     int64(rate.Limit),
		Estimated: 1,
	})
	if !ok {
		return &AdmissionError{
			Reason:     ReasonRateLimited,
			Principal:  req.UserID,
			RetryAfter: rate.ResetIn,
			Rate:       rate,
		}
	}

	estimated := EstimateTokens(req.Messages)
	ok, budget := s.budget.Check(req.UserID, estimated)
	meter.OnAdmission(AdmissionEvent{
		RequestID: req.RequestID,
		Principal: req.UserID,
		Check:     CheckBudget,
		Allowed:   ok,
		Remaining: budget.Remaining,
		Limit:     budget.DailyLimit,
		Estimated: estimated,
	})
	if !ok {
		return &AdmissionError{
			Reason:    ReasonBudgetExceeded,
			Principal: req.UserID,
			ResetAt:   budget.ResetAt,
			Budget:    budget,
		}
	}

	return nil
}
