package llmgateway_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gw "github.com/ineyio/llmgateway"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want gw.FailureKind
	}{
		{gw.ErrProviderRateLimited, gw.FailureRateLimited},
		{fmt.Errorf("wrapped: %w", gw.ErrProviderUnavailable), gw.FailureUnavailable},
		{gw.ErrProviderTimeout, gw.FailureTimeout},
		{context.DeadlineExceeded, gw.FailureTimeout},
		{gw.ErrProtocol, gw.FailureProtocol},
		{errors.New("surprise"), gw.FailureUnexpected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gw.Classify(tt.err), tt.err.Error())
	}
}

func TestAdmissionError_Is(t *testing.T) {
	rate := &gw.AdmissionError{Reason: gw.ReasonRateLimited, Principal: "alice"}
	assert.ErrorIs(t, rate, gw.ErrRateLimited)
	assert.NotErrorIs(t, rate, gw.ErrBudgetExceeded)
	assert.Contains(t, rate.Error(), "alice")

	budget := &gw.AdmissionError{Reason: gw.ReasonBudgetExceeded, Principal: "bob"}
	assert.ErrorIs(t, budget, gw.ErrBudgetExceeded)
	assert.NotErrorIs(t, budget, gw.ErrRateLimited)
}

func TestExhaustedError_UnwrapsLast(t *testing.T) {
	last := &gw.ProviderError{Kind: gw.FailureTimeout, Provider: "vertex", Err: gw.ErrProviderTimeout}
	err := fmt.Errorf("request failed: %w", &gw.ExhaustedError{Attempts: 3, Last: last})

	assert.ErrorIs(t, err, gw.ErrAllProvidersExhausted)
	assert.ErrorIs(t, err, gw.ErrProviderTimeout)

	var perr *gw.ProviderError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, "vertex", perr.Provider)
}
