package llmgateway

import (
	"math"
	"strings"
)

// wordTokenRatio approximates budget tokens per whitespace-separated word.
const wordTokenRatio = 1.3

// EstimateTokens provides a cheap pre-call token estimate for budget
// admission: word count × 1.3, rounded up. The true-up after the call uses
// the provider-reported count.
func EstimateTokens(messages []Message) int64 {
	var words int
	for _, m := range messages {
		words += len(strings.Fields(m.Content))
	}
	return estimateWords(words)
}

// estimateText estimates tokens for a block of generated text.
func estimateText(s string) int64 {
	return estimateWords(len(strings.Fields(s)))
}

func estimateWords(words int) int64 {
	return int64(math.Ceil(float64(words) * wordTokenRatio))
}
