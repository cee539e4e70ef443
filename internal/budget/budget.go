// Package budget estimates prompt sizes for explanation requests. Backends use
// different tokenizers, so the estimate is a character heuristic rather than
// an exact count: 1 token ≈ 4 bytes of UTF-8. Japanese text runs about 3 bytes
// per rune, which makes the estimate err on the high side for it.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the byte-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the framing tokens most chat APIs add
	// around each message.
	perMessageOverhead = 4

	// DefaultPromptTokens is the default input budget for one explanation
	// prompt. Researcher blobs for pattern B and C can be long; anything over
	// this is logged so operators can spot oversized payloads.
	DefaultPromptTokens = 2000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs, summing
// role and content plus a fixed per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Fits reports whether msgs fit within maxTokens, along with the estimate.
// A non-positive maxTokens disables the check.
func Fits(msgs []*schema.Message, maxTokens int) (int, bool) {
	n := EstimateMessages(msgs)
	if maxTokens <= 0 {
		return n, true
	}
	return n, n <= maxTokens
}
