// Package usage accumulates token consumption reported by chat completions.
package usage

import "sync"

// TokenCount holds the token counts reported for one or more completions.
// ReasoningTokens is the share of OutputTokens spent on hidden reasoning by
// reasoning models; it is zero for other models.
type TokenCount struct {
	InputTokens     int `json:"inputTokens"`
	OutputTokens    int `json:"outputTokens"`
	ReasoningTokens int `json:"reasoningTokens,omitempty"`
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Plus returns the element-wise sum of tc and o.
func (tc TokenCount) Plus(o TokenCount) TokenCount {
	return TokenCount{
		InputTokens:     tc.InputTokens + o.InputTokens,
		OutputTokens:    tc.OutputTokens + o.OutputTokens,
		ReasoningTokens: tc.ReasoningTokens + o.ReasoningTokens,
	}
}

// Tracker keeps running totals of token usage for a long-lived completer.
// Only aggregates are stored, so memory stays constant no matter how many
// completions are recorded. The zero value is ready to use and it is safe
// for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	total TokenCount
	last  TokenCount
	count int
}

// Add records the usage of one completion.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = t.total.Plus(tc)
	t.last = tc
	t.count++
}

// Last returns the most recently recorded usage.
// The bool is false when nothing has been recorded.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.count > 0
}

// Total returns the aggregate usage across all recorded completions.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

// Count returns the number of recorded completions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.count
}

// Reset clears all recorded usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total, t.last, t.count = TokenCount{}, TokenCount{}, 0
}
