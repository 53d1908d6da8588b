package modeladapter

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// perMessageOverhead is the token overhead the chat format adds per message
// (role and delimiters).
const perMessageOverhead = 4

// TokenEstimator counts prompt tokens with the tokenizer of the target model.
// When no encoding can be loaded it falls back to a 1-token-per-4-characters
// heuristic. Safe for concurrent use.
type TokenEstimator struct {
	once  sync.Once
	model string
	codec tokenizer.Codec
}

// NewTokenEstimator returns an estimator for model. Unknown models use the
// o200k_base encoding.
func NewTokenEstimator(model string) *TokenEstimator {
	return &TokenEstimator{model: model}
}

func (e *TokenEstimator) load() tokenizer.Codec {
	e.once.Do(func() {
		if c, err := tokenizer.ForModel(tokenizer.Model(e.model)); err == nil {
			e.codec = c
			return
		}

		if c, err := tokenizer.Get(tokenizer.O200kBase); err == nil {
			e.codec = c
		}
	})

	return e.codec
}

func charsToTokens(chars int) int {
	return (chars + 3) / 4
}

// Count returns the number of tokens in text.
func (e *TokenEstimator) Count(text string) int {
	if text == "" {
		return 0
	}

	if codec := e.load(); codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}

	return charsToTokens(len(text))
}

// EstimateMessages estimates the prompt tokens of a conversation.
func (e *TokenEstimator) EstimateMessages(msgs []Message) int {
	tokens := 0
	for _, m := range msgs {
		tokens += perMessageOverhead + e.Count(m.Content)
	}

	return tokens
}

// Truncate returns the longest prefix of text that fits in limit tokens,
// cutting on a rune boundary.
func (e *TokenEstimator) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}

	if e.Count(text) <= limit {
		return text
	}

	runes := []rune(text)
	lo, hi := 0, len(runes)

	for lo < hi {
		mid := (lo + hi + 1) / 2
		if e.Count(string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return string(runes[:lo])
}
