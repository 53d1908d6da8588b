package modeladapter

import (
	"maps"
	"slices"
)

// Well-known chat-completion parameter names.
const (
	ParamTemperature         = "temperature"
	ParamTopP                = "top_p"
	ParamMaxTokens           = "max_tokens"
	ParamMaxCompletionTokens = "max_completion_tokens"
	ParamPresencePenalty     = "presence_penalty"
	ParamFrequencyPenalty    = "frequency_penalty"
	ParamLogprobs            = "logprobs"
	ParamN                   = "n"
	ParamSeed                = "seed"
	ParamStop                = "stop"
	ParamResponseFormat      = "response_format"
	ParamReasoningEffort     = "reasoning_effort"
)

// Params maps chat-completion parameter names to the values a caller wants to
// send. Values are plain Go scalars (float64, int, string, bool) or string
// slices. Params handed to the adapter are never modified.
type Params map[string]any

// Clone returns a shallow copy of p. A nil Params clones to an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)

	return out
}

// Has reports whether name is present.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// IsTokenParam reports whether name is one of the token-limit parameter names.
func IsTokenParam(name string) bool {
	return name == ParamMaxTokens || name == ParamMaxCompletionTokens
}

// otherTokenParam returns the alternative token-limit name for name.
func otherTokenParam(name string) string {
	if name == ParamMaxTokens {
		return ParamMaxCompletionTokens
	}

	return ParamMaxTokens
}
