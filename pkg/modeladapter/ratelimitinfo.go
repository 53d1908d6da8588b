package modeladapter

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitInfo holds rate limit state parsed from provider response headers.
type RateLimitInfo struct {
	RemainingRequests int
	RemainingTokens   int
	RequestsReset     time.Time
	TokensReset       time.Time
}

// RateLimitInfoReporter provides the most recently observed rate limit info
// from a provider's response headers.
type RateLimitInfoReporter interface {
	LastRateLimitInfo() *RateLimitInfo
}

// ParseRateLimitHeaders parses the x-ratelimit-* headers sent by OpenAI and
// Azure OpenAI: x-ratelimit-remaining-{requests,tokens} and
// x-ratelimit-reset-{requests,tokens}. It returns nil when neither remaining
// header is present. Resets are resolved against now.
func ParseRateLimitHeaders(h http.Header, now time.Time) *RateLimitInfo {
	reqRemaining := h.Get("x-ratelimit-remaining-requests")
	tokRemaining := h.Get("x-ratelimit-remaining-tokens")

	if reqRemaining == "" && tokRemaining == "" {
		return nil
	}

	info := &RateLimitInfo{
		RequestsReset: parseResetTime(h.Get("x-ratelimit-reset-requests"), now),
		TokensReset:   parseResetTime(h.Get("x-ratelimit-reset-tokens"), now),
	}

	if v, err := strconv.Atoi(reqRemaining); err == nil {
		info.RemainingRequests = v
	}

	if v, err := strconv.Atoi(tokRemaining); err == nil {
		info.RemainingTokens = v
	}

	return info
}

// parseResetTime accepts RFC3339, a Go duration ("6s", "1m30s") or a bare
// number of seconds relative to now.
func parseResetTime(val string, now time.Time) time.Time {
	if val == "" {
		return time.Time{}
	}

	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}

	if d, err := time.ParseDuration(val); err == nil {
		return now.Add(d)
	}

	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return now.Add(time.Duration(secs * float64(time.Second)))
	}

	return time.Time{}
}
