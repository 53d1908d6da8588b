package modeladapter

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ConfigurationError reports a deployment misconfiguration: the active API
// version is older than the model requires, a version string cannot be parsed,
// or credentials are missing. It is never retried.
type ConfigurationError struct {
	Model         string
	ActiveVersion string
	MinVersion    string
	Reason        string
	Err           error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Model != "" {
		msg += fmt.Sprintf(" (model %q)", e.Model)
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.MinVersion != "" || e.ActiveVersion != "" {
		msg += fmt.Sprintf(" [active api version %q, required >= %q]", e.ActiveVersion, e.MinVersion)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// UnsupportedParameterError is returned by a provider when it rejects a
// specific request parameter for the target model.
type UnsupportedParameterError struct {
	Param   string
	Model   string
	Message string
}

func (e *UnsupportedParameterError) Error() string {
	msg := fmt.Sprintf("unsupported parameter %q", e.Param)
	if e.Model != "" {
		msg += fmt.Sprintf(" for model %q", e.Model)
	}

	if e.Message != "" {
		msg += ": " + e.Message
	}

	return msg
}

// TransportError wraps a network failure or an unexpected provider status.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError is returned when the API responds with HTTP 429 (Too Many Requests).
// It carries an optional RetryAfter duration parsed from the Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Body)
	}

	return fmt.Sprintf("rate limited: %s", e.Body)
}

// ParseRetryAfter parses a Retry-After header as either seconds or an HTTP-date.
// Returns zero if unparseable or if the date is in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}

	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(val); err == nil {
		return max(time.Until(t), 0)
	}

	return 0
}
