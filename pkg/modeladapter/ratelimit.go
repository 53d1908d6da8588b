package modeladapter

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
)

var _ Completer = (*RateLimitedCompleter)(nil)

// windowEntry is one completed request inside the sliding minute.
type windowEntry struct {
	at     time.Time
	tokens usage.TokenCount
}

// RateLimitedCompleter wraps a Completer with proactive TPM/RPM throttling
// and reactive 429 retry with exponential backoff and jitter.
// Input and output tokens are throttled independently, using the usage each
// Completion reports. Calls are not serialized: concurrent issues share one
// window and wait for capacity together.
type RateLimitedCompleter struct {
	inner    Completer
	limits   RateLimitOpts
	mu       sync.Mutex
	window   []windowEntry
	fallback usage.Tracker // used when inner is not a UsageReporter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// RateLimitOpts configures the RateLimitedCompleter. Zero limits disable the
// corresponding check.
type RateLimitOpts struct {
	InputTPM   int           `mapstructure:"input_tpm"`
	OutputTPM  int           `mapstructure:"output_tpm"`
	RPM        int           `mapstructure:"rpm"`
	MaxRetries int           `mapstructure:"max_retries"` // default 3
	BaseDelay  time.Duration `mapstructure:"base_delay"`  // default 1s
}

func (o RateLimitOpts) throttled() bool {
	return o.InputTPM > 0 || o.OutputTPM > 0 || o.RPM > 0
}

// NewRateLimitedCompleter wraps a Completer with rate limiting.
func NewRateLimitedCompleter(inner Completer, opts RateLimitOpts) *RateLimitedCompleter {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &RateLimitedCompleter{
		inner:  inner,
		limits: opts,
		now:    time.Now,
		sleep:  contextSleep,
		rand:   rand.Float64,
	}
}

// SetNowFunc overrides the time source (for testing).
func (r *RateLimitedCompleter) SetNowFunc(fn func() time.Time) { r.now = fn }

// SetSleepFunc overrides the sleep function (for testing).
func (r *RateLimitedCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// SetRandFunc overrides the jitter source (for testing).
func (r *RateLimitedCompleter) SetRandFunc(fn func() float64) { r.rand = fn }

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pruneWindow drops entries older than one minute and releases the old
// backing array. Must be called with mu held.
func (r *RateLimitedCompleter) pruneWindow(now time.Time) {
	cutoff := now.Add(-time.Minute)

	i := 0
	for i < len(r.window) && !r.window[i].at.After(cutoff) {
		i++
	}

	if i > 0 {
		r.window = append(r.window[:0:0], r.window[i:]...)
	}
}

// hasCapacity reports whether another request fits in the window and, if not,
// how long until the oldest entry expires. Must be called with mu held.
func (r *RateLimitedCompleter) hasCapacity(now time.Time) (bool, time.Duration) {
	var sum usage.TokenCount
	for _, e := range r.window {
		sum = sum.Plus(e.tokens)
	}

	ok := (r.limits.InputTPM <= 0 || sum.InputTokens < r.limits.InputTPM) &&
		(r.limits.OutputTPM <= 0 || sum.OutputTokens < r.limits.OutputTPM) &&
		(r.limits.RPM <= 0 || len(r.window) < r.limits.RPM)
	if ok || len(r.window) == 0 {
		return ok, 0
	}

	return false, max(r.window[0].at.Add(time.Minute).Sub(now), 0)
}

func (r *RateLimitedCompleter) waitForCapacity(ctx context.Context) error {
	if !r.limits.throttled() {
		return nil
	}

	const minWait = 10 * time.Millisecond

	for {
		r.mu.Lock()
		now := r.now()
		r.pruneWindow(now)
		ok, wait := r.hasCapacity(now)
		r.mu.Unlock()

		if ok {
			return nil
		}

		if err := r.sleep(ctx, max(wait, minWait)); err != nil {
			return err
		}
	}
}

func (r *RateLimitedCompleter) record(tokens usage.TokenCount) {
	r.mu.Lock()
	r.window = append(r.window, windowEntry{at: r.now(), tokens: tokens})
	r.mu.Unlock()

	if _, ok := r.inner.(UsageReporter); !ok {
		r.fallback.Add(tokens)
	}
}

// backoff returns baseDelay*2^attempt (or retryAfter if larger) scaled by a
// jitter factor in [0.75, 1.25).
func (r *RateLimitedCompleter) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := max(r.limits.BaseDelay<<attempt, retryAfter)
	factor := 0.75 + r.rand()*0.5 //nolint:mnd // ±25% jitter

	return time.Duration(float64(d) * factor)
}

// Complete implements Completer with proactive TPM/RPM throttling and 429 retry.
// Errors other than *RateLimitError are returned on first sight, so the
// adaptive parameter retry in [Execute] sees them unchanged.
func (r *RateLimitedCompleter) Complete(ctx context.Context, msgs []Message, params Params) (Completion, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return Completion{}, err
	}

	for attempt := 0; ; attempt++ {
		c, err := r.inner.Complete(ctx, msgs, params)
		if err == nil {
			r.record(c.Usage)

			if err := r.adaptFromServerInfo(ctx); err != nil {
				return Completion{}, err
			}

			return c, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) || attempt >= r.limits.MaxRetries {
			return Completion{}, err
		}

		if err := r.sleep(ctx, r.backoff(attempt, rle.RetryAfter)); err != nil {
			return Completion{}, err
		}
	}
}

// adaptFromServerInfo sleeps until the provider's reset time when the inner
// completer reports (via RateLimitInfoReporter) that at most one request or
// token remains.
func (r *RateLimitedCompleter) adaptFromServerInfo(ctx context.Context) error {
	reporter, ok := r.inner.(RateLimitInfoReporter)
	if !ok {
		return nil
	}

	info := reporter.LastRateLimitInfo()
	if info == nil {
		return nil
	}

	now := r.now()
	var until time.Time

	if info.RemainingRequests <= 1 && info.RequestsReset.After(now) {
		until = info.RequestsReset
	}

	if info.RemainingTokens <= 1 && info.TokensReset.After(now) && info.TokensReset.After(until) {
		until = info.TokensReset
	}

	if until.IsZero() {
		return nil
	}

	return r.sleep(ctx, until.Sub(now))
}

// UsageTracker forwards to the inner completer if it implements UsageReporter.
func (r *RateLimitedCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}

	return &r.fallback
}

// LastRateLimitInfo forwards to the inner completer when it reports headers.
func (r *RateLimitedCompleter) LastRateLimitInfo() *RateLimitInfo {
	if rr, ok := r.inner.(RateLimitInfoReporter); ok {
		return rr.LastRateLimitInfo()
	}

	return nil
}
