package modeladapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SendFunc performs the provider call for one adjusted parameter set.
type SendFunc[R any] func(ctx context.Context, params Params) (R, error)

// Execute adjusts requested for profile and sends it. When the provider
// rejects a parameter the profile did not already list as unsupported, a
// derived profile that also excludes that parameter is built and the request
// is adjusted and sent exactly once more. send is called at most twice.
//
// Configuration errors, transport errors, cancellation and a failed retry are
// returned unchanged. The returned notes cover every adjustment made,
// including the retry.
func Execute[R any](ctx context.Context, a *Adapter, send SendFunc[R], profile Profile, requested Params) (R, []Note, error) {
	var zero R

	res, err := a.Adjust(profile, requested)
	if err != nil {
		return zero, nil, err
	}

	notes := res.Notes

	resp, err := send(ctx, res.Params)
	if err == nil {
		return resp, notes, nil
	}

	derived, retryNote, ok := deriveForRetry(ctx, profile, err)
	if !ok {
		return zero, notes, err
	}

	a.logger.LogAttrs(ctx, slog.LevelWarn, "provider rejected parameter, retrying once",
		slog.String("model", profile.ModelID),
		slog.String("param", retryNote.Param),
	)

	notes = append(notes, retryNote)

	res, err = a.Adjust(derived, requested)
	if err != nil {
		return zero, notes, err
	}

	notes = append(notes, res.Notes...)

	resp, err = send(ctx, res.Params)
	if err != nil {
		return zero, notes, err
	}

	return resp, notes, nil
}

// deriveForRetry decides whether err warrants the single adaptive retry and,
// if so, returns the profile to retry with.
func deriveForRetry(ctx context.Context, profile Profile, err error) (Profile, Note, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Profile{}, Note{}, false
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return Profile{}, Note{}, false
	}

	var upe *UnsupportedParameterError
	if !errors.As(err, &upe) || upe.Param == "" || profile.IsUnsupported(upe.Param) {
		return Profile{}, Note{}, false
	}

	derived := profile.WithUnsupported(upe.Param)

	// A rejected token-limit key is treated as a reasoning-model quirk in
	// either direction: rename the key and pin the temperature.
	if IsTokenParam(upe.Param) {
		derived = derived.WithTokenParam(otherTokenParam(upe.Param))
		if derived.FixedTemperature == nil {
			derived = derived.WithFixedTemperature(1)
		}
	}

	note := Note{
		Action: ActionRetry,
		Param:  upe.Param,
		Reason: fmt.Sprintf("provider rejected %s for model %s", upe.Param, profile.ModelID),
	}

	return derived, note, true
}
