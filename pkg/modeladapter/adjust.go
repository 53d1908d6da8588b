package modeladapter

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cast"
)

// NoteAction classifies an adjustment.
type NoteAction string

const (
	ActionSetTemperature NoteAction = "set_temperature"
	ActionRename         NoteAction = "rename"
	ActionRemove         NoteAction = "remove"
	ActionRetry          NoteAction = "retry"
)

// Note records one change the adapter made to a request, for diagnostics.
type Note struct {
	Action NoteAction `json:"action"`
	Param  string     `json:"param"`
	From   any        `json:"from,omitempty"`
	To     any        `json:"to,omitempty"`
	Reason string     `json:"reason"`
}

func (n Note) String() string {
	switch n.Action {
	case ActionSetTemperature:
		return fmt.Sprintf("%s: %v -> %v (%s)", n.Param, n.From, n.To, n.Reason)
	case ActionRename:
		return fmt.Sprintf("%s -> %v (%s)", n.Param, n.To, n.Reason)
	default:
		return fmt.Sprintf("%s %s (%s)", n.Action, n.Param, n.Reason)
	}
}

// LogValue renders the note as a structured slog group.
func (n Note) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("action", string(n.Action)),
		slog.String("param", n.Param),
		slog.String("reason", n.Reason),
	}
	if n.From != nil {
		attrs = append(attrs, slog.Any("from", n.From))
	}

	if n.To != nil {
		attrs = append(attrs, slog.Any("to", n.To))
	}

	return slog.GroupValue(attrs...)
}

// Result is the output of [Adapter.Adjust].
type Result struct {
	Params Params
	Notes  []Note
}

// Adapter rewrites request parameters to fit a model profile. It holds the
// active provider API version, which is fixed for the adapter's lifetime.
// An Adapter is safe for concurrent use.
type Adapter struct {
	activeVersion string
	logger        *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used by [Execute]. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an Adapter for the given active API version.
func NewAdapter(activeVersion string, opts ...Option) *Adapter {
	a := &Adapter{
		activeVersion: activeVersion,
		logger:        slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ActiveVersion returns the API version the adapter was built with.
func (a *Adapter) ActiveVersion() string { return a.activeVersion }

// Adjust returns a copy of requested rewritten for profile:
//
//  1. a fixed temperature overrides any other requested temperature
//  2. a token limit under the wrong name is renamed, keeping its value
//  3. unsupported parameters are removed
//  4. the active API version is checked against the profile minimum
//
// The input is never modified. Adjusting an already adjusted set yields no
// further notes. A version mismatch returns a *ConfigurationError.
func (a *Adapter) Adjust(profile Profile, requested Params) (Result, error) {
	out := requested.Clone()
	var notes []Note

	if profile.FixedTemperature != nil {
		if v, ok := out[ParamTemperature]; ok {
			want := *profile.FixedTemperature
			got, err := cast.ToFloat64E(v)
			if err != nil || got != want {
				out[ParamTemperature] = want
				notes = append(notes, Note{
					Action: ActionSetTemperature,
					Param:  ParamTemperature,
					From:   v,
					To:     want,
					Reason: fmt.Sprintf("model %s only accepts temperature %v", profile.ModelID, want),
				})
			}
		}
	}

	if IsTokenParam(profile.TokenParam) {
		wrong := otherTokenParam(profile.TokenParam)
		if v, ok := out[wrong]; ok {
			delete(out, wrong)

			if out.Has(profile.TokenParam) {
				notes = append(notes, Note{
					Action: ActionRemove,
					Param:  wrong,
					From:   v,
					Reason: fmt.Sprintf("model %s uses %s, which is already set", profile.ModelID, profile.TokenParam),
				})
			} else {
				out[profile.TokenParam] = v
				notes = append(notes, Note{
					Action: ActionRename,
					Param:  wrong,
					From:   v,
					To:     profile.TokenParam,
					Reason: fmt.Sprintf("model %s expects %s", profile.ModelID, profile.TokenParam),
				})
			}
		}
	}

	for _, name := range out.Keys() {
		if profile.IsUnsupported(name) {
			notes = append(notes, Note{
				Action: ActionRemove,
				Param:  name,
				From:   out[name],
				Reason: fmt.Sprintf("model %s does not support %s", profile.ModelID, name),
			})
			delete(out, name)
		}
	}

	if err := a.checkVersion(profile); err != nil {
		return Result{}, err
	}

	return Result{Params: out, Notes: notes}, nil
}

func (a *Adapter) checkVersion(profile Profile) error {
	if profile.MinAPIVersion == "" {
		return nil
	}

	cfgErr := &ConfigurationError{
		Model:         profile.ModelID,
		ActiveVersion: a.activeVersion,
		MinVersion:    profile.MinAPIVersion,
	}

	if a.activeVersion == "" {
		cfgErr.Reason = "active API version is not configured"
		return cfgErr
	}

	c, err := CompareAPIVersions(a.activeVersion, profile.MinAPIVersion)
	if err != nil {
		cfgErr.Reason = "cannot compare API versions"
		cfgErr.Err = err

		return cfgErr
	}

	if c < 0 {
		cfgErr.Reason = "active API version is older than the model requires"
		return cfgErr
	}

	return nil
}
