package modeladapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/relnotes/pkg/modeladapter"
)

type recordingSend struct {
	calls   []modeladapter.Params
	results []error
}

func (r *recordingSend) send(_ context.Context, p modeladapter.Params) (string, error) {
	r.calls = append(r.calls, p)

	i := len(r.calls) - 1
	if i < len(r.results) && r.results[i] != nil {
		return "", r.results[i]
	}

	return "ok", nil
}

func TestExecute_SuccessFirstTry(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	rs := &recordingSend{}

	resp, notes, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(),
		modeladapter.Params{"temperature": 0.7, "max_tokens": 500, "top_p": 0.9})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	require.Len(t, rs.calls, 1)
	assert.Equal(t, modeladapter.Params{"temperature": 1.0, "max_completion_tokens": 500}, rs.calls[0])
	assert.Len(t, notes, 3)
}

func TestExecute_RetriesOnceOnUnknownRejectedParam(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	rs := &recordingSend{results: []error{
		&modeladapter.UnsupportedParameterError{Param: "presence_penalty", Model: "o4-mini"},
	}}
	requested := modeladapter.Params{"temperature": 1.0, "max_completion_tokens": 500}

	resp, notes, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(), requested)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	require.Len(t, rs.calls, 2)
	assert.Equal(t, rs.calls[0], rs.calls[1], "derived profile removes nothing that was sent")

	require.Len(t, notes, 1)
	assert.Equal(t, modeladapter.ActionRetry, notes[0].Action)
	assert.Equal(t, "presence_penalty", notes[0].Param)
}

func TestExecute_RetryDropsRejectedParam(t *testing.T) {
	a := modeladapter.NewAdapter("2024-06-01")
	p := modeladapter.Profile{ModelID: "gpt-4o", TokenParam: modeladapter.ParamMaxTokens}
	rs := &recordingSend{results: []error{&modeladapter.UnsupportedParameterError{Param: "seed"}}}

	_, _, err := modeladapter.Execute(context.Background(), a, rs.send, p,
		modeladapter.Params{"seed": 3, "max_tokens": 10})
	require.NoError(t, err)
	require.Len(t, rs.calls, 2)
	assert.Equal(t, modeladapter.Params{"max_tokens": 10}, rs.calls[1])
}

func TestExecute_SecondRejectionSurfaced(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	second := &modeladapter.UnsupportedParameterError{Param: "stop"}
	rs := &recordingSend{results: []error{
		&modeladapter.UnsupportedParameterError{Param: "seed"},
		second,
	}}

	_, notes, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(),
		modeladapter.Params{"seed": 1, "stop": []string{"\n"}})
	require.ErrorIs(t, err, second)
	assert.Len(t, rs.calls, 2)
	assert.Len(t, notes, 2, "retry note and removal of seed")
}

func TestExecute_KnownUnsupportedNotRetried(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	rs := &recordingSend{results: []error{&modeladapter.UnsupportedParameterError{Param: "top_p"}}}

	_, _, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(), modeladapter.Params{})
	require.Error(t, err)
	assert.Len(t, rs.calls, 1)
}

func TestExecute_ConfigurationErrorFromSendNotRetried(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	rs := &recordingSend{results: []error{&modeladapter.ConfigurationError{Reason: "bad key"}}}

	_, _, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(), modeladapter.Params{})

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, rs.calls, 1)
}

func TestExecute_VersionMismatchNeverSends(t *testing.T) {
	a := modeladapter.NewAdapter("2024-06-01")
	rs := &recordingSend{}

	_, _, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(), modeladapter.Params{})

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, rs.calls)
}

func TestExecute_CancelledNotRetried(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	send := func(_ context.Context, _ modeladapter.Params) (string, error) {
		calls++
		cancel()

		return "", errors.Join(context.Canceled, &modeladapter.UnsupportedParameterError{Param: "seed"})
	}

	_, _, err := modeladapter.Execute(ctx, a, send, o4MiniProfile(), modeladapter.Params{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecute_TransportErrorNotRetried(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	rs := &recordingSend{results: []error{&modeladapter.TransportError{Op: "chat", StatusCode: 500, Err: errors.New("boom")}}}

	_, _, err := modeladapter.Execute(context.Background(), a, rs.send, o4MiniProfile(), modeladapter.Params{})

	var te *modeladapter.TransportError
	require.ErrorAs(t, err, &te)
	assert.Len(t, rs.calls, 1)
}

func TestExecute_TokenKeyRejectionSwitchesName(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	p := modeladapter.Profile{ModelID: "new-reasoner", TokenParam: modeladapter.ParamMaxTokens}
	rs := &recordingSend{results: []error{&modeladapter.UnsupportedParameterError{Param: "max_tokens"}}}

	_, _, err := modeladapter.Execute(context.Background(), a, rs.send, p,
		modeladapter.Params{"max_tokens": 1000, "temperature": 0.2})
	require.NoError(t, err)
	require.Len(t, rs.calls, 2)
	assert.Equal(t, modeladapter.Params{"max_completion_tokens": 1000, "temperature": 1.0}, rs.calls[1])
}

func TestExecute_CompletionTokensRejectionSwitchesBack(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	p := modeladapter.Profile{ModelID: "o-series-preview", TokenParam: modeladapter.ParamMaxCompletionTokens}
	rs := &recordingSend{results: []error{&modeladapter.UnsupportedParameterError{Param: "max_completion_tokens"}}}

	_, notes, err := modeladapter.Execute(context.Background(), a, rs.send, p,
		modeladapter.Params{"max_completion_tokens": 800, "temperature": 0.2})
	require.NoError(t, err)
	require.Len(t, rs.calls, 2)
	assert.Equal(t, modeladapter.Params{"max_tokens": 800, "temperature": 1.0}, rs.calls[1])
	assert.NotEmpty(t, notes)
}
