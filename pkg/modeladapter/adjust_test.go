package modeladapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/relnotes/pkg/modeladapter"
)

func ptr(f float64) *float64 { return &f }

func o4MiniProfile() modeladapter.Profile {
	return modeladapter.Profile{
		ModelID:          "o4-mini",
		MinAPIVersion:    "2024-12-01-preview",
		FixedTemperature: ptr(1.0),
		TokenParam:       modeladapter.ParamMaxCompletionTokens,
		Unsupported:      []string{modeladapter.ParamTopP},
	}
}

func TestAdjust_ReasoningModel(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")
	requested := modeladapter.Params{"temperature": 0.7, "max_tokens": 500, "top_p": 0.9}

	res, err := a.Adjust(o4MiniProfile(), requested)
	require.NoError(t, err)

	assert.Equal(t, modeladapter.Params{"temperature": 1.0, "max_completion_tokens": 500}, res.Params)
	require.Len(t, res.Notes, 3)
	assert.Equal(t, modeladapter.ActionSetTemperature, res.Notes[0].Action)
	assert.Equal(t, modeladapter.ActionRename, res.Notes[1].Action)
	assert.Equal(t, "max_tokens", res.Notes[1].Param)
	assert.Equal(t, modeladapter.ActionRemove, res.Notes[2].Action)
	assert.Equal(t, "top_p", res.Notes[2].Param)
}

func TestAdjust_DoesNotModifyInput(t *testing.T) {
	a := modeladapter.NewAdapter("2025-01-01")
	requested := modeladapter.Params{"temperature": 0.7, "max_tokens": 500, "top_p": 0.9}

	_, err := a.Adjust(o4MiniProfile(), requested)
	require.NoError(t, err)
	assert.Equal(t, modeladapter.Params{"temperature": 0.7, "max_tokens": 500, "top_p": 0.9}, requested)
}

func TestAdjust_OldVersionIsConfigurationError(t *testing.T) {
	a := modeladapter.NewAdapter("2024-06-01")

	_, err := a.Adjust(o4MiniProfile(), modeladapter.Params{"temperature": 0.7})

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "o4-mini", cfgErr.Model)
	assert.Equal(t, "2024-06-01", cfgErr.ActiveVersion)
	assert.Equal(t, "2024-12-01-preview", cfgErr.MinVersion)
	assert.Contains(t, err.Error(), "older")
}

func TestAdjust_MissingActiveVersion(t *testing.T) {
	a := modeladapter.NewAdapter("")

	_, err := a.Adjust(o4MiniProfile(), modeladapter.Params{})

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAdjust_UnparseableVersion(t *testing.T) {
	a := modeladapter.NewAdapter("latest")

	_, err := a.Adjust(o4MiniProfile(), modeladapter.Params{})

	var cfgErr *modeladapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Error(t, cfgErr.Unwrap())
}

func TestAdjust_NoMinVersionSkipsCheck(t *testing.T) {
	a := modeladapter.NewAdapter("")
	p := modeladapter.Profile{ModelID: "custom", TokenParam: modeladapter.ParamMaxTokens}

	res, err := a.Adjust(p, modeladapter.Params{"max_tokens": 10})
	require.NoError(t, err)
	assert.Empty(t, res.Notes)
}

func TestAdjust_TemperatureAlreadyFixed(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")

	res, err := a.Adjust(o4MiniProfile(), modeladapter.Params{"temperature": 1})
	require.NoError(t, err)
	assert.Empty(t, res.Notes, "integer 1 equals the fixed 1.0")
	assert.Equal(t, 1, res.Params["temperature"])
}

func TestAdjust_TemperatureNotAddedWhenAbsent(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")

	res, err := a.Adjust(o4MiniProfile(), modeladapter.Params{"max_completion_tokens": 100})
	require.NoError(t, err)
	assert.False(t, res.Params.Has("temperature"))
}

func TestAdjust_BothTokenKeysKeepsCorrectOne(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")

	res, err := a.Adjust(o4MiniProfile(), modeladapter.Params{"max_tokens": 100, "max_completion_tokens": 700})
	require.NoError(t, err)
	assert.Equal(t, modeladapter.Params{"max_completion_tokens": 700}, res.Params)
	require.Len(t, res.Notes, 1)
	assert.Equal(t, modeladapter.ActionRemove, res.Notes[0].Action)
}

func TestAdjust_RenameToMaxTokens(t *testing.T) {
	a := modeladapter.NewAdapter("2024-06-01")
	p := modeladapter.Profile{ModelID: "gpt-4o", MinAPIVersion: "2024-06-01", TokenParam: modeladapter.ParamMaxTokens}

	res, err := a.Adjust(p, modeladapter.Params{"max_completion_tokens": 256, "temperature": 0.2})
	require.NoError(t, err)
	assert.Equal(t, modeladapter.Params{"max_tokens": 256, "temperature": 0.2}, res.Params)
}

func TestAdjust_EmptyRequest(t *testing.T) {
	a := modeladapter.NewAdapter("2024-12-01-preview")

	res, err := a.Adjust(o4MiniProfile(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Params)
	assert.NotNil(t, res.Params)
}

// --- properties ---

func TestAdjust_Properties(t *testing.T) {
	a := modeladapter.NewAdapter("2025-04-01-preview")

	profiles := []modeladapter.Profile{
		o4MiniProfile(),
		{ModelID: "gpt-4o", TokenParam: modeladapter.ParamMaxTokens, Unsupported: []string{"logprobs"}},
		{ModelID: "o1", FixedTemperature: ptr(1), TokenParam: modeladapter.ParamMaxCompletionTokens,
			Unsupported: []string{"presence_penalty", "frequency_penalty"}},
	}
	requests := []modeladapter.Params{
		{},
		{"temperature": 0.3},
		{"max_tokens": 42, "top_p": 0.5, "logprobs": true},
		{"max_completion_tokens": 42, "presence_penalty": 0.1, "frequency_penalty": 0.2, "seed": 7},
		{"temperature": "0.9", "max_tokens": 1, "max_completion_tokens": 2},
	}

	for _, p := range profiles {
		for _, req := range requests {
			res, err := a.Adjust(p, req)
			require.NoError(t, err)

			if p.FixedTemperature != nil && req.Has("temperature") {
				assert.Equal(t, *p.FixedTemperature, toFloat(res.Params["temperature"]), p.ModelID)
			}

			for _, u := range p.Unsupported {
				assert.False(t, res.Params.Has(u), "%s must not carry %s", p.ModelID, u)
			}

			wrong := modeladapter.ParamMaxTokens
			if p.TokenParam == modeladapter.ParamMaxTokens {
				wrong = modeladapter.ParamMaxCompletionTokens
			}

			assert.False(t, res.Params.Has(wrong))

			if req.Has(wrong) && !req.Has(p.TokenParam) {
				assert.Equal(t, req[wrong], res.Params[p.TokenParam])
			}

			again, err := a.Adjust(p, res.Params)
			require.NoError(t, err)
			assert.Equal(t, res.Params, again.Params, "adjust must be idempotent")
			assert.Empty(t, again.Notes)
		}
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return -1
	}
}

func TestNote_String(t *testing.T) {
	n := modeladapter.Note{Action: modeladapter.ActionRemove, Param: "top_p", Reason: "unsupported"}
	assert.Equal(t, "remove top_p (unsupported)", n.String())

	n = modeladapter.Note{Action: modeladapter.ActionRename, Param: "max_tokens", To: "max_completion_tokens", Reason: "r"}
	assert.Equal(t, "max_tokens -> max_completion_tokens (r)", n.String())
}
