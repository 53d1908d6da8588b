package openai

import (
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cast"

	"github.com/germanamz/relnotes/pkg/modeladapter"
)

// buildRequest maps adjusted Params onto a go-openai request. Values are
// converted with cast so YAML and JSON sourced numbers both work. Unknown
// parameter names are a configuration error.
func buildRequest(model string, msgs []modeladapter.Message, params modeladapter.Params) (goopenai.ChatCompletionRequest, error) {
	req := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(msgs)),
	}

	for _, m := range msgs {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	for _, name := range params.Keys() {
		if err := setParam(&req, name, params[name]); err != nil {
			return goopenai.ChatCompletionRequest{}, &modeladapter.ConfigurationError{
				Model:  model,
				Reason: fmt.Sprintf("parameter %s", name),
				Err:    err,
			}
		}
	}

	return req, nil
}

func setParam(req *goopenai.ChatCompletionRequest, name string, v any) error {
	var err error

	switch name {
	case modeladapter.ParamTemperature:
		req.Temperature, err = cast.ToFloat32E(v)
	case modeladapter.ParamTopP:
		req.TopP, err = cast.ToFloat32E(v)
	case modeladapter.ParamPresencePenalty:
		req.PresencePenalty, err = cast.ToFloat32E(v)
	case modeladapter.ParamFrequencyPenalty:
		req.FrequencyPenalty, err = cast.ToFloat32E(v)
	case modeladapter.ParamMaxTokens:
		req.MaxTokens, err = cast.ToIntE(v)
	case modeladapter.ParamMaxCompletionTokens:
		req.MaxCompletionTokens, err = cast.ToIntE(v)
	case modeladapter.ParamN:
		req.N, err = cast.ToIntE(v)
	case modeladapter.ParamLogprobs:
		req.LogProbs, err = cast.ToBoolE(v)
	case modeladapter.ParamSeed:
		var seed int
		if seed, err = cast.ToIntE(v); err == nil {
			req.Seed = &seed
		}
	case modeladapter.ParamStop:
		if s, ok := v.(string); ok {
			req.Stop = []string{s}
		} else {
			req.Stop, err = cast.ToStringSliceE(v)
		}
	case modeladapter.ParamReasoningEffort:
		req.ReasoningEffort, err = cast.ToStringE(v)
	case modeladapter.ParamResponseFormat:
		req.ResponseFormat, err = responseFormat(v)
	default:
		return fmt.Errorf("unknown chat completion parameter")
	}

	return err
}

// responseFormat accepts "json_object" or {"type": "json_object"}.
func responseFormat(v any) (*goopenai.ChatCompletionResponseFormat, error) {
	if m, ok := v.(map[string]any); ok {
		v = m["type"]
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}

	switch t := goopenai.ChatCompletionResponseFormatType(s); t {
	case goopenai.ChatCompletionResponseFormatTypeJSONObject, goopenai.ChatCompletionResponseFormatTypeText:
		return &goopenai.ChatCompletionResponseFormat{Type: t}, nil
	default:
		return nil, fmt.Errorf("unsupported response format %q", s)
	}
}
