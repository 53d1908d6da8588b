// Package openai provides a Completer for the Azure OpenAI and OpenAI Chat
// Completions APIs, built on github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
	"github.com/germanamz/relnotes/pkg/restclient"
)

var (
	_ modeladapter.Completer             = (*Adapter)(nil)
	_ modeladapter.UsageReporter         = (*Adapter)(nil)
	_ modeladapter.RateLimitInfoReporter = (*Adapter)(nil)
)

// Kind selects the API flavour.
type Kind string

const (
	KindAzure  Kind = "azure"
	KindOpenAI Kind = "openai"
)

const completionOp = "chat completion"

// ErrUnauthorized marks a configuration error caused by rejected credentials.
var ErrUnauthorized = errors.New("openai: unauthorized, check AZURE_OPENAI_KEY")

// Config configures an Adapter.
type Config struct {
	Kind       Kind          `mapstructure:"kind"`
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Deployment string        `mapstructure:"deployment"`
	Model      string        `mapstructure:"model"`
	APIVersion string        `mapstructure:"api_version"`
	SSLVerify  bool          `mapstructure:"ssl_verify"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Adapter implements modeladapter.Completer for chat completions.
type Adapter struct {
	client *goopenai.Client
	model  string
	usage  usage.Tracker
	now    func() time.Time

	rateLimitInfo atomic.Pointer[modeladapter.RateLimitInfo]
}

// Option configures an Adapter.
type Option func(*goopenai.ClientConfig)

// WithHTTPClient replaces the HTTP client go-openai uses.
func WithHTTPClient(d goopenai.HTTPDoer) Option {
	return func(c *goopenai.ClientConfig) { c.HTTPClient = d }
}

// New creates an Adapter. For KindAzure every model name maps to
// cfg.Deployment and the API version is sent as api-version.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, &modeladapter.ConfigurationError{Model: cfg.Model, Reason: "provider api key is not configured"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute //nolint:mnd // reasoning models can be slow
	}

	var gc goopenai.ClientConfig

	switch cfg.Kind {
	case KindAzure, "":
		if cfg.Endpoint == "" || cfg.Deployment == "" {
			return nil, &modeladapter.ConfigurationError{Model: cfg.Model, Reason: "azure endpoint and deployment are required"}
		}

		gc = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		gc.APIVersion = cfg.APIVersion
		deployment := cfg.Deployment
		gc.AzureModelMapperFunc = func(string) string { return deployment }
	case KindOpenAI:
		gc = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			gc.BaseURL = cfg.Endpoint
		}
	default:
		return nil, &modeladapter.ConfigurationError{Model: cfg.Model, Reason: fmt.Sprintf("unknown provider kind %q", cfg.Kind)}
	}

	gc.HTTPClient = restclient.NewHTTPClient(timeout, cfg.SSLVerify)

	for _, opt := range opts {
		opt(&gc)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = cfg.Deployment
	}

	return &Adapter{
		client: goopenai.NewClientWithConfig(gc),
		model:  model,
		now:    time.Now,
	}, nil
}

// Model returns the model id sent with every request.
func (a *Adapter) Model() string { return a.model }

// UsageTracker returns the adapter's token usage tracker.
func (a *Adapter) UsageTracker() *usage.Tracker { return &a.usage }

// LastRateLimitInfo returns the most recently observed rate limit info, or nil.
func (a *Adapter) LastRateLimitInfo() *modeladapter.RateLimitInfo { return a.rateLimitInfo.Load() }

// Complete sends msgs with params and returns the first choice.
func (a *Adapter) Complete(ctx context.Context, msgs []modeladapter.Message, params modeladapter.Params) (modeladapter.Completion, error) {
	req, err := buildRequest(a.model, msgs, params)
	if err != nil {
		return modeladapter.Completion{}, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)

	header := resp.Header()
	if info := modeladapter.ParseRateLimitHeaders(header, a.now()); info != nil {
		a.rateLimitInfo.Store(info)
	}

	if err != nil {
		return modeladapter.Completion{}, classify(ctx, a.model, req, header, err)
	}

	tc := usage.TokenCount{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if d := resp.Usage.CompletionTokensDetails; d != nil {
		tc.ReasoningTokens = d.ReasoningTokens
	}

	a.usage.Add(tc)

	if len(resp.Choices) == 0 {
		return modeladapter.Completion{}, &modeladapter.TransportError{Op: completionOp, Err: errors.New("empty choices in response")}
	}

	choice := resp.Choices[0]

	return modeladapter.Completion{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage:        tc,
	}, nil
}

// Ping checks that the endpoint is reachable and the credentials are accepted.
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := a.client.ListModels(ctx)
	if err != nil {
		return classify(ctx, a.model, goopenai.ChatCompletionRequest{}, nil, err)
	}

	return nil
}

// classify turns go-openai errors into the modeladapter taxonomy. Context
// errors are returned unchanged so callers never retry a cancelled call.
func classify(ctx context.Context, model string, req goopenai.ChatCompletionRequest, header http.Header, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if param := rejectedLocally(req, err); param != "" {
		return &modeladapter.UnsupportedParameterError{Param: param, Model: model, Message: err.Error()}
	}

	var (
		status  int
		message string
	)

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError

	switch {
	case errors.As(err, &apiErr):
		if apiErr.Param != nil && isUnsupportedCode(apiErr.Code) {
			return &modeladapter.UnsupportedParameterError{Param: *apiErr.Param, Model: model, Message: apiErr.Message}
		}

		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, message = reqErr.HTTPStatusCode, string(reqErr.Body)
	default:
		return &modeladapter.TransportError{Op: completionOp, Err: err}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &modeladapter.ConfigurationError{Model: model, Reason: "provider rejected the credentials", Err: fmt.Errorf("%w: %w", ErrUnauthorized, err)}
	case http.StatusNotFound:
		return &modeladapter.ConfigurationError{Model: model, Reason: "deployment not found", Err: err}
	case http.StatusTooManyRequests:
		return &modeladapter.RateLimitError{RetryAfter: modeladapter.ParseRetryAfter(header.Get("Retry-After")), Body: message}
	default:
		return &modeladapter.TransportError{Op: completionOp, StatusCode: status, Err: err}
	}
}

func isUnsupportedCode(code any) bool {
	s, ok := code.(string)
	return ok && (s == "unsupported_parameter" || s == "unsupported_value")
}

// rejectedLocally maps go-openai's client-side reasoning model checks to the
// parameter that triggered them.
func rejectedLocally(req goopenai.ChatCompletionRequest, err error) string {
	switch {
	case errors.Is(err, goopenai.ErrReasoningModelMaxTokensDeprecated):
		return modeladapter.ParamMaxTokens
	case errors.Is(err, goopenai.ErrReasoningModelLimitationsLogprobs):
		return modeladapter.ParamLogprobs
	case errors.Is(err, goopenai.ErrReasoningModelLimitationsOther):
		switch {
		case req.Temperature > 0 && req.Temperature != 1:
			return modeladapter.ParamTemperature
		case req.TopP > 0 && req.TopP != 1:
			return modeladapter.ParamTopP
		case req.N > 1:
			return modeladapter.ParamN
		case req.PresencePenalty > 0:
			return modeladapter.ParamPresencePenalty
		case req.FrequencyPenalty > 0:
			return modeladapter.ParamFrequencyPenalty
		}
	}

	return ""
}
