package modeladapter

import (
	"context"

	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
)

// Role is the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Completion is the model's reply to a chat request.
type Completion struct {
	Content      string
	FinishReason string
	Model        string
	Usage        usage.TokenCount
}

// Completer sends a conversation with an adjusted parameter set to an LLM and
// returns the assistant's reply. Implementations return *UnsupportedParameterError
// when the provider rejects a named parameter.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, params Params) (Completion, error)
}

// UsageReporter provides token usage information from a completer.
type UsageReporter interface {
	UsageTracker() *usage.Tracker
}
