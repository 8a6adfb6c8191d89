// Package reasoner defines the narrow interface behind which the language
// model lives. The orchestrator and workers consume structured decisions
// (plans, routing choices) and tool-calling turns; how the model produces
// them is this package's concern alone.
package reasoner

import (
	"context"

	"foreman/internal/state"
)

// ToolDefinition describes a tool the reasoner may invoke during a
// tool-calling turn.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Client is the reasoner capability. Implementations must return typed
// errors (see errors.go) for upstream bad-request conditions so the
// controller can report them without crashing the run.
type Client interface {
	// Complete sends a plain system+user exchange and returns the text.
	Complete(ctx context.Context, system, user string) (string, error)

	// CompleteStructured constrains the response to the given JSON schema
	// and decodes it into out.
	CompleteStructured(ctx context.Context, system, user string, schema map[string]any, out any) error

	// CompleteWithTools sends the transcript with a bound toolset and
	// returns the next ai message, which may carry tool calls.
	CompleteWithTools(ctx context.Context, system string, msgs []state.Message, tools []ToolDefinition) (state.Message, error)
}
