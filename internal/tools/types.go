// Package tools defines the tool invocation boundary exposed to the
// reasoner. Each tool has a name, a JSON schema of named parameters, and an
// execute function. Tool implementations report failures as error values;
// the worker loop converts them into textual error payloads appended to the
// transcript, so a failing tool never aborts a run.
package tools

import (
	"context"
)

// Capability groups tools by the worker that binds them.
type Capability string

const (
	CapabilityFS      Capability = "fs"
	CapabilityShell   Capability = "shell"
	CapabilityBrowser Capability = "browser"
	CapabilityGeneral Capability = "general"
)

// Property describes a single parameter for the tool's JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema defines the named parameters a tool accepts.
type Schema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// JSONSchema renders the schema as a plain JSON-schema object map, the form
// reasoner clients put on the wire.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}

// ExecuteFunc runs a tool. The returned string is the payload appended to
// the transcript; a non-nil error is converted to a textual error payload
// at the loop boundary.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is one entry in the registry.
type Tool struct {
	Name        string
	Description string
	Capability  Capability
	Execute     ExecuteFunc
	Schema      Schema
}

// Validate checks that the tool definition is usable.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Result wraps one tool execution.
type Result struct {
	ToolName   string
	Output     string
	Err        error
	DurationMs int64
}

// Payload returns the text appended to the transcript for this result.
// Errors become readable payloads rather than propagating upward.
func (r *Result) Payload() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Output
}
