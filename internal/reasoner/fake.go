package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"foreman/internal/state"
)

// FakeClient is a scripted Client for tests. Each call pops the next queued
// response; an exhausted queue is an error so tests fail loudly instead of
// looping.
type FakeClient struct {
	mu sync.Mutex

	// Completions feed Complete, in order.
	Completions []string

	// Structured feeds CompleteStructured; each value is marshalled and
	// decoded into the caller's out.
	Structured []any

	// ToolTurns feeds CompleteWithTools, in order.
	ToolTurns []state.Message

	// Err, when set, is returned by every call.
	Err error

	// CompleteCalls, StructuredCalls, and ToolCalls count invocations.
	CompleteCalls   int
	StructuredCalls int
	ToolCallTurns   int
}

var _ Client = (*FakeClient)(nil)

func (f *FakeClient) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CompleteCalls++
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Completions) == 0 {
		return "", fmt.Errorf("fake reasoner: no completion queued (call %d)", f.CompleteCalls)
	}
	next := f.Completions[0]
	f.Completions = f.Completions[1:]
	return next, nil
}

func (f *FakeClient) CompleteStructured(ctx context.Context, system, user string, schema map[string]any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StructuredCalls++
	if f.Err != nil {
		return f.Err
	}
	if len(f.Structured) == 0 {
		return fmt.Errorf("fake reasoner: no structured response queued (call %d)", f.StructuredCalls)
	}
	next := f.Structured[0]
	f.Structured = f.Structured[1:]

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *FakeClient) CompleteWithTools(ctx context.Context, system string, msgs []state.Message, tools []ToolDefinition) (state.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ToolCallTurns++
	if f.Err != nil {
		return state.Message{}, f.Err
	}
	if len(f.ToolTurns) == 0 {
		return state.Message{}, fmt.Errorf("fake reasoner: no tool turn queued (call %d)", f.ToolCallTurns)
	}
	next := f.ToolTurns[0]
	f.ToolTurns = f.ToolTurns[1:]
	return next, nil
}
