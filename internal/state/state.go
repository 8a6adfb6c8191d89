// Package state defines the shared run state threaded through the
// orchestration loop, together with the per-field merge table applied
// whenever a component returns a partial update.
//
// Every component (planner, dispatcher, workers) returns an Update rather
// than mutating State directly. State.Apply composes updates so that
// step-wise changes never clobber unrelated fields: list fields append,
// scalar fields replace only when a new value is present.
package state

import (
	"encoding/json"
	"fmt"
)

// NextTerminal is the default value of the Next field: no dispatch decision
// has been made, or the current plan item is resolved.
const NextTerminal = "__end__"

// Step is one planned unit of work. Steps are immutable once created; the
// plan is consumed from the front and extended only by planning/replanning.
type Step struct {
	Description string   `json:"description"`
	Substeps    []string `json:"substeps"`
}

// PastStep records one resolved plan item for the replanner's audit trail.
type PastStep struct {
	Step   string `json:"step"`
	Result string `json:"result"`
}

// State is the single mutable record for one run. It is owned by the
// controller goroutine; components receive a copy or a read-only view and
// hand back Updates.
type State struct {
	// Input is the original user goal, immutable after first set.
	Input string `json:"input"`

	// Plan holds the remaining steps; the dispatcher works on Plan[0].
	Plan []Step `json:"plan"`

	// PastSteps only grows. It is the sole evidence fed into replanning.
	PastSteps []PastStep `json:"past_steps"`

	// Response is set exactly once, when the run is finished.
	Response string `json:"response"`

	// Sources is provenance accumulated by retrieval workers.
	Sources []string `json:"sources"`

	// Messages is the full transcript consumed by reasoners.
	Messages []Message `json:"messages"`

	// Next is the last dispatch decision (a worker name or NextTerminal).
	Next string `json:"next"`

	// Instruction is the text forwarded to the chosen worker.
	Instruction string `json:"instruction"`
}

// New returns an empty state for the given goal.
func New(input string) *State {
	return &State{
		Input: input,
		Next:  NextTerminal,
	}
}

// Update is a partial state change. Nil/empty fields leave the
// corresponding State field untouched; list fields are appended.
type Update struct {
	Input       string     `json:"input,omitempty"`
	Plan        []Step     `json:"plan,omitempty"`
	ReplacePlan bool       `json:"replace_plan,omitempty"`
	PastSteps   []PastStep `json:"past_steps,omitempty"`
	Response    string     `json:"response,omitempty"`
	Sources     []string   `json:"sources,omitempty"`
	Messages    []Message  `json:"messages,omitempty"`
	Next        string     `json:"next,omitempty"`
	Instruction string     `json:"instruction,omitempty"`

	// PopPlanHead removes the first plan step before any append. Used by
	// the dispatcher when a step is resolved.
	PopPlanHead bool `json:"pop_plan_head,omitempty"`
}

// IsZero reports whether the update carries no changes.
func (u Update) IsZero() bool {
	return u.Input == "" && len(u.Plan) == 0 && !u.ReplacePlan &&
		len(u.PastSteps) == 0 && u.Response == "" && len(u.Sources) == 0 &&
		len(u.Messages) == 0 && u.Next == "" && u.Instruction == "" &&
		!u.PopPlanHead
}

// Apply merges an update into the state according to the merge table:
//
//	input, response, sources, next, instruction  replace-if-present
//	plan                                         append (or replace on ReplacePlan)
//	pastSteps, messages                          append
func (s *State) Apply(u Update) {
	if u.Input != "" && s.Input == "" {
		s.Input = u.Input
	}
	if u.PopPlanHead && len(s.Plan) > 0 {
		s.Plan = s.Plan[1:]
	}
	if u.ReplacePlan {
		s.Plan = append([]Step(nil), u.Plan...)
	} else if len(u.Plan) > 0 {
		s.Plan = append(s.Plan, u.Plan...)
	}
	if len(u.PastSteps) > 0 {
		s.PastSteps = append(s.PastSteps, u.PastSteps...)
	}
	if u.Response != "" {
		s.Response = u.Response
	}
	if len(u.Sources) > 0 {
		s.Sources = append([]string(nil), u.Sources...)
	}
	if len(u.Messages) > 0 {
		s.Messages = append(s.Messages, u.Messages...)
	}
	if u.Next != "" {
		s.Next = u.Next
	}
	if u.Instruction != "" {
		s.Instruction = u.Instruction
	}
}

// Done reports whether the run has produced a final response. A non-empty
// response wins over a non-empty plan.
func (s *State) Done() bool {
	return s.Response != ""
}

// LastMessage returns the most recent transcript message, or a zero Message
// if the transcript is empty.
func (s *State) LastMessage() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// Marshal serializes the full state for checkpointing.
func (s *State) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal run state: %w", err)
	}
	return data, nil
}

// Unmarshal restores a state from a checkpoint snapshot.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	if s.Next == "" {
		s.Next = NextTerminal
	}
	return &s, nil
}
