package reasoner

import (
	"fmt"

	"foreman/internal/state"
)

// Structured decision contracts. These are plain data types validated at
// the boundary; the schemas below are handed to CompleteStructured so the
// model's JSON is constrained to the same shape.

// Plan is the planner's output: 1-7 sequential steps, each with 1-4
// substeps.
type Plan struct {
	Steps []state.Step `json:"steps"`
}

// Validate enforces the planner's shape constraints.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, s := range p.Steps {
		if s.Description == "" {
			return fmt.Errorf("plan step %d has no description", i+1)
		}
	}
	return nil
}

// Replan action discriminators.
const (
	ActionPlan     = "plan"
	ActionResponse = "response"
)

// ReplanAct is the replanner's output: either a revised remaining plan or a
// final response, never both.
type ReplanAct struct {
	Action   string       `json:"action"`
	Steps    []state.Step `json:"steps,omitempty"`
	Response string       `json:"response,omitempty"`
}

// Validate checks the tagged union.
func (r *ReplanAct) Validate() error {
	switch r.Action {
	case ActionPlan:
		if len(r.Steps) == 0 {
			return fmt.Errorf("replan action %q carries no steps", r.Action)
		}
	case ActionResponse:
		if r.Response == "" {
			return fmt.Errorf("replan action %q carries no response", r.Action)
		}
	default:
		return fmt.Errorf("unknown replan action %q", r.Action)
	}
	return nil
}

// Finish is the router sentinel for a resolved plan item.
const Finish = "FINISH"

// Router is the supervisor's dispatch decision: exactly one worker name or
// Finish, plus free-text instructions for the chosen worker.
type Router struct {
	Next        string `json:"next"`
	Instruction string `json:"instruction"`
}

// Validate checks the decision against the allowed worker set.
func (r *Router) Validate(workers []string) error {
	if r.Next == Finish {
		return nil
	}
	for _, w := range workers {
		if r.Next == w {
			return nil
		}
	}
	return fmt.Errorf("router chose unknown worker %q", r.Next)
}

// stepSchema is the JSON schema fragment for one plan step.
func stepSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"description": "A description of the step",
			},
			"substeps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "1-4 substeps that break down how to accomplish this step",
			},
		},
		"required": []string{"description", "substeps"},
	}
}

// PlanSchema returns the response schema for the planner.
func PlanSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"steps": map[string]any{
				"type":  "array",
				"items": stepSchema(),
			},
		},
		"required": []string{"steps"},
	}
}

// ReplanSchema returns the response schema for the replanner.
func ReplanSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{ActionPlan, ActionResponse},
			},
			"steps": map[string]any{
				"type":  "array",
				"items": stepSchema(),
			},
			"response": map[string]any{
				"type":        "string",
				"description": "A response to the user",
			},
		},
		"required": []string{"action"},
	}
}

// RouterSchema returns the response schema for the supervisor, constrained
// to the given worker names plus the Finish sentinel.
func RouterSchema(workers []string) map[string]any {
	options := append(append([]string{}, workers...), Finish)
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next": map[string]any{
				"type": "string",
				"enum": options,
			},
			"instruction": map[string]any{
				"type":        "string",
				"description": "Instructions for the next worker",
			},
		},
		"required": []string{"next", "instruction"},
	}
}
