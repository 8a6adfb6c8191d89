package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foreman/internal/agent"
	"foreman/internal/checkpoint"
	"foreman/internal/reasoner"
	"foreman/internal/state"
)

// scriptWorker records invocations and returns canned outcomes.
type scriptWorker struct {
	name     string
	calls    int
	outcomes []agent.Outcome
}

func (w *scriptWorker) Name() string { return w.name }

func (w *scriptWorker) Run(ctx context.Context, st *state.State) (agent.Outcome, error) {
	idx := w.calls
	w.calls++
	if idx >= len(w.outcomes) {
		return agent.Outcome{Route: agent.RouteSupervisor}, nil
	}
	return w.outcomes[idx], nil
}

func echoOutcome(text string) agent.Outcome {
	return agent.Outcome{
		Route:  agent.RouteSupervisor,
		Update: state.Update{Messages: []state.Message{state.AIMessage(text)}},
	}
}

func testCheckpoints(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func planOf(descriptions ...string) map[string]any {
	steps := make([]map[string]any, 0, len(descriptions))
	for _, d := range descriptions {
		steps = append(steps, map[string]any{"description": d, "substeps": []string{"do it"}})
	}
	return map[string]any{"steps": steps}
}

func route(next, instruction string) map[string]any {
	return map[string]any{"next": next, "instruction": instruction}
}

func respond(text string) map[string]any {
	return map[string]any{"action": "response", "response": text}
}

func TestControllerStepsBecomePastStepsInOrder(t *testing.T) {
	const n = 3
	worker := &scriptWorker{name: "shell_worker"}
	var structured []any
	descriptions := make([]string, 0, n)
	for i := 0; i < n; i++ {
		descriptions = append(descriptions, fmt.Sprintf("step %d", i+1))
	}
	structured = append(structured, planOf(descriptions...))
	for i := 0; i < n; i++ {
		worker.outcomes = append(worker.outcomes, echoOutcome(fmt.Sprintf("result %d", i+1)))
		structured = append(structured,
			route("shell_worker", fmt.Sprintf("do step %d", i+1)),
			route("FINISH", ""))
	}
	structured = append(structured, respond("all steps done"))

	client := &reasoner.FakeClient{Structured: structured}
	dispatcher := NewDispatcher(client, []agent.Worker{worker}, zap.NewNop())
	ctrl := NewController(client, dispatcher, testCheckpoints(t), 100, zap.NewNop())

	st, err := ctrl.Run(context.Background(), "multi-step goal")
	require.NoError(t, err)

	assert.Equal(t, "all steps done", st.Response)
	require.Len(t, st.PastSteps, n)
	for i, ps := range st.PastSteps {
		assert.Equal(t, fmt.Sprintf("step %d", i+1), ps.Step)
		assert.Equal(t, fmt.Sprintf("result %d", i+1), ps.Result)
	}
	assert.Empty(t, st.Plan)
	assert.Equal(t, n, worker.calls)
}

func TestControllerResponseWinsOverRemainingPlan(t *testing.T) {
	worker := &scriptWorker{name: "shell_worker", outcomes: []agent.Outcome{echoOutcome("done")}}
	client := &reasoner.FakeClient{Structured: []any{
		planOf("first", "second", "third"),
		route("shell_worker", "do the first step"),
		route("FINISH", ""),
		// Replanner answers early despite two remaining steps.
		respond("that was enough"),
	}}

	dispatcher := NewDispatcher(client, []agent.Worker{worker}, zap.NewNop())
	ctrl := NewController(client, dispatcher, testCheckpoints(t), 100, zap.NewNop())

	st, err := ctrl.Run(context.Background(), "goal")
	require.NoError(t, err)
	assert.Equal(t, "that was enough", st.Response)
	assert.True(t, st.Done())
}

func TestControllerReplanRevisesPlan(t *testing.T) {
	worker := &scriptWorker{name: "shell_worker", outcomes: []agent.Outcome{
		echoOutcome("first done"), echoOutcome("revised done"),
	}}
	client := &reasoner.FakeClient{Structured: []any{
		planOf("only step"),
		route("shell_worker", "go"),
		route("FINISH", ""),
		map[string]any{"action": "plan", "steps": []map[string]any{
			{"description": "revised step", "substeps": []string{"try again"}},
		}},
		route("shell_worker", "go again"),
		route("FINISH", ""),
		respond("complete"),
	}}

	dispatcher := NewDispatcher(client, []agent.Worker{worker}, zap.NewNop())
	ctrl := NewController(client, dispatcher, testCheckpoints(t), 100, zap.NewNop())

	st, err := ctrl.Run(context.Background(), "goal")
	require.NoError(t, err)
	require.Len(t, st.PastSteps, 2)
	assert.Equal(t, "revised step", st.PastSteps[1].Step)
}

func TestControllerRecursionLimit(t *testing.T) {
	// The replanner keeps planning and never responds.
	var structured []any
	structured = append(structured, planOf("spin"))
	for i := 0; i < 50; i++ {
		structured = append(structured,
			route("FINISH", ""),
			map[string]any{"action": "plan", "steps": []map[string]any{
				{"description": "spin", "substeps": []string{"again"}},
			}})
	}

	client := &reasoner.FakeClient{Structured: structured}
	worker := &scriptWorker{name: "shell_worker"}
	dispatcher := NewDispatcher(client, []agent.Worker{worker}, zap.NewNop())
	ctrl := NewController(client, dispatcher, testCheckpoints(t), 6, zap.NewNop())

	_, err := ctrl.Run(context.Background(), "goal")
	var limitErr *RecursionLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 6, limitErr.Cycles)
}

func TestControllerSuspendAndResume(t *testing.T) {
	checkpoints := testCheckpoints(t)
	worker := &scriptWorker{name: "shell_worker", outcomes: []agent.Outcome{echoOutcome("deployed")}}

	client := &reasoner.FakeClient{Structured: []any{
		planOf("deploy the service"),
		route("ask_user", "Which environment should I deploy to?"),
	}}
	dispatcher := NewDispatcher(client, []agent.Worker{worker}, zap.NewNop())
	ctrl := NewController(client, dispatcher, checkpoints, 100, zap.NewNop())

	_, err := ctrl.Run(context.Background(), "deploy")
	var suspension *Suspension
	require.ErrorAs(t, err, &suspension)
	assert.Equal(t, "Which environment should I deploy to?", suspension.Prompt)

	// The suspension is durable.
	snap, err := checkpoints.Load(suspension.RunID)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusSuspended, snap.Status)
	assert.Equal(t, suspension.Prompt, snap.Prompt)

	// Resume with the reply; a fresh controller simulates a process restart.
	client2 := &reasoner.FakeClient{Structured: []any{
		route("shell_worker", "deploy to staging"),
		route("FINISH", ""),
		respond("deployed to staging"),
	}}
	dispatcher2 := NewDispatcher(client2, []agent.Worker{worker}, zap.NewNop())
	ctrl2 := NewController(client2, dispatcher2, checkpoints, 100, zap.NewNop())

	st, err := ctrl2.Resume(context.Background(), suspension.RunID, "staging")
	require.NoError(t, err)
	assert.Equal(t, "deployed to staging", st.Response)

	// The human reply entered the transcript before dispatch continued.
	var sawReply bool
	for _, m := range st.Messages {
		if m.Role == state.RoleHuman && m.Content == "staging" {
			sawReply = true
		}
	}
	assert.True(t, sawReply)

	snap, err = checkpoints.Load(suspension.RunID)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusDone, snap.Status)
}

func TestResumeRejectsNonSuspendedRun(t *testing.T) {
	checkpoints := testCheckpoints(t)
	require.NoError(t, checkpoints.Save("run-1", state.New("goal"), checkpoint.StatusDone, ""))

	ctrl := NewController(&reasoner.FakeClient{}, nil, checkpoints, 100, zap.NewNop())
	_, err := ctrl.Resume(context.Background(), "run-1", "hello")
	assert.Error(t, err)

	_, err = ctrl.Resume(context.Background(), "no-such-run", "hello")
	assert.True(t, errors.Is(err, checkpoint.ErrNotFound))
}

func TestDispatcherRejectsUnknownWorker(t *testing.T) {
	client := &reasoner.FakeClient{Structured: []any{
		route("imaginary_worker", "do something"),
	}}
	dispatcher := NewDispatcher(client, []agent.Worker{&scriptWorker{name: "shell_worker"}}, zap.NewNop())

	st := state.New("goal")
	st.Apply(state.Update{Plan: []state.Step{{Description: "step"}}})
	err := dispatcher.Dispatch(context.Background(), st)
	assert.Error(t, err)
}

func TestDispatcherFinishRecordsLastMessage(t *testing.T) {
	worker := &scriptWorker{name: "shell_worker", outcomes: []agent.Outcome{echoOutcome("the result")}}
	client := &reasoner.FakeClient{Structured: []any{
		route("shell_worker", "go"),
		route("FINISH", ""),
	}}
	dispatcher := NewDispatcher(client, []agent.Worker{worker}, zap.NewNop())

	st := state.New("goal")
	st.Apply(state.Update{Plan: []state.Step{{Description: "the step"}}})
	require.NoError(t, dispatcher.Dispatch(context.Background(), st))

	require.Len(t, st.PastSteps, 1)
	assert.Equal(t, "the step", st.PastSteps[0].Step)
	assert.Equal(t, "the result", st.PastSteps[0].Result)
	assert.Empty(t, st.Plan)
	assert.Equal(t, state.NextTerminal, st.Next)
}
