// Package orchestrator drives one run end to end: the plan/replan
// controller on the outside, the supervisor dispatcher resolving each plan
// step on the inside.
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"foreman/internal/agent"
	"foreman/internal/reasoner"
	"foreman/internal/state"
)

// AskUser is the pseudo-worker the router may choose to request human
// input. It suspends the run instead of invoking an adapter.
const AskUser = "ask_user"

// Dispatcher resolves a single plan step by repeatedly asking the
// supervisor which worker acts next, until the supervisor declares the step
// finished.
type Dispatcher struct {
	client  reasoner.Client
	workers map[string]agent.Worker
	names   []string // routable names in registration order, AskUser last
	log     *zap.Logger
}

// NewDispatcher builds a dispatcher over the given worker adapters.
func NewDispatcher(client reasoner.Client, workers []agent.Worker, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		workers: make(map[string]agent.Worker, len(workers)),
		log:     log,
	}
	for _, w := range workers {
		d.workers[w.Name()] = w
		d.names = append(d.names, w.Name())
	}
	d.names = append(d.names, AskUser)
	return d
}

// suspendRequest signals suspension out of the dispatch loop; the
// controller converts it into a durable Suspension.
type suspendRequest struct {
	prompt string
}

func (s *suspendRequest) Error() string { return "run suspended: " + s.prompt }

// Dispatch resolves the step at the head of st.Plan, mutating st through
// Update application after each worker outcome. It returns when the
// supervisor declares FINISH (the step is popped and recorded) or when a
// worker terminates the run. A suspendRequest error means the run must be
// checkpointed and handed back to the user.
func (d *Dispatcher) Dispatch(ctx context.Context, st *state.State) error {
	if len(st.Plan) == 0 {
		return fmt.Errorf("dispatch called with an empty plan")
	}
	step := st.Plan[0]

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		decision, err := d.route(ctx, step)
		if err != nil {
			return err
		}

		if decision.Next == reasoner.Finish {
			st.Apply(state.Update{
				PopPlanHead: true,
				PastSteps: []state.PastStep{{
					Step:   step.Description,
					Result: st.LastMessage().Content,
				}},
				Next: state.NextTerminal,
			})
			d.log.Info("step resolved", zap.String("step", step.Description))
			return nil
		}

		if decision.Next == AskUser {
			return &suspendRequest{prompt: decision.Instruction}
		}

		st.Apply(state.Update{Next: decision.Next, Instruction: decision.Instruction})
		d.log.Info("dispatching to worker",
			zap.String("worker", decision.Next),
			zap.String("step", step.Description))

		worker := d.workers[decision.Next]
		outcome, err := worker.Run(ctx, st)
		st.Apply(outcome.Update)
		if err != nil {
			return fmt.Errorf("worker %s: %w", decision.Next, err)
		}
		if outcome.Route == agent.RouteTerminate {
			return fmt.Errorf("worker %s terminated the run", decision.Next)
		}
		// RouteSupervisor: loop for the next decision on the same step.
	}
}

// route asks the supervisor for the next dispatch decision on a step.
func (d *Dispatcher) route(ctx context.Context, step state.Step) (*reasoner.Router, error) {
	var decision reasoner.Router
	err := d.client.CompleteStructured(ctx,
		supervisorSystemPrompt(d.names),
		supervisorUserPrompt(d.names, step),
		reasoner.RouterSchema(d.names),
		&decision)
	if err != nil {
		return nil, fmt.Errorf("supervisor routing: %w", err)
	}
	if err := decision.Validate(d.names); err != nil {
		return nil, fmt.Errorf("supervisor routing: %w", err)
	}
	return &decision, nil
}
