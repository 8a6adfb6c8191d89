package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foreman/internal/checkpoint"
	"foreman/internal/reasoner"
	"foreman/internal/state"
)

// Transition names for observers of controller progress.
const (
	TransitionPlan     = "plan"
	TransitionDelegate = "delegate"
	TransitionReplan   = "replan"
	TransitionDone     = "done"
)

// ProgressFunc observes controller transitions. Optional.
type ProgressFunc func(transition string, st *state.State)

// Controller runs the plan/delegate/replan cycle for one goal until a final
// response is produced, the user must be asked for input, or the cycle
// bound is exceeded.
type Controller struct {
	client      reasoner.Client
	dispatcher  *Dispatcher
	checkpoints *checkpoint.Store
	maxCycles   int
	progress    ProgressFunc
	log         *zap.Logger
}

// NewController builds a controller. maxCycles <= 0 falls back to 100.
func NewController(client reasoner.Client, dispatcher *Dispatcher, checkpoints *checkpoint.Store, maxCycles int, log *zap.Logger) *Controller {
	if maxCycles <= 0 {
		maxCycles = 100
	}
	return &Controller{
		client:      client,
		dispatcher:  dispatcher,
		checkpoints: checkpoints,
		maxCycles:   maxCycles,
		log:         log,
	}
}

// OnProgress registers a transition observer.
func (c *Controller) OnProgress(fn ProgressFunc) { c.progress = fn }

func (c *Controller) notify(transition string, st *state.State) {
	if c.progress != nil {
		c.progress(transition, st)
	}
}

// Run executes a fresh goal. On suspension the returned error wraps
// *Suspension; the caller collects the user's reply and calls Resume with
// the same run id.
func (c *Controller) Run(ctx context.Context, input string) (*state.State, error) {
	runID := uuid.NewString()
	st := state.New(input)
	c.log.Info("run started", zap.String("run_id", runID))

	if err := c.plan(ctx, st); err != nil {
		return st, err
	}
	c.notify(TransitionPlan, st)
	if err := c.save(runID, st, checkpoint.StatusRunning, ""); err != nil {
		return st, err
	}

	return c.drive(ctx, runID, st)
}

// Resume continues a suspended run with the user's reply.
func (c *Controller) Resume(ctx context.Context, runID, reply string) (*state.State, error) {
	snap, err := c.checkpoints.Load(runID)
	if err != nil {
		return nil, err
	}
	if snap.Status != checkpoint.StatusSuspended {
		return nil, fmt.Errorf("run %s is not suspended (status %s)", runID, snap.Status)
	}

	st := snap.State
	st.Apply(state.Update{Messages: []state.Message{state.HumanMessage(reply)}})
	c.log.Info("run resumed", zap.String("run_id", runID))

	if err := c.save(runID, st, checkpoint.StatusRunning, ""); err != nil {
		return st, err
	}
	return c.drive(ctx, runID, st)
}

// drive is the delegate/replan cycle shared by Run and Resume.
func (c *Controller) drive(ctx context.Context, runID string, st *state.State) (*state.State, error) {
	for cycle := 0; ; cycle++ {
		if cycle >= c.maxCycles {
			err := &RecursionLimitError{RunID: runID, Cycles: c.maxCycles}
			c.log.Error("run aborted", zap.Error(err))
			return st, err
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}

		// A response always wins, even if steps remain planned.
		if st.Done() {
			c.notify(TransitionDone, st)
			if err := c.save(runID, st, checkpoint.StatusDone, ""); err != nil {
				return st, err
			}
			c.log.Info("run finished", zap.String("run_id", runID), zap.Int("cycles", cycle))
			return st, nil
		}

		if len(st.Plan) > 0 {
			err := c.dispatcher.Dispatch(ctx, st)
			var suspend *suspendRequest
			if errors.As(err, &suspend) {
				if saveErr := c.save(runID, st, checkpoint.StatusSuspended, suspend.prompt); saveErr != nil {
					return st, saveErr
				}
				c.log.Info("run suspended",
					zap.String("run_id", runID), zap.String("prompt", suspend.prompt))
				return st, &Suspension{RunID: runID, Prompt: suspend.prompt}
			}
			if err != nil {
				return st, err
			}
			c.notify(TransitionDelegate, st)
			if err := c.save(runID, st, checkpoint.StatusRunning, ""); err != nil {
				return st, err
			}
			continue
		}

		if err := c.replan(ctx, st); err != nil {
			return st, err
		}
		c.notify(TransitionReplan, st)
		if err := c.save(runID, st, checkpoint.StatusRunning, ""); err != nil {
			return st, err
		}
	}
}

// plan asks the reasoner for the initial hierarchical plan.
func (c *Controller) plan(ctx context.Context, st *state.State) error {
	var plan reasoner.Plan
	err := c.client.CompleteStructured(ctx,
		plannerSystemPrompt, plannerUserPrompt(st.Input),
		reasoner.PlanSchema(), &plan)
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("planning: %w", err)
	}

	st.Apply(state.Update{Plan: plan.Steps, ReplacePlan: true})
	c.log.Info("plan created", zap.Int("steps", len(plan.Steps)))
	return nil
}

// replan revises the remaining plan or produces the final response.
func (c *Controller) replan(ctx context.Context, st *state.State) error {
	var act reasoner.ReplanAct
	err := c.client.CompleteStructured(ctx,
		replannerSystemPrompt, replannerUserPrompt(st),
		reasoner.ReplanSchema(), &act)
	if err != nil {
		return fmt.Errorf("replanning: %w", err)
	}
	if err := act.Validate(); err != nil {
		return fmt.Errorf("replanning: %w", err)
	}

	switch act.Action {
	case reasoner.ActionResponse:
		st.Apply(state.Update{Response: act.Response})
		c.log.Info("replanner produced final response")
	case reasoner.ActionPlan:
		st.Apply(state.Update{Plan: act.Steps, ReplacePlan: true})
		c.log.Info("plan revised", zap.Int("steps", len(act.Steps)))
	}
	return nil
}

// save checkpoints the run. A nil store disables persistence (tests).
func (c *Controller) save(runID string, st *state.State, status, prompt string) error {
	if c.checkpoints == nil {
		return nil
	}
	if err := c.checkpoints.Save(runID, st, status, prompt); err != nil {
		return fmt.Errorf("checkpoint run %s: %w", runID, err)
	}
	return nil
}
