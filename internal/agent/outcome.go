// Package agent implements the bounded tool-calling loop and the worker
// adapters that specialize it per capability. Workers never mutate run
// state; they return a tagged Outcome the dispatcher interprets.
package agent

import (
	"context"

	"foreman/internal/state"
)

// Route tells the dispatcher what to do with a worker's outcome.
type Route string

const (
	// RouteContinue keeps control inside the worker loop.
	RouteContinue Route = "continue"

	// RouteSupervisor hands the step back to the supervisor for the next
	// dispatch decision.
	RouteSupervisor Route = "supervisor"

	// RouteTerminate ends the run.
	RouteTerminate Route = "terminate"
)

// Outcome is a worker's result: where control goes next and the partial
// state update to merge.
type Outcome struct {
	Route  Route
	Update state.Update
}

// Worker is one capability-specific executor the dispatcher can route a
// step to.
type Worker interface {
	// Name is the identifier the supervisor's router chooses between.
	Name() string

	// Run executes the current instruction against a read-only view of the
	// run state.
	Run(ctx context.Context, st *state.State) (Outcome, error)
}
