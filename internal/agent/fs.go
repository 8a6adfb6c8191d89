package agent

import (
	"context"

	"go.uber.org/zap"

	"foreman/internal/reasoner"
	"foreman/internal/state"
	"foreman/internal/tools"
	"foreman/internal/tools/fsops"
)

// routeStagedWrite is an internal route: the loop saw a write request with
// no content and must enter the content-synthesis step.
const routeStagedWrite Route = "staged_write"

// FSWorker specializes the loop for file operations. Two results cut the
// loop short: a read-family payload goes straight back to the supervisor
// (the content itself is the step's result), and a contentless write enters
// a second loop that synthesizes the content before writing.
type FSWorker struct {
	client       reasoner.Client
	registry     *tools.Registry
	maxToolCalls int
	log          *zap.Logger
}

// NewFSWorker builds the filesystem worker.
func NewFSWorker(client reasoner.Client, registry *tools.Registry, maxToolCalls int, log *zap.Logger) *FSWorker {
	return &FSWorker{
		client:       client,
		registry:     registry,
		maxToolCalls: maxToolCalls,
		log:          log,
	}
}

func (w *FSWorker) Name() string { return WorkerFS }

func (w *FSWorker) Run(ctx context.Context, st *state.State) (Outcome, error) {
	instruction := state.HumanMessage(st.Instruction)
	transcript := append(append([]state.Message(nil), st.Messages...), instruction)

	loop := Loop{
		Client:       w.client,
		Registry:     w.registry,
		Tools:        capabilityNames(w.registry, tools.CapabilityFS),
		System:       fsSystemPrompt,
		MaxToolCalls: w.maxToolCalls,
		Log:          w.log,
		Interceptor: func(call state.ToolCall, payload string) (Route, bool) {
			switch call.Name {
			case fsops.NameFileRead, fsops.NameFileReadImage:
				return RouteSupervisor, true
			case fsops.NameFileWrite:
				if payload == "" {
					return routeStagedWrite, true
				}
			}
			return RouteContinue, false
		},
	}

	produced, route, err := loop.Run(ctx, transcript)
	update := state.Update{Messages: append([]state.Message{instruction}, produced...)}
	if err != nil {
		return Outcome{Route: route, Update: update}, err
	}

	if route == routeStagedWrite {
		staged, err := w.writeFileContent(ctx, append(transcript, produced...), st.Instruction)
		update.Messages = append(update.Messages, staged...)
		if err != nil {
			return Outcome{Route: RouteTerminate, Update: update}, err
		}
		return Outcome{Route: RouteSupervisor, Update: update}, nil
	}
	return Outcome{Route: route, Update: update}, nil
}

// writeFileContent is the staged step: a loop bound only to the write tool,
// prompted to synthesize the missing content from the conversation so far.
func (w *FSWorker) writeFileContent(ctx context.Context, transcript []state.Message, instruction string) ([]state.Message, error) {
	w.log.Info("entering staged content-synthesis step")
	loop := Loop{
		Client:       w.client,
		Registry:     w.registry,
		Tools:        []string{fsops.NameFileWrite},
		System:       fileWritePrompt(instruction),
		MaxToolCalls: w.maxToolCalls,
		Log:          w.log,
	}
	produced, _, err := loop.Run(ctx, transcript)
	if err != nil {
		return produced, err
	}

	// Only the step's conclusion is forwarded to the parent transcript.
	if len(produced) > 0 {
		return produced[len(produced)-1:], nil
	}
	return nil, nil
}
