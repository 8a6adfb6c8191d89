package agent

import (
	"context"

	"go.uber.org/zap"

	"foreman/internal/reasoner"
	"foreman/internal/state"
	"foreman/internal/tools"
)

// Worker names the supervisor routes between.
const (
	WorkerFS      = "fs_worker"
	WorkerShell   = "shell_worker"
	WorkerBrowser = "browser_worker"
	WorkerKB      = "kb_worker"
)

// loopWorker is the plain adapter: instruction in, bounded loop, messages
// out. Shell and browser workers are direct instantiations.
type loopWorker struct {
	name string
	loop Loop
}

// NewShellWorker builds the shell worker over the registry's shell toolset.
func NewShellWorker(client reasoner.Client, registry *tools.Registry, maxToolCalls int, log *zap.Logger) Worker {
	return &loopWorker{
		name: WorkerShell,
		loop: Loop{
			Client:       client,
			Registry:     registry,
			Tools:        capabilityNames(registry, tools.CapabilityShell),
			System:       shellSystemPrompt,
			MaxToolCalls: maxToolCalls,
			Log:          log,
		},
	}
}

// NewBrowserWorker builds the browser worker over the browser toolset.
func NewBrowserWorker(client reasoner.Client, registry *tools.Registry, maxToolCalls int, log *zap.Logger) Worker {
	return &loopWorker{
		name: WorkerBrowser,
		loop: Loop{
			Client:       client,
			Registry:     registry,
			Tools:        capabilityNames(registry, tools.CapabilityBrowser),
			System:       browserSystemPrompt,
			MaxToolCalls: maxToolCalls,
			Log:          log,
		},
	}
}

func (w *loopWorker) Name() string { return w.name }

func (w *loopWorker) Run(ctx context.Context, st *state.State) (Outcome, error) {
	instruction := state.HumanMessage(st.Instruction)
	transcript := append(append([]state.Message(nil), st.Messages...), instruction)

	produced, route, err := w.loop.Run(ctx, transcript)
	update := state.Update{Messages: append([]state.Message{instruction}, produced...)}
	if err != nil {
		return Outcome{Route: route, Update: update}, err
	}
	return Outcome{Route: route, Update: update}, nil
}

// capabilityNames lists the registry's tool names for one capability.
func capabilityNames(registry *tools.Registry, cap tools.Capability) []string {
	bound := registry.ByCapability(cap)
	names := make([]string, 0, len(bound))
	for _, t := range bound {
		names = append(names, t.Name)
	}
	return names
}
