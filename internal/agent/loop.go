package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"foreman/internal/reasoner"
	"foreman/internal/state"
	"foreman/internal/tools"
)

// Interceptor inspects one executed tool call after its result message has
// been appended. Returning stop=true ends the loop immediately with the
// given route; otherwise the loop continues normally.
type Interceptor func(call state.ToolCall, payload string) (route Route, stop bool)

// Loop is the generic bounded tool-calling loop every worker instantiates:
// ask the reasoner with a bound toolset, execute the tool calls it emits,
// feed results back, repeat until a turn carries no tool calls.
type Loop struct {
	Client       reasoner.Client
	Registry     *tools.Registry
	Tools        []string // bound tool names, resolved against Registry
	System       string
	MaxToolCalls int // per-turn safety valve; <=0 means default 50
	Interceptor  Interceptor
	Log          *zap.Logger
}

// definitions resolves the bound toolset into wire definitions.
func (l *Loop) definitions() ([]reasoner.ToolDefinition, error) {
	defs := make([]reasoner.ToolDefinition, 0, len(l.Tools))
	for _, name := range l.Tools {
		t := l.Registry.Get(name)
		if t == nil {
			return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
		}
		defs = append(defs, reasoner.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema.JSONSchema(),
		})
	}
	return defs, nil
}

// Run drives the loop over the given transcript. It returns the messages
// produced during this invocation (ai turns and tool results, in order) and
// the route the loop ended on. The natural end of the loop, a reasoner turn
// with zero tool calls, routes to the supervisor.
func (l *Loop) Run(ctx context.Context, transcript []state.Message) ([]state.Message, Route, error) {
	defs, err := l.definitions()
	if err != nil {
		return nil, RouteTerminate, err
	}

	maxCalls := l.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = 50
	}

	msgs := append([]state.Message(nil), transcript...)
	var produced []state.Message

	for {
		if err := ctx.Err(); err != nil {
			return produced, RouteTerminate, err
		}

		reply, err := l.Client.CompleteWithTools(ctx, l.System, msgs, defs)
		if err != nil {
			return produced, RouteTerminate, fmt.Errorf("reasoner turn: %w", err)
		}
		msgs = append(msgs, reply)
		produced = append(produced, reply)

		if !reply.HasToolCalls() {
			return produced, RouteSupervisor, nil
		}

		calls := reply.ToolCalls
		if len(calls) > maxCalls {
			l.Log.Warn("truncating tool calls to per-turn cap",
				zap.Int("requested", len(calls)), zap.Int("cap", maxCalls))
			calls = calls[:maxCalls]
		}

		for _, call := range calls {
			result := l.Registry.Execute(ctx, call.Name, call.Args)
			payload := result.Payload()
			l.Log.Debug("tool executed",
				zap.String("tool", call.Name),
				zap.Int64("duration_ms", result.DurationMs),
				zap.Bool("failed", result.Err != nil))

			toolMsg := state.ToolMessage(call.Name, call.ID, payload)
			msgs = append(msgs, toolMsg)
			produced = append(produced, toolMsg)

			if l.Interceptor != nil {
				if route, stop := l.Interceptor(call, payload); stop {
					return produced, route, nil
				}
			}
		}
	}
}
