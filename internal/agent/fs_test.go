package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foreman/internal/reasoner"
	"foreman/internal/state"
	"foreman/internal/tools"
	"foreman/internal/tools/fsops"
)

func fsRegistry() *tools.Registry {
	r := tools.NewRegistry()
	fsops.RegisterAll(r)
	return r
}

func TestFSWorkerReadShortCircuits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("meeting at noon"), 0o644))

	client := &reasoner.FakeClient{
		ToolTurns: []state.Message{
			toolCallMessage(state.ToolCall{
				ID: "c1", Name: "file_read", Args: map[string]any{"file": path},
			}),
			// Never consumed: the read result routes straight to the
			// supervisor.
			state.AIMessage("should not be reached"),
		},
	}

	w := NewFSWorker(client, fsRegistry(), 0, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "read the notes file"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, RouteSupervisor, outcome.Route)
	assert.Equal(t, 1, client.ToolCallTurns)

	last := outcome.Update.Messages[len(outcome.Update.Messages)-1]
	assert.Equal(t, state.RoleTool, last.Role)
	assert.Equal(t, "meeting at noon", last.Content)
}

func TestFSWorkerStagedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")

	client := &reasoner.FakeClient{
		ToolTurns: []state.Message{
			// First loop: write requested with no content.
			toolCallMessage(state.ToolCall{
				ID: "c1", Name: "file_write",
				Args: map[string]any{"file": path, "content": ""},
			}),
			// Staged loop: synthesized content, then a closing turn.
			toolCallMessage(state.ToolCall{
				ID: "c2", Name: "file_write",
				Args: map[string]any{"file": path, "content": "# Report\n\nAll good."},
			}),
			state.AIMessage("report written"),
		},
	}

	w := NewFSWorker(client, fsRegistry(), 0, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "write the report"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, RouteSupervisor, outcome.Route)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Report")

	// Only the staged step's conclusion is forwarded.
	last := outcome.Update.Messages[len(outcome.Update.Messages)-1]
	assert.Equal(t, "report written", last.Content)
}

func TestFSWorkerPlainOperationContinuesLoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	client := &reasoner.FakeClient{
		ToolTurns: []state.Message{
			toolCallMessage(state.ToolCall{
				ID: "c1", Name: "file_write",
				Args: map[string]any{"file": path, "content": "alpha"},
			}),
			state.AIMessage("file created"),
		},
	}

	w := NewFSWorker(client, fsRegistry(), 0, zap.NewNop())
	st := state.New("goal")
	st.Instruction = "create a.txt"

	outcome, err := w.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, RouteSupervisor, outcome.Route)
	assert.Equal(t, 2, client.ToolCallTurns, "a contentful write keeps the loop going")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alpha\n", string(data))
}
