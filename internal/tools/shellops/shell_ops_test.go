package shellops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foreman/internal/shell"
	"foreman/internal/tools"
)

func testSetup(t *testing.T) *tools.Registry {
	t.Helper()
	mgr := shell.NewManager(shell.Options{
		Grace:       500 * time.Millisecond,
		Settle:      50 * time.Millisecond,
		DrainWindow: 300 * time.Millisecond,
	}, zap.NewNop())
	t.Cleanup(mgr.Shutdown)

	r := tools.NewRegistry()
	RegisterAll(r, mgr, t.TempDir())
	return r
}

func TestShellToolsRegistered(t *testing.T) {
	r := testSetup(t)
	for _, name := range []string{"shell_exec", "shell_view", "shell_wait", "shell_write_to_process", "shell_kill_process"} {
		assert.True(t, r.Has(name), name)
	}
	assert.Len(t, r.ByCapability(tools.CapabilityShell), 5)
}

func TestShellExecViewWaitRoundtrip(t *testing.T) {
	r := testSetup(t)
	ctx := context.Background()

	res := r.Execute(ctx, "shell_exec", map[string]any{
		"id": "s1", "command": "echo from-tool",
	})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "Command started in session s1")

	res = r.Execute(ctx, "shell_wait", map[string]any{"id": "s1", "seconds": float64(5)})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "return code 0")

	res = r.Execute(ctx, "shell_view", map[string]any{"id": "s1"})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "from-tool")
}

func TestShellKillProcessTool(t *testing.T) {
	r := testSetup(t)
	ctx := context.Background()

	r.Execute(ctx, "shell_exec", map[string]any{"id": "s1", "command": "sleep 20"})
	res := r.Execute(ctx, "shell_kill_process", map[string]any{"id": "s1"})
	require.NoError(t, res.Err)
	assert.Equal(t, "Process in session s1 terminated", res.Output)
}

func TestShellToolMissingArgs(t *testing.T) {
	r := testSetup(t)
	res := r.Execute(context.Background(), "shell_exec", map[string]any{"id": "s1"})
	assert.Error(t, res.Err)
}
