// Package shellops exposes the process session manager as tools for the
// shell worker.
package shellops

import (
	"context"
	"fmt"

	"foreman/internal/shell"
	"foreman/internal/tools"
)

// ExecTool returns the shell_exec tool.
func ExecTool(mgr *shell.Manager, workspace string) *tools.Tool {
	return &tools.Tool{
		Name:        "shell_exec",
		Description: "Execute a command in a named shell session. Use for running commands, installing packages, or managing files.",
		Capability:  tools.CapabilityShell,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id := tools.StringArg(args, "id", "")
			dir := tools.StringArg(args, "exec_dir", workspace)
			cmd := tools.StringArg(args, "command", "")
			if id == "" || cmd == "" {
				return "", fmt.Errorf("id and command are required")
			}
			return mgr.Exec(id, dir, cmd), nil
		},
		Schema: tools.Schema{
			Required: []string{"id", "command"},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Unique identifier of the target shell session",
				},
				"exec_dir": {
					Type:        "string",
					Description: "Working directory for command execution (absolute path)",
				},
				"command": {
					Type:        "string",
					Description: "Shell command to execute",
				},
			},
		},
	}
}

// ViewTool returns the shell_view tool.
func ViewTool(mgr *shell.Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "shell_view",
		Description: "View the accumulated output of a shell session. Use for checking command results or monitoring output.",
		Capability:  tools.CapabilityShell,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id := tools.StringArg(args, "id", "")
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			return mgr.View(id), nil
		},
		Schema: tools.Schema{
			Required: []string{"id"},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Unique identifier of the target shell session",
				},
			},
		},
	}
}

// WaitTool returns the shell_wait tool.
func WaitTool(mgr *shell.Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "shell_wait",
		Description: "Wait for the running process in a shell session to return. Use after commands that take longer to complete.",
		Capability:  tools.CapabilityShell,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id := tools.StringArg(args, "id", "")
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			seconds := tools.IntArg(args, "seconds", 0)
			return mgr.Wait(id, seconds), nil
		},
		Schema: tools.Schema{
			Required: []string{"id"},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Unique identifier of the target shell session",
				},
				"seconds": {
					Type:        "integer",
					Description: "Wait duration in seconds; omit to wait until the process exits",
				},
			},
		},
	}
}

// WriteToProcessTool returns the shell_write_to_process tool.
func WriteToProcessTool(mgr *shell.Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "shell_write_to_process",
		Description: "Write input to a running process in a shell session. Use for responding to interactive prompts.",
		Capability:  tools.CapabilityShell,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id := tools.StringArg(args, "id", "")
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			input := tools.StringArg(args, "input", "")
			pressEnter := tools.BoolArg(args, "press_enter", true)
			return mgr.WriteInput(id, input, pressEnter), nil
		},
		Schema: tools.Schema{
			Required: []string{"id", "input"},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Unique identifier of the target shell session",
				},
				"input": {
					Type:        "string",
					Description: "Input to write to the process stdin",
				},
				"press_enter": {
					Type:        "boolean",
					Description: "Whether to press Enter after writing the input",
					Default:     true,
				},
			},
		},
	}
}

// KillProcessTool returns the shell_kill_process tool.
func KillProcessTool(mgr *shell.Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "shell_kill_process",
		Description: "Terminate the running process in a shell session. Use for stopping long-running or stuck processes.",
		Capability:  tools.CapabilityShell,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id := tools.StringArg(args, "id", "")
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			return mgr.Kill(id), nil
		},
		Schema: tools.Schema{
			Required: []string{"id"},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Unique identifier of the target shell session",
				},
			},
		},
	}
}

// RegisterAll adds every shell tool to the registry, bound to mgr.
func RegisterAll(registry *tools.Registry, mgr *shell.Manager, workspace string) {
	registry.MustRegister(ExecTool(mgr, workspace))
	registry.MustRegister(ViewTool(mgr))
	registry.MustRegister(WaitTool(mgr))
	registry.MustRegister(WriteToProcessTool(mgr))
	registry.MustRegister(KillProcessTool(mgr))
}
