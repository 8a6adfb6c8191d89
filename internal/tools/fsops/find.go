package fsops

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"foreman/internal/tools"
)

// FindByNameTool returns the file_find_by_name tool.
func FindByNameTool() *tools.Tool {
	return &tools.Tool{
		Name:        "file_find_by_name",
		Description: "Find files by glob pattern within a directory. Supports ** for recursive matching.",
		Capability:  tools.CapabilityFS,
		Execute:     executeFindByName,
		Schema: tools.Schema{
			Required: []string{"path", "glob"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "Directory to search in",
				},
				"glob": {
					Type:        "string",
					Description: "Glob pattern to match file names against",
				},
			},
		},
	}
}

func executeFindByName(ctx context.Context, args map[string]any) (string, error) {
	dir := tools.StringArg(args, "path", "")
	pattern := tools.StringArg(args, "glob", "")
	if dir == "" || pattern == "" {
		return "", fmt.Errorf("path and glob are required")
	}

	matches, err := doublestar.FilepathGlob(strings.TrimRight(dir, "/") + "/" + pattern)
	if err != nil {
		return "", fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files matching %q under %s", pattern, dir), nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n"), nil
}
