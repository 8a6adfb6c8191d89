// Package fsops provides the filesystem tool family bound by the fs
// worker: read, write, in-place replacement, and two find variants.
package fsops

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"foreman/internal/tools"
)

// Tool names the fs worker's routing overrides match on.
const (
	NameFileRead      = "file_read"
	NameFileReadImage = "file_read_image"
	NameFileWrite     = "file_write"
)

// ReadFileTool returns the file_read tool.
func ReadFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        NameFileRead,
		Description: "Read file content. Use for checking file contents, analyzing logs, or reading configuration files.",
		Capability:  tools.CapabilityFS,
		Execute:     executeReadFile,
		Schema: tools.Schema{
			Required: []string{"file"},
			Properties: map[string]tools.Property{
				"file": {
					Type:        "string",
					Description: "Path of the file to read",
				},
				"start_line": {
					Type:        "integer",
					Description: "Starting line to read from, 0-based (optional)",
				},
				"end_line": {
					Type:        "integer",
					Description: "Ending line number, exclusive (optional)",
				},
			},
		},
	}
}

func executeReadFile(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "file", "")
	if path == "" {
		return "", fmt.Errorf("file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	content := string(data)

	start := tools.IntArg(args, "start_line", -1)
	end := tools.IntArg(args, "end_line", -1)
	if start >= 0 || end >= 0 {
		lines := strings.Split(content, "\n")
		if start < 0 {
			start = 0
		}
		if end < 0 || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) {
			start = len(lines)
		}
		if start > end {
			start = end
		}
		content = strings.Join(lines[start:end], "\n")
	}
	return content, nil
}

// ReadImageTool returns the file_read_image tool. Its payload is a small
// JSON structure carrying base64 image data and a content type.
func ReadImageTool() *tools.Tool {
	return &tools.Tool{
		Name:        NameFileReadImage,
		Description: "Read an image file and return it as base64-encoded data. Use for viewing images, diagrams, or visual content.",
		Capability:  tools.CapabilityFS,
		Execute:     executeReadImage,
		Schema: tools.Schema{
			Required: []string{"file"},
			Properties: map[string]tools.Property{
				"file": {
					Type:        "string",
					Description: "Path of the image file to read",
				},
			},
		},
	}
}

func executeReadImage(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "file", "")
	if path == "" {
		return "", fmt.Errorf("file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	contentType := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	case ".bmp":
		contentType = "image/bmp"
	case ".webp":
		contentType = "image/webp"
	case ".svg":
		contentType = "image/svg+xml"
	}

	payload, err := json.Marshal(map[string]string{
		"content_type": contentType,
		"data":         base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode image payload: %w", err)
	}
	return string(payload), nil
}

// WriteFileTool returns the file_write tool. Calling it with empty content
// is the fs worker's signal to enter the staged content-synthesis step.
func WriteFileTool() *tools.Tool {
	return &tools.Tool{
		Name:        NameFileWrite,
		Description: "Overwrite or append text content to a file. Use for creating files, saving results, or modifying configuration.",
		Capability:  tools.CapabilityFS,
		Execute:     executeWriteFile,
		Schema: tools.Schema{
			Required: []string{"file", "content"},
			Properties: map[string]tools.Property{
				"file": {
					Type:        "string",
					Description: "Path of the file to write to",
				},
				"content": {
					Type:        "string",
					Description: "Text content to write",
				},
				"append": {
					Type:        "boolean",
					Description: "Whether to use append mode",
					Default:     false,
				},
				"leading_newline": {
					Type:        "boolean",
					Description: "Whether to add a leading newline",
					Default:     false,
				},
				"trailing_newline": {
					Type:        "boolean",
					Description: "Whether to add a trailing newline",
					Default:     true,
				},
			},
		},
	}
}

func executeWriteFile(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "file", "")
	if path == "" {
		return "", fmt.Errorf("file is required")
	}

	content := tools.StringArg(args, "content", "")
	if content == "" {
		// Empty content means the caller wants the staged synthesis step;
		// the fs worker intercepts this result before it reaches the model.
		return "", nil
	}

	if tools.BoolArg(args, "leading_newline", false) {
		content = "\n" + content
	}
	if tools.BoolArg(args, "trailing_newline", true) && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if tools.BoolArg(args, "append", false) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("failed to open file for append: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return "", fmt.Errorf("failed to append to file: %w", err)
		}
	} else {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// StrReplaceTool returns the file_str_replace tool.
func StrReplaceTool() *tools.Tool {
	return &tools.Tool{
		Name:        "file_str_replace",
		Description: "Replace an exact string in a file with a new string. Use for targeted edits.",
		Capability:  tools.CapabilityFS,
		Execute:     executeStrReplace,
		Schema: tools.Schema{
			Required: []string{"file", "old_str", "new_str"},
			Properties: map[string]tools.Property{
				"file": {
					Type:        "string",
					Description: "Path of the file to perform replacement on",
				},
				"old_str": {
					Type:        "string",
					Description: "Original string to be replaced",
				},
				"new_str": {
					Type:        "string",
					Description: "New string to replace with",
				},
			},
		},
	}
}

func executeStrReplace(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "file", "")
	oldStr := tools.StringArg(args, "old_str", "")
	newStr := tools.StringArg(args, "new_str", "")
	if path == "" || oldStr == "" {
		return "", fmt.Errorf("file and old_str are required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	content := string(data)
	if !strings.Contains(content, oldStr) {
		return "", fmt.Errorf("old_str not found in %s", path)
	}

	count := strings.Count(content, oldStr)
	content = strings.ReplaceAll(content, oldStr, newStr)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path), nil
}

// FindInContentTool returns the file_find_in_content tool.
func FindInContentTool() *tools.Tool {
	return &tools.Tool{
		Name:        "file_find_in_content",
		Description: "Search file content with a regular expression and return matching lines.",
		Capability:  tools.CapabilityFS,
		Execute:     executeFindInContent,
		Schema: tools.Schema{
			Required: []string{"file", "regex"},
			Properties: map[string]tools.Property{
				"file": {
					Type:        "string",
					Description: "Path of the file to search within",
				},
				"regex": {
					Type:        "string",
					Description: "Regular expression pattern to match",
				},
			},
		},
	}
}

func executeFindInContent(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "file", "")
	pattern := tools.StringArg(args, "regex", "")
	if path == "" || pattern == "" {
		return "", fmt.Errorf("file and regex are required")
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var matches []string
	for i, line := range strings.Split(string(data), "\n") {
		if re.MatchString(line) {
			matches = append(matches, fmt.Sprintf("%d: %s", i+1, line))
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No matches for %q in %s", pattern, path), nil
	}
	return strings.Join(matches, "\n"), nil
}
