package fsops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foreman/internal/tools"
)

func registry() *tools.Registry {
	r := tools.NewRegistry()
	RegisterAll(r)
	return r
}

func TestFileReadFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree"), 0o644))

	res := registry().Execute(context.Background(), "file_read", map[string]any{"file": path})
	require.NoError(t, res.Err)
	assert.Equal(t, "one\ntwo\nthree", res.Output)
}

func TestFileReadLineRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("l0\nl1\nl2\nl3"), 0o644))

	// start_line is 0-based, end_line exclusive.
	res := registry().Execute(context.Background(), "file_read", map[string]any{
		"file": path, "start_line": float64(1), "end_line": float64(3),
	})
	require.NoError(t, res.Err)
	assert.Equal(t, "l1\nl2", res.Output)

	// Out-of-range bounds clamp instead of failing.
	res = registry().Execute(context.Background(), "file_read", map[string]any{
		"file": path, "start_line": float64(2), "end_line": float64(99),
	})
	require.NoError(t, res.Err)
	assert.Equal(t, "l2\nl3", res.Output)
}

func TestFileReadMissing(t *testing.T) {
	res := registry().Execute(context.Background(), "file_read", map[string]any{
		"file": "/nonexistent/zzz.txt",
	})
	assert.Error(t, res.Err)
	assert.Contains(t, res.Payload(), "Error:")
}

func TestFileReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixel.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))

	res := registry().Execute(context.Background(), "file_read_image", map[string]any{"file": path})
	require.NoError(t, res.Err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.Output), &payload))
	assert.Equal(t, "image/png", payload["content_type"])
	assert.NotEmpty(t, payload["data"])
}

func TestFileWriteAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.txt")
	ctx := context.Background()
	r := registry()

	res := r.Execute(ctx, "file_write", map[string]any{"file": path, "content": "first"})
	require.NoError(t, res.Err)

	res = r.Execute(ctx, "file_write", map[string]any{
		"file": path, "content": "second", "append": true,
	})
	require.NoError(t, res.Err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestFileWriteEmptyContentSignalsStagedStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	res := registry().Execute(context.Background(), "file_write", map[string]any{
		"file": path, "content": "",
	})
	require.NoError(t, res.Err)
	assert.Empty(t, res.Output)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty content must not create the file")
}

func TestFileStrReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8080\nhost: 8080\n"), 0o644))

	res := registry().Execute(context.Background(), "file_str_replace", map[string]any{
		"file": path, "old_str": "8080", "new_str": "9090",
	})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "2 occurrence(s)")

	data, _ := os.ReadFile(path)
	assert.Equal(t, "port: 9090\nhost: 9090\n", string(data))

	res = registry().Execute(context.Background(), "file_str_replace", map[string]any{
		"file": path, "old_str": "not-present", "new_str": "x",
	})
	assert.Error(t, res.Err)
}

func TestFileFindInContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("ok\nERROR: boom\nok\nERROR: again\n"), 0o644))

	res := registry().Execute(context.Background(), "file_find_in_content", map[string]any{
		"file": path, "regex": "^ERROR",
	})
	require.NoError(t, res.Err)
	lines := strings.Split(res.Output, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2: ERROR: boom", lines[0])
}

func TestFileFindByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), nil, 0o644))

	res := registry().Execute(context.Background(), "file_find_by_name", map[string]any{
		"path": dir, "glob": "**/*.go",
	})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "a.go")
	assert.Contains(t, res.Output, filepath.Join("nested", "b.go"))
	assert.NotContains(t, res.Output, "c.txt")

	res = registry().Execute(context.Background(), "file_find_by_name", map[string]any{
		"path": dir, "glob": "*.rs",
	})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "No files matching")
}
