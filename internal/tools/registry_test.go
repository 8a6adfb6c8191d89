package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func echoTool(name string, cap Capability) *Tool {
	return &Tool{
		Name:       name,
		Capability: cap,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "echo:" + StringArg(args, "text", ""), nil
		},
		Schema: Schema{
			Required: []string{"text"},
			Properties: map[string]Property{
				"text": {Type: "string", Description: "text to echo"},
			},
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo", CapabilityGeneral)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(echoTool("echo", CapabilityGeneral)); !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("duplicate register error = %v", err)
	}
	if !r.Has("echo") || r.Get("echo") == nil {
		t.Error("registered tool not found")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d", r.Count())
	}
}

func TestRegisterInvalidTool(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Tool{Name: ""}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register(&Tool{Name: "no-exec"}); err == nil {
		t.Error("expected error for nil execute")
	}
}

func TestByCapabilitySorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("zeta", CapabilityFS))
	r.MustRegister(echoTool("alpha", CapabilityFS))
	r.MustRegister(echoTool("shell_thing", CapabilityShell))

	fs := r.ByCapability(CapabilityFS)
	if len(fs) != 2 || fs[0].Name != "alpha" || fs[1].Name != "zeta" {
		t.Errorf("ByCapability order: %v", fs)
	}
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CapabilityGeneral))

	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if res.Err != nil {
		t.Fatalf("Execute: %v", res.Err)
	}
	if res.Payload() != "echo:hello" {
		t.Errorf("payload = %q", res.Payload())
	}
}

func TestExecuteMissingToolIsResult(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), "nonexistent", nil)
	if !errors.Is(res.Err, ErrToolNotFound) {
		t.Fatalf("err = %v", res.Err)
	}
	if !strings.HasPrefix(res.Payload(), "Error:") {
		t.Errorf("payload = %q", res.Payload())
	}
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CapabilityGeneral))

	res := r.Execute(context.Background(), "echo", map[string]any{})
	if !errors.Is(res.Err, ErrMissingRequiredArg) {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestExecuteToolErrorBecomesPayload(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Tool{
		Name: "failing",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("disk on fire")
		},
	})

	res := r.Execute(context.Background(), "failing", nil)
	if res.Payload() != "Error: disk on fire" {
		t.Errorf("payload = %q", res.Payload())
	}
}

func TestSchemaJSONSchema(t *testing.T) {
	s := Schema{
		Required: []string{"path"},
		Properties: map[string]Property{
			"path": {Type: "string", Description: "file path"},
		},
	}
	js := s.JSONSchema()
	if js["type"] != "object" {
		t.Errorf("type = %v", js["type"])
	}
	props, ok := js["properties"].(map[string]any)
	if !ok || props["path"] == nil {
		t.Errorf("properties = %v", js["properties"])
	}
}
