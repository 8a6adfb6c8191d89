package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry holds all available tools and provides lookup by name and
// capability. It is thread-safe; workers fetch their bound toolset once at
// construction and execute through the registry afterwards.
type Registry struct {
	mu           sync.RWMutex
	tools        map[string]*Tool
	byCapability map[Capability][]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:        make(map[string]*Tool),
		byCapability: make(map[Capability][]*Tool),
	}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	r.tools[tool.Name] = tool
	r.byCapability[tool.Capability] = append(r.byCapability[tool.Capability], tool)
	return nil
}

// MustRegister registers a tool and panics on error. Use for static wiring
// at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ByCapability returns all tools bound to a capability, sorted by name.
func (r *Registry) ByCapability(cap Capability) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, len(r.byCapability[cap]))
	copy(result, r.byCapability[cap])
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name. A missing tool or missing required argument
// is reported inside the Result like any other tool failure, so callers can
// feed it straight back into the transcript.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) *Result {
	start := time.Now()

	tool := r.Get(name)
	if tool == nil {
		return &Result{
			ToolName:   name,
			Err:        fmt.Errorf("%w: %s", ErrToolNotFound, name),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if err := validateArgs(tool, args); err != nil {
		return &Result{
			ToolName:   name,
			Err:        err,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	output, err := tool.Execute(ctx, args)
	return &Result{
		ToolName:   name,
		Output:     output,
		Err:        err,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// validateArgs checks that all required arguments are present.
func validateArgs(tool *Tool, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}
