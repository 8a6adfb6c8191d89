package webops

import (
	"context"
	"fmt"

	"foreman/internal/tools"
)

// NavigateTool returns the browser_navigate tool.
func NavigateTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_navigate",
		Description: "Navigate the browser to a URL. Use when accessing new pages is needed.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url := tools.StringArg(args, "url", "")
			if url == "" {
				return "", fmt.Errorf("url is required")
			}
			if err := b.Navigate(ctx, url); err != nil {
				return "", err
			}
			return fmt.Sprintf("Successfully navigated to %s", url), nil
		},
		Schema: tools.Schema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "Complete URL to visit, including protocol prefix",
				},
			},
		},
	}
}

// ViewTool returns the browser_view tool.
func ViewTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_view",
		Description: "View the content of the current browser page. Use for checking the latest state of previously opened pages.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			state, err := b.State(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Current URL: %s\nTitle: %s\n\nPage content:\n%s",
				state.URL, state.Title, state.Text), nil
		},
		Schema: tools.Schema{},
	}
}

// RestartTool returns the browser_restart tool.
func RestartTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_restart",
		Description: "Restart the browser and navigate to a URL. Use when browser state needs to be reset.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url := tools.StringArg(args, "url", "")
			if url == "" {
				return "", fmt.Errorf("url is required")
			}
			if err := b.Restart(ctx, url); err != nil {
				return "", err
			}
			return fmt.Sprintf("Browser restarted and navigated to %s", url), nil
		},
		Schema: tools.Schema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "Complete URL to visit after restart, including protocol prefix",
				},
			},
		},
	}
}

// ClickTool returns the browser_click tool.
func ClickTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_click",
		Description: "Click an element on the current browser page, by CSS selector or viewport coordinates.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			selector := tools.StringArg(args, "selector", "")
			x := tools.FloatArg(args, "coordinate_x", -1)
			y := tools.FloatArg(args, "coordinate_y", -1)
			if selector == "" && (x < 0 || y < 0) {
				return "", fmt.Errorf("either selector or coordinates must be provided")
			}
			if err := b.Click(ctx, selector, x, y); err != nil {
				return "", err
			}
			if selector != "" {
				return fmt.Sprintf("Clicked on element %q", selector), nil
			}
			return fmt.Sprintf("Clicked at coordinates (%.0f, %.0f)", x, y), nil
		},
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"selector": {
					Type:        "string",
					Description: "CSS selector of the element to click (optional)",
				},
				"coordinate_x": {
					Type:        "number",
					Description: "X coordinate of the click position (optional)",
				},
				"coordinate_y": {
					Type:        "number",
					Description: "Y coordinate of the click position (optional)",
				},
			},
		},
	}
}

// InputTool returns the browser_input tool.
func InputTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_input",
		Description: "Type text into an editable element on the current browser page.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			selector := tools.StringArg(args, "selector", "")
			text := tools.StringArg(args, "text", "")
			if selector == "" {
				return "", fmt.Errorf("selector is required")
			}
			pressEnter := tools.BoolArg(args, "press_enter", false)
			if err := b.Input(ctx, selector, text, pressEnter); err != nil {
				return "", err
			}
			return fmt.Sprintf("Entered text into element %q", selector), nil
		},
		Schema: tools.Schema{
			Required: []string{"selector", "text"},
			Properties: map[string]tools.Property{
				"selector": {
					Type:        "string",
					Description: "CSS selector of the target element",
				},
				"text": {
					Type:        "string",
					Description: "Complete text content to input",
				},
				"press_enter": {
					Type:        "boolean",
					Description: "Whether to press Enter after input",
					Default:     false,
				},
			},
		},
	}
}

// PressKeyTool returns the browser_press_key tool.
func PressKeyTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_press_key",
		Description: "Simulate a key press on the current browser page.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			key := tools.StringArg(args, "key", "")
			if key == "" {
				return "", fmt.Errorf("key is required")
			}
			if err := b.PressKey(ctx, key); err != nil {
				return "", err
			}
			return fmt.Sprintf("Pressed key %s", key), nil
		},
		Schema: tools.Schema{
			Required: []string{"key"},
			Properties: map[string]tools.Property{
				"key": {
					Type:        "string",
					Description: "Key name to simulate (e.g. Enter, Tab, ArrowUp)",
				},
			},
		},
	}
}

// ScrollUpTool returns the browser_scroll_up tool.
func ScrollUpTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_scroll_up",
		Description: "Scroll the current browser page up by one viewport, or directly to the top.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			toTop := tools.BoolArg(args, "to_top", false)
			if err := b.Scroll(ctx, "up", toTop); err != nil {
				return "", err
			}
			if toTop {
				return "Scrolled to page top", nil
			}
			return "Scrolled up one viewport", nil
		},
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"to_top": {
					Type:        "boolean",
					Description: "Whether to scroll directly to the page top",
					Default:     false,
				},
			},
		},
	}
}

// ScrollDownTool returns the browser_scroll_down tool.
func ScrollDownTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_scroll_down",
		Description: "Scroll the current browser page down by one viewport, or directly to the bottom.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			toBottom := tools.BoolArg(args, "to_bottom", false)
			if err := b.Scroll(ctx, "down", toBottom); err != nil {
				return "", err
			}
			if toBottom {
				return "Scrolled to page bottom", nil
			}
			return "Scrolled down one viewport", nil
		},
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"to_bottom": {
					Type:        "boolean",
					Description: "Whether to scroll directly to the page bottom",
					Default:     false,
				},
			},
		},
	}
}

// ConsoleExecTool returns the browser_console_exec tool.
func ConsoleExecTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_console_exec",
		Description: "Execute JavaScript in the browser console and return the result.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			javascript := tools.StringArg(args, "javascript", "")
			if javascript == "" {
				return "", fmt.Errorf("javascript is required")
			}
			return b.ConsoleExec(ctx, javascript)
		},
		Schema: tools.Schema{
			Required: []string{"javascript"},
			Properties: map[string]tools.Property{
				"javascript": {
					Type:        "string",
					Description: "JavaScript code to execute in the browser console",
				},
			},
		},
	}
}

// ConsoleViewTool returns the browser_console_view tool.
func ConsoleViewTool(b *Browser) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_console_view",
		Description: "View recent browser console output.",
		Capability:  tools.CapabilityBrowser,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			maxLines := tools.IntArg(args, "max_lines", 100)
			return b.ConsoleLogs(maxLines), nil
		},
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"max_lines": {
					Type:        "integer",
					Description: "Maximum number of log lines to return",
					Default:     100,
				},
			},
		},
	}
}

// RegisterAll adds every browser tool to the registry, bound to b.
func RegisterAll(registry *tools.Registry, b *Browser) {
	registry.MustRegister(NavigateTool(b))
	registry.MustRegister(ViewTool(b))
	registry.MustRegister(RestartTool(b))
	registry.MustRegister(ClickTool(b))
	registry.MustRegister(InputTool(b))
	registry.MustRegister(PressKeyTool(b))
	registry.MustRegister(ScrollUpTool(b))
	registry.MustRegister(ScrollDownTool(b))
	registry.MustRegister(ConsoleExecTool(b))
	registry.MustRegister(ConsoleViewTool(b))
}
