// Package webops provides the browser tool family. A single shared Browser
// handle is injected into the tools; it is lock-protected, started lazily on
// first use, and holds one live page at a time.
package webops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	navigationTimeout = 30 * time.Second
	consoleLogLimit   = 500
)

// Browser owns one headless browser and its current page.
type Browser struct {
	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page

	consoleMu   sync.Mutex
	consoleLogs []string

	log *zap.Logger
}

// NewBrowser creates an unstarted browser handle.
func NewBrowser(log *zap.Logger) *Browser {
	return &Browser{log: log}
}

// start launches chrome and connects. Callers hold b.mu.
func (b *Browser) start(ctx context.Context) error {
	if b.browser != nil {
		return nil
	}
	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	b.log.Info("browser started")
	return nil
}

// currentPage returns the live page, creating browser and page as needed.
// Callers hold b.mu.
func (b *Browser) currentPage(ctx context.Context) (*rod.Page, error) {
	if err := b.start(ctx); err != nil {
		return nil, err
	}
	if b.page == nil {
		page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
		b.page = page
		b.watchConsole(page)
	}
	return b.page, nil
}

// watchConsole subscribes to console API events and keeps a bounded log.
// The pump goroutine exits when the page closes.
func (b *Browser) watchConsole(page *rod.Page) {
	wait := page.EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		var parts []string
		for _, arg := range ev.Args {
			parts = append(parts, arg.Value.String())
		}
		line := fmt.Sprintf("[%s] %s", ev.Type, strings.Join(parts, " "))

		b.consoleMu.Lock()
		b.consoleLogs = append(b.consoleLogs, line)
		if len(b.consoleLogs) > consoleLogLimit {
			b.consoleLogs = b.consoleLogs[len(b.consoleLogs)-consoleLogLimit:]
		}
		b.consoleMu.Unlock()
	})
	go wait()
}

// Navigate loads url in the current page.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Timeout(navigationTimeout).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.Context(ctx).Timeout(navigationTimeout).WaitLoad(); err != nil {
		b.log.Debug("page load wait ended early", zap.Error(err))
	}
	return nil
}

// Restart tears the browser down and navigates a fresh instance to url.
func (b *Browser) Restart(ctx context.Context, url string) error {
	b.mu.Lock()
	if b.browser != nil {
		b.page = nil
		if err := b.browser.Close(); err != nil {
			b.log.Warn("browser close failed", zap.Error(err))
		}
		b.browser = nil
	}
	b.consoleMu.Lock()
	b.consoleLogs = nil
	b.consoleMu.Unlock()
	b.mu.Unlock()

	return b.Navigate(ctx, url)
}

// PageState describes the current page for the reasoner.
type PageState struct {
	URL   string
	Title string
	Text  string
}

// State snapshots the current page: URL, title, and visible text extracted
// from the rendered DOM.
func (b *Browser) State(ctx context.Context) (PageState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return PageState{}, err
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return PageState{}, fmt.Errorf("page info: %w", err)
	}
	rawHTML, err := page.Context(ctx).HTML()
	if err != nil {
		return PageState{}, fmt.Errorf("page html: %w", err)
	}
	return PageState{
		URL:   info.URL,
		Title: info.Title,
		Text:  extractText(rawHTML),
	}, nil
}

// Click clicks the first element matching selector, or the given viewport
// coordinates when selector is empty.
func (b *Browser) Click(ctx context.Context, selector string, x, y float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return err
	}
	if selector != "" {
		el, err := page.Context(ctx).Element(selector)
		if err != nil {
			return fmt.Errorf("element not found: %w", err)
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	}
	if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("move mouse: %w", err)
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// Input types text into the element matching selector, optionally pressing
// Enter afterwards.
func (b *Browser) Input(ctx context.Context, selector, text string, pressEnter bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return err
	}
	el, err := page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input text: %w", err)
	}
	if pressEnter {
		return page.Keyboard.Press(input.Enter)
	}
	return nil
}

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"home":       input.Home,
	"end":        input.End,
}

// PressKey simulates a named key press on the current page.
func (b *Browser) PressKey(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return err
	}
	k, ok := namedKeys[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return page.Keyboard.Press(k)
}

// Scroll moves the viewport. direction is "up" or "down"; toEdge jumps all
// the way instead of one viewport.
func (b *Browser) Scroll(ctx context.Context, direction string, toEdge bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return err
	}

	var js string
	switch {
	case direction == "up" && toEdge:
		js = `() => window.scrollTo(0, 0)`
	case direction == "up":
		js = `() => window.scrollBy(0, -window.innerHeight)`
	case direction == "down" && toEdge:
		js = `() => window.scrollTo(0, document.body.scrollHeight)`
	default:
		js = `() => window.scrollBy(0, window.innerHeight)`
	}
	if _, err := page.Context(ctx).Eval(js); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// ConsoleExec evaluates javascript in the page and returns the stringified
// result.
func (b *Browser) ConsoleExec(ctx context.Context, javascript string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.currentPage(ctx)
	if err != nil {
		return "", err
	}
	res, err := page.Context(ctx).Eval(javascript)
	if err != nil {
		return "", fmt.Errorf("eval: %w", err)
	}
	return res.Value.String(), nil
}

// ConsoleLogs returns up to maxLines of the most recent console output.
func (b *Browser) ConsoleLogs(maxLines int) string {
	b.consoleMu.Lock()
	defer b.consoleMu.Unlock()

	logs := b.consoleLogs
	if maxLines > 0 && len(logs) > maxLines {
		logs = logs[len(logs)-maxLines:]
	}
	if len(logs) == 0 {
		return "No console output captured"
	}
	return strings.Join(logs, "\n")
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	b.page = nil
	return err
}

// extractText renders an HTML document to plain text, skipping script and
// style subtrees and collapsing whitespace runs.
func extractText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteString("\n")
			}
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
