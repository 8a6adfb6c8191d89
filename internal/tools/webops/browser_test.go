package webops

import (
	"strings"
	"testing"
)

func TestExtractTextSkipsScriptsAndStyles(t *testing.T) {
	page := `<html><head><style>body{color:red}</style>
<script>console.log("hidden")</script></head>
<body><h1>Title</h1><p>First paragraph.</p><div>Second block</div></body></html>`

	text := extractText(page)
	if !strings.Contains(text, "Title") || !strings.Contains(text, "First paragraph.") {
		t.Errorf("visible text missing: %q", text)
	}
	if strings.Contains(text, "hidden") || strings.Contains(text, "color:red") {
		t.Errorf("script/style content leaked: %q", text)
	}
}

func TestExtractTextBreaksOnBlocks(t *testing.T) {
	text := extractText(`<ul><li>alpha</li><li>beta</li></ul>`)
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		t.Errorf("expected line breaks between list items, got %q", text)
	}
}

func TestNamedKeysCoverCommonKeys(t *testing.T) {
	for _, k := range []string{"enter", "tab", "escape", "arrowdown", "pageup"} {
		if _, ok := namedKeys[k]; !ok {
			t.Errorf("missing key mapping for %s", k)
		}
	}
}
