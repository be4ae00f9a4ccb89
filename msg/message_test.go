package msg

import (
	"strings"
	"testing"
)

type fakeSource map[int]string

func (f fakeSource) GetLine(file string, line int) (string, bool) {
	s, ok := f[line]
	return s, ok
}

func TestRenderWithSnippet(t *testing.T) {
	src := fakeSource{5: "COMPUTE x = y + ."}
	m := Message{
		Category: Syntax,
		Severity: Error,
		Location: Location{File: "t.sps", Start: Point{5, 15}, End: Point{5, 16}},
		Command:  "COMPUTE",
		Text:     "Syntax error expecting expression.",
	}
	out := m.Render(src)
	if !strings.Contains(out, "t.sps:5.15-5.16") {
		t.Errorf("missing location: %s", out)
	}
	if !strings.Contains(out, "error: COMPUTE: Syntax error") {
		t.Errorf("missing severity/command/text: %s", out)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (message, source, underline), got %d: %q", len(lines), out)
	}
	if lines[1] != "COMPUTE x = y + ." {
		t.Errorf("source line wrong: %q", lines[1])
	}
}

func TestRenderWithStack(t *testing.T) {
	m := Message{
		Severity: Warning,
		Location: Location{File: "t.sps", Start: Point{2, 1}},
		Stack: []Context{
			{Location: Location{File: "t.sps", Start: Point{1, 0}, End: Point{1, 0}}, Description: "expansion of !FOO"},
		},
		Text: "deprecated",
	}
	out := m.Render(nil)
	if !strings.HasPrefix(out, "t.sps:1: in expansion of !FOO\n") {
		t.Errorf("missing stack frame: %q", out)
	}
}
