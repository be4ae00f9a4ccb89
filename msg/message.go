// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"fmt"
	"strings"
)

// Category classifies where a message originated.
type Category int

const (
	General Category = iota
	Syntax
	Data
)

func (c Category) String() string {
	switch c {
	case Syntax:
		return "syntax"
	case Data:
		return "data"
	default:
		return "general"
	}
}

// Severity is the diagnostic level.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "error"
	}
}

// Context is one frame of an enclosing-context stack, e.g. "in
// expansion of macro !FOO" with the location of the expansion site.
type Context struct {
	Location    Location
	Description string
}

// Message is a single diagnostic. The driver package turns it into an
// output item by wrapping *Message, so this package needs no knowledge
// of drivers.
type Message struct {
	Category Category
	Severity Severity
	Location Location
	Stack    []Context
	Command  string
	Text     string
}

// SourceAccessor abstracts the lexer's snippet-retrieval callback
// (lex_source_get_line in the C original); GetLine returns the 1-based
// line's text without a trailing newline.
type SourceAccessor interface {
	GetLine(file string, line int) (string, bool)
}

// Render formats m the way the text driver and stderr fallback both
// do: stack frames first (each on its own line), then the primary
// location, severity, command and text, then up to 3 lines of
// underlined source context if src can supply it.
func (m Message) Render(src SourceAccessor) string {
	var b strings.Builder
	for _, c := range m.Stack {
		fmt.Fprintf(&b, "%s: in %s\n", c.Location.Format(), c.Description)
	}
	if !m.Location.IsEmpty() {
		fmt.Fprintf(&b, "%s: ", m.Location.Format())
	}
	b.WriteString(m.Severity.String())
	b.WriteString(": ")
	if m.Command != "" {
		b.WriteString(m.Command)
		b.WriteString(": ")
	}
	b.WriteString(m.Text)

	if src != nil && !m.Location.IsEmpty() && !m.Location.OmitUnderlines && m.Location.Start.Column > 0 {
		if snippet, ok := renderSnippet(src, m.Location); ok {
			b.WriteByte('\n')
			b.WriteString(snippet)
		}
	}
	return b.String()
}

// renderSnippet renders up to 3 lines of source context with carets
// underlining the span: the first and last covered lines get a
// '^'+'~~~' underline beneath the relevant columns, and any lines
// strictly between them collapse to a single "..." row instead of
// being printed individually (so a 10-line span still costs 5 lines
// of output: first line, underline, "...", last line, underline).
func renderSnippet(src SourceAccessor, loc Location) (string, bool) {
	first, ok := src.GetLine(loc.File, loc.Start.Line)
	if !ok {
		return "", false
	}
	var b strings.Builder
	b.WriteString(first)
	b.WriteByte('\n')
	b.WriteString(underline(loc.Start.Column-1, endColumn(loc, first, true)))

	if loc.End.Line > loc.Start.Line {
		if loc.End.Line == loc.Start.Line+1 {
			if last, ok := src.GetLine(loc.File, loc.End.Line); ok {
				b.WriteByte('\n')
				b.WriteString(last)
				b.WriteByte('\n')
				b.WriteString(underline(0, endColumn(loc, last, false)))
			}
		} else {
			b.WriteByte('\n')
			b.WriteString("...")
			if last, ok := src.GetLine(loc.File, loc.End.Line); ok {
				b.WriteByte('\n')
				b.WriteString(last)
				b.WriteByte('\n')
				b.WriteString(underline(0, endColumn(loc, last, false)))
			}
		}
	}
	return b.String(), true
}

func endColumn(loc Location, line string, firstLine bool) int {
	if loc.Start.Line == loc.End.Line && firstLine {
		if loc.End.Column > 0 {
			return loc.End.Column - 1
		}
	}
	if !firstLine && loc.End.Column > 0 {
		return loc.End.Column - 1
	}
	return len(line)
}

func underline(start, end int) string {
	if end <= start {
		end = start + 1
	}
	var b strings.Builder
	for i := 0; i < start; i++ {
		b.WriteByte(' ')
	}
	b.WriteByte('^')
	for i := start + 1; i < end; i++ {
		b.WriteByte('~')
	}
	return b.String()
}
