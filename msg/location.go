// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package msg implements the process-wide diagnostic bus: source
// locations with snippet rendering, messages, severity quotas, and
// recursion-guarded delivery to a pluggable handler.
package msg

import "fmt"

// Point is a 1-based line/column pair; the zero value means "absent".
type Point struct {
	Line, Column int
}

func (p Point) isZero() bool { return p.Line == 0 && p.Column == 0 }

// Location carries a file name, an optional opaque source-text handle,
// a start and end point, and whether underlines should be omitted when
// rendering source context.
//
// Well-formedness (checked by Valid, not enforced at construction):
// either both points are zero, or Start.Column == End.Column == 0 (a
// whole-line range), or Start.Column > 0 (a column range, possibly
// spanning lines).
type Location struct {
	File           string
	Source         interface{} // opaque source-text handle, e.g. a lexer buffer
	Start, End     Point
	OmitUnderlines bool
}

// Valid reports whether l satisfies the well-formedness rule in §3.4.
func (l Location) Valid() bool {
	if l.Start.isZero() && l.End.isZero() {
		return true
	}
	if l.Start.Column == 0 && l.End.Column == 0 {
		return l.Start.Line > 0 && l.End.Line >= l.Start.Line
	}
	return l.Start.Column > 0 && l.Start.Line > 0
}

// IsEmpty reports whether l carries no position information at all.
func (l Location) IsEmpty() bool { return l.Start.isZero() && l.End.isZero() }

// Merge returns the location spanning both a and b: the minimum start
// and the maximum end. It requires identical file names; ok is false
// otherwise. Merge(l, l) == l, and merge is associative for any chain
// of locations sharing a file.
func Merge(a, b Location) (Location, bool) {
	if a.File != b.File {
		return Location{}, false
	}
	if a.IsEmpty() {
		return b, true
	}
	if b.IsEmpty() {
		return a, true
	}
	out := a
	if before(b.Start, a.Start) {
		out.Start = b.Start
	}
	if before(a.End, b.End) {
		out.End = b.End
	}
	out.OmitUnderlines = a.OmitUnderlines || b.OmitUnderlines
	return out, true
}

func before(a, b Point) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// Format renders l as "file:line.col-line.col". A same-line span still
// repeats the line number ("l.c1-l.c2" rather than "l.c1-c2", which
// Emacs misparses when a bare number follows a dash); a span whose
// start equals its end collapses to "file:line.col", and a location
// without column information renders as "file:line" or
// "file:line1-line2".
func (l Location) Format() string {
	if l.IsEmpty() {
		return l.File
	}
	if l.Start.Column == 0 {
		if l.End.Line > l.Start.Line {
			return fmt.Sprintf("%s:%d-%d", l.File, l.Start.Line, l.End.Line)
		}
		return fmt.Sprintf("%s:%d", l.File, l.Start.Line)
	}
	if l.Start.Line == l.End.Line {
		if l.Start.Column == l.End.Column {
			return fmt.Sprintf("%s:%d.%d", l.File, l.Start.Line, l.Start.Column)
		}
		return fmt.Sprintf("%s:%d.%d-%d.%d", l.File, l.Start.Line, l.Start.Column, l.End.Line, l.End.Column)
	}
	return fmt.Sprintf("%s:%d.%d-%d.%d", l.File, l.Start.Line, l.Start.Column, l.End.Line, l.End.Column)
}
