// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package u8line implements an append-only, column-indexed row of
// UTF-8 grapheme clusters with display widths, as used by the text
// driver to lay out box-drawn tables. Double-width clusters (CJK,
// emoji) are preserved as single cells spanning two columns, and
// zero-width combining-mark runs stay in the cell of the cluster they
// follow; overwriting a cell partially replaces the intruded half with
// '?', and combining marks written on their own attach to the
// preceding character instead of opening a new cell (only at column 0,
// with nothing before them, do they take a column of their own).
package u8line

import (
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// cell is one occupied column. A zero-width continuation cell (the
// second column of a double-width cluster) has text == "" and is
// never addressed directly; it exists only so Len() reports the true
// column count and so partial overwrites can detect the intrusion.
type cell struct {
	text string
	// width is 0 for a continuation cell, else the full width of the
	// cluster starting here (1 or 2).
	width int
}

// Line is a width-aware column buffer.
type Line struct {
	cols []cell
}

// New returns an empty Line.
func New() *Line { return &Line{} }

// Len returns the current column count.
func (l *Line) Len() int { return len(l.cols) }

func blank() cell { return cell{text: " ", width: 1} }

func (l *Line) growTo(n int) {
	for len(l.cols) < n {
		l.cols = append(l.cols, blank())
	}
}

// clearIntrusion ensures that overwriting column i does not leave a
// dangling half of a double-width cluster that used to start at i-1:
// the orphaned half is replaced with '?'.
func (l *Line) clearIntrusion(i int) {
	if i <= 0 || i >= len(l.cols) {
		return
	}
	if l.cols[i].width == 0 {
		// i is the continuation column of a double-width cluster that
		// starts at i-1; the base is about to be partially overwritten.
		l.cols[i-1] = cell{text: "?", width: 1}
		l.cols[i] = blank()
	}
}

// segments splits s into grapheme clusters, attaching any leading
// combining marks in a cluster to their base rune (uniseg already does
// this per the Unicode text-segmentation rules) and reports each
// cluster's display width via go-runewidth, treating zero-width marks
// as width 0 and East-Asian wide/fullwidth runes as width 2.
func segments(s string) []cell {
	var out []cell
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		text := g.Str()
		w := runewidth.StringWidth(text)
		if w <= 0 {
			// A cluster that is entirely combining marks with no base
			// (e.g. input starts mid-sequence): keep it, zero-width,
			// merged visually into whatever precedes it.
			out = append(out, cell{text: text, width: 0})
			continue
		}
		out = append(out, cell{text: text, width: w})
		for extra := w - 1; extra > 0; extra-- {
			out = append(out, cell{text: "", width: 0})
		}
	}
	return out
}

// Reserve returns a buffer of nBytes for the caller to fill before
// calling Put with the same range; it exists to mirror the C API's
// allocate-then-fill idiom and performs no aliasing with the Line's
// storage.
func (l *Line) Reserve(x0, x1, nBytes int) []byte {
	_ = x0
	_ = x1
	return make([]byte, nBytes)
}

// Put writes the UTF-8 text in data starting at column x0, consuming
// as many columns as the text's clusters need, and overwriting
// whatever was at x0..x1 (x1 exclusive) beforehand. If the text is
// shorter than x1-x0, the remaining columns up to x1 are blanked; if
// longer, the line grows.
func (l *Line) Put(x0, x1 int, data []byte) {
	if x0 < 0 {
		panic("u8line: negative column")
	}
	segs := segments(string(data))
	need := x0
	for _, s := range segs {
		if s.width > 0 {
			need += s.width
		} else if s.text != "" && need == 0 {
			need++ // nothing precedes column 0 to attach to, so it takes a slot
		}
	}
	if need < x1 {
		need = x1
	}
	l.growTo(need)
	l.clearIntrusion(x0)
	i := x0
	for _, s := range segs {
		if s.width == 0 && s.text == "" {
			continue // pure continuation slot, already placed by base
		}
		if s.width == 0 && i > 0 {
			// Combining marks with no base of their own attach to the
			// cluster occupying the column before i.
			j := i - 1
			for j > 0 && l.cols[j].width == 0 && l.cols[j].text == "" {
				j--
			}
			l.cols[j].text += s.text
			continue
		}
		l.clearIntrusion(i)
		l.cols[i] = s
		step := s.width
		if step == 0 {
			step = 1
		}
		for k := 1; k < step; k++ {
			l.cols[i+k] = cell{text: "", width: 0}
		}
		i += step
	}
	if i < x1 {
		l.clearIntrusion(i)
		for ; i < x1; i++ {
			l.cols[i] = blank()
		}
	} else {
		l.clearIntrusion(i)
	}
}

// SetLength truncates or pads the line to exactly x columns. Padding
// appends blank single-width cells. Truncating in the middle of a
// double-width cluster replaces the surviving half with '?', per the
// line-length-enforcement rule in the text driver spec; SetLength is
// idempotent: calling it twice with the same x is a no-op the second
// time.
func (l *Line) SetLength(x int) {
	if x < 0 {
		x = 0
	}
	if x >= len(l.cols) {
		l.growTo(x)
		return
	}
	if x > 0 && l.cols[x].width == 0 {
		l.cols[x-1] = cell{text: "?", width: 1}
	}
	l.cols = l.cols[:x]
}

// String renders the line as plain UTF-8 text, one rune-cluster per
// occupied column (continuation columns contribute nothing).
func (l *Line) String() string {
	var b []byte
	for _, c := range l.cols {
		if c.width == 0 && c.text == "" {
			continue
		}
		b = append(b, c.text...)
	}
	return string(b)
}
