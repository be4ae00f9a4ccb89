// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package html implements the HTML driver (§4.4): each flattened
// sub-table becomes a <table> with merged cells expressed as
// rowspan/colspan, preserving the logical row/column-header structure
// instead of flattening spans into repeated text.
package html

import (
	"fmt"
	"html"
	"io"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

// Driver writes one HTML fragment (no <html>/<body> wrapper, so
// callers can embed it in a larger document) per Destroy-bounded run.
type Driver struct {
	w io.Writer
}

var _ driver.Driver = (*Driver)(nil)

// New returns an html Driver writing fragments to w.
func New(w io.Writer) *Driver {
	return &Driver{w: w}
}

// Submit renders one item; a Group item becomes a <div> wrapping its
// flattened children's markup.
func (d *Driver) Submit(item driver.Item) error {
	if item.Kind == driver.ItemGroup {
		if _, err := fmt.Fprintln(d.w, `<div class="pspp-group">`); err != nil {
			return err
		}
		for _, child := range item.Group {
			if err := d.Submit(child); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintln(d.w, "</div>")
		return err
	}
	return d.submitLeaf(item)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	switch item.Kind {
	case driver.ItemTable:
		return d.writeOutput(item.Table)
	case driver.ItemText:
		_, err := fmt.Fprintf(d.w, "<p>%s</p>\n", html.EscapeString(item.Text))
		return err
	case driver.ItemPageBreak:
		_, err := fmt.Fprintln(d.w, `<div style="page-break-after: always"></div>`)
		return err
	default:
		return nil
	}
}

// writeOutput emits each present sub-table of out as its own <table>.
func (d *Driver) writeOutput(out *pivotoutput.Output) error {
	parts := []struct {
		ft    *pivotoutput.FlatTable
		class string
	}{
		{out.Title, "pspp-title"},
		{out.Layers, "pspp-layers"},
		{out.Body, "pspp-body"},
		{out.Caption, "pspp-caption"},
		{out.Footnotes, "pspp-footnotes"},
	}
	for _, p := range parts {
		if p.ft == nil || len(p.ft.Cells) == 0 {
			continue
		}
		if err := writeTable(d.w, p.ft, p.class); err != nil {
			return err
		}
	}
	return nil
}

// writeTable renders ft as a <table>, emitting th for header rows/
// columns and td for the rest, with rowspan/colspan attributes set
// from each Cell's span and a covered map skipping cells already
// emitted as part of an earlier cell's span.
func writeTable(w io.Writer, ft *pivotoutput.FlatTable, class string) error {
	covered := make([][]bool, ft.NRows)
	for r := range covered {
		covered[r] = make([]bool, ft.NCols)
	}
	byOrigin := make(map[[2]int]*pivotoutput.Cell, len(ft.Cells))
	for i := range ft.Cells {
		c := &ft.Cells[i]
		byOrigin[[2]int{c.RowStart, c.ColStart}] = c
		for r := c.RowStart; r < c.RowStart+c.RowSpan && r < ft.NRows; r++ {
			for col := c.ColStart; col < c.ColStart+c.ColSpan && col < ft.NCols; col++ {
				if r != c.RowStart || col != c.ColStart {
					covered[r][col] = true
				}
			}
		}
	}

	if _, err := fmt.Fprintf(w, "<table class=\"%s\">\n", class); err != nil {
		return err
	}
	for r := 0; r < ft.NRows; r++ {
		if _, err := fmt.Fprintln(w, "<tr>"); err != nil {
			return err
		}
		for col := 0; col < ft.NCols; col++ {
			if covered[r][col] {
				continue
			}
			c, ok := byOrigin[[2]int{r, col}]
			if !ok {
				if _, err := fmt.Fprintln(w, "<td></td>"); err != nil {
					return err
				}
				continue
			}
			tag := "td"
			if r < ft.NColHeaderRows || col < ft.NRowHeaderCols {
				tag = "th"
			}
			if err := writeCellTag(w, tag, c); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "</tr>"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "</table>")
	return err
}

func writeCellTag(w io.Writer, tag string, c *pivotoutput.Cell) error {
	attrs := ""
	if c.RowSpan > 1 {
		attrs += fmt.Sprintf(" rowspan=\"%d\"", c.RowSpan)
	}
	if c.ColSpan > 1 {
		attrs += fmt.Sprintf(" colspan=\"%d\"", c.ColSpan)
	}
	if style := cssStyle(c.Style); style != "" {
		attrs += fmt.Sprintf(" style=\"%s\"", style)
	}
	_, err := fmt.Fprintf(w, "<%s%s>%s</%s>\n", tag, attrs, html.EscapeString(c.Value.Text()), tag)
	return err
}

func cssStyle(style pivot.AreaStyle) string {
	s := ""
	switch style.Cell.HAlign {
	case pivot.AlignRight:
		s += "text-align:right;"
	case pivot.AlignCenter:
		s += "text-align:center;"
	}
	if style.Font.Bold {
		s += "font-weight:bold;"
	}
	if style.Font.Underline {
		s += "text-decoration:underline;"
	}
	return s
}

// Flush is a no-op: HTML fragments are written synchronously.
func (d *Driver) Flush() error { return nil }

// Destroy is a no-op beyond Flush: the html driver does not own w.
func (d *Driver) Destroy() error { return nil }
