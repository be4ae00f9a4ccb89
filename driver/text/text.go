// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package text implements the ASCII/Unicode box-drawing driver
// (§4.4): u8_line-backed grids with single-rule borders, terminal
// width detection, and optional ANSI emphasis.
package text

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgryski/go-linebreak"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/internal/u8line"
	"github.com/lemenkov/pspp-sub019/msg"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

// Options configures the text driver.
type Options struct {
	// PageWidth is the column budget for box drawing and title/caption
	// word-wrap; 0 means DefaultPageWidth().
	PageWidth int
	// Emphasis enables ANSI bold/underline via fatih/color; forced off
	// when the destination is not a terminal regardless of this
	// setting, since emitting escape codes into a redirected file
	// would corrupt the output.
	Emphasis bool
	// MinHBreak is the minimum column distance from an edge allowed
	// for a horizontal table break (§4.4).
	MinHBreak int
}

// DefaultPageWidth inspects fd for a terminal width, falling back to
// 79 columns (the classic default for redirected/non-interactive
// output).
func DefaultPageWidth(fd uintptr) int {
	if !isatty.IsTerminal(fd) {
		return 79
	}
	w, _, err := term.GetSize(int(fd))
	if err != nil || w <= 0 {
		return 79
	}
	return w
}

// Driver renders items as ASCII/Unicode box-drawn text to w.
type Driver struct {
	w        io.Writer
	opts     Options
	emphasis bool
}

var _ driver.Driver = (*Driver)(nil)

// New returns a text Driver writing to w. If opts.PageWidth is 0, it
// is resolved against os.Stdout's terminal size.
func New(w io.Writer, opts Options) *Driver {
	if opts.PageWidth <= 0 {
		opts.PageWidth = DefaultPageWidth(os.Stdout.Fd())
	}
	if opts.MinHBreak <= 0 {
		opts.MinHBreak = 10
	}
	d := &Driver{w: w, opts: opts}
	if f, ok := w.(*os.File); ok {
		d.emphasis = opts.Emphasis && isatty.IsTerminal(f.Fd())
	} else {
		d.emphasis = false
	}
	return d
}

// Submit renders one item; Group items are flattened in document
// order since the text driver has no native nesting beyond indentation.
func (d *Driver) Submit(item driver.Item) error {
	return driver.Flatten(item, d.submitLeaf)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	switch item.Kind {
	case driver.ItemTable:
		return d.renderOutput(item.Table)
	case driver.ItemText:
		return d.renderWrapped(item.Text, 0)
	case driver.ItemMessage:
		return d.renderMessage(item.Message)
	case driver.ItemPageBreak:
		_, err := fmt.Fprintln(d.w, strings.Repeat("-", d.opts.PageWidth))
		return err
	default:
		return nil
	}
}

func (d *Driver) renderMessage(m *msg.Message) error {
	_, err := fmt.Fprintln(d.w, m.Render(nil))
	return err
}

func (d *Driver) renderWrapped(s string, indent int) error {
	width := d.opts.PageWidth - indent
	if width < 10 {
		width = 10
	}
	wrapped := linebreak.Wrap(s, width, width)
	for _, line := range strings.Split(wrapped, "\n") {
		if _, err := fmt.Fprintln(d.w, strings.Repeat(" ", indent)+line); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) emphasize(s string, style pivot.FontStyle) string {
	if !d.emphasis || (!style.Bold && !style.Underline) {
		return s
	}
	c := color.New()
	if style.Bold {
		c.Add(color.Bold)
	}
	if style.Underline {
		c.Add(color.Underline)
	}
	return c.Sprint(s)
}

// renderOutput renders every present sub-table of out in title, layers,
// body, caption, footnotes order, separated by blank lines.
func (d *Driver) renderOutput(out *pivotoutput.Output) error {
	parts := []*pivotoutput.FlatTable{out.Title, out.Layers, out.Body, out.Caption, out.Footnotes}
	first := true
	for _, ft := range parts {
		if ft == nil || len(ft.Cells) == 0 {
			continue
		}
		if !first {
			if _, err := fmt.Fprintln(d.w); err != nil {
				return err
			}
		}
		first = false
		if err := d.renderGrid(ft); err != nil {
			return err
		}
	}
	return nil
}

// renderGrid lays out ft as a box-drawn grid: column widths are the
// widest cell text in that column, rows are joined with single-rule
// horizontal borders after the header rows and at top/bottom.
func (d *Driver) renderGrid(ft *pivotoutput.FlatTable) error {
	grid := make([][]*pivotoutput.Cell, ft.NRows)
	for r := range grid {
		grid[r] = make([]*pivotoutput.Cell, ft.NCols)
	}
	for i := range ft.Cells {
		c := &ft.Cells[i]
		for r := c.RowStart; r < c.RowStart+c.RowSpan && r < ft.NRows; r++ {
			for col := c.ColStart; col < c.ColStart+c.ColSpan && col < ft.NCols; col++ {
				grid[r][col] = c
			}
		}
	}

	colWidth := make([]int, ft.NCols)
	for r := range grid {
		for col := range grid[r] {
			if cell := grid[r][col]; cell != nil {
				text := cell.Value.Text()
				perCol := (len(text) + cell.ColSpan - 1) / cell.ColSpan
				if perCol > colWidth[col] {
					colWidth[col] = perCol
				}
			}
		}
	}
	for col := range colWidth {
		if colWidth[col] < 1 {
			colWidth[col] = 1
		}
	}

	for _, slice := range d.breakColumns(ft, colWidth) {
		if err := d.renderSlice(ft, grid, colWidth, slice); err != nil {
			return err
		}
	}
	return nil
}

// columnSlice is one horizontal page of a too-wide table: the leading
// row-header columns (repeated on every slice) plus a contiguous run
// of body/column-header columns that fit within the page width.
type columnSlice struct {
	start, end int // [start, end) into the non-row-header columns
}

// breakColumns decides where to split ft's NCols-wide grid so each
// slice's rendered width (borders included) fits d.opts.PageWidth
// (§4.4): row-header columns repeat on every slice, and a break point
// is never placed closer than opts.MinHBreak columns after the start
// of the slice being built unless the table is too narrow in column
// count for that to be possible. The columns left over after a break
// are not held to that minimum.
func (d *Driver) breakColumns(ft *pivotoutput.FlatTable, colWidth []int) []columnSlice {
	rowHeaderWidth := 1 // leading "|"
	for col := 0; col < ft.NRowHeaderCols; col++ {
		rowHeaderWidth += colWidth[col] + 3
	}

	bodyStart := ft.NRowHeaderCols
	if bodyStart >= ft.NCols {
		return []columnSlice{{start: bodyStart, end: ft.NCols}}
	}

	var slices []columnSlice
	col := bodyStart
	for col < ft.NCols {
		width := rowHeaderWidth
		end := col
		for end < ft.NCols {
			next := width + colWidth[end] + 3
			span := end - col + 1
			// Never break closer than MinHBreak columns from the start
			// of this slice unless the whole remaining table is
			// narrower than that (nothing more to include anyway).
			if next > d.opts.PageWidth && span > d.opts.MinHBreak {
				break
			}
			width = next
			end++
		}
		if end == col {
			end = col + 1 // always make progress even on a single too-wide column
		}
		slices = append(slices, columnSlice{start: col, end: end})
		col = end
	}
	if len(slices) == 0 {
		slices = []columnSlice{{start: bodyStart, end: ft.NCols}}
	}
	return slices
}

// renderSlice renders one columnSlice: its own rule/border pair,
// every row-header column, and the slice's body/column-header
// columns, so a too-wide table's row and column headers repeat on
// every page (§4.4).
func (d *Driver) renderSlice(ft *pivotoutput.FlatTable, grid [][]*pivotoutput.Cell, colWidth []int, slice columnSlice) error {
	cols := make([]int, 0, ft.NRowHeaderCols+slice.end-slice.start)
	for c := 0; c < ft.NRowHeaderCols; c++ {
		cols = append(cols, c)
	}
	for c := slice.start; c < slice.end; c++ {
		cols = append(cols, c)
	}

	sliceWidth := make([]int, len(cols))
	for i, c := range cols {
		sliceWidth[i] = colWidth[c]
	}

	rule := buildRule(sliceWidth)
	if err := d.writeLine(rule); err != nil {
		return err
	}
	for r := range grid {
		row := make([]*pivotoutput.Cell, len(cols))
		for i, c := range cols {
			row[i] = grid[r][c]
		}
		if err := d.writeDataRow(row, sliceWidth); err != nil {
			return err
		}
		if r == ft.NColHeaderRows-1 || r == ft.NRows-1 {
			if err := d.writeLine(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildRule(colWidth []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range colWidth {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func (d *Driver) writeLine(s string) error {
	_, err := fmt.Fprintln(d.w, s)
	return err
}

func (d *Driver) writeDataRow(row []*pivotoutput.Cell, colWidth []int) error {
	line := u8line.New()
	x := 0
	line.Put(x, x+1, []byte("|"))
	x++
	for col := range row {
		cell := row[col]
		w := colWidth[col]
		text := ""
		align := pivot.AlignLeft
		if cell != nil {
			text = cell.Value.Text()
			align = cell.Style.Cell.HAlign
			text = d.emphasize(text, cell.Style.Font)
		}
		padded := padTo(text, w, align)
		line.Put(x, x+w, []byte(padded))
		x += w
		line.Put(x, x+1, []byte(" |"))
		x += 2
	}
	return d.writeLine(line.String())
}

func padTo(s string, w int, align pivot.HAlign) string {
	n := w - len([]rune(s))
	if n <= 0 {
		return s
	}
	switch align {
	case pivot.AlignRight:
		return strings.Repeat(" ", n) + s
	case pivot.AlignCenter:
		left := n / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-left)
	default:
		return s + strings.Repeat(" ", n)
	}
}

// Flush is a no-op: the text driver writes synchronously, it holds
// nothing back to flush.
func (d *Driver) Flush() error { return nil }

// Destroy closes w if it is an *os.File other than stdout/stderr.
func (d *Driver) Destroy() error {
	if f, ok := d.w.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}
