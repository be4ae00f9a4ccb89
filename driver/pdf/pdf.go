// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package pdf implements the PDF-like driver (§4.4, "text/ascii
// pdf/cairo odf/tex spv csv/html" back-end list): each flattened
// sub-table is laid out as a bordered cell grid on an A4 page using
// github.com/jung-kurt/gofpdf, with merged cells drawn as one wide
// cell spanning its covered columns.
package pdf

import (
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

const (
	pageFont   = "Arial"
	rowHeight  = 6.0
	colWidthMM = 28.0
)

// Driver accumulates pages in a *gofpdf.Fpdf document, writing it to w
// only on Destroy.
type Driver struct {
	w       io.Writer
	pdf     *gofpdf.Fpdf
	started bool
}

var _ driver.Driver = (*Driver)(nil)

// New returns a pdf Driver that writes one complete A4 PDF document to
// w when Destroy is called.
func New(w io.Writer) *Driver {
	p := gofpdf.New("P", "mm", "A4", "")
	p.SetFont(pageFont, "", 10)
	return &Driver{w: w, pdf: p}
}

func (d *Driver) ensurePage() {
	if !d.started {
		d.started = true
		d.pdf.AddPage()
	}
}

// Submit renders one item; Group items are flattened in document
// order, with no separator added between leaves.
func (d *Driver) Submit(item driver.Item) error {
	return driver.Flatten(item, d.submitLeaf)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	d.ensurePage()
	switch item.Kind {
	case driver.ItemTable:
		d.writeOutput(item.Table)
	case driver.ItemText:
		d.pdf.SetFont(pageFont, "B", 12)
		d.pdf.CellFormat(0, rowHeight, item.Text, "", 1, "L", false, 0, "")
		d.pdf.SetFont(pageFont, "", 10)
	case driver.ItemPageBreak:
		d.pdf.AddPage()
	}
	return d.pdf.Error()
}

func (d *Driver) writeOutput(out *pivotoutput.Output) {
	parts := []*pivotoutput.FlatTable{out.Title, out.Layers, out.Body, out.Caption, out.Footnotes}
	for _, ft := range parts {
		if ft == nil || len(ft.Cells) == 0 {
			continue
		}
		d.writeGrid(ft)
		d.pdf.Ln(rowHeight / 2)
	}
}

// writeGrid lays ft out as a bordered cell grid: one gofpdf CellFormat
// per occupied grid position, with a spanning cell's width equal to
// the sum of the columns it covers and covered positions skipped
// entirely (gofpdf has no native merged-cell primitive).
func (d *Driver) writeGrid(ft *pivotoutput.FlatTable) {
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

	for r := 0; r < ft.NRows; r++ {
		for col := 0; col < ft.NCols; col++ {
			if covered[r][col] {
				continue
			}
			c, ok := byOrigin[[2]int{r, col}]
			if !ok {
				d.pdf.CellFormat(colWidthMM, rowHeight, "", "1", 0, "L", false, 0, "")
				continue
			}
			width := colWidthMM * float64(c.ColSpan)
			align := "L"
			switch c.Style.Cell.HAlign {
			case pivot.AlignRight:
				align = "R"
			case pivot.AlignCenter:
				align = "C"
			}
			style := ""
			if c.Style.Font.Bold {
				style = "B"
			}
			d.pdf.SetFont(pageFont, style, 10)
			d.pdf.CellFormat(width, rowHeight, c.Value.Text(), "1", 0, align, false, 0, "")
			d.pdf.SetFont(pageFont, "", 10)
		}
		d.pdf.Ln(-1)
	}
}

// Flush writes nothing and only reports a pending gofpdf error: gofpdf
// cannot write a document without ending it, so the whole document is
// written to w by Destroy.
func (d *Driver) Flush() error {
	return d.pdf.Error()
}

// Destroy writes the final PDF document to w.
func (d *Driver) Destroy() error {
	d.ensurePage()
	return d.pdf.Output(d.w)
}
