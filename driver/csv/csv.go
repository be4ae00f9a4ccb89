// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package csv implements the CSV driver (§4.4): one RFC 4180 record
// per flattened row, one sub-table at a time, with a blank separator
// line between sub-tables and between successive tables.
package csv

import (
	"encoding/csv"
	"io"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

// Driver writes RFC 4180 CSV records to w.
type Driver struct {
	w       *csv.Writer
	started bool
}

var _ driver.Driver = (*Driver)(nil)

// New returns a csv Driver writing to w.
func New(w io.Writer) *Driver {
	return &Driver{w: csv.NewWriter(w)}
}

// Submit renders one item; Group items are flattened in document
// order, since CSV has no native concept of nested sections.
func (d *Driver) Submit(item driver.Item) error {
	return driver.Flatten(item, d.submitLeaf)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	switch item.Kind {
	case driver.ItemTable:
		return d.writeOutput(item.Table)
	case driver.ItemText:
		if err := d.separator(); err != nil {
			return err
		}
		return d.w.Write([]string{item.Text})
	default:
		return nil
	}
}

func (d *Driver) separator() error {
	if !d.started {
		d.started = true
		return nil
	}
	return d.w.Write(nil)
}

// writeOutput emits each present sub-table of out (title, layers,
// body, caption, footnotes) as its own block of records, one row per
// FlatTable row, separated by a blank record.
func (d *Driver) writeOutput(out *pivotoutput.Output) error {
	parts := []*pivotoutput.FlatTable{out.Title, out.Layers, out.Body, out.Caption, out.Footnotes}
	for _, ft := range parts {
		if ft == nil || len(ft.Cells) == 0 {
			continue
		}
		if err := d.separator(); err != nil {
			return err
		}
		if err := writeGrid(d.w, ft); err != nil {
			return err
		}
	}
	return nil
}

// writeGrid materializes ft's cell rectangles into an NRows x NCols
// grid (repeating a spanning cell's text into every covered cell, the
// simplest RFC 4180-safe rendering of a merged region) and writes one
// CSV record per row.
func writeGrid(w *csv.Writer, ft *pivotoutput.FlatTable) error {
	grid := make([][]string, ft.NRows)
	for r := range grid {
		grid[r] = make([]string, ft.NCols)
	}
	for i := range ft.Cells {
		c := &ft.Cells[i]
		text := c.Value.Text()
		for r := c.RowStart; r < c.RowStart+c.RowSpan && r < ft.NRows; r++ {
			for col := c.ColStart; col < c.ColStart+c.ColSpan && col < ft.NCols; col++ {
				grid[r][col] = text
			}
		}
	}
	for _, row := range grid {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered CSV records to the underlying writer.
func (d *Driver) Flush() error {
	d.w.Flush()
	return d.w.Error()
}

// Destroy flushes and releases the driver; a csv.Writer holds no other
// resource to close.
func (d *Driver) Destroy() error {
	return d.Flush()
}
