// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package spv implements the SPV driver (§4.4): output items are
// packaged as a ZIP archive, and each pivot table becomes a pair of
// members — a light-binary detail member and an XML light-structure
// member — under its own outputs/NNN/ directory (a three-digit,
// zero-padded sequence number).
//
// The real SPV light-binary member is a length-prefixed protobuf
// stream (google/protobuf "pivot table" messages); with no
// original_source/ in this retrieval to recover that wire format from,
// this driver defines its own fixed, versioned light-binary header
// (magic, version, cell count) followed by one
// fixed-width record per cell, and documents the gap rather than
// claiming byte-compatibility with real .spv files it cannot verify.
// See DESIGN.md.
package spv

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
	"github.com/lemenkov/pspp-sub019/zipcodec"
)

// lightBinaryMagic identifies this driver's detail-member format.
var lightBinaryMagic = [4]byte{'S', 'P', 'V', 'B'}

const lightBinaryVersion = 1

// Driver packages submitted items into a ZIP archive written to w.
type Driver struct {
	zw      *zipcodec.Writer
	outputN int
	err     error
}

var _ driver.Driver = (*Driver)(nil)

// New returns an spv Driver writing its ZIP archive to w.
func New(w io.Writer) *Driver {
	return &Driver{zw: zipcodec.NewWriter(w)}
}

// Submit renders one item; Group items are flattened in document
// order, each leaf occupying its own numbered output directory.
func (d *Driver) Submit(item driver.Item) error {
	return driver.Flatten(item, d.submitLeaf)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	if d.err != nil {
		return d.err
	}
	if item.Kind != driver.ItemTable {
		return nil
	}
	d.outputN++
	dir := fmt.Sprintf("outputs/%03d", d.outputN)
	if err := d.writeDetailMember(dir, item.Table); err != nil {
		d.err = err
		return err
	}
	if err := d.writeStructureMember(dir, item.Table); err != nil {
		d.err = err
		return err
	}
	return nil
}

// writeDetailMember writes the light-binary member: the header, then
// one record per body cell: row, col, row span, col span (all
// uint32), followed by a uint32 byte length and the UTF-8 cell text.
func (d *Driver) writeDetailMember(dir string, out *pivotoutput.Output) error {
	w, err := d.zw.Create(dir+"/lightTableData.bin", zipcodec.MethodDeflate)
	if err != nil {
		return err
	}

	var hdr [12]byte
	copy(hdr[0:4], lightBinaryMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], lightBinaryVersion)
	ft := out.Body
	nCells := 0
	if ft != nil {
		nCells = len(ft.Cells)
	}
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(nCells))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if ft == nil {
		return nil
	}
	for i := range ft.Cells {
		c := &ft.Cells[i]
		var rec [16]byte
		binary.LittleEndian.PutUint32(rec[0:4], uint32(c.RowStart))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(c.ColStart))
		binary.LittleEndian.PutUint32(rec[8:12], uint32(c.RowSpan))
		binary.LittleEndian.PutUint32(rec[12:16], uint32(c.ColSpan))
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
		text := []byte(c.Value.Text())
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(text)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(text); err != nil {
			return err
		}
	}
	return nil
}

// structureDoc is the XML light-structure member: enough of the
// sub-table shape (row/column header extents, per-sub-table presence)
// for a viewer to lay the binary detail member's cells out correctly.
type structureDoc struct {
	XMLName xml.Name          `xml:"pivotTableStructure"`
	Tables  []structureTable  `xml:"subTable"`
}

type structureTable struct {
	Name           string `xml:"name,attr"`
	NRows          int    `xml:"rows,attr"`
	NCols          int    `xml:"cols,attr"`
	NRowHeaderCols int    `xml:"rowHeaderCols,attr"`
	NColHeaderRows int    `xml:"colHeaderRows,attr"`
}

func (d *Driver) writeStructureMember(dir string, out *pivotoutput.Output) error {
	w, err := d.zw.Create(dir+"/lightTableStructure.xml", zipcodec.MethodDeflate)
	if err != nil {
		return err
	}
	doc := structureDoc{}
	for _, p := range []struct {
		name string
		ft   *pivotoutput.FlatTable
	}{
		{"title", out.Title}, {"layers", out.Layers}, {"body", out.Body},
		{"caption", out.Caption}, {"footnotes", out.Footnotes},
	} {
		if p.ft == nil || len(p.ft.Cells) == 0 {
			continue
		}
		doc.Tables = append(doc.Tables, structureTable{
			Name: p.name, NRows: p.ft.NRows, NCols: p.ft.NCols,
			NRowHeaderCols: p.ft.NRowHeaderCols, NColHeaderRows: p.ft.NColHeaderRows,
		})
	}
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

// Flush is a no-op: ZIP members are only safely readable once the
// central directory is written, which only Destroy can do.
func (d *Driver) Flush() error { return d.err }

// Destroy finalizes the ZIP archive.
func (d *Driver) Destroy() error {
	if d.err != nil {
		return d.err
	}
	return d.zw.Close()
}
