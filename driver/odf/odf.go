// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package odf implements the ODF (OpenDocument Spreadsheet) driver
// (§4.4): each flattened sub-table becomes a table:table inside
// content.xml, packaged into a .ods ZIP archive with the mimetype
// member stored first and uncompressed per the OpenDocument container
// format.
//
// This is the same member layout as the teacher's spreadsheet/ods
// package (mimetype, META-INF/manifest.xml, meta.xml, settings.xml,
// styles.xml, content.xml), adapted from its generic row/cell
// spreadsheet model to pivotoutput.FlatTable's span-addressed cell
// grid, and packaged with this module's own zipcodec.Writer instead of
// archive/zip or quicktemplate's generated-code streaming (see
// DESIGN.md for why neither survived the adaptation).
package odf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
	"github.com/lemenkov/pspp-sub019/zipcodec"
)

// Driver accumulates content.xml's table markup and the bold-style
// registry, flushing the whole .ods archive to w on Destroy.
type Driver struct {
	zw      *zipcodec.Writer
	content bytes.Buffer
	styles  map[string]string // style name -> <style:style>...</style:style>
	tableN  int
	err     error
}

var _ driver.Driver = (*Driver)(nil)

// New returns an odf Driver that writes one complete .ods archive to w
// when Destroy is called. If w also satisfies io.WriteSeeker, member
// headers are patched in place instead of using trailing data
// descriptors (zipcodec.NewWriter's own behavior).
func New(w io.Writer) *Driver {
	return &Driver{zw: zipcodec.NewWriter(w), styles: make(map[string]string)}
}

// Submit renders one item; Group items are flattened in document
// order, since an ODS spreadsheet has no native nested-section concept.
func (d *Driver) Submit(item driver.Item) error {
	return driver.Flatten(item, d.submitLeaf)
}

func (d *Driver) submitLeaf(item driver.Item) error {
	if d.err != nil {
		return d.err
	}
	switch item.Kind {
	case driver.ItemTable:
		d.writeOutput(item.Table)
	case driver.ItemText:
		d.writeTextSheet(item.Text)
	}
	return d.err
}

func (d *Driver) writeOutput(out *pivotoutput.Output) {
	parts := []*pivotoutput.FlatTable{out.Title, out.Layers, out.Body, out.Caption, out.Footnotes}
	for _, ft := range parts {
		if ft == nil || len(ft.Cells) == 0 {
			continue
		}
		d.writeSheet(ft)
	}
}

func (d *Driver) writeTextSheet(text string) {
	d.tableN++
	fmt.Fprintf(&d.content, "<table:table table:name=\"Sheet%d\">\n", d.tableN)
	fmt.Fprintf(&d.content, "<table:table-row><table:table-cell office:value-type=\"string\"><text:p>%s</text:p></table:table-cell></table:table-row>\n", escapeXML(text))
	d.content.WriteString("</table:table>\n")
}

// writeSheet renders ft as one table:table: a covered-table-cell for
// every grid position already inside an earlier cell's span, and a
// table-cell carrying number-columns/rows-spanned attributes at the
// cell's origin.
func (d *Driver) writeSheet(ft *pivotoutput.FlatTable) {
	d.tableN++
	fmt.Fprintf(&d.content, "<table:table table:name=\"Sheet%d\">\n", d.tableN)

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
		d.content.WriteString("<table:table-row>\n")
		for col := 0; col < ft.NCols; col++ {
			if covered[r][col] {
				d.content.WriteString("<table:covered-table-cell/>\n")
				continue
			}
			c, ok := byOrigin[[2]int{r, col}]
			if !ok {
				d.content.WriteString("<table:table-cell/>\n")
				continue
			}
			d.writeCell(c)
		}
		d.content.WriteString("</table:table-row>\n")
	}
	d.content.WriteString("</table:table>\n")
}

func (d *Driver) writeCell(c *pivotoutput.Cell) {
	attrs := ""
	if c.ColSpan > 1 {
		attrs += fmt.Sprintf(` table:number-columns-spanned="%d"`, c.ColSpan)
	}
	if c.RowSpan > 1 {
		attrs += fmt.Sprintf(` table:number-rows-spanned="%d"`, c.RowSpan)
	}
	valueType := "string"
	valueAttr := ""
	if c.Value.Kind == pivot.KindNumeric {
		valueType = "float"
		valueAttr = fmt.Sprintf(` office:value="%v"`, c.Value.Num)
	}
	styleAttr := ""
	if c.Style.Font.Bold {
		name := d.boldStyleName()
		styleAttr = fmt.Sprintf(` table:style-name="%s"`, name)
	}
	fmt.Fprintf(&d.content, `<table:table-cell%s%s office:value-type="%s"%s><text:p>%s</text:p></table:table-cell>`+"\n",
		attrs, styleAttr, valueType, valueAttr, escapeXML(c.Value.Text()))
}

// boldStyleName registers (once) a table-cell style for bold text,
// keyed by an fnv hash the same way the teacher's getStyleName does,
// and returns its name.
func (d *Driver) boldStyleName() string {
	h := fnv.New32()
	fmt.Fprint(h, "bold")
	name := fmt.Sprintf("bf-%d", h.Sum32())
	if _, ok := d.styles[name]; !ok {
		d.styles[name] = `<style:style style:name="` + name + `" style:family="table-cell">` +
			`<style:text-properties fo:font-weight="bold"/></style:style>`
	}
	return name
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// Flush is a no-op: the archive is only well-formed once every member
// is written, which Destroy alone can guarantee.
func (d *Driver) Flush() error { return nil }

// Destroy writes every container member (mimetype, manifest, meta,
// settings, styles, content) and closes the ZIP archive.
func (d *Driver) Destroy() error {
	if d.err != nil {
		return d.err
	}
	if err := d.writeMember("mimetype", []byte("application/vnd.oasis.opendocument.spreadsheet"), zipcodec.MethodStored); err != nil {
		return err
	}
	if err := d.writeStored("META-INF/manifest.xml", manifestXML()); err != nil {
		return err
	}
	if err := d.writeStored("meta.xml", metaXML()); err != nil {
		return err
	}
	if err := d.writeStored("settings.xml", settingsXML()); err != nil {
		return err
	}
	if err := d.writeStored("styles.xml", d.stylesXML()); err != nil {
		return err
	}
	if err := d.writeStored("content.xml", d.contentXML()); err != nil {
		return err
	}
	return d.zw.Close()
}

func (d *Driver) writeStored(name string, body []byte) error {
	return d.writeMember(name, body, zipcodec.MethodDeflate)
}

func (d *Driver) writeMember(name string, body []byte, method zipcodec.Method) error {
	w, err := d.zw.Create(name, method)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func manifestXML() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
<manifest:file-entry manifest:full-path="/" manifest:version="1.2" manifest:media-type="application/vnd.oasis.opendocument.spreadsheet"/>
<manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
<manifest:file-entry manifest:full-path="styles.xml" manifest:media-type="text/xml"/>
<manifest:file-entry manifest:full-path="meta.xml" manifest:media-type="text/xml"/>
<manifest:file-entry manifest:full-path="settings.xml" manifest:media-type="text/xml"/>
</manifest:manifest>`)
}

func metaXML() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0" office:version="1.2">
<office:meta><meta:generator>pspp-sub019/driver/odf</meta:generator></office:meta>
</office:document-meta>`)
}

func settingsXML() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-settings xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" office:version="1.2"/>`)
}

func (d *Driver) stylesXML() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-styles xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0"
  xmlns:fo="urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0" office:version="1.2">
<office:styles>
`)
	for _, s := range d.styles {
		buf.WriteString(s)
		buf.WriteByte('\n')
	}
	buf.WriteString("</office:styles>\n</office:document-styles>")
	return buf.Bytes()
}

func (d *Driver) contentXML() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" office:version="1.2">
<office:body><office:spreadsheet>
`)
	buf.Write(d.content.Bytes())
	buf.WriteString("</office:spreadsheet></office:body></office:document-content>")
	return buf.Bytes()
}
