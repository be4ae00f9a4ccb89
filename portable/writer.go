// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package portable

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/lemenkov/pspp-sub019/dict"
)

// WriterOptions names the splash strings a portable file's header
// carries; all are echoed back verbatim by real SPSS writers and
// ignored by readers.
type WriterOptions struct {
	Product    string
	Author     string
	Subproduct string
}

// Writer serializes a dictionary and case stream as a portable file:
// ASCII, CRLF line endings, 80-column lines, trailing `Z` EOF fill.
type Writer struct {
	w    io.Writer
	dict *dict.Dictionary
	buf  strings.Builder
}

// NewWriter writes the fixed header and every dictionary record for
// d, leaving the writer positioned to accept cases via WriteCase.
func NewWriter(w io.Writer, d *dict.Dictionary, opts WriterOptions) (*Writer, error) {
	pw := &Writer{w: w, dict: d}

	pw.buf.WriteString(padRight(opts.Product, splashLen))
	for i := 0; i < translationLen; i++ {
		// Identity mapping for printable ASCII; every other position
		// holds '0', so the header stays ASCII and free of line breaks.
		// Readers ignore this table.
		b := byte(i)
		if b < ' ' || b > '~' {
			b = '0'
		}
		pw.buf.WriteByte(b)
	}
	pw.buf.WriteString(magicLiteral)

	pw.buf.WriteByte('1')
	pw.buf.WriteString(writeCountedString(opts.Product))
	pw.buf.WriteByte('2')
	pw.buf.WriteString(writeCountedString(opts.Author))
	pw.buf.WriteByte('3')
	pw.buf.WriteString(writeCountedString(opts.Subproduct))
	pw.buf.WriteByte('4')
	pw.buf.WriteString(writeNumber(int64(len(d.Variables))))
	pw.buf.WriteByte('5')
	pw.buf.WriteString(writeNumber(fracDigits))
	if d.Weight != nil {
		pw.buf.WriteByte('6')
		pw.buf.WriteString(writeCountedString(d.Weight.Name))
	}

	for _, v := range d.Variables {
		pw.writeVariable(v)
	}

	pw.buf.WriteByte('F')
	return pw, nil
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

func (pw *Writer) writeVariable(v *dict.Variable) {
	pw.buf.WriteByte('7')
	pw.buf.WriteString(writeNumber(int64(v.Width)))
	pw.buf.WriteString(writeCountedString(v.Name))
	pw.writeFormatSpec(v.Print)
	pw.writeFormatSpec(v.Write)

	m := v.Missing
	for _, d := range m.Discretes {
		pw.buf.WriteByte('8')
		pw.buf.WriteString(writeFloat(d))
	}
	for _, d := range m.DiscreteStr {
		pw.buf.WriteByte('8')
		pw.buf.WriteString(writeCountedString(d))
	}
	if m.HasRange {
		switch {
		case m.RangeLow == negInf:
			pw.buf.WriteByte('9')
			pw.buf.WriteString(writeFloat(m.RangeHigh))
		case m.RangeHigh == posInf:
			pw.buf.WriteByte('A')
			pw.buf.WriteString(writeFloat(m.RangeLow))
		default:
			pw.buf.WriteByte('B')
			pw.buf.WriteString(writeFloat(m.RangeLow))
			pw.buf.WriteString(writeFloat(m.RangeHigh))
		}
	}
	if v.Label != "" {
		pw.buf.WriteByte('C')
		pw.buf.WriteString(writeCountedString(v.Label))
	}
	if len(v.ValueLabels) > 0 {
		pw.writeValueLabels(v)
	}
}

func (pw *Writer) writeFormatSpec(f dict.Format) {
	code, ok := formatCode[f.Type]
	if !ok {
		code = formatCode["F"]
	}
	pw.buf.WriteString(writeNumber(int64(code)))
	pw.buf.WriteString(writeNumber(int64(f.Width)))
	pw.buf.WriteString(writeNumber(int64(f.Decimals)))
}

func (pw *Writer) writeValueLabels(v *dict.Variable) {
	pw.buf.WriteByte('D')
	pw.buf.WriteString(writeNumber(1))
	pw.buf.WriteString(writeCountedString(v.Name))
	pw.buf.WriteString(writeNumber(int64(len(v.ValueLabels))))
	for _, vl := range v.ValueLabels {
		if v.IsString() {
			pw.buf.WriteString(writeCountedString(vl.Str))
		} else {
			pw.buf.WriteString(writeFloat(vl.Num))
		}
		pw.buf.WriteString(writeCountedString(vl.Label))
	}
}

// WriteCase appends one case to the data section.
func (pw *Writer) WriteCase(c *dict.Case) error {
	for i, v := range pw.dict.Variables {
		if v.IsString() {
			pw.buf.WriteString(writeCountedString(c.Str[i]))
			continue
		}
		if dict.IsSystemMissing(c.Num[i]) {
			pw.buf.WriteString(systemMissingLiteral + "/")
			continue
		}
		pw.buf.WriteString(writeFloat(c.Num[i]))
	}
	return nil
}

// Close writes the `Z` EOF record and flushes the whole file to w as
// CRLF-terminated, 80-column lines, the final line right-padded with
// literal `Z` characters rather than spaces.
func (pw *Writer) Close() error {
	pw.buf.WriteByte('Z')
	content := []rune(pw.buf.String())
	for len(content)%lineWidth != 0 {
		content = append(content, 'Z')
	}
	for i := 0; i < len(content); i += lineWidth {
		line := string(content[i : i+lineWidth])
		if _, err := io.WriteString(pw.w, line+"\r\n"); err != nil {
			return fmt.Errorf("portable: writing line: %w", err)
		}
	}
	return nil
}

// WriteFile writes a complete portable file to path atomically via a
// renameio-managed temporary sibling, only replacing path once
// writeCases and the final Close have both succeeded.
func WriteFile(path string, d *dict.Dictionary, opts WriterOptions, writeCases func(*Writer) error) error {
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("portable: creating pending file for %s: %w", path, err)
	}
	defer pf.Cleanup()

	w, err := NewWriter(pf, d, opts)
	if err != nil {
		return err
	}
	if err := writeCases(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("portable: closing writer for %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("portable: committing %s: %w", path, err)
	}
	return nil
}
