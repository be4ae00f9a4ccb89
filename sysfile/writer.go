// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package sysfile

import (
	"fmt"
	"io"
	"math"

	"github.com/google/renameio/v2"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

// WriterOptions configures Writer's case-stream encoding; everything
// else about the output (endianness, magic, bias) is fixed to the
// canonical form per §4.1.a's writer obligations.
type WriterOptions struct {
	Compression Compression
	ProductName string
	FileLabel   string
	Documents   []string // each truncated/padded to 80 bytes on write
}

// Writer serializes a dictionary and case stream into a canonical
// system file: native-endian, bias 100, magic "$FL2".
type Writer struct {
	w      io.Writer
	dict   *dict.Dictionary
	order  xendian.Order
	kind   Compression

	caseWriter caseWriter
	closer     io.Closer
}

type caseWriter interface {
	putNumeric(v float64) error
	putString(s [8]byte) error
	close() error
}

// rawCaseWriter writes uncompressed case segments directly.
type rawCaseWriter struct {
	w io.Writer
}

func (c *rawCaseWriter) putNumeric(v float64) error {
	var seg [8]byte
	xendian.PutUint64(seg[:], math.Float64bits(v), xendian.Little)
	_, err := c.w.Write(seg[:])
	return err
}

func (c *rawCaseWriter) putString(s [8]byte) error {
	_, err := c.w.Write(s[:])
	return err
}

func (c *rawCaseWriter) close() error { return nil }

// NewWriter writes the file header and every dictionary record for d,
// leaving the stream positioned to accept cases via WriteCase.
func NewWriter(w io.Writer, d *dict.Dictionary, opts WriterOptions) (*Writer, error) {
	order := xendian.Little
	h := Header{
		ProductName:     opts.ProductName,
		NominalCaseSize: int32(d.CaseWidth()),
		CompressionKind: opts.Compression,
		CaseCount:       -1,
		FileLabel:       opts.FileLabel,
	}
	if d.Weight != nil {
		h.WeightIndex = int32(weightSlotIndex(d))
	}
	if err := WriteHeader(w, h); err != nil {
		return nil, err
	}

	wr := &Writer{w: w, dict: d, order: order, kind: opts.Compression}

	veryLong, err := wr.writeVariableRecords()
	if err != nil {
		return nil, err
	}
	if err := wr.writeValueLabelRecords(); err != nil {
		return nil, err
	}
	if err := writeDocumentRecord(w, opts.Documents, order); err != nil {
		return nil, err
	}
	if err := writeExtensionRecord(w, longVarNamesExtension(d), order); err != nil {
		return nil, err
	}
	if len(veryLong) > 0 {
		if err := writeExtensionRecord(w, veryLongStringsExtension(veryLong), order); err != nil {
			return nil, err
		}
	}
	if err := writeDictionaryTerminator(w, order); err != nil {
		return nil, err
	}

	switch opts.Compression {
	case CompressionNone:
		wr.caseWriter = &rawCaseWriter{w: w}
	case CompressionBytecode:
		wr.caseWriter = newBytecodeWriter(w, order)
	case CompressionZSAV:
		bcw, closer, err := newZSAVWriter(w, order)
		if err != nil {
			return nil, err
		}
		wr.caseWriter = bcw
		wr.closer = closer
	}

	return wr, nil
}

// weightSlotIndex returns the 1-based case-segment slot of d.Weight,
// counting each string variable's segments individually (the
// numbering WeightIndex and value-label variable-index lists use).
func weightSlotIndex(d *dict.Dictionary) int {
	slot := 1
	for _, v := range d.Variables {
		if v == d.Weight {
			return slot
		}
		slot += physicalSegmentCount(v)
	}
	return 0
}

// physicalSegmentCount is the number of 8-byte case-data slots a
// variable occupies on disk. For a very-long string (width >
// veryLongSegmentCap) this is the sum of each physical variable
// record's own segment count, which can differ from
// v.SegmentCount(8) computed against the merged logical width (a
// 256-wide string splits into 255+1 physical segments, 32+1=33
// slots, not ceil(256/8)=32).
func physicalSegmentCount(v *dict.Variable) int {
	if !v.IsString() || v.Width <= veryLongSegmentCap {
		return v.SegmentCount(8)
	}
	n := 0
	for _, w := range splitVeryLongWidths(v.Width) {
		n += (w + 7) / 8
	}
	return n
}

func (w *Writer) writeVariableRecords() ([]veryLongEntry, error) {
	var veryLong []veryLongEntry
	for _, v := range w.dict.Variables {
		widths := []int{v.Width}
		if v.IsString() && v.Width > veryLongSegmentCap {
			widths = splitVeryLongWidths(v.Width)
			veryLong = append(veryLong, veryLongEntry{Name: v.ShortName(), Width: v.Width})
		}
		for segIdx, segWidth := range widths {
			rec := variableRecord{name: v.ShortName()}
			if segIdx == 0 {
				rec.hasLabel = v.Label != ""
				rec.label = v.Label
				rec.printFmt = packFormat(v.Print)
				rec.writeFmt = packFormat(v.Write)
				rec.missingCode, rec.missing = packMissing(v.Missing)
			} else {
				rec.printFmt = packFormat(v.Print)
				rec.writeFmt = packFormat(v.Write)
			}
			if v.IsString() {
				rec.typeCode = int32(minInt(segWidth, veryLongSegmentCap))
			} else {
				rec.typeCode = 0
			}
			if err := writeVariableRecord(w.w, rec, w.order); err != nil {
				return nil, err
			}
			for s := 1; s < (segWidth+7)/8; s++ {
				cont := variableRecord{typeCode: -1}
				if err := writeVariableRecord(w.w, cont, w.order); err != nil {
					return nil, err
				}
			}
		}
	}
	return veryLong, nil
}

func packMissing(m dict.MissingSpec) (int32, []float64) {
	if m.HasRange {
		vals := []float64{m.RangeLow, m.RangeHigh}
		code := int32(-2)
		if len(m.Discretes) > 0 {
			vals = append(vals, m.Discretes[0])
			code = -3
		}
		return code, vals
	}
	if len(m.Discretes) == 0 {
		return 0, nil
	}
	return int32(len(m.Discretes)), m.Discretes
}

func (w *Writer) writeValueLabelRecords() error {
	slot := 1
	for _, v := range w.dict.Variables {
		segs := physicalSegmentCount(v)
		if len(v.ValueLabels) > 0 {
			set := valueLabelSet{labels: make(map[string]string)}
			for _, vl := range v.ValueLabels {
				var raw [8]byte
				if v.IsString() {
					copy(raw[:], padRight(vl.Str, 8))
				} else {
					xendian.PutUint64(raw[:], math.Float64bits(vl.Num), w.order)
				}
				set.labels[string(raw[:])] = vl.Label
			}
			if err := writeValueLabelSet(w.w, set, []int32{int32(slot)}, w.order); err != nil {
				return err
			}
		}
		slot += segs
	}
	return nil
}

// WriteCase appends one case to the stream.
func (w *Writer) WriteCase(c *dict.Case) error {
	for i, v := range w.dict.Variables {
		if v.IsString() {
			// A very-long string is split across multiple physical
			// segments, each independently padded to its own 8-byte
			// boundary, mirroring how Reader.ReadCase reassembles them.
			widths := []int{v.Width}
			if v.Width > veryLongSegmentCap {
				widths = splitVeryLongWidths(v.Width)
			}
			value := c.Str[i]
			for _, segWidth := range widths {
				n := (segWidth + 7) / 8
				chunk := value
				if len(chunk) > segWidth {
					chunk = chunk[:segWidth]
				}
				value = value[len(chunk):]
				padded := []byte(padRight(chunk, n*8))
				for s := 0; s < n; s++ {
					var seg [8]byte
					copy(seg[:], padded[s*8:s*8+8])
					if err := w.caseWriter.putString(seg); err != nil {
						return fmt.Errorf("sysfile: writing case: %w", err)
					}
				}
			}
			continue
		}
		if err := w.caseWriter.putNumeric(c.Num[i]); err != nil {
			return fmt.Errorf("sysfile: writing case: %w", err)
		}
	}
	return nil
}

// Close flushes any pending compressed command group and, for ZSAV,
// the underlying zlib stream.
func (w *Writer) Close() error {
	if err := w.caseWriter.close(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// WriteFile writes a complete system file to path atomically: it
// builds the file in a temporary sibling file via renameio, calling
// writeCases to stream cases through the Writer it's given, then only
// replaces path once every case has been written successfully and the
// Writer is closed. A failure midway (including a panic recovered by
// the caller) leaves path untouched.
func WriteFile(path string, d *dict.Dictionary, opts WriterOptions, writeCases func(*Writer) error) error {
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("sysfile: creating pending file for %s: %w", path, err)
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
		return fmt.Errorf("sysfile: closing writer for %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("sysfile: committing %s: %w", path, err)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
