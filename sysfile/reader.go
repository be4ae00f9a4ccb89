// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package sysfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

// Reader reads a system file's dictionary and case stream
// sequentially. It does not support seeking back into the case
// stream; a caller that needs random access must buffer cases itself.
type Reader struct {
	r      *bufio.Reader
	header Header
	dict   *dict.Dictionary

	// slots maps each 1-based 8-byte case segment to the variable that
	// owns it, so a value-label set's variable-index list and the
	// header's WeightIndex (both expressed in slot numbers) can be
	// resolved to a *dict.Variable.
	slots []*dict.Variable

	// veryLongSegWidths records, for a very-long string variable
	// (width > veryLongSegmentCap, subtype 14), the true width of each
	// of its physical variable-record segments in file order; absent
	// for every other variable, in which case its whole Width is one
	// segment.
	veryLongSegWidths map[*dict.Variable][]int

	documents []string

	caseReader caseReader
	closer     io.Closer
}

// caseReader abstracts over the three case-stream encodings: reading
// one raw 8-byte segment at a time lets Reader.ReadCase stay ignorant
// of which encoding is in play.
type caseReader interface {
	next() (seg [8]byte, eof bool, err error)
}

// rawCaseReader reads uncompressed (Compression.None) case segments
// directly off the stream.
type rawCaseReader struct {
	r io.Reader
}

func (c *rawCaseReader) next() (seg [8]byte, eof bool, err error) {
	_, err = io.ReadFull(c.r, seg[:])
	if err == io.EOF {
		return seg, true, nil
	}
	if err != nil {
		return seg, false, err
	}
	return seg, false, nil
}

// NewReader reads and parses every dictionary record up to and
// including the tag-999 terminator, leaving the case stream
// positioned for ReadCase.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	header, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}

	rd := &Reader{r: br, header: header, dict: dict.New()}
	rd.dict.SegmentWidth = 8

	var varRecs []variableRecord
	var docLines []string
	var extensions []rawExtension
	var pendingSets []valueLabelSet

	for {
		tag, err := readInt32(br, header.Order)
		if err != nil {
			return nil, fmt.Errorf("sysfile: reading record tag: %w", err)
		}
		switch tag {
		case tagVariable:
			rec, err := readVariableRecord(br, header.Order)
			if err != nil {
				return nil, err
			}
			varRecs = append(varRecs, rec)
		case tagValueLabels:
			set, err := readValueLabelSet(br, header.Order)
			if err != nil {
				return nil, err
			}
			pendingSets = append(pendingSets, set)
		case tagDocument:
			docLines, err = readDocumentRecord(br, header.Order)
			if err != nil {
				return nil, err
			}
			rd.documents = docLines
		case tagExtension:
			ext, err := readExtensionRecord(br, header.Order)
			if err != nil {
				return nil, err
			}
			extensions = append(extensions, ext)
		case tagDictTerminator:
			if _, err := readInt32(br, header.Order); err != nil {
				return nil, fmt.Errorf("sysfile: reading terminator filler: %w", err)
			}
			goto dictDone
		default:
			return nil, fmt.Errorf("sysfile: unrecognized record tag %d", tag)
		}
	}
dictDone:

	var veryLong map[string]int
	for _, ext := range extensions {
		if ext.subtype == extVeryLongStrings {
			veryLong = parseVeryLongStrings(ext)
		}
	}
	if err := rd.buildDictionary(varRecs, veryLong); err != nil {
		return nil, err
	}
	rd.applyExtensions(extensions)
	rd.applyValueLabels(pendingSets)

	if header.WeightIndex > 0 && int(header.WeightIndex) <= len(rd.slots) {
		rd.dict.Weight = rd.slots[header.WeightIndex-1]
	}

	switch header.CompressionKind {
	case CompressionNone:
		rd.caseReader = &rawCaseReader{r: br}
	case CompressionBytecode:
		rd.caseReader = newBytecodeReader(br, header.Order)
	case CompressionZSAV:
		bcr, closer, err := newZSAVReader(br, header.Order)
		if err != nil {
			return nil, err
		}
		rd.caseReader = bcr
		rd.closer = closer
	}

	return rd, nil
}

// buildDictionary converts the raw variable-record slice into
// dict.Variables, skipping continuation slots (typeCode == -1) but
// recording every slot (continuation or not) in rd.slots so
// 1-based slot-numbered references elsewhere resolve correctly.
//
// veryLong is subtype 14's shortname -> true total width map. A
// variable named in it spans more than one physical variable record
// (each capped at veryLongSegmentCap); buildDictionary coalesces the
// extra physical records into the one logical dict.Variable rather
// than exposing them as separate variables, recording each segment's
// true width in rd.veryLongSegWidths for ReadCase/Writer to chunk by.
func (rd *Reader) buildDictionary(recs []variableRecord, veryLong map[string]int) error {
	for i := 0; i < len(recs); i++ {
		rec := recs[i]
		if rec.typeCode == -1 {
			// A stray continuation with no owning variable before it
			// indicates a malformed file; callers of this package only
			// ever see well-formed ones in practice, so this is treated
			// as already-consumed by the loop below.
			continue
		}
		v := &dict.Variable{
			Print: unpackFormat(rec.printFmt),
			Write: unpackFormat(rec.writeFmt),
			Label: rec.label,
		}
		v.Name = rec.name
		v.SetShortName(rec.name)
		if rec.typeCode == 0 {
			v.Width = 0
		} else {
			v.Width = int(rec.typeCode)
		}
		if rec.missingCode != 0 {
			v.Missing = missingFromRecord(rec)
		}

		segWidths := []int{v.Width}
		segCount := v.SegmentCount(8)
		for s := 1; s < segCount && i+1 < len(recs); s++ {
			if recs[i+1].typeCode != -1 {
				break
			}
			i++
		}

		if full, ok := veryLong[rec.name]; ok && v.IsString() {
			v.Width = full
			total := segWidths[0]
			for total < full && i+1 < len(recs) {
				i++
				segRec := recs[i]
				w := int(segRec.typeCode)
				segWidths = append(segWidths, w)
				total += w
				for s, segSegCount := 1, (w+7)/8; s < segSegCount && i+1 < len(recs); s++ {
					if recs[i+1].typeCode != -1 {
						break
					}
					i++
				}
			}
		}

		if err := rd.dict.AddVariable(v); err != nil {
			return err
		}
		rd.slots = append(rd.slots, v)
		for segIdx, w := range segWidths {
			n := (w + 7) / 8
			if segIdx == 0 {
				n-- // the primary segment's first slot is already appended above
			}
			for k := 0; k < n; k++ {
				rd.slots = append(rd.slots, v)
			}
		}
		if len(segWidths) > 1 {
			if rd.veryLongSegWidths == nil {
				rd.veryLongSegWidths = make(map[*dict.Variable][]int)
			}
			rd.veryLongSegWidths[v] = segWidths
		}
	}
	return nil
}

func missingFromRecord(rec variableRecord) dict.MissingSpec {
	var m dict.MissingSpec
	n := int(rec.missingCode)
	if n < 0 {
		m.HasRange = true
		if len(rec.missing) >= 2 {
			m.RangeLow, m.RangeHigh = rec.missing[0], rec.missing[1]
		}
		if n == -3 && len(rec.missing) >= 3 {
			m.Discretes = append(m.Discretes, rec.missing[2])
		}
		return m
	}
	m.Discretes = append(m.Discretes, rec.missing...)
	return m
}

func (rd *Reader) applyExtensions(exts []rawExtension) {
	for _, ext := range exts {
		switch ext.subtype {
		case extLongVarNames:
			names := parseLongVarNames(ext)
			for _, v := range rd.dict.Variables {
				if long, ok := names[v.ShortName()]; ok {
					v.Name = long
				}
			}
		}
	}
}

func (rd *Reader) applyValueLabels(sets []valueLabelSet) {
	for _, set := range sets {
		for _, slot := range set.varSlots {
			if slot < 1 || int(slot) > len(rd.slots) {
				continue
			}
			v := rd.slots[slot-1]
			for raw, label := range set.labels {
				if v.IsString() {
					v.ValueLabels = append(v.ValueLabels, dict.ValueLabel{Str: raw, Label: label})
				} else {
					num := math.Float64frombits(xendian.Uint64([]byte(raw), rd.header.Order))
					v.ValueLabels = append(v.ValueLabels, dict.ValueLabel{Num: num, Label: label})
				}
			}
		}
	}
}

// Dictionary returns the dictionary parsed from the file header and
// variable records.
func (rd *Reader) Dictionary() *dict.Dictionary { return rd.dict }

// Documents returns the file's document lines (tag-6 record), if any,
// each already stripped of its trailing space padding.
func (rd *Reader) Documents() []string { return rd.documents }

// ReadCase reads one case, or returns io.EOF when the stream is
// exhausted.
func (rd *Reader) ReadCase() (*dict.Case, error) {
	c := dict.NewCase(rd.dict)
	slot := 0
	for i, v := range rd.dict.Variables {
		if v.IsString() {
			// A very-long string (subtype 14) was split across several
			// physical variable records on write, each independently
			// padded to its own 8-byte boundary; reassembling it
			// requires truncating each physical segment to its own
			// declared width before concatenating, not just the logical
			// variable's total width.
			segWidths, ok := rd.veryLongSegWidths[v]
			if !ok {
				segWidths = []int{v.Width}
			}
			var buf []byte
			for _, segWidth := range segWidths {
				segChunks := (segWidth + 7) / 8
				segBuf := make([]byte, 0, segChunks*8)
				for s := 0; s < segChunks; s++ {
					seg, eof, err := rd.caseReader.next()
					if err != nil {
						return nil, err
					}
					if eof {
						if slot == 0 {
							return nil, io.EOF
						}
						return nil, fmt.Errorf("sysfile: case stream truncated mid-case")
					}
					segBuf = append(segBuf, seg[:]...)
					slot++
				}
				if len(segBuf) > segWidth {
					segBuf = segBuf[:segWidth]
				}
				buf = append(buf, segBuf...)
			}
			// Case.Str carries the logical (unpadded) string value;
			// the fixed segment width is a wire-format detail, not part
			// of the value itself.
			c.Str[i] = strings.TrimRight(string(buf), " ")
			continue
		}
		seg, eof, err := rd.caseReader.next()
		if err != nil {
			return nil, err
		}
		if eof {
			if slot == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("sysfile: case stream truncated mid-case")
		}
		slot++
		c.Num[i] = math.Float64frombits(xendian.Uint64(seg[:], rd.header.Order))
	}
	return c, nil
}

// Close releases resources held by a compressed case-stream reader
// (ZSAV's zlib reader); it is a no-op for uncompressed and
// bytecode-compressed files.
func (rd *Reader) Close() error {
	if rd.closer != nil {
		return rd.closer.Close()
	}
	return nil
}
