// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package pcplus reads the SPSS/PC+ system file format (§4.1.c): a
// little-endian, directory-anchored layout with a single-byte
// compression opcode stream. This package is read-only; PC+ is a
// legacy import path, never a write target.
package pcplus

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/iohlp"
	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

const (
	directorySlots    = 32
	directoryEntrySize = 8
	directoryLen      = directorySlots * directoryEntrySize // 256 bytes

	headerSlot   = 0 // case count, variable count, weight index, product name
	variableSlot = 1 // fixed 8-byte {width, name} records, one per variable
	caseDataSlot = 2 // compressed case stream

	segmentWidth = 8
)

// sysMissingPattern is the exact 8-byte bit pattern a PC+ file spends
// on a system-missing numeric value, verbatim from spec.md §4.1.c.
var sysMissingPattern = [8]byte{0xf5, 0x1e, 0x26, 0x02, 0x8a, 0x8c, 0xed, 0xff}

const (
	opSysMissing = 0
	opLiteral    = 1
	// codes 2..95 are reserved by observation (per spec.md's design
	// notes) and never appear in any known file; treated as a hard
	// error rather than silently decoded.
	reservedCodeMax = 95
	// codes 96..255 are biased integers: the represented value is
	// code - biasOffset.
	biasOffset = 100
)

type directoryEntry struct {
	Offset uint32
	Length uint32
}

func readDirectory(buf []byte) ([directorySlots]directoryEntry, error) {
	var dir [directorySlots]directoryEntry
	if len(buf) < directoryLen {
		return dir, fmt.Errorf("pcplus: file shorter than the %d-byte directory", directoryLen)
	}
	for i := 0; i < directorySlots; i++ {
		off := i * directoryEntrySize
		dir[i] = directoryEntry{
			Offset: xendian.Uint32(buf[off:off+4], xendian.Little),
			Length: xendian.Uint32(buf[off+4:off+8], xendian.Little),
		}
	}
	return dir, nil
}

func (e directoryEntry) slice(buf []byte) ([]byte, error) {
	end := int(e.Offset) + int(e.Length)
	if e.Offset == 0 && e.Length == 0 {
		return nil, nil
	}
	if end > len(buf) || int(e.Offset) > len(buf) {
		return nil, fmt.Errorf("pcplus: directory entry {offset=%d, length=%d} out of range (file is %d bytes)", e.Offset, e.Length, len(buf))
	}
	return buf[e.Offset:end], nil
}

// Reader holds an entire PC+ file in memory (or memory-mapped) and
// exposes its dictionary and case stream. Unlike sysfile.Reader, the
// directory requires random access to the header/variable/case
// regions, so there is no streaming constructor.
type Reader struct {
	buf       []byte
	dict      *dict.Dictionary
	caseBytes []byte
	pos       int // byte offset into caseBytes for the next ReadCase
	unmap     func()
}

// NewReader parses buf (a complete PC+ file already in memory) into a
// dictionary and positions the reader at the start of the case
// stream.
func NewReader(buf []byte) (*Reader, error) {
	dir, err := readDirectory(buf)
	if err != nil {
		return nil, err
	}

	headerBytes, err := dir[headerSlot].slice(buf)
	if err != nil {
		return nil, fmt.Errorf("pcplus: reading header slot: %w", err)
	}
	if len(headerBytes) < 12 {
		return nil, fmt.Errorf("pcplus: header slot too short (%d bytes, want >= 12)", len(headerBytes))
	}
	caseCount := int32(xendian.Uint32(headerBytes[0:4], xendian.Little))
	varCount := int32(xendian.Uint32(headerBytes[4:8], xendian.Little))
	weightIndex := int32(xendian.Uint32(headerBytes[8:12], xendian.Little))
	_ = caseCount // informational only; ReadCase relies on io.EOF from the case stream instead

	varBytes, err := dir[variableSlot].slice(buf)
	if err != nil {
		return nil, fmt.Errorf("pcplus: reading variable slot: %w", err)
	}
	if len(varBytes) < int(varCount)*directoryEntrySize {
		return nil, fmt.Errorf("pcplus: variable slot too short for %d variables", varCount)
	}

	d := dict.New()
	d.SegmentWidth = segmentWidth
	for i := int32(0); i < varCount; i++ {
		rec := varBytes[i*directoryEntrySize : (i+1)*directoryEntrySize]
		width := int(rec[0])
		name := trimName(rec[1:8])
		v := &dict.Variable{
			Name:  name,
			Width: width,
			Print: dict.Format{Type: formatTypeFor(width), Width: formatWidthFor(width)},
			Write: dict.Format{Type: formatTypeFor(width), Width: formatWidthFor(width)},
		}
		if err := d.AddVariable(v); err != nil {
			return nil, fmt.Errorf("pcplus: adding variable %q: %w", name, err)
		}
	}
	if weightIndex > 0 && int(weightIndex) <= len(d.Variables) {
		d.Weight = d.Variables[weightIndex-1]
	}

	caseBytes, err := dir[caseDataSlot].slice(buf)
	if err != nil {
		return nil, fmt.Errorf("pcplus: reading case-data slot: %w", err)
	}

	return &Reader{buf: buf, dict: d, caseBytes: caseBytes}, nil
}

// NewReaderFromFile memory-maps path and parses it; Close releases the
// mapping.
func NewReaderFromFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcplus: opening %s: %w", path, err)
	}
	defer f.Close()
	p, unmap, err := iohlp.Mmap(f)
	if err != nil {
		return nil, fmt.Errorf("pcplus: mapping %s: %w", path, err)
	}
	r, err := NewReader(p)
	if err != nil {
		unmap()
		return nil, err
	}
	r.unmap = unmap
	return r, nil
}

// NewReaderFromReader buffers all of r and parses it; prefer
// NewReaderFromFile when the input is a regular file, since the
// directory's random-access slots are naturally served by a memory
// map instead of a full read into the Go heap.
func NewReaderFromReader(r io.Reader) (*Reader, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pcplus: reading file: %w", err)
	}
	return NewReader(buf)
}

// Close releases the memory mapping, if this Reader owns one.
func (pr *Reader) Close() error {
	if pr.unmap != nil {
		pr.unmap()
	}
	return nil
}

// Dictionary returns the parsed dictionary.
func (pr *Reader) Dictionary() *dict.Dictionary { return pr.dict }

func trimName(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == ' ' {
		n--
	}
	return string(b[:n])
}

func formatTypeFor(width int) string {
	if width > 0 {
		return "A"
	}
	return "F"
}

func formatWidthFor(width int) int {
	if width > 0 {
		return width
	}
	return 8
}

// ReadCase decodes the next case from the compressed opcode stream, or
// returns io.EOF once every variable's segments across the case-data
// region have been consumed.
func (pr *Reader) ReadCase() (*dict.Case, error) {
	if pr.pos >= len(pr.caseBytes) {
		return nil, io.EOF
	}
	c := dict.NewCase(pr.dict)
	for i, v := range pr.dict.Variables {
		segments := v.SegmentCount(segmentWidth)
		var strBuf []byte
		for seg := 0; seg < segments; seg++ {
			raw, err := pr.readSegment()
			if err != nil {
				return nil, err
			}
			if seg == 0 {
				if v.IsString() {
					strBuf = append(strBuf, raw[:]...)
				} else {
					c.Num[i] = decodeNumeric(raw)
				}
			} else if v.IsString() {
				// continuation slots extend the string; extra bytes
				// beyond v.Width are trimmed below.
				strBuf = append(strBuf, raw[:]...)
			}
			// Non-first segments of a numeric variable never occur
			// (SegmentCount is always 1 for numerics); continuation
			// segments past a string's own width are read but ignored
			// per spec.md's "extra slots must be ignored".
		}
		if v.IsString() {
			if len(strBuf) > v.Width {
				strBuf = strBuf[:v.Width]
			}
			c.Str[i] = trimTrailingSpaces(string(strBuf))
		}
	}
	return c, nil
}

func trimTrailingSpaces(s string) string {
	n := len(s)
	for n > 0 && s[n-1] == ' ' {
		n--
	}
	return s[:n]
}

// readSegment decodes one opcode and its payload (if any) into an
// 8-byte segment.
func (pr *Reader) readSegment() ([8]byte, error) {
	var seg [8]byte
	if pr.pos >= len(pr.caseBytes) {
		return seg, fmt.Errorf("pcplus: case stream truncated mid-case")
	}
	code := pr.caseBytes[pr.pos]
	pr.pos++
	switch {
	case code == opSysMissing:
		seg = sysMissingPattern
		return seg, nil
	case code == opLiteral:
		if pr.pos+8 > len(pr.caseBytes) {
			return seg, fmt.Errorf("pcplus: case stream truncated reading literal")
		}
		copy(seg[:], pr.caseBytes[pr.pos:pr.pos+8])
		pr.pos += 8
		return seg, nil
	case code <= reservedCodeMax:
		return seg, fmt.Errorf("pcplus: reserved compression code %d at offset %d", code, pr.pos-1)
	default:
		v := float64(int(code) - biasOffset)
		xendian.PutUint64(seg[:], math.Float64bits(v), xendian.Little)
		return seg, nil
	}
}

// decodeNumeric converts an 8-byte segment to a float64, recognizing
// the PC+ system-missing bit pattern before falling back to a native
// little-endian IEEE 754 interpretation.
func decodeNumeric(seg [8]byte) float64 {
	if seg == sysMissingPattern {
		return dict.SystemMissing()
	}
	return math.Float64frombits(xendian.Uint64(seg[:], xendian.Little))
}
