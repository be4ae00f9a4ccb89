// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package sysfile

import (
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

// Bytecode command codes (§4.1.a): a compressed case stream is a
// sequence of 8-byte groups of 1-byte codes, each followed (for codes
// that need one) by an 8-byte literal from the uncompressed stream.
const (
	codeSystemMissing = 0
	codeLiteral       = 253 // value follows uncompressed, verbatim
	codeEOF           = 252
	codeAllSpaces     = 254

	// codeBiasOffset is the constant every other code (1..251) is
	// offset by: code - codeBiasOffset is the represented integer.
	// Unrelated to Header.Bias, which a reader/writer always forces to
	// the canonical 100.
	codeBiasOffset = 100
)

// bytecodeReader decodes a compressed case stream into raw 8-byte
// segments, one command group (8 codes) at a time.
type bytecodeReader struct {
	r     io.Reader
	order xendian.Order
	codes [8]byte
	pos   int
	atEOF bool
}

func newBytecodeReader(r io.Reader, order xendian.Order) *bytecodeReader {
	return &bytecodeReader{r: r, order: order, pos: 8}
}

// next returns the next 8-byte segment and whether the stream has
// ended.
func (b *bytecodeReader) next() (seg [8]byte, eof bool, err error) {
	for {
		if b.pos >= 8 {
			if b.atEOF {
				return seg, true, nil
			}
			if _, err := io.ReadFull(b.r, b.codes[:]); err != nil {
				if err == io.EOF {
					return seg, true, nil
				}
				return seg, false, fmt.Errorf("sysfile: reading bytecode command group: %w", err)
			}
			b.pos = 0
		}
		code := b.codes[b.pos]
		b.pos++
		switch code {
		case codeSystemMissing:
			xendian.PutUint64(seg[:], math.Float64bits(dict.SystemMissing()), b.order)
			return seg, false, nil
		case codeLiteral:
			if _, err := io.ReadFull(b.r, seg[:]); err != nil {
				return seg, false, fmt.Errorf("sysfile: reading bytecode literal: %w", err)
			}
			return seg, false, nil
		case codeAllSpaces:
			for i := range seg {
				seg[i] = ' '
			}
			return seg, false, nil
		case codeEOF:
			b.atEOF = true
			continue
		default:
			v := float64(int(code) - codeBiasOffset)
			xendian.PutUint64(seg[:], math.Float64bits(v), b.order)
			return seg, false, nil
		}
	}
}

// bytecodeWriter encodes raw 8-byte segments into a compressed case
// stream, coalescing small integers, all-spaces strings, and
// system-missing values into single command bytes and flushing
// command groups of 8 as they fill.
type bytecodeWriter struct {
	w     io.Writer
	order xendian.Order
	codes [8]byte
	lits  [][8]byte
	n     int
}

func newBytecodeWriter(w io.Writer, order xendian.Order) *bytecodeWriter {
	return &bytecodeWriter{w: w, order: order}
}

// putNumeric encodes one numeric case value.
func (b *bytecodeWriter) putNumeric(v float64) error {
	var seg [8]byte
	xendian.PutUint64(seg[:], math.Float64bits(v), b.order)
	if dict.IsSystemMissing(v) {
		return b.emit(codeSystemMissing, seg)
	}
	iv := int(v)
	if float64(iv) == v && iv+codeBiasOffset > 0 && iv+codeBiasOffset < codeEOF {
		return b.emit(byte(iv+codeBiasOffset), seg)
	}
	return b.emit(codeLiteral, seg)
}

// putString encodes one 8-byte string segment.
func (b *bytecodeWriter) putString(s [8]byte) error {
	for _, c := range s {
		if c != ' ' {
			return b.emit(codeLiteral, s)
		}
	}
	return b.emit(codeAllSpaces, s)
}

func (b *bytecodeWriter) emit(code byte, literal [8]byte) error {
	b.codes[b.n] = code
	if code == codeLiteral {
		b.lits = append(b.lits, literal)
	}
	b.n++
	if b.n == 8 {
		return b.flushGroup()
	}
	return nil
}

func (b *bytecodeWriter) flushGroup() error {
	if b.n == 0 {
		return nil
	}
	for i := b.n; i < 8; i++ {
		b.codes[i] = codeEOF
	}
	if _, err := b.w.Write(b.codes[:]); err != nil {
		return err
	}
	for _, lit := range b.lits {
		if _, err := b.w.Write(lit[:]); err != nil {
			return err
		}
	}
	b.lits = b.lits[:0]
	b.n = 0
	return nil
}

// close flushes any partial command group, padding it out with EOF
// codes.
func (b *bytecodeWriter) close() error {
	return b.flushGroup()
}

// newZSAVReader wraps a bytecodeReader around a zlib decompressor.
// Real PSPP's ZSAV format also stores a separate zlib-block offset
// map enabling seekable access into the compressed case stream; this
// package only supports sequential reads, so it skips that map and
// zlib-decompresses the case stream directly, documented as a
// simplification in DESIGN.md.
func newZSAVReader(r io.Reader, order xendian.Order) (*bytecodeReader, io.Closer, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("sysfile: opening ZSAV zlib stream: %w", err)
	}
	return newBytecodeReader(zr, order), zr, nil
}

// newZSAVWriter wraps a bytecodeWriter around a zlib compressor. The
// returned closer must be closed before the enclosing file is
// finalized, which flushes the zlib stream (the bytecode writer's own
// partial group must be closed first).
func newZSAVWriter(w io.Writer, order xendian.Order) (*bytecodeWriter, io.Closer, error) {
	zw := zlib.NewWriter(w)
	return newBytecodeWriter(zw, order), zw, nil
}
