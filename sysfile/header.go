// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package sysfile implements the SPSS system file (.sav) codec
// (§4.1.a): a sequence of typed records — file header, variable,
// value-label, document, extension, dictionary terminator — followed
// by a case stream that is either raw, bytecode-compressed, or
// zlib-compressed (ZSAV). Readers tolerate every historical variant;
// Writer always produces the canonical modern one (native endian,
// bias 100, magic "$FL2").
package sysfile

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

// Compression identifies a system file's case-stream encoding.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionBytecode
	CompressionZSAV
)

const (
	magicFL2 = "$FL2"
	magicFL3 = "$FL3"

	// headerRecordSize is the fixed portion of the file-header record:
	// 4-byte magic, 60-byte product name, 32-bit layout code, 32-bit
	// nominal case size, 32-bit compression flag, 32-bit weight index,
	// 32-bit case count, 64-bit bias, 9-byte creation date, 9-byte
	// creation time, 64-byte file label, 3-byte padding.
	headerRecordSize = 4 + 60 + 4 + 4 + 4 + 4 + 4 + 8 + 9 + 9 + 64 + 3
)

// Header is the fixed file-header record (§4.1.a).
type Header struct {
	Magic           string
	ProductName     string
	LayoutCode      int32
	NominalCaseSize int32
	CompressionKind Compression
	WeightIndex     int32
	CaseCount       int32 // -1 if unknown
	Bias            float64
	CreationDate    string
	CreationTime    string
	FileLabel       string
	Order           xendian.Order
}

// probeOrder returns the byte order under which the 4-byte layout-code
// field (at offset 64 in the header) decodes to 2 or 3 — the only
// valid values — trying the three orders a real PC+/mainframe-origin
// system file might use. This is the "determine both [magic and
// endianness] by probing" requirement (§4.1.a).
func probeOrder(layoutCodeBytes []byte) (xendian.Order, error) {
	for _, o := range []xendian.Order{xendian.Little, xendian.Big, xendian.VAX} {
		v := xendian.Uint32(layoutCodeBytes, o)
		if v == 2 || v == 3 {
			return o, nil
		}
	}
	return 0, fmt.Errorf("sysfile: layout code %x is not 2 or 3 under any known byte order", layoutCodeBytes)
}

// validMagic reports whether the first 4 bytes of a header are a
// recognized system-file magic, tolerating the historical "$FL3"
// variant alongside the canonical "$FL2".
func validMagic(b []byte) bool {
	s := string(b)
	return s == magicFL2 || s == magicFL3
}

// ReadHeader reads and decodes the fixed file-header record, probing
// both magic variant and byte order before trusting any other field
// (§4.1.a).
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerRecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("sysfile: reading file header: %w", err)
	}
	if !validMagic(buf[0:4]) {
		return Header{}, fmt.Errorf("sysfile: bad magic %q", buf[0:4])
	}
	order, err := probeOrder(buf[64:68])
	if err != nil {
		return Header{}, err
	}

	h := Header{
		Magic:           string(buf[0:4]),
		ProductName:     strings.TrimRight(string(buf[4:64]), " "),
		LayoutCode:      int32(xendian.Uint32(buf[64:68], order)),
		NominalCaseSize: int32(xendian.Uint32(buf[68:72], order)),
		WeightIndex:     int32(xendian.Uint32(buf[76:80], order)),
		CaseCount:       int32(xendian.Uint32(buf[80:84], order)),
		CreationDate:    strings.TrimRight(string(buf[92:101]), " "),
		CreationTime:    strings.TrimRight(string(buf[101:110]), " "),
		FileLabel:       strings.TrimRight(string(buf[110:174]), " "),
		Order:           order,
	}

	switch compressFlag := int32(xendian.Uint32(buf[72:76], order)); compressFlag {
	case 0:
		h.CompressionKind = CompressionNone
	case 1:
		h.CompressionKind = CompressionBytecode
	case 2:
		h.CompressionKind = CompressionZSAV
	default:
		return Header{}, fmt.Errorf("sysfile: unrecognized compression flag %d", compressFlag)
	}

	h.Bias = math.Float64frombits(xendian.Uint64(buf[84:92], order))

	return h, nil
}

// WriteHeader writes h in the canonical writer form: native (little)
// endian, magic "$FL2", bias forced to 100 regardless of h.Bias
// (§4.1.a writer obligations).
func WriteHeader(w io.Writer, h Header) error {
	buf := make([]byte, headerRecordSize)
	copy(buf[0:4], magicFL2)
	copy(buf[4:64], padRight(h.ProductName, 60))
	order := xendian.Little

	xendian.PutUint32(buf[64:68], uint32(2), order)
	xendian.PutUint32(buf[68:72], uint32(h.NominalCaseSize), order)

	var compressFlag int32
	switch h.CompressionKind {
	case CompressionNone:
		compressFlag = 0
	case CompressionBytecode:
		compressFlag = 1
	case CompressionZSAV:
		compressFlag = 2
	}
	xendian.PutUint32(buf[72:76], uint32(compressFlag), order)
	xendian.PutUint32(buf[76:80], uint32(h.WeightIndex), order)
	xendian.PutUint32(buf[80:84], uint32(h.CaseCount), order)
	xendian.PutUint64(buf[84:92], math.Float64bits(100), order)
	copy(buf[92:101], padRight(h.CreationDate, 9))
	copy(buf[101:110], padRight(h.CreationTime, 9))
	copy(buf[110:174], padRight(h.FileLabel, 64))
	// buf[174:177] stays zero padding.

	_, err := w.Write(buf)
	return err
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
