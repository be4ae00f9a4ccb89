// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package zipcodec implements a standalone ZIP reader and writer
// (§4.1.e): backward EOCD scan, central-directory walk, lazy
// name-indexed member access on read; streamed members with a
// data-descriptor fallback for non-seekable destinations on write.
package zipcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// Method is a ZIP compression method id.
type Method uint16

const (
	MethodStored  Method = 0
	MethodDeflate Method = 8
)

const (
	sigLocalFile   = 0x04034b50
	sigDataDescr   = 0x08074b50
	sigCentralDir  = 0x02014b50
	sigEOCD        = 0x06054b50
	eocdFixedSize  = 22
	maxCommentSize = 0xffff
)

// Entry describes one central-directory record.
type Entry struct {
	Name             string
	Method           Method
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Modified         time.Time

	localHeaderOffset int64
}

// Reader is a lazily-indexed ZIP archive reader.
type Reader struct {
	ra      io.ReaderAt
	size    int64
	entries []Entry
	byName  map[string]int
}

// StructuralError reports a byte offset and classification for a
// malformed archive (§4.1.f).
type StructuralError struct {
	Offset int64
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("zipcodec: malformed archive at offset %d: %s", e.Offset, e.Reason)
}

// ErrCRCMismatch is the distinguishable integrity error a caller may
// choose to downgrade to a warning (§4.1.f).
var ErrCRCMismatch = errors.New("zipcodec: CRC-32 mismatch")

// NewReader scans backward from the end of ra for the End-of-Central-
// Directory record, then walks the central directory once, indexing
// every member by name.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	eocdOff, count, cdOff, cdSize, err := locateEOCD(ra, size)
	if err != nil {
		return nil, err
	}
	_ = eocdOff

	buf := make([]byte, cdSize)
	if _, err := ra.ReadAt(buf, cdOff); err != nil {
		return nil, fmt.Errorf("zipcodec: reading central directory: %w", err)
	}

	r := &Reader{ra: ra, size: size, byName: make(map[string]int, count)}
	pos := 0
	for i := 0; i < int(count); i++ {
		if pos+46 > len(buf) {
			return nil, &StructuralError{Offset: cdOff + int64(pos), Reason: "truncated central directory record"}
		}
		if sig := binary.LittleEndian.Uint32(buf[pos:]); sig != sigCentralDir {
			return nil, &StructuralError{Offset: cdOff + int64(pos), Reason: "bad central directory signature"}
		}
		method := Method(binary.LittleEndian.Uint16(buf[pos+10:]))
		modTime := binary.LittleEndian.Uint16(buf[pos+12:])
		modDate := binary.LittleEndian.Uint16(buf[pos+14:])
		crc := binary.LittleEndian.Uint32(buf[pos+16:])
		compSize := binary.LittleEndian.Uint32(buf[pos+20:])
		uncompSize := binary.LittleEndian.Uint32(buf[pos+24:])
		nameLen := int(binary.LittleEndian.Uint16(buf[pos+28:]))
		extraLen := int(binary.LittleEndian.Uint16(buf[pos+30:]))
		commentLen := int(binary.LittleEndian.Uint16(buf[pos+32:]))
		localOff := int64(binary.LittleEndian.Uint32(buf[pos+42:]))

		nameStart := pos + 46
		if nameStart+nameLen > len(buf) {
			return nil, &StructuralError{Offset: cdOff + int64(pos), Reason: "truncated file name"}
		}
		name := string(buf[nameStart : nameStart+nameLen])

		e := Entry{
			Name:              name,
			Method:            method,
			CRC32:             crc,
			CompressedSize:    uint64(compSize),
			UncompressedSize:  uint64(uncompSize),
			Modified:          dosTimeToTime(modDate, modTime),
			localHeaderOffset: localOff,
		}
		r.byName[name] = len(r.entries)
		r.entries = append(r.entries, e)

		pos = nameStart + nameLen + extraLen + commentLen
	}
	return r, nil
}

// locateEOCD scans backward from the end of the archive for the EOCD
// signature, tolerating a trailing comment up to 64KiB.
func locateEOCD(ra io.ReaderAt, size int64) (eocdOff int64, count uint16, cdOff, cdSize int64, err error) {
	window := int64(eocdFixedSize + maxCommentSize)
	if window > size {
		window = size
	}
	buf := make([]byte, window)
	start := size - window
	if _, err := ra.ReadAt(buf, start); err != nil && err != io.EOF {
		return 0, 0, 0, 0, fmt.Errorf("zipcodec: reading EOCD window: %w", err)
	}
	idx := bytes.LastIndex(buf, []byte{0x50, 0x4b, 0x05, 0x06})
	if idx < 0 {
		return 0, 0, 0, 0, &StructuralError{Offset: size, Reason: "no End-of-Central-Directory record found"}
	}
	rec := buf[idx:]
	if len(rec) < eocdFixedSize {
		return 0, 0, 0, 0, &StructuralError{Offset: start + int64(idx), Reason: "truncated EOCD record"}
	}
	count = binary.LittleEndian.Uint16(rec[10:])
	cdSize = int64(binary.LittleEndian.Uint32(rec[12:]))
	cdOff = int64(binary.LittleEndian.Uint32(rec[16:]))
	return start + int64(idx), count, cdOff, cdSize, nil
}

func dosTimeToTime(date, t uint16) time.Time {
	year := int(date>>9) + 1980
	month := int(date>>5) & 0xf
	day := int(date) & 0x1f
	hour := int(t >> 11)
	min := int(t>>5) & 0x3f
	sec := (int(t) & 0x1f) * 2
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// Entries returns the archive's members in central-directory order.
func (r *Reader) Entries() []Entry { return r.entries }

// Lookup returns the entry named name, if present.
func (r *Reader) Lookup(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Open returns a reader over the named member's decompressed content,
// verifying its CRC-32 when a Read reaches the end of the member data
// (the Read that would return io.EOF). Stored and deflate are the only
// supported methods.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("zipcodec: no such member %q", name)
	}
	e := r.entries[i]

	hdr := make([]byte, 30)
	if _, err := r.ra.ReadAt(hdr, e.localHeaderOffset); err != nil {
		return nil, fmt.Errorf("zipcodec: reading local header for %q: %w", name, err)
	}
	if sig := binary.LittleEndian.Uint32(hdr); sig != sigLocalFile {
		return nil, &StructuralError{Offset: e.localHeaderOffset, Reason: "bad local file header signature"}
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:]))
	dataOff := e.localHeaderOffset + 30 + int64(nameLen) + int64(extraLen)

	sr := io.NewSectionReader(r.ra, dataOff, int64(e.CompressedSize))
	var raw io.Reader
	switch e.Method {
	case MethodStored:
		raw = sr
	case MethodDeflate:
		raw = flate.NewReader(sr)
	default:
		return nil, fmt.Errorf("zipcodec: unsupported compression method %d for %q", e.Method, name)
	}

	return &crcVerifyReader{r: raw, want: e.CRC32, sum: crc32.NewIEEE()}, nil
}

type crcVerifyReader struct {
	r    io.Reader
	sum  uint32Hash
	want uint32
	done bool
}

type uint32Hash interface {
	io.Writer
	Sum32() uint32
}

func (c *crcVerifyReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sum.Write(p[:n])
	}
	if err == io.EOF && !c.done {
		c.done = true
		if c.sum.Sum32() != c.want {
			return n, ErrCRCMismatch
		}
	}
	return n, err
}

func (c *crcVerifyReader) Close() error {
	if rc, ok := c.r.(io.Closer); ok {
		return rc.Close()
	}
	return nil
}
