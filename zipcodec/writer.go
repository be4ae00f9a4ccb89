// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package zipcodec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// Writer streams members into a ZIP archive. When the destination
// satisfies io.WriteSeeker, each member's local header is rewritten in
// place once its size and CRC are known; otherwise (e.g. stdout piped
// to a consumer) every member is written with the deferred-CRC bit set
// and a trailing data descriptor, per §4.1.e's "stable behavior on
// non-seekable stdout" requirement.
type Writer struct {
	w      io.Writer
	seeker io.WriteSeeker
	offset int64

	current *memberWriter
	central []centralRecord
	closed  bool
}

type centralRecord struct {
	name             string
	method           Method
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	localHeaderOff   int64
	modified         time.Time
	dataDescriptor   bool
}

// NewWriter returns a Writer over w. If w also implements
// io.WriteSeeker, local headers are patched in place after each member
// closes instead of relying on a data descriptor.
func NewWriter(w io.Writer) *Writer {
	zw := &Writer{w: w}
	if s, ok := w.(io.WriteSeeker); ok {
		zw.seeker = s
	}
	return zw
}

// Write implements io.Writer over the underlying destination, tracking
// the running byte offset used for local-header and central-directory
// bookkeeping. Callers normally use Create's returned writer instead;
// this exists so a memberWriter's countingWriter can wrap the archive
// itself for the "stored" method.
func (zw *Writer) Write(p []byte) (int, error) {
	n, err := zw.w.Write(p)
	zw.offset += int64(n)
	return n, err
}

// Create opens a new member for writing, implicitly closing any
// previously-open member. The returned Writer must be fully written
// before the next Create or Close call.
func (zw *Writer) Create(name string, method Method) (io.Writer, error) {
	if err := zw.finishCurrent(); err != nil {
		return nil, err
	}
	hdrOff := zw.offset

	hdr := make([]byte, 30)
	binary.LittleEndian.PutUint32(hdr[0:], sigLocalFile)
	binary.LittleEndian.PutUint16(hdr[4:], 20) // version needed
	binary.LittleEndian.PutUint16(hdr[6:], 0x0008) // bit 3: sizes/CRC in data descriptor
	binary.LittleEndian.PutUint16(hdr[8:], uint16(method))
	modDate, modTime := timeToDOS(time.Now())
	binary.LittleEndian.PutUint16(hdr[10:], modTime)
	binary.LittleEndian.PutUint16(hdr[12:], modDate)
	// CRC32/compressed/uncompressed sizes left zero; real values are
	// carried in the data descriptor (and, if seekable, patched back
	// into this header below).
	binary.LittleEndian.PutUint16(hdr[26:], uint16(len(name)))
	if _, err := zw.Write(hdr); err != nil {
		return nil, err
	}
	if _, err := zw.Write([]byte(name)); err != nil {
		return nil, err
	}

	mw := &memberWriter{zw: zw, name: name, method: method, headerOffset: hdrOff, sum: crc32.NewIEEE()}
	switch method {
	case MethodStored:
		mw.out = countingWriter{w: zw, n: &mw.compressedSize}
	case MethodDeflate:
		fw, err := flate.NewWriter(countingWriter{w: zw, n: &mw.compressedSize}, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		mw.flate = fw
		mw.out = fw
	default:
		return nil, fmt.Errorf("zipcodec: unsupported compression method %d", method)
	}
	zw.current = mw
	return mw, nil
}

func (zw *Writer) finishCurrent() error {
	if zw.current == nil {
		return nil
	}
	mw := zw.current
	zw.current = nil
	return mw.close()
}

type countingWriter struct {
	w io.Writer
	n *uint64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += uint64(n)
	return n, err
}

type memberWriter struct {
	zw               *Writer
	name             string
	method           Method
	headerOffset     int64
	out              io.Writer
	flate            *flate.Writer
	sum              uint32Hash
	uncompressedSize uint64
	compressedSize   uint64
	closed           bool
}

func (mw *memberWriter) Write(p []byte) (int, error) {
	mw.sum.Write(p)
	mw.uncompressedSize += uint64(len(p))
	return mw.out.Write(p)
}

func (mw *memberWriter) close() error {
	if mw.closed {
		return nil
	}
	mw.closed = true
	if mw.flate != nil {
		if err := mw.flate.Close(); err != nil {
			return err
		}
	}
	crc := mw.sum.Sum32()

	zw := mw.zw
	usedDescriptor := zw.seeker == nil
	if zw.seeker != nil {
		cur, err := zw.seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		patch := make([]byte, 12)
		binary.LittleEndian.PutUint32(patch[0:], crc)
		binary.LittleEndian.PutUint32(patch[4:], uint32(mw.compressedSize))
		binary.LittleEndian.PutUint32(patch[8:], uint32(mw.uncompressedSize))
		if _, err := zw.seeker.Seek(mw.headerOffset+14, io.SeekStart); err != nil {
			return err
		}
		if _, err := zw.seeker.Write(patch); err != nil {
			return err
		}
		if _, err := zw.seeker.Seek(cur, io.SeekStart); err != nil {
			return err
		}
		// Clear the deferred-CRC flag now that the header holds real values.
		if _, err := zw.seeker.Seek(mw.headerOffset+6, io.SeekStart); err != nil {
			return err
		}
		if _, err := zw.seeker.Write([]byte{0, 0}); err != nil {
			return err
		}
		if _, err := zw.seeker.Seek(cur, io.SeekStart); err != nil {
			return err
		}
	} else {
		descr := make([]byte, 16)
		binary.LittleEndian.PutUint32(descr[0:], sigDataDescr)
		binary.LittleEndian.PutUint32(descr[4:], crc)
		binary.LittleEndian.PutUint32(descr[8:], uint32(mw.compressedSize))
		binary.LittleEndian.PutUint32(descr[12:], uint32(mw.uncompressedSize))
		if _, err := zw.Write(descr); err != nil {
			return err
		}
	}

	zw.central = append(zw.central, centralRecord{
		name:             mw.name,
		method:           mw.method,
		crc32:            crc,
		compressedSize:   mw.compressedSize,
		uncompressedSize: mw.uncompressedSize,
		localHeaderOff:   mw.headerOffset,
		modified:         time.Now(),
		dataDescriptor:   usedDescriptor,
	})
	return nil
}

func timeToDOS(t time.Time) (date, dtime uint16) {
	y := t.Year() - 1980
	if y < 0 {
		y = 0
	}
	date = uint16(y<<9) | uint16(t.Month())<<5 | uint16(t.Day())
	dtime = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, dtime
}

// Close finalizes the archive: closes any open member, then writes
// the central directory and EOCD record.
func (zw *Writer) Close() error {
	if zw.closed {
		return nil
	}
	zw.closed = true
	if err := zw.finishCurrent(); err != nil {
		return err
	}

	cdStart := zw.offset
	for _, rec := range zw.central {
		buf := make([]byte, 46)
		binary.LittleEndian.PutUint32(buf[0:], sigCentralDir)
		binary.LittleEndian.PutUint16(buf[4:], 20) // version made by
		binary.LittleEndian.PutUint16(buf[6:], 20) // version needed
		var flags uint16
		if rec.dataDescriptor {
			flags = 0x0008
		}
		binary.LittleEndian.PutUint16(buf[8:], flags)
		binary.LittleEndian.PutUint16(buf[10:], uint16(rec.method))
		d, tm := timeToDOS(rec.modified)
		binary.LittleEndian.PutUint16(buf[12:], tm)
		binary.LittleEndian.PutUint16(buf[14:], d)
		binary.LittleEndian.PutUint32(buf[16:], rec.crc32)
		binary.LittleEndian.PutUint32(buf[20:], uint32(rec.compressedSize))
		binary.LittleEndian.PutUint32(buf[24:], uint32(rec.uncompressedSize))
		binary.LittleEndian.PutUint16(buf[28:], uint16(len(rec.name)))
		binary.LittleEndian.PutUint32(buf[42:], uint32(rec.localHeaderOff))
		if _, err := zw.Write(buf); err != nil {
			return err
		}
		if _, err := zw.Write([]byte(rec.name)); err != nil {
			return err
		}
	}
	cdSize := zw.offset - cdStart

	eocd := make([]byte, 22)
	binary.LittleEndian.PutUint32(eocd[0:], sigEOCD)
	binary.LittleEndian.PutUint16(eocd[8:], uint16(len(zw.central)))
	binary.LittleEndian.PutUint16(eocd[10:], uint16(len(zw.central)))
	binary.LittleEndian.PutUint32(eocd[12:], uint32(cdSize))
	binary.LittleEndian.PutUint32(eocd[16:], uint32(cdStart))
	_, err := zw.Write(eocd)
	return err
}
