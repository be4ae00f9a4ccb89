// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package sysfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

// Record tags (§4.1.a): the 32-bit little/native-endian integer
// leading every dictionary record after the file header.
const (
	tagVariable      = 2
	tagValueLabels   = 3
	tagLabelVars     = 4
	tagDocument      = 6
	tagExtension     = 7
	tagDictTerminator = 999
)

// Extension record subtypes this codec knows by name. Reader applies
// subtypes 13 and 14; every other subtype is read in full as an opaque
// byte blob and then discarded, and Writer does not re-emit it, so a
// round trip drops those records.
const (
	extFloatInfo     = 4  // sysmis/highest/lowest sentinels
	extVarDisplay    = 11 // measure/width/alignment per variable
	extLongVarNames  = 13 // shortname=longname\t... pairs
	extVeryLongStrings = 14 // shortname=width\x00... pairs, string > 255 segmentation
	extLongStringValueLabels = 21
)

// rawExtension is one extension record in its on-disk shape: subtype,
// per-unit size, count, and the raw payload bytes. Reader reads every
// extension record into one; Writer builds the records it emits
// (subtypes 13 and 14) in this shape.
type rawExtension struct {
	subtype int32
	size    int32
	count   int32
	payload []byte
}

// variableRecord is the on-disk shape of a tag-2 record: one 8-byte
// numeric/string segment slot. A string variable wider than 8 bytes is
// split across `ceil(width/8)` consecutive variableRecords whose
// continuation entries (width == -1) carry no name/label/missing data
// of their own and must be skipped when building the logical
// dict.Variable list.
type variableRecord struct {
	typeCode int32 // 0 = numeric, 1..255 = string width, -1 = continuation
	hasLabel bool
	missingCode int32 // 0, 1, 2, 3 discretes, or -2/-3 range forms
	printFmt  int32
	writeFmt  int32
	name      string // 8 bytes, space-padded on disk
	label     string
	missing   []float64
}

func readInt32(r io.Reader, order xendian.Order) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(xendian.Uint32(b[:], order)), nil
}

func writeInt32(w io.Writer, v int32, order xendian.Order) error {
	var b [4]byte
	xendian.PutUint32(b[:], uint32(v), order)
	_, err := w.Write(b[:])
	return err
}

func readFloat64(r io.Reader, order xendian.Order) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(xendian.Uint64(b[:], order)), nil
}

func writeFloat64(w io.Writer, v float64, order xendian.Order) error {
	var b [8]byte
	xendian.PutUint64(b[:], math.Float64bits(v), order)
	_, err := w.Write(b[:])
	return err
}

func readPaddedString(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), " "), nil
}

func writePaddedString(w io.Writer, s string, n int) error {
	_, err := w.Write([]byte(padRight(s, n)))
	return err
}

// align4 rounds n up to the next multiple of 4, the padding unit
// variable labels and extension record payloads use.
func align4(n int) int { return (n + 3) &^ 3 }

// readVariableRecord reads one tag-2 record's body (the tag itself
// already consumed by the caller).
func readVariableRecord(r io.Reader, order xendian.Order) (variableRecord, error) {
	var rec variableRecord
	var err error
	if rec.typeCode, err = readInt32(r, order); err != nil {
		return rec, fmt.Errorf("sysfile: variable record type: %w", err)
	}
	hasLabel, err := readInt32(r, order)
	if err != nil {
		return rec, err
	}
	rec.hasLabel = hasLabel != 0
	if rec.missingCode, err = readInt32(r, order); err != nil {
		return rec, err
	}
	printFmt, err := readInt32(r, order)
	if err != nil {
		return rec, err
	}
	writeFmt, err := readInt32(r, order)
	if err != nil {
		return rec, err
	}
	rec.printFmt, rec.writeFmt = printFmt, writeFmt
	if rec.name, err = readPaddedString(r, 8); err != nil {
		return rec, err
	}
	if rec.hasLabel {
		labelLen, err := readInt32(r, order)
		if err != nil {
			return rec, err
		}
		buf := make([]byte, align4(int(labelLen)))
		if _, err := io.ReadFull(r, buf); err != nil {
			return rec, err
		}
		rec.label = string(buf[:labelLen])
	}
	nMissing := int(rec.missingCode)
	hasRange := nMissing < 0
	if hasRange {
		nMissing = -nMissing
	}
	for i := 0; i < nMissing; i++ {
		v, err := readFloat64(r, order)
		if err != nil {
			return rec, err
		}
		rec.missing = append(rec.missing, v)
	}
	return rec, nil
}

func writeVariableRecord(w io.Writer, rec variableRecord, order xendian.Order) error {
	if err := writeInt32(w, tagVariable, order); err != nil {
		return err
	}
	if err := writeInt32(w, rec.typeCode, order); err != nil {
		return err
	}
	hasLabel := int32(0)
	if rec.hasLabel {
		hasLabel = 1
	}
	if err := writeInt32(w, hasLabel, order); err != nil {
		return err
	}
	if err := writeInt32(w, rec.missingCode, order); err != nil {
		return err
	}
	if err := writeInt32(w, rec.printFmt, order); err != nil {
		return err
	}
	if err := writeInt32(w, rec.writeFmt, order); err != nil {
		return err
	}
	if err := writePaddedString(w, rec.name, 8); err != nil {
		return err
	}
	if rec.hasLabel {
		if err := writeInt32(w, int32(len(rec.label)), order); err != nil {
			return err
		}
		if err := writePaddedString(w, rec.label, align4(len(rec.label))); err != nil {
			return err
		}
	}
	for _, v := range rec.missing {
		if err := writeFloat64(w, v, order); err != nil {
			return err
		}
	}
	return nil
}

// readValueLabelSet reads a tag-3 record's body plus its mandatory
// paired tag-4 record (variable-index list) immediately following.
func readValueLabelSet(r *bufio.Reader, order xendian.Order) (valueLabelSet, error) {
	var set valueLabelSet
	set.labels = make(map[string]string)
	count, err := readInt32(r, order)
	if err != nil {
		return set, err
	}
	for i := int32(0); i < count; i++ {
		var raw [8]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return set, err
		}
		labelLen, err := r.ReadByte()
		if err != nil {
			return set, err
		}
		total := align4(1+int(labelLen)) - 1
		buf := make([]byte, total)
		if _, err := io.ReadFull(r, buf); err != nil {
			return set, err
		}
		label := strings.TrimRight(string(buf[:labelLen]), " ")
		set.labels[string(raw[:])] = label
	}
	tag, err := readInt32(r, order)
	if err != nil {
		return set, err
	}
	if tag != tagLabelVars {
		return set, fmt.Errorf("sysfile: expected label-variables record (tag %d), got %d", tagLabelVars, tag)
	}
	varCount, err := readInt32(r, order)
	if err != nil {
		return set, err
	}
	for i := int32(0); i < varCount; i++ {
		idx, err := readInt32(r, order)
		if err != nil {
			return set, err
		}
		set.varSlots = append(set.varSlots, idx)
	}
	return set, nil
}

func writeValueLabelSet(w io.Writer, set valueLabelSet, varIndices []int32, order xendian.Order) error {
	if err := writeInt32(w, tagValueLabels, order); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(set.labels)), order); err != nil {
		return err
	}
	for raw, label := range set.labels {
		if _, err := w.Write([]byte(raw)); err != nil {
			return err
		}
		n := len(label)
		if n > 255 {
			n = 255
		}
		if err := writeByte(w, byte(n)); err != nil {
			return err
		}
		pad := align4(1+n) - 1
		if err := writePaddedString(w, label[:n], pad); err != nil {
			return err
		}
	}
	if err := writeInt32(w, tagLabelVars, order); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(varIndices)), order); err != nil {
		return err
	}
	for _, idx := range varIndices {
		if err := writeInt32(w, idx, order); err != nil {
			return err
		}
	}
	return nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

// readDocumentRecord reads a tag-6 record: a line count followed by
// that many fixed 80-byte lines.
func readDocumentRecord(r io.Reader, order xendian.Order) ([]string, error) {
	n, err := readInt32(r, order)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		line, err := readPaddedString(r, 80)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func writeDocumentRecord(w io.Writer, lines []string, order xendian.Order) error {
	if len(lines) == 0 {
		return nil
	}
	if err := writeInt32(w, tagDocument, order); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(lines)), order); err != nil {
		return err
	}
	for _, line := range lines {
		if err := writePaddedString(w, line, 80); err != nil {
			return err
		}
	}
	return nil
}

// readExtensionRecord reads a tag-7 record's subtype header and
// payload in full, leaving structural interpretation (subtypes 13 and
// 14) to callers that recognize the subtype.
func readExtensionRecord(r io.Reader, order xendian.Order) (rawExtension, error) {
	var ext rawExtension
	var err error
	if ext.subtype, err = readInt32(r, order); err != nil {
		return ext, err
	}
	if ext.size, err = readInt32(r, order); err != nil {
		return ext, err
	}
	if ext.count, err = readInt32(r, order); err != nil {
		return ext, err
	}
	n := int(ext.size) * int(ext.count)
	ext.payload = make([]byte, n)
	if _, err := io.ReadFull(r, ext.payload); err != nil {
		return ext, fmt.Errorf("sysfile: reading extension subtype %d payload: %w", ext.subtype, err)
	}
	return ext, nil
}

func writeExtensionRecord(w io.Writer, ext rawExtension, order xendian.Order) error {
	if err := writeInt32(w, tagExtension, order); err != nil {
		return err
	}
	if err := writeInt32(w, ext.subtype, order); err != nil {
		return err
	}
	if err := writeInt32(w, ext.size, order); err != nil {
		return err
	}
	if err := writeInt32(w, ext.count, order); err != nil {
		return err
	}
	_, err := w.Write(ext.payload)
	return err
}

// longVarNamesExtension builds subtype-13's payload: a
// "\tshortname=longname"-joined list, one pair per variable, including
// variables whose long Name equals their legacy ShortName.
func longVarNamesExtension(d *dict.Dictionary) rawExtension {
	var pairs []string
	for _, v := range d.Variables {
		pairs = append(pairs, v.ShortName()+"="+v.Name)
	}
	payload := []byte(strings.Join(pairs, "\t"))
	return rawExtension{subtype: extLongVarNames, size: 1, count: int32(len(payload)), payload: payload}
}

func parseLongVarNames(ext rawExtension) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(string(ext.payload), "\t") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			m[kv[0]] = kv[1]
		}
	}
	return m
}

// veryLongSegmentCap is the widest a single variable record's typeCode
// can declare a string (§4.1.a); a logical string wider than this is
// split across that many physical variable records, coalesced back
// into one dict.Variable using subtype-14's declared total width.
const veryLongSegmentCap = 255

// splitVeryLongWidths divides a logical string width into the
// per-record widths Writer emits for it: as many veryLongSegmentCap
// chunks as needed, then the remainder.
func splitVeryLongWidths(width int) []int {
	if width <= veryLongSegmentCap {
		return []int{width}
	}
	var widths []int
	remaining := width
	for remaining > veryLongSegmentCap {
		widths = append(widths, veryLongSegmentCap)
		remaining -= veryLongSegmentCap
	}
	return append(widths, remaining)
}

// veryLongEntry names one very-long-string variable and its true
// total width, as recorded in subtype 14.
type veryLongEntry struct {
	Name  string
	Width int
}

// veryLongStringsExtension builds subtype-14's payload: a
// tab-separated list of "name=00300\x00"-shaped entries, one per
// variable whose logical width exceeds veryLongSegmentCap.
func veryLongStringsExtension(entries []veryLongEntry) rawExtension {
	var parts []string
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s=%05d\x00", e.Name, e.Width))
	}
	payload := []byte(strings.Join(parts, "\t"))
	return rawExtension{subtype: extVeryLongStrings, size: 1, count: int32(len(payload)), payload: payload}
}

// parseVeryLongStrings recovers subtype 14's shortname -> true total
// width map.
func parseVeryLongStrings(ext rawExtension) map[string]int {
	m := make(map[string]int)
	for _, entry := range strings.Split(string(ext.payload), "\t") {
		entry = strings.TrimRight(entry, "\x00")
		if entry == "" {
			continue
		}
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 {
			continue
		}
		w, err := strconv.Atoi(kv[1])
		if err != nil {
			continue
		}
		m[kv[0]] = w
	}
	return m
}

// dictionaryTerminator writes the final tag-999 record: a fixed
// trailing zero filler word per the canonical layout.
func writeDictionaryTerminator(w io.Writer, order xendian.Order) error {
	if err := writeInt32(w, tagDictTerminator, order); err != nil {
		return err
	}
	return writeInt32(w, 0, order)
}

// valueLabelSet is one tag-3 + its paired tag-4 record: a set of
// value/label pairs and the variables they're bound to, identified by
// case-segment slot rather than by name.
type valueLabelSet struct {
	labels   map[string]string // disk-format 8-byte value representation -> label
	varSlots []int32           // 1-based case-segment slots this label set applies to
}

// formatCode maps a dict.Format.Type letter to the packed numeric
// format code system files use (print/write format fields); codes
// follow the small well-known PSPP format table, not an exhaustive
// one, and unrecognized types fall back to the generic numeric "F".
var formatCode = map[string]int32{
	"A":     1,
	"AHEX":  2,
	"COMMA": 3,
	"DOLLAR": 4,
	"F":     5,
	"N":     6,
	"E":     7,
	"DATE":  20,
	"TIME":  21,
	"DATETIME": 22,
	"PCT":   29,
}

var formatName = func() map[int32]string {
	m := make(map[int32]string, len(formatCode))
	for k, v := range formatCode {
		m[v] = k
	}
	return m
}()

// packFormat encodes a dict.Format into the (type<<16 | width<<8 |
// decimals) layout used by variable-record print/write fields.
func packFormat(f dict.Format) int32 {
	code, ok := formatCode[f.Type]
	if !ok {
		code = formatCode["F"]
	}
	return code<<16 | int32(f.Width)<<8 | int32(f.Decimals)
}

func unpackFormat(v int32) dict.Format {
	code := (v >> 16) & 0xff
	width := (v >> 8) & 0xff
	decimals := v & 0xff
	typ, ok := formatName[code]
	if !ok {
		typ = "F"
	}
	return dict.Format{Type: typ, Width: int(width), Decimals: int(decimals)}
}
