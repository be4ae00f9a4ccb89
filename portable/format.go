// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package portable implements the SPSS portable file codec (§4.1.b):
// a line-oriented, 80-column text format carrying base-30 numeric
// fields and single-letter tagged records. Readers tolerate ragged
// whitespace and a missing trailing newline; Writer always emits
// CRLF-terminated, space-padded 80-column lines ending in a `Z` EOF
// marker.
package portable

import (
	"fmt"
	"math"
	"strings"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// formatCode maps a dict.Format.Type letter to the small numeric
// format code a portable file's variable records use; not an
// exhaustive table of every PSPP format, but enough for the common
// print/write formats this package's writer emits and a reader needs
// to recognize.
var formatCode = map[string]int32{
	"A":        1,
	"AHEX":     2,
	"COMMA":    3,
	"DOLLAR":   4,
	"F":        5,
	"N":        6,
	"E":        7,
	"DATE":     20,
	"TIME":     21,
	"DATETIME": 22,
	"PCT":      29,
}

var formatName = func() map[int32]string {
	m := make(map[int32]string, len(formatCode))
	for k, v := range formatCode {
		m[v] = k
	}
	return m
}()

const (
	lineWidth = 80
	digits    = "0123456789ABCDEFGHIJKLMNOPQRST" // base-30 alphabet
)

// lineReader turns the raw byte stream into a single logical rune
// stream, the way the format's readers have always worked: column
// boundaries are invisible to the tag/field grammar, only the `Z` EOF
// marker and the fixed header regions are line-position sensitive.
type lineReader struct {
	runes []rune
	pos   int
}

func newLineReader(body []rune) *lineReader {
	return &lineReader{runes: body}
}

func (l *lineReader) peek() (rune, bool) {
	if l.pos >= len(l.runes) {
		return 0, false
	}
	return l.runes[l.pos], true
}

func (l *lineReader) next() (rune, bool) {
	r, ok := l.peek()
	if ok {
		l.pos++
	}
	return r, ok
}

// skipSpaces advances past any run of plain spaces; the grammar
// tolerates spaces inside numeric fields and around any token.
func (l *lineReader) skipSpaces() {
	for {
		r, ok := l.peek()
		if !ok || r != ' ' {
			return
		}
		l.pos++
	}
}

// readUntil collects runes up to (not including) the next occurrence
// of any stop rune, skipping embedded spaces.
func (l *lineReader) readUntil(stop ...rune) (string, error) {
	var sb strings.Builder
	isStop := func(r rune) bool {
		for _, s := range stop {
			if r == s {
				return true
			}
		}
		return false
	}
	for {
		r, ok := l.next()
		if !ok {
			return "", fmt.Errorf("portable: unexpected end of file while reading field")
		}
		if isStop(r) {
			l.pos--
			return sb.String(), nil
		}
		if r == ' ' {
			continue
		}
		sb.WriteRune(r)
	}
}

// readBase30Number reads a run of base-30 digits (with an optional
// leading `-`, an optional `.`-delimited fraction, and an optional
// `+`/`-`-signed exponent after another `.`), up to the field
// terminator `/`. The system-missing sentinel is the literal `*.`
// prefix, handled by the caller before calling this.
func (l *lineReader) readBase30Number() (float64, error) {
	s, err := l.readUntil('/')
	if err != nil {
		return 0, err
	}
	if _, ok := l.next(); !ok { // consume the trailing '/'
		return 0, fmt.Errorf("portable: numeric field missing terminating /")
	}
	return parseBase30(s)
}

// parseBase30 decodes digits (optionally "-"-prefixed, optionally
// containing one "." separating the integer part from a base-30
// fractional part, optionally followed by a second "."-delimited
// signed base-30 exponent, a power of 30) into a float64.
func parseBase30(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("portable: empty numeric field")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 3)
	intPart := parts[0]
	var fracPart, expPart string
	if len(parts) > 1 {
		fracPart = parts[1]
	}
	if len(parts) > 2 {
		expPart = parts[2]
	}

	val, err := digitsToFloat(intPart)
	if err != nil {
		return 0, err
	}
	if fracPart != "" {
		frac, err := digitsToFloat(fracPart)
		if err != nil {
			return 0, err
		}
		val += frac / pow30(len(fracPart))
	}
	if expPart != "" {
		expNeg := false
		if strings.HasPrefix(expPart, "-") {
			expNeg = true
			expPart = expPart[1:]
		} else if strings.HasPrefix(expPart, "+") {
			expPart = expPart[1:]
		}
		expVal, err := digitsToFloat(expPart)
		if err != nil {
			return 0, err
		}
		e := int(expVal)
		if expNeg {
			e = -e
		}
		val *= pow30(e)
	}
	if neg {
		val = -val
	}
	return val, nil
}

func digitsToFloat(s string) (float64, error) {
	var v float64
	for _, r := range s {
		d := strings.IndexRune(digits, r)
		if d < 0 {
			return 0, fmt.Errorf("portable: invalid base-30 digit %q", r)
		}
		v = v*30 + float64(d)
	}
	return v, nil
}

func pow30(n int) float64 {
	neg := n < 0
	if neg {
		n = -n
	}
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 30
	}
	if neg {
		return 1 / v
	}
	return v
}

// readCountedString reads a string field: a base-30 length, a `/`
// terminator, then exactly that many literal characters (spaces
// included verbatim, unlike a numeric field).
func (l *lineReader) readCountedString() (string, error) {
	n, err := l.readBase30Number()
	if err != nil {
		return "", fmt.Errorf("portable: string field length: %w", err)
	}
	count := int(n)
	var sb strings.Builder
	for i := 0; i < count; i++ {
		r, ok := l.next()
		if !ok {
			return "", fmt.Errorf("portable: string field truncated, wanted %d chars", count)
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

// readTag reads the single-character record tag, skipping leading
// whitespace first.
func (l *lineReader) readTag() (rune, bool) {
	l.skipSpaces()
	return l.next()
}

// systemMissingLiteral is the portable-file numeric system-missing
// token: a `*.` prefix in place of any digits, still `/`-terminated.
const systemMissingLiteral = "*."

// writeNumber formats an integer as a base-30 numeric field (integer
// digits only; values that may carry a fraction, such as case values
// and missing-value bounds, go through writeFloat). It always ends
// with the `/` terminator.
func writeNumber(n int64) string {
	return formatBase30(n) + "/"
}

// writeCountedString formats a string field: its base-30 length, `/`,
// then the literal content.
func writeCountedString(s string) string {
	return formatBase30(int64(len(s))) + "/" + s
}

// fracDigits bounds how many base-30 digits writeFloat emits after
// the decimal point; 15 digits of base-30 precision (~73 bits) safely
// round-trips any float64 this package writes.
const fracDigits = 15

// writeFloat formats an arbitrary (possibly fractional, possibly
// negative) float64 as a base-30 numeric field, `/`-terminated.
// Callers must check dict.IsSystemMissing first and emit
// systemMissingLiteral instead when it applies.
func writeFloat(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	intPart := int64(v)
	frac := v - float64(intPart)

	s := formatBase30(intPart)
	if frac > 0 {
		var digitsBuf strings.Builder
		for i := 0; i < fracDigits && frac > 0; i++ {
			frac *= 30
			d := int(frac)
			digitsBuf.WriteByte(digits[d])
			frac -= float64(d)
		}
		s += "." + digitsBuf.String()
	}
	if neg {
		s = "-" + s
	}
	return s + "/"
}

// formatBase30 encodes an integer magnitude in base-30, most
// significant digit first; 0 encodes as "0".
func formatBase30(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%30]}, buf...)
		n /= 30
	}
	s := string(buf)
	if neg {
		s = "-" + s
	}
	return s
}
