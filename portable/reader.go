// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package portable

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/lemenkov/pspp-sub019/dict"
)

const (
	splashLen      = 200
	translationLen = 256 // bytes 200..455
	magicOffset    = 456
	magicLiteral   = "SPSSPORT"
	headerLen      = magicOffset + len(magicLiteral) // 464
)

// Reader reads a portable file's dictionary and case stream
// sequentially.
type Reader struct {
	l    *lineReader
	dict *dict.Dictionary

	splash      string
	translation [translationLen]byte
}

// readLogicalStream collapses the file's physical 80-column lines
// into one continuous rune stream: short lines are space-padded to 80
// columns, long ones truncated, matching the reader tolerance §4.1.b
// requires ("not require a trailing newline", "tolerate... short
// lines").
func readLogicalStream(r io.Reader) ([]rune, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var out []rune
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		rs := []rune(line)
		if len(rs) > lineWidth {
			rs = rs[:lineWidth]
		}
		for len(rs) < lineWidth {
			rs = append(rs, ' ')
		}
		out = append(out, rs...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("portable: reading lines: %w", err)
	}
	return out, nil
}

// NewReader parses a portable file's header and dictionary records up
// to and including the data-begin (`F`) record, leaving the reader
// positioned to read cases.
func NewReader(r io.Reader) (*Reader, error) {
	stream, err := readLogicalStream(r)
	if err != nil {
		return nil, err
	}
	if len(stream) < headerLen {
		return nil, fmt.Errorf("portable: file shorter than fixed header (%d runes)", headerLen)
	}

	pr := &Reader{dict: dict.New()}
	pr.splash = string(stream[:splashLen])
	for i := 0; i < translationLen; i++ {
		pr.translation[i] = byte(stream[splashLen+i])
	}
	magic := string(stream[magicOffset:headerLen])
	if magic != magicLiteral {
		return nil, fmt.Errorf("portable: bad magic %q, want %q", magic, magicLiteral)
	}

	pr.l = newLineReader(stream[headerLen:])
	if err := pr.readDictionary(); err != nil {
		return nil, err
	}
	return pr, nil
}

// readDictionary consumes tag records 1 (product) through 8/9/A/B
// (missing values), C (label), D (value labels), E (documents), up to
// and including F (data begin).
func (pr *Reader) readDictionary() error {
	var pending *dict.Variable
	var weightName string
	for {
		tag, ok := pr.l.readTag()
		if !ok {
			return fmt.Errorf("portable: unexpected end of file in dictionary")
		}
		switch tag {
		case '1': // product
			if _, err := pr.l.readCountedString(); err != nil {
				return err
			}
		case '2': // author
			if _, err := pr.l.readCountedString(); err != nil {
				return err
			}
		case '3': // subproduct
			if _, err := pr.l.readCountedString(); err != nil {
				return err
			}
		case '4': // variable count
			if _, err := pr.l.readBase30Number(); err != nil {
				return err
			}
		case '5': // precision (base-30 digits of precision)
			if _, err := pr.l.readBase30Number(); err != nil {
				return err
			}
		case '6': // weight variable name, resolved at F once variables exist
			name, err := pr.l.readCountedString()
			if err != nil {
				return err
			}
			weightName = name
		case '7': // variable
			v, err := pr.readVariable()
			if err != nil {
				return err
			}
			pending = v
			if err := pr.dict.AddVariable(v); err != nil {
				return err
			}
		case '8': // single discrete missing value
			if pending == nil {
				return fmt.Errorf("portable: missing-value record with no preceding variable")
			}
			if err := pr.readDiscreteMissing(pending); err != nil {
				return err
			}
		case '9', 'A', 'B': // range missing-value variants
			if pending == nil {
				return fmt.Errorf("portable: missing-value record with no preceding variable")
			}
			if err := pr.readRangeMissing(pending, tag); err != nil {
				return err
			}
		case 'C': // variable label
			if pending == nil {
				return fmt.Errorf("portable: label record with no preceding variable")
			}
			label, err := pr.l.readCountedString()
			if err != nil {
				return err
			}
			pending.Label = label
		case 'D': // value labels
			if err := pr.readValueLabels(); err != nil {
				return err
			}
		case 'E': // documents
			if _, err := pr.l.readCountedString(); err != nil {
				return err
			}
		case 'F': // data begin
			if v, ok := pr.dict.Lookup(weightName); ok && weightName != "" {
				pr.dict.Weight = v
			}
			return nil
		default:
			return fmt.Errorf("portable: unrecognized record tag %q", tag)
		}
	}
}

func (pr *Reader) readVariable() (*dict.Variable, error) {
	width, err := pr.l.readBase30Number()
	if err != nil {
		return nil, fmt.Errorf("portable: variable width: %w", err)
	}
	name, err := pr.l.readCountedString()
	if err != nil {
		return nil, err
	}
	printFmt, err := pr.readFormatSpec()
	if err != nil {
		return nil, err
	}
	writeFmt, err := pr.readFormatSpec()
	if err != nil {
		return nil, err
	}
	v := &dict.Variable{Name: name, Width: int(width), Print: printFmt, Write: writeFmt}
	return v, nil
}

// readFormatSpec reads a (type, width, decimals) triple of base-30
// integers, the portable-file print/write format encoding.
func (pr *Reader) readFormatSpec() (dict.Format, error) {
	typeCode, err := pr.l.readBase30Number()
	if err != nil {
		return dict.Format{}, err
	}
	width, err := pr.l.readBase30Number()
	if err != nil {
		return dict.Format{}, err
	}
	decimals, err := pr.l.readBase30Number()
	if err != nil {
		return dict.Format{}, err
	}
	typ, ok := formatName[int32(typeCode)]
	if !ok {
		typ = "F"
	}
	return dict.Format{Type: typ, Width: int(width), Decimals: int(decimals)}, nil
}

func (pr *Reader) readDiscreteMissing(v *dict.Variable) error {
	if v.IsString() {
		s, err := pr.l.readCountedString()
		if err != nil {
			return err
		}
		v.Missing.DiscreteStr = append(v.Missing.DiscreteStr, s)
		return nil
	}
	n, err := pr.readNumericOrMissing()
	if err != nil {
		return err
	}
	v.Missing.Discretes = append(v.Missing.Discretes, n)
	return nil
}

// readRangeMissing reads tag 9 (LO THRU high, one bound on disk), tag
// A (low THRU HI, one bound), or tag B (low THRU high, two bounds).
func (pr *Reader) readRangeMissing(v *dict.Variable, tag rune) error {
	v.Missing.HasRange = true
	switch tag {
	case '9':
		high, err := pr.readNumericOrMissing()
		if err != nil {
			return err
		}
		v.Missing.RangeLow, v.Missing.RangeHigh = negInf, high
	case 'A':
		low, err := pr.readNumericOrMissing()
		if err != nil {
			return err
		}
		v.Missing.RangeLow, v.Missing.RangeHigh = low, posInf
	case 'B':
		low, err := pr.readNumericOrMissing()
		if err != nil {
			return err
		}
		high, err := pr.readNumericOrMissing()
		if err != nil {
			return err
		}
		v.Missing.RangeLow, v.Missing.RangeHigh = low, high
	}
	return nil
}

// readNumericOrMissing reads a numeric field that may be the literal
// `*.` system-missing token in place of digits, together with the `/`
// terminator that follows it.
func (pr *Reader) readNumericOrMissing() (float64, error) {
	if r, ok := pr.l.peek(); ok && r == '*' {
		pr.l.next()
		if r2, ok := pr.l.next(); !ok || r2 != '.' {
			return 0, fmt.Errorf("portable: malformed system-missing token")
		}
		if r3, ok := pr.l.peek(); ok && r3 == '/' {
			pr.l.next()
		}
		return dict.SystemMissing(), nil
	}
	return pr.l.readBase30Number()
}

func (pr *Reader) readValueLabels() error {
	count, err := pr.l.readBase30Number()
	if err != nil {
		return err
	}
	var vars []*dict.Variable
	for i := 0; i < int(count); i++ {
		name, err := pr.l.readCountedString()
		if err != nil {
			return err
		}
		v, ok := pr.dict.Lookup(name)
		if !ok {
			return fmt.Errorf("portable: value-label record references unknown variable %q", name)
		}
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		return fmt.Errorf("portable: value-label record names no variables")
	}
	nLabels, err := pr.l.readBase30Number()
	if err != nil {
		return err
	}
	for i := 0; i < int(nLabels); i++ {
		var num float64
		var str string
		isString := len(vars) > 0 && vars[0].IsString()
		if isString {
			str, err = pr.l.readCountedString()
		} else {
			num, err = pr.readNumericOrMissing()
		}
		if err != nil {
			return err
		}
		label, err := pr.l.readCountedString()
		if err != nil {
			return err
		}
		for _, v := range vars {
			v.ValueLabels = append(v.ValueLabels, dict.ValueLabel{Num: num, Str: str, Label: label})
		}
	}
	return nil
}

// Dictionary returns the parsed dictionary.
func (pr *Reader) Dictionary() *dict.Dictionary { return pr.dict }

// ReadCase reads one case from the data section, or returns io.EOF
// once the `Z` end-of-file record is reached.
func (pr *Reader) ReadCase() (*dict.Case, error) {
	tag, ok := pr.l.peek()
	if !ok {
		return nil, io.EOF
	}
	if tag == 'Z' {
		return nil, io.EOF
	}
	c := dict.NewCase(pr.dict)
	for i, v := range pr.dict.Variables {
		if v.IsString() {
			s, err := pr.l.readCountedString()
			if err != nil {
				return nil, err
			}
			c.Str[i] = s
			continue
		}
		n, err := pr.readNumericOrMissing()
		if err != nil {
			return nil, err
		}
		c.Num[i] = n
	}
	return c, nil
}
