// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package pcplus

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/internal/xendian"
)

// buildTestFile assembles a minimal synthetic PC+ file: a 256-byte
// directory pointing at a header slot, a variable-records slot, and a
// compressed case-data slot, laid out exactly as Reader expects.
func buildTestFile(t *testing.T) []byte {
	t.Helper()

	// Two variables: AGE (numeric) and NAME (string, width 3: one
	// 8-byte segment, no continuation needed).
	var varRecs bytes.Buffer
	varRecs.Write([]byte{0, 'A', 'G', 'E', ' ', ' ', ' ', ' '})
	varRecs.Write([]byte{3, 'N', 'A', 'M', 'E', ' ', ' ', ' '})

	var header bytes.Buffer
	put32 := func(v int32) {
		var b [4]byte
		xendian.PutUint32(b[:], uint32(v), xendian.Little)
		header.Write(b[:])
	}
	put32(3) // case count
	put32(2) // variable count
	put32(1) // weight index: AGE

	var caseData bytes.Buffer
	writeLiteral := func(v float64) {
		caseData.WriteByte(opLiteral)
		var seg [8]byte
		xendian.PutUint64(seg[:], math.Float64bits(v), xendian.Little)
		caseData.Write(seg[:])
	}
	writeSysMissing := func() {
		caseData.WriteByte(opSysMissing)
	}
	writeString := func(s string) {
		caseData.WriteByte(opLiteral)
		var seg [8]byte
		copy(seg[:], s)
		for i := len(s); i < 8; i++ {
			seg[i] = ' '
		}
		caseData.Write(seg[:])
	}
	writeBiased := func(n int) {
		caseData.WriteByte(byte(n + biasOffset))
	}

	// Case 1: AGE=23 (literal), NAME="Ada"
	writeLiteral(23)
	writeString("Ada")
	// Case 2: AGE=system-missing, NAME="Alan" truncated to width 3 ("Ala")
	writeSysMissing()
	writeString("Ala")
	// Case 3: AGE=5 via the biased-integer opcode, NAME="Bob"
	writeBiased(5)
	writeString("Bob")

	const (
		directoryOffset = directoryLen
	)
	headerOffset := directoryOffset
	varOffset := headerOffset + header.Len()
	caseOffset := varOffset + varRecs.Len()

	var dir bytes.Buffer
	putEntry := func(offset, length int) {
		var b [8]byte
		xendian.PutUint32(b[0:4], uint32(offset), xendian.Little)
		xendian.PutUint32(b[4:8], uint32(length), xendian.Little)
		dir.Write(b[:])
	}
	putEntry(headerOffset, header.Len())
	putEntry(varOffset, varRecs.Len())
	putEntry(caseOffset, caseData.Len())
	for i := 3; i < directorySlots; i++ {
		putEntry(0, 0)
	}

	var file bytes.Buffer
	file.Write(dir.Bytes())
	file.Write(header.Bytes())
	file.Write(varRecs.Bytes())
	file.Write(caseData.Bytes())
	return file.Bytes()
}

func TestDictionaryFromDirectory(t *testing.T) {
	r, err := NewReader(buildTestFile(t))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	d := r.Dictionary()
	if len(d.Variables) != 2 {
		t.Fatalf("got %d variables, want 2", len(d.Variables))
	}
	gotNames := []string{d.Variables[0].Name, d.Variables[1].Name}
	wantNames := []string{"AGE", "NAME"}
	if diff := pretty.Compare(wantNames, gotNames); diff != "" {
		t.Fatalf("variable names mismatch (-want +got):\n%s", diff)
	}
	if d.Variables[1].Width != 3 {
		t.Fatalf("NAME width = %d, want 3", d.Variables[1].Width)
	}
	if d.Weight == nil || d.Weight.Name != "AGE" {
		t.Fatalf("weight variable not resolved: %+v", d.Weight)
	}
}

func TestReadCase(t *testing.T) {
	r, err := NewReader(buildTestFile(t))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	c1, err := r.ReadCase()
	if err != nil {
		t.Fatalf("ReadCase 1: %v", err)
	}
	if c1.Num[0] != 23 {
		t.Errorf("case 1 AGE = %v, want 23", c1.Num[0])
	}
	if c1.Str[1] != "Ada" {
		t.Errorf("case 1 NAME = %q, want %q", c1.Str[1], "Ada")
	}

	c2, err := r.ReadCase()
	if err != nil {
		t.Fatalf("ReadCase 2: %v", err)
	}
	if !dict.IsSystemMissing(c2.Num[0]) {
		t.Errorf("case 2 AGE = %v, want system-missing", c2.Num[0])
	}
	if c2.Str[1] != "Ala" {
		t.Errorf("case 2 NAME = %q, want %q", c2.Str[1], "Ala")
	}

	c3, err := r.ReadCase()
	if err != nil {
		t.Fatalf("ReadCase 3: %v", err)
	}
	if c3.Num[0] != 5 {
		t.Errorf("case 3 AGE = %v, want 5", c3.Num[0])
	}
	if c3.Str[1] != "Bob" {
		t.Errorf("case 3 NAME = %q, want %q", c3.Str[1], "Bob")
	}

	if _, err := r.ReadCase(); err != io.EOF {
		t.Fatalf("ReadCase past end: got %v, want io.EOF", err)
	}
}

func TestReservedCompressionCodeIsError(t *testing.T) {
	buf := buildTestFile(t)
	// Directory entry 2 points at the case-data slot; corrupt its
	// first opcode byte to a reserved value and confirm ReadCase
	// surfaces an error rather than silently decoding it.
	off := xendian.Uint32(buf[2*directoryEntrySize:2*directoryEntrySize+4], xendian.Little)
	buf[off] = 50 // inside the reserved 2..95 range

	r, err := NewReader(buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.ReadCase(); err == nil {
		t.Fatalf("ReadCase with reserved opcode: got nil error, want error")
	}
}
