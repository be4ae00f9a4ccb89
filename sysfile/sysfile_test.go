// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package sysfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lemenkov/pspp-sub019/dict"
)

func buildTestDictionary() *dict.Dictionary {
	d := dict.New()
	age := &dict.Variable{Name: "AGE", Print: dict.Format{Type: "F", Width: 8, Decimals: 0}, Write: dict.Format{Type: "F", Width: 8, Decimals: 0}}
	age.ValueLabels = []dict.ValueLabel{{Num: 1, Label: "one"}, {Num: 2, Label: "two"}}
	age.Missing.Discretes = []float64{-9}
	d.AddVariable(age)

	name := &dict.Variable{Name: "NAME", Width: 10, Print: dict.Format{Type: "A", Width: 10}, Write: dict.Format{Type: "A", Width: 10}}
	d.AddVariable(name)

	d.Weight = age
	return d
}

func writeAndReadBack(t *testing.T, compression Compression) (*Reader, []*dict.Case) {
	t.Helper()
	d := buildTestDictionary()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, d, WriterOptions{Compression: compression, ProductName: "pspp-sub019 test"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	cases := []*dict.Case{
		{Num: []float64{23, 0}, Str: []string{"", "Ada"}},
		{Num: []float64{dict.SystemMissing(), 0}, Str: []string{"", "Alan"}},
	}
	for _, c := range cases {
		if err := w.WriteCase(c); err != nil {
			t.Fatalf("WriteCase: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r, cases
}

func TestHeaderAndDictionaryRoundTrip(t *testing.T) {
	r, _ := writeAndReadBack(t, CompressionNone)
	d := r.Dictionary()
	if len(d.Variables) != 2 {
		t.Fatalf("got %d variables, want 2", len(d.Variables))
	}
	gotNames := []string{d.Variables[0].Name, d.Variables[1].Name}
	if diff := cmp.Diff([]string{"AGE", "NAME"}, gotNames); diff != "" {
		t.Fatalf("variable name order/content mismatch (-want +got):\n%s", diff)
	}
	if d.Variables[1].Width != 10 {
		t.Fatalf("NAME width = %d, want 10", d.Variables[1].Width)
	}
	if d.Weight == nil || d.Weight.Name != "AGE" {
		t.Fatalf("weight variable not round-tripped: %+v", d.Weight)
	}
	if len(d.Variables[0].ValueLabels) != 2 {
		t.Fatalf("got %d value labels on AGE, want 2", len(d.Variables[0].ValueLabels))
	}
}

func TestCaseRoundTripUncompressed(t *testing.T) {
	r, want := writeAndReadBack(t, CompressionNone)
	checkCases(t, r, want)
}

func TestCaseRoundTripBytecode(t *testing.T) {
	r, want := writeAndReadBack(t, CompressionBytecode)
	checkCases(t, r, want)
}

func TestCaseRoundTripZSAV(t *testing.T) {
	r, want := writeAndReadBack(t, CompressionZSAV)
	checkCases(t, r, want)
}

func TestVeryLongStringRoundTrip(t *testing.T) {
	d := dict.New()
	comments := &dict.Variable{
		Name:  "COMMENTS",
		Width: 300,
		Print: dict.Format{Type: "A", Width: 300},
		Write: dict.Format{Type: "A", Width: 300},
	}
	if err := d.AddVariable(comments); err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, d, WriterOptions{Compression: CompressionNone, ProductName: "pspp-sub019 test"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	long := ""
	for i := 0; i < 300; i++ {
		long += string(rune('a' + i%26))
	}
	if err := w.WriteCase(&dict.Case{Str: []string{long}}); err != nil {
		t.Fatalf("WriteCase: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rd := r.Dictionary()
	if len(rd.Variables) != 1 {
		t.Fatalf("got %d variables, want 1", len(rd.Variables))
	}
	got := rd.Variables[0]
	if got.Width != 300 {
		t.Fatalf("COMMENTS width = %d, want 300", got.Width)
	}

	c, err := r.ReadCase()
	if err != nil {
		t.Fatalf("ReadCase: %v", err)
	}
	if c.Str[0] != long {
		t.Fatalf("COMMENTS value mismatch: got %d bytes, want %d bytes", len(c.Str[0]), len(long))
	}
	if _, err := r.ReadCase(); err != io.EOF {
		t.Fatalf("ReadCase past end: got err %v, want io.EOF", err)
	}
}

func checkCases(t *testing.T, r *Reader, want []*dict.Case) {
	t.Helper()
	for i, w := range want {
		got, err := r.ReadCase()
		if err != nil {
			t.Fatalf("ReadCase %d: %v", i, err)
		}
		if got.Str[1] != w.Str[1] {
			t.Errorf("case %d: NAME = %q, want %q", i, got.Str[1], w.Str[1])
		}
		if dict.IsSystemMissing(w.Num[0]) {
			if !dict.IsSystemMissing(got.Num[0]) {
				t.Errorf("case %d: AGE = %v, want system-missing", i, got.Num[0])
			}
		} else if got.Num[0] != w.Num[0] {
			t.Errorf("case %d: AGE = %v, want %v", i, got.Num[0], w.Num[0])
		}
	}
	if _, err := r.ReadCase(); err != io.EOF {
		t.Fatalf("ReadCase past end: got err %v, want io.EOF", err)
	}
}
