// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package portable

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

func writeAndReadBack(t *testing.T) (*Reader, []*dict.Case) {
	t.Helper()
	d := buildTestDictionary()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, d, WriterOptions{Product: "pspp-sub019 test"})
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
	r, _ := writeAndReadBack(t)
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
	if len(d.Variables[0].Missing.Discretes) != 1 || d.Variables[0].Missing.Discretes[0] != -9 {
		t.Fatalf("AGE discrete missing values = %v, want [-9]", d.Variables[0].Missing.Discretes)
	}
}

func TestCaseRoundTrip(t *testing.T) {
	r, want := writeAndReadBack(t)
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

func TestRangeMissingVariants(t *testing.T) {
	d := dict.New()
	loThru := &dict.Variable{Name: "LOTHRU", Print: dict.Format{Type: "F", Width: 8}, Write: dict.Format{Type: "F", Width: 8}}
	loThru.Missing.HasRange = true
	loThru.Missing.RangeLow = negInf
	loThru.Missing.RangeHigh = 5
	d.AddVariable(loThru)

	thruHi := &dict.Variable{Name: "THRUHI", Print: dict.Format{Type: "F", Width: 8}, Write: dict.Format{Type: "F", Width: 8}}
	thruHi.Missing.HasRange = true
	thruHi.Missing.RangeLow = 90
	thruHi.Missing.RangeHigh = posInf
	d.AddVariable(thruHi)

	both := &dict.Variable{Name: "BOTH", Print: dict.Format{Type: "F", Width: 8}, Write: dict.Format{Type: "F", Width: 8}}
	both.Missing.HasRange = true
	both.Missing.RangeLow = 1
	both.Missing.RangeHigh = 9
	d.AddVariable(both)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, d, WriterOptions{Product: "pspp-sub019 test"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rd := r.Dictionary()

	v, _ := rd.Lookup("LOTHRU")
	if v.Missing.RangeLow != negInf || v.Missing.RangeHigh != 5 {
		t.Errorf("LOTHRU range = [%v, %v], want [-Inf, 5]", v.Missing.RangeLow, v.Missing.RangeHigh)
	}
	v, _ = rd.Lookup("THRUHI")
	if v.Missing.RangeLow != 90 || v.Missing.RangeHigh != posInf {
		t.Errorf("THRUHI range = [%v, %v], want [90, +Inf]", v.Missing.RangeLow, v.Missing.RangeHigh)
	}
	v, _ = rd.Lookup("BOTH")
	if v.Missing.RangeLow != 1 || v.Missing.RangeHigh != 9 {
		t.Errorf("BOTH range = [%v, %v], want [1, 9]", v.Missing.RangeLow, v.Missing.RangeHigh)
	}
}
