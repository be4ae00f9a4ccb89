package dict

import "testing"

func TestSystemMissingEqualsItself(t *testing.T) {
	x := SystemMissing()
	if x != x {
		t.Fatalf("system-missing does not compare equal to itself: %v", x)
	}
	if !IsSystemMissing(x) {
		t.Fatalf("IsSystemMissing(SystemMissing()) = false")
	}
	if IsSystemMissing(1.0) {
		t.Fatalf("IsSystemMissing(1.0) = true")
	}
}

func TestAddVariableRenamesOnCollision(t *testing.T) {
	d := New()
	if err := d.AddVariable(&Variable{Name: "age"}); err != nil {
		t.Fatal(err)
	}
	if err := d.AddVariable(&Variable{Name: "AGE"}); err != nil {
		t.Fatal(err)
	}
	if d.Variables[0].Name != "AGE" {
		t.Fatalf("first variable name = %q, want AGE", d.Variables[0].Name)
	}
	if d.Variables[1].Name != "@AGE" {
		t.Fatalf("colliding variable name = %q, want @AGE", d.Variables[1].Name)
	}
	if _, ok := d.Lookup("age"); !ok {
		t.Fatalf("Lookup is not case-insensitive")
	}
}

func TestMissingSpecRange(t *testing.T) {
	m := MissingSpec{HasRange: true, RangeLow: 90, RangeHigh: 99, Discretes: []float64{-1}}
	if !m.Contains(95) {
		t.Errorf("95 should be in range [90,99]")
	}
	if !m.Contains(-1) {
		t.Errorf("-1 should be a declared discrete")
	}
	if m.Contains(50) {
		t.Errorf("50 should not be missing")
	}
}

func TestSegmentCount(t *testing.T) {
	v := &Variable{Width: 20}
	if n := v.SegmentCount(8); n != 3 {
		t.Fatalf("SegmentCount(8) for width 20 = %d, want 3", n)
	}
	numeric := &Variable{Width: 0}
	if n := numeric.SegmentCount(8); n != 1 {
		t.Fatalf("SegmentCount for numeric = %d, want 1", n)
	}
}

func TestEffectiveLabel(t *testing.T) {
	v := &Variable{ValueLabels: []ValueLabel{{Num: 1, Label: "Male"}, {Num: 2, Label: "Female"}}}
	if lbl, ok := v.EffectiveLabel(1, ""); !ok || lbl != "Male" {
		t.Fatalf("EffectiveLabel(1) = %q, %v", lbl, ok)
	}
	if _, ok := v.EffectiveLabel(3, ""); ok {
		t.Fatalf("EffectiveLabel(3) should not resolve")
	}
}

func TestShortNameFallsBackToTruncatedName(t *testing.T) {
	v := &Variable{Name: "SHORTNAME"}
	if got := v.ShortName(); got != "SHORTNAM" {
		t.Fatalf("ShortName() = %q, want %q", got, "SHORTNAM")
	}
	v.SetShortName("VAR00001")
	if got := v.ShortName(); got != "VAR00001" {
		t.Fatalf("ShortName() after SetShortName = %q, want %q", got, "VAR00001")
	}
}

func TestShortNameEqualsNameWhenShort(t *testing.T) {
	v := &Variable{Name: "AGE"}
	if got := v.ShortName(); got != "AGE" {
		t.Fatalf("ShortName() = %q, want %q", got, "AGE")
	}
}

func TestCaseWidthWithStrings(t *testing.T) {
	d := New()
	d.AddVariable(&Variable{Name: "id"})
	d.AddVariable(&Variable{Name: "name", Width: 16})
	if w := d.CaseWidth(); w != 1+2 {
		t.Fatalf("CaseWidth() = %d, want 3", w)
	}
}
