package bitvec

import "testing"

func TestSetClearTest(t *testing.T) {
	v := New(130)
	if v.Len() != 130 {
		t.Fatalf("Len() = %d, want 130", v.Len())
	}
	for _, i := range []int{0, 1, 63, 64, 65, 129} {
		if v.Test(i) {
			t.Fatalf("bit %d set before Set", i)
		}
		v.Set(i)
		if !v.Test(i) {
			t.Fatalf("bit %d not set after Set", i)
		}
	}
	if got, want := v.CountOnes(), 6; got != want {
		t.Fatalf("CountOnes() = %d, want %d", got, want)
	}
	v.Clear(64)
	if v.Test(64) {
		t.Fatalf("bit 64 still set after Clear")
	}
	if got, want := v.CountOnes(), 5; got != want {
		t.Fatalf("CountOnes() after Clear = %d, want %d", got, want)
	}
	v.ClearAll()
	if v.CountOnes() != 0 {
		t.Fatalf("CountOnes() after ClearAll = %d, want 0", v.CountOnes())
	}
}

func TestOutOfRangePanics(t *testing.T) {
	v := New(8)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-range index")
		}
	}()
	v.Set(8)
}
