package msg

import "testing"

func TestMergeAssociative(t *testing.T) {
	a := Location{File: "f", Start: Point{1, 1}, End: Point{1, 2}}
	b := Location{File: "f", Start: Point{2, 1}, End: Point{2, 5}}
	c := Location{File: "f", Start: Point{3, 1}, End: Point{3, 3}}

	ab, ok := Merge(a, b)
	if !ok {
		t.Fatal("merge a,b failed")
	}
	abc1, ok := Merge(ab, c)
	if !ok {
		t.Fatal("merge ab,c failed")
	}
	bc, ok := Merge(b, c)
	if !ok {
		t.Fatal("merge b,c failed")
	}
	abc2, ok := Merge(a, bc)
	if !ok {
		t.Fatal("merge a,bc failed")
	}
	if abc1 != abc2 {
		t.Fatalf("merge not associative: %+v != %+v", abc1, abc2)
	}
}

func TestMergeSelf(t *testing.T) {
	l := Location{File: "f", Start: Point{1, 1}, End: Point{1, 5}}
	got, ok := Merge(l, l)
	if !ok || got != l {
		t.Fatalf("merge(l,l) = %+v, %v, want %+v, true", got, ok, l)
	}
}

func TestMergeDifferentFiles(t *testing.T) {
	a := Location{File: "a", Start: Point{1, 1}}
	b := Location{File: "b", Start: Point{1, 1}}
	if _, ok := Merge(a, b); ok {
		t.Fatal("merge across files should fail")
	}
}

func TestBusMaxErrors(t *testing.T) {
	b := New()
	b.SetMaxErrors(2)
	var delivered []*Message
	b.SetHandler(func(m *Message) { delivered = append(delivered, m) }, nil)

	for i := 0; i < 5; i++ {
		b.Emit(&Message{Severity: Error, Text: "boom"})
	}
	if !b.UITooManyErrors() {
		t.Fatal("expected too-many-errors latch to trip")
	}
	// 2 real errors pass quota, the 3rd trips the synthetic note, the
	// 4th and 5th are dropped outright.
	if got, want := len(delivered), 3; got != want {
		t.Fatalf("delivered = %d, want %d", got, want)
	}
	if delivered[2].Severity != Note {
		t.Fatalf("expected synthetic note as 3rd delivery, got %+v", delivered[2])
	}
}

func TestBusDisableNesting(t *testing.T) {
	b := New()
	var n int
	b.SetHandler(func(m *Message) { n++ }, nil)
	b.Disable()
	b.Disable()
	b.Enable()
	b.Emit(&Message{Severity: Warning, Text: "x"})
	if n != 0 {
		t.Fatalf("expected still disabled after one Enable, n=%d", n)
	}
	b.Enable()
	b.Emit(&Message{Severity: Warning, Text: "x"})
	if n != 1 {
		t.Fatalf("expected delivery after fully enabled, n=%d", n)
	}
}

func TestBusSelfRecursionDegrades(t *testing.T) {
	b := New()
	var fellThrough *Message
	var handlerCalls int
	b.SetHandler(func(m *Message) {
		handlerCalls++
		fellThrough = m
		// Re-emit the exact same message object: direct self-recursion.
		b.Emit(m)
	}, nil)
	b.Emit(&Message{Severity: Warning, Text: "loop"})
	if handlerCalls != 1 {
		t.Fatalf("handler should run exactly once before the guard trips, got %d", handlerCalls)
	}
	_ = fellThrough
}

func TestLocationFormat(t *testing.T) {
	cases := []struct {
		loc  Location
		want string
	}{
		{Location{File: "f.sps", Start: Point{3, 1}, End: Point{3, 1}}, "f.sps:3.1"},
		{Location{File: "f.sps", Start: Point{3, 1}, End: Point{3, 5}}, "f.sps:3.1-3.5"},
		{Location{File: "f.sps", Start: Point{3, 1}, End: Point{4, 5}}, "f.sps:3.1-4.5"},
		{Location{File: "f.sps", Start: Point{3, 0}, End: Point{3, 0}}, "f.sps:3"},
	}
	for _, c := range cases {
		if got := c.loc.Format(); got != c.want {
			t.Errorf("Format(%+v) = %q, want %q", c.loc, got, c.want)
		}
	}
}
