package pivot

import "testing"

// build1D constructs the scenario-1 fixture: one row dimension "a"
// with leaves a1,a2,a3 and cells {0:0, 1:1, 2:2}.
func build1D(t *testing.T) (*Table, DimensionHandle) {
	t.Helper()
	tbl := Create("1-d pivot table")
	a := tbl.AddDimension(Row, "a")
	d := tbl.Dimension(a)
	root := d.Root()
	for _, name := range []string{"a1", "a2", "a3"} {
		d.CreateLeaf(root, NewText(name), "")
	}
	for i := 0; i < 3; i++ {
		if err := tbl.Put(map[DimensionHandle]int{a: i}, NewNumeric(float64(i))); err != nil {
			t.Fatal(err)
		}
	}
	return tbl, a
}

func TestOneDimensionCells(t *testing.T) {
	tbl, a := build1D(t)
	for i := 0; i < 3; i++ {
		v, ok := tbl.Get(map[DimensionHandle]int{a: i})
		if !ok {
			t.Fatalf("cell %d missing", i)
		}
		if v.Num != float64(i) {
			t.Fatalf("cell %d = %v, want %d", i, v.Num, i)
		}
	}
}

func TestTransposeTwiceIsIdentity(t *testing.T) {
	tbl, a := build1D(t)
	before := tbl.axisDims[Row]
	tbl.Transpose()
	tbl.Transpose()
	after := tbl.axisDims[Row]
	if len(before) != len(after) || before[0] != after[0] {
		t.Fatalf("transpose^2 changed row axis: %v -> %v", before, after)
	}
	// Leaf indices survive regardless of axis membership.
	v, ok := tbl.Get(map[DimensionHandle]int{a: 1})
	if !ok || v.Num != 1 {
		t.Fatalf("leaf index invalidated by transpose: %v, %v", v, ok)
	}
}

func TestMoveDimensionPreservesLeafIndices(t *testing.T) {
	tbl, a := build1D(t)
	if err := tbl.MoveDimension(a, Column, 0); err != nil {
		t.Fatal(err)
	}
	if got := tbl.Dimensions(Row); len(got) != 0 {
		t.Fatalf("dimension still on row axis: %v", got)
	}
	if got := tbl.Dimensions(Column); len(got) != 1 || got[0] != a {
		t.Fatalf("dimension not moved to column axis: %v", got)
	}
	v, ok := tbl.Get(map[DimensionHandle]int{a: 2})
	if !ok || v.Num != 2 {
		t.Fatalf("leaf index invalidated by move: %v, %v", v, ok)
	}
}

func TestUnshareIdempotent(t *testing.T) {
	tbl, _ := build1D(t)
	shared := tbl.Share()
	u1 := shared.Unshare()
	// u1 is now exclusively owned (refcount dropped back to 1 on the
	// original, fresh 1 on the copy); a second Unshare must be a no-op.
	u2 := u1.Unshare()
	if u1 != u2 {
		t.Fatalf("Unshare not idempotent: got different pointers")
	}
}

func TestSetLookNoOpWithSamePointer(t *testing.T) {
	tbl, _ := build1D(t)
	look := tbl.Look()
	tbl.SetLook(look)
	if tbl.Look() != look {
		t.Fatalf("SetLook with same look changed the pointer")
	}
}

func TestDeleteCellLeavesCategoriesIntact(t *testing.T) {
	tbl, a := build1D(t)
	tbl.Delete(map[DimensionHandle]int{a: 1})
	if _, ok := tbl.Get(map[DimensionHandle]int{a: 1}); ok {
		t.Fatalf("cell 1 still present after delete")
	}
	if n := tbl.Dimension(a).NLeaves(); n != 3 {
		t.Fatalf("NLeaves() = %d, want 3 (delete must not remove categories)", n)
	}
}

func TestFootnoteIDsStable(t *testing.T) {
	tbl := Create("footnotes")
	id1 := tbl.CreateFootnote("*", NewText("first"))
	id2 := tbl.CreateFootnote("", NewText("second"))
	if id1 == id2 {
		t.Fatalf("footnote ids collide: %d == %d", id1, id2)
	}
	fn, ok := tbl.Footnote(id1)
	if !ok || fn.Content.Text() != "first" {
		t.Fatalf("footnote %d lookup wrong: %+v", id1, fn)
	}
}

func TestMutatingSharedTablePanics(t *testing.T) {
	tbl, a := build1D(t)
	tbl.Share()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic mutating a shared table")
		}
	}()
	tbl.Put(map[DimensionHandle]int{a: 0}, NewNumeric(99))
}
