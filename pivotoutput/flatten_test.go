package pivotoutput

import (
	"testing"

	"github.com/lemenkov/pspp-sub019/pivot"
)

func build1D(t *testing.T) (*pivot.Table, pivot.DimensionHandle) {
	t.Helper()
	tbl := pivot.Create("1-d pivot table")
	a := tbl.AddDimension(pivot.Row, "a")
	d := tbl.Dimension(a)
	root := d.Root()
	for _, name := range []string{"a1", "a2", "a3"} {
		d.CreateLeaf(root, pivot.NewText(name), "")
	}
	for i := 0; i < 3; i++ {
		if err := tbl.Put(map[pivot.DimensionHandle]int{a: i}, pivot.NewNumeric(float64(i))); err != nil {
			t.Fatal(err)
		}
	}
	return tbl, a
}

func TestFlattenOneDimension(t *testing.T) {
	tbl, _ := build1D(t)
	out, err := Flatten(tbl, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Body.NRowHeaderCols != 1 {
		t.Fatalf("NRowHeaderCols = %d, want 1", out.Body.NRowHeaderCols)
	}
	if out.Body.NCols != 2 {
		t.Fatalf("NCols = %d, want 2 (1 header + 1 data column)", out.Body.NCols)
	}
	if out.Body.NRows != 1+3 {
		t.Fatalf("NRows = %d, want 4 (1 header row + 3 data rows)", out.Body.NRows)
	}
	var dataCells int
	for _, c := range out.Body.Cells {
		if c.RowStart >= out.Body.NColHeaderRows && c.ColStart >= out.Body.NRowHeaderCols {
			dataCells++
		}
	}
	if dataCells != 3 {
		t.Fatalf("found %d data cells, want 3", dataCells)
	}
}

func TestFlattenTransposeMirrorsLayout(t *testing.T) {
	tbl, _ := build1D(t)
	tbl.Transpose()
	out, err := Flatten(tbl, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Body.NRowHeaderCols != 0 {
		t.Fatalf("NRowHeaderCols = %d, want 0 after transpose to a column-only dimension", out.Body.NRowHeaderCols)
	}
	if out.Body.NCols != 3 {
		t.Fatalf("NCols = %d, want 3", out.Body.NCols)
	}
}

func TestMarkerForIndex(t *testing.T) {
	if got := MarkerForIndex(0, true); got != "a" {
		t.Errorf("MarkerForIndex(0, true) = %q, want a", got)
	}
	if got := MarkerForIndex(0, false); got != "[1]" {
		t.Errorf("MarkerForIndex(0, false) = %q, want [1]", got)
	}
}

func TestHideSmallCounts(t *testing.T) {
	tbl, _ := build1D(t)
	out, err := Flatten(tbl, Options{HideSmallCounts: 2})
	if err != nil {
		t.Fatal(err)
	}
	var hidden int
	for _, c := range out.Body.Cells {
		if c.Value.Kind == pivot.KindText && c.Value.TextLocal == "<2" {
			hidden++
		}
	}
	if hidden != 2 {
		t.Fatalf("hidden small-count cells = %d, want 2 (values 0 and 1)", hidden)
	}
}
