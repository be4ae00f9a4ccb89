package text

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

func build1D(t *testing.T) *pivot.Table {
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
	return tbl
}

func TestRenderGridProducesBorderedBox(t *testing.T) {
	tbl := build1D(t)
	out, err := pivotoutput.Flatten(tbl, pivotoutput.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	d := New(&buf, Options{PageWidth: 79})
	if err := d.Submit(driver.NewTableItem(out)); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.Contains(s, "+") || !strings.Contains(s, "|") {
		t.Fatalf("expected box-drawing characters in output, got:\n%s", s)
	}
	if !strings.Contains(s, "a1") || !strings.Contains(s, "a2") || !strings.Contains(s, "a3") {
		t.Fatalf("expected category labels in output, got:\n%s", s)
	}
}

func TestDefaultPageWidthFallsBackWhenNotATerminal(t *testing.T) {
	// An invalid fd is not a tty, so it exercises the non-interactive
	// fallback path.
	if w := DefaultPageWidth(^uintptr(0)); w != 79 {
		t.Fatalf("DefaultPageWidth = %d, want 79 for a bogus fd", w)
	}
}

func TestPadToAlignments(t *testing.T) {
	if got := padTo("x", 3, pivot.AlignLeft); got != "x  " {
		t.Fatalf("left pad = %q", got)
	}
	if got := padTo("x", 3, pivot.AlignRight); got != "  x" {
		t.Fatalf("right pad = %q", got)
	}
	if got := padTo("x", 3, pivot.AlignCenter); got != " x " {
		t.Fatalf("center pad = %q", got)
	}
}

func build2DWide(t *testing.T, nCols int) *pivot.Table {
	t.Helper()
	tbl := pivot.Create("wide pivot table")
	rows := tbl.AddDimension(pivot.Row, "row")
	cols := tbl.AddDimension(pivot.Column, "col")
	rd := tbl.Dimension(rows)
	cd := tbl.Dimension(cols)
	r0 := rd.CreateLeaf(rd.Root(), pivot.NewText("r1"), "")
	colLeaves := make([]int, nCols)
	for i := 0; i < nCols; i++ {
		colLeaves[i] = cd.CreateLeaf(cd.Root(), pivot.NewText(fmt.Sprintf("col%02d", i)), "")
	}
	for i := 0; i < nCols; i++ {
		if err := tbl.Put(map[pivot.DimensionHandle]int{rows: r0, cols: colLeaves[i]}, pivot.NewNumeric(float64(i))); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestRenderGridBreaksTooWideTableAndRepeatsHeaders(t *testing.T) {
	tbl := build2DWide(t, 20)
	out, err := pivotoutput.Flatten(tbl, pivotoutput.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	d := New(&buf, Options{PageWidth: 40, MinHBreak: 3})
	if err := d.Submit(driver.NewTableItem(out)); err != nil {
		t.Fatal(err)
	}
	s := buf.String()

	lines := strings.Split(s, "\n")
	for _, line := range lines {
		if len([]rune(line)) > 60 {
			t.Fatalf("slice line exceeds a reasonable bound, break did not narrow the grid: %q", line)
		}
	}
	if strings.Count(s, "r1") < 2 {
		t.Fatalf("row header \"r1\" should repeat on every page slice, got:\n%s", s)
	}
	if !strings.Contains(s, "col00") || !strings.Contains(s, "col19") {
		t.Fatalf("expected every column across all slices, got:\n%s", s)
	}
}

func TestTextItemWraps(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, Options{PageWidth: 20})
	long := strings.Repeat("word ", 20)
	if err := d.Submit(driver.NewTextItem(long)); err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if len([]rune(line)) > 20 {
			t.Fatalf("line exceeds page width: %q", line)
		}
	}
}
