package html

import (
	"bytes"
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

func TestWriteOutputProducesTable(t *testing.T) {
	tbl := build1D(t)
	out, err := pivotoutput.Flatten(tbl, pivotoutput.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	d := New(&buf)
	if err := d.Submit(driver.NewTableItem(out)); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.Contains(s, "<table") || !strings.Contains(s, "</table>") {
		t.Fatalf("expected a <table>, got:\n%s", s)
	}
	if !strings.Contains(s, "a1") {
		t.Fatalf("expected category label a1 in output, got:\n%s", s)
	}
}

func TestTextItemIsEscaped(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)
	if err := d.Submit(driver.NewTextItem("<script>")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Fatalf("expected HTML escaping, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "&lt;script&gt;") {
		t.Fatalf("expected escaped entities, got:\n%s", buf.String())
	}
}

func TestGroupWrapsChildrenInDiv(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)
	group := driver.NewGroupItem("section", driver.NewTextItem("hello"))
	if err := d.Submit(group); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.Contains(s, "<div") || !strings.Contains(s, "</div>") {
		t.Fatalf("expected a wrapping div, got:\n%s", s)
	}
}
