package csv

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

func TestWriteOutputProducesRecords(t *testing.T) {
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
	if err := d.Destroy(); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"a1", "a2", "a3"} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %q in CSV output, got:\n%s", want, s)
		}
	}
}

func TestFieldWithCommaIsQuoted(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)
	if err := d.Submit(driver.NewTextItem("a,b")); err != nil {
		t.Fatal(err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "\"a,b\"\n" {
		t.Fatalf("got %q, want RFC 4180 quoting", got)
	}
}
