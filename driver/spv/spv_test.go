package spv

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
	"github.com/lemenkov/pspp-sub019/zipcodec"
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

func TestTableProducesMemberPair(t *testing.T) {
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

	data := buf.Bytes()
	r, err := zipcodec.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Lookup("outputs/001/lightTableData.bin"); !ok {
		t.Fatal("missing light-binary detail member")
	}
	if _, ok := r.Lookup("outputs/001/lightTableStructure.xml"); !ok {
		t.Fatal("missing light-structure XML member")
	}

	rc, err := r.Open("outputs/001/lightTableData.bin")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	bin, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(bin[:4]) != "SPVB" {
		t.Fatalf("detail member missing magic, got %q", bin[:4])
	}

	rc2, err := r.Open("outputs/001/lightTableStructure.xml")
	if err != nil {
		t.Fatal(err)
	}
	defer rc2.Close()
	xmlBody, err := io.ReadAll(rc2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(xmlBody), "subTable") {
		t.Fatalf("expected subTable elements in structure XML, got:\n%s", xmlBody)
	}
}

func TestTwoTablesGetDistinctOutputDirs(t *testing.T) {
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
	if err := d.Submit(driver.NewTableItem(out)); err != nil {
		t.Fatal(err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	r, err := zipcodec.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"outputs/001/lightTableData.bin", "outputs/002/lightTableData.bin"} {
		if _, ok := r.Lookup(name); !ok {
			t.Fatalf("missing %q", name)
		}
	}
}
