package tex

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

func TestMacrosEmittedOnceInPreamble(t *testing.T) {
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
	s := buf.String()
	if n := strings.Count(s, `\newcommand{\pptabstart}`); n != 1 {
		t.Fatalf("expected \\pptabstart defined exactly once, got %d in:\n%s", n, s)
	}
}

func TestNoOutputLineExceeds80Chars(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)
	long := strings.Repeat("lorem ipsum dolor sit amet ", 10)
	if err := d.Submit(driver.NewTextItem(long)); err != nil {
		t.Fatal(err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if len([]rune(line)) > maxLineWidth {
			t.Fatalf("line exceeds %d chars: %q", maxLineWidth, line)
		}
	}
}

func TestEscapeNeverProducesDoubleQuestionMark(t *testing.T) {
	d := New(&bytes.Buffer{})
	s := d.escape("100% & {special} \\ things $5 é ü ÿ ☃")
	if strings.Contains(s, "??") {
		t.Fatalf("escape produced the forbidden literal \"??\": %q", s)
	}
}

func TestEscapeHandlesFullLatin1Range(t *testing.T) {
	d := New(&bytes.Buffer{})
	var b strings.Builder
	for r := rune(0); r <= 0xFF; r++ {
		b.WriteRune(r)
	}
	s := d.escape(b.String())
	if strings.Contains(s, "??") {
		t.Fatalf("escape produced the forbidden literal \"??\" over the full Latin-1 range")
	}
}
