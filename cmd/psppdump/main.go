// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Command psppdump reads a system, portable, or PC+ file and renders
// its dictionary and case data through one of this module's output
// drivers, mainly as a way to exercise the codecs end to end.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lemenkov/pspp-sub019/dict"
	"github.com/lemenkov/pspp-sub019/driver"
	"github.com/lemenkov/pspp-sub019/driver/csv"
	"github.com/lemenkov/pspp-sub019/driver/text"
	"github.com/lemenkov/pspp-sub019/pcplus"
	"github.com/lemenkov/pspp-sub019/pivot"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
	"github.com/lemenkov/pspp-sub019/portable"
	"github.com/lemenkov/pspp-sub019/session"
	"github.com/lemenkov/pspp-sub019/sysfile"
)

// caseSource is the common surface sysfile.Reader, portable.Reader,
// and pcplus.Reader already provide; psppdump only ever needs these
// three methods, so it asks for them rather than a concrete type.
type caseSource interface {
	Dictionary() *dict.Dictionary
	ReadCase() (*dict.Case, error)
	Close() error
}

func main() {
	format := flag.String("format", "auto", "input format: sav, por, pcplus, or auto (detect from extension)")
	out := flag.String("out", "text", "output driver: text or csv")
	maxCases := flag.Int("max-cases", 100, "maximum number of cases to dump (0 = all)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: psppdump [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := run(path, *format, *out, *maxCases); err != nil {
		fmt.Fprintln(os.Stderr, "psppdump:", err)
		os.Exit(1)
	}
}

func run(path, format, out string, maxCases int) error {
	sess := session.New(session.Options{Verbose: false})
	sess.Bus.SetHandler(sess.SubmitMessage, nil)

	switch out {
	case "csv":
		sess.AddDriver(csv.New(os.Stdout))
	case "text", "":
		sess.AddDriver(text.New(os.Stdout, text.Options{}))
	default:
		return fmt.Errorf("unknown -out driver %q", out)
	}
	defer sess.Close()

	src, err := openSource(path, format)
	if err != nil {
		return err
	}
	defer src.Close()

	sess.Dict = src.Dictionary()

	if err := sess.Submit(driver.NewTextItem(fmt.Sprintf("Reading %s", path))); err != nil {
		return err
	}
	dictTable, err := dictionaryTable(sess.Dict)
	if err != nil {
		return err
	}
	if err := sess.Submit(driver.NewTableItem(dictTable)); err != nil {
		return err
	}

	casesTable, n, err := dumpCases(src, sess.Dict, maxCases)
	if err != nil {
		return err
	}
	if err := sess.Submit(driver.NewTableItem(casesTable)); err != nil {
		return err
	}
	if err := sess.Submit(driver.NewTextItem(fmt.Sprintf("%d case(s) read", n))); err != nil {
		return err
	}
	return sess.Flush()
}

// openSource resolves format (detecting it from path's extension when
// format is "auto") and opens the matching reader.
func openSource(path, format string) (caseSource, error) {
	if format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".sav", ".zsav":
			format = "sav"
		case ".por":
			format = "por"
		case ".pc+", ".sys":
			format = "pcplus"
		default:
			return nil, fmt.Errorf("cannot infer format from %q, pass -format", path)
		}
	}

	switch format {
	case "sav":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, err := sysfile.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &closeBoth{r, f}, nil
	case "por":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, err := portable.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &closeBoth{r, f}, nil
	case "pcplus":
		return pcplus.NewReaderFromFile(path)
	default:
		return nil, fmt.Errorf("unknown -format %q", format)
	}
}

// closeBoth adapts a reader whose own Close doesn't own the
// underlying *os.File (sysfile.Reader and portable.Reader both only
// release codec-internal resources, e.g. a zlib stream) to also close
// the file.
type closeBoth struct {
	caseSource
	f *os.File
}

func (c *closeBoth) Close() error {
	err := c.caseSource.Close()
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// dictionaryTable renders one row per variable: name, print format,
// and label.
func dictionaryTable(d *dict.Dictionary) (*pivotoutput.Output, error) {
	tbl := pivot.Create("Dictionary")
	rows := tbl.AddDimension(pivot.Row, "Variable")
	cols := tbl.AddDimension(pivot.Column, "Attribute")

	rd := tbl.Dimension(rows)
	cd := tbl.Dimension(cols)
	nameCol := cd.CreateLeaf(cd.Root(), pivot.NewText("Name"), "")
	formatCol := cd.CreateLeaf(cd.Root(), pivot.NewText("Format"), "")
	labelCol := cd.CreateLeaf(cd.Root(), pivot.NewText("Label"), "")

	for _, v := range d.Variables {
		leaf := rd.CreateLeaf(rd.Root(), pivot.NewText(v.Name), "")
		cells := []struct {
			col int
			val pivot.Value
		}{
			{nameCol, pivot.NewText(v.Name)},
			{formatCol, pivot.NewText(formatSpec(v.Print))},
			{labelCol, pivot.NewText(v.Label)},
		}
		for _, c := range cells {
			if err := tbl.Put(map[pivot.DimensionHandle]int{rows: leaf, cols: c.col}, c.val); err != nil {
				return nil, fmt.Errorf("building dictionary table: %w", err)
			}
		}
	}

	return pivotoutput.Flatten(tbl, pivotoutput.Options{})
}

func formatSpec(f dict.Format) string {
	return f.Type + strconv.Itoa(f.Width) + "." + strconv.Itoa(f.Decimals)
}

// dumpCases reads up to maxCases cases (0 = unlimited) and lays them
// out as a case-number by variable-name grid.
func dumpCases(src caseSource, d *dict.Dictionary, maxCases int) (*pivotoutput.Output, int, error) {
	tbl := pivot.Create("Cases")
	rows := tbl.AddDimension(pivot.Row, "Case")
	cols := tbl.AddDimension(pivot.Column, "Variable")

	cd := tbl.Dimension(cols)
	colLeaves := make([]int, len(d.Variables))
	for i, v := range d.Variables {
		colLeaves[i] = cd.CreateLeaf(cd.Root(), pivot.NewText(v.Name), "")
	}

	rd := tbl.Dimension(rows)
	n := 0
	for maxCases <= 0 || n < maxCases {
		c, err := src.ReadCase()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, n, fmt.Errorf("reading case %d: %w", n+1, err)
		}
		rowLeaf := rd.CreateLeaf(rd.Root(), pivot.NewNumeric(float64(n+1)), "")
		for i, v := range d.Variables {
			indices := map[pivot.DimensionHandle]int{rows: rowLeaf, cols: colLeaves[i]}
			var cellErr error
			switch {
			case v.IsString():
				cellErr = tbl.Put(indices, pivot.NewString(c.Str[i]))
			case dict.IsSystemMissing(c.Num[i]):
				cellErr = tbl.Put(indices, pivot.NewText("."))
			default:
				cellErr = tbl.Put(indices, pivot.NewNumeric(c.Num[i]))
			}
			if cellErr != nil {
				return nil, n, fmt.Errorf("case %d, variable %s: %w", n+1, v.Name, cellErr)
			}
		}
		n++
	}

	out, err := pivotoutput.Flatten(tbl, pivotoutput.Options{})
	if err != nil {
		return nil, n, fmt.Errorf("rendering case table: %w", err)
	}
	return out, n, nil
}
