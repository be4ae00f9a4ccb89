// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package pivotoutput turns a pivot.Table into the flat, driver-facing
// form: up to five rectangular sub-tables (title, layers, body,
// caption, footnotes), each cell carrying a value, a span rectangle,
// and inherited style (§4.4).
package pivotoutput

import (
	"fmt"
	"strconv"

	"github.com/lemenkov/pspp-sub019/pivot"
)

// Cell is one occupied rectangle of a FlatTable.
type Cell struct {
	Value               pivot.Value
	RowStart, ColStart   int
	RowSpan, ColSpan     int
	Style                pivot.AreaStyle
}

// FlatTable is a rectangular grid of header/body cells.
type FlatTable struct {
	NRows, NCols       int
	NRowHeaderCols     int // leading columns that are row-axis headers
	NColHeaderRows     int // leading rows that are column-axis headers
	Cells              []Cell
}

// Output is the full rendering of one pivot table at one layer
// selection.
type Output struct {
	Title     *FlatTable
	Layers    *FlatTable
	Body      *FlatTable
	Caption   *FlatTable
	Footnotes *FlatTable
}

// Options controls the rendering policies described in §4.4.
type Options struct {
	// HideSmallCounts, if > 0, replaces any COUNT-class cell whose
	// value is < HideSmallCounts with the literal "<N" text.
	HideSmallCounts int
}

// axisPlan is the computed layout of one axis: the ordered leaf
// combinations (one leaf handle per dimension on the axis, tree
// order, dimension-major) and which combinations are visible.
type axisPlan struct {
	dims    []pivot.DimensionHandle
	combos  [][]pivot.CategoryHandle // one per visible column/row
}

func buildAxisPlan(t *pivot.Table, axis pivot.Axis) axisPlan {
	dims := t.Dimensions(axis)
	plan := axisPlan{dims: dims}
	if len(dims) == 0 {
		plan.combos = [][]pivot.CategoryHandle{{}}
		return plan
	}
	var walk func(i int, prefix []pivot.CategoryHandle)
	walk = func(i int, prefix []pivot.CategoryHandle) {
		if i == len(dims) {
			cp := append([]pivot.CategoryHandle(nil), prefix...)
			plan.combos = append(plan.combos, cp)
			return
		}
		d := t.Dimension(dims[i])
		for leaf := 0; leaf < d.NLeaves(); leaf++ {
			h := d.LeafHandle(leaf)
			if sub, hide := d.IsSubtotal(h); sub && hide {
				continue
			}
			walk(i+1, append(prefix, h))
		}
	}
	walk(0, nil)
	return plan
}

func (p axisPlan) leafIndices(combo []pivot.CategoryHandle, t *pivot.Table) map[pivot.DimensionHandle]int {
	m := make(map[pivot.DimensionHandle]int, len(p.dims))
	for i, dim := range p.dims {
		m[dim] = t.Dimension(dim).LeafIndex(combo[i])
	}
	return m
}

// filterOmitEmpty drops combos from p whose leaf is nowhere populated
// in cells, when look.OmitEmpty is set; a group is never deleted, only
// hidden, consistent with §4.2's invariant.
func filterOmitEmpty(t *pivot.Table, rowPlan, colPlan axisPlan, layerIdx map[pivot.DimensionHandle]int) (rowPlan2, colPlan2 axisPlan) {
	if !t.Look().OmitEmpty {
		return rowPlan, colPlan
	}
	rowUsed := make([]bool, len(rowPlan.combos))
	colUsed := make([]bool, len(colPlan.combos))
	for ri, rc := range rowPlan.combos {
		rIdx := rowPlan.leafIndices(rc, t)
		for ci, cc := range colPlan.combos {
			cIdx := colPlan.leafIndices(cc, t)
			idx := mergeIndices(rIdx, cIdx, layerIdx)
			if _, ok := t.Get(idx); ok {
				rowUsed[ri] = true
				colUsed[ci] = true
			}
		}
	}
	rowPlan2.dims, colPlan2.dims = rowPlan.dims, colPlan.dims
	for i, used := range rowUsed {
		if used || len(rowPlan.dims) == 0 {
			rowPlan2.combos = append(rowPlan2.combos, rowPlan.combos[i])
		}
	}
	for i, used := range colUsed {
		if used || len(colPlan.dims) == 0 {
			colPlan2.combos = append(colPlan2.combos, colPlan.combos[i])
		}
	}
	if len(rowPlan2.combos) == 0 {
		rowPlan2.combos = rowPlan.combos
	}
	if len(colPlan2.combos) == 0 {
		colPlan2.combos = colPlan.combos
	}
	return rowPlan2, colPlan2
}

func mergeIndices(maps ...map[pivot.DimensionHandle]int) map[pivot.DimensionHandle]int {
	out := make(map[pivot.DimensionHandle]int)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// headerRows builds the header matrix for one axis: one row/column
// per dimension, with runs of identical values merged into a single
// spanning cell.
func headerRows(t *pivot.Table, plan axisPlan, transposed bool, style pivot.AreaStyle) []Cell {
	var cells []Cell
	for dimPos, dim := range plan.dims {
		d := t.Dimension(dim)
		i := 0
		for i < len(plan.combos) {
			h := plan.combos[i][dimPos]
			j := i + 1
			for j < len(plan.combos) && plan.combos[j][dimPos] == h {
				j++
			}
			v := d.LabelValue(h)
			var cell Cell
			if transposed {
				cell = Cell{Value: v, RowStart: i, RowSpan: j - i, ColStart: dimPos, ColSpan: 1, Style: style}
			} else {
				cell = Cell{Value: v, ColStart: i, ColSpan: j - i, RowStart: dimPos, RowSpan: 1, Style: style}
			}
			cells = append(cells, cell)
			i = j
		}
	}
	return cells
}

// Flatten renders t at the layer indices currently set on t into an
// Output.
func Flatten(t *pivot.Table, opts Options) (*Output, error) {
	look := t.Look()
	layerIdx := make(map[pivot.DimensionHandle]int)
	for _, dim := range t.Dimensions(pivot.Layer) {
		layerIdx[dim] = t.CurrentLayer(dim)
	}

	rowPlan := buildAxisPlan(t, pivot.Row)
	colPlan := buildAxisPlan(t, pivot.Column)
	rowPlan, colPlan = filterOmitEmpty(t, rowPlan, colPlan, layerIdx)

	nColHeaderRows := len(colPlan.dims)
	nRowHeaderCols := len(rowPlan.dims)
	if nColHeaderRows == 0 {
		nColHeaderRows = 1 // corner-only header row still present
	}

	body := &FlatTable{
		NRows:          nColHeaderRows + len(rowPlan.combos),
		NCols:          nRowHeaderCols + len(colPlan.combos),
		NRowHeaderCols: nRowHeaderCols,
		NColHeaderRows: nColHeaderRows,
	}

	colHeader := headerRows(t, colPlan, false, look.Areas[pivot.AreaColumnLabels])
	for i := range colHeader {
		colHeader[i].ColStart += nRowHeaderCols
	}
	body.Cells = append(body.Cells, colHeader...)

	rowHeader := headerRows(t, rowPlan, true, look.Areas[pivot.AreaRowLabels])
	for i := range rowHeader {
		rowHeader[i].RowStart += nColHeaderRows
	}
	body.Cells = append(body.Cells, rowHeader...)

	dataStyle := look.Areas[pivot.AreaData]
	for ri, rc := range rowPlan.combos {
		rIdx := rowPlan.leafIndices(rc, t)
		for ci, cc := range colPlan.combos {
			cIdx := colPlan.leafIndices(cc, t)
			idx := mergeIndices(rIdx, cIdx, layerIdx)
			v, ok := t.Get(idx)
			if !ok {
				continue
			}
			v = applyHideSmallCounts(v, opts.HideSmallCounts)
			body.Cells = append(body.Cells, Cell{
				Value:    v,
				RowStart: nColHeaderRows + ri,
				ColStart: nRowHeaderCols + ci,
				RowSpan:  1,
				ColSpan:  1,
				Style:    dataStyle,
			})
		}
	}

	out := &Output{Body: body}
	if t.Title != nil {
		out.Title = textTable(*t.Title, look.Areas[pivot.AreaTitle])
	}
	if t.Caption != nil {
		out.Caption = textTable(*t.Caption, look.Areas[pivot.AreaCaption])
	}
	if len(t.Dimensions(pivot.Layer)) > 0 {
		out.Layers = layersTable(t, look)
	}
	if fns := t.Footnotes(); len(fns) > 0 {
		out.Footnotes = footnotesTable(t, fns, look)
	}
	return out, nil
}

func textTable(v pivot.Value, style pivot.AreaStyle) *FlatTable {
	return &FlatTable{
		NRows: 1, NCols: 1,
		Cells: []Cell{{Value: v, RowSpan: 1, ColSpan: 1, Style: style}},
	}
}

func layersTable(t *pivot.Table, look *pivot.Look) *FlatTable {
	dims := t.Dimensions(pivot.Layer)
	ft := &FlatTable{NRows: len(dims), NCols: 1}
	for i, dim := range dims {
		d := t.Dimension(dim)
		leaf := t.CurrentLayer(dim)
		h := d.LeafHandle(leaf)
		ft.Cells = append(ft.Cells, Cell{
			Value: d.LabelValue(h), RowStart: i, ColStart: 0, RowSpan: 1, ColSpan: 1,
			Style: look.Areas[pivot.AreaLayers],
		})
	}
	return ft
}

func footnotesTable(t *pivot.Table, fns []pivot.Footnote, look *pivot.Look) *FlatTable {
	ft := &FlatTable{NRows: 0, NCols: 1}
	row := 0
	for _, fn := range fns {
		if !fn.Show {
			continue
		}
		marker := fn.Marker
		if marker == "" {
			marker = MarkerForIndex(row, look.FootnoteMarkerSuperscript)
		}
		v := fn.Content
		v.TextLocal = fmt.Sprintf("%s %s", marker, v.TextLocal)
		ft.Cells = append(ft.Cells, Cell{Value: v, RowStart: row, ColStart: 0, RowSpan: 1, ColSpan: 1, Style: look.Areas[pivot.AreaFooter]})
		row++
	}
	ft.NRows = row
	return ft
}

// MarkerForIndex assigns an auto footnote marker: alphabetic if
// superscript (a, b, c, ...), numeric bracketed otherwise ([1], [2],
// ...), per §4.4's "alphabetic-or-numeric x subscript-or-superscript"
// rule. Multi-character markers are bracketed; single-character
// alphabetic markers are not.
func MarkerForIndex(i int, superscript bool) string {
	if superscript {
		if i < 26 {
			return string(rune('a' + i))
		}
		return "[" + string(rune('a'+i%26)) + strconv.Itoa(i/26) + "]"
	}
	return "[" + strconv.Itoa(i+1) + "]"
}

func applyHideSmallCounts(v pivot.Value, threshold int) pivot.Value {
	if threshold <= 0 || v.Kind != pivot.KindNumeric {
		return v
	}
	if v.NumFormat.Type != "F" && v.NumFormat.Type != "PCT" {
		return v
	}
	if v.Num >= float64(threshold) {
		return v
	}
	out := pivot.NewText(fmt.Sprintf("<%d", threshold))
	out.FootnoteIndex = v.FootnoteIndex
	return out
}
