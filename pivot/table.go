// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package pivot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Axis is one of {row, column, layer}.
type Axis int

const (
	Row Axis = iota
	Column
	Layer
)

// DimensionHandle addresses a dimension independent of its axis
// position: moving or transposing a dimension changes which Axis list
// it lives in, never this handle or the leaf indices within it.
type DimensionHandle int

// Footnote is one footnote attached to a table.
type Footnote struct {
	ID      int
	Marker  string // custom marker; "" means auto-assign on render
	Content Value
	Show    bool
}

// Table is a multidimensional pivot-table result container.
type Table struct {
	Title, Subtitle, Caption, Corner *Value
	Notes                            []Value

	// allDims is the stable, creation-order list of every dimension in
	// the table; DimensionHandle indexes into it and never changes
	// once assigned, even as axisDims below is permuted.
	allDims []*Dimension
	// axisDims holds, for each axis, the ordered list of dimension
	// handles currently assigned to it.
	axisDims [3][]DimensionHandle

	cells map[string]Value

	footnotes  []Footnote
	nextFnID   int

	look *Look

	// currentLayer[h] is the selected leaf index for layer dimension h.
	currentLayer map[DimensionHandle]int

	ShowGrid                bool
	ShowTitle               bool
	ShowCaption             bool
	RotateInnerColumnLabels bool
	RotateOuterRowLabels    bool
	ShowValues              ShowMode
	ShowVariables           ShowMode

	anyCellPopulated bool
	refs             *int
}

// Create returns a new, empty Table with the given title and a default
// Look (§4.2 create).
func Create(title string) *Table {
	one := 1
	tv := NewText(title)
	t := &Table{
		cells:        make(map[string]Value),
		look:         NewDefaultLook(),
		currentLayer: make(map[DimensionHandle]int),
		ShowTitle:    true,
		ShowCaption:  true,
		refs:         &one,
		Title:        &tv,
	}
	return t
}

func (t *Table) mustUnshared() {
	if t.refs != nil && *t.refs > 1 {
		panic("pivot: mutating operation on a shared table; call Unshare() first")
	}
}

// Share increments the table's reference count and returns t, modeling
// a second owner retaining the same table value.
func (t *Table) Share() *Table {
	if t.refs == nil {
		one := 1
		t.refs = &one
	}
	*t.refs++
	return t
}

// Unshare returns an exclusively-owned *Table: t itself if it was not
// shared, or a deep copy otherwise. Unshare(Unshare(t)) observes no
// further change (§8 idempotence law).
func (t *Table) Unshare() *Table {
	if t.refs == nil || *t.refs <= 1 {
		if t.refs == nil {
			one := 1
			t.refs = &one
		}
		return t
	}
	*t.refs--
	cp := t.deepClone()
	one := 1
	cp.refs = &one
	return cp
}

func (t *Table) deepClone() *Table {
	cp := *t
	cp.allDims = make([]*Dimension, len(t.allDims))
	for i, d := range t.allDims {
		cp.allDims[i] = d.Clone()
	}
	for a := 0; a < 3; a++ {
		cp.axisDims[a] = append([]DimensionHandle(nil), t.axisDims[a]...)
	}
	cp.cells = make(map[string]Value, len(t.cells))
	for k, v := range t.cells {
		cp.cells[k] = v.Clone()
	}
	cp.footnotes = append([]Footnote(nil), t.footnotes...)
	for i := range cp.footnotes {
		cp.footnotes[i].Content = cp.footnotes[i].Content.Clone()
	}
	cp.currentLayer = make(map[DimensionHandle]int, len(t.currentLayer))
	for k, v := range t.currentLayer {
		cp.currentLayer[k] = v
	}
	if t.Title != nil {
		v := t.Title.Clone()
		cp.Title = &v
	}
	if t.Subtitle != nil {
		v := t.Subtitle.Clone()
		cp.Subtitle = &v
	}
	if t.Caption != nil {
		v := t.Caption.Clone()
		cp.Caption = &v
	}
	if t.Corner != nil {
		v := t.Corner.Clone()
		cp.Corner = &v
	}
	cp.Notes = append([]Value(nil), t.Notes...)
	// The look is copy-on-write independent of the table: a cloned
	// table keeps sharing the same *Look until UnshareLook gives it its
	// own copy or SetLook replaces it.
	cp.look = t.look.share()
	return &cp
}

// AddDimension creates a new dimension on axis with the given name and
// appends it to that axis's dimension list; forbidden once any cell
// has been populated (§4.2).
func (t *Table) AddDimension(axis Axis, name string) DimensionHandle {
	t.mustUnshared()
	if t.anyCellPopulated {
		panic("pivot: cannot add a dimension once cells are populated")
	}
	h := DimensionHandle(len(t.allDims))
	t.allDims = append(t.allDims, NewDimension(name, axis))
	t.axisDims[axis] = append(t.axisDims[axis], h)
	if axis == Layer {
		t.currentLayer[h] = 0
	}
	return h
}

// Dimension returns the Dimension value for handle h.
func (t *Table) Dimension(h DimensionHandle) *Dimension { return t.allDims[h] }

// Dimensions returns the dimension handles on axis, in axis order.
func (t *Table) Dimensions(axis Axis) []DimensionHandle { return t.axisDims[axis] }

// NDimensions returns the total dimension count across all axes,
// i.e. the cell-map key arity.
func (t *Table) NDimensions() int { return len(t.allDims) }

// cellKey canonically encodes indices (one leaf index per dimension
// handle, covering every dimension in the table) independent of axis
// order, so that Transpose/SwapAxes/MoveDimension never change a
// cell's key.
func cellKey(indices map[DimensionHandle]int) string {
	handles := make([]int, 0, len(indices))
	for h := range indices {
		handles = append(handles, int(h))
	}
	sort.Ints(handles)
	var b strings.Builder
	for _, h := range handles {
		b.WriteString(strconv.Itoa(h))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(indices[DimensionHandle(h)]))
		b.WriteByte(',')
	}
	return b.String()
}

// Put stores value at the cell addressed by indices (one leaf index
// per dimension handle; every dimension in the table must be
// present). Indices outside a dimension's known leaf range are
// rejected.
func (t *Table) Put(indices map[DimensionHandle]int, value Value) error {
	t.mustUnshared()
	if err := t.validateIndices(indices); err != nil {
		return err
	}
	t.cells[cellKey(indices)] = value
	t.anyCellPopulated = true
	return nil
}

func (t *Table) validateIndices(indices map[DimensionHandle]int) error {
	if len(indices) != len(t.allDims) {
		return fmt.Errorf("pivot: expected %d indices, got %d", len(t.allDims), len(indices))
	}
	for h, leaf := range indices {
		if int(h) < 0 || int(h) >= len(t.allDims) {
			return fmt.Errorf("pivot: unknown dimension handle %d", h)
		}
		d := t.allDims[h]
		if leaf < 0 || leaf >= d.NLeaves() {
			return fmt.Errorf("pivot: leaf index %d out of range for dimension %q (%d leaves)", leaf, d.Name, d.NLeaves())
		}
	}
	return nil
}

// Get returns the value at indices, and whether the cell is populated
// (empty cells are legal and distinct from a zero Value).
func (t *Table) Get(indices map[DimensionHandle]int) (Value, bool) {
	v, ok := t.cells[cellKey(indices)]
	return v, ok
}

// Delete removes the cell at indices, if any; it frees the value but
// never deletes categories — deleting an entire row/column is
// expressed by deleting every cell in that slab.
func (t *Table) Delete(indices map[DimensionHandle]int) {
	t.mustUnshared()
	delete(t.cells, cellKey(indices))
}

// Transpose swaps the Row and Column axes in their entirety. Leaf
// indices are untouched; Transpose(Transpose(t)) renders identically
// to t (§8).
func (t *Table) Transpose() {
	t.mustUnshared()
	t.axisDims[Row], t.axisDims[Column] = t.axisDims[Column], t.axisDims[Row]
}

// SwapAxes exchanges the dimension lists of two axes.
func (t *Table) SwapAxes(a, b Axis) {
	t.mustUnshared()
	t.axisDims[a], t.axisDims[b] = t.axisDims[b], t.axisDims[a]
}

// MoveDimension relocates dim to a new axis at position, removing it
// from its current axis list. Leaf indices are unaffected.
func (t *Table) MoveDimension(dim DimensionHandle, axis Axis, position int) error {
	t.mustUnshared()
	var from Axis = -1
	fromIdx := -1
	for a := 0; a < 3; a++ {
		for i, h := range t.axisDims[a] {
			if h == dim {
				from, fromIdx = Axis(a), i
			}
		}
	}
	if fromIdx < 0 {
		return fmt.Errorf("pivot: dimension handle %d not found on any axis", dim)
	}
	t.axisDims[from] = append(t.axisDims[from][:fromIdx], t.axisDims[from][fromIdx+1:]...)
	if position < 0 || position > len(t.axisDims[axis]) {
		position = len(t.axisDims[axis])
	}
	dst := t.axisDims[axis]
	dst = append(dst, 0)
	copy(dst[position+1:], dst[position:])
	dst[position] = dim
	t.axisDims[axis] = dst
	if axis == Layer {
		if _, ok := t.currentLayer[dim]; !ok {
			t.currentLayer[dim] = 0
		}
	}
	return nil
}

// Look returns the table's current styling bundle.
func (t *Table) Look() *Look { return t.look }

// SetLook replaces the table's look. set_look(t, get_look(t)) is a
// no-op (§8): assigning the same *Look pointer back changes nothing
// observable.
func (t *Table) SetLook(l *Look) {
	t.mustUnshared()
	if l == t.look {
		return
	}
	t.look = l.share()
}

// UnshareLook forces copy-on-write of the table's look: if the look is
// referenced elsewhere, t gets its own private copy before any
// mutation proceeds.
func (t *Table) UnshareLook() *Look {
	t.mustUnshared()
	if t.look.shared() {
		t.look = t.look.Clone()
	}
	return t.look
}

// CreateFootnote adds a footnote and returns its stable id.
func (t *Table) CreateFootnote(marker string, content Value) int {
	t.mustUnshared()
	id := t.nextFnID
	t.nextFnID++
	t.footnotes = append(t.footnotes, Footnote{ID: id, Marker: marker, Content: content, Show: true})
	return id
}

// Footnote returns the footnote with the given id.
func (t *Table) Footnote(id int) (*Footnote, bool) {
	for i := range t.footnotes {
		if t.footnotes[i].ID == id {
			return &t.footnotes[i], true
		}
	}
	return nil, false
}

// Footnotes returns all footnotes in creation order.
func (t *Table) Footnotes() []Footnote { return t.footnotes }

// SetFootnoteShow sets whether footnote id is rendered.
func (t *Table) SetFootnoteShow(id int, show bool) {
	t.mustUnshared()
	if fn, ok := t.Footnote(id); ok {
		fn.Show = show
	}
}

// SetCurrentLayer sets the selected leaf index for a layer dimension.
func (t *Table) SetCurrentLayer(dim DimensionHandle, leafIndex int) {
	t.mustUnshared()
	t.currentLayer[dim] = leafIndex
}

// CurrentLayer returns the selected leaf index for a layer dimension.
func (t *Table) CurrentLayer(dim DimensionHandle) int { return t.currentLayer[dim] }
