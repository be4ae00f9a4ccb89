// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package pivot

// CategoryHandle addresses a node in a Dimension's category arena.
// The root group (handle 0) always exists and is never itself shown.
type CategoryHandle int

const rootCategory CategoryHandle = 0

// categoryNode is one arena entry. Interior nodes are groups; leaves
// carry a stable LeafIndex assigned in discovery order. Children are
// stored as arena indices in tree order, which is the order rendering
// traverses (not leaf-index order).
type categoryNode struct {
	name           Value
	isGroup        bool
	showGroupLabel bool
	children       []CategoryHandle
	parent         CategoryHandle
	leafIndex      int // -1 for groups
	resultClass    ResultClass
	subtotal       bool // computed SUBTOTAL/HSUBTOTAL category
	hideSources    bool // HSUBTOTAL: hide the categories it summarizes
}

// Dimension is one axis of categorization: a name, the axis it
// belongs to, and a tree of categories rooted at an implicit group.
type Dimension struct {
	Name  string
	axis  Axis
	nodes []categoryNode

	nextLeaf  int
	leafNodes []CategoryHandle // leafIndex -> arena handle
}

// NewDimension returns a Dimension with an empty root group.
func NewDimension(name string, axis Axis) *Dimension {
	d := &Dimension{Name: name, axis: axis}
	d.nodes = append(d.nodes, categoryNode{isGroup: true, parent: -1, leafIndex: -1})
	return d
}

// NLeaves returns the number of data categories (leaves) discovered so
// far in d.
func (d *Dimension) NLeaves() int { return d.nextLeaf }

// CreateGroup adds an interior category node under parent (rootCategory
// for a top-level group) and returns its handle. Groups and leaves may
// be added freely until the table is rendered (§4.2).
func (d *Dimension) CreateGroup(parent CategoryHandle, name Value) CategoryHandle {
	h := CategoryHandle(len(d.nodes))
	d.nodes = append(d.nodes, categoryNode{
		name: name, isGroup: true, parent: parent, leafIndex: -1, showGroupLabel: true,
	})
	d.nodes[parent].children = append(d.nodes[parent].children, h)
	return h
}

// CreateLeaf adds a data category under parent and returns its stable
// per-dimension leaf index (0-based, in discovery order).
func (d *Dimension) CreateLeaf(parent CategoryHandle, name Value, rc ResultClass) int {
	h := CategoryHandle(len(d.nodes))
	leafIdx := d.nextLeaf
	d.nextLeaf++
	d.nodes = append(d.nodes, categoryNode{
		name: name, isGroup: false, parent: parent, leafIndex: leafIdx, resultClass: rc,
	})
	d.nodes[parent].children = append(d.nodes[parent].children, h)
	d.leafNodes = append(d.leafNodes, h)
	return leafIdx
}

// CreateSubtotal adds a subtotal/HSUBTOTAL category as a leaf under
// parent and marks it as a subtotal; hideSources marks it HSUBTOTAL.
// It computes no values: the subtotal's cells hold whatever Put stores
// there.
func (d *Dimension) CreateSubtotal(parent CategoryHandle, name Value, hideSources bool) int {
	idx := d.CreateLeaf(parent, name, "")
	h := d.leafNodes[idx]
	d.nodes[h].subtotal = true
	d.nodes[h].hideSources = hideSources
	return idx
}

// LeafHandle returns the arena handle for leaf index i.
func (d *Dimension) LeafHandle(i int) CategoryHandle { return d.leafNodes[i] }

// GroupLabel returns whether handle h (a group) should show its label
// when rendered; meaningless for leaves.
func (d *Dimension) GroupLabel(h CategoryHandle) (Value, bool) {
	n := d.nodes[h]
	return n.name, n.isGroup && n.showGroupLabel
}

// SetShowGroupLabel toggles whether a group's own label is rendered
// (as opposed to only its children).
func (d *Dimension) SetShowGroupLabel(h CategoryHandle, show bool) { d.nodes[h].showGroupLabel = show }

// Children returns h's children in tree order.
func (d *Dimension) Children(h CategoryHandle) []CategoryHandle { return d.nodes[h].children }

// Root returns the dimension's implicit root group.
func (d *Dimension) Root() CategoryHandle { return rootCategory }

// IsLeaf reports whether h is a data category rather than a group.
func (d *Dimension) IsLeaf(h CategoryHandle) bool { return !d.nodes[h].isGroup }

// LeafIndex returns h's stable leaf index; only valid if IsLeaf(h).
func (d *Dimension) LeafIndex(h CategoryHandle) int { return d.nodes[h].leafIndex }

// LabelValue returns h's label value.
func (d *Dimension) LabelValue(h CategoryHandle) Value { return d.nodes[h].name }

// ResultClass returns the leaf's bound result class, if any.
func (d *Dimension) ResultClass(h CategoryHandle) ResultClass { return d.nodes[h].resultClass }

// IsSubtotal reports whether h is a computed subtotal category, and
// whether it hides its source categories (HSUBTOTAL).
func (d *Dimension) IsSubtotal(h CategoryHandle) (subtotal, hideSources bool) {
	n := d.nodes[h]
	return n.subtotal, n.hideSources
}

// Clone returns a deep copy of d (used when a table holding it is
// copied as part of Look/Table copy-on-write semantics around shared
// structure elsewhere; the category tree itself is always owned
// exclusively by one Dimension, never shared, so Clone here is a
// simple value copy of the arena).
func (d *Dimension) Clone() *Dimension {
	cp := &Dimension{Name: d.Name, axis: d.axis, nextLeaf: d.nextLeaf}
	cp.nodes = append([]categoryNode(nil), d.nodes...)
	for i := range cp.nodes {
		cp.nodes[i].children = append([]CategoryHandle(nil), d.nodes[i].children...)
		cp.nodes[i].name = d.nodes[i].name.Clone()
	}
	cp.leafNodes = append([]CategoryHandle(nil), d.leafNodes...)
	return cp
}
