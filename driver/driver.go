// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package driver defines the output-item surface every rendering
// target implements (§4.4): a tagged Item variant and the three-method
// Driver interface (submit/flush/destroy).
package driver

import (
	"github.com/lemenkov/pspp-sub019/msg"
	"github.com/lemenkov/pspp-sub019/pivotoutput"
)

// ItemKind tags an Item's variant.
type ItemKind int

const (
	ItemChart ItemKind = iota
	ItemGroup
	ItemImage
	ItemMessage
	ItemPageBreak
	ItemPageSetup
	ItemTable
	ItemText
)

// PageSetup carries page geometry for an ItemPageSetup item.
type PageSetup struct {
	WidthChars  int
	Length      int
	MarginLeft  int
	MarginRight int
}

// Item is the unit submitted to a Driver. Exactly one of the
// Kind-specific fields is meaningful.
type Item struct {
	Kind ItemKind

	// ItemGroup: a nested sequence. Drivers unable to nest (CSV, the
	// text driver in non-interactive mode) flatten it in document
	// order instead of rejecting it.
	Group []Item
	Label string // ItemGroup heading, or ItemImage/ItemChart caption

	// ItemMessage
	Message *msg.Message

	// ItemPageSetup
	PageSetup PageSetup

	// ItemTable
	Table *pivotoutput.Output

	// ItemText / ItemImage / ItemChart (chart/image content is treated
	// as an opaque blob outside this module's scope; only the caption
	// and a content reference travel with the item)
	Text    string
	Content []byte
}

// NewMessageItem wraps a diagnostic message as a submittable item.
func NewMessageItem(m *msg.Message) Item {
	return Item{Kind: ItemMessage, Message: m}
}

// NewTableItem wraps a flattened pivot table as a submittable item.
func NewTableItem(out *pivotoutput.Output) Item {
	return Item{Kind: ItemTable, Table: out}
}

// NewTextItem wraps a plain text block (e.g. a title or a syntax
// echo) as a submittable item.
func NewTextItem(text string) Item {
	return Item{Kind: ItemText, Text: text}
}

// NewGroupItem wraps a nested sequence of items under label.
func NewGroupItem(label string, items ...Item) Item {
	return Item{Kind: ItemGroup, Label: label, Group: items}
}

// Driver is the surface every output target implements.
type Driver interface {
	// Submit receives one item. A Group item is a nested sequence;
	// drivers that cannot nest must flatten it in document order.
	Submit(item Item) error
	// Flush forces any buffered rendering out without finalizing the
	// output (e.g. a syntax-loop checkpoint between commands).
	Flush() error
	// Destroy finalizes output (closes files, flushes a ZIP archive)
	// and releases any held resources. No further Submit calls are
	// valid afterward.
	Destroy() error
}

// Flatten walks item, and every Group it contains, calling visit on
// every non-Group leaf in document order; it is the shared helper
// drivers that cannot nest (CSV, SPV's flat member list) use to
// implement Submit in terms of Group.
func Flatten(item Item, visit func(Item) error) error {
	if item.Kind != ItemGroup {
		return visit(item)
	}
	for _, child := range item.Group {
		if err := Flatten(child, visit); err != nil {
			return err
		}
	}
	return nil
}
