// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package pivot

// HAlign is a cell's horizontal alignment.
type HAlign int

const (
	AlignLeft HAlign = iota
	AlignRight
	AlignCenter
	AlignMixed
	AlignDecimal // DecimalOffset gives the offset from the right edge
)

// VAlign is a cell's vertical alignment.
type VAlign int

const (
	VAlignTop VAlign = iota
	VAlignCenter
	VAlignBottom
)

// Color is a simple RGB color; the zero value means "inherit".
type Color struct {
	R, G, B uint8
	Set     bool
}

// FontStyle is the font half of an AreaStyle.
type FontStyle struct {
	Bold, Italic, Underline, Markup bool
	Foreground, Background         Color
	// Foreground/BackgroundAlt apply on alternating (odd) rows/cells;
	// the "doubled" colors from §3.3.
	ForegroundAlt, BackgroundAlt Color
	Typeface                     string
	SizePoints                   float64
}

// CellStyle is the alignment/margin half of an AreaStyle.
type CellStyle struct {
	HAlign         HAlign
	DecimalOffset  float64
	VAlign         VAlign
	MarginL        float64
	MarginR        float64
	MarginT        float64
	MarginB        float64
}

// AreaStyle bundles a FontStyle and a CellStyle for one pivot Area.
type AreaStyle struct {
	Font FontStyle
	Cell CellStyle
}

// Area is one of the nine logical pivot-table regions carrying a
// distinct AreaStyle.
type Area int

const (
	AreaTitle Area = iota
	AreaSubtitle
	AreaCaption
	AreaFooter
	AreaCorner
	AreaRowLabels
	AreaColumnLabels
	AreaLayers
	AreaData
	numAreas
)

// Stroke is a border line style.
type Stroke int

const (
	StrokeNone Stroke = iota
	StrokeSolid
	StrokeDashed
	StrokeThick
	StrokeThin
	StrokeDouble
)

// Border identifies one of the enumerated pivot-table border positions.
type Border int

const (
	BorderTitle Border = iota
	BorderOuterLeft
	BorderOuterTop
	BorderOuterRight
	BorderOuterBottom
	BorderInnerLeft
	BorderInnerTop
	BorderInnerRight
	BorderInnerBottom
	BorderDataLeft
	BorderDataTop
	BorderDimRowHorz
	BorderDimRowVert
	BorderDimColHorz
	BorderDimColVert
	BorderCatRowHorz
	BorderCatRowVert
	BorderCatColHorz
	BorderCatColVert
	numBorders
)

// BorderStyle is a stroke plus color for one Border.
type BorderStyle struct {
	Stroke Stroke
	Color  Color
}

// Look is the full styling bundle attached to a pivot Table: one
// AreaStyle per Area, one BorderStyle per Border, plus layout flags
// and named result-class formats. A Look is logically immutable once
// shared between tables; Table.UnshareLook performs copy-on-write so that
// mutating one table's look never affects another table that shares
// the same *Look pointer.
type Look struct {
	Name    string
	Areas   [numAreas]AreaStyle
	Borders [numBorders]BorderStyle

	OmitEmpty                bool
	FootnoteMarkerSuperscript bool
	RowLabelsInCorner         bool

	ResultClassFormats map[ResultClass]Format

	refCount *int
}

// NewDefaultLook returns the standard look: thin solid outer/inner
// borders, no grid inside data, left-aligned row labels, right-aligned
// numeric data, and the built-in result-class formats. This is the
// look every newly created table starts with (§4.2 create).
func NewDefaultLook() *Look {
	l := &Look{
		Name:      "Default",
		OmitEmpty: true,
	}
	for b := Border(0); b < numBorders; b++ {
		l.Borders[b] = BorderStyle{Stroke: StrokeSolid}
	}
	l.Borders[BorderDataLeft] = BorderStyle{Stroke: StrokeNone}
	l.Borders[BorderDataTop] = BorderStyle{Stroke: StrokeNone}

	l.Areas[AreaData] = AreaStyle{Cell: CellStyle{HAlign: AlignRight}}
	l.Areas[AreaRowLabels] = AreaStyle{Cell: CellStyle{HAlign: AlignLeft}}
	l.Areas[AreaColumnLabels] = AreaStyle{Cell: CellStyle{HAlign: AlignCenter}}
	l.Areas[AreaTitle] = AreaStyle{Font: FontStyle{Bold: true}, Cell: CellStyle{HAlign: AlignLeft}}

	l.ResultClassFormats = make(map[ResultClass]Format, len(DefaultResultClassFormats))
	for k, v := range DefaultResultClassFormats {
		l.ResultClassFormats[k] = v
	}
	rc := 1
	l.refCount = &rc
	return l
}

// Clone performs a deep copy of l, including the result-class map.
func (l *Look) Clone() *Look {
	if l == nil {
		return NewDefaultLook()
	}
	cp := *l
	cp.ResultClassFormats = make(map[ResultClass]Format, len(l.ResultClassFormats))
	for k, v := range l.ResultClassFormats {
		cp.ResultClassFormats[k] = v
	}
	rc := 1
	cp.refCount = &rc
	return &cp
}

func (l *Look) share() *Look {
	if l.refCount != nil {
		*l.refCount++
	}
	return l
}

func (l *Look) shared() bool {
	return l.refCount != nil && *l.refCount > 1
}

// ResultClassFormat resolves a result class to a Format, falling back
// to F8.2 if the look has no binding for it.
func (l *Look) ResultClassFormat(rc ResultClass) Format {
	if l != nil {
		if f, ok := l.ResultClassFormats[rc]; ok {
			return f
		}
	}
	return F8_2
}
