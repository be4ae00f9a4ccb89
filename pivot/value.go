// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package pivot implements the multidimensional pivot-table model:
// axes of dimensions with category trees, a sparse cell map, values
// with presentation overrides, footnotes, and a styling Look.
package pivot

// ValueKind tags the Value variant.
type ValueKind int

const (
	KindNumeric ValueKind = iota
	KindString
	KindVariable
	KindText
	KindTemplate
)

// ShowMode controls whether a value shows its raw form, its label, or
// both; it's the enum behind show_values/show_variables.
type ShowMode int

const (
	ShowDefault ShowMode = iota
	ShowValue
	ShowLabel
	ShowBoth
)

// Value is a tagged variant occupying a pivot-table cell or a
// title/caption/category-name/footnote slot. Exactly one of the
// Kind-specific fields is meaningful for a given Kind; presentation
// overrides (FontOverride, CellOverride, Subscripts, Footnotes) apply
// regardless of Kind.
type Value struct {
	Kind ValueKind

	// KindNumeric
	Num        float64
	NumFormat  Format
	NumShow    ShowMode
	VarName    string
	ValueLabel string

	// KindString
	Str     string
	HexFlag bool

	// KindVariable: Var uses VarName/ValueLabel (reused as var label) above.

	// KindText
	TextLocal         string
	TextC             string
	TextID             string
	TextUserProvided   bool

	// KindTemplate
	TemplateText string
	TemplateArgs [][]Value

	FontOverride  *FontStyle
	CellOverride  *CellStyle
	Subscripts    []string
	FootnoteIndex []int
}

// NewNumeric returns a numeric Value in the default format.
func NewNumeric(x float64) Value {
	return Value{Kind: KindNumeric, Num: x, NumFormat: F8_2}
}

// NewNumericf returns a numeric Value in the given format.
func NewNumericf(x float64, f Format) Value {
	return Value{Kind: KindNumeric, Num: x, NumFormat: f}
}

// NewString returns a string Value.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewText returns a free-form text Value (e.g. a title or caption).
func NewText(s string) Value { return Value{Kind: KindText, TextLocal: s, TextC: s} }

// NewVariableValue returns a Value naming a dataset variable.
func NewVariableValue(name, label string) Value {
	return Value{Kind: KindVariable, VarName: name, ValueLabel: label}
}

// WithFootnotes returns a copy of v with the given footnote ids
// attached.
func (v Value) WithFootnotes(ids ...int) Value {
	v.FootnoteIndex = append(append([]int(nil), v.FootnoteIndex...), ids...)
	return v
}

// Clone performs a deep copy of v, including style overrides,
// subscripts, footnote indices, and (for KindTemplate) nested args.
func (v Value) Clone() Value {
	cp := v
	if v.FontOverride != nil {
		f := *v.FontOverride
		cp.FontOverride = &f
	}
	if v.CellOverride != nil {
		c := *v.CellOverride
		cp.CellOverride = &c
	}
	cp.Subscripts = append([]string(nil), v.Subscripts...)
	cp.FootnoteIndex = append([]int(nil), v.FootnoteIndex...)
	if v.Kind == KindTemplate {
		cp.TemplateArgs = make([][]Value, len(v.TemplateArgs))
		for i, group := range v.TemplateArgs {
			g := make([]Value, len(group))
			for j, a := range group {
				g[j] = a.Clone()
			}
			cp.TemplateArgs[i] = g
		}
	}
	return cp
}

// Text renders v's underlying text without applying show/label policy
// (that's the renderer's job, since it needs a Dictionary to resolve
// variable/value labels); for KindNumeric it applies NumFormat, for
// KindText it returns the local-language string.
func (v Value) Text() string {
	switch v.Kind {
	case KindNumeric:
		return v.NumFormat.FormatNumber(v.Num)
	case KindString:
		return v.Str
	case KindVariable:
		return v.VarName
	case KindText:
		return v.TextLocal
	case KindTemplate:
		return v.TemplateText
	default:
		return ""
	}
}
