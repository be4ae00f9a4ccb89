// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package dict implements the PSPP dictionary model: an ordered list
// of typed variables, missing-value predicates, the system-missing
// sentinel, and the fixed-width case representation used by every
// binary codec (§3.2, §3.3).
package dict

import (
	"fmt"
	"math"
	"strings"
)

// SystemMissing is the canonical numeric "no data" sentinel. Unlike a
// plain NaN, it compares equal to itself for PSPP's equality tests: it
// is the most negative finite double, -math.MaxFloat64.
var systemMissingBits = -math.MaxFloat64

// SystemMissing returns the system-missing sentinel value.
func SystemMissing() float64 { return systemMissingBits }

// IsSystemMissing reports whether x is the system-missing sentinel,
// comparing bit patterns so that only that one value matches.
func IsSystemMissing(x float64) bool {
	return math.Float64bits(x) == math.Float64bits(systemMissingBits)
}

// MeasurementLevel is a variable's measurement level.
type MeasurementLevel int

const (
	MeasureUnknown MeasurementLevel = iota
	MeasureNominal
	MeasureOrdinal
	MeasureScale
)

// Role is a variable's role in procedures that distinguish inputs from
// outputs/targets (e.g. predictive modeling).
type Role int

const (
	RoleInput Role = iota
	RoleTarget
	RoleBoth
	RoleNone
	RolePartition
	RoleSplit
)

// MissingSpec is a variable's user-declared missing-value set: either
// up to three discrete values, or one range plus one optional
// discrete, per §3.2.
type MissingSpec struct {
	Discretes   []float64 // up to 3, numeric or string (as Str) depending on variable width
	DiscreteStr []string
	HasRange    bool
	RangeLow    float64
	RangeHigh   float64 // math.Inf(1) means "HIGHEST"
}

// Contains reports whether x is declared user-missing by m.
func (m MissingSpec) Contains(x float64) bool {
	for _, d := range m.Discretes {
		if x == d {
			return true
		}
	}
	if m.HasRange && x >= m.RangeLow && x <= m.RangeHigh {
		return true
	}
	return false
}

// ContainsStr reports whether s is declared user-missing by m for a
// string variable.
func (m MissingSpec) ContainsStr(s string) bool {
	for _, d := range m.DiscreteStr {
		if d == s {
			return true
		}
	}
	return false
}

// ValueLabel pairs a raw value with its display label.
type ValueLabel struct {
	Num float64
	Str string
	Label string
}

// Format is a variable's print/write format (width.decimals in an
// SPSS format letter, e.g. F8.2, A8, COMMA12.0).
type Format struct {
	Type     string
	Width    int
	Decimals int
}

// Variable is one dictionary entry.
type Variable struct {
	Name      string // ≤8 bytes uppercased for legacy formats; unrestricted otherwise
	Width     int    // 0 = numeric, 1..255 (or larger via very-long-string) = string bytes
	Print     Format
	Write     Format
	Label     string
	Missing   MissingSpec
	Measure   MeasurementLevel
	Role      Role
	ValueLabels []ValueLabel

	// shortName is the ≤8-byte legacy-format name recorded alongside a
	// wider Name, when the two differ (very-long-string segmentation,
	// or a name too long for a legacy .sav/portable write).
	shortName string
}

// IsString reports whether v is a string variable.
func (v *Variable) IsString() bool { return v.Width > 0 }

// ShortName returns v's legacy ≤8-byte name: the explicitly recorded
// shortName if SetShortName was called, otherwise Name truncated to 8
// bytes (system-file variable records have no room for more).
func (v *Variable) ShortName() string {
	if v.shortName != "" {
		return v.shortName
	}
	if len(v.Name) <= 8 {
		return v.Name
	}
	return v.Name[:8]
}

// SetShortName records the legacy ≤8-byte name under which v was last
// read from (or will be written to) a system/portable file, for the
// "long var names" extension record's shortname=longname mapping.
func (v *Variable) SetShortName(s string) { v.shortName = s }

// SegmentCount returns how many 8-byte (or segmentWidth-byte) case
// segments a string variable of this width occupies; numeric
// variables always occupy exactly 1.
func (v *Variable) SegmentCount(segmentWidth int) int {
	if v.Width <= 0 {
		return 1
	}
	n := (v.Width + segmentWidth - 1) / segmentWidth
	if n < 1 {
		n = 1
	}
	return n
}

// EffectiveLabel returns the label to show for a value per
// show_values/show_labels policy: the value-label text if one is
// bound, otherwise "".
func (v *Variable) EffectiveLabel(num float64, str string) (string, bool) {
	for _, vl := range v.ValueLabels {
		if v.IsString() {
			if vl.Str == str {
				return vl.Label, true
			}
		} else if vl.Num == num {
			return vl.Label, true
		}
	}
	return "", false
}

// IsUserMissing reports whether the given numeric value is declared
// user-missing for v.
func (v *Variable) IsUserMissing(x float64) bool {
	if v.IsString() {
		return false
	}
	return v.Missing.Contains(x)
}

// IsUserMissingStr reports whether the given string value is declared
// user-missing for v.
func (v *Variable) IsUserMissingStr(s string) bool {
	if !v.IsString() {
		return false
	}
	return v.Missing.ContainsStr(s)
}

// specialVariableNames are reserved identifiers that must survive a
// system-file round trip under their own name, renamed with an
// `@`-prefix only on an actual collision with a user variable.
var specialVariableNames = map[string]bool{
	"$CASENUM": true,
	"$DATE":    true,
	"$WEIGHT":  true,
}

// Dictionary is an ordered sequence of variables plus the weight
// reference, per §3.2.
type Dictionary struct {
	Variables []*Variable
	byName    map[string]int
	Weight    *Variable // nil = unweighted

	// SegmentWidth is the byte width string segments are split into in
	// the case representation; 8 for legacy system files.
	SegmentWidth int
}

// New returns an empty dictionary with the legacy 8-byte segment
// width.
func New() *Dictionary {
	return &Dictionary{byName: make(map[string]int), SegmentWidth: 8}
}

// AddVariable appends v to the dictionary, renaming it with an
// `@`-prefix if its name collides with an already-present variable.
// This is how the reserved special variables $CASENUM/$DATE/$WEIGHT
// survive a round trip even when the source data already defines a
// same-named ordinary variable: whichever one is added second gets
// the `@` prefix, repeated until the name is free.
func (d *Dictionary) AddVariable(v *Variable) error {
	if d.byName == nil {
		d.byName = make(map[string]int)
	}
	name := strings.ToUpper(v.Name)
	if _, exists := d.byName[name]; exists {
		renamed := "@" + name
		for {
			if _, taken := d.byName[renamed]; !taken {
				break
			}
			renamed = "@" + renamed
		}
		v.Name = renamed
		name = renamed
	} else {
		v.Name = name
	}
	d.byName[name] = len(d.Variables)
	d.Variables = append(d.Variables, v)
	return nil
}

// Lookup returns the variable named name (case-insensitive), if any.
func (d *Dictionary) Lookup(name string) (*Variable, bool) {
	i, ok := d.byName[strings.ToUpper(name)]
	if !ok {
		return nil, false
	}
	return d.Variables[i], true
}

// IsSpecialName reports whether name is one of the reserved
// $CASENUM/$DATE/$WEIGHT identifiers.
func IsSpecialName(name string) bool { return specialVariableNames[strings.ToUpper(name)] }

// CaseWidth returns the total number of segmentWidth-byte slots one
// case occupies across all variables.
func (d *Dictionary) CaseWidth() int {
	total := 0
	for _, v := range d.Variables {
		total += v.SegmentCount(d.SegmentWidth)
	}
	return total
}

// Case is a fixed-width record of values, one per Dictionary.Variables
// entry (string variables collapse their segments into a single Str).
type Case struct {
	Num []float64
	Str []string
}

// NewCase returns a zero-valued Case sized for d: every numeric cell
// is system-missing, every string cell is blank.
func NewCase(d *Dictionary) *Case {
	c := &Case{Num: make([]float64, len(d.Variables)), Str: make([]string, len(d.Variables))}
	for i := range c.Num {
		c.Num[i] = SystemMissing()
	}
	return c
}

// Get returns the value at the variable index i as a float64 or
// string, depending on the variable's type.
func (c *Case) Get(d *Dictionary, i int) (num float64, str string, isString bool) {
	v := d.Variables[i]
	if v.IsString() {
		return 0, c.Str[i], true
	}
	return c.Num[i], "", false
}

func (f Format) String() string {
	if f.Decimals > 0 {
		return fmt.Sprintf("%s%d.%d", f.Type, f.Width, f.Decimals)
	}
	return fmt.Sprintf("%s%d", f.Type, f.Width)
}
