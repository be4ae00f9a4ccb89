// Copyright 2024 Tamás Gulácsi. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package pivot

import (
	"fmt"
	"math"
	"strings"
)

// Format is a numeric display format: a width, a decimal-place count,
// and a type tag (only "F", the fixed/scientific default format
// relevant to pivot-table rendering, is implemented in full; other
// legacy SPSS format letters are accepted and stored but render the
// same as F).
type Format struct {
	Type     string
	Width    int
	Decimals int
}

// F8_2 is the canonical default numeric format.
var F8_2 = Format{Type: "F", Width: 8, Decimals: 2}

// ResultClass names a result-class formatting profile (§4.2): a named
// style bound to numeric cells by name, looked up in the table's Look.
type ResultClass string

const (
	ResultClassCount   ResultClass = "COUNT"
	ResultClassPercent ResultClass = "PERCENT"
)

// DefaultResultClassFormats maps the well-known result classes to their
// formats; COUNT uses an integer format, PERCENT uses PCT40.1 (a
// 40-column-wide, 1-decimal percentage, per the PSPP corpus).
var DefaultResultClassFormats = map[ResultClass]Format{
	ResultClassCount:   {Type: "F", Width: 8, Decimals: 0},
	ResultClassPercent: {Type: "PCT", Width: 40, Decimals: 1},
}

// smallMagnitudeThreshold is the boundary below which a nonzero value
// switches from fixed to scientific notation (§8 boundary behaviors).
const smallMagnitudeThreshold = 1e-4

// FormatNumber renders x according to f, following the SPSS "F"
// format's two idiosyncrasies: the integer 0 before the decimal point
// is dropped ("0.00" renders as ".00"), and a nonzero magnitude below
// 1e-4 switches to scientific notation with a 3-digit signed exponent
// ("1.00E-005").
func (f Format) FormatNumber(x float64) string {
	if math.IsNaN(x) {
		return strings.Repeat(" ", f.decimalsOrOne())
	}
	decimals := f.Decimals
	if decimals <= 0 {
		decimals = 0
	}
	if x != 0 && math.Abs(x) < smallMagnitudeThreshold {
		return sciNotation(x, decimals)
	}
	s := fmt.Sprintf("%.*f", decimals, x)
	return stripLeadingZero(s)
}

func (f Format) decimalsOrOne() int {
	if f.Decimals > 0 {
		return f.Decimals
	}
	return 1
}

// stripLeadingZero turns "0.xx" into ".xx" and "-0.xx" into "-.xx";
// values with no fractional part (decimals == 0) are left alone since
// there is no leading zero to drop ("0" stays "0").
func stripLeadingZero(s string) string {
	if strings.HasPrefix(s, "0.") {
		return s[1:]
	}
	if strings.HasPrefix(s, "-0.") {
		return "-" + s[2:]
	}
	return s
}

func sciNotation(x float64, decimals int) string {
	neg := x < 0
	ax := math.Abs(x)
	exp := int(math.Floor(math.Log10(ax)))
	mantissa := ax / math.Pow(10, float64(exp))
	if mantissa >= 10 {
		mantissa /= 10
		exp++
	} else if mantissa < 1 {
		mantissa *= 10
		exp--
	}
	sign := "+"
	e := exp
	if e < 0 {
		sign = "-"
		e = -e
	}
	out := fmt.Sprintf("%.*fE%s%03d", decimals, mantissa, sign, e)
	if neg {
		out = "-" + out
	}
	return out
}
