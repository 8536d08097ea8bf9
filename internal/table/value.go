package table

import (
	"math"
	"strconv"
	"strings"
)

// Value is a single nullable cell. The zero Value is null.
type Value struct {
	raw   string
	valid bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Str wraps text as a Value. Blank text is treated as null, matching how
// spreadsheet readers report empty cells.
func Str(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{raw: s, valid: true}
}

// Num wraps a number as a Value. NaN becomes null.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{raw: strconv.FormatFloat(f, 'f', -1, 64), valid: true}
}

// IsNull reports whether the cell is empty.
func (v Value) IsNull() bool { return !v.valid }

// String returns the raw text, or "" for null.
func (v Value) String() string { return v.raw }

// Float coerces the cell to a number using auto-detected separators.
func (v Value) Float() (float64, bool) {
	return v.FloatWith(NumberFormat{})
}

// FloatWith coerces the cell to a number using the given separators.
func (v Value) FloatWith(nf NumberFormat) (float64, bool) {
	if !v.valid {
		return 0, false
	}
	return ParseNumber(v.raw, nf)
}

// Key returns a normalized join key. Integral numbers are rendered without a
// fractional part so 3550308, 3550308.0 and "3550308" compare equal.
func (v Value) Key() string {
	if !v.valid {
		return ""
	}
	s := strings.TrimSpace(v.raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}
