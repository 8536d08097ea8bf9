package table

import (
	"math"
	"strconv"
	"strings"
)

// NumberFormat configures numeric coercion. Zero separators mean auto-detect
// per value.
type NumberFormat struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// ParseNumber parses locale-formatted numbers such as "1.234,5", "1,234.5",
// "12,5%" or "1e3". It returns false for anything that is not a number.
func ParseNumber(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := nf.DecimalSeparator
	thou := nf.ThousandsSeparator
	// A lone "1,234" auto-detects as 1.234; an explicit thousands
	// separator fixes the decimal one.
	switch {
	case dec != 0:
	case thou == ',':
		dec = '.'
	case thou == '.':
		dec = ','
	default:
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
			} else {
				dec = '.'
			}
			thou = 0
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseSeparator maps user-facing separator names to runes.
func ParseSeparator(s string) (rune, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, true
	case ",", "comma":
		return ',', true
	case ".", "dot":
		return '.', true
	case " ", "space":
		return ' ', true
	default:
		return 0, false
	}
}
