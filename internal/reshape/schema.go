// Package reshape aligns municipal tables: key reconciliation, wide-to-long
// melting and the filter/variable join.
package reshape

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrAmbiguousKey means a base table carries both municipality keys.
	ErrAmbiguousKey = errors.New("ambiguous join key")
	// ErrMissingKey means a required key column is absent.
	ErrMissingKey = errors.New("missing join key")
	// ErrNoYearColumns means no header matched the year format during a melt.
	ErrNoYearColumns = errors.New("no year columns found")
	// ErrDuplicateKey is returned in strict mode when join keys are not unique.
	ErrDuplicateKey = errors.New("duplicate join key")
)

// Schema names the well-known columns of the warehouse tables.
type Schema struct {
	Code  string
	Name  string
	Year  string
	Value string
}

// DefaultSchema returns the column names used by the municipal warehouse.
func DefaultSchema() Schema {
	return Schema{Code: "CD_MUN", Name: "NM_MUN", Year: "ANO", Value: "VALOR"}
}

// YearFormat decides which column headers denote a year. Pattern must match
// the header; if it has a capture group, the first group is the year text.
// Min and Max bound the parsed year when non-zero.
type YearFormat struct {
	Pattern *regexp.Regexp
	Min     int
	Max     int
}

// DefaultYearFormat accepts headers that are exactly a four-digit year in
// 1800..2200.
func DefaultYearFormat() YearFormat {
	return YearFormat{Pattern: regexp.MustCompile(`^\s*(\d{4})\s*$`), Min: 1800, Max: 2200}
}

// NewYearFormat compiles a user-supplied pattern.
func NewYearFormat(pattern string, min, max int) (YearFormat, error) {
	if strings.TrimSpace(pattern) == "" {
		yf := DefaultYearFormat()
		yf.Min, yf.Max = min, max
		return yf, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return YearFormat{}, fmt.Errorf("compile year pattern: %w", err)
	}
	return YearFormat{Pattern: re, Min: min, Max: max}, nil
}

// Match returns the year text for a header and whether it is a year column.
func (yf YearFormat) Match(header string) (string, bool) {
	re := yf.Pattern
	if re == nil {
		re = DefaultYearFormat().Pattern
	}
	m := re.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	year := m[0]
	if len(m) > 1 && m[1] != "" {
		year = m[1]
	}
	year = strings.TrimSpace(year)
	if yf.Min != 0 || yf.Max != 0 {
		n, err := strconv.Atoi(year)
		if err != nil {
			return "", false
		}
		if yf.Min != 0 && n < yf.Min {
			return "", false
		}
		if yf.Max != 0 && n > yf.Max {
			return "", false
		}
	}
	return year, true
}
