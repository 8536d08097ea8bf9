// Package table holds the in-memory tabular model shared by readers,
// reshaping, joins and exporters.
package table

import (
	"fmt"
	"strings"
)

// Table is an ordered set of named columns and rows of nullable values.
// Every row has exactly len(Columns) cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Value
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1. Lookup is exact first and
// then case-insensitive on trimmed names.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	want := strings.ToLower(strings.TrimSpace(col))
	for i, c := range t.Columns {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return i
		}
	}
	return -1
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Append adds a row, padding or truncating to the column count.
func (t *Table) Append(vals ...Value) {
	row := make([]Value, len(t.Columns))
	copy(row, vals)
	t.Rows = append(t.Rows, row)
}

// Get returns the value at row i in the named column, null if the column
// does not exist.
func (t *Table) Get(i int, col string) Value {
	j := t.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return Null()
	}
	return t.Rows[i][j]
}

// Column returns a copy of the named column.
func (t *Table) Column(col string) ([]Value, error) {
	j := t.Index(col)
	if j < 0 {
		return nil, fmt.Errorf("column %q not found in %s", col, t.label())
	}
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out, nil
}

// Select projects the table onto the given columns in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := t.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("column %q not found in %s", c, t.label())
		}
		idx[i] = j
	}
	out := New(t.Name, cols...)
	out.Rows = make([][]Value, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]Value, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// Filter returns the rows for which keep returns true, in original order.
func (t *Table) Filter(keep func(row []Value) bool) *Table {
	out := New(t.Name, t.Columns...)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Rename changes a column name in place. Renaming a missing column is an error.
func (t *Table) Rename(from, to string) error {
	j := t.Index(from)
	if j < 0 {
		return fmt.Errorf("column %q not found in %s", from, t.label())
	}
	t.Columns[j] = to
	return nil
}

// Distinct returns the distinct non-null values of a column in first-seen order.
func (t *Table) Distinct(col string) ([]Value, error) {
	vals, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(vals))
	var out []Value
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		k := v.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Records renders the table as string records (header first), suitable for
// encoding/csv.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	hdr := make([]string, len(t.Columns))
	copy(hdr, t.Columns)
	out = append(out, hdr)
	for _, r := range t.Rows {
		rec := make([]string, len(r))
		for i, v := range r {
			rec[i] = v.String()
		}
		out = append(out, rec)
	}
	return out
}

// FromRecords builds a table from string records whose first record is the
// header. Short records are padded with nulls.
func FromRecords(name string, records [][]string) *Table {
	if len(records) == 0 {
		return New(name)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := New(name, header...)
	t.Rows = make([][]Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]Value, len(header))
		for i := 0; i < len(header) && i < len(rec); i++ {
			row[i] = Str(rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t *Table) label() string {
	if t.Name == "" {
		return "table"
	}
	return fmt.Sprintf("table %q", t.Name)
}
