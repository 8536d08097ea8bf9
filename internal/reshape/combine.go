package reshape

import (
	"fmt"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

const (
	// FilterSuffix marks filter-side columns that clash with variable columns.
	FilterSuffix = "_filtros"
	// VariableSuffix marks variable-side columns that clash with filter columns.
	VariableSuffix = "_variavel"
)

// Selection restricts a join to some years and municipality names. Empty
// slices mean no restriction.
type Selection struct {
	Years          []string
	Municipalities []string
}

// CombineOptions tunes Combine.
type CombineOptions struct {
	// StrictKeys turns duplicate (code, year) keys into ErrDuplicateKey.
	StrictKeys bool
}

// CombineResult is the merged table and the name of its filter-side
// municipality column.
type CombineResult struct {
	Table      *table.Table
	NameColumn string
	Warnings   []string
}

// Combine left-joins filters to variable on (code, year). The year selection
// is applied to filters before the join and the municipality selection after
// it, on the filter-side name column.
func Combine(filters, variable *table.Table, s Schema, sel Selection, opt CombineOptions) (*CombineResult, error) {
	keys := []string{s.Code, s.Year}
	for _, k := range keys {
		if !filters.Has(k) {
			return nil, fmt.Errorf("%w: filter table lacks %s", ErrMissingKey, k)
		}
		if !variable.Has(k) {
			return nil, fmt.Errorf("%w: variable table %s lacks %s", ErrMissingKey, variable.Name, k)
		}
	}

	base := filters
	if len(sel.Years) > 0 {
		want := keySet(sel.Years)
		yi := filters.Index(s.Year)
		base = filters.Filter(func(r []table.Value) bool {
			_, ok := want[r[yi].Key()]
			return ok
		})
	}

	res := &CombineResult{}
	for _, side := range []struct {
		label string
		t     *table.Table
	}{{"filter", base}, {"variable", variable}} {
		dups, err := table.DuplicateKeys(side.t, keys)
		if err != nil {
			return nil, err
		}
		if len(dups) == 0 {
			continue
		}
		msg := fmt.Sprintf("%s table has %d duplicate (%s, %s) keys, e.g. %s", side.label, len(dups), s.Code, s.Year, dups[0])
		if opt.StrictKeys {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, msg)
		}
		res.Warnings = append(res.Warnings, msg)
	}

	merged, err := table.LeftJoin(base, variable, keys, table.JoinOptions{LeftSuffix: FilterSuffix, RightSuffix: VariableSuffix})
	if err != nil {
		return nil, err
	}
	res.NameColumn = s.Name
	if merged.Has(s.Name + FilterSuffix) {
		res.NameColumn = s.Name + FilterSuffix
	}
	if len(sel.Municipalities) > 0 {
		ni := merged.Index(res.NameColumn)
		if ni < 0 {
			return nil, fmt.Errorf("%w: filter table lacks %s", ErrMissingKey, s.Name)
		}
		want := keySet(sel.Municipalities)
		merged = merged.Filter(func(r []table.Value) bool {
			_, ok := want[r[ni].Key()]
			return ok
		})
	}
	res.Table = merged
	return res, nil
}

func keySet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[table.Str(v).Key()] = struct{}{}
	}
	return set
}
