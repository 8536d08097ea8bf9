package reshape

import (
	"fmt"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

// KeyKind records which municipality key a base table carries. It is decided
// once when the table is ingested.
type KeyKind int

const (
	// KeyInvalid means both keys or neither key are present.
	KeyInvalid KeyKind = iota
	// HasCode means only the municipality code is present.
	HasCode
	// HasName means only the municipality name is present.
	HasName
)

func (k KeyKind) String() string {
	switch k {
	case HasCode:
		return "code"
	case HasName:
		return "name"
	default:
		return "invalid"
	}
}

// DetectKey classifies a base table by the municipality keys it carries.
func DetectKey(t *table.Table, s Schema) KeyKind {
	code, name := t.Has(s.Code), t.Has(s.Name)
	switch {
	case code && !name:
		return HasCode
	case name && !code:
		return HasName
	default:
		return KeyInvalid
	}
}

// ReconcileResult is the enriched table plus non-fatal findings.
type ReconcileResult struct {
	Table     *table.Table
	Kind      KeyKind
	Unmatched int
	Warnings  []string
}

// Reconcile fills in the missing municipality key of base from info using a
// left join on the key base already has. Row count and order are preserved:
// unmatched rows get a null key and duplicate lookup keys in info resolve to
// their first occurrence. Output columns are code, name, then the remaining
// base columns.
func Reconcile(base, info *table.Table, s Schema) (*ReconcileResult, error) {
	kind := DetectKey(base, s)
	var have, want string
	switch kind {
	case HasCode:
		have, want = s.Code, s.Name
	case HasName:
		have, want = s.Name, s.Code
	default:
		if base.Has(s.Code) {
			return nil, fmt.Errorf("%w: base table must contain only one of %s or %s", ErrAmbiguousKey, s.Code, s.Name)
		}
		return nil, fmt.Errorf("%w: base table must contain one of %s or %s", ErrMissingKey, s.Code, s.Name)
	}
	if !info.Has(have) || !info.Has(want) {
		return nil, fmt.Errorf("%w: information table must contain both %s and %s", ErrMissingKey, s.Code, s.Name)
	}

	res := &ReconcileResult{Kind: kind}
	hi, wi := info.Index(have), info.Index(want)
	lookup := make(map[string]table.Value, len(info.Rows))
	dups := 0
	for _, r := range info.Rows {
		k := r[hi]
		if k.IsNull() {
			continue
		}
		if _, ok := lookup[k.Key()]; ok {
			dups++
			continue
		}
		lookup[k.Key()] = r[wi]
	}
	if dups > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("information table has %d duplicate %s entries; first occurrence used", dups, have))
	}

	bi := base.Index(have)
	cols := []string{s.Code, s.Name}
	var rest []int
	for j, c := range base.Columns {
		if j == bi {
			continue
		}
		cols = append(cols, c)
		rest = append(rest, j)
	}
	out := table.New(base.Name, cols...)
	out.Rows = make([][]table.Value, 0, len(base.Rows))
	for _, r := range base.Rows {
		key := r[bi]
		found, ok := lookup[key.Key()]
		if key.IsNull() || !ok {
			found = table.Null()
			res.Unmatched++
		}
		row := make([]table.Value, 0, len(cols))
		if kind == HasCode {
			row = append(row, key, found)
		} else {
			row = append(row, found, key)
		}
		for _, j := range rest {
			row = append(row, r[j])
		}
		out.Rows = append(out.Rows, row)
	}
	if res.Unmatched > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d rows had no match for %s", res.Unmatched, len(base.Rows), have))
	}
	res.Table = out
	return res, nil
}
