package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnOverlap is returned when both sides of a join carry the same
// non-key column and no suffix was provided to tell them apart.
var ErrColumnOverlap = errors.New("columns overlap but no suffix specified")

// JoinOptions controls naming of overlapping non-key columns.
type JoinOptions struct {
	LeftSuffix  string
	RightSuffix string
}

// DuplicateKey describes a composite key that occurs more than once.
type DuplicateKey struct {
	Key   []string
	Count int
}

func (d DuplicateKey) String() string {
	return fmt.Sprintf("(%s) x%d", strings.Join(d.Key, ", "), d.Count)
}

// LeftJoin keeps every left row, attaching matching right rows by key. Left
// rows without a match get nulls on the right side; duplicate right keys fan
// out. Output columns are the keys, then left columns, then right columns.
func LeftJoin(left, right *Table, keys []string, opt JoinOptions) (*Table, error) {
	return join(left, right, keys, opt, true)
}

// InnerJoin keeps only rows whose key is present on both sides.
func InnerJoin(left, right *Table, keys []string, opt JoinOptions) (*Table, error) {
	return join(left, right, keys, opt, false)
}

func join(left, right *Table, keys []string, opt JoinOptions, keepUnmatched bool) (*Table, error) {
	if len(keys) == 0 {
		return nil, errors.New("join requires at least one key column")
	}
	lk, err := keyIndexes(left, keys)
	if err != nil {
		return nil, err
	}
	rk, err := keyIndexes(right, keys)
	if err != nil {
		return nil, err
	}
	lrest := restIndexes(left, lk)
	rrest := restIndexes(right, rk)

	// resolve output names
	rnames := make(map[string]bool, len(rrest))
	for _, j := range rrest {
		rnames[strings.ToLower(right.Columns[j])] = true
	}
	lnames := make(map[string]bool, len(lrest))
	for _, j := range lrest {
		lnames[strings.ToLower(left.Columns[j])] = true
	}
	cols := make([]string, 0, len(keys)+len(lrest)+len(rrest))
	for _, j := range lk {
		cols = append(cols, left.Columns[j])
	}
	for _, j := range lrest {
		name := left.Columns[j]
		if rnames[strings.ToLower(name)] {
			if opt.LeftSuffix == "" && opt.RightSuffix == "" {
				return nil, fmt.Errorf("%w: %s", ErrColumnOverlap, name)
			}
			name += opt.LeftSuffix
		}
		cols = append(cols, name)
	}
	for _, j := range rrest {
		name := right.Columns[j]
		if lnames[strings.ToLower(name)] {
			name += opt.RightSuffix
		}
		cols = append(cols, name)
	}

	index := make(map[string][]int, len(right.Rows))
	for i, r := range right.Rows {
		k, ok := compositeKey(r, rk)
		if !ok {
			continue
		}
		index[k] = append(index[k], i)
	}

	out := New(left.Name, cols...)
	for _, lr := range left.Rows {
		k, ok := compositeKey(lr, lk)
		var matches []int
		if ok {
			matches = index[k]
		}
		if len(matches) == 0 {
			if !keepUnmatched {
				continue
			}
			out.Rows = append(out.Rows, joinRow(lr, nil, lk, lrest, rrest, len(cols)))
			continue
		}
		for _, m := range matches {
			out.Rows = append(out.Rows, joinRow(lr, right.Rows[m], lk, lrest, rrest, len(cols)))
		}
	}
	return out, nil
}

func joinRow(lr, rr []Value, lk, lrest, rrest []int, width int) []Value {
	row := make([]Value, 0, width)
	for _, j := range lk {
		row = append(row, lr[j])
	}
	for _, j := range lrest {
		row = append(row, lr[j])
	}
	for _, j := range rrest {
		if rr == nil {
			row = append(row, Null())
			continue
		}
		row = append(row, rr[j])
	}
	return row
}

// DuplicateKeys lists composite keys occurring more than once, in first-seen
// order. Rows with a null key part are ignored.
func DuplicateKeys(t *Table, keys []string) ([]DuplicateKey, error) {
	idx, err := keyIndexes(t, keys)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	first := map[string][]string{}
	var order []string
	for _, r := range t.Rows {
		k, ok := compositeKey(r, idx)
		if !ok {
			continue
		}
		if _, seen := counts[k]; !seen {
			parts := make([]string, len(idx))
			for i, j := range idx {
				parts[i] = r[j].Key()
			}
			first[k] = parts
			order = append(order, k)
		}
		counts[k]++
	}
	var out []DuplicateKey
	for _, k := range order {
		if counts[k] > 1 {
			out = append(out, DuplicateKey{Key: first[k], Count: counts[k]})
		}
	}
	return out, nil
}

func keyIndexes(t *Table, keys []string) ([]int, error) {
	idx := make([]int, len(keys))
	for i, k := range keys {
		j := t.Index(k)
		if j < 0 {
			return nil, fmt.Errorf("join key %q not found in %s", k, t.label())
		}
		idx[i] = j
	}
	return idx, nil
}

func restIndexes(t *Table, keyIdx []int) []int {
	isKey := make(map[int]bool, len(keyIdx))
	for _, j := range keyIdx {
		isKey[j] = true
	}
	var out []int
	for j := range t.Columns {
		if !isKey[j] {
			out = append(out, j)
		}
	}
	return out
}

// compositeKey joins normalized key parts; null parts never match.
func compositeKey(row []Value, idx []int) (string, bool) {
	var b strings.Builder
	for i, j := range idx {
		v := row[j]
		if v.IsNull() {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(v.Key())
	}
	return b.String(), true
}
