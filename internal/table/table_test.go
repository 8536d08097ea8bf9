package table

import (
	"errors"
	"testing"
)

func mk(name string, cols []string, rows ...[]string) *Table {
	recs := append([][]string{cols}, rows...)
	return FromRecords(name, recs)
}

func TestValueKeyNormalizesIntegralNumbers(t *testing.T) {
	cases := map[string]string{
		"3550308":   "3550308",
		"3550308.0": "3550308",
		" 2010 ":    "2010",
		"12.5":      "12.5",
		"São Paulo": "São Paulo",
	}
	for in, want := range cases {
		if got := Str(in).Key(); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
	if !Str("").IsNull() || !Str("   ").IsNull() {
		t.Fatalf("blank strings must be null")
	}
	if Num(2010).Key() != Str("2010.0").Key() {
		t.Fatalf("expected numeric and text year to compare equal")
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		nf   NumberFormat
		want float64
		ok   bool
	}{
		{"1.234,5", NumberFormat{}, 1234.5, true},
		{"1,234.5", NumberFormat{}, 1234.5, true},
		{"12,5%", NumberFormat{}, 12.5, true},
		{"1e3", NumberFormat{}, 1000, true},
		{"1,234", NumberFormat{DecimalSeparator: '.', ThousandsSeparator: ','}, 1234, true},
		{"1,234", NumberFormat{}, 1.234, true},
		{"1,234", NumberFormat{ThousandsSeparator: ','}, 1234, true},
		{"1,234.5", NumberFormat{ThousandsSeparator: ','}, 1234.5, true},
		{"1.234", NumberFormat{ThousandsSeparator: '.'}, 1234, true},
		{"1.234,5", NumberFormat{ThousandsSeparator: '.'}, 1234.5, true},
		{"1 234,5", NumberFormat{ThousandsSeparator: ' '}, 1234.5, true},
		{"abc", NumberFormat{}, 0, false},
		{"NaN", NumberFormat{}, 0, false},
		{"", NumberFormat{}, 0, false},
	}
	for _, c := range cases {
		got, ok := ParseNumber(c.in, c.nf)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseNumber(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestLeftJoinPreservesLeftRowsAndSuffixesOverlap(t *testing.T) {
	filters := mk("Filtros", []string{"CD_MUN", "NM_MUN", "ANO"},
		[]string{"1", "Alpha", "2010"},
		[]string{"2", "Beta", "2010"},
		[]string{"3", "Gamma", "2010"},
	)
	vars := mk("PIB", []string{"CD_MUN", "NM_MUN", "ANO", "VALOR"},
		[]string{"1.0", "alpha", "2010", "10"},
		[]string{"2", "beta", "2011", "20"},
	)
	out, err := LeftJoin(filters, vars, []string{"CD_MUN", "ANO"}, JoinOptions{LeftSuffix: "_filtros", RightSuffix: "_variavel"})
	if err != nil {
		t.Fatalf("LeftJoin: %v", err)
	}
	wantCols := []string{"CD_MUN", "ANO", "NM_MUN_filtros", "NM_MUN_variavel", "VALOR"}
	if len(out.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
	}
	for i, c := range wantCols {
		if out.Columns[i] != c {
			t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
		}
	}
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 3", out.Len())
	}
	if got := out.Get(0, "VALOR").String(); got != "10" {
		t.Fatalf("row 0 VALOR = %q, want 10", got)
	}
	if !out.Get(1, "VALOR").IsNull() || !out.Get(2, "VALOR").IsNull() {
		t.Fatalf("unmatched rows must carry null values")
	}
}

func TestInnerJoinDisjointKeysYieldsZeroRows(t *testing.T) {
	a := mk("a", []string{"CD_MUN", "ANO", "x"}, []string{"1", "2010", "1"}, []string{"2", "2010", "2"})
	b := mk("b", []string{"CD_MUN", "ANO", "y"}, []string{"1", "2011", "1"}, []string{"3", "2010", "2"})
	out, err := InnerJoin(a, b, []string{"CD_MUN", "ANO"}, JoinOptions{})
	if err != nil {
		t.Fatalf("InnerJoin: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("rows = %d, want 0", out.Len())
	}
	if len(out.Columns) != 4 {
		t.Fatalf("columns = %v", out.Columns)
	}
}

func TestJoinOverlapWithoutSuffixFails(t *testing.T) {
	a := mk("a", []string{"k", "v"}, []string{"1", "x"})
	b := mk("b", []string{"k", "v"}, []string{"1", "y"})
	if _, err := InnerJoin(a, b, []string{"k"}, JoinOptions{}); !errors.Is(err, ErrColumnOverlap) {
		t.Fatalf("expected ErrColumnOverlap, got %v", err)
	}
}

func TestDuplicateKeysFanOutAndAreReported(t *testing.T) {
	left := mk("l", []string{"k"}, []string{"1"}, []string{"2"})
	right := mk("r", []string{"k", "v"}, []string{"1", "a"}, []string{"1", "b"}, []string{"2", "c"})
	out, err := LeftJoin(left, right, []string{"k"}, JoinOptions{})
	if err != nil {
		t.Fatalf("LeftJoin: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("rows = %d, want 3 (fan-out)", out.Len())
	}
	dups, err := DuplicateKeys(right, []string{"k"})
	if err != nil {
		t.Fatalf("DuplicateKeys: %v", err)
	}
	if len(dups) != 1 || dups[0].Count != 2 || dups[0].Key[0] != "1" {
		t.Fatalf("dups = %+v", dups)
	}
}

func TestSelectFilterDistinct(t *testing.T) {
	tb := mk("t", []string{"a", "b"}, []string{"1", "x"}, []string{"2", "y"}, []string{"1.0", "z"})
	sel, err := tb.Select("b", "a")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Columns[0] != "b" || sel.Rows[0][1].String() != "1" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if _, err := tb.Select("missing"); err == nil {
		t.Fatalf("expected error for missing column")
	}
	f := tb.Filter(func(r []Value) bool { return r[0].Key() == "1" })
	if f.Len() != 2 {
		t.Fatalf("filter rows = %d", f.Len())
	}
	d, err := tb.Distinct("a")
	if err != nil || len(d) != 2 {
		t.Fatalf("distinct = %v, %v", d, err)
	}
}
