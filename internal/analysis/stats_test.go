package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDescribeEmptyIsInsufficient(t *testing.T) {
	st := Describe(nil, DefaultStatsOptions())
	if !st.Insufficient() {
		t.Fatalf("expected insufficient data")
	}
	if st.Mean != nil || st.Median != nil || st.StdDev != nil || st.Kurtosis != nil || st.UpperFence != nil {
		t.Fatalf("expected all-null stats, got %+v", st)
	}
	if !strings.Contains(StatsMarkdown(st), "insufficient data") {
		t.Fatalf("markdown should mention insufficient data")
	}
}

func TestDescribeColumnIgnoresNullsAndAbsentColumns(t *testing.T) {
	tb := table.FromRecords("t", [][]string{{"VALOR"}, {"1"}, {""}, {"n/a"}, {"3"}})
	st := DescribeColumn(tb, "VALOR", DefaultStatsOptions())
	if st.Count != 2 || !approx(*st.Mean, 2) {
		t.Fatalf("count=%d mean=%v", st.Count, st.Mean)
	}
	missing := DescribeColumn(tb, "OTHER", DefaultStatsOptions())
	if !missing.Insufficient() || missing.Column != "OTHER" {
		t.Fatalf("absent column should yield all-null stats, got %+v", missing)
	}
}

func TestDescribeMoments(t *testing.T) {
	st := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9}, DefaultStatsOptions())
	if !approx(*st.Mean, 5) {
		t.Fatalf("mean = %v", *st.Mean)
	}
	// sample std (ddof=1): sqrt(32/7)
	if !approx(*st.StdDev, math.Sqrt(32.0/7)) {
		t.Fatalf("std = %v", *st.StdDev)
	}
	if !approx(*st.Median, 4.5) {
		t.Fatalf("median = %v", *st.Median)
	}
	// m2 = 4, m4 = 44.5 -> 44.5/16 - 3
	if !approx(*st.Kurtosis, 44.5/16-3) {
		t.Fatalf("kurtosis = %v", *st.Kurtosis)
	}

	one := Describe([]float64{3}, DefaultStatsOptions())
	if one.StdDev != nil || one.Kurtosis != nil || !approx(*one.Median, 3) {
		t.Fatalf("single value stats = %+v", one)
	}
}

func TestFencesByQuantileMethod(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 100}
	tests := []struct {
		name    string
		method  QuantileMethod
		k       float64
		q1, q3  float64
		flagged bool
	}{
		{"linear k=1.5", QuantileLinear, 1.5, 2.25, 4.75, true},
		{"exclusive k=1.5", QuantileExclusive, 1.5, 1.75, 28.75, true},
		{"linear k=10", QuantileLinear, 10, 2.25, 4.75, true},
		{"exclusive k=10", QuantileExclusive, 10, 1.75, 28.75, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := Describe(vals, StatsOptions{FenceMultiplier: tc.k, Quantile: tc.method})
			if !approx(*st.Q1, tc.q1) || !approx(*st.Q3, tc.q3) {
				t.Fatalf("Q1=%v Q3=%v, want %v %v", *st.Q1, *st.Q3, tc.q1, tc.q3)
			}
			iqr := tc.q3 - tc.q1
			if !approx(*st.UpperFence, tc.q3+tc.k*iqr) || !approx(*st.LowerFence, tc.q1-tc.k*iqr) {
				t.Fatalf("fences = [%v, %v]", *st.LowerFence, *st.UpperFence)
			}
			if got := st.IsOutlier(100); got != tc.flagged {
				t.Fatalf("IsOutlier(100) = %v, want %v", got, tc.flagged)
			}
		})
	}
}

func TestFindOutliersLabelsRows(t *testing.T) {
	tb := table.FromRecords("t", [][]string{
		{"NM_MUN", "ANO", "VALOR"},
		{"A", "2010", "1"}, {"B", "2010", "2"}, {"C", "2010", "3"},
		{"D", "2010", "4"}, {"E", "2010", "5"}, {"F", "2010.0", "100"},
		{"G", "2010", ""},
	})
	st := DescribeColumn(tb, "VALOR", DefaultStatsOptions())
	out := FindOutliers(tb, "VALOR", "NM_MUN", "ANO", st, table.NumberFormat{})
	if len(out) != 1 || out[0].Label != "F" || out[0].Year != "2010" || out[0].Value != 100 {
		t.Fatalf("outliers = %+v", out)
	}
	if FindOutliers(tb, "VALOR", "NM_MUN", "ANO", Describe(nil, DefaultStatsOptions()), table.NumberFormat{}) != nil {
		t.Fatalf("insufficient stats must not flag anything")
	}
}

func TestParseQuantileMethod(t *testing.T) {
	if m, err := ParseQuantileMethod(""); err != nil || m != QuantileLinear {
		t.Fatalf("default = %v, %v", m, err)
	}
	if m, err := ParseQuantileMethod("Exclusive"); err != nil || m != QuantileExclusive {
		t.Fatalf("exclusive = %v, %v", m, err)
	}
	if _, err := ParseQuantileMethod("nearest"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSeriesReportMarkdown(t *testing.T) {
	r := &SeriesReport{
		Area: "economia", Variable: "PIB", Years: []string{"2010"}, Rows: 6,
		Stats:    Describe([]float64{1, 2, 3, 4, 5, 100}, DefaultStatsOptions()),
		Outliers: []Outlier{{Label: "F", Year: "2010", Value: 100}},
		Warnings: []string{"variable table has 1 duplicate keys"},
	}
	md := r.Markdown()
	for _, want := range []string{"[SERIES SUMMARY]", "economia/PIB", "Municipalities: all", "[STATISTICS]", "[OUTLIERS]", "F (2010): 100", "[WARNINGS]"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}
