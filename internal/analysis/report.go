package analysis

import (
	"fmt"
	"strings"
)

// SeriesReport is what a single variable query produces.
type SeriesReport struct {
	Area           string     `json:"area"`
	Variable       string     `json:"variable"`
	Years          []string   `json:"years,omitempty"`
	Municipalities []string   `json:"municipalities,omitempty"`
	Rows           int        `json:"rows"`
	Stats          Statistics `json:"stats"`
	Outliers       []Outlier  `json:"outliers"`
	Warnings       []string   `json:"warnings,omitempty"`
}

// Markdown renders a compact report for terminals or standalone docs.
func (r *SeriesReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[SERIES SUMMARY]\n")
	b.WriteString(fmt.Sprintf("Variable: %s/%s\n", r.Area, r.Variable))
	b.WriteString(fmt.Sprintf("Years: %s\n", listOrAll(r.Years)))
	b.WriteString(fmt.Sprintf("Municipalities: %s\n", listOrAll(r.Municipalities)))
	b.WriteString(fmt.Sprintf("Rows: %d\n\n", r.Rows))

	b.WriteString(StatsMarkdown(r.Stats))

	if !r.Stats.Insufficient() {
		b.WriteString("\n[OUTLIERS]\n")
		if len(r.Outliers) == 0 {
			b.WriteString("- none\n")
		}
		for _, o := range r.Outliers {
			label := safeVal(o.Label)
			if label == "" {
				label = "(unnamed)"
			}
			if o.Year != "" {
				label = fmt.Sprintf("%s (%s)", label, o.Year)
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", label, formatNum(&o.Value)))
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

// StatsMarkdown renders a [STATISTICS] block.
func StatsMarkdown(s Statistics) string {
	var b strings.Builder
	b.WriteString("[STATISTICS]\n")
	if s.Column != "" {
		b.WriteString(fmt.Sprintf("Column: %s\n", s.Column))
	}
	if s.Insufficient() {
		b.WriteString("insufficient data\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("- count: %d\n", s.Count))
	b.WriteString(fmt.Sprintf("- mean: %s\n", formatNum(s.Mean)))
	b.WriteString(fmt.Sprintf("- median: %s\n", formatNum(s.Median)))
	b.WriteString(fmt.Sprintf("- std: %s\n", formatNum(s.StdDev)))
	b.WriteString(fmt.Sprintf("- kurtosis: %s\n", formatNum(s.Kurtosis)))
	b.WriteString(fmt.Sprintf("- quartiles: Q1 %s, Q3 %s\n", formatNum(s.Q1), formatNum(s.Q3)))
	b.WriteString(fmt.Sprintf("- fences (k=%.4g): [%s, %s]\n", s.FenceMultiplier, formatNum(s.LowerFence), formatNum(s.UpperFence)))
	return b.String()
}

// Markdown renders the strongest pairs followed by the full matrix.
func (m *CorrMatrix) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[CORRELATIONS] (%s)\n", m.Method))
	pairs := m.TopPairs(10)
	if len(pairs) == 0 {
		b.WriteString("- no defined pairs\n")
	}
	for _, p := range pairs {
		b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N))
	}

	b.WriteString("\n[MATRIX]\n| variable")
	for _, c := range m.Columns {
		b.WriteString(" | " + safeVal(c))
	}
	b.WriteString(" |\n| ---")
	for range m.Columns {
		b.WriteString(" | ---")
	}
	b.WriteString(" |\n")
	for i, c := range m.Columns {
		b.WriteString("| " + safeVal(c))
		for _, v := range m.Values[i] {
			cell := "null"
			if v == v { // not NaN
				cell = fmt.Sprintf("%.3f", v)
			}
			b.WriteString(" | " + cell)
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

func formatNum(f *float64) string {
	if f == nil {
		return "null"
	}
	return fmt.Sprintf("%.4g", *f)
}

func listOrAll(vals []string) string {
	if len(vals) == 0 {
		return "all"
	}
	return strings.Join(vals, ", ")
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
