package warehouse

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/table"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
)

// Query selects one variable and restricts it to some years and
// municipalities. It is built per request.
type Query struct {
	Area     string
	Variable string
	reshape.Selection
}

// Series is a joined variable with the columns callers need to find.
type Series struct {
	*reshape.CombineResult
	ValueColumn string
}

// Series joins the filters table to the queried variable.
func (s *Store) Series(q Query) (*Series, error) {
	filters, err := s.LoadFilters()
	if err != nil {
		return nil, err
	}
	variable, err := s.LoadVariable(q.Area, q.Variable)
	if err != nil {
		return nil, err
	}
	res, err := reshape.Combine(filters, variable, s.Schema, q.Selection, reshape.CombineOptions{StrictKeys: s.StrictKeys})
	if err != nil {
		return nil, fmt.Errorf("join %s/%s: %w", q.Area, q.Variable, err)
	}
	for _, w := range res.Warnings {
		utils.Log().Warn("%s/%s: %s", q.Area, q.Variable, w)
	}
	valueCol := s.Schema.Value
	if res.Table.Has(valueCol + reshape.VariableSuffix) {
		valueCol += reshape.VariableSuffix
	}
	utils.Log().Debug("%s/%s: %d joined rows", q.Area, q.Variable, res.Table.Len())
	return &Series{CombineResult: res, ValueColumn: valueCol}, nil
}

// Report joins the variable and describes its value column. An empty
// selection yields a report with insufficient data, not an error.
func (s *Store) Report(q Query) (*analysis.SeriesReport, *Series, error) {
	ser, err := s.Series(q)
	if err != nil {
		return nil, nil, err
	}
	st := analysis.DescribeColumn(ser.Table, ser.ValueColumn, s.statsOptions())
	rep := &analysis.SeriesReport{
		Area:           q.Area,
		Variable:       q.Variable,
		Years:          q.Years,
		Municipalities: q.Municipalities,
		Rows:           ser.Table.Len(),
		Stats:          st,
		Outliers:       analysis.FindOutliers(ser.Table, ser.ValueColumn, ser.NameColumn, s.Schema.Year, st, s.Number),
		Warnings:       ser.Warnings,
	}
	if rep.Outliers == nil {
		rep.Outliers = []analysis.Outlier{}
	}
	return rep, ser, nil
}

func (s *Store) statsOptions() analysis.StatsOptions {
	opt := s.Stats
	opt.Number = s.Number
	return opt
}

// VariableRef names a variable as area/name.
type VariableRef struct {
	Area string `json:"area"`
	Name string `json:"name"`
}

func (r VariableRef) String() string { return r.Area + "/" + r.Name }

// ParseVariableRef parses "area/name".
func ParseVariableRef(s string) (VariableRef, error) {
	area, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || area == "" || name == "" {
		return VariableRef{}, fmt.Errorf("%w: expected area/variable, got %q", ErrInvalidName, s)
	}
	return VariableRef{Area: area, Name: name}, nil
}

// CorrelationRequest selects the variables to correlate and the common
// year/municipality restriction.
type CorrelationRequest struct {
	Variables []VariableRef
	reshape.Selection
	Method analysis.Method
}

// CorrelationResult holds the matrix and the inner-joined rows it was
// computed from.
type CorrelationResult struct {
	Matrix   *analysis.CorrMatrix `json:"matrix"`
	Rows     *table.Table         `json:"-"`
	Warnings []string             `json:"warnings,omitempty"`
}

// Correlate joins each variable as Series does, keeps the rows that carry a
// value, inner-joins the variables on (code, year) and correlates the value
// columns.
func (s *Store) Correlate(req CorrelationRequest) (*CorrelationResult, error) {
	refs := dedupe(req.Variables)
	if len(refs) < 2 {
		return nil, fmt.Errorf("%w (got %d)", analysis.ErrTooFewVariables, len(refs))
	}
	labels := columnLabels(refs, s.Schema)
	keys := []string{s.Schema.Code, s.Schema.Year}

	out := &CorrelationResult{}
	var joined *table.Table
	for i, ref := range refs {
		ser, err := s.Series(Query{Area: ref.Area, Variable: ref.Name, Selection: req.Selection})
		if err != nil {
			return nil, err
		}
		for _, w := range ser.Warnings {
			out.Warnings = append(out.Warnings, ref.String()+": "+w)
		}
		vi := ser.Table.Index(ser.ValueColumn)
		if vi < 0 {
			return nil, fmt.Errorf("%s: %w: value column %s", ref, reshape.ErrMissingKey, s.Schema.Value)
		}
		present := ser.Table.Filter(func(r []table.Value) bool { return !r[vi].IsNull() })

		cols := append(append([]string{}, keys...), ser.ValueColumn)
		if i == 0 {
			cols = []string{s.Schema.Code, s.Schema.Year, ser.NameColumn, ser.ValueColumn}
		}
		frame, err := present.Select(cols...)
		if err != nil {
			return nil, err
		}
		if err := frame.Rename(ser.ValueColumn, labels[i]); err != nil {
			return nil, err
		}
		if i == 0 {
			if err := frame.Rename(ser.NameColumn, s.Schema.Name); err != nil {
				return nil, err
			}
			joined = frame
			continue
		}
		joined, err = table.InnerJoin(joined, frame, keys, table.JoinOptions{})
		if err != nil {
			return nil, err
		}
	}
	joined.Name = "correlation"
	utils.Log().Debug("correlation: %d rows common to %d variables", joined.Len(), len(refs))

	m, err := analysis.Correlate(joined, labels, req.Method, s.Number)
	if err != nil {
		return nil, err
	}
	out.Matrix = m
	out.Rows = joined
	return out, nil
}

// columnLabels uses the bare variable name unless two refs share it or it
// clashes with a schema column.
func columnLabels(refs []VariableRef, sc reshape.Schema) []string {
	count := map[string]int{}
	for _, r := range refs {
		count[strings.ToLower(r.Name)]++
	}
	for _, c := range []string{sc.Code, sc.Name, sc.Year} {
		count[strings.ToLower(c)] += 2
	}
	labels := make([]string, len(refs))
	for i, r := range refs {
		labels[i] = r.Name
		if count[strings.ToLower(r.Name)] > 1 {
			labels[i] = r.String()
		}
	}
	return labels
}

func dedupe(refs []VariableRef) []VariableRef {
	seen := map[VariableRef]bool{}
	var out []VariableRef
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
