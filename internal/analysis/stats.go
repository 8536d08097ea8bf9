// Package analysis computes descriptive statistics, Tukey fences and
// correlation matrices over tables.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

// QuantileMethod selects how quartiles are interpolated.
type QuantileMethod string

const (
	// QuantileLinear interpolates at (n-1)p, the pandas/numpy default.
	QuantileLinear QuantileMethod = "linear"
	// QuantileExclusive interpolates at (n+1)p, as QUARTILE.EXC does.
	QuantileExclusive QuantileMethod = "exclusive"
)

// ParseQuantileMethod validates a method name; empty means linear.
func ParseQuantileMethod(s string) (QuantileMethod, error) {
	switch QuantileMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", QuantileLinear:
		return QuantileLinear, nil
	case QuantileExclusive:
		return QuantileExclusive, nil
	default:
		return "", fmt.Errorf("unsupported quantile method: %s (use linear|exclusive)", s)
	}
}

// StatsOptions controls the statistics engine.
type StatsOptions struct {
	// FenceMultiplier is k in [Q1 - k*IQR, Q3 + k*IQR]. Non-positive means 1.5.
	FenceMultiplier float64
	Quantile        QuantileMethod
	Number          table.NumberFormat
}

// DefaultStatsOptions returns the usual Tukey setup.
func DefaultStatsOptions() StatsOptions {
	return StatsOptions{FenceMultiplier: 1.5, Quantile: QuantileLinear}
}

// Statistics summarizes a numeric column. Every pointer is nil when there is
// no numeric data ("insufficient data"); StdDev is also nil for a single
// value and Kurtosis for zero variance.
type Statistics struct {
	Column          string   `json:"column"`
	Count           int      `json:"count"`
	Mean            *float64 `json:"mean"`
	Median          *float64 `json:"median"`
	StdDev          *float64 `json:"std_dev"`
	Kurtosis        *float64 `json:"kurtosis"`
	Q1              *float64 `json:"q1"`
	Q3              *float64 `json:"q3"`
	LowerFence      *float64 `json:"lower_fence"`
	UpperFence      *float64 `json:"upper_fence"`
	FenceMultiplier float64  `json:"fence_multiplier"`
}

// Insufficient reports whether no numeric values were available.
func (s Statistics) Insufficient() bool { return s.Count == 0 }

// IsOutlier reports whether v lies outside the fences.
func (s Statistics) IsOutlier(v float64) bool {
	if s.LowerFence == nil || s.UpperFence == nil {
		return false
	}
	return v < *s.LowerFence || v > *s.UpperFence
}

// Describe computes statistics over already-cleaned values.
func Describe(vals []float64, opt StatsOptions) Statistics {
	k := opt.FenceMultiplier
	if k <= 0 {
		k = 1.5
	}
	st := Statistics{Count: len(vals), FenceMultiplier: k}
	if len(vals) == 0 {
		return st
	}

	// Welford for mean and variance
	var n int
	var mean, m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	st.Mean = ptr(mean)
	if n > 1 {
		st.StdDev = ptr(math.Sqrt(m2 / float64(n-1)))
	}

	// population excess kurtosis: m4/m2^2 - 3
	var c2, c4 float64
	for _, x := range vals {
		d := x - mean
		d2 := d * d
		c2 += d2
		c4 += d2 * d2
	}
	c2 /= float64(n)
	c4 /= float64(n)
	if c2 > 0 {
		st.Kurtosis = ptr(c4/(c2*c2) - 3)
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	st.Median = ptr(quantile(sorted, 0.5))
	q1, q3 := quartiles(sorted, opt.Quantile)
	iqr := q3 - q1
	st.Q1 = ptr(q1)
	st.Q3 = ptr(q3)
	st.LowerFence = ptr(q1 - k*iqr)
	st.UpperFence = ptr(q3 + k*iqr)
	return st
}

// DescribeColumn coerces a column to numbers, drops missing values and
// describes the rest. An absent column yields all-null statistics.
func DescribeColumn(t *table.Table, col string, opt StatsOptions) Statistics {
	vals, err := t.Column(col)
	if err != nil {
		st := Describe(nil, opt)
		st.Column = col
		return st
	}
	st := Describe(NumericValues(vals, opt.Number), opt)
	st.Column = col
	return st
}

// NumericValues keeps the values that coerce to numbers.
func NumericValues(vals []table.Value, nf table.NumberFormat) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if x, ok := v.FloatWith(nf); ok {
			out = append(out, x)
		}
	}
	return out
}

// Outlier is a labelled value outside the fences.
type Outlier struct {
	Label string  `json:"label"`
	Year  string  `json:"year,omitempty"`
	Value float64 `json:"value"`
}

// FindOutliers scans the value column of t against st's fences. labelCol and
// yearCol are optional and only used for labelling.
func FindOutliers(t *table.Table, valueCol, labelCol, yearCol string, st Statistics, nf table.NumberFormat) []Outlier {
	vi := t.Index(valueCol)
	if vi < 0 || st.Insufficient() {
		return nil
	}
	li, yi := t.Index(labelCol), t.Index(yearCol)
	var out []Outlier
	for _, r := range t.Rows {
		x, ok := r[vi].FloatWith(nf)
		if !ok || !st.IsOutlier(x) {
			continue
		}
		o := Outlier{Value: x}
		if li >= 0 {
			o.Label = r[li].String()
		}
		if yi >= 0 {
			o.Year = r[yi].Key()
		}
		out = append(out, o)
	}
	return out
}

func quartiles(sorted []float64, m QuantileMethod) (q1, q3 float64) {
	if m == QuantileExclusive {
		return quantileExclusive(sorted, 0.25), quantileExclusive(sorted, 0.75)
	}
	return quantile(sorted, 0.25), quantile(sorted, 0.75)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// quantileExclusive interpolates at the 1-based position (n+1)q, clamped to
// the sample range.
func quantileExclusive(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	h := float64(n+1) * q
	if h <= 1 {
		return sorted[0]
	}
	if h >= float64(n) {
		return sorted[n-1]
	}
	lo := int(math.Floor(h))
	w := h - float64(lo)
	return sorted[lo-1] + w*(sorted[lo]-sorted[lo-1])
}

func ptr(f float64) *float64 { return &f }
