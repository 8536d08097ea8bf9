package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

// ErrTooFewVariables is returned when fewer than two columns are correlated.
var ErrTooFewVariables = errors.New("correlation requires at least two variables")

// Method selects the correlation coefficient.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
	Kendall  Method = "kendall"
)

// ParseMethod validates a method name; empty means Pearson.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", Pearson:
		return Pearson, nil
	case Spearman:
		return Spearman, nil
	case Kendall:
		return Kendall, nil
	default:
		return "", fmt.Errorf("unsupported correlation method: %s (use pearson|spearman|kendall)", s)
	}
}

// CorrMatrix holds a symmetric correlation matrix. Undefined cells (fewer
// than two paired observations, or zero variance) are NaN.
type CorrMatrix struct {
	Method  Method      `json:"method"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
	N       [][]int     `json:"n"`      // paired observations per cell
}

// MarshalJSON renders NaN cells as null.
func (m CorrMatrix) MarshalJSON() ([]byte, error) {
	vals := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		vals[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals[i][j] = ptr(v)
			}
		}
	}
	return json.Marshal(struct {
		Method  Method       `json:"method"`
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
		N       [][]int      `json:"n"`
	}{m.Method, m.Columns, vals, m.N})
}

// Table renders the matrix with a leading "variable" column, NaN as null.
func (m *CorrMatrix) Table(name string) *table.Table {
	cols := append([]string{"variable"}, m.Columns...)
	t := table.New(name, cols...)
	for i, c := range m.Columns {
		row := make([]table.Value, 0, len(cols))
		row = append(row, table.Str(c))
		for _, v := range m.Values[i] {
			row = append(row, table.Num(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// PairCorr is a single off-diagonal entry.
type PairCorr struct {
	A, B string
	R    float64
	N    int
}

// TopPairs lists off-diagonal pairs ordered by |r| descending, skipping NaN.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r, N: m.N[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// Correlate computes the pairwise matrix over cols using pairwise-complete
// numeric observations.
func Correlate(t *table.Table, cols []string, method Method, nf table.NumberFormat) (*CorrMatrix, error) {
	if len(cols) < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrTooFewVariables, len(cols))
	}
	if method == "" {
		method = Pearson
	}
	series := make([][]float64, len(cols))
	valid := make([][]bool, len(cols))
	for c, name := range cols {
		vals, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		series[c] = make([]float64, len(vals))
		valid[c] = make([]bool, len(vals))
		for i, v := range vals {
			series[c][i], valid[c][i] = v.FloatWith(nf)
		}
	}

	n := len(cols)
	m := &CorrMatrix{Method: method, Columns: append([]string(nil), cols...)}
	m.Values = make([][]float64, n)
	m.N = make([][]int, n)
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
		m.N[i] = make([]int, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			var xs, ys []float64
			for i := range series[a] {
				if valid[a][i] && valid[b][i] {
					xs = append(xs, series[a][i])
					ys = append(ys, series[b][i])
				}
			}
			r := coefficient(xs, ys, method)
			m.Values[a][b], m.Values[b][a] = r, r
			m.N[a][b], m.N[b][a] = len(xs), len(xs)
		}
	}
	return m, nil
}

func coefficient(xs, ys []float64, method Method) float64 {
	switch method {
	case Spearman:
		return pearson(ranks(xs), ranks(ys))
	case Kendall:
		return kendallTauB(xs, ys)
	default:
		return pearson(xs, ys)
	}
}

func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	denom := math.Sqrt(sxx * syy)
	if denom == 0 {
		return math.NaN()
	}
	return clamp(sxy / denom)
}

// ranks assigns 1-based ranks, averaging ties.
func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// kendallTauB handles ties in either variable.
func kendallTauB(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := sign(xs[i] - xs[j])
			dy := sign(ys[i] - ys[j])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return math.NaN()
	}
	return clamp((concordant - discordant) / denom)
}

func sign(d float64) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

func clamp(r float64) float64 {
	if r > 1 {
		return 1
	} else if r < -1 {
		return -1
	}
	return r
}
