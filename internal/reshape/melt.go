package reshape

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

// MeltResult is the long table plus the headers recognized as years.
type MeltResult struct {
	Table       *table.Table
	YearColumns []string
}

// Melt stacks year columns of a wide table into (code, name, value, year)
// rows. Output rows are grouped by year column in header order, keeping the
// original row order within each group.
func Melt(wide *table.Table, s Schema, yf YearFormat) (*MeltResult, error) {
	ci, ni := wide.Index(s.Code), wide.Index(s.Name)
	var missing []string
	if ci < 0 {
		missing = append(missing, s.Code)
	}
	if ni < 0 {
		missing = append(missing, s.Name)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: wide table lacks %s", ErrMissingKey, strings.Join(missing, ", "))
	}

	type yearCol struct {
		idx  int
		year string
	}
	var years []yearCol
	var headers []string
	for j, h := range wide.Columns {
		if j == ci || j == ni {
			continue
		}
		if y, ok := yf.Match(h); ok {
			years = append(years, yearCol{idx: j, year: y})
			headers = append(headers, h)
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("%w in %d columns of %s", ErrNoYearColumns, len(wide.Columns), wide.Name)
	}

	out := table.New(wide.Name, s.Code, s.Name, s.Value, s.Year)
	out.Rows = make([][]table.Value, 0, len(years)*len(wide.Rows))
	for _, yc := range years {
		yv := table.Str(yc.year)
		for _, r := range wide.Rows {
			out.Rows = append(out.Rows, []table.Value{r[ci], r[ni], r[yc.idx], yv})
		}
	}
	return &MeltResult{Table: out, YearColumns: headers}, nil
}
