package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/chart"
	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/table"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/KaramelBytes/munidata-cli/internal/warehouse"
	"github.com/spf13/cobra"
)

var (
	statsArea         string
	statsVariable     string
	statsYears        []string
	statsMunicipality []string
	statsFile         string
	statsColumn       string
	statsSheet        string
	statsSheetIndex   int
	statsFence        float64
	statsQuantile     string
	statsJSON         bool
	statsOutput       string
	statsChart        string
	statsChartType    string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Describe a numeric column: mean, median, std dev, kurtosis and Tukey fences",
	Long: `stats describes one variable of the data warehouse (--area/--variable, joined to the
filters table and restricted by --year/--municipality) or one column of any table
(--file/--column). Values outside [Q1 - k*IQR, Q3 + k*IQR] are listed as outliers.

An empty selection is not an error: the statistics are reported as insufficient data.

Numbers are parsed with decimal_separator/thousands_separator from config. When
both are unset, a value such as "1,234" is read as 1.234; for CSV files that use a
comma thousands separator run 'munidata config set thousands_separator ,' first
(or 'thousands_separator .' for files written like "1.234").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		warehouseMode := statsArea != "" || statsVariable != ""
		fileMode := statsFile != ""
		switch {
		case warehouseMode && fileMode:
			return fmt.Errorf("use either --area/--variable or --file, not both")
		case warehouseMode && (statsArea == "" || statsVariable == ""):
			return fmt.Errorf("--area and --variable are required together")
		case !warehouseMode && !fileMode:
			return fmt.Errorf("specify --area and --variable, or --file")
		}
		kind, err := chart.ParseKind(statsChartType)
		if err != nil {
			return err
		}

		var (
			rep      *analysis.SeriesReport
			data     *table.Table
			labelCol string
			valueCol string
			nf       table.NumberFormat
		)
		if warehouseMode {
			store, err := newStore(cmd, statsFence, statsQuantile)
			if err != nil {
				return err
			}
			q := warehouse.Query{
				Area:      statsArea,
				Variable:  statsVariable,
				Selection: reshape.Selection{Years: splitValues(statsYears), Municipalities: splitValues(statsMunicipality)},
			}
			r, ser, err := store.Report(q)
			if err != nil {
				return err
			}
			rep, data, labelCol, valueCol, nf = r, ser.Table, ser.NameColumn, ser.ValueColumn, store.Number
		} else {
			rep, data, labelCol, valueCol, nf, err = describeFile(cmd)
			if err != nil {
				return err
			}
		}
		printWarnings(cmd, rep.Warnings)

		var body []byte
		if statsJSON || strings.EqualFold(filepath.Ext(statsOutput), ".json") {
			if body, err = utils.PrettyJSON(rep); err != nil {
				return err
			}
			body = append(body, '\n')
		} else {
			body = []byte(rep.Markdown())
		}
		if statsOutput != "" {
			if err := utils.SafeWriteFile(statsOutput, body); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			successf(cmd.OutOrStdout(), "✓ Report written to %s\n", statsOutput)
		} else {
			fmt.Fprint(cmd.OutOrStdout(), string(body))
		}

		if statsChart != "" {
			pts := chart.Points(data, labelCol, valueCol, schema().Year, nf)
			title := rep.Variable
			if rep.Area != "" {
				title = rep.Area + "/" + rep.Variable
			}
			if err := chart.Save(statsChart, kind, pts, chart.Options{Title: title, YLabel: rep.Variable}); err != nil {
				return err
			}
			successf(cmd.OutOrStdout(), "✓ Chart written to %s\n", statsChart)
		}
		return nil
	},
}

// describeFile reports on a column of a standalone table, labelling outliers
// with the municipality name when the table has one.
func describeFile(cmd *cobra.Command) (*analysis.SeriesReport, *table.Table, string, string, table.NumberFormat, error) {
	var nf table.NumberFormat
	opt, err := sheetOptions(cmd, "sheet", statsSheet, "sheet-index", statsSheetIndex)
	if err != nil {
		return nil, nil, "", "", nf, err
	}
	st, err := statsOptions(cmd, statsFence, statsQuantile)
	if err != nil {
		return nil, nil, "", "", nf, err
	}
	nf = st.Number
	t, err := parser.ReadFile(statsFile, opt)
	if err != nil {
		return nil, nil, "", "", nf, err
	}
	sc := schema()
	col := statsColumn
	if col == "" {
		col = sc.Value
	}
	if !t.Has(col) {
		return nil, nil, "", "", nf, fmt.Errorf("column %q not found in %s (columns: %s)", col, filepath.Base(statsFile), strings.Join(t.Columns, ", "))
	}
	label := sc.Name
	if !t.Has(label) {
		label = sc.Code
	}
	desc := analysis.DescribeColumn(t, col, st)
	rep := &analysis.SeriesReport{
		Variable: col,
		Rows:     t.Len(),
		Stats:    desc,
		Outliers: analysis.FindOutliers(t, col, label, sc.Year, desc, nf),
	}
	if rep.Outliers == nil {
		rep.Outliers = []analysis.Outlier{}
	}
	if base := filepath.Base(statsFile); base != "" {
		rep.Area = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return rep, t, label, col, nf, nil
}

func init() {
	rootCmd.AddCommand(statsCmd)
	f := statsCmd.Flags()
	f.StringVar(&statsArea, "area", "", "thematic area (sub-directory of the data dir)")
	f.StringVar(&statsVariable, "variable", "", "variable name (workbook base name)")
	f.StringArrayVar(&statsYears, "year", nil, "restrict to year(s); repeatable or comma-separated")
	f.StringArrayVar(&statsMunicipality, "municipality", nil, "restrict to municipality name(s); repeatable or comma-separated")
	f.StringVar(&statsFile, "file", "", "describe a column of this table instead of a warehouse variable")
	f.StringVar(&statsColumn, "column", "", "column to describe with --file (default: value column)")
	f.StringVar(&statsSheet, "sheet", "", "sheet name when --file is a workbook")
	f.IntVar(&statsSheetIndex, "sheet-index", 0, "1-based sheet index when --file is a workbook")
	f.Float64Var(&statsFence, "fence", 1.5, "Tukey fence multiplier k")
	f.StringVar(&statsQuantile, "quantile", "linear", "quartile method: linear|exclusive")
	f.BoolVar(&statsJSON, "json", false, "print the report as JSON")
	f.StringVarP(&statsOutput, "output", "o", "", "write the report to a file (.json for JSON, otherwise Markdown)")
	f.StringVar(&statsChart, "chart", "", "also render a PNG chart to this path")
	f.StringVar(&statsChartType, "chart-type", "bar", "chart type: bar|line|box")
}
