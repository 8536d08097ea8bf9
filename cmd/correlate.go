package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/warehouse"
	"github.com/spf13/cobra"
)

var (
	corrVars         []string
	corrMethod       string
	corrYears        []string
	corrMunicipality []string
	corrOutput       string
	corrRowsOutput   string
	corrFormat       string
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Correlation matrix across two or more warehouse variables",
	Long: `correlate joins each --var (area/variable) to the filters table, keeps the
(code, year) keys present in every variable and computes a pairwise correlation
matrix (pearson, spearman or kendall).

Without -o the matrix is printed as Markdown. --rows-output exports the joined rows
the matrix was computed from.

Numbers are parsed with decimal_separator/thousands_separator from config. When
both are unset, a value such as "1,234" is read as 1.234; for CSV files that use a
comma thousands separator run 'munidata config set thousands_separator ,' first
(or 'thousands_separator .' for files written like "1.234").`,
	Example: `  munidata correlate --var saude/Obitos --var economia/PIB --year 2019,2020 --method spearman`,
	RunE: func(cmd *cobra.Command, args []string) error {
		method := settings().CorrelationMethod
		if cmd.Flags().Changed("method") {
			method = corrMethod
		}
		m, err := analysis.ParseMethod(method)
		if err != nil {
			return err
		}
		req := warehouse.CorrelationRequest{
			Selection: reshape.Selection{Years: splitValues(corrYears), Municipalities: splitValues(corrMunicipality)},
			Method:    m,
		}
		for _, v := range splitValues(corrVars) {
			ref, err := warehouse.ParseVariableRef(v)
			if err != nil {
				return err
			}
			req.Variables = append(req.Variables, ref)
		}
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		res, err := store.Correlate(req)
		if err != nil {
			return err
		}
		printWarnings(cmd, res.Warnings)

		if corrOutput == "" {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows in common: %d\n\n", res.Rows.Len())
			fmt.Fprint(out, res.Matrix.Markdown())
		} else {
			mf := corrManifest(req)
			mf.Warnings = res.Warnings
			if err := writeOutput(cmd, res.Matrix.Table("correlation"), corrOutput, corrFormat, mf); err != nil {
				return err
			}
		}
		if corrRowsOutput != "" {
			mf := corrManifest(req)
			if err := writeOutput(cmd, res.Rows, corrRowsOutput, corrFormat, mf); err != nil {
				return err
			}
		}
		return nil
	},
}

func corrManifest(req warehouse.CorrelationRequest) *export.Manifest {
	m := export.NewManifest("correlate")
	vars := make([]string, len(req.Variables))
	for i, v := range req.Variables {
		vars[i] = v.String()
	}
	m.Param("variables", strings.Join(vars, ","))
	m.Param("method", string(req.Method))
	m.Param("years", strings.Join(req.Years, ","))
	m.Param("municipalities", strings.Join(req.Municipalities, ","))
	return m
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	f := correlateCmd.Flags()
	f.StringArrayVar(&corrVars, "var", nil, "variable as area/variable; repeat for each variable (at least two)")
	f.StringVar(&corrMethod, "method", "pearson", "correlation method: pearson|spearman|kendall")
	f.StringArrayVar(&corrYears, "year", nil, "restrict to year(s); repeatable or comma-separated")
	f.StringArrayVar(&corrMunicipality, "municipality", nil, "restrict to municipality name(s); repeatable or comma-separated")
	f.StringVarP(&corrOutput, "output", "o", "", "write the matrix to a file (default: print Markdown)")
	f.StringVar(&corrRowsOutput, "rows-output", "", "write the inner-joined rows to a file")
	f.StringVar(&corrFormat, "format", "", "output format: csv|xlsx|sqlite|json|md (default from extension)")
}
