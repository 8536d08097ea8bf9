package cmd

import (
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/warehouse"
	"github.com/spf13/cobra"
)

var (
	joinArea         string
	joinVariable     string
	joinYears        []string
	joinMunicipality []string
	joinOutput       string
	joinFormat       string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Left-join the filters table to one variable on (code, year)",
	Long: `join reads <data-dir>/<filters_file> and <data-dir>/<area>/<variable>.xlsx and merges
them on municipality code and year. Every filter row is kept. --year restricts the
filter rows before the join; --municipality restricts the merged rows by name.

Without -o the merged table is printed as Markdown.

Numbers are parsed with decimal_separator/thousands_separator from config. When
both are unset, a value such as "1,234" is read as 1.234; for CSV files that use a
comma thousands separator run 'munidata config set thousands_separator ,' first
(or 'thousands_separator .' for files written like "1.234").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		q := warehouse.Query{
			Area:      joinArea,
			Variable:  joinVariable,
			Selection: reshape.Selection{Years: splitValues(joinYears), Municipalities: splitValues(joinMunicipality)},
		}
		ser, err := store.Series(q)
		if err != nil {
			return err
		}
		printWarnings(cmd, ser.Warnings)
		if joinOutput == "" {
			export.RenderMarkdown(cmd.OutOrStdout(), ser.Table)
			return nil
		}
		m := export.NewManifest("join")
		m.Param("area", q.Area)
		m.Param("variable", q.Variable)
		m.Param("years", strings.Join(q.Years, ","))
		m.Param("municipalities", strings.Join(q.Municipalities, ","))
		m.Warnings = ser.Warnings
		return writeOutput(cmd, ser.Table, joinOutput, joinFormat, m)
	},
}

// splitValues flattens repeated and comma-separated flag values.
func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, p := range strings.Split(r, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(joinCmd)
	f := joinCmd.Flags()
	f.StringVar(&joinArea, "area", "", "thematic area (sub-directory of the data dir)")
	f.StringVar(&joinVariable, "variable", "", "variable name (workbook base name)")
	f.StringArrayVar(&joinYears, "year", nil, "restrict to year(s); repeatable or comma-separated")
	f.StringArrayVar(&joinMunicipality, "municipality", nil, "restrict to municipality name(s); repeatable or comma-separated")
	f.StringVarP(&joinOutput, "output", "o", "", "output file path (default: print Markdown)")
	f.StringVar(&joinFormat, "format", "", "output format: csv|xlsx|sqlite|json|md (default from extension)")
	_ = joinCmd.MarkFlagRequired("area")
	_ = joinCmd.MarkFlagRequired("variable")
}
