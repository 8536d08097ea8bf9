package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/spf13/cobra"
)

var (
	meltOutput      string
	meltOutputDir   string
	meltFormat      string
	meltSheet       string
	meltSheetIndex  int
	meltYearPattern string
	meltYearMin     int
	meltYearMax     int
)

var meltCmd = &cobra.Command{
	Use:   "melt <wide>",
	Short: "Stack year columns of a wide table into (code, name, value, year) rows",
	Long: `melt turns a table with one column per year into long form. Year columns are the
headers matching the year pattern (default: a bare four-digit year between 1800 and 2200).

Without -o the result is written to <output-dir>/<wide>_<parent of output-dir>.xlsx.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := sheetOptions(cmd, "sheet", meltSheet, "sheet-index", meltSheetIndex)
		if err != nil {
			return err
		}
		yf, err := yearFormat(cmd, meltYearPattern, meltYearMin, meltYearMax)
		if err != nil {
			return err
		}
		wide, err := parser.ReadFile(args[0], opt)
		if err != nil {
			return err
		}
		res, err := reshape.Melt(wide, schema(), yf)
		if err != nil {
			return fmt.Errorf("melt %s: %w", filepath.Base(args[0]), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Year columns: %s\n", strings.Join(res.YearColumns, ", "))

		out := meltOutput
		if out == "" {
			dir := meltOutputDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			if out, err = withFormat(export.OutputName(args[0], dir), meltFormat); err != nil {
				return err
			}
		}
		m := export.NewManifest("melt")
		m.Param("year_pattern", yf.Pattern.String())
		m.Param("year_columns", strconv.Itoa(len(res.YearColumns)))
		if err := m.AddInput(args[0]); err != nil {
			return err
		}
		return writeOutput(cmd, res.Table, out, meltFormat, m)
	},
}

func init() {
	rootCmd.AddCommand(meltCmd)
	f := meltCmd.Flags()
	f.StringVarP(&meltOutput, "output", "o", "", "output file path")
	f.StringVar(&meltOutputDir, "output-dir", "", "output directory (default: directory of <wide>)")
	f.StringVar(&meltFormat, "format", "", "output format: csv|xlsx|sqlite|json|md (default from extension)")
	f.StringVar(&meltSheet, "sheet", "", "sheet name in the workbook")
	f.IntVar(&meltSheetIndex, "sheet-index", 0, "1-based sheet index in the workbook")
	f.StringVar(&meltYearPattern, "year-pattern", "", "regexp matching year headers; first group is the year")
	f.IntVar(&meltYearMin, "year-min", 0, "smallest accepted year (0 = no bound)")
	f.IntVar(&meltYearMax, "year-max", 0, "largest accepted year (0 = no bound)")
}
