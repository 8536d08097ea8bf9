package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/spf13/cobra"
)

var (
	recOutput    string
	recOutputDir string
	recFormat    string
	recBaseSheet string
	recBaseIndex int
	recInfoSheet string
	recInfoIndex int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <base> <info>",
	Short: "Fill in the missing municipality code or name of a table",
	Long: `reconcile reads a base table carrying exactly one of the code or name columns and an
information table carrying both, and writes the base table with the missing key added.
Every base row is kept in order; rows without a match get an empty key.

Without -o the result is written to <output-dir>/<base>_<parent of output-dir>.xlsx.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseOpt, err := sheetOptions(cmd, "base-sheet", recBaseSheet, "base-sheet-index", recBaseIndex)
		if err != nil {
			return err
		}
		infoOpt, err := sheetOptions(cmd, "info-sheet", recInfoSheet, "info-sheet-index", recInfoIndex)
		if err != nil {
			return err
		}
		base, err := parser.ReadFile(args[0], baseOpt)
		if err != nil {
			return err
		}
		info, err := parser.ReadFile(args[1], infoOpt)
		if err != nil {
			return err
		}
		res, err := reshape.Reconcile(base, info, schema())
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", filepath.Base(args[0]), err)
		}
		printWarnings(cmd, res.Warnings)

		out := recOutput
		if out == "" {
			dir := recOutputDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			if out, err = withFormat(export.OutputName(args[0], dir), recFormat); err != nil {
				return err
			}
		}
		m := export.NewManifest("reconcile")
		m.Param("key", res.Kind.String())
		m.Warnings = res.Warnings
		for _, in := range args {
			if err := m.AddInput(in); err != nil {
				return err
			}
		}
		return writeOutput(cmd, res.Table, out, recFormat, m)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	f := reconcileCmd.Flags()
	f.StringVarP(&recOutput, "output", "o", "", "output file path")
	f.StringVar(&recOutputDir, "output-dir", "", "output directory (default: directory of <base>)")
	f.StringVar(&recFormat, "format", "", "output format: csv|xlsx|sqlite|json|md (default from extension)")
	f.StringVar(&recBaseSheet, "base-sheet", "", "sheet name in the base workbook")
	f.IntVar(&recBaseIndex, "base-sheet-index", 0, "1-based sheet index in the base workbook")
	f.StringVar(&recInfoSheet, "info-sheet", "", "sheet name in the information workbook")
	f.IntVar(&recInfoIndex, "info-sheet-index", 0, "1-based sheet index in the information workbook")
}
