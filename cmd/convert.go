package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	convOutDir     string
	convSheetName  string
	convSheetIndex int
)

var convertCmd = &cobra.Command{
	Use:   "convert <dir>",
	Short: "Convert every .xlsx workbook in a directory to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		dst := convOutDir
		if dst == "" {
			dst = filepath.Join(src, "csv")
		}
		opt, err := sheetOptions(cmd, "sheet", convSheetName, "sheet-index", convSheetIndex)
		if err != nil {
			return err
		}
		done := utils.Log().Timed("convert " + src)
		converted, skipped, err := export.ConvertDir(src, dst, opt)
		done()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		failed := 0
		for _, c := range converted {
			if c.Err != nil {
				failed++
				warnf(cmd.ErrOrStderr(), "⚠ %s: %v\n", filepath.Base(c.Source), c.Err)
				continue
			}
			successf(out, "✓ %s -> %s (%d rows)\n", filepath.Base(c.Source), c.Target, c.Rows)
		}
		for _, s := range skipped {
			warnf(cmd.ErrOrStderr(), "⚠ Skipped %s: legacy .xls is not supported, re-save as .xlsx\n", s)
		}
		if len(converted) == 0 && len(skipped) == 0 {
			fmt.Fprintln(out, "(no workbooks found)")
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d workbooks failed to convert", failed, len(converted))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convOutDir, "output-dir", "o", "", "directory for the CSV files (default <dir>/csv)")
	convertCmd.Flags().StringVar(&convSheetName, "sheet", "", "sheet name to convert (default first sheet)")
	convertCmd.Flags().IntVar(&convSheetIndex, "sheet-index", 0, "1-based sheet index to convert")
}
