package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/table"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/KaramelBytes/munidata-cli/internal/warehouse"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func successf(w io.Writer, format string, a ...any) { _, _ = okColor.Fprintf(w, format, a...) }
func warnf(w io.Writer, format string, a ...any) { _, _ = warnColor.Fprintf(w, format, a...) }
func errorf(w io.Writer, format string, a ...any) { _, _ = errColor.Fprintf(w, format, a...) }

// printWarnings reports non-fatal problems on stderr and in the log.
func printWarnings(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		warnf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w)
		utils.Log().Debug("warning: %s", w)
	}
}

func schema() reshape.Schema {
	c := settings()
	s := reshape.DefaultSchema()
	if c.CodeColumn != "" {
		s.Code = c.CodeColumn
	}
	if c.NameColumn != "" {
		s.Name = c.NameColumn
	}
	if c.YearColumn != "" {
		s.Year = c.YearColumn
	}
	if c.ValueColumn != "" {
		s.Value = c.ValueColumn
	}
	return s
}

func numberFormat() (table.NumberFormat, error) {
	c := settings()
	dec, ok := table.ParseSeparator(c.DecimalSeparator)
	if !ok {
		return table.NumberFormat{}, fmt.Errorf("unsupported decimal_separator: %q (use '.'|'comma')", c.DecimalSeparator)
	}
	thou, ok := table.ParseSeparator(c.ThousandsSeparator)
	if !ok {
		return table.NumberFormat{}, fmt.Errorf("unsupported thousands_separator: %q (use ','|'.'|'space')", c.ThousandsSeparator)
	}
	return table.NumberFormat{DecimalSeparator: dec, ThousandsSeparator: thou}, nil
}

// statsOptions merges config with the --fence and --quantile flags when set.
func statsOptions(cmd *cobra.Command, fence float64, quantile string) (analysis.StatsOptions, error) {
	c := settings()
	opt := analysis.DefaultStatsOptions()
	if c.FenceMultiplier > 0 {
		opt.FenceMultiplier = c.FenceMultiplier
	}
	if cmd.Flags().Changed("fence") {
		if fence <= 0 {
			return opt, fmt.Errorf("--fence must be > 0")
		}
		opt.FenceMultiplier = fence
	}
	method := c.QuantileMethod
	if cmd.Flags().Changed("quantile") {
		method = quantile
	}
	q, err := analysis.ParseQuantileMethod(method)
	if err != nil {
		return opt, err
	}
	opt.Quantile = q
	nf, err := numberFormat()
	if err != nil {
		return opt, err
	}
	opt.Number = nf
	return opt, nil
}

func yearFormat(cmd *cobra.Command, pattern string, min, max int) (reshape.YearFormat, error) {
	c := settings()
	if !cmd.Flags().Changed("year-pattern") {
		pattern = c.YearPattern
	}
	if !cmd.Flags().Changed("year-min") {
		min = c.YearMin
	}
	if !cmd.Flags().Changed("year-max") {
		max = c.YearMax
	}
	return reshape.NewYearFormat(pattern, min, max)
}

// sheetOptions prefers explicit flags over config.
func sheetOptions(cmd *cobra.Command, nameFlag string, name string, indexFlag string, index int) (parser.Options, error) {
	c := settings()
	opt := parser.Options{SheetName: c.SheetName, SheetIndex: c.SheetIndex}
	if cmd.Flags().Changed(nameFlag) {
		opt.SheetName = name
	}
	if cmd.Flags().Changed(indexFlag) {
		if err := mustPositive(indexFlag, index); err != nil {
			return opt, err
		}
		opt.SheetIndex = index
	}
	return opt, nil
}

// newStore builds a warehouse view from config.
func newStore(cmd *cobra.Command, fence float64, quantile string) (*warehouse.Store, error) {
	c := settings()
	st, err := statsOptions(cmd, fence, quantile)
	if err != nil {
		return nil, err
	}
	root := c.DataDir
	if !fileExists(filepath.Join(root, c.FiltersFile)) {
		// Running from inside an area folder still finds the warehouse.
		if found, err := utils.FindDataRoot(root, c.FiltersFile); err == nil {
			utils.Log().Debug("data root resolved to %s", found)
			root = found
		}
	}
	s := warehouse.New(root, c.FiltersFile)
	s.Sheet = parser.Options{SheetName: c.SheetName, SheetIndex: c.SheetIndex}
	s.Schema = schema()
	s.Number = st.Number
	s.Stats = st
	s.StrictKeys = c.StrictKeys
	return s, nil
}

// writeOutput exports t, records the run manifest and prints a status line.
func writeOutput(cmd *cobra.Command, t *table.Table, out, format string, m *export.Manifest) error {
	if format == "" && filepath.Ext(out) == "" {
		format = settings().ExportFormat
	}
	f, err := export.DetectFormat(out, format)
	if err != nil {
		return err
	}
	if m != nil {
		for _, in := range m.Inputs {
			if export.SamePath(out, in.Path) {
				return fmt.Errorf("refusing to overwrite input %s; choose another --output or --output-dir", in.Path)
			}
		}
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := export.WriteTable(out, t, f); err != nil {
		return err
	}
	if m != nil {
		m.Rows = t.Len()
		if err := m.AddOutput(out, f); err != nil {
			return err
		}
		mp, err := m.Save(out)
		if err != nil {
			return err
		}
		utils.Log().Debug("manifest %s written to %s", m.ID, mp)
	}
	successf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s\n", t.Len(), out)
	return nil
}

// withFormat swaps the extension of a derived output name when --format
// asks for something else.
func withFormat(path, format string) (string, error) {
	if format == "" {
		return path, nil
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + string(f), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
