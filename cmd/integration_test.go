package cmd

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xuri/excelize/v2"
)

// resetFlags clears values and Changed state that persist between
// rootCmd.Execute calls in one test binary.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is execute that fails the test on error.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// isolate points HOME at a temp dir so no user config leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeXLSX(t *testing.T, path string, rows [][]any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// warehouseDir builds six municipalities in 2010 with an outlying PIB for
// Zeta and a Renda that falls as PIB rises.
func warehouseDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	filters := [][]any{{"CD_MUN", "NM_MUN", "ANO"}}
	pib := [][]any{{"CD_MUN", "ANO", "VALOR"}}
	renda := [][]any{{"CD_MUN", "ANO", "VALOR"}}
	for i, n := range []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta"} {
		filters = append(filters, []any{100 + i, n, 2010}, []any{100 + i, n, 2020})
		v := (i + 1) * 10
		if i == 5 {
			v = 1000
		}
		pib = append(pib, []any{100 + i, 2010, v})
		renda = append(renda, []any{100 + i, 2010, 7 - i})
	}
	writeXLSX(t, filepath.Join(root, "Filtros.xlsx"), filters)
	writeXLSX(t, filepath.Join(root, "economia", "PIB.xlsx"), pib)
	writeXLSX(t, filepath.Join(root, "economia", "Renda.xlsx"), renda)
	return root
}

func TestCLI_Catalog(t *testing.T) {
	isolate(t)
	root := warehouseDir(t)

	out := runCmd(t, "catalog", "areas", "--data-dir", root)
	if !strings.Contains(out, "- economia") {
		t.Fatalf("areas output: %q", out)
	}
	out = runCmd(t, "catalog", "variables", "economia", "--data-dir", root)
	if !strings.Contains(out, "- PIB") || !strings.Contains(out, "- Renda") {
		t.Fatalf("variables output: %q", out)
	}
	out = runCmd(t, "catalog", "years", "--data-dir", root)
	if !strings.Contains(out, "- 2010") || !strings.Contains(out, "- 2020") {
		t.Fatalf("years output: %q", out)
	}
	out = runCmd(t, "catalog", "municipalities", "--year", "2010", "--data-dir", root)
	if strings.Count(out, "- ") != 6 {
		t.Fatalf("municipalities output: %q", out)
	}
	out = runCmd(t, "catalog", "sheets", filepath.Join(root, "Filtros.xlsx"))
	if !strings.Contains(out, "1. Sheet1") {
		t.Fatalf("sheets output: %q", out)
	}
	if _, err := execute(t, "catalog", "variables", "saude", "--data-dir", root); err == nil {
		t.Fatal("expected error for unknown area")
	}
}

func TestCLI_JoinWritesTableAndManifest(t *testing.T) {
	isolate(t)
	root := warehouseDir(t)
	dest := filepath.Join(t.TempDir(), "out", "pib.csv")

	runCmd(t, "join", "--data-dir", root, "--area", "economia", "--variable", "PIB", "--year", "2010", "-o", dest)
	tbl, err := parser.ReadFile(dest, parser.Options{})
	if err != nil {
		t.Fatalf("read join output: %v", err)
	}
	if tbl.Len() != 6 {
		t.Fatalf("join rows = %d, want 6", tbl.Len())
	}
	m, err := export.LoadManifest(dest + export.ManifestSuffix)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Command != "join" || m.ID == "" || m.Rows != 6 || m.Parameters["years"] != "2010" {
		t.Fatalf("manifest = %+v", m)
	}

	// Without -o the merged table is printed; every filter row is kept.
	out := runCmd(t, "join", "--data-dir", root, "--area", "economia", "--variable", "PIB", "--municipality", "Alpha,Beta")
	if !strings.Contains(out, "Alpha") || !strings.Contains(out, "Beta") || strings.Contains(out, "Gamma") {
		t.Fatalf("join markdown: %q", out)
	}
}

func TestCLI_StatsReportsOutliers(t *testing.T) {
	isolate(t)
	root := warehouseDir(t)

	out := runCmd(t, "stats", "--data-dir", root, "--area", "economia", "--variable", "PIB", "--year", "2010", "--json")
	var rep analysis.SeriesReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if rep.Stats.Count != 6 || len(rep.Outliers) != 1 || rep.Outliers[0].Label != "Zeta" {
		t.Fatalf("report = %+v", rep)
	}

	// A year with no variable data is insufficient, not an error.
	out = runCmd(t, "stats", "--data-dir", root, "--area", "economia", "--variable", "PIB", "--year", "2020")
	if !strings.Contains(out, "[STATISTICS]") || !strings.Contains(out, "insufficient data") {
		t.Fatalf("empty selection output: %q", out)
	}

	chartPath := filepath.Join(t.TempDir(), "pib.png")
	runCmd(t, "stats", "--data-dir", root, "--area", "economia", "--variable", "PIB", "--year", "2010", "--chart", chartPath, "--chart-type", "box")
	if fi, err := os.Stat(chartPath); err != nil || fi.Size() == 0 {
		t.Fatalf("chart not written: %v", err)
	}
}

func TestCLI_StatsOnFileWithFence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "serie.csv")
	writeText(t, path, "NM_MUN,VALOR\nA,1\nB,2\nC,3\nD,4\nE,5\nF,100\n")

	out := runCmd(t, "stats", "--file", path, "--json")
	var rep analysis.SeriesReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rep.Outliers) != 1 || rep.Outliers[0].Label != "F" {
		t.Fatalf("k=1.5 outliers = %+v", rep.Outliers)
	}

	out = runCmd(t, "stats", "--file", path, "--json", "--fence", "10", "--quantile", "exclusive")
	rep = analysis.SeriesReport{}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rep.Outliers) != 0 {
		t.Fatalf("k=10 exclusive outliers = %+v", rep.Outliers)
	}

	if _, err := execute(t, "stats", "--file", path, "--column", "NOPE"); err == nil {
		t.Fatal("expected error for unknown column")
	}
	if _, err := execute(t, "stats"); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestCLI_StatsHonoursThousandsSeparator(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	path := filepath.Join(dir, "pop.csv")
	writeText(t, path, "NM_MUN,VALOR\nA,\"1,234\"\nB,\"2,468\"\n")

	mean := func(args ...string) float64 {
		t.Helper()
		out := runCmd(t, append([]string{"--config", cfgPath, "stats", "--file", path, "--json"}, args...)...)
		var rep analysis.SeriesReport
		if err := json.Unmarshal([]byte(out), &rep); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		if rep.Stats.Mean == nil {
			t.Fatalf("no mean in %q", out)
		}
		return *rep.Stats.Mean
	}

	if got := mean(); math.Abs(got-1.851) > 1e-9 {
		t.Fatalf("auto-detected mean = %v, want 1.851", got)
	}
	runCmd(t, "--config", cfgPath, "config", "set", "thousands_separator", ",")
	if got := mean(); got != 1851 {
		t.Fatalf("mean with thousands_separator = %v, want 1851", got)
	}

	help := runCmd(t, "stats", "--help")
	if !strings.Contains(help, "thousands_separator") {
		t.Fatalf("stats help does not mention thousands_separator:\n%s", help)
	}
}

func TestCLI_Correlate(t *testing.T) {
	isolate(t)
	root := warehouseDir(t)
	dir := t.TempDir()
	matrix := filepath.Join(dir, "corr.csv")
	rows := filepath.Join(dir, "rows.json")

	runCmd(t, "correlate", "--data-dir", root, "--var", "economia/PIB", "--var", "economia/Renda",
		"--method", "spearman", "-o", matrix, "--rows-output", rows)
	m, err := parser.ReadFile(matrix, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 || strings.Join(m.Columns, ",") != "variable,PIB,Renda" {
		t.Fatalf("matrix = %v %v", m.Columns, m.Rows)
	}
	r, ok := m.Rows[0][2].Float()
	if !ok || r > -0.999 {
		t.Fatalf("spearman PIB~Renda = %v, want -1", m.Rows[0][2])
	}
	data, err := os.ReadFile(rows)
	if err != nil {
		t.Fatal(err)
	}
	var joined []map[string]any
	if err := json.Unmarshal(data, &joined); err != nil || len(joined) != 6 {
		t.Fatalf("rows output = %s (%v)", data, err)
	}

	out := runCmd(t, "correlate", "--data-dir", root, "--var", "economia/PIB,economia/Renda")
	if !strings.Contains(out, "[CORRELATIONS] (pearson)") || !strings.Contains(out, "Rows in common: 6") {
		t.Fatalf("correlate markdown: %q", out)
	}

	_, err = execute(t, "correlate", "--data-dir", root, "--var", "economia/PIB")
	if err == nil || !strings.Contains(err.Error(), "at least two") {
		t.Fatalf("single variable error = %v", err)
	}
}

func TestCLI_ReconcileAndMelt(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "entrada", "base.csv")
	info := filepath.Join(dir, "info.csv")
	writeText(t, base, "VALOR,CD_MUN\n1,100\n2,999\n3,101\n")
	writeText(t, info, "CD_MUN,NM_MUN\n100,Alpha\n101,Beta\n")

	outDir := filepath.Join(dir, "resultado", "saida")
	runCmd(t, "reconcile", base, info, "--output-dir", outDir, "--format", "csv")
	got, err := parser.ReadFile(filepath.Join(outDir, "base_resultado.csv"), parser.Options{})
	if err != nil {
		t.Fatalf("read reconcile output: %v", err)
	}
	if strings.Join(got.Columns, ",") != "CD_MUN,NM_MUN,VALOR" || got.Len() != 3 {
		t.Fatalf("reconciled = %v (%d rows)", got.Columns, got.Len())
	}
	if got.Rows[0][1].String() != "Alpha" || !got.Rows[1][1].IsNull() {
		t.Fatalf("reconciled rows = %v", got.Rows)
	}

	ambiguous := filepath.Join(dir, "ambiguous.csv")
	writeText(t, ambiguous, "CD_MUN,NM_MUN,VALOR\n100,Alpha,1\n")
	if _, err := execute(t, "reconcile", ambiguous, info, "-o", filepath.Join(dir, "x.csv")); err == nil {
		t.Fatal("expected ambiguous key error")
	}

	wide := filepath.Join(dir, "wide.csv")
	writeText(t, wide, "CD_MUN,NM_MUN,2010,2020,obs\n100,Alpha,1,2,x\n101,Beta,3,4,y\n")
	long := filepath.Join(dir, "long.xlsx")
	out := runCmd(t, "melt", wide, "-o", long)
	if !strings.Contains(out, "Year columns: 2010, 2020") {
		t.Fatalf("melt output: %q", out)
	}
	lt, err := parser.ReadFile(long, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if lt.Len() != 4 || strings.Join(lt.Columns, ",") != "CD_MUN,NM_MUN,VALOR,ANO" {
		t.Fatalf("melted = %v (%d rows)", lt.Columns, lt.Len())
	}

	noYears := filepath.Join(dir, "noyears.csv")
	writeText(t, noYears, "CD_MUN,NM_MUN,obs\n100,Alpha,x\n")
	if _, err := execute(t, "melt", noYears, "-o", filepath.Join(dir, "y.csv")); err == nil {
		t.Fatal("expected no year columns error")
	}
}

func TestCLI_ReconcileRelativePathsKeepInputs(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	testChdir(t, root)
	base := filepath.Join("data", "Base.xlsx")
	info := filepath.Join("data", "Info.xlsx")
	writeXLSX(t, base, [][]any{{"VALOR", "CD_MUN"}, {1, 100}, {2, 101}})
	writeXLSX(t, info, [][]any{{"CD_MUN", "NM_MUN"}, {100, "Alpha"}, {101, "Beta"}})
	wide := filepath.Join("data", "Wide.xlsx")
	writeXLSX(t, wide, [][]any{{"CD_MUN", "NM_MUN", "2010"}, {100, "Alpha", 1}})

	out := runCmd(t, "reconcile", base, info)
	want := filepath.Join("data", "Base_"+filepath.Base(root)+".xlsx")
	if !strings.Contains(out, want) {
		t.Fatalf("reconcile output: %q, want path %s", out, want)
	}
	got, err := parser.ReadFile(want, parser.Options{})
	if err != nil {
		t.Fatalf("read reconcile output: %v", err)
	}
	if strings.Join(got.Columns, ",") != "CD_MUN,NM_MUN,VALOR" {
		t.Fatalf("reconciled columns = %v", got.Columns)
	}

	for _, args := range [][]string{
		{"reconcile", base, info, "-o", base},
		{"reconcile", base, info, "-o", filepath.Join(root, "data", "Info.xlsx")},
		{"melt", wide, "-o", "./data/../data/Wide.xlsx"},
	} {
		_, err := execute(t, args...)
		if err == nil || !strings.Contains(err.Error(), "refusing to overwrite input") {
			t.Fatalf("%v: expected overwrite refusal, got %v", args, err)
		}
	}

	src, err := parser.ReadFile(base, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(src.Columns, ",") != "VALOR,CD_MUN" || src.Len() != 2 {
		t.Fatalf("base workbook changed: %v (%d rows)", src.Columns, src.Len())
	}
}

func TestCLI_ManifestShowsRun(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "base.csv")
	info := filepath.Join(dir, "info.csv")
	writeText(t, base, "VALOR,CD_MUN\n1,100\n")
	writeText(t, info, "CD_MUN,NM_MUN\n100,Alpha\n")
	dest := filepath.Join(dir, "out", "merged.csv")
	runCmd(t, "reconcile", base, info, "-o", dest)

	out := runCmd(t, "manifest", dest)
	for _, want := range []string{"Command: reconcile", "Rows: 1", "key: code", base, info, dest + " [csv]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("manifest output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "changed since this run") {
		t.Fatalf("no input changed yet:\n%s", out)
	}

	writeText(t, base, "VALOR,CD_MUN\n1,100\n2,101\n")
	out = runCmd(t, "manifest", dest+export.ManifestSuffix)
	if !strings.Contains(out, base+" (") || !strings.Contains(out, "changed since this run") {
		t.Fatalf("expected changed base input:\n%s", out)
	}

	if _, err := execute(t, "manifest", filepath.Join(dir, "missing.csv")); err == nil || !strings.Contains(err.Error(), "manifest not found") {
		t.Fatalf("expected missing manifest error, got %v", err)
	}
}

func TestCLI_ConvertSkipsLegacyWorkbooks(t *testing.T) {
	isolate(t)
	src := t.TempDir()
	writeXLSX(t, filepath.Join(src, "PIB.xlsx"), [][]any{{"CD_MUN", "VALOR"}, {100, 1.5}})
	writeText(t, filepath.Join(src, "old.xls"), "legacy")
	dst := filepath.Join(t.TempDir(), "csv")

	runCmd(t, "convert", src, "-o", dst)
	tbl, err := parser.ReadFile(filepath.Join(dst, "PIB.csv"), parser.Options{})
	if err != nil {
		t.Fatalf("read converted csv: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("converted rows = %d", tbl.Len())
	}
	if _, err := os.Stat(filepath.Join(dst, "old.csv")); err == nil {
		t.Fatal("legacy .xls must not be converted")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	runCmd(t, "--config", path, "config", "set", "fence_multiplier", "3")
	out := runCmd(t, "--config", path, "config", "show")
	if !strings.Contains(out, "fence_multiplier: 3") || !strings.Contains(out, "code_column: CD_MUN") {
		t.Fatalf("config show: %q", out)
	}
	if _, err := execute(t, "--config", path, "config", "set", "quantile_method", "median"); err == nil {
		t.Fatal("expected validation error")
	}
}

// testChdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
