package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/table"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

func writeCSV(path string, t *table.Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Records()); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

func writeXLSX(path string, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := sheetName(t)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = cellValue(v)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// cellValue keeps plain numbers numeric so spreadsheets can aggregate them.
// Text such as "NaN" or "inf" stays text: JSON, XLSX and SQLite cannot
// carry non-finite floats.
func cellValue(v table.Value) any {
	if v.IsNull() {
		return nil
	}
	if f, ok := finite(v); ok {
		return f
	}
	return v.String()
}

func finite(v table.Value) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func writeSQLite(path string, t *table.Table) error {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	name := t.Name
	if name == "" {
		name = "data"
	}
	var defs, qCols []string
	for j, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%q %s", c, sqliteType(t, j)))
		qCols = append(qCols, fmt.Sprintf("%q", c))
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, name, strings.Join(defs, ","))); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(t.Columns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, name, strings.Join(qCols, ","), ph))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range t.Rows {
		args := make([]any, len(r))
		for j, v := range r {
			args[j] = cellValue(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// sqliteType is REAL when every non-null cell of column j is a finite number.
func sqliteType(t *table.Table, j int) string {
	seen := false
	for _, r := range t.Rows {
		if r[j].IsNull() {
			continue
		}
		if _, ok := finite(r[j]); !ok {
			return "TEXT"
		}
		seen = true
	}
	if !seen {
		return "TEXT"
	}
	return "REAL"
}

func writeJSON(path string, t *table.Table) error {
	b, err := utils.PrettyJSON(Rows(t))
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

// Rows renders a table as JSON-ready objects keyed by column name. Plain
// numbers stay numeric and nulls stay null.
func Rows(t *table.Table) []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		obj := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			obj[c] = cellValue(r[j])
		}
		out = append(out, obj)
	}
	return out
}

func writeMarkdown(path string, t *table.Table) error {
	var buf bytes.Buffer
	RenderMarkdown(&buf, t)
	return utils.SafeWriteFile(path, buf.Bytes())
}

// RenderMarkdown writes t as a GitHub-flavoured Markdown table.
func RenderMarkdown(w io.Writer, t *table.Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	tw.SetCenterSeparator("|")
	for _, rec := range t.Records()[1:] {
		tw.Append(rec)
	}
	tw.Render()
}
