// Package export writes tables to CSV, XLSX, SQLite, JSON and Markdown, and
// records each run in a JSON manifest.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

// Format is an output file format.
type Format string

const (
	CSV      Format = "csv"
	XLSX     Format = "xlsx"
	SQLite   Format = "sqlite"
	JSON     Format = "json"
	Markdown Format = "md"
)

// ErrUnknownFormat is returned when neither the flag nor the extension names
// a known format.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts a format name or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return CSV, nil
	case "xlsx", "excel":
		return XLSX, nil
	case "sqlite", "sqlite3", "db":
		return SQLite, nil
	case "json":
		return JSON, nil
	case "md", "markdown":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: %q (use csv|xlsx|sqlite|json|md)", ErrUnknownFormat, s)
	}
}

// DetectFormat picks the explicit format if given, else the one implied by
// the output path extension.
func DetectFormat(path, explicit string) (Format, error) {
	if explicit != "" {
		return ParseFormat(explicit)
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension, pass --format", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// WriteTable writes t to path in the given format.
func WriteTable(path string, t *table.Table, f Format) error {
	var err error
	switch f {
	case CSV:
		err = writeCSV(path, t)
	case XLSX:
		err = writeXLSX(path, t)
	case SQLite:
		err = writeSQLite(path, t)
	case JSON:
		err = writeJSON(path, t)
	case Markdown:
		err = writeMarkdown(path, t)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// OutputName derives <base>_<folder>.xlsx for a source file written into
// outDir, where folder is the name of outDir's parent directory. Relative
// directories are resolved first so "data" or "." still yield a suffix; at
// the filesystem root outDir's own name is used instead.
func OutputName(source, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	dir := filepath.Clean(outDir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	folder := filepath.Base(filepath.Dir(dir))
	if !usableFolder(folder) {
		folder = filepath.Base(dir)
	}
	if !usableFolder(folder) {
		folder = "out"
	}
	return filepath.Join(outDir, base+"_"+folder+".xlsx")
}

func usableFolder(name string) bool {
	return name != "" && name != "." && name != string(filepath.Separator)
}

// SamePath reports whether a and b name the same file, following symlinks
// when both exist.
func SamePath(a, b string) bool {
	if ia, err := os.Stat(a); err == nil {
		if ib, err := os.Stat(b); err == nil {
			return os.SameFile(ia, ib)
		}
	}
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}

// sheetName fits a table name into Excel's 31-character sheet name limit.
func sheetName(t *table.Table) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, t.Name)
	if name == "" {
		return "Sheet1"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}
