package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/parser"
)

// Conversion is the outcome for one workbook in ConvertDir.
type Conversion struct {
	Source string
	Target string
	Rows   int
	Err    error
}

// ConvertDir converts every .xlsx workbook in src to a .csv of the same base
// name in dst, reading the sheet selected by opt. Legacy .xls files cannot be
// read and are reported as skipped. A failing workbook does not stop the
// others.
func ConvertDir(src, dst string, opt parser.Options) (converted []Conversion, skipped []string, err error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, nil, &parser.SourceError{Path: src, Err: err}
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir output dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case strings.HasPrefix(name, "~$"):
			continue
		case ext == ".xls":
			skipped = append(skipped, name)
			continue
		case ext != ".xlsx" && ext != ".xlsm":
			continue
		}
		c := Conversion{
			Source: filepath.Join(src, name),
			Target: filepath.Join(dst, strings.TrimSuffix(name, filepath.Ext(name))+".csv"),
		}
		t, rerr := parser.ReadFile(c.Source, opt)
		if rerr == nil {
			c.Rows = t.Len()
			rerr = WriteTable(c.Target, t, CSV)
		}
		c.Err = rerr
		converted = append(converted, c)
	}
	return converted, skipped, nil
}
