// Package warehouse reads the on-disk data layout: a filters table at the root
// and one table per variable under an area directory.
package warehouse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/table"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
)

var (
	// ErrInvalidName is returned for area or variable names that are empty or
	// would escape the data directory.
	ErrInvalidName = errors.New("invalid area or variable name")
	// ErrNotFound wraps fs.ErrNotExist for unknown areas and variables.
	ErrNotFound = fmt.Errorf("not found: %w", fs.ErrNotExist)
)

// Store is a read-only view of a data directory. Every call re-reads the
// files it needs; a Store holds no table state.
type Store struct {
	Root        string
	FiltersFile string
	Sheet       parser.Options
	Schema      reshape.Schema
	Number      table.NumberFormat
	Stats       analysis.StatsOptions
	StrictKeys  bool
}

// New returns a Store with the default schema and statistics options.
func New(root, filtersFile string) *Store {
	if filtersFile == "" {
		filtersFile = "Filtros.xlsx"
	}
	return &Store{
		Root:        root,
		FiltersFile: filtersFile,
		Schema:      reshape.DefaultSchema(),
		Stats:       analysis.DefaultStatsOptions(),
	}
}

// LoadFilters reads the reference (code, name, year) table.
func (s *Store) LoadFilters() (*table.Table, error) {
	path := filepath.Join(s.Root, s.FiltersFile)
	defer utils.Log().Timed("load filters " + path)()
	t, err := parser.ReadFile(path, s.Sheet)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{s.Schema.Code, s.Schema.Name, s.Schema.Year} {
		if !t.Has(col) {
			return nil, fmt.Errorf("%w: filter table %s lacks %s", reshape.ErrMissingKey, s.FiltersFile, col)
		}
	}
	return t, nil
}

// LoadVariable reads <root>/<area>/<name>.xlsx (or .csv).
func (s *Store) LoadVariable(area, name string) (*table.Table, error) {
	path, err := s.variablePath(area, name)
	if err != nil {
		return nil, err
	}
	defer utils.Log().Timed("load variable " + path)()
	return parser.ReadFile(path, s.Sheet)
}

// Areas lists the subdirectories of the root, sorted.
func (s *Store) Areas() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, &parser.SourceError{Path: s.Root, Err: err}
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Variables lists the readable tables in an area by base name, sorted.
func (s *Store) Variables(area string) ([]string, error) {
	if err := validName(area); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.Root, area)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("area %q: %w", area, ErrNotFound)
		}
		return nil, &parser.SourceError{Path: dir, Err: err}
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !parser.Supported(name) {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if !seen[base] {
			seen[base] = true
			out = append(out, base)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Years lists the distinct years of the filters table, sorted.
func (s *Store) Years() ([]string, error) {
	f, err := s.LoadFilters()
	if err != nil {
		return nil, err
	}
	return distinct(f, s.Schema.Year)
}

// Municipalities lists the distinct municipality names of the filters table,
// restricted to the given years when any are given.
func (s *Store) Municipalities(years []string) ([]string, error) {
	f, err := s.LoadFilters()
	if err != nil {
		return nil, err
	}
	if len(years) > 0 {
		want := map[string]bool{}
		for _, y := range years {
			want[table.Str(y).Key()] = true
		}
		yi := f.Index(s.Schema.Year)
		if yi < 0 {
			return nil, fmt.Errorf("%w: filter table lacks %s", reshape.ErrMissingKey, s.Schema.Year)
		}
		f = f.Filter(func(r []table.Value) bool { return want[r[yi].Key()] })
	}
	return distinct(f, s.Schema.Name)
}

func (s *Store) variablePath(area, name string) (string, error) {
	if err := validName(area); err != nil {
		return "", err
	}
	if err := validName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.Root, area)
	for _, ext := range []string{".xlsx", ".xlsm", ".csv", ".tsv"} {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("variable %s/%s: %w", area, name, ErrNotFound)
}

// IsNotFound reports whether err means a missing area, variable or file.
func IsNotFound(err error) bool { return errors.Is(err, fs.ErrNotExist) }

func validName(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return nil
}

func distinct(t *table.Table, col string) ([]string, error) {
	vals, err := t.Distinct(col)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.Key())
	}
	sort.Strings(out)
	return out, nil
}
