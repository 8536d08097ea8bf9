// Package parser reads spreadsheet and delimited-text sources into tables.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/munidata-cli/internal/table"
)

// Reader defines a tabular source reader implementation.
type Reader interface {
	CanRead(filename string) bool
	Read(path string, opt Options) (*table.Table, error)
}

// Options selects which part of a source to read.
type Options struct {
	// SheetName selects an XLSX sheet by name (case-insensitive).
	SheetName string
	// SheetIndex is the 1-based XLSX sheet index used when SheetName is empty.
	SheetIndex int
	// Delimiter for CSV. If 0, it is sniffed from the header line.
	Delimiter rune
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported table format")

// SourceError reports a source file that could not be read. It wraps
// fs.ErrNotExist for missing files.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ReadFile selects a reader based on filename and returns the parsed table.
func ReadFile(path string, opt Options) (*table.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}
	for _, r := range registry {
		if r.CanRead(path) {
			t, err := r.Read(path, opt)
			if err != nil {
				return nil, &SourceError{Path: path, Err: err}
			}
			return t, nil
		}
	}
	return nil, &SourceError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))}
}

// Supported reports whether any registered reader accepts the filename.
func Supported(filename string) bool {
	for _, r := range registry {
		if r.CanRead(filename) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
