package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/google/uuid"
)

// ManifestSuffix is appended to an output path to name its manifest.
const ManifestSuffix = ".manifest.json"

// Manifest records one command run: what was read, what was written and
// with which parameters.
type Manifest struct {
	ID         string            `json:"id"`
	Command    string            `json:"command"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Inputs     []FileRef         `json:"inputs"`
	Outputs    []FileRef         `json:"outputs"`
	Rows       int               `json:"rows"`
	Warnings   []string          `json:"warnings,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// FileRef describes a file touched by a run.
type FileRef struct {
	Path     string    `json:"path"`
	Format   string    `json:"format,omitempty"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// NewManifest starts a manifest with a fresh id.
func NewManifest(command string) *Manifest {
	return &Manifest{
		ID:         uuid.NewString(),
		Command:    command,
		Parameters: map[string]string{},
		StartedAt:  time.Now(),
	}
}

// Param records a non-empty parameter.
func (m *Manifest) Param(key, val string) {
	if val != "" {
		m.Parameters[key] = val
	}
}

// AddInput records a source file.
func (m *Manifest) AddInput(path string) error {
	ref, err := fileRef(path, "")
	if err != nil {
		return err
	}
	m.Inputs = append(m.Inputs, ref)
	return nil
}

// AddOutput records a written file.
func (m *Manifest) AddOutput(path string, f Format) error {
	ref, err := fileRef(path, string(f))
	if err != nil {
		return err
	}
	m.Outputs = append(m.Outputs, ref)
	return nil
}

// Save writes the manifest next to output as <output>.manifest.json and
// returns that path.
func (m *Manifest) Save(output string) (string, error) {
	m.FinishedAt = time.Now()
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return "", err
	}
	path := output + ManifestSuffix
	if err := utils.SafeWriteFile(path, data); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// ManifestPath accepts either an output file or its manifest and returns
// the manifest path.
func ManifestPath(path string) string {
	if strings.HasSuffix(path, ManifestSuffix) {
		return path
	}
	return path + ManifestSuffix
}

// ChangedInputs lists recorded inputs that are missing or whose size or
// modification time no longer match the run.
func (m *Manifest) ChangedInputs() []string {
	var out []string
	for _, in := range m.Inputs {
		info, err := os.Stat(in.Path)
		if err != nil || info.Size() != in.Size || !info.ModTime().Equal(in.Modified) {
			out = append(out, in.Path)
		}
	}
	return out
}

func fileRef(path, format string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileRef{Path: path, Format: format, Size: info.Size(), Modified: info.ModTime()}, nil
}
