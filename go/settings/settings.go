// Package settings persists the manifest name and prefix between runs.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/ozonos/grrr/go/gresource"
)

const (
	appDir   = "grrr"
	fileName = "config.json"
)

// Record is the persisted JSON document. Both fields are optional.
type Record struct {
	ResName   string `json:"res_name,omitempty"`
	ResPrefix string `json:"res_prefix,omitempty"`
}

// Config returns the manifest config described by r, with defaults for missing fields.
func (r Record) Config() gresource.ManifestConfig {
	return gresource.ManifestConfig{Name: r.ResName, Prefix: r.ResPrefix}.WithDefaults()
}

// DefaultPath returns $XDG_DATA_HOME/grrr/config.json, falling back to ~/.local/share.
func DefaultPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating user data dir: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, appDir, fileName), nil
}

// Store reads and writes the record at a fixed path.
type Store struct {
	path string
	log  *slog.Logger
}

// NewStore returns a store for the record at path.
func NewStore(path string) *Store {
	return &Store{path: path, log: slog.Default()}
}

// WithLogger sets this store's logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.log = logger
	return s
}

// Path returns the location of the record.
func (s *Store) Path() string { return s.path }

// Load reads the record. A missing file yields an empty record; unknown members are ignored.
func (s *Store) Load() (Record, error) {
	var record Record
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return record, nil
	}
	if err != nil {
		return record, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("unmarshaling %s: %w", s.path, err)
	}
	return record, nil
}

// Save replaces the record on disk, creating its parent directories when needed.
func (s *Store) Save(record Record) error {
	data, err := json.Marshal(record, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.log.Debug("saved settings", "path", s.path, "name", record.ResName, "prefix", record.ResPrefix)
	return nil
}
