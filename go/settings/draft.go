package settings

import (
	"strings"
	"sync"

	"github.com/ozonos/grrr/go/gresource"
)

// Draft is the editable copy of the settings owned by a settings panel.
// Jobs never read it directly: they take a Snapshot when they start.
type Draft struct {
	mu     sync.Mutex
	saved  Record
	name   string
	prefix string
}

// NewDraft starts editing from the persisted record.
func NewDraft(saved Record) *Draft {
	cfg := saved.Config()
	return &Draft{saved: saved, name: cfg.Name, prefix: cfg.Prefix}
}

// SetName updates the bundle name being edited.
func (d *Draft) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// SetPrefix updates the resource prefix being edited.
func (d *Draft) SetPrefix(prefix string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prefix = prefix
}

// Snapshot returns the config a job starting now should use.
func (d *Draft) Snapshot() gresource.ManifestConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gresource.ManifestConfig{Name: d.name, Prefix: d.prefix}.WithDefaults()
}

// Commit resets blank values to their defaults and saves the draft if it differs from what was saved.
// It reports whether the store was written.
func (d *Draft) Commit(store *Store) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := gresource.ManifestConfig{Name: strings.TrimSpace(d.name), Prefix: strings.TrimSpace(d.prefix)}.WithDefaults()
	d.name, d.prefix = cfg.Name, cfg.Prefix

	record := Record{ResName: cfg.Name, ResPrefix: cfg.Prefix}
	if record == d.saved {
		return false, nil
	}
	if err := store.Save(record); err != nil {
		return false, err
	}
	d.saved = record
	return true, nil
}
