package gresource

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// PreprocessToPixdata is the preprocess attribute value set on image entries.
const PreprocessToPixdata = "to-pixdata"

var pathEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapePath escapes a manifest path for use as XML character data.
func EscapePath(path string) string {
	return pathEscaper.Replace(path)
}

// The prefix is written verbatim: it is the caller's responsibility to keep it XML safe.
var manifestTemplate = template.Must(template.New("manifest").Funcs(template.FuncMap{
	"escape": EscapePath,
}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<gresources>
	<gresource prefix="{{ .Prefix }}">
{{- range .Entries }}
		<file{{ with .Preprocess }} preprocess="{{ . }}"{{ end }}>{{ escape .Path }}</file>
{{- end }}
	</gresource>
</gresources>
`))

// Entry is one <file> element of a manifest.
type Entry struct {
	Path       string
	Preprocess string
}

// Manifest is the in memory form of a manifest document.
type Manifest struct {
	Prefix  string
	Entries []Entry
}

// NewManifest maps every collected file to an entry relative to the collection base.
func NewManifest(c *Collection, cfg ManifestConfig) (*Manifest, error) {
	manifest := &Manifest{Prefix: cfg.Prefix, Entries: make([]Entry, 0, len(c.Files))}
	for _, ref := range c.Files {
		rel, err := c.Relative(ref)
		if err != nil {
			return nil, fmt.Errorf("relative path of %s: %w", ref.Path, err)
		}
		entry := Entry{Path: rel}
		if ref.IsImage() {
			entry.Preprocess = PreprocessToPixdata
		}
		manifest.Entries = append(manifest.Entries, entry)
	}
	return manifest, nil
}

// Render returns the XML document.
func (m *Manifest) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := manifestTemplate.Execute(&buf, m); err != nil {
		return nil, fmt.Errorf("rendering manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderManifest renders the manifest document for a collection.
func RenderManifest(c *Collection, cfg ManifestConfig) ([]byte, error) {
	manifest, err := NewManifest(c, cfg)
	if err != nil {
		return nil, err
	}
	return manifest.Render()
}

// BuildManifest writes the manifest of c to <base>/<name>.xml and returns its path.
// An existing file at that path is deleted first.
func BuildManifest(c *Collection, cfg ManifestConfig) (string, error) {
	content, err := RenderManifest(c, cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(c.Base, cfg.ManifestFileName())
	if err := writeManifest(path, content); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	return path, nil
}

func writeManifest(path string, content []byte) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing previous manifest: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
