package gresource

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultName is the bundle identifier used when none is configured.
	DefaultName = "custom.gresource"
	// DefaultPrefix is the resource namespace used when none is configured.
	DefaultPrefix = "/org/gnome/custom"

	manifestExtension = ".xml"
	bundleExtension   = ".gresource"
)

// ManifestConfig names the bundle and its resource namespace.
// It is a value: a build captures the config it was given and never observes later edits.
type ManifestConfig struct {
	Name   string
	Prefix string
}

// DefaultManifestConfig returns the config used when nothing was configured.
func DefaultManifestConfig() ManifestConfig {
	return ManifestConfig{Name: DefaultName, Prefix: DefaultPrefix}
}

// WithDefaults returns a copy of c where blank fields are replaced by their defaults.
func (c ManifestConfig) WithDefaults() ManifestConfig {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultName
	}
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = DefaultPrefix
	}
	return c
}

// ManifestFileName returns the base name of the manifest written for c.
func (c ManifestConfig) ManifestFileName() string {
	return c.Name + manifestExtension
}

// BundleFileName returns the base name of the bundle glib-compile-resources writes
// for the manifest of c when no explicit target is given.
func (c ManifestConfig) BundleFileName() string {
	return BundleFileName(c.ManifestFileName())
}

// BundleFileName derives the default compiler target from a manifest file name.
func BundleFileName(manifestFile string) string {
	name := strings.TrimSuffix(filepath.Base(manifestFile), manifestExtension)
	if strings.HasSuffix(name, bundleExtension) {
		return name
	}
	return name + bundleExtension
}

// PathRef is a resolved filesystem path: absolute, with its type and content type cached.
type PathRef struct {
	Path        string
	Dir         bool
	ContentType string
}

// IsImage reports whether the content type is in the image/* family.
func (r PathRef) IsImage() bool {
	return strings.HasPrefix(r.ContentType, "image/")
}

// FileSet holds collected files in discovery order.
type FileSet []PathRef

// Paths returns the absolute paths of the set, in order.
func (s FileSet) Paths() []string {
	paths := make([]string, len(s))
	for i, ref := range s {
		paths[i] = ref.Path
	}
	return paths
}

// Collection is the output of a collection: the base every manifest path is relative to, and the files found.
type Collection struct {
	Base  string
	Files FileSet
}

// Relative returns the manifest path of ref: its path relative to the base, '/' separated.
// Files that live outside the base keep their ".." segments.
func (c *Collection) Relative(ref PathRef) (string, error) {
	rel, err := filepath.Rel(c.Base, ref.Path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
