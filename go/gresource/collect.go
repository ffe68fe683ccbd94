package gresource

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Concurrent content type lookups per directory.
const sniffConcurrency = 8

// Collector expands dropped paths into the flat list of files a manifest describes.
type Collector struct {
	log *slog.Logger
}

// NewCollector returns a new collector.
func NewCollector() *Collector {
	return &Collector{log: slog.Default()}
}

// WithLogger sets this collector's logger.
func (c *Collector) WithLogger(logger *slog.Logger) *Collector {
	c.log = logger
	return c
}

// ResolveBase returns the directory manifest paths are expressed against: the parent of the first root.
func ResolveBase(roots []string) (string, error) {
	if len(roots) == 0 {
		return "", ErrNoRoots
	}
	first, err := filepath.Abs(roots[0])
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", roots[0], err)
	}
	return filepath.Dir(first), nil
}

// Collect resolves roots and walks them depth first, in the order the filesystem lists entries.
// Plain-file roots are taken as is. Every root must exist. Directories that cannot be listed
// contribute nothing and are only logged. Later roots outside the base are kept; their
// manifest paths will contain ".." segments.
func (c *Collector) Collect(ctx context.Context, roots []string) (*Collection, error) {
	base, err := ResolveBase(roots)
	if err != nil {
		return nil, err
	}
	refs := make([]PathRef, len(roots))
	errGroup, groupCtx := errgroup.WithContext(ctx)
	for i, root := range roots {
		i, root := i, root
		errGroup.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			ref, err := Resolve(root)
			refs[i] = ref
			return err
		})
	}
	if err := errGroup.Wait(); err != nil {
		return nil, err
	}

	var files FileSet
	for _, ref := range refs {
		// Cycle detection is scoped to one root so dropping a path twice still yields duplicates.
		visited := map[string]struct{}{}
		files, err = c.collect(ctx, files, ref, visited)
		if err != nil {
			return nil, err
		}
	}
	c.log.DebugContext(ctx, "collected files", "base", base, "roots", len(roots), "files", len(files))
	return &Collection{Base: base, Files: files}, nil
}

func (c *Collector) collect(ctx context.Context, acc FileSet, ref PathRef, visited map[string]struct{}) (FileSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ref.Dir {
		return append(acc, ref), nil
	}

	canonical, err := filepath.EvalSymlinks(ref.Path)
	if err != nil {
		canonical = ref.Path
	}
	if _, ok := visited[canonical]; ok {
		c.log.DebugContext(ctx, "skipping directory already visited", "path", ref.Path, "canonical", canonical)
		return acc, nil
	}
	visited[canonical] = struct{}{}

	children, err := readDir(ref.Path)
	if err != nil {
		enumErr := &EnumerationError{Path: ref.Path, Err: err}
		c.log.WarnContext(ctx, "skipping unreadable directory", "path", ref.Path, "error", enumErr)
		return acc, nil
	}
	for _, child := range children {
		if acc, err = c.collect(ctx, acc, child, visited); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// readDir lists dir in the order the filesystem returns entries, following symlinks.
// Content types are sniffed concurrently; the order of the listing is kept.
// Entries whose target cannot be queried are reported as plain files.
func readDir(dir string) ([]PathRef, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	refs := make([]PathRef, len(entries))
	var errGroup errgroup.Group
	errGroup.SetLimit(sniffConcurrency)
	for i, entry := range entries {
		i, entry := i, entry
		errGroup.Go(func() error {
			refs[i] = entryRef(dir, entry)
			return nil
		})
	}
	errGroup.Wait()
	return refs, nil
}

func entryRef(dir string, entry fs.DirEntry) PathRef {
	path := filepath.Join(dir, entry.Name())
	var info fs.FileInfo
	var err error
	if entry.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
	} else {
		info, err = entry.Info()
	}
	if err != nil {
		return PathRef{Path: path, ContentType: contentTypeOctetStream}
	}
	return newPathRef(path, info)
}
