package gresource

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const (
	contentTypeDirectory   = "inode/directory"
	contentTypeOctetStream = "application/octet-stream"
)

// Resolve makes path absolute and queries its type and content type, following symlinks.
// The path must exist.
func Resolve(path string) (PathRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return PathRef{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return PathRef{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return newPathRef(abs, info), nil
}

func newPathRef(path string, info fs.FileInfo) PathRef {
	if info.IsDir() {
		return PathRef{Path: path, Dir: true, ContentType: contentTypeDirectory}
	}
	if !info.Mode().IsRegular() {
		// Never read from fifos, sockets or devices.
		return PathRef{Path: path, ContentType: contentTypeOctetStream}
	}
	return PathRef{Path: path, ContentType: contentType(path, info.Size())}
}

// ContentType sniffs the MIME type of the file at path from its leading bytes.
// When the content is not recognised, or the file is empty, the extension table is consulted.
// Parameters such as charset are dropped.
func ContentType(path string) string {
	size := int64(-1)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	return contentType(path, size)
}

func contentType(path string, size int64) string {
	detected := contentTypeOctetStream
	if m, err := mimetype.DetectFile(path); err == nil {
		detected = m.String()
	}
	// Empty content sniffs as text/plain whatever the file is meant to hold.
	if detected == contentTypeOctetStream || size == 0 {
		if byExtension := mime.TypeByExtension(filepath.Ext(path)); byExtension != "" {
			detected = byExtension
		}
	}
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}
