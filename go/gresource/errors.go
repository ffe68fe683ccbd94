package gresource

import (
	"errors"
	"fmt"
)

// ErrNoRoots is returned when a collection is requested without any path.
var ErrNoRoots = errors.New("no paths to collect")

// EnumerationError describes a directory that could not be listed.
// Collection logs it and carries on; it is never returned to callers.
type EnumerationError struct {
	Path string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerating %s: %v", e.Path, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// WriteError is returned when the manifest file cannot be replaced.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing manifest %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
