package filestore

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("filestore: key not found")

// Store is a flat key→blob store. It backs the task template files, the
// per-session sandbox copies, and avatar uploads, so the rest of the system
// never touches directory paths directly.
type Store interface {
	// Put creates or replaces the blob under key.
	Put(key string, r io.Reader) error

	// Open returns a reader over the blob, or ErrNotFound.
	Open(key string) (io.ReadCloser, error)

	// Copy duplicates the blob under srcKey to dstKey byte-for-byte.
	Copy(srcKey, dstKey string) error

	// Delete removes the blob, or returns ErrNotFound.
	Delete(key string) error

	// Exists reports whether a blob exists under key.
	Exists(key string) (bool, error)
}

// validateKey rejects keys that could escape a flat namespace.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return fmt.Errorf("filestore: invalid key %q", key)
	}
	if strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("filestore: invalid key %q", key)
	}
	return nil
}
