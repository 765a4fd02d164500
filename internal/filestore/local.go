package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir is a Store over a single directory on local disk. Keys map directly
// to file names, so external tools (and the SQLite driver) can address the
// same blobs by path.
type Dir struct {
	root string
}

// NewDir creates the directory if needed and returns a store over it.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

// Path returns the on-disk path of a key. The file may or may not exist.
func (d *Dir) Path(key string) string {
	return filepath.Join(d.root, key)
}

// Put creates or replaces the file under key.
func (d *Dir) Put(key string, r io.Reader) error {
	if err := validateKey(key); err != nil {
		return err
	}

	f, err := os.OpenFile(d.Path(key), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: put %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(d.Path(key))
		return fmt.Errorf("filestore: put %s: %w", key, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("filestore: put %s: %w", key, err)
	}
	return nil
}

// Open returns a reader over the file, or ErrNotFound.
func (d *Dir) Open(key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("filestore: open %s: %w", key, err)
	}
	return f, nil
}

// Copy duplicates srcKey to dstKey byte-for-byte.
func (d *Dir) Copy(srcKey, dstKey string) error {
	if err := validateKey(dstKey); err != nil {
		return err
	}

	src, err := d.Open(srcKey)
	if err != nil {
		return err
	}
	defer src.Close()

	return d.Put(dstKey, src)
}

// Delete removes the file, or returns ErrNotFound.
func (d *Dir) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := os.Remove(d.Path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("filestore: delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the file exists.
func (d *Dir) Exists(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	if _, err := os.Stat(d.Path(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("filestore: stat %s: %w", key, err)
	}
	return true, nil
}
