// Package storage is the bucket directory collaborator the blob engine is
// written against: any *os.File satisfies io.ReadSeeker, so it plugs
// directly into blob.Open and chunked.New. The directory layout itself is
// outside the engine's concern — this package sanitizes object names and
// saves, opens, lists, sizes and deletes whole files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidObjectName = errors.New("storage: invalid object name")

// BucketStore is a directory of opaque blob files on local disk.
type BucketStore struct {
	root string
}

// NewBucketStore ensures dir exists and returns a store rooted at it.
func NewBucketStore(dir string) (*BucketStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve bucket dir: %w", err)
	}
	return &BucketStore{root: abs}, nil
}

// SafeObjectName rejects traversal attempts (".." segments, absolute
// paths, empty names) before an object name is joined into the bucket
// root, grounded on the original source's path-segment walk (adapted to
// Go's path/filepath idiom rather than transliterated).
func SafeObjectName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidObjectName)
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("%w: absolute path %q", ErrInvalidObjectName, name)
	}
	for _, segment := range strings.Split(filepath.ToSlash(name), "/") {
		if segment == ".." || segment == "." {
			return fmt.Errorf("%w: traversal segment in %q", ErrInvalidObjectName, name)
		}
	}
	return nil
}

// Save writes the whole blob to objectName, replacing any existing file.
// There is no streaming write side: the engine validates and accepts
// whole files.
func (b *BucketStore) Save(objectName string, data []byte) error {
	if err := SafeObjectName(objectName); err != nil {
		return err
	}
	path := filepath.Join(b.root, objectName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", objectName, err)
	}
	return nil
}

// Open returns a seekable handle onto objectName. The caller owns the
// returned file and must Close it.
func (b *BucketStore) Open(objectName string) (*os.File, error) {
	if err := SafeObjectName(objectName); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(b.root, objectName))
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", objectName, err)
	}
	return f, nil
}

// Delete removes objectName from the bucket.
func (b *BucketStore) Delete(objectName string) error {
	if err := SafeObjectName(objectName); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(b.root, objectName)); err != nil {
		return fmt.Errorf("delete object %s: %w", objectName, err)
	}
	return nil
}

// List enumerates object names currently in the bucket, for the
// integrity worker's periodic sweep.
func (b *BucketStore) List() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Size reports the total size, in bytes, of objectName.
func (b *BucketStore) Size(objectName string) (int64, error) {
	if err := SafeObjectName(objectName); err != nil {
		return 0, err
	}
	info, err := os.Stat(filepath.Join(b.root, objectName))
	if err != nil {
		return 0, fmt.Errorf("stat object %s: %w", objectName, err)
	}
	return info.Size(), nil
}
