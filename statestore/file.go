package statestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// File stores each blob as a file named after its key inside a directory.
// Writes go to a temporary file first and are renamed into place, so a
// crash never leaves a truncated blob behind.
type File struct {
	dir string
}

// NewFile returns a File store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "statestore: create %s", dir)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return "", errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return filepath.Join(f.dir, key), nil
}

// Save atomically replaces the blob under key.
func (f *File) Save(ctx context.Context, key string, blob []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "statestore: temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "statestore: write")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "statestore: sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "statestore: close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), p), "statestore: rename")
}

// Load reads the blob under key.
func (f *File) Load(ctx context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "statestore: read")
	}
	return b, nil
}
