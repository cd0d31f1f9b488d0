// Package statestore persists cache.Model state blobs.
//
// A Store maps keys to opaque blobs. Memory, File and S3 backends are
// provided; SaveModel and RestoreModel move a model's State in and out of
// any of them.
package statestore

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned by Load when no blob is stored under the key.
	ErrNotFound = errors.New("statestore: not found")
	// ErrInvalidKey is returned for empty keys and keys a backend cannot
	// store safely.
	ErrInvalidKey = errors.New("statestore: invalid key")
)

// Store saves and loads state blobs by key. Implementations must be safe
// for concurrent use.
type Store interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// Snapshotter is the saving half of cache.Model.
type Snapshotter interface {
	State() ([]byte, error)
}

// Restorer is the restoring half of cache.Model.
type Restorer interface {
	SetState(blob []byte) error
}

// SaveModel stores m's current state under key.
func SaveModel(ctx context.Context, s Store, key string, m Snapshotter) error {
	blob, err := m.State()
	if err != nil {
		return errors.Wrap(err, "statestore: snapshot")
	}
	return errors.Wrapf(s.Save(ctx, key, blob), "statestore: save %q", key)
}

// RestoreModel loads the blob under key into m. It returns ErrNotFound if
// nothing was saved; m is left untouched on any error.
func RestoreModel(ctx context.Context, s Store, key string, m Restorer) error {
	blob, err := s.Load(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "statestore: load %q", key)
	}
	return errors.Wrap(m.SetState(blob), "statestore: restore")
}
