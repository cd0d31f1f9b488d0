package statestore

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps blobs in process memory. Useful for tests and for carrying
// state across a model rebuild within one process.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Save stores a copy of blob.
func (m *Memory) Save(_ context.Context, key string, blob []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	m.blobs[key] = slices.Clone(blob)
	m.mu.Unlock()
	return nil
}

// Load returns a copy of the blob stored under key.
func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(b), nil
}
