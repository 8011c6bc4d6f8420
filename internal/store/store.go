// Package store provides durable key-value blob persistence for the
// reflection engine. The engine treats persistence as best-effort: a failed
// write is logged and in-memory state stays authoritative.
package store

import "sync"

// BlobStore is the durable key-value contract consumed by the engine.
type BlobStore interface {
	// Persist writes a blob under key, replacing any previous value.
	Persist(key string, blob []byte) error
	// Load returns the blob for key, or ok=false if absent.
	Load(key string) (blob []byte, ok bool, err error)
	// Remove deletes the blob for key. Removing an absent key is not an error.
	Remove(key string) error
}

// MemoryStore is an in-memory BlobStore for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Persist stores a copy of blob under key.
func (m *MemoryStore) Persist(key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[key] = cp
	return nil
}

// Load returns a copy of the blob for key.
func (m *MemoryStore) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, true, nil
}

// Remove deletes the blob for key.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
