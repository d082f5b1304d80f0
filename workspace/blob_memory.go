package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// InMemoryBlobStore is a trivial in-process core.BlobStore implementation
// useful for tests, examples and single-process prototypes. It keeps all
// content in a nested map guarded by an RWMutex. Data is copied on write and
// read to avoid accidental external mutation of internal buffers.
//
// Layout: sessionID -> key -> raw bytes
//
// This implementation is intentionally minimal; it does not enforce retention
// limits, size quotas, or eviction. For production, prefer a durable backend
// that survives process restarts.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]map[string][]byte
}

// NewInMemoryBlobStore returns an empty in-memory blob store.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]map[string][]byte)}
}

// Put stores (or overwrites) the bytes for the given session and key. The
// input slice is copied before storage.
func (s *InMemoryBlobStore) Put(_ context.Context, sessionID, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[sessionID]; !ok {
		s.blobs[sessionID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[sessionID][key] = cp
	return nil
}

// Get returns a copy of the stored bytes or core.ErrNotFound.
func (s *InMemoryBlobStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.blobs[sessionID]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", sessionID, key, core.ErrNotFound)
	}
	data, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", sessionID, key, core.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete removes the entry if present or returns core.ErrNotFound.
func (s *InMemoryBlobStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.blobs[sessionID]
	if !ok {
		return fmt.Errorf("blob %s/%s: %w", sessionID, key, core.ErrNotFound)
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("blob %s/%s: %w", sessionID, key, core.ErrNotFound)
	}
	delete(m, key)
	return nil
}

// DeleteAll removes every entry for the session. Removing an absent session
// is a no-op.
func (s *InMemoryBlobStore) DeleteAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, sessionID)
	return nil
}
