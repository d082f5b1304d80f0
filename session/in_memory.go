package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/workspace"
)

// InMemoryStore is a volatile Store implementation keeping records in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Records are cloned on both paths to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

// Save stores a clone of the record, replacing any previous version.
func (s *InMemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = cloneRecord(rec)
	return nil
}

// Load returns a clone of the stored record or core.ErrNotFound.
func (s *InMemoryStore) Load(_ context.Context, sessionID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return Record{}, fmt.Errorf("session record %q: %w", sessionID, core.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// Delete removes the record. Deleting an unknown id is a no-op.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Events = append([]core.Event(nil), rec.Events...)
	out.Manifest = append([]workspace.Entry(nil), rec.Manifest...)
	out.Tasks = append([]core.Task(nil), rec.Tasks...)
	return out
}
