package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/sessionmesh/core"
)

// FSBlobStore is a filesystem-backed core.BlobStore laying content out under
// root/<sessionID>/<key>. Keys are sanitized to stay inside the session
// directory. I/O failures surface as *core.StorageError so callers can tell
// infrastructure trouble from mere absence.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed and returns the store.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &core.StorageError{Op: "init", Err: err}
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) path(sessionID, key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &core.StorageError{Op: "path", Err: fmt.Errorf("invalid key %q", key)}
	}
	return filepath.Join(s.root, sessionID, clean), nil
}

// Put writes data atomically via a temp file rename.
func (s *FSBlobStore) Put(_ context.Context, sessionID, key string, data []byte) error {
	p, err := s.path(sessionID, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &core.StorageError{Op: "put", Err: err}
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &core.StorageError{Op: "put", Err: err}
	}
	if err := os.Rename(tmp, p); err != nil {
		return &core.StorageError{Op: "put", Err: err}
	}
	return nil
}

// Get returns the stored bytes or core.ErrNotFound.
func (s *FSBlobStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	p, err := s.path(sessionID, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s/%s: %w", sessionID, key, core.ErrNotFound)
		}
		return nil, &core.StorageError{Op: "get", Err: err}
	}
	return data, nil
}

// Delete removes one file or returns core.ErrNotFound.
func (s *FSBlobStore) Delete(_ context.Context, sessionID, key string) error {
	p, err := s.path(sessionID, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("blob %s/%s: %w", sessionID, key, core.ErrNotFound)
		}
		return &core.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// DeleteAll removes the session directory. Removing an absent directory is a
// no-op.
func (s *FSBlobStore) DeleteAll(_ context.Context, sessionID string) error {
	dir := filepath.Join(s.root, sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return &core.StorageError{Op: "delete_all", Err: err}
	}
	return nil
}
