package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
)

// Kind categorizes the content of a workspace entry.
type Kind string

const (
	// KindText is UTF-8 text content.
	KindText Kind = "text"
	// KindStructured is JSON-encoded structured content.
	KindStructured Kind = "structured"
	// KindBinary is opaque binary content.
	KindBinary Kind = "binary"
)

// maxManifestDescription bounds how much of an entry description the
// manifest includes, keeping the listing token-minimal.
const maxManifestDescription = 80

// Entry is the manifest record for one stored artifact. The content itself
// lives in the blob store; Entry carries only metadata and the storage key.
type Entry struct {
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StorageKey  string    `json:"storage_key"`
}

// Ref is the short human-readable reference suitable for inclusion in a
// prompt instead of the content.
func (e Entry) Ref() string {
	return fmt.Sprintf("workspace:%s (%s)", e.Name, util.HumanSize(e.SizeBytes))
}

// Options configure a Workspace.
type Options struct {
	// Blobs is the durable medium. Defaults to an in-memory store.
	Blobs core.BlobStore
	// Logger reports corruption and cleanup issues. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Workspace is the per-session content-addressable artifact store. All
// methods are safe for concurrent use within the session that owns it.
type Workspace struct {
	sessionID string
	blobs     core.BlobStore
	logger    logging.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	cleaned bool
}

// New constructs a workspace for one session.
func New(sessionID string, optFns ...func(o *Options)) *Workspace {
	opts := Options{Blobs: NewInMemoryBlobStore(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Workspace{
		sessionID: sessionID,
		blobs:     opts.Blobs,
		logger:    opts.Logger,
		entries:   make(map[string]Entry),
	}
}

// SessionID returns the owning session's id.
func (w *Workspace) SessionID() string { return w.sessionID }

// Store durably writes content under name, computes its hash and upserts the
// manifest entry. Storing an existing name replaces the entry; stale hash
// references held elsewhere are only refreshed when callers re-fetch the
// manifest. When identical content already exists under another name the
// blob write is skipped and the existing entry is renamed.
//
// The returned string is the entry's short prompt reference.
func (w *Workspace) Store(ctx context.Context, name string, content []byte, kind Kind, description string) (string, error) {
	if name == "" {
		return "", &core.StorageError{Op: "store", Err: errors.New("empty entry name")}
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	defer w.mu.Unlock()

	// Dedup: identical content already stored under a different name.
	for oldName, e := range w.entries {
		if e.ContentHash == hash && oldName != name {
			delete(w.entries, oldName)
			e.Name = name
			if description != "" {
				e.Description = description
			}
			w.entries[name] = e
			return e.Ref(), nil
		}
	}

	if err := w.blobs.Put(ctx, w.sessionID, name, content); err != nil {
		return "", err
	}

	entry := Entry{
		Name:        name,
		Kind:        kind,
		SizeBytes:   int64(len(content)),
		ContentHash: hash,
		Description: description,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		StorageKey:  name,
	}
	w.entries[name] = entry
	w.cleaned = false
	return entry.Ref(), nil
}

// StoreJSON marshals v and stores it as a structured entry.
func (w *Workspace) StoreJSON(ctx context.Context, name string, v any, description string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", &core.StorageError{Op: "store", Err: err}
	}
	return w.Store(ctx, name, data, KindStructured, description)
}

// Retrieve loads an entry's content by name. A missing entry returns
// core.ErrNotFound. Missing backing data for a live manifest entry is treated
// as corruption: it is logged and also reported as core.ErrNotFound rather
// than silently ignored.
func (w *Workspace) Retrieve(ctx context.Context, name string) ([]byte, error) {
	w.mu.RLock()
	entry, ok := w.entries[name]
	w.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", name, core.ErrNotFound)
	}

	data, err := w.blobs.Get(ctx, w.sessionID, entry.StorageKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			w.logger.Error("workspace entry backing data missing",
				"session_id", w.sessionID, "name", name, "hash", entry.ContentHash)
			return nil, fmt.Errorf("entry %q backing data missing: %w", name, core.ErrNotFound)
		}
		return nil, err
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != entry.ContentHash {
		w.logger.Error("workspace entry content hash mismatch",
			"session_id", w.sessionID, "name", name, "want", entry.ContentHash)
		return nil, fmt.Errorf("entry %q content corrupted: %w", name, core.ErrNotFound)
	}
	return data, nil
}

// RetrieveJSON loads a structured entry into v.
func (w *Workspace) RetrieveJSON(ctx context.Context, name string, v any) error {
	data, err := w.Retrieve(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &core.StorageError{Op: "retrieve", Err: err}
	}
	return nil
}

// Get returns the manifest entry for name without loading content.
func (w *Workspace) Get(name string) (Entry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[name]
	return e, ok
}

// Entries returns all manifest entries sorted by name.
func (w *Workspace) Entries() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Entry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Manifest renders the deterministic, token-minimal listing included in
// context instead of the content itself. Empty workspaces render as "".
func (w *Workspace) Manifest() string {
	entries := w.Entries()
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available in workspace:")
	for _, e := range entries {
		b.WriteString("\n- ")
		b.WriteString(e.Name)
		b.WriteString(" (")
		b.WriteString(string(e.Kind))
		b.WriteString(", ")
		b.WriteString(util.HumanSize(e.SizeBytes))
		b.WriteString(")")
		if e.Description != "" {
			b.WriteString(" - ")
			b.WriteString(util.Truncate(e.Description, maxManifestDescription))
		}
	}
	return b.String()
}

// Delete removes one entry and its backing data. It reports whether the
// entry existed.
func (w *Workspace) Delete(ctx context.Context, name string) bool {
	w.mu.Lock()
	entry, ok := w.entries[name]
	if ok {
		delete(w.entries, name)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	if err := w.blobs.Delete(ctx, w.sessionID, entry.StorageKey); err != nil && !errors.Is(err, core.ErrNotFound) {
		w.logger.Warn("workspace blob delete failed",
			"session_id", w.sessionID, "name", name, "error", err.Error())
	}
	return true
}

// CleanupAll removes every entry and its backing data. It is called exactly
// once at session termination by the session service, and is idempotent:
// calling it on an already-clean workspace is a no-op.
func (w *Workspace) CleanupAll(ctx context.Context) error {
	w.mu.Lock()
	if w.cleaned && len(w.entries) == 0 {
		w.mu.Unlock()
		return nil
	}
	w.entries = make(map[string]Entry)
	w.cleaned = true
	w.mu.Unlock()

	if err := w.blobs.DeleteAll(ctx, w.sessionID); err != nil {
		return err
	}
	return nil
}

// Restore replaces the manifest with entries loaded from a persisted session
// record. Blob content is expected to already exist in the backing store.
func (w *Workspace) Restore(entries []Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		w.entries[e.Name] = e
	}
	w.cleaned = false
}
