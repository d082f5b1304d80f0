package core

import "context"

// BlobStore is the durable medium behind a session's workspace. Content is
// keyed by session and entry name; the workspace manifest holds the metadata,
// the blob store only the bytes.
//
// Implementations must be safe for concurrent use. Failures should be
// reported as *StorageError (medium unavailable or full) or ErrNotFound
// (missing backing data).
type BlobStore interface {
	// Put durably writes data under the given session and key, overwriting
	// any previous content.
	Put(ctx context.Context, sessionID, key string, data []byte) error

	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, sessionID, key string) ([]byte, error)

	// Delete removes one entry's bytes. Removing an absent entry returns
	// ErrNotFound.
	Delete(ctx context.Context, sessionID, key string) error

	// DeleteAll removes every entry for the session. It is idempotent.
	DeleteAll(ctx context.Context, sessionID string) error
}
