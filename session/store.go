package session

import "context"

// Store persists session records. Implementations must be safe for
// concurrent use; Load returns core.ErrNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
	Delete(ctx context.Context, sessionID string) error
}
