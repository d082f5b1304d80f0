package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/sessionmesh/core"
)

// RedisStoreOptions configure a RedisStore.
type RedisStoreOptions struct {
	// KeyPrefix is prepended to every session key.
	KeyPrefix string
	// TTL expires idle session records. Zero means no expiry.
	TTL time.Duration
}

// RedisStore is a durable Store backed by a Redis instance. Records are
// serialized as JSON under one key per session, refreshed on every save.
type RedisStore struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore constructs a store on top of an existing Redis client. The
// caller owns the client's lifecycle.
func NewRedisStore(rdb redis.UniversalClient, optFns ...func(o *RedisStoreOptions)) *RedisStore {
	opts := RedisStoreOptions{KeyPrefix: "sessionmesh:session:"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{rdb: rdb, keyPrefix: opts.KeyPrefix, ttl: opts.TTL}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Save serializes the record and writes it under the session's key.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}
	if err := s.rdb.Set(ctx, s.key(rec.SessionID), data, s.ttl).Err(); err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}
	return nil
}

// Load fetches and decodes the record, or returns core.ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (Record, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("session record %q: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return Record{}, &core.StorageError{Op: "load", Err: err}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, &core.StorageError{Op: "load", Err: err}
	}
	return rec, nil
}

// Delete removes the session's key. Unknown ids are a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return &core.StorageError{Op: "delete", Err: err}
	}
	return nil
}
