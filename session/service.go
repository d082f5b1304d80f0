package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/goal"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/prompt"
	"github.com/hupe1980/sessionmesh/workspace"
)

// Options configure a Service.
type Options struct {
	// Store persists session records. Defaults to an in-memory store.
	Store Store
	// Blobs backs every session's workspace. Defaults to an in-memory store.
	Blobs core.BlobStore
	// StrictGoals enables the tracker's single-in-progress guard.
	StrictGoals bool
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Service owns session lifecycle: create, get, destroy. It is the explicit
// replacement for a module-level session map: construct one and inject it
// wherever sessions are needed.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	subs     map[string]*core.Subscription

	store       Store
	blobs       core.BlobStore
	strictGoals bool
	logger      logging.Logger
}

// NewService constructs a Service with optional overrides.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		Store:  NewInMemoryStore(),
		Blobs:  workspace.NewInMemoryBlobStore(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		sessions:    make(map[string]*Session),
		subs:        make(map[string]*core.Subscription),
		store:       opts.Store,
		blobs:       opts.Blobs,
		strictGoals: opts.StrictGoals,
		logger:      opts.Logger,
	}
}

// Create returns a new session, or resumes an existing one from the durable
// store when a record for id exists. An empty id gets a generated one.
func (s *Service) Create(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = util.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}

	rec, err := s.store.Load(ctx, id)
	switch {
	case err == nil:
		return s.mountLocked(rec)
	case errors.Is(err, core.ErrNotFound):
		rec = Record{SessionID: id, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
		return s.mountLocked(rec)
	default:
		return nil, err
	}
}

// mountLocked materializes a session from a record and registers the
// incremental persistence subscriber. Caller holds the write lock.
func (s *Service) mountLocked(rec Record) (*Session, error) {
	logOpt := func(o *core.EventLogOptions) { o.Logger = s.logger }
	sess := &Session{
		ID:        rec.SessionID,
		Log:       core.RestoreEventLog(rec.Events, logOpt),
		CreatedAt: rec.CreatedAt,
	}
	sess.Workspace = workspace.New(rec.SessionID, func(o *workspace.Options) {
		o.Blobs = s.blobs
		o.Logger = s.logger
	})
	sess.Workspace.Restore(rec.Manifest)

	var goalOpts []func(o *goal.Options)
	if s.strictGoals {
		goalOpts = append(goalOpts, goal.WithStrict())
	}
	sess.Goals = goal.NewTracker(goalOpts...)
	sess.Goals.Restore(rec.Tasks)

	sess.builder = prompt.NewBuilder(sess.Log, sess.Workspace, sess.Goals)

	// Persist incrementally: every append re-saves the session record.
	// Persistence failures are reported through the log's subscriber
	// isolation, never propagated into the appender.
	sub := sess.Log.Subscribe(core.SubscriberFunc(func(core.Event) error {
		return s.persist(context.Background(), sess)
	}))

	s.sessions[rec.SessionID] = sess
	s.subs[rec.SessionID] = sub

	if err := s.store.Save(context.Background(), sess.record()); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) persist(ctx context.Context, sess *Session) error {
	if err := s.store.Save(ctx, sess.record()); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	return nil
}

// Get returns a live session or core.ErrNotFound.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, core.ErrNotFound)
	}
	return sess, nil
}

// Destroy tears a session down: the workspace is cleaned exactly once, the
// durable record removed, and the session forgotten. Destroying an unknown
// session returns core.ErrNotFound.
func (s *Service) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		if sub := s.subs[id]; sub != nil {
			sub.Unsubscribe()
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %q: %w", id, core.ErrNotFound)
	}
	if err := sess.Workspace.CleanupAll(ctx); err != nil {
		s.logger.Warn("workspace cleanup failed", "session_id", id, "error", err.Error())
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return nil
}

// RecordUserMessage appends a user event to the session's log.
func (s *Service) RecordUserMessage(id, text string) (core.Event, error) {
	sess, err := s.Get(id)
	if err != nil {
		return core.Event{}, err
	}
	return sess.Log.Append(core.NewUserEvent(text)), nil
}

// BuildPromptMessages assembles the ordered message blocks for an external
// generation call. The host invokes the model and feeds results back through
// the session's log.
func (s *Service) BuildPromptMessages(id, userMessage string) ([]core.Message, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Builder().BuildMessages(userMessage, prompt.DefaultMaxEvents), nil
}

// StoreArtifact writes content into the session's workspace and returns the
// short prompt reference.
func (s *Service) StoreArtifact(ctx context.Context, id, name string, content []byte, kind workspace.Kind, description string) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return sess.Workspace.Store(ctx, name, content, kind, description)
}

// RetrieveArtifact loads an artifact from the session's workspace.
func (s *Service) RetrieveArtifact(ctx context.Context, id, name string) ([]byte, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Workspace.Retrieve(ctx, name)
}
