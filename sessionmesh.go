// Package sessionmesh provides a high-level façade over the session,
// orchestration and replay services, enabling rapid construction of
// context-driven agent systems. Most applications interact with this
// package by:
//  1. Creating a SessionMesh via New() with a generator and a tool registry
//  2. Recording user input and submitting runs (async via the queue, or
//     synchronous via RunSync)
//  3. Reading results back through transcripts, timelines and artifacts
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session store (e.g. Redis), a
// filesystem blob store and a structured logger.
package sessionmesh

import (
	"context"

	"github.com/hupe1980/sessionmesh/agent"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/queue"
	"github.com/hupe1980/sessionmesh/replay"
	"github.com/hupe1980/sessionmesh/research"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/workspace"
)

// Options configure the SessionMesh instance.
type Options struct {
	// Generator powers planning, verification and synthesis calls.
	Generator core.Generator

	// Tools is the capability registry runs dispatch against.
	Tools *core.Registry

	// SessionStore persists session records (defaults to in-memory).
	SessionStore session.Store

	// BlobStore backs every session's workspace (defaults to in-memory).
	BlobStore core.BlobStore

	// Orchestrator bounds (zero values use the orchestrator's defaults).
	MaxCycles        int
	MaxReplans       int
	MaxGenerateCalls int

	// Queue sizing.
	MaxWorkers int
	QueueDepth int

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// SessionMesh aggregates the session service, run queue and research
// coordinator behind one entry point.
type SessionMesh struct {
	service      *session.Service
	orchestrator *agent.Orchestrator
	queue        *queue.Queue
	research     *research.Coordinator
}

// New creates a SessionMesh with optional overrides. Any unset store is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *SessionMesh {
	opts := Options{
		Tools:        core.NewRegistry(),
		SessionStore: session.NewInMemoryStore(),
		BlobStore:    workspace.NewInMemoryBlobStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	service := session.NewService(func(o *session.Options) {
		o.Store = opts.SessionStore
		o.Blobs = opts.BlobStore
		o.Logger = opts.Logger
	})

	planner := agent.NewPlanner(opts.Generator, func(o *agent.PlannerOptions) { o.Logger = opts.Logger })
	executor := agent.NewExecutor(opts.Tools, func(o *agent.ExecutorOptions) { o.Logger = opts.Logger })
	verifier := agent.NewVerifier(opts.Generator, func(o *agent.VerifierOptions) { o.Logger = opts.Logger })
	orchestrator := agent.NewOrchestrator(planner, executor, verifier, func(o *agent.Options) {
		if opts.MaxCycles > 0 {
			o.MaxCycles = opts.MaxCycles
		}
		if opts.MaxReplans > 0 {
			o.MaxReplans = opts.MaxReplans
		}
		o.MaxGenerateCalls = opts.MaxGenerateCalls
		o.Logger = opts.Logger
	})

	q := queue.New(service, orchestrator, func(o *queue.Options) {
		if opts.MaxWorkers > 0 {
			o.MaxWorkers = opts.MaxWorkers
		}
		if opts.QueueDepth > 0 {
			o.Depth = opts.QueueDepth
		}
		o.Logger = opts.Logger
	})

	coordinator := research.NewCoordinator(service, orchestrator, func(o *research.Options) {
		o.Generator = opts.Generator
		o.Logger = opts.Logger
	})

	return &SessionMesh{
		service:      service,
		orchestrator: orchestrator,
		queue:        q,
		research:     coordinator,
	}
}

// Sessions exposes the underlying session service.
func (m *SessionMesh) Sessions() *session.Service { return m.service }

// CreateSession creates or resumes the session with the given id. An empty
// id gets a generated one.
func (m *SessionMesh) CreateSession(ctx context.Context, id string) (*session.Session, error) {
	return m.service.Create(ctx, id)
}

// DestroySession tears the session down, cleaning its workspace exactly once.
func (m *SessionMesh) DestroySession(ctx context.Context, id string) error {
	return m.service.Destroy(ctx, id)
}

// RecordUserMessage appends a user event to the session's log.
func (m *SessionMesh) RecordUserMessage(id, text string) (core.Event, error) {
	return m.service.RecordUserMessage(id, text)
}

// BuildPromptMessages assembles the ordered prompt blocks for an external
// generation call against the session's current state.
func (m *SessionMesh) BuildPromptMessages(id, userMessage string) ([]core.Message, error) {
	return m.service.BuildPromptMessages(id, userMessage)
}

// StoreArtifact writes content into the session's workspace and returns the
// short prompt reference.
func (m *SessionMesh) StoreArtifact(ctx context.Context, id, name string, content []byte, kind workspace.Kind, description string) (string, error) {
	return m.service.StoreArtifact(ctx, id, name, content, kind, description)
}

// RetrieveArtifact loads an artifact from the session's workspace.
func (m *SessionMesh) RetrieveArtifact(ctx context.Context, id, name string) ([]byte, error) {
	return m.service.RetrieveArtifact(ctx, id, name)
}

// SubmitRun enqueues an asynchronous run and returns its id.
func (m *SessionMesh) SubmitRun(sessionID, goal string) (string, error) {
	return m.queue.Submit(sessionID, goal)
}

// RunStatus returns a snapshot of a queued run's state.
func (m *SessionMesh) RunStatus(runID string) (queue.Run, error) {
	return m.queue.Status(runID)
}

// CancelRun cancels a queued or running run. Cancelling a terminal run is a
// no-op.
func (m *SessionMesh) CancelRun(runID string) error {
	return m.queue.Cancel(runID)
}

// RunSync executes one run to completion on the caller's goroutine.
func (m *SessionMesh) RunSync(ctx context.Context, sessionID, goal string) (agent.RunResult, error) {
	sess, err := m.service.Create(ctx, sessionID)
	if err != nil {
		return agent.RunResult{}, err
	}
	return m.orchestrator.Run(ctx, sess, goal)
}

// WideResearch fans the topics out over parallel sub-runs bounded by
// concurrencyCap and aggregates their outcomes.
func (m *SessionMesh) WideResearch(ctx context.Context, topics []string, concurrencyCap int) (research.Report, error) {
	return m.research.Run(ctx, topics, concurrencyCap)
}

// Timeline builds a paced replay timeline for the session.
func (m *SessionMesh) Timeline(id string, speed float64) ([]replay.Item, error) {
	sess, err := m.service.Get(id)
	if err != nil {
		return nil, err
	}
	return replay.BuildTimeline(sess.Log, speed), nil
}

// ExportTranscript renders the session's full history in the given format.
func (m *SessionMesh) ExportTranscript(id string, format replay.Format) (string, error) {
	sess, err := m.service.Get(id)
	if err != nil {
		return "", err
	}
	return replay.ExportTranscript(sess.ID, sess.Log, sess.Goals.Tasks(), format)
}

// Highlights condenses the session into its key moments.
func (m *SessionMesh) Highlights(id string) (replay.Highlights, error) {
	sess, err := m.service.Get(id)
	if err != nil {
		return replay.Highlights{}, err
	}
	return replay.BuildHighlights(sess.ID, sess.Log, sess.Goals.Tasks()), nil
}

// Close drains the run queue and stops its workers.
func (m *SessionMesh) Close() {
	m.queue.Close()
}
