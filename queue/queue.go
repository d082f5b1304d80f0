package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/agent"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/session"
)

// Status describes where a queued run is in its lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// ErrQueueFull is returned by Submit when the buffer is at capacity.
var ErrQueueFull = errors.New("queue full")

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("queue closed")

// Run is the tracked state of one submitted run.
type Run struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Goal        string     `json:"goal"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Options configure a Queue.
type Options struct {
	// MaxWorkers caps concurrently executing runs.
	MaxWorkers int
	// Depth is the submit buffer size.
	Depth int
	// OnUpdate, when set, observes every status transition.
	OnUpdate func(Run)
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Queue executes runs asynchronously through a worker pool. Workers block on
// the buffer and exit when the queue is closed.
type Queue struct {
	service      *session.Service
	orchestrator *agent.Orchestrator
	onUpdate     func(Run)
	logger       *logging.RunLogger

	ch chan string

	mu      sync.RWMutex
	runs    map[string]*Run
	cancels map[string]context.CancelFunc
	closed  bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New constructs the queue and starts its workers.
func New(service *session.Service, orchestrator *agent.Orchestrator, optFns ...func(o *Options)) *Queue {
	opts := Options{
		MaxWorkers: 4,
		Depth:      1024,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	q := &Queue{
		service:      service,
		orchestrator: orchestrator,
		onUpdate:     opts.OnUpdate,
		logger:       logging.NewRunLogger(opts.Logger).WithComponent("queue"),
		ch:           make(chan string, opts.Depth),
		runs:         make(map[string]*Run),
		cancels:      make(map[string]context.CancelFunc),
		baseCtx:      baseCtx,
		baseCancel:   baseCancel,
	}
	for i := 0; i < opts.MaxWorkers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a run without blocking the caller. The returned id can be
// polled with Status and cancelled with Cancel.
func (q *Queue) Submit(sessionID, goal string) (string, error) {
	run := &Run{
		ID:        util.NewID(),
		SessionID: sessionID,
		Goal:      goal,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	q.runs[run.ID] = run
	q.mu.Unlock()

	select {
	case q.ch <- run.ID:
	default:
		q.mu.Lock()
		delete(q.runs, run.ID)
		q.mu.Unlock()
		return "", ErrQueueFull
	}

	q.notify(*run)
	q.logger.WithRun(sessionID, run.ID).Debug("run submitted")
	return run.ID, nil
}

// Status returns a snapshot of the run's state or core.ErrNotFound.
func (q *Queue) Status(id string) (Run, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	run, ok := q.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("run %q: %w", id, core.ErrNotFound)
	}
	return *run, nil
}

// Cancel stops a run: a queued run is dequeued, a running run has its
// context cancelled and finishes cooperatively, a terminal run is left
// untouched. Unknown ids return core.ErrNotFound.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("run %q: %w", id, core.ErrNotFound)
	}
	if run.Status.Terminal() {
		q.mu.Unlock()
		return nil
	}
	if run.Status == StatusQueued {
		now := time.Now().UTC().Truncate(time.Microsecond)
		run.Status = StatusCancelled
		run.CompletedAt = &now
		snapshot := *run
		q.mu.Unlock()
		q.notify(snapshot)
		return nil
	}
	cancel := q.cancels[id]
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Close stops accepting submissions, cancels running work and waits for the
// workers to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.baseCancel()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.baseCtx.Done():
			return
		case id := <-q.ch:
			q.process(id)
		}
	}
}

// process transitions one run to a terminal status. Panics and errors from
// the run loop are captured into the run record, never dropped.
func (q *Queue) process(id string) {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok || run.Status != StatusQueued {
		// Cancelled while still queued.
		q.mu.Unlock()
		return
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	run.Status = StatusRunning
	run.StartedAt = &now
	ctx, cancel := context.WithCancel(q.baseCtx)
	q.cancels[id] = cancel
	snapshot := *run
	q.mu.Unlock()

	q.notify(snapshot)
	res, err := q.execute(ctx, run.SessionID, run.Goal)
	cancel()

	q.mu.Lock()
	delete(q.cancels, id)
	done := time.Now().UTC().Truncate(time.Microsecond)
	run.CompletedAt = &done
	switch {
	case errors.Is(err, core.ErrCancelled), errors.Is(err, context.Canceled):
		// context.Canceled covers a cancel landing while the run is still in
		// its planning call, before the loop's own cancellation check runs.
		run.Status = StatusCancelled
	case err != nil:
		run.Status = StatusFailed
		run.Error = err.Error()
	default:
		run.Status = StatusDone
		run.Summary = res.Summary
	}
	snapshot = *run
	q.mu.Unlock()

	q.notify(snapshot)
	q.logger.WithRun(snapshot.SessionID, id).Info("run finished", "status", string(snapshot.Status))
}

func (q *Queue) execute(ctx context.Context, sessionID, goal string) (res agent.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	sess, err := q.service.Create(ctx, sessionID)
	if err != nil {
		return agent.RunResult{}, err
	}
	return q.orchestrator.Run(ctx, sess, goal)
}

func (q *Queue) notify(run Run) {
	if q.onUpdate != nil {
		q.onUpdate(run)
	}
}
