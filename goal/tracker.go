package goal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

// recentCompletedInRecap bounds how many finished tasks the recap keeps
// showing for context.
const recentCompletedInRecap = 3

// Options configure a Tracker.
type Options struct {
	// Strict rejects StartTask while another task is in progress. The
	// default is lenient: single-in-progress is an orchestrator contract
	// (complete or fail the current task before starting the next), not one
	// the tracker polices on its own.
	Strict bool
}

// Tracker is the ordered list of sub-tasks for one session. Safe for
// concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	nextID int
	tasks  []core.Task
	strict bool
}

// NewTracker constructs an empty tracker.
func NewTracker(optFns ...func(o *Options)) *Tracker {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tracker{nextID: 1, strict: opts.Strict}
}

// WithStrict enables rejection of overlapping StartTask calls.
func WithStrict() func(o *Options) {
	return func(o *Options) { o.Strict = true }
}

// AddTasks appends one pending task per description and returns the created
// tasks in order.
func (t *Tracker) AddTasks(descriptions []string) []core.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	created := make([]core.Task, 0, len(descriptions))
	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, d := range descriptions {
		task := core.Task{
			ID:          t.nextID,
			Description: d,
			Status:      core.TaskPending,
			CreatedAt:   now,
		}
		t.nextID++
		t.tasks = append(t.tasks, task)
		created = append(created, task)
	}
	return created
}

func (t *Tracker) find(id int) (int, error) {
	for i := range t.tasks {
		if t.tasks[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("task %d: %w", id, core.ErrNotFound)
}

// StartTask transitions a task to in_progress. In strict mode it returns an
// error while another task is already in progress.
func (t *Tracker) StartTask(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, err := t.find(id)
	if err != nil {
		return err
	}
	if t.strict {
		for j := range t.tasks {
			if t.tasks[j].Status == core.TaskInProgress && t.tasks[j].ID != id {
				return fmt.Errorf("task %d already in progress", t.tasks[j].ID)
			}
		}
	}
	t.tasks[i].Status = core.TaskInProgress
	return nil
}

func (t *Tracker) finish(id int, status core.TaskStatus, notes string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, err := t.find(id)
	if err != nil {
		return err
	}
	t.tasks[i].Status = status
	if notes != "" {
		t.tasks[i].Notes = notes
	}
	if status.Terminal() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		t.tasks[i].CompletedAt = &now
	}
	return nil
}

// CompleteTask transitions a task to completed with optional notes.
func (t *Tracker) CompleteTask(id int, notes string) error {
	return t.finish(id, core.TaskCompleted, notes)
}

// FailTask transitions a task to failed with an optional reason.
func (t *Tracker) FailTask(id int, reason string) error {
	return t.finish(id, core.TaskFailed, reason)
}

// BlockTask marks a task blocked with an optional reason. Blocked is not
// terminal; the task can be restarted later.
func (t *Tracker) BlockTask(id int, reason string) error {
	return t.finish(id, core.TaskBlocked, reason)
}

// CurrentInProgress returns the first in-progress task, if any.
func (t *Tracker) CurrentInProgress() (core.Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, task := range t.tasks {
		if task.Status == core.TaskInProgress {
			return task, true
		}
	}
	return core.Task{}, false
}

// NextPending returns the first pending task, if any.
func (t *Tracker) NextPending() (core.Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, task := range t.tasks {
		if task.Status == core.TaskPending {
			return task, true
		}
	}
	return core.Task{}, false
}

// AllTerminal reports whether every task is completed or failed. An empty
// tracker reports false.
func (t *Tracker) AllTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.tasks) == 0 {
		return false
	}
	for _, task := range t.tasks {
		if !task.Status.Terminal() {
			return false
		}
	}
	return true
}

// Tasks returns a copy of all tasks in creation order.
func (t *Tracker) Tasks() []core.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Task, len(t.tasks))
	copy(out, t.tasks)
	return out
}

// Progress summarizes task counts and completion percentage.
func (t *Tracker) Progress() core.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := core.Progress{Total: len(t.tasks)}
	for _, task := range t.tasks {
		switch task.Status {
		case core.TaskCompleted:
			p.Completed++
		case core.TaskFailed:
			p.Failed++
		case core.TaskInProgress:
			p.InProgress++
		case core.TaskPending:
			p.Pending++
		case core.TaskBlocked:
			p.Blocked++
		}
	}
	if p.Total > 0 {
		p.PercentComplete = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}

// Recap renders the checklist recited at the end of an assembled context:
// in-progress tasks first, then pending and blocked, then the most recently
// completed few, then failed, closing with a progress summary line. Output is
// deterministic for a given tracker state. An empty tracker renders as "".
func (t *Tracker) Recap() string {
	tasks := t.Tasks()
	if len(tasks) == 0 {
		return ""
	}

	var inProgress, pending, blocked, completed, failed []core.Task
	for _, task := range tasks {
		switch task.Status {
		case core.TaskInProgress:
			inProgress = append(inProgress, task)
		case core.TaskPending:
			pending = append(pending, task)
		case core.TaskBlocked:
			blocked = append(blocked, task)
		case core.TaskCompleted:
			completed = append(completed, task)
		case core.TaskFailed:
			failed = append(failed, task)
		}
	}
	if n := len(completed); n > recentCompletedInRecap {
		completed = completed[n-recentCompletedInRecap:]
	}

	var b strings.Builder
	b.WriteString("## Current Objectives")
	for _, task := range inProgress {
		fmt.Fprintf(&b, "\n- [ ] **%s** (in progress)", task.Description)
	}
	for _, task := range pending {
		fmt.Fprintf(&b, "\n- [ ] %s", task.Description)
	}
	for _, task := range blocked {
		fmt.Fprintf(&b, "\n- [ ] %s (blocked)", task.Description)
	}
	for _, task := range completed {
		fmt.Fprintf(&b, "\n- [x] ~~%s~~ (done)", task.Description)
	}
	for _, task := range failed {
		fmt.Fprintf(&b, "\n- [x] %s (failed)", task.Description)
	}

	p := t.Progress()
	fmt.Fprintf(&b, "\n\nProgress: %d/%d completed (%.0f%%)", p.Completed, p.Total, p.PercentComplete)
	return b.String()
}

// Restore replaces the tracker state from a persisted session record.
func (t *Tracker) Restore(tasks []core.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = make([]core.Task, len(tasks))
	copy(t.tasks, tasks)
	t.nextID = 1
	for _, task := range tasks {
		if task.ID >= t.nextID {
			t.nextID = task.ID + 1
		}
	}
}
