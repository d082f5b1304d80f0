package core

import "time"

// TaskStatus describes the lifecycle position of a goal-tracker task. Tasks
// are never deleted, only transitioned.
type TaskStatus string

const (
	// TaskPending means the task has not been started.
	TaskPending TaskStatus = "pending"
	// TaskInProgress means the task is currently being worked on.
	TaskInProgress TaskStatus = "in_progress"
	// TaskCompleted means the task finished successfully. Terminal.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed means the task finished unsuccessfully. Terminal.
	TaskFailed TaskStatus = "failed"
	// TaskBlocked means the task cannot proceed until something changes.
	TaskBlocked TaskStatus = "blocked"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is one goal-tracker item. IDs are session-scoped sequential integers.
type Task struct {
	ID          int        `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress summarizes a tracker's state.
type Progress struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	InProgress      int     `json:"in_progress"`
	Pending         int     `json:"pending"`
	Blocked         int     `json:"blocked"`
	PercentComplete float64 `json:"percent_complete"`
}

// AgentTask is the ephemeral work unit passed into an executor. It is not
// persisted; the corresponding action/observation events are.
type AgentTask struct {
	ID           string
	Type         string
	Input        map[string]any
	Context      string
	ParentTaskID string
}

// AgentResult is the typed outcome returned by an executor for one AgentTask.
type AgentResult struct {
	TaskID  string
	Success bool
	Output  any
	Error   string
}
