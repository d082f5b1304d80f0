package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a workspace entry or session does not
	// exist, or when an entry's backing data is missing (corruption).
	ErrNotFound = errors.New("not found")

	// ErrCancelled signals cooperative cancellation observed by a run. It is
	// terminal but not a failure of the work itself.
	ErrCancelled = errors.New("run cancelled")
)

// ToolExecutionError reports that a registered tool failed. It is recorded as
// an observation; the run continues or replans, it does not unwind.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

// Unwrap exposes the underlying tool error.
func (e *ToolExecutionError) Unwrap() error { return e.Err }

// UnsupportedTaskError reports that no capability is registered for a
// requested task type. It is fatal to that action and surfaced to the planner
// for replanning.
type UnsupportedTaskError struct {
	TaskType string
}

func (e *UnsupportedTaskError) Error() string {
	return fmt.Sprintf("no tool registered for task type %q", e.TaskType)
}

// StorageError reports an infrastructure failure of the durable medium. It
// propagates to the caller of the operation that triggered it and aborts only
// that operation, not the session.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying I/O error.
func (e *StorageError) Unwrap() error { return e.Err }

// VerificationRejectedError reports that the verifier found the run output
// insufficient. It triggers at most the configured number of replan cycles
// before the run is forced to FAILED.
type VerificationRejectedError struct {
	Issues []string
}

func (e *VerificationRejectedError) Error() string {
	if len(e.Issues) == 0 {
		return "verification rejected"
	}
	return "verification rejected: " + strings.Join(e.Issues, "; ")
}
