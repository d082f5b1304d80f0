package core

import (
	"time"

	"github.com/hupe1980/sessionmesh/internal/util"
)

// Kind categorizes an event in the session log.
type Kind string

const (
	// KindUser is a message supplied by the user.
	KindUser Kind = "user"
	// KindPlan is a planning step emitted before execution starts.
	KindPlan Kind = "plan"
	// KindAction is an intended tool invocation, recorded before execution.
	KindAction Kind = "action"
	// KindObservation is the outcome of a previously recorded action.
	KindObservation Kind = "observation"
	// KindError records a failure. Errors are observations, not rollbacks:
	// they stay in the log so later cycles (and replays) can see them.
	KindError Kind = "error"
	// KindThought is free-form agent reasoning kept for inspection.
	KindThought Kind = "thought"
	// KindComplete marks the successful end of a run.
	KindComplete Kind = "complete"
)

// Event is an immutable record in a session's append-only log. Seq is the
// authoritative order key: it is assigned by the EventLog on append and is
// never derived from wall-clock time, since clocks may tie or skew. After
// emission an event must be treated as read-only.
//
// CreatedAt is truncated to microseconds in UTC so that serializing the same
// event always yields identical bytes, which keeps prompt prefixes stable for
// cache reuse.
type Event struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Kind      Kind           `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent creates a bare event of the given kind. Seq remains zero until the
// event is appended to a log.
func NewEvent(kind Kind, payload map[string]any) Event {
	return Event{
		ID:        util.NewID(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewUserEvent records a user message.
func NewUserEvent(message string) Event {
	return NewEvent(KindUser, map[string]any{"message": message})
}

// NewPlanEvent records a planning step. Goals may be nil when the plan text
// carries no explicit goal list.
func NewPlanEvent(plan string, goals []string) Event {
	payload := map[string]any{"plan": plan}
	if len(goals) > 0 {
		payload["goals"] = goals
	}
	return NewEvent(KindPlan, payload)
}

// NewActionEvent records an intended tool invocation. It is appended before
// the tool executes so that failures are still logged against the action that
// caused them.
func NewActionEvent(action, tool string, params map[string]any) Event {
	payload := map[string]any{"action": action, "tool": tool}
	if len(params) > 0 {
		payload["params"] = params
	}
	return NewEvent(KindAction, payload)
}

// NewObservationEvent records the outcome of the action identified by
// actionEventID.
func NewObservationEvent(actionEventID string, result any) Event {
	return NewEvent(KindObservation, map[string]any{
		"action_event_id": actionEventID,
		"result":          result,
	})
}

// NewObservationErrorEvent records a failed action outcome. The error is kept
// as data so the loop can continue or replan instead of unwinding.
func NewObservationErrorEvent(actionEventID, errMsg string) Event {
	return NewEvent(KindObservation, map[string]any{
		"action_event_id": actionEventID,
		"error":           errMsg,
	})
}

// NewErrorEvent records a failure with the context in which it occurred.
func NewErrorEvent(errMsg, context string) Event {
	return NewEvent(KindError, map[string]any{"error": errMsg, "context": context})
}

// NewThoughtEvent records free-form agent reasoning.
func NewThoughtEvent(text string) Event {
	return NewEvent(KindThought, map[string]any{"text": text})
}

// NewCompleteEvent marks a run as finished with a closing summary.
func NewCompleteEvent(summary string) Event {
	return NewEvent(KindComplete, map[string]any{"summary": summary})
}

// PayloadString returns the string stored under key in the payload, or ""
// when absent or of a different type.
func (e Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// IsTerminal reports whether the event closes a run (complete, or an error
// that carries a terminal context such as cancellation).
func (e Event) IsTerminal() bool {
	return e.Kind == KindComplete || (e.Kind == KindError && e.PayloadString("context") == "run")
}
