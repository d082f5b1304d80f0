package session

import (
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/goal"
	"github.com/hupe1980/sessionmesh/prompt"
	"github.com/hupe1980/sessionmesh/workspace"
)

// Session is the aggregate root for one user session. It owns exactly one
// EventLog, one Workspace and one goal Tracker; its lifetime spans from
// Service.Create to Service.Destroy. The active run(s) of a session are the
// only mutators of its components.
type Session struct {
	ID        string
	Log       *core.EventLog
	Workspace *workspace.Workspace
	Goals     *goal.Tracker
	CreatedAt time.Time

	builder *prompt.Builder
}

// Builder returns the session's context builder.
func (s *Session) Builder() *prompt.Builder { return s.builder }

// Record is the persisted shape of a session: the full event sequence, the
// workspace manifest and the task list, keyed by session id.
type Record struct {
	SessionID string            `json:"session_id"`
	Events    []core.Event      `json:"events"`
	Manifest  []workspace.Entry `json:"manifest"`
	Tasks     []core.Task       `json:"tasks"`
	CreatedAt time.Time         `json:"created_at"`
}

// record captures the session's current durable state.
func (s *Session) record() Record {
	return Record{
		SessionID: s.ID,
		Events:    s.Log.Events(),
		Manifest:  s.Workspace.Entries(),
		Tasks:     s.Goals.Tasks(),
		CreatedAt: s.CreatedAt,
	}
}
