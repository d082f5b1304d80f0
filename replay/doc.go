// Package replay turns a session's event log back into something watchable:
// a paced timeline for step-through playback, and transcript exports in
// markdown, plain text and JSON. Replay is read-only; it never mutates the
// log it renders.
package replay
