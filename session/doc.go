// Package session owns session lifecycle. A Session is the aggregate root
// holding exactly one event log, one workspace and one goal tracker; the
// Service creates, resumes and destroys sessions and is injected into every
// component that needs one; there is no process-wide registry.
//
// Durability goes through the Store interface: one record per session
// holding the full event sequence, workspace manifest and tasks, keyed by
// session id, loaded wholesale on resume and re-saved incrementally as events
// are appended. An in-memory store ships for tests and prototypes and a
// Redis-backed store for deployments that need persistence.
package session
