// Package core provides the foundational domain types, interfaces and
// contracts used by sessionmesh. It defines the core abstractions for:
//
//   - Events (immutable, sequence-ordered session records)
//   - EventLog (append-only log with subscriber fan-out and snapshots)
//   - Tasks (goal-tracker items and progress accounting)
//   - AgentTask / AgentResult (ephemeral work units passed to executors)
//   - Tool (typed capability interface) and Registry (dispatch)
//   - Generator (black-box text generation contract)
//   - BlobStore (durable medium behind the workspace)
//   - The error taxonomy shared by all subsystems
//
// The package intentionally keeps implementation concerns (persistence,
// orchestration, prompt assembly) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
