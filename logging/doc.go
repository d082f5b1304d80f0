// Package logging provides a minimal logging interface and adapters for
// sessionmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the orchestration core uses for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - RunLogger with session/run scoped attributes
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LevelInfo, "json")
//	svc := session.NewService(func(o *session.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
