package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Level is a thin enum for user friendly level configuration decoupled from slog.
type Level int

const (
	// LevelDebug is the debug logging level.
	LevelDebug Level = iota
	// LevelInfo is the informational logging level.
	LevelInfo
	// LevelWarn is the warning logging level.
	LevelWarn
	// LevelError is the error logging level.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for sessionmesh. This allows
// users to provide their own logger implementation or use the built-in
// adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewSlogLogger builds a Logger writing to stdout with the given level and
// format ("json" or "text").
func NewSlogLogger(level Level, format string) Logger {
	return newSlogLogger(level, format, os.Stdout)
}

func newSlogLogger(level Level, format string, w io.Writer) Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RunLogger decorates a Logger with session/run scoped attributes so that
// every entry emitted from one orchestration run carries its identifiers.
// It is cheap to copy via the With* methods.
type RunLogger struct {
	inner     Logger
	component string
	sessionID string
	runID     string
}

// NewRunLogger wraps a Logger. A nil inner logger defaults to NoOpLogger.
func NewRunLogger(inner Logger) *RunLogger {
	if inner == nil {
		inner = NoOpLogger{}
	}
	return &RunLogger{inner: inner}
}

// WithComponent sets the logical component (eventlog, workspace, queue, etc.).
func (l *RunLogger) WithComponent(c string) *RunLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithRun attaches session and run identifiers.
func (l *RunLogger) WithRun(sessionID, runID string) *RunLogger {
	nl := *l
	nl.sessionID = sessionID
	nl.runID = runID
	return &nl
}

func (l *RunLogger) attrs(args []any) []any {
	out := make([]any, 0, len(args)+6)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.sessionID != "" {
		out = append(out, "session_id", l.sessionID)
	}
	if l.runID != "" {
		out = append(out, "run_id", l.runID)
	}
	return append(out, args...)
}

// Debug logs at debug level with scoped attributes.
func (l *RunLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, l.attrs(args)...) }

// Info logs at info level with scoped attributes.
func (l *RunLogger) Info(msg string, args ...any) { l.inner.Info(msg, l.attrs(args)...) }

// Warn logs at warn level with scoped attributes.
func (l *RunLogger) Warn(msg string, args ...any) { l.inner.Warn(msg, l.attrs(args)...) }

// Error logs at error level with scoped attributes.
func (l *RunLogger) Error(msg string, args ...any) { l.inner.Error(msg, l.attrs(args)...) }

// LogToolCall records execution details for a tool invocation.
func (l *RunLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	args := []any{"tool", tool, "duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if success {
		l.Info("tool execution completed", args...)
		return
	}
	l.Error("tool execution failed", args...)
}

// LogGenerateCall records generation backend latency and success.
func (l *RunLogger) LogGenerateCall(dur time.Duration, success bool, err error) {
	args := []any{"duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if success {
		l.Info("generate call completed", args...)
		return
	}
	l.Error("generate call failed", args...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is
// disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
