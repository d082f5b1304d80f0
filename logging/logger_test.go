package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	entries []captureEntry
}

func (c *captureLogger) record(level, msg string, args []any) {
	c.entries = append(c.entries, captureEntry{level: level, msg: msg, args: args})
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record("debug", msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record("info", msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record("warn", msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.record("error", msg, args) }

func TestRunLogger_ScopedAttributes(t *testing.T) {
	inner := &captureLogger{}
	log := NewRunLogger(inner).WithComponent("queue").WithRun("sess-1", "run-1")

	log.Info("run finished", "status", "done")

	require.Len(t, inner.entries, 1)
	entry := inner.entries[0]
	assert.Equal(t, "info", entry.level)
	assert.Equal(t, "run finished", entry.msg)
	assert.Equal(t, []any{
		"component", "queue",
		"session_id", "sess-1",
		"run_id", "run-1",
		"status", "done",
	}, entry.args)
}

func TestRunLogger_EmptyFieldsAreOmitted(t *testing.T) {
	inner := &captureLogger{}
	log := NewRunLogger(inner).WithRun("sess-1", "")

	log.Debug("cycle context built", "cycle", 3)

	require.Len(t, inner.entries, 1)
	assert.Equal(t, []any{"session_id", "sess-1", "cycle", 3}, inner.entries[0].args)
}

func TestRunLogger_WithDoesNotMutateParent(t *testing.T) {
	inner := &captureLogger{}
	base := NewRunLogger(inner).WithComponent("orchestrator")
	scoped := base.WithRun("sess-1", "run-1")

	base.Warn("budget exhausted")
	scoped.Warn("budget exhausted")

	require.Len(t, inner.entries, 2)
	assert.Equal(t, []any{"component", "orchestrator"}, inner.entries[0].args)
	assert.Equal(t, []any{"component", "orchestrator", "session_id", "sess-1", "run_id", "run-1"}, inner.entries[1].args)
}

func TestRunLogger_LogToolCall(t *testing.T) {
	inner := &captureLogger{}
	log := NewRunLogger(inner).WithComponent("executor")

	log.LogToolCall("search", 5*time.Millisecond, true, nil)
	log.LogToolCall("search", 7*time.Millisecond, false, errors.New("backend down"))

	require.Len(t, inner.entries, 2)
	ok := inner.entries[0]
	assert.Equal(t, "info", ok.level)
	assert.Equal(t, "tool execution completed", ok.msg)
	assert.Contains(t, ok.args, "tool")
	assert.Contains(t, ok.args, "search")

	failed := inner.entries[1]
	assert.Equal(t, "error", failed.level)
	assert.Equal(t, "tool execution failed", failed.msg)
	assert.Contains(t, failed.args, "error")
	assert.Contains(t, failed.args, "backend down")
}

func TestRunLogger_LogGenerateCall(t *testing.T) {
	inner := &captureLogger{}
	log := NewRunLogger(inner).WithComponent("planner")

	log.LogGenerateCall(10*time.Millisecond, true, nil)
	log.LogGenerateCall(time.Millisecond, false, errors.New("rate limited"))

	require.Len(t, inner.entries, 2)
	assert.Equal(t, "generate call completed", inner.entries[0].msg)
	assert.Equal(t, "error", inner.entries[1].level)
	assert.Contains(t, inner.entries[1].args, "rate limited")
}

func TestRunLogger_NilInnerDefaultsToNoOp(t *testing.T) {
	log := NewRunLogger(nil).WithRun("sess-1", "run-1")
	assert.NotPanics(t, func() {
		log.Info("hello")
		log.LogToolCall("search", time.Millisecond, true, nil)
	})
}

func TestNewSlogLogger_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newSlogLogger(LevelWarn, "text", &buf)

	log.Info("hidden")
	log.Warn("visible", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "key=value")

	buf.Reset()
	jsonLog := newSlogLogger(LevelDebug, "json", &buf)
	jsonLog.Debug("structured", "key", "value")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
