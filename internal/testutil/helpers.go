package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/session"
)

// NewSession creates a fully wired in-memory session for tests.
func NewSession(tb testing.TB, id string) *session.Session {
	tb.Helper()
	svc := session.NewService()
	sess, err := svc.Create(context.Background(), id)
	if err != nil {
		tb.Fatalf("create session: %v", err)
	}
	return sess
}

// EchoTool returns a tool that succeeds and echoes its task context.
func EchoTool(name string, taskTypes ...string) core.Tool {
	return core.NewFuncTool(name, taskTypes, func(_ context.Context, task core.AgentTask) (any, error) {
		return fmt.Sprintf("%s: %s", name, task.Context), nil
	})
}

// FailingTool returns a tool that always fails with message.
func FailingTool(name, message string, taskTypes ...string) core.Tool {
	return core.NewFuncTool(name, taskTypes, func(_ context.Context, _ core.AgentTask) (any, error) {
		return nil, fmt.Errorf("%s", message)
	})
}

// BlockingTool returns a tool that blocks until release is closed or the
// context is cancelled, then succeeds.
func BlockingTool(name string, release <-chan struct{}, taskTypes ...string) core.Tool {
	return core.NewFuncTool(name, taskTypes, func(ctx context.Context, _ core.AgentTask) (any, error) {
		select {
		case <-release:
			return "released", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
