package research

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/agent"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/session"
)

// roleGenerator routes by the system prompt so parallel sub-runs never
// contend on a shared response script.
func roleGenerator(failTopic string) core.Generator {
	return core.GeneratorFunc(func(_ context.Context, messages []core.Message) (string, error) {
		system := messages[0].Content
		switch {
		case strings.Contains(system, "planning"):
			return `{"summary": "research", "steps": [{"description": "gather", "tool": "search"}]}`, nil
		case strings.Contains(system, "verification"):
			user := messages[len(messages)-1].Content
			if failTopic != "" && strings.Contains(user, failTopic) {
				return `{"accepted": false, "issues": ["bad sources"]}`, nil
			}
			return `{"accepted": true, "issues": []}`, nil
		default:
			return "synthesized overview", nil
		}
	})
}

func newCoordinator(t *testing.T, generator core.Generator, tools *core.Registry, withSynthesis bool) *Coordinator {
	t.Helper()
	service := session.NewService()
	orch := agent.NewOrchestrator(
		agent.NewPlanner(generator),
		agent.NewExecutor(tools),
		agent.NewVerifier(generator),
		func(o *agent.Options) { o.MaxReplans = 0 },
	)
	return NewCoordinator(service, orch, func(o *Options) {
		if withSynthesis {
			o.Generator = generator
		}
	})
}

func searchTool(onExecute func()) *core.Registry {
	return core.NewRegistry(core.NewFuncTool("search", []string{"search"}, func(_ context.Context, task core.AgentTask) (any, error) {
		if onExecute != nil {
			onExecute()
		}
		return "findings for " + task.Context, nil
	}))
}

func TestCoordinator_ResultsFollowInputOrder(t *testing.T) {
	coord := newCoordinator(t, roleGenerator(""), searchTool(nil), true)

	topics := []string{"alpha", "beta", "gamma"}
	report, err := coord.Run(context.Background(), topics, 2)
	require.NoError(t, err)

	require.Len(t, report.Topics, 3)
	for i, topic := range topics {
		assert.Equal(t, topic, report.Topics[i].Topic)
		assert.Equal(t, TopicCompleted, report.Topics[i].Status)
	}
	assert.Equal(t, 3, report.Completed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, "synthesized overview", report.Synthesis)
}

func TestCoordinator_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int64
	tools := core.NewRegistry(core.NewFuncTool("search", []string{"search"}, func(_ context.Context, _ core.AgentTask) (any, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		defer atomic.AddInt64(&inFlight, -1)
		return "ok", nil
	}))
	coord := newCoordinator(t, roleGenerator(""), tools, false)

	_, err := coord.Run(context.Background(), []string{"a", "b", "c", "d", "e", "f"}, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestCoordinator_SiblingFailureIsIsolated(t *testing.T) {
	coord := newCoordinator(t, roleGenerator("beta"), searchTool(nil), false)

	report, err := coord.Run(context.Background(), []string{"alpha", "beta", "gamma"}, 3)
	require.NoError(t, err)

	assert.Equal(t, TopicCompleted, report.Topics[0].Status)
	assert.Equal(t, TopicFailed, report.Topics[1].Status)
	assert.Equal(t, TopicCompleted, report.Topics[2].Status)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)

	// Synthesis only reflects the successes.
	assert.Contains(t, report.Synthesis, "alpha")
	assert.Contains(t, report.Synthesis, "gamma")
	assert.NotContains(t, report.Synthesis, "## beta")
}

func TestCoordinator_AllFailed(t *testing.T) {
	coord := newCoordinator(t, roleGenerator("topic"), searchTool(nil), false)

	report, err := coord.Run(context.Background(), []string{"topic one", "topic two"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, "No topics completed successfully.", report.Synthesis)
}

func TestCoordinator_InvalidInput(t *testing.T) {
	coord := newCoordinator(t, roleGenerator(""), searchTool(nil), false)

	_, err := coord.Run(context.Background(), nil, 2)
	assert.Error(t, err)
	_, err = coord.Run(context.Background(), []string{"a"}, 0)
	assert.Error(t, err)
}

func TestCoordinator_SubRunSessionsAreIsolated(t *testing.T) {
	service := session.NewService()
	generator := roleGenerator("")
	orch := agent.NewOrchestrator(agent.NewPlanner(generator), agent.NewExecutor(searchTool(nil)), agent.NewVerifier(generator))
	coord := NewCoordinator(service, orch)

	report, err := coord.Run(context.Background(), []string{"a", "b"}, 2)
	require.NoError(t, err)
	assert.NotEqual(t, report.Topics[0].SessionID, report.Topics[1].SessionID)

	// Sub-run sessions are torn down after the report is assembled.
	for _, r := range report.Topics {
		_, err := service.Get(r.SessionID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	}
}
