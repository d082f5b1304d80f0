package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/testutil"
)

func TestExecutor_ExecuteDispatchesByType(t *testing.T) {
	executor := NewExecutor(core.NewRegistry(testutil.EchoTool("lookup", "lookup")))

	result, err := executor.Execute(context.Background(), core.AgentTask{ID: "t1", Type: "lookup", Context: "site A"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "lookup: site A", result.Output)
}

func TestExecutor_UnsupportedTaskType(t *testing.T) {
	executor := NewExecutor(core.NewRegistry())

	_, err := executor.Execute(context.Background(), core.AgentTask{Type: "teleport"})
	var unsupported *core.UnsupportedTaskError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "teleport", unsupported.TaskType)
}

func TestExecutor_ToolFailureIsData(t *testing.T) {
	executor := NewExecutor(core.NewRegistry(testutil.FailingTool("flaky", "backend down", "flaky")))

	result, err := executor.Execute(context.Background(), core.AgentTask{ID: "t1", Type: "flaky"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "backend down")
}

func TestExecutor_NextTaskMapsPlanSteps(t *testing.T) {
	executor := NewExecutor(core.NewRegistry())
	plan := Plan{Steps: []PlanStep{
		{Description: "look up A", Tool: "lookup", Params: map[string]any{"site": "A"}},
		{Description: "compare"},
	}}
	tasks := []core.Task{
		{ID: 5, Description: "look up A", Status: core.TaskCompleted},
		{ID: 6, Description: "compare", Status: core.TaskPending},
	}

	task, tracked, ok := executor.NextTask(plan, tasks, 5)
	require.True(t, ok)
	assert.Equal(t, 6, tracked.ID)
	assert.Equal(t, "analysis", task.Type)
	assert.Equal(t, "compare", task.Context)
}

func TestExecutor_NextTaskSkipsEarlierGenerations(t *testing.T) {
	executor := NewExecutor(core.NewRegistry())
	plan := Plan{Steps: []PlanStep{{Description: "fresh step", Tool: "lookup"}}}
	tasks := []core.Task{
		{ID: 1, Description: "stale", Status: core.TaskPending},
		{ID: 2, Description: "fresh step", Status: core.TaskPending},
	}

	task, tracked, ok := executor.NextTask(plan, tasks, 2)
	require.True(t, ok)
	assert.Equal(t, 2, tracked.ID)
	assert.Equal(t, "lookup", task.Type)
}

func TestExecutor_NextTaskNothingPending(t *testing.T) {
	executor := NewExecutor(core.NewRegistry())
	_, _, ok := executor.NextTask(Plan{}, []core.Task{{ID: 1, Status: core.TaskCompleted}}, 1)
	assert.False(t, ok)
}
