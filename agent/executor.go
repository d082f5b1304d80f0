package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
)

// ExecutorOptions configure an Executor.
type ExecutorOptions struct {
	Logger logging.Logger
}

// Executor dispatches agent tasks to registered tools. Tool failures are
// folded into the result so the loop can record them as observations and
// keep going; only a missing tool surfaces as an error.
type Executor struct {
	registry *core.Registry
	logger   *logging.RunLogger
}

// NewExecutor constructs an Executor over a tool registry.
func NewExecutor(registry *core.Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{registry: registry, logger: logging.NewRunLogger(opts.Logger).WithComponent("executor")}
}

// NextTask maps the next pending tracker task onto its plan step and builds
// the ephemeral work unit for it. Tracker ids are assigned in plan-step order
// within one plan generation, so the step is located by offset from the
// generation's first id. Returns false when nothing is pending.
func (e *Executor) NextTask(plan Plan, tasks []core.Task, firstID int) (core.AgentTask, core.Task, bool) {
	for _, t := range tasks {
		if t.Status != core.TaskPending || t.ID < firstID {
			continue
		}
		step := PlanStep{Description: t.Description}
		if i := t.ID - firstID; i >= 0 && i < len(plan.Steps) {
			step = plan.Steps[i]
		}
		taskType := step.Tool
		if taskType == "" {
			taskType = "analysis"
		}
		return core.AgentTask{
			ID:      util.NewID(),
			Type:    taskType,
			Input:   step.Params,
			Context: step.Description,
		}, t, true
	}
	return core.AgentTask{}, core.Task{}, false
}

// Execute resolves the task's tool and runs it. A tool that fails returns
// AgentResult{Success: false} rather than an error; an unregistered task
// type returns UnsupportedTaskError so the caller can replan.
func (e *Executor) Execute(ctx context.Context, task core.AgentTask) (core.AgentResult, error) {
	tool, ok := e.registry.Resolve(task.Type)
	if !ok {
		return core.AgentResult{}, &core.UnsupportedTaskError{TaskType: task.Type}
	}

	start := time.Now()
	result := tool.Execute(ctx, task)
	var execErr error
	if !result.Success && result.Error != "" {
		execErr = errors.New(result.Error)
	}
	e.logger.LogToolCall(tool.Name(), time.Since(start), result.Success, execErr)
	return result, nil
}
