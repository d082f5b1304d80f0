package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/testutil"
	"github.com/hupe1980/sessionmesh/model"
)

const threeSitePlan = `{
	"summary": "Evaluate 3 candidate sites",
	"steps": [
		{"description": "Look up site A", "tool": "lookup", "params": {"site": "A"}},
		{"description": "Look up site B", "tool": "lookup", "params": {"site": "B"}},
		{"description": "Look up site C", "tool": "lookup", "params": {"site": "C"}}
	]
}`

const acceptVerdict = `{"accepted": true, "issues": []}`

func TestOrchestrator_CompletesThreeTaskRun(t *testing.T) {
	sess := testutil.NewSession(t, "run-1")
	generator := model.NewMock(threeSitePlan, acceptVerdict)
	registry := core.NewRegistry(testutil.EchoTool("lookup", "lookup"))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator))
	res, err := orch.Run(context.Background(), sess, "evaluate 3 candidate sites")
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, "Evaluate 3 candidate sites", res.Summary)
	require.Len(t, res.Results, 3)

	progress := sess.Goals.Progress()
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 3, progress.Completed)
	assert.Equal(t, float64(100), progress.PercentComplete)

	// Exactly one complete event, and it is the last entry.
	events := sess.Log.Events()
	var completes int
	for _, ev := range events {
		if ev.Kind == core.KindComplete {
			completes++
		}
	}
	assert.Equal(t, 1, completes)
	last, ok := sess.Log.Last()
	require.True(t, ok)
	assert.Equal(t, core.KindComplete, last.Kind)
}

func TestOrchestrator_ActionRecordedBeforeObservation(t *testing.T) {
	sess := testutil.NewSession(t, "run-2")
	generator := model.NewMock(
		`{"summary": "s", "steps": [{"description": "one step", "tool": "lookup"}]}`,
		acceptVerdict,
	)
	registry := core.NewRegistry(testutil.EchoTool("lookup", "lookup"))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator))
	_, err := orch.Run(context.Background(), sess, "goal")
	require.NoError(t, err)

	var actionSeq, obsSeq int64
	var actionID string
	for _, ev := range sess.Log.Events() {
		switch ev.Kind {
		case core.KindAction:
			actionSeq = ev.Seq
			actionID = ev.ID
		case core.KindObservation:
			obsSeq = ev.Seq
			assert.Equal(t, actionID, ev.PayloadString("action_event_id"))
		}
	}
	require.NotZero(t, actionSeq)
	require.NotZero(t, obsSeq)
	assert.Less(t, actionSeq, obsSeq)
}

func TestOrchestrator_ToolFailureRecordedNotSilentlyDone(t *testing.T) {
	sess := testutil.NewSession(t, "run-3")
	generator := model.NewMock(
		`{"summary": "s", "steps": [{"description": "broken step", "tool": "lookup"}]}`,
		`{"accepted": false, "issues": ["lookup never succeeded"]}`,
		`{"summary": "retry", "steps": [{"description": "retry step", "tool": "lookup"}]}`,
		`{"accepted": false, "issues": ["still failing"]}`,
	)
	registry := core.NewRegistry(testutil.FailingTool("lookup", "connection refused", "lookup"))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator))
	res, err := orch.Run(context.Background(), sess, "goal")

	var rejected *core.VerificationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, StateFailed, res.State)

	// The failed observation and the terminal error are both in the log.
	var failedObs, terminalErrs int
	for _, ev := range sess.Log.Events() {
		if ev.Kind == core.KindObservation && ev.PayloadString("error") != "" {
			failedObs++
		}
		if ev.IsTerminal() {
			terminalErrs++
		}
	}
	assert.Equal(t, 2, failedObs)
	assert.Equal(t, 1, terminalErrs)
	assert.Zero(t, sess.Goals.Progress().Completed)
}

func TestOrchestrator_ReplanAfterRejection(t *testing.T) {
	sess := testutil.NewSession(t, "run-4")
	generator := model.NewMock(
		`{"summary": "first", "steps": [{"description": "halfway", "tool": "lookup"}]}`,
		`{"accepted": false, "issues": ["incomplete coverage"]}`,
		`{"summary": "second", "steps": [{"description": "finish up", "tool": "lookup"}]}`,
		acceptVerdict,
	)
	registry := core.NewRegistry(testutil.EchoTool("lookup", "lookup"))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator))
	res, err := orch.Run(context.Background(), sess, "goal")
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, "second", res.Summary)
	assert.Equal(t, 4, generator.CallCount())

	// Replan prompt carried the rejection issues.
	replanPrompt := generator.Calls()[2]
	assert.Contains(t, replanPrompt[len(replanPrompt)-1].Content, "incomplete coverage")
}

func TestOrchestrator_UnsupportedStepBecomesFailedObservation(t *testing.T) {
	sess := testutil.NewSession(t, "run-5")
	generator := model.NewMock(
		`{"summary": "s", "steps": [{"description": "impossible", "tool": "teleport"}]}`,
		acceptVerdict,
	)

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(core.NewRegistry()), NewVerifier(generator))
	res, err := orch.Run(context.Background(), sess, "goal")
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)

	require.Len(t, res.Results, 1)
	assert.False(t, res.Results[0].Success)
	assert.Contains(t, res.Results[0].Error, "teleport")
	assert.Equal(t, 1, sess.Goals.Progress().Failed)
}

func TestOrchestrator_Cancellation(t *testing.T) {
	sess := testutil.NewSession(t, "run-6")
	generator := model.NewMock(threeSitePlan, acceptVerdict)

	cancelled := false
	ctx, cancel := context.WithCancel(context.Background())
	registry := core.NewRegistry(core.NewFuncTool("lookup", []string{"lookup"}, func(_ context.Context, task core.AgentTask) (any, error) {
		if !cancelled {
			cancelled = true
			cancel()
		}
		return "ok", nil
	}))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator))
	res, err := orch.Run(ctx, sess, "goal")
	require.ErrorIs(t, err, core.ErrCancelled)
	assert.Equal(t, StateCancelled, res.State)

	// The terminal event is the cancellation error, and no action events
	// follow it.
	last, ok := sess.Log.Last()
	require.True(t, ok)
	assert.Equal(t, core.KindError, last.Kind)
	assert.Equal(t, "cancelled", last.PayloadString("error"))
	assert.Equal(t, "run", last.PayloadString("context"))

	// Exactly one action ran; cancellation was observed before the second.
	var actions int
	for _, ev := range sess.Log.Events() {
		if ev.Kind == core.KindAction {
			actions++
		}
	}
	assert.Equal(t, 1, actions)
}

func TestOrchestrator_GenerateBudgetBoundsReplanning(t *testing.T) {
	sess := testutil.NewSession(t, "run-7")
	generator := model.NewMock(
		`{"summary": "s", "steps": [{"description": "one step", "tool": "lookup"}]}`,
		`{"accepted": false, "issues": ["not enough"]}`,
	)
	registry := core.NewRegistry(testutil.EchoTool("lookup", "lookup"))

	// Budget covers the plan and the verification; the replan call exceeds
	// it and terminates the run.
	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator),
		func(o *Options) { o.MaxGenerateCalls = 2 })
	res, err := orch.Run(context.Background(), sess, "goal")
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 2, generator.CallCount())
}

func TestOrchestrator_MaxCyclesGuard(t *testing.T) {
	sess := testutil.NewSession(t, "run-8")
	generator := model.NewMock(threeSitePlan, acceptVerdict)
	registry := core.NewRegistry(testutil.EchoTool("lookup", "lookup"))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator),
		func(o *Options) { o.MaxCycles = 1 })
	res, err := orch.Run(context.Background(), sess, "goal")
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)

	last, ok := sess.Log.Last()
	require.True(t, ok)
	assert.True(t, last.IsTerminal())
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (r *recordingLogger) log(msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := map[string]any{"msg": msg}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			entry[key] = args[i+1]
		}
	}
	r.entries = append(r.entries, entry)
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.log(msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.log(msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.log(msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.log(msg, args) }

func (r *recordingLogger) find(msg string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e["msg"] == msg {
			return e, true
		}
	}
	return nil, false
}

func TestOrchestrator_LogEntriesCarryRunScope(t *testing.T) {
	sess := testutil.NewSession(t, "run-9")
	rec := &recordingLogger{}
	generator := model.NewMock(threeSitePlan, acceptVerdict)
	registry := core.NewRegistry(testutil.EchoTool("lookup", "lookup"))

	orch := NewOrchestrator(NewPlanner(generator), NewExecutor(registry), NewVerifier(generator),
		func(o *Options) { o.Logger = rec })
	_, err := orch.Run(context.Background(), sess, "goal")
	require.NoError(t, err)

	planned, ok := rec.find("plan created")
	require.True(t, ok)
	assert.Equal(t, "orchestrator", planned["component"])
	assert.Equal(t, sess.ID, planned["session_id"])

	cycle, ok := rec.find("cycle context built")
	require.True(t, ok)
	assert.Equal(t, sess.ID, cycle["session_id"])
}

func TestExecutor_ToolCallsAreLogged(t *testing.T) {
	rec := &recordingLogger{}
	registry := core.NewRegistry(
		testutil.EchoTool("lookup", "lookup"),
		testutil.FailingTool("broken", "backend down", "broken"),
	)
	executor := NewExecutor(registry, func(o *ExecutorOptions) { o.Logger = rec })

	_, err := executor.Execute(context.Background(), core.AgentTask{ID: "t1", Type: "lookup"})
	require.NoError(t, err)
	_, err = executor.Execute(context.Background(), core.AgentTask{ID: "t2", Type: "broken"})
	require.NoError(t, err)

	ok, found := rec.find("tool execution completed")
	require.True(t, found)
	assert.Equal(t, "executor", ok["component"])
	assert.Equal(t, "lookup", ok["tool"])

	failed, found := rec.find("tool execution failed")
	require.True(t, found)
	assert.Equal(t, "broken", failed["tool"])
	assert.Equal(t, "backend down", failed["error"])
}
