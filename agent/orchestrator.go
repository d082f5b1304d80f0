package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/prompt"
	"github.com/hupe1980/sessionmesh/session"
)

// State describes where a run currently is in its lifecycle.
type State string

const (
	StatePlanning  State = "planning"
	StateExecuting State = "executing"
	StateVerifying State = "verifying"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// RunResult is the terminal outcome of one orchestrated run.
type RunResult struct {
	State   State
	Summary string
	Results []core.AgentResult
}

// Options configure an Orchestrator.
type Options struct {
	// MaxCycles bounds loop iterations per run.
	MaxCycles int
	// MaxReplans bounds how often a rejected run may be replanned.
	MaxReplans int
	// MaxGenerateCalls bounds generation calls per run. Zero means unlimited.
	MaxGenerateCalls int
	// MaxContextEvents is passed to the context builder each cycle.
	MaxContextEvents int
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Orchestrator drives the single-action-per-cycle run loop. Within one run
// execution is strictly sequential: one tool call at a time, the intended
// action recorded before execution and its observation after, so a crashed
// or failed call still leaves the attempt visible in the log.
type Orchestrator struct {
	planner  *Planner
	executor *Executor
	verifier *Verifier

	maxCycles        int
	maxReplans       int
	maxGenerateCalls int
	maxContextEvents int
	logger           *logging.RunLogger
}

// NewOrchestrator wires the three roles into a run loop.
func NewOrchestrator(planner *Planner, executor *Executor, verifier *Verifier, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxCycles:        50,
		MaxReplans:       1,
		MaxContextEvents: prompt.DefaultMaxEvents,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		planner:          planner,
		executor:         executor,
		verifier:         verifier,
		maxCycles:        opts.MaxCycles,
		maxReplans:       opts.MaxReplans,
		maxGenerateCalls: opts.MaxGenerateCalls,
		maxContextEvents: opts.MaxContextEvents,
		logger:           logging.NewRunLogger(opts.Logger).WithComponent("orchestrator"),
	}
}

// Run executes one goal to a terminal state. Cancellation is cooperative:
// the context is checked once per cycle, between context build and action
// selection, never mid-tool-execution. On cancellation a terminal error
// event is appended and core.ErrCancelled returned.
//
// The returned error is non-nil only for terminal infrastructure failures
// (cancellation, call budget, planning failure); tool-level failures are
// data, recorded as observations inside the log.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, goalText string) (RunResult, error) {
	limiter := core.NewCallLimiter(o.maxGenerateCalls)
	log := o.logger.WithRun(sess.ID, "")

	plan, firstID, err := o.plan(ctx, sess, goalText, nil, limiter, log)
	if err != nil {
		return o.fail(sess, err)
	}

	var (
		results []core.AgentResult
		replans int
	)
	for cycle := 0; ; cycle++ {
		if cycle >= o.maxCycles {
			return o.fail(sess, fmt.Errorf("exceeded max cycles: %d", o.maxCycles))
		}

		contextText, metrics := sess.Builder().BuildContext(o.maxContextEvents)
		log.Debug("cycle context built",
			"cycle", cycle,
			"context_chars", len(contextText),
			"estimated_tokens", metrics.EstimatedTokens,
		)

		if ctx.Err() != nil {
			sess.Log.Append(core.NewErrorEvent("cancelled", "run"))
			return RunResult{State: StateCancelled, Results: results}, core.ErrCancelled
		}

		task, tracked, ok := o.executor.NextTask(plan, sess.Goals.Tasks(), firstID)
		if !ok {
			outcome := o.verify(ctx, goalText, results, limiter, log)
			if outcome.Accepted {
				sess.Log.Append(core.NewCompleteEvent(plan.Summary))
				return RunResult{State: StateComplete, Summary: plan.Summary, Results: results}, nil
			}
			if replans >= o.maxReplans {
				rejected := &core.VerificationRejectedError{Issues: outcome.Issues}
				res, _ := o.fail(sess, rejected)
				res.Results = results
				return res, rejected
			}
			replans++
			log.Info("run rejected, replanning", "issues", len(outcome.Issues))
			plan, firstID, err = o.plan(ctx, sess, goalText, outcome.Issues, limiter, log)
			if err != nil {
				return o.fail(sess, err)
			}
			continue
		}

		if err := sess.Goals.StartTask(tracked.ID); err != nil {
			return o.fail(sess, err)
		}

		actionEv := sess.Log.Append(core.NewActionEvent(task.Context, task.Type, task.Input))

		result, err := o.executor.Execute(ctx, task)
		if err != nil {
			// No tool registered for this step. Recorded like any other
			// failed observation so the verifier can trigger a replan.
			result = core.AgentResult{TaskID: task.ID, Success: false, Error: err.Error()}
		}
		if result.Success {
			sess.Log.Append(core.NewObservationEvent(actionEv.ID, result.Output))
			if err := sess.Goals.CompleteTask(tracked.ID, ""); err != nil {
				return o.fail(sess, err)
			}
		} else {
			sess.Log.Append(core.NewObservationErrorEvent(actionEv.ID, result.Error))
			if err := sess.Goals.FailTask(tracked.ID, result.Error); err != nil {
				return o.fail(sess, err)
			}
		}
		results = append(results, result)
	}
}

// plan runs one planning call, records the plan event and seeds the tracker.
// It returns the id of the first tracker task of this plan generation.
func (o *Orchestrator) plan(ctx context.Context, sess *session.Session, goalText string, issues []string, limiter *core.CallLimiter, log *logging.RunLogger) (Plan, int, error) {
	if err := limiter.Increment(); err != nil {
		return Plan{}, 0, err
	}
	plan, err := o.planner.CreatePlan(ctx, goalText, issues)
	if err != nil {
		return Plan{}, 0, err
	}
	sess.Log.Append(core.NewPlanEvent(plan.Summary, plan.Descriptions()))
	tasks := sess.Goals.AddTasks(plan.Descriptions())
	firstID := 0
	if len(tasks) > 0 {
		firstID = tasks[0].ID
	}
	log.Info("plan created", "steps", len(plan.Steps), "replan", len(issues) > 0)
	return plan, firstID, nil
}

// verify runs the single verification pass. Call budget exhaustion accepts
// the run with an issue noted, mirroring the verifier's degrade-open policy.
func (o *Orchestrator) verify(ctx context.Context, goalText string, results []core.AgentResult, limiter *core.CallLimiter, log *logging.RunLogger) Outcome {
	if err := limiter.Increment(); err != nil {
		log.Warn("generation budget exhausted before verification")
		return Outcome{Accepted: true, Issues: []string{err.Error()}}
	}
	return o.verifier.Validate(ctx, goalText, results)
}

// fail appends the terminal error event and returns the failed result.
func (o *Orchestrator) fail(sess *session.Session, err error) (RunResult, error) {
	sess.Log.Append(core.NewErrorEvent(err.Error(), "run"))
	return RunResult{State: StateFailed}, err
}
