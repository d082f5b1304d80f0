// Package agent contains the three agent roles and the run loop that
// coordinates them.
//
// Planner decomposes a goal into an ordered plan, Executor dispatches plan
// steps to registered tools, Verifier reviews accumulated results before a
// run is accepted. Each role is a pure function from its inputs to a typed
// outcome; all durable state flows through the session's event log, workspace
// and goal tracker.
//
// Orchestrator drives the single-action-per-cycle loop: plan once, then one
// tool call per cycle with the action recorded before execution and the
// observation after, finishing with a single verification pass and exactly
// one terminal event.
package agent
