package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

const plannerSystemPrompt = `You are a planning assistant. Break the given
goal down into a short ordered list of atomic, executable steps.

Respond with a JSON object:
{
  "summary": "one-line summary of the goal",
  "steps": [
    {"description": "what this step achieves", "tool": "tool name or empty", "params": {}}
  ]
}

Each step should be achievable with a single tool call. List steps in
execution order. Respond with JSON only.`

// PlanStep is a single step of an execution plan.
type PlanStep struct {
	Description string         `json:"description"`
	Tool        string         `json:"tool,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// Plan is an ordered decomposition of one goal.
type Plan struct {
	Summary string     `json:"summary"`
	Steps   []PlanStep `json:"steps"`
}

// Descriptions returns the step descriptions in order, for seeding a tracker.
func (p Plan) Descriptions() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Description
	}
	return out
}

// PlannerOptions configure a Planner.
type PlannerOptions struct {
	Logger logging.Logger
}

// Planner turns a goal plus optional reviewer feedback into a Plan using a
// generation call.
type Planner struct {
	generator core.Generator
	logger    *logging.RunLogger
}

// NewPlanner constructs a Planner on top of a generator.
func NewPlanner(generator core.Generator, optFns ...func(o *PlannerOptions)) *Planner {
	opts := PlannerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Planner{generator: generator, logger: logging.NewRunLogger(opts.Logger).WithComponent("planner")}
}

// CreatePlan asks the generator to decompose the goal. Issues from a prior
// rejected attempt are passed along so the replan can address them. A
// response that cannot be parsed as JSON degrades to a line-per-step plan;
// an empty response yields a single direct-execution step.
func (p *Planner) CreatePlan(ctx context.Context, goal string, issues []string) (Plan, error) {
	prompt := fmt.Sprintf("Create an execution plan for:\n\n%s", goal)
	if len(issues) > 0 {
		prompt += "\n\nA previous attempt was rejected for these reasons:\n- " + strings.Join(issues, "\n- ")
	}

	messages := []core.Message{
		{Role: core.RoleSystem, Content: plannerSystemPrompt},
		{Role: core.RoleUser, Content: prompt},
	}
	start := time.Now()
	raw, err := p.generator.Generate(ctx, messages)
	p.logger.LogGenerateCall(time.Since(start), err == nil, err)
	if err != nil {
		return Plan{}, fmt.Errorf("create plan: %w", err)
	}

	plan, ok := parsePlan(raw)
	if !ok {
		p.logger.Warn("plan response not parseable as JSON, using line fallback")
		plan = fallbackPlan(goal, raw)
	}
	if len(plan.Steps) == 0 {
		plan.Steps = []PlanStep{{Description: goal}}
	}
	if plan.Summary == "" {
		plan.Summary = goal
	}
	return plan, nil
}

// parsePlan decodes a JSON plan, tolerating a fenced code block around it.
func parsePlan(raw string) (Plan, bool) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	var plan Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return Plan{}, false
	}
	return plan, true
}

// fallbackPlan treats every non-empty response line as one step.
func fallbackPlan(goal, raw string) Plan {
	plan := Plan{Summary: goal}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. \t"))
		if line == "" {
			continue
		}
		plan.Steps = append(plan.Steps, PlanStep{Description: line})
	}
	return plan
}
