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

const verifierSystemPrompt = `You are a verification assistant. Review the
results of an executed plan against the original goal.

Respond with a JSON object:
{
  "accepted": true or false,
  "issues": ["list of concrete problems, empty when accepted"]
}

Accept when the goal has been substantially achieved, noting minor issues.
Reject only for concrete, fixable problems. Respond with JSON only.`

// Outcome is the Verifier's verdict over a run's accumulated results.
type Outcome struct {
	Accepted bool     `json:"accepted"`
	Issues   []string `json:"issues"`
}

// VerifierOptions configure a Verifier.
type VerifierOptions struct {
	Logger logging.Logger
}

// Verifier reviews accumulated results before a run is marked complete.
type Verifier struct {
	generator core.Generator
	logger    *logging.RunLogger
}

// NewVerifier constructs a Verifier on top of a generator.
func NewVerifier(generator core.Generator, optFns ...func(o *VerifierOptions)) *Verifier {
	opts := VerifierOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Verifier{generator: generator, logger: logging.NewRunLogger(opts.Logger).WithComponent("verifier")}
}

// Validate asks the generator to review the results. Verification degrades
// open: a failed call or unparseable verdict accepts the run with the
// problem recorded as an issue, so a flaky reviewer never blocks completion.
func (v *Verifier) Validate(ctx context.Context, goal string, results []core.AgentResult) Outcome {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Original Goal\n%s\n\n## Results\n", goal)
	for i, r := range results {
		if r.Success {
			fmt.Fprintf(&sb, "%d. ok: %v\n", i+1, r.Output)
		} else {
			fmt.Fprintf(&sb, "%d. failed: %s\n", i+1, r.Error)
		}
	}

	messages := []core.Message{
		{Role: core.RoleSystem, Content: verifierSystemPrompt},
		{Role: core.RoleUser, Content: sb.String()},
	}
	start := time.Now()
	raw, err := v.generator.Generate(ctx, messages)
	v.logger.LogGenerateCall(time.Since(start), err == nil, err)
	if err != nil {
		v.logger.Warn("verification call failed, accepting run", "error", err.Error())
		return Outcome{Accepted: true, Issues: []string{fmt.Sprintf("verification failed: %v", err)}}
	}

	outcome, ok := parseOutcome(raw)
	if !ok {
		v.logger.Warn("verification verdict not parseable, accepting run")
		return Outcome{Accepted: true, Issues: []string{"verification verdict unparseable, manual review recommended"}}
	}
	return outcome
}

func parseOutcome(raw string) (Outcome, bool) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	var out Outcome
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Outcome{}, false
	}
	return out, true
}
