package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/model"
)

func TestVerifier_ValidateAccepts(t *testing.T) {
	generator := model.NewMock(`{"accepted": true, "issues": []}`)
	verifier := NewVerifier(generator)

	outcome := verifier.Validate(context.Background(), "goal", []core.AgentResult{
		{TaskID: "t1", Success: true, Output: "fine"},
	})
	assert.True(t, outcome.Accepted)
	assert.Empty(t, outcome.Issues)
}

func TestVerifier_ValidateRejectsWithIssues(t *testing.T) {
	generator := model.NewMock(`{"accepted": false, "issues": ["missing site C"]}`)
	verifier := NewVerifier(generator)

	outcome := verifier.Validate(context.Background(), "goal", nil)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, []string{"missing site C"}, outcome.Issues)
}

func TestVerifier_DegradesOpenOnCallFailure(t *testing.T) {
	generator := model.NewMock("unused").FailWith(0, errors.New("api down"))
	verifier := NewVerifier(generator)

	outcome := verifier.Validate(context.Background(), "goal", nil)
	assert.True(t, outcome.Accepted)
	require.Len(t, outcome.Issues, 1)
	assert.Contains(t, outcome.Issues[0], "api down")
}

func TestVerifier_DegradesOpenOnUnparseableVerdict(t *testing.T) {
	generator := model.NewMock("looks good to me!")
	verifier := NewVerifier(generator)

	outcome := verifier.Validate(context.Background(), "goal", nil)
	assert.True(t, outcome.Accepted)
	assert.NotEmpty(t, outcome.Issues)
}

func TestVerifier_PromptIncludesResults(t *testing.T) {
	generator := model.NewMock(`{"accepted": true, "issues": []}`)
	verifier := NewVerifier(generator)

	verifier.Validate(context.Background(), "evaluate sites", []core.AgentResult{
		{TaskID: "t1", Success: true, Output: "site A ok"},
		{TaskID: "t2", Success: false, Error: "timeout on site B"},
	})

	calls := generator.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0][len(calls[0])-1].Content
	assert.Contains(t, prompt, "evaluate sites")
	assert.Contains(t, prompt, "site A ok")
	assert.Contains(t, prompt, "timeout on site B")
}
