package scripted

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/llm"
	"MathAgent/internal/plan"
)

const sample = `
intent:
  intent: calculation
  requires_tools: true
  confidence: 0.9
plans:
  - action_plan:
      - step_number: 1
        action_type: tool_call
        tool_name: number_list_to_sum
        parameters:
          numbers: [1, 2, 3]
      - step_number: 2
        action_type: tool_call
        tool_name: multiply
        parameters:
          a: RESULT_FROM_STEP_1
          b: 2
    should_continue: false
`

func TestParseAndReplay(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	intent, err := c.Perceive(context.Background(), llm.PerceptionRequest{Query: "sum then double"})
	require.NoError(t, err)
	assert.Equal(t, "calculation", intent.Label)
	assert.True(t, intent.RequiresTools)

	p, err := c.Plan(context.Background(), llm.PlanningRequest{Round: 1})
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, plan.KindToolCall, p.Steps[1].Kind)
	assert.Equal(t, plan.Ref(1), p.Steps[1].Params["a"])
	assert.False(t, p.Continue)

	exhausted, err := c.Plan(context.Background(), llm.PlanningRequest{Round: 2})
	require.NoError(t, err)
	assert.Empty(t, exhausted.Steps)
	assert.Len(t, c.Requests(), 2)
}

func TestParseRejectsMissingIntent(t *testing.T) {
	_, err := Parse([]byte("plans: []\n"))
	assert.Error(t, err)
}

func TestPerceiveEmptyQuery(t *testing.T) {
	c := New(Script{Intent: llm.Intent{Label: "x"}})
	_, err := c.Perceive(context.Background(), llm.PerceptionRequest{})
	assert.Equal(t, xerrors.CodeIntentFailure, xerrors.CodeOf(err))
}
