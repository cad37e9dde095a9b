package substitution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/plan"
	"MathAgent/internal/tools"
)

var (
	addSpec = tools.Spec{
		Name:   "add",
		Params: []tools.Param{tools.Num("a", ""), tools.Num("b", "")},
		Result: tools.NumericResult,
	}
	sumSpec = tools.Spec{
		Name:   "number_list_to_sum",
		Params: []tools.Param{tools.Nums("numbers", "")},
		Result: tools.NumericResult,
	}
	mailSpec = tools.Spec{
		Name:   "send_gmail",
		Params: []tools.Param{tools.Text("content", "")},
		Result: tools.TextResult,
	}
	notSpec = tools.Spec{
		Name:   "logical_not",
		Params: []tools.Param{tools.Bool("value", "")},
		Result: tools.BooleanResult,
	}
)

func TestNumericRoleKeepsTypedValue(t *testing.T) {
	e := New()
	results := Results{1: {Success: true, Value: 5.0}}

	out, err := e.Apply(addSpec, map[string]any{"a": plan.Ref(1), "b": 2.0}, results, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 5.0, "b": 2.0}, out)

	out, err = e.Apply(sumSpec, map[string]any{"numbers": []any{plan.Ref(1), 1.0}}, results, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{5.0, 1.0}, out["numbers"])
}

func TestBooleanRoleKeepsTypedValue(t *testing.T) {
	out, err := New().Apply(notSpec, map[string]any{"value": plan.Ref(1)}, Results{1: {Success: true, Value: true}}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["value"])
}

func TestTextRoleSynthesizesMessage(t *testing.T) {
	ctx := map[string]any{"original_request": "Add 2 and 3 and email me the result"}
	out, err := New().Apply(mailSpec, map[string]any{"content": plan.Ref(1)}, Results{1: {Success: true, Value: 5.0}}, ctx)
	require.NoError(t, err)

	content := out["content"].(string)
	assert.Equal(t, "Math Agent Result\n\nQuery: Add 2 and 3 and email me the result\nResult: 5\n\nSent by Math Agent", content)
	assert.Contains(t, content, "Result: 5")
}

func TestMissingRequestRendersEmpty(t *testing.T) {
	out, err := New(WithTitle("T"), WithFooter("F")).Apply(mailSpec, map[string]any{"content": plan.Ref(1)}, Results{1: {Success: true, Value: 5.0}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "T\n\nQuery: \nResult: 5\n\nF", out["content"])
}

func TestUnmetDependency(t *testing.T) {
	e := New()
	_, err := e.Apply(addSpec, map[string]any{"a": plan.Ref(2), "b": 1.0}, Results{1: {Success: true, Value: 1.0}}, nil)
	assert.Equal(t, xerrors.CodeDependencyUnmet, xerrors.CodeOf(err))

	_, err = e.Apply(addSpec, map[string]any{"a": plan.Ref(1), "b": 1.0}, Results{1: {Success: false}}, nil)
	assert.Equal(t, xerrors.CodeDependencyUnmet, xerrors.CodeOf(err))

	_, err = e.Apply(sumSpec, map[string]any{"numbers": []any{1.0, plan.Ref(3)}}, Results{}, nil)
	assert.Equal(t, xerrors.CodeDependencyUnmet, xerrors.CodeOf(err))
}

func TestApplyIsPureAndIdempotent(t *testing.T) {
	e := New()
	results := Results{1: {Success: true, Value: 5.0}}
	ctx := map[string]any{"original_request": "q"}
	params := map[string]any{"content": plan.Ref(1)}

	once, err := e.Apply(mailSpec, params, results, ctx)
	require.NoError(t, err)
	twice, err := e.Apply(mailSpec, once, results, ctx)
	require.NoError(t, err)
	again, err := e.Apply(mailSpec, params, results, ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, once, again)
	assert.Equal(t, plan.Ref(1), params["content"])
}
