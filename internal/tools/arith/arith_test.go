package arith

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/tools"
)

func dispatcher(t *testing.T) *tools.Dispatcher {
	t.Helper()
	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Tools()...))
	return tools.NewDispatcher(catalog)
}

func TestArithmetic(t *testing.T) {
	d := dispatcher(t)
	cases := []struct {
		tool   string
		params map[string]any
		want   any
	}{
		{"add", map[string]any{"a": 2, "b": 3}, 5.0},
		{"subtract", map[string]any{"a": 2, "b": 3}, -1.0},
		{"power", map[string]any{"a": 2, "b": 10}, 1024.0},
		{"sqrt", map[string]any{"value": 16}, 4.0},
		{"cbrt", map[string]any{"value": 27}, 3.0},
		{"number_list_to_sum", map[string]any{"numbers": []any{2, 3}}, 5.0},
		{"number_list_to_product", map[string]any{"numbers": []any{2, 3, 4}}, 24.0},
		{"calculate_percentage", map[string]any{"percent": 15, "number": 200}, 30.0},
		{"strings_to_chars_to_int", map[string]any{"text": "AB"}, []float64{65, 66}},
		{"fibonacci_numbers", map[string]any{"n": 6}, []float64{0, 1, 1, 2, 3, 5}},
		{"calculate_factorial", map[string]any{"n": 4}, []float64{1, 1, 2, 6}},
		{"calculate_factorial", map[string]any{"n": 0}, []float64{1}},
		{"calculate_permutation", map[string]any{"n": 5, "r": 2}, 20.0},
		{"calculate_combination", map[string]any{"n": 5, "r": 2}, 10.0},
	}
	for _, tc := range cases {
		res := d.Dispatch(context.Background(), tc.tool, tc.params)
		require.True(t, res.Success, "%s: %v", tc.tool, res.Err)
		assert.Equal(t, tc.want, res.Value, tc.tool)
	}
}

func TestArithmeticFailures(t *testing.T) {
	d := dispatcher(t)
	for tool, params := range map[string]map[string]any{
		"calculate_division":    {"a": 1, "b": 0},
		"calculate_combination": {"n": 2, "r": 3},
		"calculate_percentage":  {"percent": -1, "number": 10},
		"sqrt":                  {"value": -4},
	} {
		res := d.Dispatch(context.Background(), tool, params)
		assert.False(t, res.Success, tool)
		assert.Equal(t, xerrors.CodeToolExecutionFailure, xerrors.CodeOf(res.Err), tool)
	}
}

func TestExponential(t *testing.T) {
	res := dispatcher(t).Dispatch(context.Background(), "int_list_to_exponential_values", map[string]any{"numbers": []any{0, 1}})
	require.True(t, res.Success)
	values := res.Value.([]float64)
	assert.Equal(t, 1.0, values[0])
	assert.InDelta(t, 2.71828, values[1], 1e-4)
}
