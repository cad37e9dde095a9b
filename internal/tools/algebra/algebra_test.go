package algebra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/tools"
)

func TestAlgebraTools(t *testing.T) {
	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Tools()...))
	d := tools.NewDispatcher(catalog)

	res := d.Dispatch(context.Background(), "solve_linear", map[string]any{"a": 2, "b": -8})
	require.True(t, res.Success)
	assert.Equal(t, 4.0, res.Value)

	res = d.Dispatch(context.Background(), "solve_quadratic", map[string]any{"a": 1, "b": -3, "c": 2})
	require.True(t, res.Success)
	assert.Equal(t, []float64{1, 2}, res.Value)

	res = d.Dispatch(context.Background(), "solve_quadratic", map[string]any{"a": 1, "b": 0, "c": 1})
	require.True(t, res.Success)
	assert.Empty(t, res.Value)

	res = d.Dispatch(context.Background(), "evaluate_polynomial", map[string]any{"coefficients": []any{1, 0, -1}, "x": 3})
	require.True(t, res.Success)
	assert.Equal(t, 8.0, res.Value)

	res = d.Dispatch(context.Background(), "solve_linear", map[string]any{"a": 0, "b": 1})
	assert.False(t, res.Success)
}
