package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/tools"
	"MathAgent/internal/tools/slides"
)

func TestCatalogRegistersEveryGroup(t *testing.T) {
	catalog, err := Catalog(Options{Studio: slides.NewStudio(t.TempDir())})
	require.NoError(t, err)

	for _, name := range []string{
		"add", "number_list_to_sum", "solve_quadratic", "circle_area",
		"mean", "logical_and", "fallback_reasoning", "send_gmail",
	} {
		assert.True(t, catalog.Has(name), name)
	}
	for _, name := range NonComputational {
		assert.True(t, catalog.Has(name), name)
	}
	assert.False(t, catalog.Has("calculate_salary_for_id"))
}

func TestFallbackReasoning(t *testing.T) {
	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Fallback()))
	res := tools.NewDispatcher(catalog).Dispatch(context.Background(), "fallback_reasoning",
		map[string]any{"description": "no tool for integrals"})
	require.True(t, res.Success)
	assert.Equal(t, "Fallback invoked: no tool for integrals", res.Value)
}
