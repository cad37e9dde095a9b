package logic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/tools"
)

func TestLogicTools(t *testing.T) {
	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Tools()...))
	d := tools.NewDispatcher(catalog)

	cases := []struct {
		tool   string
		params map[string]any
		want   bool
	}{
		{"logical_and", map[string]any{"values": []any{true, true}}, true},
		{"logical_and", map[string]any{"values": []any{true, false}}, false},
		{"logical_or", map[string]any{"values": []any{false, true}}, true},
		{"logical_not", map[string]any{"value": true}, false},
		{"logical_xor", map[string]any{"a": true, "b": true}, false},
		{"implies", map[string]any{"p": true, "q": false}, false},
		{"implies", map[string]any{"p": false, "q": false}, true},
	}
	for _, tc := range cases {
		res := d.Dispatch(context.Background(), tc.tool, tc.params)
		require.True(t, res.Success, tc.tool)
		assert.Equal(t, tc.want, res.Value, tc.tool)
	}

	res := d.Dispatch(context.Background(), "logical_or", map[string]any{"values": []any{}})
	assert.False(t, res.Success)
}
