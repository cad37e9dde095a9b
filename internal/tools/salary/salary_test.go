package salary

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/tools"
)

func TestSalaryLookup(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "employee.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Upsert(ctx,
		Employee{ID: 1, Name: "Alice", Salary: 5200},
		Employee{ID: 2, Name: "Bob", Salary: 4100.5},
	))

	catalog := tools.NewCatalog()
	require.NoError(t, catalog.Register(Tools(store)...))
	d := tools.NewDispatcher(catalog)

	res := d.Dispatch(ctx, "calculate_salary_for_id", map[string]any{"emp_id": 2})
	require.True(t, res.Success, "%v", res.Err)
	assert.Equal(t, 4100.5, res.Value)

	res = d.Dispatch(ctx, "calculate_salary_for_name", map[string]any{"emp_name": "alice"})
	require.True(t, res.Success, "%v", res.Err)
	assert.Equal(t, 5200.0, res.Value)

	res = d.Dispatch(ctx, "calculate_salary_for_id", map[string]any{"emp_id": 9})
	assert.False(t, res.Success)
	assert.Equal(t, xerrors.CodeNotFound, xerrors.CodeOf(res.Err))

	res = d.Dispatch(ctx, "calculate_salary_for_id", map[string]any{"emp_id": 0})
	assert.Equal(t, xerrors.CodeToolExecutionFailure, xerrors.CodeOf(res.Err))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}
