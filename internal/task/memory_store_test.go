package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/agent"
	xerrors "MathAgent/internal/errors"
)

func seededStore(t *testing.T) (*MemoryStore, time.Time) {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-2 * time.Minute)

	for _, task := range []*Task{
		{ID: "t1", Query: "What is 2 + 3?", Status: StatusPending, MaxRetries: 3},
		{ID: "t2", Query: "Solve x^2 - 4 = 0", Status: StatusPending, MaxRetries: 3},
		{ID: "t3", Query: "Sum of 1, 2 and 3", Status: StatusPending, MaxRetries: 3},
	} {
		require.NoError(t, store.Create(ctx, task))
	}
	require.NoError(t, store.MarkFailed(ctx, "t2", xerrors.CodePlanningFailure, "boom", nil, true))
	require.NoError(t, store.MarkSucceeded(ctx, "t3", ExecutionResult{SessionID: "s3", Answer: "6", Success: true}))

	store.mu.Lock()
	store.tasks["t1"].UpdatedAt = base.Unix()
	store.tasks["t2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.tasks["t3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()
	return store, base
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store, base := seededStore(t)
	ctx := context.Background()

	all, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].ID)

	asc, err := store.List(ctx, buildListOptions([]ListOption{WithSortOrder(SortByUpdatedAsc)}))
	require.NoError(t, err)
	assert.Equal(t, "t1", asc[0].ID)

	failed, err := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "t2", failed[0].ID)
	assert.Equal(t, string(xerrors.CodePlanningFailure), failed[0].ErrorCode)

	withResult, err := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	require.NoError(t, err)
	require.Len(t, withResult, 1)
	assert.Equal(t, "t3", withResult[0].ID)

	recent, err := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(base.Add(15 * time.Second))}))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	byQuery, err := store.List(ctx, buildListOptions([]ListOption{WithQuery("SOLVE")}))
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "t2", byQuery[0].ID)

	byAnswer, err := store.List(ctx, buildListOptions([]ListOption{WithQuery("6")}))
	require.NoError(t, err)
	require.Len(t, byAnswer, 1)
	assert.Equal(t, "t3", byAnswer[0].ID)

	paged, err := store.List(ctx, buildListOptions([]ListOption{WithOffset(1), WithLimit(1)}))
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "t2", paged[0].ID)
}

func TestMemoryStoreStats(t *testing.T) {
	store, base := seededStore(t)

	stats, err := store.Stats(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, base.Unix(), stats.OldestUpdatedAt)
	assert.Equal(t, base.Add(60*time.Second).Unix(), stats.NewestUpdatedAt)

	empty, err := store.Stats(context.Background(), buildListOptions([]ListOption{WithQuery("nothing matches")}))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.OldestUpdatedAt)
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &Task{ID: "t", Query: "q", Status: StatusPending, MaxRetries: 2}))
	assert.ErrorIs(t, store.Create(ctx, &Task{ID: "t"}), ErrTaskConflict)

	claimed, err := store.Claim(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	_, err = store.Claim(ctx, "t")
	assert.ErrorIs(t, err, ErrTaskConflict)

	require.NoError(t, store.MarkFailed(ctx, "t", xerrors.CodeIntentFailure, "no intent", nil, false))
	retried, err := store.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retried.Status)

	_, err = store.Claim(ctx, "t")
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, "t", xerrors.CodeIntentFailure, "no intent", nil, false))
	_, err = store.Claim(ctx, "t")
	assert.ErrorIs(t, err, ErrTaskExhausted)
	assert.True(t, xerrors.HasCode(err, CodeTaskExhausted))

	_, err = store.Claim(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &Task{ID: "t", Query: "q", Preferences: map[string]string{"unit": "cm"}, MaxRetries: 1}))
	require.NoError(t, store.MarkSucceeded(ctx, "t", ExecutionResult{
		Answer: "5",
		Trace:  []agent.TraceEntry{{Step: 1, Tool: "add", Outcome: agent.OutcomeSucceeded, Value: "5"}},
	}))

	got, err := store.Get(ctx, "t")
	require.NoError(t, err)
	got.Preferences["unit"] = "m"
	got.Result.Trace[0].Value = "tampered"

	again, err := store.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "cm", again.Preferences["unit"])
	assert.Equal(t, "5", again.Result.Trace[0].Value)
}
