package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/memory"
)

const (
	upsertSessionSQL = `INSERT INTO memory_sessions (session_id, preferences, context, saved_at) VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE preferences = VALUES(preferences), context = VALUES(context), saved_at = VALUES(saved_at)`
	deleteFactsSQL = `DELETE FROM memory_facts WHERE session_id = ?`
	insertFactSQL  = `INSERT INTO memory_facts (session_id, seq, content, source, relevance, created_at) VALUES (?, ?, ?, ?, ?, ?)`
)

func sampleSnapshot(saved time.Time) memory.Snapshot {
	return memory.Snapshot{
		SessionID:   "s1",
		Preferences: map[string]string{"unit": "cm"},
		Context:     map[string]any{"original_request": "What is 2 + 3?"},
		SavedAt:     saved,
		Facts: []memory.Fact{
			{Content: "User asked: What is 2 + 3?", Source: "perception", Relevance: 0.9, Timestamp: saved},
			{Content: "Step 1 (add) result: 5", Source: "tool", Relevance: 1, Timestamp: saved},
		},
	}
}

func TestFactSinkCommitsSnapshot(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		execOp(upsertSessionSQL, mockResult{rowsAffected: 1}),
		execOp(deleteFactsSQL, mockResult{}),
		execOp(insertFactSQL, mockResult{rowsAffected: 1}),
		execOp(insertFactSQL, mockResult{rowsAffected: 1}),
		commitOp(),
	})
	defer db.Close()

	sink, err := NewFactSink(db)
	require.NoError(t, err)

	saved := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()
	w, err := sink.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, sampleSnapshot(saved)))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	drv.assertConsumed(t)

	args := drv.recorded()
	require.Len(t, args, 4)
	assert.Equal(t, "s1", args[0][0])
	assert.JSONEq(t, `{"unit":"cm"}`, args[0][1].(string))
	assert.Equal(t, saved.UnixNano(), args[0][3])
	assert.Equal(t, []driver.Value{"s1", int64(1), "Step 1 (add) result: 5", "tool", float64(1), saved.UnixNano()}, args[3])
}

func TestFactSinkRollsBackOnWriteFailure(t *testing.T) {
	db, drv := newMockDB(t, []mockOperation{
		beginOp(),
		execOp(upsertSessionSQL, mockResult{rowsAffected: 1}),
		failingExecOp(deleteFactsSQL, errors.New("lock wait timeout")),
		rollbackOp(),
	})
	defer db.Close()

	sink, err := NewFactSink(db)
	require.NoError(t, err)

	state := memory.New()
	state.StoreScored("fact", memory.SourceTool, 1)
	err = state.Persist(context.Background(), sink, "s1")
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodePersistenceFailure))
	drv.assertConsumed(t)
}

func TestFactSinkLoad(t *testing.T) {
	saved := time.Unix(1700000000, 0).UTC()
	db, drv := newMockDB(t, []mockOperation{
		queryOp(`SELECT preferences, context, saved_at FROM memory_sessions WHERE session_id = ?`, mockRowsData{
			columns: []string{"preferences", "context", "saved_at"},
			values:  [][]driver.Value{{`{"unit":"cm"}`, `{"session_id":"s1"}`, saved.UnixNano()}},
		}),
		queryOp(`SELECT content, source, relevance, created_at FROM memory_facts WHERE session_id = ? ORDER BY seq ASC`, mockRowsData{
			columns: []string{"content", "source", "relevance", "created_at"},
			values: [][]driver.Value{
				{"first", "perception", 0.9, saved.UnixNano()},
				{"second", "tool", 1.0, saved.UnixNano()},
			},
		}),
	})
	defer db.Close()

	sink, err := NewFactSink(db)
	require.NoError(t, err)
	snap, err := sink.Load(context.Background(), "s1")
	require.NoError(t, err)
	drv.assertConsumed(t)

	assert.Equal(t, "cm", snap.Preferences["unit"])
	assert.Equal(t, "s1", snap.Context["session_id"])
	assert.True(t, snap.SavedAt.Equal(saved))
	require.Len(t, snap.Facts, 2)
	assert.Equal(t, "first", snap.Facts[0].Content)
	assert.Equal(t, "tool", snap.Facts[1].Source)
}

func TestFactSinkLoadMissingSession(t *testing.T) {
	db, _ := newMockDB(t, []mockOperation{
		queryOp(`SELECT preferences, context, saved_at FROM memory_sessions WHERE session_id = ?`, mockRowsData{
			columns: []string{"preferences", "context", "saved_at"},
		}),
	})
	defer db.Close()

	sink, err := NewFactSink(db)
	require.NoError(t, err)
	_, err = sink.Load(context.Background(), "missing")
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotFound))
}
