package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/memory"
)

// FactSink 把会话快照写入 memory_sessions 与 memory_facts。Open 开启事务，
// Close 在写入成功时提交，否则回滚。
type FactSink struct {
	db *sql.DB
}

// NewFactSink 基于已迁移的连接创建后端。
func NewFactSink(db *sql.DB) (*FactSink, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL 连接不能为空")
	}
	return &FactSink{db: db}, nil
}

// Open 实现 memory.Sink。
func (s *FactSink) Open(ctx context.Context, sessionID string) (memory.Writer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启记忆事务失败")
	}
	return &factWriter{tx: tx, sessionID: sessionID}, nil
}

// Load 读取会话快照，事实按写入顺序返回。
func (s *FactSink) Load(ctx context.Context, sessionID string) (memory.Snapshot, error) {
	snap := memory.Snapshot{SessionID: sessionID}
	var (
		prefs, rawContext sql.NullString
		savedAt           int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT preferences, context, saved_at FROM memory_sessions WHERE session_id = ?`, sessionID,
	).Scan(&prefs, &rawContext, &savedAt)
	if err == sql.ErrNoRows {
		return snap, xerrors.New(xerrors.CodeNotFound, "会话快照不存在", xerrors.WithMetadata("session_id", sessionID))
	}
	if err != nil {
		return snap, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话快照失败")
	}
	if err := unmarshalColumn(prefs, &snap.Preferences); err != nil {
		return snap, err
	}
	if err := unmarshalColumn(rawContext, &snap.Context); err != nil {
		return snap, err
	}
	snap.SavedAt = unixNano(savedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT content, source, relevance, created_at FROM memory_facts WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return snap, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询记忆事实失败")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			fact memory.Fact
			ts   int64
		)
		if err := rows.Scan(&fact.Content, &fact.Source, &fact.Relevance, &ts); err != nil {
			return snap, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析记忆事实失败")
		}
		fact.Timestamp = unixNano(ts)
		snap.Facts = append(snap.Facts, fact)
	}
	if err := rows.Err(); err != nil {
		return snap, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历记忆事实失败")
	}
	return snap, nil
}

type factWriter struct {
	tx        *sql.Tx
	sessionID string
	once      sync.Once
	failed    bool
	written   bool
}

func (w *factWriter) Write(ctx context.Context, snapshot memory.Snapshot) error {
	if err := w.write(ctx, snapshot); err != nil {
		w.failed = true
		return err
	}
	w.written = true
	return nil
}

func (w *factWriter) write(ctx context.Context, snapshot memory.Snapshot) error {
	prefs, err := json.Marshal(snapshot.Preferences)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化偏好失败")
	}
	rawContext, err := json.Marshal(snapshot.Context)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化上下文失败")
	}
	if _, err := w.tx.ExecContext(ctx,
		`INSERT INTO memory_sessions (session_id, preferences, context, saved_at) VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE preferences = VALUES(preferences), context = VALUES(context), saved_at = VALUES(saved_at)`,
		w.sessionID, string(prefs), string(rawContext), snapshot.SavedAt.UnixNano(),
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话记录失败")
	}
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM memory_facts WHERE session_id = ?`, w.sessionID); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "清理旧记忆事实失败")
	}
	for i, fact := range snapshot.Facts {
		if _, err := w.tx.ExecContext(ctx,
			`INSERT INTO memory_facts (session_id, seq, content, source, relevance, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			w.sessionID, i, fact.Content, fact.Source, fact.Relevance, fact.Timestamp.UnixNano(),
		); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入记忆事实失败")
		}
	}
	return nil
}

func (w *factWriter) Close() error {
	var err error
	w.once.Do(func() {
		if w.failed || !w.written {
			err = w.tx.Rollback()
			return
		}
		if cerr := w.tx.Commit(); cerr != nil {
			err = xerrors.Wrap(xerrors.CodeStorageFailure, cerr, "提交记忆事务失败")
		}
	})
	return err
}

func unmarshalColumn(raw sql.NullString, target any) error {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), target); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析 JSON 列失败")
	}
	return nil
}

var _ memory.Sink = (*FactSink)(nil)

func unixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
