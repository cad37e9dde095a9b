package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	xerrors "MathAgent/internal/errors"
)

// Sink 是记忆状态的持久化后端。Open 获取一个写入句柄，调用方保证无论
// 成功与否都会 Close。
type Sink interface {
	Open(ctx context.Context, sessionID string) (Writer, error)
}

// Writer 写入一次完整快照；Close 负责刷新并释放资源。
type Writer interface {
	Write(ctx context.Context, snapshot Snapshot) error
	Close() error
}

// Persist 把完整状态写入 sink。句柄在所有返回路径上都会被关闭，
// 任何失败都以 PERSISTENCE_FAILURE 返回。
func (s *State) Persist(ctx context.Context, sink Sink, sessionID string) (err error) {
	if sink == nil {
		return nil
	}
	w, err := sink.Open(ctx, sessionID)
	if err != nil {
		return xerrors.Wrap(xerrors.CodePersistenceFailure, err, "打开记忆存储失败")
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = xerrors.Wrap(xerrors.CodePersistenceFailure, cerr, "关闭记忆存储失败")
		}
	}()
	if werr := w.Write(ctx, s.Snapshot(sessionID)); werr != nil {
		return xerrors.Wrap(xerrors.CodePersistenceFailure, werr, "写入记忆状态失败")
	}
	return nil
}

// NewSessionID 生成形如 20260101-150405-1a2b3c4d 的会话标识。
func NewSessionID(start time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("%s-%x", start.Format("20060102-150405"), id[:4])
}

// NopSink 丢弃所有写入。
type NopSink struct{}

// Open 返回一个空句柄。
func (NopSink) Open(context.Context, string) (Writer, error) { return nopWriter{}, nil }

type nopWriter struct{}

func (nopWriter) Write(context.Context, Snapshot) error { return nil }
func (nopWriter) Close() error                          { return nil }
