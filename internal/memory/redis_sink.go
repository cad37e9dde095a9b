package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink 把快照写到 <prefix><session>，并把会话号记入 <prefix>sessions 有序集合。
type RedisSink struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSink 基于已有客户端创建后端。ttl 为 0 表示不过期。
func NewRedisSink(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisSink, error) {
	if client == nil {
		return nil, errors.New("Redis 客户端不能为空")
	}
	if prefix == "" {
		prefix = "mathagent:memory:"
	}
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}, nil
}

// Open 开启一个事务管道，写入在 Close 时一次提交。
func (r *RedisSink) Open(ctx context.Context, sessionID string) (Writer, error) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 不可用: %w", err)
	}
	return &redisWriter{sink: r, sessionID: sessionID, pipe: r.client.TxPipeline()}, nil
}

// Load 读取此前持久化的快照。
func (r *RedisSink) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	raw, err := r.client.Get(ctx, r.prefix+sessionID).Bytes()
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("解析记忆快照失败: %w", err)
	}
	return snap, nil
}

type redisWriter struct {
	sink      *RedisSink
	sessionID string
	pipe      redis.Pipeliner
	queued    bool
}

func (w *redisWriter) Write(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化记忆状态失败: %w", err)
	}
	w.pipe.Set(ctx, w.sink.prefix+w.sessionID, payload, w.sink.ttl)
	w.pipe.ZAdd(ctx, w.sink.prefix+"sessions", redis.Z{
		Score:  float64(snapshot.SavedAt.Unix()),
		Member: w.sessionID,
	})
	w.queued = true
	return nil
}

func (w *redisWriter) Close() error {
	if !w.queued {
		w.pipe.Discard()
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("提交 Redis 事务失败: %w", err)
	}
	return nil
}
