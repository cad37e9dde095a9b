package task

import (
	"context"
	"sync"
	"sync/atomic"

	xerrors "MathAgent/internal/errors"
)

// MemoryQueue 是进程内的任务队列，单机部署与测试使用。
// Close 之后 Publish 返回 QUEUE_FAILURE，Consume 在排空前即退出。
type MemoryQueue struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
	failures  atomic.Int64
}

// NewMemoryQueue 创建容量为 size 的队列，size 不大于 0 时取 64。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{
		ch:   make(chan string, size),
		done: make(chan struct{}),
	}
}

func (q *MemoryQueue) closedErr() error {
	return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭")
}

// Publish 投递任务 ID，队列满时阻塞直到有空位或 ctx 结束。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return q.closedErr()
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return q.closedErr()
	case q.ch <- taskID:
		return nil
	}
}

// Consume 以 workerCount 个协程处理任务，直到 ctx 结束或队列关闭。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	workerCount = max(workerCount, 1)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for range workerCount {
		go func() {
			defer wg.Done()
			q.work(ctx, handler)
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.closedErr()
}

func (q *MemoryQueue) work(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case taskID := <-q.ch:
			if err := handler(ctx, taskID); err != nil && ctx.Err() == nil {
				q.failures.Add(1)
			}
		}
	}
}

// Failures 返回处理器报错的累计次数。
func (q *MemoryQueue) Failures() int64 { return q.failures.Load() }

// Len 返回尚未被消费的任务数。
func (q *MemoryQueue) Len() int { return len(q.ch) }

// Close 停止队列，可重复调用。
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
