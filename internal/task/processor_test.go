package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"MathAgent/internal/agent"
	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/observability/alerting"
)

type fakeAgent struct {
	processed atomic.Int32
	latency   time.Duration
	respond   func(req agent.Request, call int32) *agent.Result
}

func (f *fakeAgent) Run(ctx context.Context, req agent.Request) *agent.Result {
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
		}
	}
	call := f.processed.Add(1)
	if f.respond != nil {
		return f.respond(req, call)
	}
	return &agent.Result{SessionID: fmt.Sprintf("s-%d", call), Query: req.Query, Answer: "ok", Success: true, Counter: 2, Rounds: 1}
}

type recordingAlerter struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingAlerter) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAlerter) Events() []alerting.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alerting.Event(nil), r.events...)
}

func startProcessor(t *testing.T, processor *Processor) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()
	return cancel, done
}

func TestProcessorHandlesConcurrentTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	executor := &fakeAgent{latency: 5 * time.Millisecond}
	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithWorkerCount(8))

	cancel, done := startProcessor(t, processor)

	ctx := context.Background()
	const total = 200
	for i := range total {
		_, err := service.Submit(ctx, agent.Request{Query: fmt.Sprintf("What is %d + 1?", i)})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		stats, err := service.Stats(ctx)
		return err == nil && stats.Succeeded == total
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	assert.EqualValues(t, total, executor.processed.Load())
}

func TestProcessorRetriesFatalDiagnostics(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	alerter := &recordingAlerter{}
	executor := &fakeAgent{respond: func(req agent.Request, call int32) *agent.Result {
		if call < 2 {
			return &agent.Result{
				Query:       req.Query,
				Diagnostics: []agent.Diagnostic{{Stage: agent.StagePerceiving, Code: xerrors.CodeIntentFailure, Message: "perceiver unavailable"}},
			}
		}
		return &agent.Result{SessionID: "s-ok", Query: req.Query, Answer: "5", Success: true, Counter: 2}
	}}
	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithAlertDispatcher(alerter))
	cancel, done := startProcessor(t, processor)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	task, err := service.Submit(ctx, agent.Request{Query: "What is 2 + 3?"})
	require.NoError(t, err)

	final, err := service.WaitUntilCompleted(ctx, task.ID, 10*time.Millisecond)
	require.NoError(t, err)
	cancel()
	<-done

	assert.Equal(t, StatusSucceeded, final.Status)
	assert.Equal(t, 2, final.Attempts)
	require.NotNil(t, final.Result)
	assert.Equal(t, "5", final.Result.Answer)

	events := alerter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, xerrors.CodeIntentFailure, events[0].Code)
	assert.Equal(t, "retry", events[0].Metadata["stage"])
}

func TestProcessorMarksExhaustedTaskTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	alerter := &recordingAlerter{}
	executor := &fakeAgent{respond: func(req agent.Request, _ int32) *agent.Result {
		return &agent.Result{
			Query:       req.Query,
			Diagnostics: []agent.Diagnostic{{Stage: agent.StagePlanning, Round: 1, Code: xerrors.CodePlanningFailure, Message: "planner down"}},
		}
	}}
	service := NewService(store, queue, 2)
	processor := NewProcessor(executor, store, queue, queue, WithAlertDispatcher(alerter))
	cancel, done := startProcessor(t, processor)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	task, err := service.Submit(ctx, agent.Request{Query: "Sum 1 and 2"})
	require.NoError(t, err)

	final, err := service.WaitUntilCompleted(ctx, task.ID, 10*time.Millisecond)
	require.NoError(t, err)
	cancel()
	<-done

	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, 2, final.Attempts)
	assert.Equal(t, string(xerrors.CodePlanningFailure), final.ErrorCode)
	require.NotNil(t, final.Result)
	require.Len(t, final.Result.Diagnostics, 1)

	events := alerter.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "terminal", events[len(events)-1].Metadata["stage"])
}

func TestProcessorKeepsCompletedSessionWithoutAnswer(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeAgent{respond: func(req agent.Request, _ int32) *agent.Result {
		return &agent.Result{
			SessionID: "s-1",
			Query:     req.Query,
			Counter:   2,
			Trace:     []agent.TraceEntry{{Round: 1, Step: 1, Tool: "calculate_division", Outcome: agent.OutcomeFailed, Code: xerrors.CodeToolExecutionFailure}},
		}
	}}
	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue)
	cancel, done := startProcessor(t, processor)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	task, err := service.Submit(ctx, agent.Request{Query: "Divide 1 by 0"})
	require.NoError(t, err)

	final, err := service.WaitUntilCompleted(ctx, task.ID, 10*time.Millisecond)
	require.NoError(t, err)
	cancel()
	<-done

	assert.Equal(t, StatusSucceeded, final.Status)
	assert.Equal(t, 1, final.Attempts)
	require.NotNil(t, final.Result)
	assert.False(t, final.Result.Success)
	assert.Empty(t, final.Result.Answer)
}

func TestServiceSubmitValidation(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	service := NewService(store, queue, 0)
	ctx := context.Background()

	_, err := service.Submit(ctx, agent.Request{Query: "   "})
	assert.True(t, xerrors.HasCode(err, CodeTaskValidation))

	first, err := service.Submit(ctx, agent.Request{Query: "What is 1 + 1?", SessionID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.MaxRetries)

	again, err := service.Submit(ctx, agent.Request{Query: "What is 1 + 1?", SessionID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, queue.Close())
	_, err = service.Submit(ctx, agent.Request{Query: "after close"})
	assert.True(t, xerrors.HasCode(err, CodeTaskPublish))

	failed, err := service.List(ctx, WithStatuses(StatusFailed))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "after close", failed[0].Query)
}
