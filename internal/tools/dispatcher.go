package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	xerrors "MathAgent/internal/errors"
	"MathAgent/pkg/logger"
)

// Result 是一次步骤执行的标准化结果。
type Result struct {
	Success bool     `json:"success"`
	Value   any      `json:"value,omitempty"`
	Err     error    `json:"-"`
	Facts   []string `json:"facts,omitempty"`
}

// Failed 构造失败结果。
func Failed(err error) Result {
	return Result{Success: false, Err: err}
}

// Observer 接收每次工具调用的耗时与结果，用于指标采集。
type Observer interface {
	ObserveTool(name string, elapsed time.Duration, err error)
}

// Dispatcher 负责按名称调用目录中的工具并规整结果。每次调用恰好执行一次，
// 不做重试。
type Dispatcher struct {
	catalog  *Catalog
	observer Observer
	logger   *slog.Logger
}

// DispatcherOption 定义可选配置。
type DispatcherOption func(*Dispatcher)

// WithObserver 设置调用观察者。
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithDispatcherLogger 指定日志输出。
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher 构造调度器。
func NewDispatcher(catalog *Catalog, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{catalog: catalog}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.logger == nil {
		d.logger = logger.Named("dispatcher")
	}
	return d
}

// Catalog 返回调度器使用的目录。
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Dispatch 调用指定工具。参数会再次按声明校验；工具主体返回的错误以及
// panic 都被转换为 TOOL_EXECUTION_FAILURE。
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params map[string]any) Result {
	tool, ok := d.catalog.Lookup(name)
	if !ok {
		return Failed(xerrors.Newf(xerrors.CodeToolNotFound, "工具 %s 不在目录中", name))
	}
	spec := tool.Spec()
	args, err := spec.Bind(params)
	if err != nil {
		return Failed(err)
	}

	start := time.Now()
	value, err := d.invoke(ctx, tool, args)
	elapsed := time.Since(start)
	if d.observer != nil {
		d.observer.ObserveTool(name, elapsed, err)
	}
	if err != nil {
		d.logger.Warn("工具执行失败",
			slog.String("tool", name),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err))
		if _, typed := xerrors.From(err); !typed {
			err = xerrors.Wrap(xerrors.CodeToolExecutionFailure, err, fmt.Sprintf("工具 %s 执行失败", name))
		}
		return Failed(err)
	}
	d.logger.Debug("工具执行完成", slog.String("tool", name), slog.Duration("elapsed", elapsed))
	return Result{
		Success: true,
		Value:   value,
		Facts:   []string{describeCall(name, args, value)},
	}
}

func (d *Dispatcher) invoke(ctx context.Context, tool Tool, args Args) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.New(xerrors.CodeToolExecutionFailure, fmt.Sprintf("工具 %s 发生 panic: %v", tool.Spec().Name, r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeToolExecutionFailure, err, "会话已取消")
	}
	return tool.Call(ctx, args)
}

func describeCall(name string, args Args, value any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+FormatValue(args[k]))
	}
	return fmt.Sprintf("%s(%s) = %s", name, strings.Join(parts, ", "), FormatValue(value))
}
