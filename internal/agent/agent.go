package agent

import (
	"context"
	"log/slog"
	"time"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/knowledge"
	"MathAgent/internal/llm"
	"MathAgent/internal/memory"
	"MathAgent/internal/substitution"
	"MathAgent/internal/tools"
	"MathAgent/pkg/logger"
)

const (
	// DefaultMaxSteps 是单个会话的步骤预算。
	DefaultMaxSteps = 50
	// DefaultRetrieveLimit 是每轮规划附带的检索事实数量。
	DefaultRetrieveLimit = 5
	// DefaultPersistTimeout 是会话结束时写入记忆状态的超时时间。
	DefaultPersistTimeout = 10 * time.Second
)

// Request 描述一次会话请求。
type Request struct {
	Query       string            `json:"query"`
	Preferences map[string]string `json:"preferences,omitempty"`
	// SessionID 为空时按开始时间生成。
	SessionID string `json:"session_id,omitempty"`
}

// Observer 在会话结束后接收结果，用于指标采集。
type Observer interface {
	ObserveSession(result *Result)
}

// Agent 协调感知、规划与工具调度，是系统的业务核心。Agent 本身无状态，
// 可以被多个会话并发使用；每个会话的记忆与计数器只属于该会话。
type Agent struct {
	perceiver        llm.Perceiver
	planner          llm.Planner
	dispatcher       *tools.Dispatcher
	engine           *substitution.Engine
	knowledge        knowledge.Provider
	sink             memory.Sink
	observer         Observer
	nonComputational map[string]struct{}
	maxSteps         int
	retrieveLimit    int
	minRelevance     float64
	llmTimeout       time.Duration
	persistTimeout   time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithMaxSteps 设置步骤预算。
func WithMaxSteps(n int) Option {
	return func(a *Agent) { a.maxSteps = n }
}

// WithRetrieveLimit 设置每轮规划附带的事实数量。
func WithRetrieveLimit(n int) Option {
	return func(a *Agent) { a.retrieveLimit = n }
}

// WithMinRelevance 丢弃检索得分低于 score 的事实，0 表示只要求关键词重叠。
func WithMinRelevance(score float64) Option {
	return func(a *Agent) {
		if score > 0 {
			a.minRelevance = score
		}
	}
}

// WithLLMTimeout 设置单次调用感知或规划方的超时时间，0 表示不限制。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout < 0 {
			timeout = 0
		}
		a.llmTimeout = timeout
	}
}

// WithPersistTimeout 设置持久化超时时间。
func WithPersistTimeout(timeout time.Duration) Option {
	return func(a *Agent) { a.persistTimeout = timeout }
}

// WithKnowledgeProvider 配置知识库，命中的条目在会话开始时写入事实库。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Agent) { a.knowledge = provider }
}

// WithSink 配置记忆状态的持久化后端。
func WithSink(sink memory.Sink) Option {
	return func(a *Agent) { a.sink = sink }
}

// WithObserver 配置会话观察者。
func WithObserver(o Observer) Option {
	return func(a *Agent) { a.observer = o }
}

// WithNonComputational 指定结果不计入最终答案的工具。
func WithNonComputational(names ...string) Option {
	return func(a *Agent) {
		for _, name := range names {
			a.nonComputational[name] = struct{}{}
		}
	}
}

// WithSubstitution 替换默认的占位符替换引擎。
func WithSubstitution(engine *substitution.Engine) Option {
	return func(a *Agent) { a.engine = engine }
}

// WithClock 替换时间来源，便于测试。
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New 创建一个 Agent。
func New(perceiver llm.Perceiver, planner llm.Planner, dispatcher *tools.Dispatcher, opts ...Option) *Agent {
	ag := &Agent{
		perceiver:        perceiver,
		planner:          planner,
		dispatcher:       dispatcher,
		nonComputational: make(map[string]struct{}),
		maxSteps:         DefaultMaxSteps,
		retrieveLimit:    DefaultRetrieveLimit,
		persistTimeout:   DefaultPersistTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.maxSteps <= 0 {
		ag.maxSteps = DefaultMaxSteps
	}
	if ag.retrieveLimit <= 0 {
		ag.retrieveLimit = DefaultRetrieveLimit
	}
	if ag.persistTimeout <= 0 {
		ag.persistTimeout = DefaultPersistTimeout
	}
	if ag.engine == nil {
		ag.engine = substitution.New(substitution.WithRequestKey(memory.KeyOriginalRequest))
	}
	if ag.sink == nil {
		ag.sink = memory.NopSink{}
	}
	if ag.logger == nil {
		ag.logger = logger.Named("agent")
	}
	return ag
}

// Catalog 返回调度器使用的工具目录。
func (a *Agent) Catalog() *tools.Catalog {
	if a.dispatcher == nil {
		return nil
	}
	return a.dispatcher.Catalog()
}

// MaxSteps 返回步骤预算。
func (a *Agent) MaxSteps() int { return a.maxSteps }

// Run 执行一次完整会话。结果总是非空；失败信息记录在 Diagnostics 与 Trace 中。
func (a *Agent) Run(ctx context.Context, req Request) *Result {
	s := a.newSession(req)
	if err := a.precheck(req); err != nil {
		s.diagnose(StageStart, err)
	} else {
		s.run(ctx)
	}
	result := s.finalize(ctx)
	if a.observer != nil {
		a.observer.ObserveSession(result)
	}
	return result
}

func (a *Agent) precheck(req Request) error {
	switch {
	case a.perceiver == nil || a.planner == nil:
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置感知或规划方")
	case a.dispatcher == nil:
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置工具调度器")
	case req.Query == "":
		return xerrors.New(xerrors.CodeInvalidArgument, "请求内容不能为空")
	}
	return nil
}

func (a *Agent) isComputational(tool string) bool {
	_, excluded := a.nonComputational[tool]
	return !excluded
}
