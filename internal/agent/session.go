package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/llm"
	"MathAgent/internal/memory"
	"MathAgent/internal/plan"
	"MathAgent/internal/substitution"
	"MathAgent/internal/tools"
)

const (
	// AnswerSeparator 连接多个计算结果。
	AnswerSeparator = " | "
	// AnswerCompleted 在只有非计算类步骤成功时作为答案。
	AnswerCompleted = "Task completed"
)

// session 持有一次会话的全部可变状态，只在单个 goroutine 中使用。
type session struct {
	agent *Agent
	log   *slog.Logger

	id        string
	query     string
	startedAt time.Time
	state     *memory.State
	intent    *llm.Intent

	counter int
	round   int

	values     []string
	response   string
	anySuccess bool

	completed   []llm.StepRecord
	trace       []TraceEntry
	diagnostics []Diagnostic
}

func (a *Agent) newSession(req Request) *session {
	start := a.now()
	id := req.SessionID
	if id == "" {
		id = memory.NewSessionID(start)
	}
	state := memory.New(memory.WithClock(a.now), memory.WithPreferences(req.Preferences))
	state.SetContext(memory.KeyOriginalRequest, req.Query)
	state.SetContext("session_id", id)
	return &session{
		agent:     a,
		log:       a.logger.With(slog.String("session_id", id)),
		id:        id,
		query:     req.Query,
		startedAt: start,
		state:     state,
	}
}

// run 驱动 Perceiving → Planning → Executing → Deciding 循环，
// 返回时进入 Finalizing。
func (s *session) run(ctx context.Context) {
	s.seedKnowledge()
	if !s.perceive(ctx) {
		return
	}
	for {
		if s.counter >= s.agent.maxSteps {
			s.exhausted(StagePlanning, "步骤预算已用尽，不再开始新的规划")
			return
		}
		p, validation, ok := s.plan(ctx)
		if !ok {
			return
		}
		if !s.execute(ctx, p, validation) {
			return
		}
		if !p.Continue {
			return
		}
		if s.counter >= s.agent.maxSteps {
			s.exhausted(StageDeciding, "计划要求继续，但步骤预算已用尽")
			return
		}
	}
}

func (s *session) seedKnowledge() {
	if s.agent.knowledge == nil {
		return
	}
	for _, snippet := range s.agent.knowledge.Query(s.query) {
		if fact := strings.TrimSpace(snippet.Fact()); fact != "" {
			s.state.StoreScored(fact, memory.SourceKnowledge, snippet.Score())
		}
	}
}

func (s *session) perceive(ctx context.Context) bool {
	callCtx, cancel := s.agent.callContext(ctx)
	intent, err := s.agent.perceiver.Perceive(callCtx, llm.PerceptionRequest{
		Query:       s.query,
		Preferences: s.state.Preferences(),
	})
	cancel()
	if err == nil && (intent == nil || strings.TrimSpace(intent.Label) == "") {
		err = xerrors.New(xerrors.CodeIntentFailure, "感知结果缺少 intent")
	}
	if err != nil {
		err = collaboratorError(xerrors.CodeIntentFailure, err, "获取请求意图失败")
		s.diagnose(StagePerceiving, err)
		s.state.Store("Intent failure: "+err.Error(), memory.SourceFailure)
		return false
	}

	s.intent = intent
	s.state.SetContext("intent", intent.Label)
	for _, fact := range intent.Facts {
		if fact = strings.TrimSpace(fact); fact != "" {
			s.state.Store(fact, memory.SourcePerception)
		}
	}
	s.log.Info("意图识别完成",
		slog.String("intent", intent.Label),
		slog.Bool("requires_tools", intent.RequiresTools),
		slog.Float64("confidence", intent.Confidence))
	return true
}

func (s *session) plan(ctx context.Context) (*plan.Plan, plan.Validation, bool) {
	s.counter++
	s.round++
	catalog := s.agent.dispatcher.Catalog()

	req := llm.PlanningRequest{
		Round:   s.round,
		Query:   s.query,
		Intent:  *s.intent,
		Facts:   slices.Collect(s.state.RetrieveAbove(s.query, s.agent.retrieveLimit, s.agent.minRelevance)),
		Catalog: catalog.Specs(),
	}
	if s.round > 1 {
		req.Completed = slices.Clone(s.completed)
	}

	callCtx, cancel := s.agent.callContext(ctx)
	p, err := s.agent.planner.Plan(callCtx, req)
	cancel()
	if err == nil && p == nil {
		err = xerrors.New(xerrors.CodePlanInvalid, "规划方返回空计划")
	}
	if err != nil {
		err = collaboratorError(xerrors.CodePlanningFailure, err, "生成计划失败")
		s.planFailed(err)
		return nil, plan.Validation{}, false
	}

	validation, err := plan.Validate(p, catalog)
	if err != nil {
		s.planFailed(err)
		return nil, plan.Validation{}, false
	}
	s.log.Info("计划已生成",
		slog.Int("round", s.round),
		slog.Int("counter", s.counter),
		slog.Any("plan", p))
	return p, validation, true
}

func (s *session) planFailed(err error) {
	s.diagnose(StagePlanning, err)
	s.state.Store(fmt.Sprintf("Planning round %d failed: %v", s.round, err), memory.SourceFailure)
}

// execute 按步骤号顺序执行计划。预算耗尽时返回 false。
func (s *session) execute(ctx context.Context, p *plan.Plan, validation plan.Validation) bool {
	results := make(substitution.Results, len(p.Steps))
	for i, step := range p.Steps {
		if s.counter >= s.agent.maxSteps {
			s.exhausted(StageExecuting, fmt.Sprintf("步骤预算已用尽，剩余 %d 个步骤未执行", len(p.Steps)-i))
			return false
		}
		if !step.IsToolCall() {
			s.respond(step)
			continue
		}
		if err := validation.Rejection(step.Number); err != nil {
			results[step.Number] = tools.Failed(err)
			s.record(step, tools.Failed(err), OutcomeRejected, 0)
			continue
		}
		s.counter++
		start := time.Now()
		res := s.call(ctx, step, results)
		results[step.Number] = res
		outcome := OutcomeSucceeded
		if !res.Success {
			outcome = OutcomeFailed
		}
		s.record(step, res, outcome, time.Since(start))
	}
	return true
}

func (s *session) call(ctx context.Context, step plan.Step, results substitution.Results) tools.Result {
	spec, ok := s.agent.dispatcher.Catalog().Spec(step.Tool)
	if !ok {
		return tools.Failed(xerrors.Newf(xerrors.CodeToolNotFound, "工具 %s 不在目录中", step.Tool))
	}
	params, err := s.agent.engine.Apply(spec, step.Params, results, s.state.Context())
	if err != nil {
		return tools.Failed(err)
	}
	return s.agent.dispatcher.Dispatch(tools.WithSession(ctx, s.id), step.Tool, params)
}

func (s *session) respond(step plan.Step) {
	text := strings.Join(s.values, AnswerSeparator)
	if text == "" {
		text = strings.TrimSpace(step.Description)
	}
	s.response = text
	if text != "" {
		s.state.Store("Response: "+text, memory.SourceResponse)
	}
	s.trace = append(s.trace, TraceEntry{
		Round:   s.round,
		Step:    step.Number,
		Kind:    step.Kind,
		Outcome: OutcomeSucceeded,
		Value:   text,
	})
}

func (s *session) record(step plan.Step, res tools.Result, outcome Outcome, elapsed time.Duration) {
	entry := TraceEntry{
		Round:   s.round,
		Step:    step.Number,
		Kind:    step.Kind,
		Tool:    step.Tool,
		Outcome: outcome,
	}
	if elapsed > 0 {
		entry.Elapsed = elapsed.String()
	}
	rec := llm.StepRecord{Round: s.round, Number: step.Number, Tool: step.Tool, Success: res.Success}

	if res.Success {
		value := tools.FormatValue(res.Value)
		entry.Value = value
		rec.Value = value
		s.anySuccess = true
		if value != "" && s.agent.isComputational(step.Tool) {
			s.values = append(s.values, value)
		}
		for _, fact := range res.Facts {
			s.state.Store(fact, memory.SourceTool)
		}
	} else {
		code := xerrors.CodeOf(res.Err)
		entry.Code = code
		entry.Error = errorText(res.Err)
		rec.Error = entry.Error
		s.state.Store(fmt.Sprintf("Step %d (%s) failed: %s", step.Number, step.Tool, entry.Error),
			memory.SourceFailure)
		s.log.Warn("步骤执行失败",
			slog.Int("round", s.round),
			slog.Int("step", step.Number),
			slog.String("tool", step.Tool),
			slog.String("code", string(code)),
			slog.String("outcome", string(outcome)))
	}
	s.trace = append(s.trace, entry)
	s.completed = append(s.completed, rec)
}

func (s *session) exhausted(stage Stage, message string) {
	s.diagnose(stage, xerrors.New(xerrors.CodeBudgetExhausted, message,
		xerrors.WithMetadata("max_steps", fmt.Sprint(s.agent.maxSteps))))
}

func (s *session) diagnose(stage Stage, err error) {
	d := Diagnostic{Stage: stage, Round: s.round, Code: xerrors.CodeOf(err), Message: errorText(err)}
	s.diagnostics = append(s.diagnostics, d)
	s.log.Warn("会话异常",
		slog.String("stage", string(stage)),
		slog.String("code", string(d.Code)),
		slog.String("message", d.Message))
}

// finalize 汇总答案并持久化记忆状态。持久化失败只记录诊断，不影响答案。
func (s *session) finalize(ctx context.Context) *Result {
	answer := strings.Join(s.values, AnswerSeparator)
	if answer == "" {
		answer = s.response
	}
	if answer == "" && s.anySuccess {
		answer = AnswerCompleted
	}
	if answer != "" {
		s.state.SetContext("final_answer", answer)
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.agent.persistTimeout)
	if err := s.state.Persist(persistCtx, s.agent.sink, s.id); err != nil {
		s.diagnose(StageFinalizing, err)
	}
	cancel()

	result := &Result{
		SessionID:   s.id,
		Query:       s.query,
		Intent:      s.intent,
		Answer:      answer,
		Success:     s.intent != nil && answer != "",
		Counter:     s.counter,
		Rounds:      s.round,
		Trace:       s.trace,
		Diagnostics: s.diagnostics,
		StartedAt:   s.startedAt,
		FinishedAt:  s.agent.now(),
	}
	if result.Trace == nil {
		result.Trace = []TraceEntry{}
	}
	s.log.Info("会话结束",
		slog.Bool("success", result.Success),
		slog.String("answer", answer),
		slog.Int("counter", s.counter),
		slog.Int("rounds", s.round),
		slog.Int("failed_steps", result.Failed()))
	return result
}

func (a *Agent) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.llmTimeout > 0 {
		return context.WithTimeout(ctx, a.llmTimeout)
	}
	return context.WithCancel(ctx)
}

// collaboratorError 把协作方错误归一为阶段错误码。超时与普通失败按同样
// 方式处理，只在元数据中区分。
func collaboratorError(code xerrors.Code, err error, message string) error {
	if typed, ok := xerrors.From(err); ok && (typed.Code() == code || typed.Code() == xerrors.CodePlanInvalid) {
		return err
	}
	var opts []xerrors.Option
	if errors.Is(err, context.DeadlineExceeded) {
		opts = append(opts, xerrors.WithMetadata("cause", string(xerrors.CodeTimeout)))
	}
	return xerrors.Wrap(code, err, message, opts...)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
