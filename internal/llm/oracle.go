package llm

import (
	"context"
	"strings"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/plan"
)

// Oracle 用固定提示词把 Generator 适配为 Perceiver 与 Planner。
type Oracle struct {
	gen Generator
}

// NewOracle 构造 Oracle。
func NewOracle(gen Generator) *Oracle {
	return &Oracle{gen: gen}
}

// Perceive 实现 Perceiver。
func (o *Oracle) Perceive(ctx context.Context, req PerceptionRequest) (*Intent, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, xerrors.New(xerrors.CodeIntentFailure, "请求为空")
	}
	text, err := o.gen.Complete(ctx, perceptionPrompt(req))
	if err != nil {
		return nil, err
	}
	return DecodeIntent(text)
}

// Plan 实现 Planner。
func (o *Oracle) Plan(ctx context.Context, req PlanningRequest) (*plan.Plan, error) {
	text, err := o.gen.Complete(ctx, planningPrompt(req))
	if err != nil {
		return nil, err
	}
	raw, ok := ExtractJSON(text)
	if !ok {
		return nil, xerrors.New(xerrors.CodePlanInvalid, "规划输出中没有 JSON 对象")
	}
	return plan.Decode([]byte(raw))
}

var _ Collaborator = (*Oracle)(nil)
