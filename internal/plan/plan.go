// Package plan holds the plan model exchanged with the planning collaborator
// and the structural checks applied before any step executes.
package plan

import "log/slog"

// Kind 区分步骤的两种形态。
type Kind string

const (
	KindToolCall Kind = "tool_call"
	KindRespond  Kind = "response"
)

// Step 是计划中的一个步骤：调用工具，或生成最终回复。
type Step struct {
	Number      int            `json:"step_number"`
	Kind        Kind           `json:"action_type"`
	Description string         `json:"description"`
	Tool        string         `json:"tool_name,omitempty"`
	Params      map[string]any `json:"parameters,omitempty"`
	Rationale   string         `json:"reasoning,omitempty"`
}

// IsToolCall 判断是否为工具调用步骤。
func (s Step) IsToolCall() bool { return s.Kind == KindToolCall }

// SelfCheck 是规划方自检的结论，只做记录，编排流程不依据它分支。
type SelfCheck struct {
	PlanVerified       bool   `json:"plan_verified"`
	ToolsAvailable     bool   `json:"tools_available"`
	ParametersComplete bool   `json:"parameters_complete"`
	Rationale          string `json:"rationale,omitempty"`
}

// Fallback 是规划方预先考虑的替代方案，不会被自动执行。
type Fallback struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Tool      string `json:"tool,omitempty"`
}

// Plan 是一轮规划的输出。
type Plan struct {
	Steps           []Step     `json:"action_plan"`
	Rationale       string     `json:"reasoning,omitempty"`
	ExpectedOutcome string     `json:"expected_outcome,omitempty"`
	Confidence      float64    `json:"confidence"`
	Continue        bool       `json:"should_continue"`
	SelfCheck       *SelfCheck `json:"self_check,omitempty"`
	Fallbacks       []Fallback `json:"fallback,omitempty"`
}

// ToolCalls 返回计划中工具调用步骤的数量。
func (p *Plan) ToolCalls() int {
	n := 0
	for _, s := range p.Steps {
		if s.IsToolCall() {
			n++
		}
	}
	return n
}

// LogValue 让计划的元数据以结构化属性原样进入日志。
func (p *Plan) LogValue() slog.Value {
	if p == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.Int("steps", len(p.Steps)),
		slog.Float64("confidence", p.Confidence),
		slog.Bool("continue", p.Continue),
		slog.String("expected_outcome", p.ExpectedOutcome),
	}
	if p.SelfCheck != nil {
		attrs = append(attrs, slog.Group("self_check",
			slog.Bool("plan_verified", p.SelfCheck.PlanVerified),
			slog.Bool("tools_available", p.SelfCheck.ToolsAvailable),
			slog.Bool("parameters_complete", p.SelfCheck.ParametersComplete),
			slog.String("rationale", p.SelfCheck.Rationale),
		))
	}
	if len(p.Fallbacks) > 0 {
		fallbacks := make([]any, 0, len(p.Fallbacks))
		for i, f := range p.Fallbacks {
			fallbacks = append(fallbacks, slog.Group(itoa(i),
				slog.String("condition", f.Condition),
				slog.String("action", f.Action),
				slog.String("tool", f.Tool),
			))
		}
		attrs = append(attrs, slog.Group("fallback", fallbacks...))
	}
	return slog.GroupValue(attrs...)
}
