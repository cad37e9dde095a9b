package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	xerrors "MathAgent/internal/errors"
)

type wireStep struct {
	Number      int            `json:"step_number"`
	Kind        string         `json:"action_type"`
	Description string         `json:"description"`
	Tool        string         `json:"tool_name"`
	Params      map[string]any `json:"parameters"`
	Rationale   string         `json:"reasoning"`
}

type wirePlan struct {
	Steps           []wireStep `json:"action_plan"`
	Rationale       string     `json:"reasoning"`
	ExpectedOutcome string     `json:"expected_outcome"`
	Confidence      float64    `json:"confidence"`
	Continue        bool       `json:"should_continue"`
	SelfCheck       *SelfCheck `json:"self_check"`
	Fallbacks       []Fallback `json:"fallback"`
}

// Decode 解析规划方返回的 JSON。工具参数允许包裹在 {"input": {...}} 中，
// 解析时会被展开；action_type 缺省时按是否带工具名推断。
func Decode(data []byte) (*Plan, error) {
	var wire wirePlan
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, xerrors.Wrap(xerrors.CodePlanInvalid, err, "解析计划失败")
	}
	p := &Plan{
		Rationale:       wire.Rationale,
		ExpectedOutcome: wire.ExpectedOutcome,
		Confidence:      clamp01(wire.Confidence),
		Continue:        wire.Continue,
		SelfCheck:       wire.SelfCheck,
		Fallbacks:       wire.Fallbacks,
		Steps:           make([]Step, 0, len(wire.Steps)),
	}
	for _, ws := range wire.Steps {
		kind, err := parseKind(ws.Kind, ws.Tool)
		if err != nil {
			return nil, err
		}
		step := Step{
			Number:      ws.Number,
			Kind:        kind,
			Description: ws.Description,
			Rationale:   ws.Rationale,
		}
		if kind == KindToolCall {
			step.Tool = strings.TrimSpace(ws.Tool)
			step.Params = unwrapInput(ws.Params)
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func parseKind(raw, tool string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tool_call", "tool":
		return KindToolCall, nil
	case "response", "respond", "final_answer":
		return KindRespond, nil
	case "":
		if strings.TrimSpace(tool) != "" {
			return KindToolCall, nil
		}
		return KindRespond, nil
	default:
		return "", xerrors.New(xerrors.CodePlanInvalid, fmt.Sprintf("不支持的步骤类型 %q", raw))
	}
}

func unwrapInput(params map[string]any) map[string]any {
	if len(params) == 1 {
		if inner, ok := params["input"].(map[string]any); ok {
			return inner
		}
	}
	if params == nil {
		return map[string]any{}
	}
	return params
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
