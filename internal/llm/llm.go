package llm

import (
	"context"

	"MathAgent/internal/memory"
	"MathAgent/internal/plan"
	"MathAgent/internal/tools"
)

// Intent 是感知阶段对原始请求的结构化理解，每个会话只生成一次。
type Intent struct {
	Label         string         `json:"intent" yaml:"intent"`
	Entities      map[string]any `json:"entities,omitempty" yaml:"entities,omitempty"`
	ThoughtType   string         `json:"thought_type,omitempty" yaml:"thought_type,omitempty"`
	Facts         []string       `json:"extracted_facts,omitempty" yaml:"extracted_facts,omitempty"`
	RequiresTools bool           `json:"requires_tools" yaml:"requires_tools"`
	Confidence    float64        `json:"confidence" yaml:"confidence"`
}

// PerceptionRequest 是感知方的输入。
type PerceptionRequest struct {
	Query       string
	Preferences map[string]string
}

// StepRecord 描述此前轮次已执行的步骤，供重新规划时参考。
type StepRecord struct {
	Round   int    `json:"round"`
	Number  int    `json:"step_number"`
	Tool    string `json:"tool_name,omitempty"`
	Success bool   `json:"success"`
	Value   string `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PlanningRequest 是规划方的输入。
type PlanningRequest struct {
	Round     int
	Query     string
	Intent    Intent
	Facts     []memory.Fact
	Catalog   []tools.Spec
	Completed []StepRecord
}

// Perceiver 把原始请求转换为 Intent。
type Perceiver interface {
	Perceive(ctx context.Context, req PerceptionRequest) (*Intent, error)
}

// Planner 根据 Intent、检索到的事实和工具目录生成下一轮计划。
type Planner interface {
	Plan(ctx context.Context, req PlanningRequest) (*plan.Plan, error)
}

// Collaborator 同时具备感知与规划能力。
type Collaborator interface {
	Perceiver
	Planner
}

// Prompt 是一次文本生成请求。
type Prompt struct {
	System string
	User   string
	// JSON 要求模型只输出一个 JSON 对象。
	JSON bool
}

// Generator 是各模型提供方需要实现的唯一能力。
type Generator interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}
