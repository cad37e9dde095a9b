// Package scripted 提供一个按脚本回放的协作者，用于离线演示和端到端测试。
package scripted

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/llm"
	"MathAgent/internal/plan"
)

// Script 描述一次会话的固定感知结果和逐轮计划。
type Script struct {
	Intent llm.Intent       `yaml:"intent"`
	Plans  []map[string]any `yaml:"plans"`
}

// Collaborator 按 PlanningRequest.Round 依次返回脚本中的计划。
// 脚本耗尽后返回一个空计划并停止继续。
type Collaborator struct {
	mu     sync.Mutex
	script Script
	seen   []llm.PlanningRequest
}

// New 从内存中的脚本构造协作者。
func New(script Script) *Collaborator {
	return &Collaborator{script: script}
}

// Load 读取 YAML 脚本文件。
func Load(path string) (*Collaborator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取脚本失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 脚本。
func Parse(data []byte) (*Collaborator, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("解析脚本失败: %w", err)
	}
	if script.Intent.Label == "" {
		return nil, fmt.Errorf("脚本缺少 intent.intent")
	}
	return New(script), nil
}

// Perceive 返回脚本中的固定 Intent。
func (c *Collaborator) Perceive(ctx context.Context, req llm.PerceptionRequest) (*llm.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, xerrors.New(xerrors.CodeIntentFailure, "请求内容为空")
	}
	intent := c.script.Intent
	return &intent, nil
}

// Plan 返回第 Round 轮的计划。
func (c *Collaborator) Plan(ctx context.Context, req llm.PlanningRequest) (*plan.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.seen = append(c.seen, req)
	c.mu.Unlock()

	idx := req.Round - 1
	if idx < 0 || idx >= len(c.script.Plans) {
		return &plan.Plan{}, nil
	}
	raw, err := json.Marshal(c.script.Plans[idx])
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodePlanningFailure, err, "序列化脚本计划失败")
	}
	return plan.Decode(raw)
}

// Requests 返回已收到的规划请求副本。
func (c *Collaborator) Requests() []llm.PlanningRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.PlanningRequest, len(c.seen))
	copy(out, c.seen)
	return out
}

var _ llm.Collaborator = (*Collaborator)(nil)
