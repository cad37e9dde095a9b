package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/llm"
	"MathAgent/internal/plan"
)

// Client 通过调用外部 Python 脚本完成感知与规划。脚本从 stdin 读取一个 JSON
// 请求，stage 字段为 perceive 或 plan，并把结果 JSON 写到 stdout。
type Client struct {
	pythonExec string
	scriptPath string
	workingDir string
}

// NewClient 创建 Python Bridge 客户端。
func NewClient(pythonExec, scriptPath, workingDir string) (*Client, error) {
	if scriptPath == "" {
		return nil, fmt.Errorf("未指定 Python 脚本路径")
	}
	if pythonExec == "" {
		pythonExec = "python3"
	}
	return &Client{
		pythonExec: pythonExec,
		scriptPath: scriptPath,
		workingDir: workingDir,
	}, nil
}

type factPayload struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance"`
}

type toolPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Signature   string `json:"signature"`
}

// Perceive 实现 llm.Perceiver。
func (c *Client) Perceive(ctx context.Context, req llm.PerceptionRequest) (*llm.Intent, error) {
	out, err := c.run(ctx, map[string]any{
		"stage":       "perceive",
		"query":       req.Query,
		"preferences": req.Preferences,
		"timestamp":   time.Now().Unix(),
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeIntentFailure, err, "Python 感知脚本失败")
	}
	return llm.DecodeIntent(string(out))
}

// Plan 实现 llm.Planner。
func (c *Client) Plan(ctx context.Context, req llm.PlanningRequest) (*plan.Plan, error) {
	facts := make([]factPayload, 0, len(req.Facts))
	for _, f := range req.Facts {
		facts = append(facts, factPayload{Content: f.Content, Source: f.Source, Relevance: f.Relevance})
	}
	catalog := make([]toolPayload, 0, len(req.Catalog))
	for _, spec := range req.Catalog {
		catalog = append(catalog, toolPayload{Name: spec.Name, Description: spec.Description, Signature: spec.Signature()})
	}
	out, err := c.run(ctx, map[string]any{
		"stage":     "plan",
		"round":     req.Round,
		"query":     req.Query,
		"intent":    req.Intent,
		"facts":     facts,
		"catalog":   catalog,
		"completed": req.Completed,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodePlanningFailure, err, "Python 规划脚本失败")
	}
	raw, ok := llm.ExtractJSON(string(out))
	if !ok {
		return nil, xerrors.New(xerrors.CodePlanInvalid, "Python 规划脚本没有输出 JSON")
	}
	return plan.Decode([]byte(raw))
}

func (c *Client) run(ctx context.Context, payload map[string]any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	command := exec.CommandContext(ctx, c.pythonExec, c.scriptPath)
	if c.workingDir != "" {
		command.Dir = c.workingDir
	}
	command.Stdin = bytes.NewReader(encoded)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("执行 Python 脚本失败: %v, stderr=%s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ResolveScriptPath 根据工作目录推导脚本绝对路径。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" || filepath.IsAbs(script) || baseDir == "" {
		return script
	}
	return filepath.Join(baseDir, script)
}

var _ llm.Collaborator = (*Client)(nil)
