package agent

import (
	"time"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/llm"
	"MathAgent/internal/plan"
)

// Stage 标识会话状态机中的阶段。
type Stage string

const (
	StageStart      Stage = "start"
	StagePerceiving Stage = "perceiving"
	StagePlanning   Stage = "planning"
	StageExecuting  Stage = "executing"
	StageDeciding   Stage = "deciding"
	StageFinalizing Stage = "finalizing"
)

// Outcome 是单个步骤的执行结果分类。
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeRejected 表示步骤在执行前被校验拒绝，没有消耗预算。
	OutcomeRejected Outcome = "rejected"
)

// TraceEntry 记录一个步骤的执行情况。
type TraceEntry struct {
	Round   int          `json:"round"`
	Step    int          `json:"step_number"`
	Kind    plan.Kind    `json:"kind"`
	Tool    string       `json:"tool_name,omitempty"`
	Outcome Outcome      `json:"outcome"`
	Value   string       `json:"value,omitempty"`
	Code    xerrors.Code `json:"code,omitempty"`
	Error   string       `json:"error,omitempty"`
	Elapsed string       `json:"elapsed,omitempty"`
}

// Diagnostic 记录会话级别的异常，例如感知失败或预算耗尽。
type Diagnostic struct {
	Stage   Stage        `json:"stage"`
	Round   int          `json:"round,omitempty"`
	Code    xerrors.Code `json:"code"`
	Message string       `json:"message"`
}

// Result 是返回给调用方的会话结果。任何失败都体现在 Diagnostics 和 Trace
// 中，Run 本身从不返回错误。
type Result struct {
	SessionID   string       `json:"session_id"`
	Query       string       `json:"query"`
	Intent      *llm.Intent  `json:"intent,omitempty"`
	Answer      string       `json:"answer"`
	Success     bool         `json:"success"`
	Counter     int          `json:"counter"`
	Rounds      int          `json:"rounds"`
	Trace       []TraceEntry `json:"trace"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Failed 返回 Trace 中失败或被拒绝的步骤数。
func (r *Result) Failed() int {
	n := 0
	for _, e := range r.Trace {
		if e.Outcome != OutcomeSucceeded {
			n++
		}
	}
	return n
}

// HasDiagnostic 判断会话是否记录了指定错误码的诊断信息。
func (r *Result) HasDiagnostic(code xerrors.Code) bool {
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}
