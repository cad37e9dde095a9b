package task

import (
	"maps"

	"MathAgent/internal/agent"
	xerrors "MathAgent/internal/errors"
)

// Status 表示任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ExecutionResult 保存一次异步会话的结果摘要。
type ExecutionResult struct {
	SessionID   string             `json:"session_id"`
	Answer      string             `json:"answer"`
	Success     bool               `json:"success"`
	Counter     int                `json:"counter"`
	Rounds      int                `json:"rounds"`
	Trace       []agent.TraceEntry `json:"trace,omitempty"`
	Diagnostics []agent.Diagnostic `json:"diagnostics,omitempty"`
}

// ResultFrom 把会话结果转换为任务结果。
func ResultFrom(res *agent.Result) ExecutionResult {
	if res == nil {
		return ExecutionResult{}
	}
	return ExecutionResult{
		SessionID:   res.SessionID,
		Answer:      res.Answer,
		Success:     res.Success,
		Counter:     res.Counter,
		Rounds:      res.Rounds,
		Trace:       append([]agent.TraceEntry(nil), res.Trace...),
		Diagnostics: append([]agent.Diagnostic(nil), res.Diagnostics...),
	}
}

// Task 描述了排队执行的会话任务。
type Task struct {
	ID          string            `json:"id"`
	Query       string            `json:"query"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Status      Status            `json:"status"`
	Attempts    int               `json:"attempts"`
	MaxRetries  int               `json:"max_retries"`
	LastError   string            `json:"last_error,omitempty"`
	ErrorCode   string            `json:"error_code,omitempty"`
	Result      *ExecutionResult  `json:"result,omitempty"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

// Request 把任务还原为一次会话请求。
func (t *Task) Request() agent.Request {
	return agent.Request{Query: t.Query, Preferences: clonePreferences(t.Preferences)}
}

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
)

func init() {
	for code, attr := range map[xerrors.Code]xerrors.Attributes{
		CodeTaskNotFound:   {Message: "task not found", Severity: xerrors.SeverityInfo},
		CodeTaskConflict:   {Message: "task conflict", Severity: xerrors.SeverityWarning},
		CodeTaskCompleted:  {Message: "task already completed", Severity: xerrors.SeverityInfo},
		CodeTaskExhausted:  {Message: "task retries exhausted", Severity: xerrors.SeverityCritical, Alert: true},
		CodeTaskValidation: {Message: "task validation failed", Severity: xerrors.SeverityInfo},
		CodeTaskPublish:    {Message: "failed to publish task", Severity: xerrors.SeverityCritical, Retryable: true, Alert: true},
		CodeTaskProcessing: {Message: "task execution failed", Severity: xerrors.SeverityWarning, Retryable: true, Alert: true},
	} {
		xerrors.Register(code, attr)
	}
}

// 存储层返回的哨兵错误，可用 errors.Is 或 xerrors.HasCode 判断。
var (
	ErrTaskNotFound  = xerrors.New(CodeTaskNotFound, "task not found")
	ErrTaskConflict  = xerrors.New(CodeTaskConflict, "task conflict")
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed")
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted")
)

// Terminal 表示任务不会再被调度。
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}
