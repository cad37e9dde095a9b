package errors

import "sync"

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于告警和审计。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// 基础设施错误码。
const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"
)

// 会话编排相关的错误码。步骤级错误只影响单个步骤，不会终止会话。
const (
	CodeIntentFailure        Code = "INTENT_FAILURE"
	CodePlanningFailure      Code = "PLANNING_FAILURE"
	CodePlanInvalid          Code = "PLAN_INVALID"
	CodeToolNotFound         Code = "TOOL_NOT_FOUND"
	CodeParameterMismatch    Code = "PARAMETER_MISMATCH"
	CodeDependencyUnmet      Code = "DEPENDENCY_UNMET"
	CodeToolExecutionFailure Code = "TOOL_EXECUTION_FAILURE"
	CodeBudgetExhausted      Code = "BUDGET_EXHAUSTED"
	CodePersistenceFailure   Code = "PERSISTENCE_FAILURE"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {"unknown error", SeverityCritical, false, true},
		CodeInvalidArgument:       {"invalid argument", SeverityInfo, false, false},
		CodeNotFound:              {"resource not found", SeverityInfo, false, false},
		CodeConflict:              {"resource conflict", SeverityWarning, false, false},
		CodeInitializationFailure: {"service not initialized", SeverityWarning, true, true},
		CodeStorageFailure:        {"storage failure", SeverityCritical, true, true},
		CodeQueueFailure:          {"queue failure", SeverityCritical, true, true},
		CodeTimeout:               {"operation timed out", SeverityWarning, true, true},

		CodeIntentFailure:        {"intent could not be determined", SeverityCritical, true, true},
		CodePlanningFailure:      {"planner returned no plan", SeverityWarning, true, false},
		CodePlanInvalid:          {"plan rejected before execution", SeverityWarning, false, false},
		CodeToolNotFound:         {"tool not in catalog", SeverityWarning, false, false},
		CodeParameterMismatch:    {"parameters do not match tool shape", SeverityWarning, false, false},
		CodeDependencyUnmet:      {"referenced step has no result", SeverityWarning, false, false},
		CodeToolExecutionFailure: {"tool execution failed", SeverityWarning, false, false},
		CodeBudgetExhausted:      {"session step budget exhausted", SeverityWarning, false, false},
		CodePersistenceFailure:   {"memory state could not be persisted", SeverityCritical, false, true},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}
