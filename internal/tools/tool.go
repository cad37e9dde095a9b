package tools

import (
	"context"

	xerrors "MathAgent/internal/errors"
)

// Tool 是目录中可被调度的一项能力：接收已校验参数，返回类型化结果或失败。
type Tool interface {
	Spec() Spec
	Call(ctx context.Context, args Args) (any, error)
}

// CallFunc 是工具主体的函数签名。
type CallFunc func(ctx context.Context, args Args) (any, error)

type funcTool struct {
	spec Spec
	call CallFunc
}

// New 用声明和函数主体构造一个工具。
func New(spec Spec, call CallFunc) Tool {
	return &funcTool{spec: spec, call: call}
}

func (t *funcTool) Spec() Spec { return t.spec }

func (t *funcTool) Call(ctx context.Context, args Args) (any, error) {
	return t.call(ctx, args)
}

// Num 声明一个数值参数。
func Num(name, description string) Param {
	return Param{Name: name, Role: RoleNumeric, Description: description}
}

// Int 声明一个整数参数。
func Int(name, description string) Param {
	return Param{Name: name, Role: RoleNumeric, Integer: true, Description: description}
}

// Nums 声明一个数值列表参数。
func Nums(name, description string) Param {
	return Param{Name: name, Role: RoleNumeric, List: true, Description: description}
}

// Bool 声明一个布尔参数。
func Bool(name, description string) Param {
	return Param{Name: name, Role: RoleBoolean, Description: description}
}

// Bools 声明一个布尔列表参数。
func Bools(name, description string) Param {
	return Param{Name: name, Role: RoleBoolean, List: true, Description: description}
}

// Text 声明一个文本参数。
func Text(name, description string) Param {
	return Param{Name: name, Role: RoleText, Description: description}
}

var (
	// NumericResult 表示单个数值结果。
	NumericResult = Shape{Role: RoleNumeric}
	// NumericListResult 表示数值列表结果。
	NumericListResult = Shape{Role: RoleNumeric, List: true}
	// BooleanResult 表示布尔结果。
	BooleanResult = Shape{Role: RoleBoolean}
	// TextResult 表示文本结果。
	TextResult = Shape{Role: RoleText}
	// StructuredResult 表示结构化结果。
	StructuredResult = Shape{Role: RoleStructured}
)

// Failf 构造工具主体内部的执行失败。
func Failf(format string, args ...any) error {
	return xerrors.Newf(xerrors.CodeToolExecutionFailure, format, args...)
}
