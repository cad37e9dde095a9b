package plan

import (
	"fmt"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/tools"
)

// Catalog 是校验所需的目录能力。
type Catalog interface {
	Spec(name string) (tools.Spec, bool)
}

// Validation 记录被拒绝的步骤。被拒绝的步骤不会执行，但不影响其他步骤。
type Validation struct {
	Rejected map[int]error
}

// Rejection 返回某一步骤的拒绝原因。
func (v Validation) Rejection(step int) error {
	if v.Rejected == nil {
		return nil
	}
	return v.Rejected[step]
}

// Validate 对计划做执行前检查。
//
// 步骤号必须从 1 开始严格递增且连续，否则整个计划被拒绝（PLAN_INVALID）。
// 工具不在目录中的步骤记为 TOOL_NOT_FOUND，参数不符合声明的步骤记为
// PARAMETER_MISMATCH；占位符引用在这一阶段只检查参数名，类型留到替换之后
// 由调度器再次校验。
func Validate(p *Plan, catalog Catalog) (Validation, error) {
	if p == nil {
		return Validation{}, xerrors.New(xerrors.CodePlanInvalid, "计划为空")
	}
	for i, step := range p.Steps {
		if step.Number != i+1 {
			return Validation{}, xerrors.New(xerrors.CodePlanInvalid,
				fmt.Sprintf("第 %d 个步骤的编号为 %d，步骤号必须从 1 开始连续递增", i+1, step.Number))
		}
		if step.Kind != KindToolCall && step.Kind != KindRespond {
			return Validation{}, xerrors.New(xerrors.CodePlanInvalid,
				fmt.Sprintf("步骤 %d 的类型 %q 不受支持", step.Number, step.Kind))
		}
	}

	v := Validation{Rejected: make(map[int]error)}
	for _, step := range p.Steps {
		if !step.IsToolCall() {
			continue
		}
		spec, ok := catalog.Spec(step.Tool)
		if !ok {
			v.Rejected[step.Number] = xerrors.New(xerrors.CodeToolNotFound,
				fmt.Sprintf("步骤 %d 引用的工具 %q 不在目录中", step.Number, step.Tool),
				xerrors.WithMetadata("tool", step.Tool))
			continue
		}
		if err := spec.Check(step.Params, IsRef); err != nil {
			v.Rejected[step.Number] = err
		}
	}
	return v, nil
}
