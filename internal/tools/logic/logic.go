// Package logic 提供布尔逻辑工具。
package logic

import (
	"context"

	"MathAgent/internal/tools"
)

// Tools 返回逻辑工具集合。
func Tools() []tools.Tool {
	return []tools.Tool{
		list("logical_and", "所有值均为真时返回真", func(vs []bool) bool {
			for _, v := range vs {
				if !v {
					return false
				}
			}
			return true
		}),
		list("logical_or", "任一值为真时返回真", func(vs []bool) bool {
			for _, v := range vs {
				if v {
					return true
				}
			}
			return false
		}),
		tools.New(tools.Spec{
			Name:        "logical_not",
			Description: "返回 value 的否定",
			Category:    tools.CategoryLogic,
			Params:      []tools.Param{tools.Bool("value", "输入")},
			Result:      tools.BooleanResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			return !args.Bool("value"), nil
		}),
		pair("logical_xor", "a 与 b 恰有一个为真时返回真", "a", "b", func(a, b bool) bool { return a != b }),
		pair("implies", "返回 p → q", "p", "q", func(p, q bool) bool { return !p || q }),
	}
}

func list(name, description string, fn func([]bool) bool) tools.Tool {
	return tools.New(tools.Spec{
		Name:        name,
		Description: description,
		Category:    tools.CategoryLogic,
		Params:      []tools.Param{tools.Bools("values", "布尔值列表")},
		Result:      tools.BooleanResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		values := args.Bools("values")
		if len(values) == 0 {
			return nil, tools.Failf("values 不能为空")
		}
		return fn(values), nil
	})
}

func pair(name, description, left, right string, fn func(a, b bool) bool) tools.Tool {
	return tools.New(tools.Spec{
		Name:        name,
		Description: description,
		Category:    tools.CategoryLogic,
		Params:      []tools.Param{tools.Bool(left, "左操作数"), tools.Bool(right, "右操作数")},
		Result:      tools.BooleanResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		return fn(args.Bool(left), args.Bool(right)), nil
	})
}
