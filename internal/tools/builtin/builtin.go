// Package builtin 组装默认工具目录。
package builtin

import (
	"context"

	"MathAgent/internal/tools"
	"MathAgent/internal/tools/algebra"
	"MathAgent/internal/tools/arith"
	"MathAgent/internal/tools/delivery"
	"MathAgent/internal/tools/geometry"
	"MathAgent/internal/tools/logic"
	"MathAgent/internal/tools/salary"
	"MathAgent/internal/tools/slides"
	"MathAgent/internal/tools/stats"
)

// NonComputational 是默认的非计算类工具名单，它们的结果不计入最终答案。
var NonComputational = []string{
	"send_gmail",
	"open_powerpoint",
	"draw_rectangle",
	"add_text_in_powerpoint",
	"close_powerpoint",
}

// Options 提供需要外部资源的工具依赖。为 nil 的依赖对应的工具不注册，
// 邮件工具除外：未配置时仍注册，调用时返回失败。
type Options struct {
	Salary     *salary.Store
	Sender     delivery.Sender
	Recipients []string
	Studio     *slides.Studio
}

// Catalog 构造包含全部内置工具的目录。
func Catalog(opts Options) (*tools.Catalog, error) {
	catalog := tools.NewCatalog()
	if err := Register(catalog, opts); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Register 把内置工具注册到 catalog。
func Register(catalog *tools.Catalog, opts Options) error {
	groups := [][]tools.Tool{
		arith.Tools(),
		algebra.Tools(),
		geometry.Tools(),
		stats.Tools(),
		logic.Tools(),
		{Fallback()},
		delivery.Tools(opts.Sender, opts.Recipients),
	}
	if opts.Salary != nil {
		groups = append(groups, salary.Tools(opts.Salary))
	}
	if opts.Studio != nil {
		groups = append(groups, opts.Studio.Tools())
	}
	for _, group := range groups {
		if err := catalog.Register(group...); err != nil {
			return err
		}
	}
	return nil
}

// Fallback 返回 fallback_reasoning 工具，规划方在没有合适工具时用它记录推理。
func Fallback() tools.Tool {
	return tools.New(tools.Spec{
		Name:        "fallback_reasoning",
		Description: "没有合适工具时记录一段推理说明",
		Category:    tools.CategoryReasoning,
		Params:      []tools.Param{tools.Text("description", "推理说明")},
		Result:      tools.TextResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		return "Fallback invoked: " + args.String("description"), nil
	})
}
