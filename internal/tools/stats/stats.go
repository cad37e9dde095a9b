// Package stats 基于 gonum 提供描述统计工具。
package stats

import (
	"context"
	"slices"

	"gonum.org/v1/gonum/stat"

	"MathAgent/internal/tools"
)

// Tools 返回统计工具集合。
func Tools() []tools.Tool {
	return []tools.Tool{
		series("mean", "返回算术平均值", 1, func(xs []float64) float64 { return stat.Mean(xs, nil) }),
		series("median", "返回中位数", 1, Median),
		series("variance", "返回样本方差", 2, func(xs []float64) float64 { return stat.Variance(xs, nil) }),
		series("std_dev", "返回样本标准差", 2, func(xs []float64) float64 { return stat.StdDev(xs, nil) }),
		tools.New(tools.Spec{
			Name:        "correlation",
			Description: "返回 xs 与 ys 的皮尔逊相关系数",
			Category:    tools.CategoryStatistics,
			Params:      []tools.Param{tools.Nums("xs", "第一组样本"), tools.Nums("ys", "第二组样本")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			xs, ys := args.Floats("xs"), args.Floats("ys")
			if len(xs) != len(ys) {
				return nil, tools.Failf("xs 与 ys 长度不一致: %d != %d", len(xs), len(ys))
			}
			if len(xs) < 2 {
				return nil, tools.Failf("至少需要 2 组样本")
			}
			return stat.Correlation(xs, ys, nil), nil
		}),
	}
}

// Median 返回中位数，偶数个样本时取中间两数的平均值。
func Median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func series(name, description string, least int, fn func([]float64) float64) tools.Tool {
	return tools.New(tools.Spec{
		Name:        name,
		Description: description,
		Category:    tools.CategoryStatistics,
		Params:      []tools.Param{tools.Nums("numbers", "样本")},
		Result:      tools.NumericResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		numbers := args.Floats("numbers")
		if len(numbers) < least {
			return nil, tools.Failf("%s 至少需要 %d 个样本", name, least)
		}
		return fn(numbers), nil
	})
}
