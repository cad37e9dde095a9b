// Package algebra 提供一元方程求解与多项式求值工具。
package algebra

import (
	"context"
	"math"
	"sort"

	"MathAgent/internal/tools"
)

// Tools 返回代数工具集合。
func Tools() []tools.Tool {
	return []tools.Tool{
		tools.New(tools.Spec{
			Name:        "solve_linear",
			Description: "求解 a*x + b = 0",
			Category:    tools.CategoryAlgebra,
			Params:      []tools.Param{tools.Num("a", "一次项系数，不能为 0"), tools.Num("b", "常数项")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			a := args.Float("a")
			if a == 0 {
				return nil, tools.Failf("一次项系数不能为 0")
			}
			return -args.Float("b") / a, nil
		}),
		tools.New(tools.Spec{
			Name:        "solve_quadratic",
			Description: "求解 a*x^2 + b*x + c = 0 的实根，按升序返回",
			Category:    tools.CategoryAlgebra,
			Params: []tools.Param{
				tools.Num("a", "二次项系数，不能为 0"),
				tools.Num("b", "一次项系数"),
				tools.Num("c", "常数项"),
			},
			Result: tools.NumericListResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			return SolveQuadratic(args.Float("a"), args.Float("b"), args.Float("c"))
		}),
		tools.New(tools.Spec{
			Name:        "evaluate_polynomial",
			Description: "按从高次到低次的系数计算多项式在 x 处的值",
			Category:    tools.CategoryAlgebra,
			Params:      []tools.Param{tools.Nums("coefficients", "系数，最高次在前"), tools.Num("x", "自变量")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			coefficients := args.Floats("coefficients")
			if len(coefficients) == 0 {
				return nil, tools.Failf("系数列表不能为空")
			}
			x := args.Float("x")
			acc := 0.0
			for _, c := range coefficients {
				acc = acc*x + c
			}
			return acc, nil
		}),
	}
}

// SolveQuadratic 返回实根；判别式小于 0 时返回空列表。
func SolveQuadratic(a, b, c float64) ([]float64, error) {
	if a == 0 {
		return nil, tools.Failf("二次项系数不能为 0")
	}
	disc := b*b - 4*a*c
	switch {
	case disc < 0:
		return []float64{}, nil
	case disc == 0:
		return []float64{-b / (2 * a)}, nil
	}
	sq := math.Sqrt(disc)
	roots := []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)}
	sort.Float64s(roots)
	return roots, nil
}
