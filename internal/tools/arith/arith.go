// Package arith 提供基础算术与组合数学工具。
package arith

import (
	"context"
	"math"

	"MathAgent/internal/tools"
)

// Tools 返回算术工具集合，按注册顺序排列。
func Tools() []tools.Tool {
	return []tools.Tool{
		binary("add", "返回 a + b", func(a, b float64) (float64, error) { return a + b, nil }),
		binary("subtract", "返回 a - b", func(a, b float64) (float64, error) { return a - b, nil }),
		binary("multiply", "返回 a * b", func(a, b float64) (float64, error) { return a * b, nil }),
		binary("power", "返回 a 的 b 次幂", power),
		unary("sqrt", "返回 value 的平方根", func(v float64) (float64, error) {
			if v < 0 {
				return 0, tools.Failf("负数 %v 没有实数平方根", v)
			}
			return math.Sqrt(v), nil
		}),
		unary("cbrt", "返回 value 的立方根", func(v float64) (float64, error) { return math.Cbrt(v), nil }),
		tools.New(tools.Spec{
			Name:        "number_list_to_sum",
			Description: "返回数值列表之和",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Nums("numbers", "要求和的数值")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			sum := 0.0
			for _, v := range args.Floats("numbers") {
				sum += v
			}
			return sum, nil
		}),
		binary("calculate_difference", "返回 a - b", func(a, b float64) (float64, error) { return a - b, nil }),
		tools.New(tools.Spec{
			Name:        "number_list_to_product",
			Description: "返回数值列表之积",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Nums("numbers", "要相乘的数值")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			numbers := args.Floats("numbers")
			if len(numbers) == 0 {
				return 0.0, nil
			}
			product := 1.0
			for _, v := range numbers {
				product *= v
			}
			return product, nil
		}),
		binary("calculate_division", "返回 a / b，b 不能为 0", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, tools.Failf("除数不能为 0")
			}
			return a / b, nil
		}),
		tools.New(tools.Spec{
			Name:        "calculate_percentage",
			Description: "返回 number 的 percent%",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Num("percent", "百分比，不小于 0"), tools.Num("number", "基数")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			percent := args.Float("percent")
			if percent < 0 {
				return nil, tools.Failf("百分比不能为负数: %v", percent)
			}
			return percent / 100 * args.Float("number"), nil
		}),
		tools.New(tools.Spec{
			Name:        "strings_to_chars_to_int",
			Description: "返回文本中每个字符的码点",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Text("text", "输入文本")},
			Result:      tools.NumericListResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			text := args.String("text")
			out := make([]float64, 0, len(text))
			for _, r := range text {
				out = append(out, float64(r))
			}
			return out, nil
		}),
		tools.New(tools.Spec{
			Name:        "int_list_to_exponential_values",
			Description: "返回列表中每个值的 e^x",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Nums("numbers", "指数列表")},
			Result:      tools.NumericListResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			numbers := args.Floats("numbers")
			out := make([]float64, len(numbers))
			for i, v := range numbers {
				out[i] = math.Exp(v)
			}
			return out, nil
		}),
		tools.New(tools.Spec{
			Name:        "fibonacci_numbers",
			Description: "返回前 n 个斐波那契数",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Int("n", "个数，不小于 0")},
			Result:      tools.NumericListResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			n := args.Int("n")
			if n < 0 {
				return nil, tools.Failf("n 不能为负数: %d", n)
			}
			return Fibonacci(n), nil
		}),
		tools.New(tools.Spec{
			Name:        "calculate_factorial",
			Description: "返回 [0!, 1!, ..., (n-1)!]，n 为 0 时返回 [1]",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Int("n", "个数，不小于 0")},
			Result:      tools.NumericListResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			n := args.Int("n")
			if n < 0 {
				return nil, tools.Failf("n 不能为负数: %d", n)
			}
			return Factorials(n), nil
		}),
		tools.New(tools.Spec{
			Name:        "calculate_permutation",
			Description: "返回排列数 P(n, r)",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Int("n", "总数"), tools.Int("r", "选取数")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			n, r := args.Int("n"), args.Int("r")
			if err := checkChoose(n, r); err != nil {
				return nil, err
			}
			return Permutation(n, r), nil
		}),
		tools.New(tools.Spec{
			Name:        "calculate_combination",
			Description: "返回组合数 C(n, r)",
			Category:    tools.CategoryArithmetic,
			Params:      []tools.Param{tools.Int("n", "总数"), tools.Int("r", "选取数")},
			Result:      tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			n, r := args.Int("n"), args.Int("r")
			if err := checkChoose(n, r); err != nil {
				return nil, err
			}
			return Combination(n, r), nil
		}),
	}
}

func binary(name, description string, fn func(a, b float64) (float64, error)) tools.Tool {
	return tools.New(tools.Spec{
		Name:        name,
		Description: description,
		Category:    tools.CategoryArithmetic,
		Params:      []tools.Param{tools.Num("a", "第一个操作数"), tools.Num("b", "第二个操作数")},
		Result:      tools.NumericResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		return fn(args.Float("a"), args.Float("b"))
	})
}

func unary(name, description string, fn func(v float64) (float64, error)) tools.Tool {
	return tools.New(tools.Spec{
		Name:        name,
		Description: description,
		Category:    tools.CategoryArithmetic,
		Params:      []tools.Param{tools.Num("value", "操作数")},
		Result:      tools.NumericResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		return fn(args.Float("value"))
	})
}

func power(a, b float64) (float64, error) {
	v := math.Pow(a, b)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, tools.Failf("%v 的 %v 次幂不是有限实数", a, b)
	}
	return v, nil
}

func checkChoose(n, r int) error {
	if n < 0 || r < 0 {
		return tools.Failf("n 和 r 不能为负数")
	}
	if r > n {
		return tools.Failf("r (%d) 不能大于 n (%d)", r, n)
	}
	return nil
}

// Fibonacci 返回前 n 个斐波那契数。
func Fibonacci(n int) []float64 {
	out := make([]float64, 0, n)
	a, b := 0.0, 1.0
	for range n {
		out = append(out, a)
		a, b = b, a+b
	}
	return out
}

// Factorials 返回 [0!, ..., (n-1)!]；n 为 0 时返回 [1]。
func Factorials(n int) []float64 {
	if n == 0 {
		return []float64{1}
	}
	out := make([]float64, n)
	acc := 1.0
	for i := range n {
		if i > 0 {
			acc *= float64(i)
		}
		out[i] = acc
	}
	return out
}

// Permutation 返回 n!/(n-r)!。
func Permutation(n, r int) float64 {
	out := 1.0
	for i := n - r + 1; i <= n; i++ {
		out *= float64(i)
	}
	return out
}

// Combination 返回 n!/(r!(n-r)!)。
func Combination(n, r int) float64 {
	if r > n-r {
		r = n - r
	}
	out := 1.0
	for i := 1; i <= r; i++ {
		out = out * float64(n-r+i) / float64(i)
	}
	return math.Round(out)
}
