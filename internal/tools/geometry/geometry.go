// Package geometry 提供平面几何计算工具。
package geometry

import (
	"context"
	"math"

	"MathAgent/internal/tools"
)

// Tools 返回几何工具集合。长度类参数为负数时失败。
func Tools() []tools.Tool {
	return []tools.Tool{
		shape("circle_area", "返回半径为 radius 的圆面积",
			[]string{"radius"}, func(v []float64) float64 { return math.Pi * v[0] * v[0] }),
		shape("circle_circumference", "返回半径为 radius 的圆周长",
			[]string{"radius"}, func(v []float64) float64 { return 2 * math.Pi * v[0] }),
		shape("rectangle_area", "返回矩形面积",
			[]string{"width", "height"}, func(v []float64) float64 { return v[0] * v[1] }),
		shape("triangle_area", "返回三角形面积",
			[]string{"base", "height"}, func(v []float64) float64 { return v[0] * v[1] / 2 }),
		shape("hypotenuse", "返回直角边为 a、b 的斜边长",
			[]string{"a", "b"}, func(v []float64) float64 { return math.Hypot(v[0], v[1]) }),
		tools.New(tools.Spec{
			Name:        "distance_2d",
			Description: "返回平面上两点间的距离",
			Category:    tools.CategoryGeometry,
			Params: []tools.Param{
				tools.Num("x1", "起点横坐标"), tools.Num("y1", "起点纵坐标"),
				tools.Num("x2", "终点横坐标"), tools.Num("y2", "终点纵坐标"),
			},
			Result: tools.NumericResult,
		}, func(_ context.Context, args tools.Args) (any, error) {
			return math.Hypot(args.Float("x2")-args.Float("x1"), args.Float("y2")-args.Float("y1")), nil
		}),
	}
}

func shape(name, description string, lengths []string, fn func([]float64) float64) tools.Tool {
	params := make([]tools.Param, len(lengths))
	for i, l := range lengths {
		params[i] = tools.Num(l, "长度，不能为负数")
	}
	return tools.New(tools.Spec{
		Name:        name,
		Description: description,
		Category:    tools.CategoryGeometry,
		Params:      params,
		Result:      tools.NumericResult,
	}, func(_ context.Context, args tools.Args) (any, error) {
		values := make([]float64, len(lengths))
		for i, l := range lengths {
			v := args.Float(l)
			if v < 0 {
				return nil, tools.Failf("%s 不能为负数: %v", l, v)
			}
			values[i] = v
		}
		return fn(values), nil
	})
}
