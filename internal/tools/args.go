package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args 是经过 Spec.Bind 规整后的参数集合。
type Args map[string]any

// Float 返回数值参数。
func (a Args) Float(name string) float64 {
	v, _ := a[name].(float64)
	return v
}

// Int 返回整数参数，Bind 已保证其为整数。
func (a Args) Int(name string) int {
	return int(a.Float(name))
}

// Floats 返回数值列表参数。
func (a Args) Floats(name string) []float64 {
	v, _ := a[name].([]float64)
	return v
}

// Bool 返回布尔参数。
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// Bools 返回布尔列表参数。
func (a Args) Bools(name string) []bool {
	v, _ := a[name].([]bool)
	return v
}

// String 返回文本参数。
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Has 判断可选参数是否提供。
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// FormatValue 把工具结果渲染为面向用户的文本。整数值不带小数点，
// 列表以逗号分隔。
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = formatFloat(f)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []bool:
		parts := make([]string, len(val))
		for i, b := range val {
			parts[i] = strconv.FormatBool(b)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return val.String()
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
