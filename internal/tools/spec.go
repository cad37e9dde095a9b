package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	xerrors "MathAgent/internal/errors"
)

// Role 描述参数或结果的语义角色，决定占位符替换时的类型转换方式。
type Role string

const (
	RoleNumeric    Role = "numeric"
	RoleBoolean    Role = "boolean"
	RoleText       Role = "text"
	RoleStructured Role = "structured"
)

// Valid 判断角色是否为支持的枚举值。
func (r Role) Valid() bool {
	switch r {
	case RoleNumeric, RoleBoolean, RoleText, RoleStructured:
		return true
	default:
		return false
	}
}

// Category 用于在目录中对工具分组。
type Category string

const (
	CategoryArithmetic   Category = "arithmetic"
	CategoryAlgebra      Category = "algebra"
	CategoryGeometry     Category = "geometry"
	CategoryStatistics   Category = "statistics"
	CategoryLogic        Category = "logic"
	CategoryData         Category = "data"
	CategoryReasoning    Category = "reasoning"
	CategoryDelivery     Category = "delivery"
	CategoryPresentation Category = "presentation"
)

// Param 声明工具的一个参数。
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Role        Role   `json:"role" yaml:"role"`
	List        bool   `json:"list,omitempty" yaml:"list,omitempty"`
	Integer     bool   `json:"integer,omitempty" yaml:"integer,omitempty"`
	Optional    bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Shape 描述工具结果的类型。
type Shape struct {
	Role Role `json:"role" yaml:"role"`
	List bool `json:"list,omitempty" yaml:"list,omitempty"`
}

// Spec 是工具目录中的一项：名称、参数声明与结果声明。
type Spec struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Category    Category `json:"category" yaml:"category"`
	Params      []Param  `json:"params" yaml:"params"`
	Result      Shape    `json:"result" yaml:"result"`
}

// Param 按名称查找参数声明。
func (s Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Roles 返回参数名到角色的映射。
func (s Spec) Roles() map[string]Param {
	out := make(map[string]Param, len(s.Params))
	for _, p := range s.Params {
		out[p.Name] = p
	}
	return out
}

// Signature 渲染形如 name(a: numeric, numbers: numeric[]) -> numeric 的签名。
func (s Spec) Signature() string {
	parts := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		typ := string(p.Role)
		if p.Integer {
			typ = "integer"
		}
		if p.List {
			typ += "[]"
		}
		if p.Optional {
			typ += "?"
		}
		parts = append(parts, p.Name+": "+typ)
	}
	result := string(s.Result.Role)
	if s.Result.List {
		result += "[]"
	}
	return fmt.Sprintf("%s(%s) -> %s", s.Name, strings.Join(parts, ", "), result)
}

// validate 检查声明本身是否合法，在注册阶段调用。
func (s Spec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "工具名称不能为空")
	}
	if !s.Result.Role.Valid() {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "工具 %s 的结果角色 %q 无效", s.Name, s.Result.Role)
	}
	seen := make(map[string]struct{}, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "工具 %s 存在未命名参数", s.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "工具 %s 的参数 %s 重复", s.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if !p.Role.Valid() {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "工具 %s 的参数 %s 角色 %q 无效", s.Name, p.Name, p.Role)
		}
		if p.Integer && p.Role != RoleNumeric {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "工具 %s 的参数 %s 只有数值角色可以声明为整数", s.Name, p.Name)
		}
	}
	return nil
}

// Check 校验参数是否符合声明。deferred 返回 true 的值（例如尚未替换的
// 步骤结果引用）跳过类型检查，只校验参数名。
func (s Spec) Check(params map[string]any, deferred func(any) bool) error {
	_, err := s.bind(params, deferred)
	return err
}

// Bind 校验参数并把值规整为声明的类型：数值为 float64，布尔为 bool，
// 文本为 string，列表为对应的切片。
func (s Spec) Bind(params map[string]any) (Args, error) {
	return s.bind(params, nil)
}

func (s Spec) bind(params map[string]any, deferred func(any) bool) (Args, error) {
	args := make(Args, len(params))
	unknown := make([]string, 0)
	for name := range params {
		if _, ok := s.Param(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, mismatch(s.Name, "未声明的参数 %s", strings.Join(unknown, ", "))
	}
	for _, p := range s.Params {
		raw, ok := params[p.Name]
		if !ok || raw == nil {
			if p.Optional {
				continue
			}
			return nil, mismatch(s.Name, "缺少参数 %s", p.Name)
		}
		if deferred != nil && deferred(raw) {
			args[p.Name] = raw
			continue
		}
		value, err := coerceParam(p, raw, deferred)
		if err != nil {
			return nil, mismatch(s.Name, "参数 %s: %v", p.Name, err)
		}
		args[p.Name] = value
	}
	return args, nil
}

func mismatch(tool, format string, args ...any) error {
	return xerrors.New(xerrors.CodeParameterMismatch, fmt.Sprintf(format, args...),
		xerrors.WithMetadata("tool", tool))
}

func coerceParam(p Param, raw any, deferred func(any) bool) (any, error) {
	if !p.List {
		return coerceScalar(p, raw)
	}
	items, ok := raw.([]any)
	if !ok {
		// 允许强类型切片直接传入。
		switch typed := raw.(type) {
		case []float64:
			items = make([]any, len(typed))
			for i, v := range typed {
				items[i] = v
			}
		case []int:
			items = make([]any, len(typed))
			for i, v := range typed {
				items[i] = v
			}
		case []string:
			items = make([]any, len(typed))
			for i, v := range typed {
				items[i] = v
			}
		case []bool:
			items = make([]any, len(typed))
			for i, v := range typed {
				items[i] = v
			}
		default:
			return nil, fmt.Errorf("期望列表，实际为 %T", raw)
		}
	}
	if deferred != nil && slices.ContainsFunc(items, deferred) {
		return raw, nil
	}
	switch p.Role {
	case RoleNumeric:
		out := make([]float64, len(items))
		for i, item := range items {
			v, err := coerceNumber(item, p.Integer)
			if err != nil {
				return nil, fmt.Errorf("第 %d 项: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case RoleBoolean:
		out := make([]bool, len(items))
		for i, item := range items {
			v, err := coerceBool(item)
			if err != nil {
				return nil, fmt.Errorf("第 %d 项: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case RoleText:
		out := make([]string, len(items))
		for i, item := range items {
			v, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("第 %d 项期望文本，实际为 %T", i, item)
			}
			out[i] = v
		}
		return out, nil
	default:
		return items, nil
	}
}

func coerceScalar(p Param, raw any) (any, error) {
	switch p.Role {
	case RoleNumeric:
		return coerceNumber(raw, p.Integer)
	case RoleBoolean:
		return coerceBool(raw)
	case RoleText:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64, int, int64, bool, json.Number:
			return FormatValue(v), nil
		default:
			return nil, fmt.Errorf("期望文本，实际为 %T", raw)
		}
	default:
		return raw, nil
	}
}

func coerceNumber(raw any, integer bool) (float64, error) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case int32:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("无法解析数值 %q", n)
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析数值 %q", n)
		}
		v = f
	default:
		return 0, fmt.Errorf("期望数值，实际为 %T", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("数值 %v 非有限值", v)
	}
	if integer && v != math.Trunc(v) {
		return 0, fmt.Errorf("期望整数，实际为 %v", v)
	}
	return v, nil
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("无法解析布尔值 %q", v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("期望布尔值，实际为 %T", raw)
	}
}
