// Package substitution rewrites step-result placeholders inside a tool call's
// parameters before the call is dispatched.
package substitution

import (
	"fmt"
	"strings"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/plan"
	"MathAgent/internal/tools"
)

const (
	// DefaultTitle 是合成文本的首行。
	DefaultTitle = "Math Agent Result"
	// DefaultFooter 是合成文本的末行。
	DefaultFooter = "Sent by Math Agent"
)

// Results 是按步骤号索引的已执行结果。
type Results map[int]tools.Result

// Engine 负责占位符替换。它没有副作用，对相同输入多次调用结果相同。
type Engine struct {
	title      string
	footer     string
	requestKey string
}

// Option 定义可选配置。
type Option func(*Engine)

// WithTitle 覆盖合成文本的标题。
func WithTitle(title string) Option {
	return func(e *Engine) { e.title = title }
}

// WithFooter 覆盖合成文本的页脚。
func WithFooter(footer string) Option {
	return func(e *Engine) { e.footer = footer }
}

// WithRequestKey 指定原始请求在上下文中的键名。
func WithRequestKey(key string) Option {
	return func(e *Engine) { e.requestKey = key }
}

// New 构造替换引擎。
func New(opts ...Option) *Engine {
	e := &Engine{title: DefaultTitle, footer: DefaultFooter, requestKey: "original_request"}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Apply 返回替换后的参数副本，不修改输入。
//
// 目标参数为数值、布尔或结构化角色时直接传入被引用步骤的类型化结果；
// 目标为文本角色时合成一段多行文本：标题、原始请求、结果、页脚。
// 被引用步骤未执行或失败时返回 DEPENDENCY_UNMET。
func (e *Engine) Apply(spec tools.Spec, params map[string]any, results Results, context map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for name, raw := range params {
		param, declared := spec.Param(name)
		if !declared {
			param = tools.Param{Name: name, Role: tools.RoleStructured}
		}
		value, err := e.resolve(param, raw, results, context)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func (e *Engine) resolve(param tools.Param, raw any, results Results, context map[string]any) (any, error) {
	if n, ok := plan.ParseRef(raw); ok {
		value, err := lookup(n, results)
		if err != nil {
			return nil, err
		}
		return e.coerce(param.Role, value, context), nil
	}
	items, ok := raw.([]any)
	if !ok {
		return raw, nil
	}
	resolved := make([]any, len(items))
	for i, item := range items {
		n, ok := plan.ParseRef(item)
		if !ok {
			resolved[i] = item
			continue
		}
		value, err := lookup(n, results)
		if err != nil {
			return nil, err
		}
		resolved[i] = e.coerce(param.Role, value, context)
	}
	return resolved, nil
}

func (e *Engine) coerce(role tools.Role, value any, context map[string]any) any {
	if role == tools.RoleText {
		return e.Message(request(context, e.requestKey), value)
	}
	return value
}

// Message 合成投递用文本。
func (e *Engine) Message(request string, value any) string {
	var b strings.Builder
	b.WriteString(e.title)
	b.WriteString("\n\nQuery: ")
	b.WriteString(request)
	b.WriteString("\nResult: ")
	b.WriteString(tools.FormatValue(value))
	b.WriteString("\n\n")
	b.WriteString(e.footer)
	return b.String()
}

func lookup(step int, results Results) (any, error) {
	res, ok := results[step]
	if !ok {
		return nil, xerrors.New(xerrors.CodeDependencyUnmet,
			fmt.Sprintf("引用的步骤 %d 尚未执行", step),
			xerrors.WithMetadata("step", fmt.Sprint(step)))
	}
	if !res.Success {
		return nil, xerrors.New(xerrors.CodeDependencyUnmet,
			fmt.Sprintf("引用的步骤 %d 未成功", step),
			xerrors.WithMetadata("step", fmt.Sprint(step)))
	}
	return res.Value, nil
}

func request(context map[string]any, key string) string {
	if context == nil {
		return ""
	}
	switch v := context[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
