package llm

import (
	"encoding/json"
	"strings"

	xerrors "MathAgent/internal/errors"
)

// ExtractJSON 从模型输出中取出第一个完整的 JSON 对象，兼容 markdown 代码块
// 以及对象前后的说明文字。
func ExtractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeIntent 解析感知方输出。intent 字段为空视为失败。
func DecodeIntent(text string) (*Intent, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return nil, xerrors.New(xerrors.CodeIntentFailure, "感知输出中没有 JSON 对象")
	}
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeIntentFailure, err, "解析感知输出失败")
	}
	if strings.TrimSpace(intent.Label) == "" {
		return nil, xerrors.New(xerrors.CodeIntentFailure, "感知输出缺少 intent")
	}
	if intent.Confidence < 0 {
		intent.Confidence = 0
	}
	if intent.Confidence > 1 {
		intent.Confidence = 1
	}
	return &intent, nil
}
