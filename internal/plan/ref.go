package plan

import (
	"sort"
	"strconv"
	"strings"
)

// RefPrefix 是引用前序步骤结果的占位符前缀，完整形式为 RESULT_FROM_STEP_<n>。
const RefPrefix = "RESULT_FROM_STEP_"

// Ref 返回引用第 n 步结果的占位符。
func Ref(n int) string {
	return RefPrefix + strconv.Itoa(n)
}

// ParseRef 判断 v 是否恰好是一个占位符，并返回被引用的步骤号。
// 只接受完全相等的形式，不做模糊匹配。
func ParseRef(v any) (int, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, RefPrefix) {
		return 0, false
	}
	digits := s[len(RefPrefix):]
	if digits == "" || digits[0] == '0' {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsRef 是 ParseRef 的布尔形式。
func IsRef(v any) bool {
	_, ok := ParseRef(v)
	return ok
}

// Refs 返回参数中引用的所有步骤号，升序去重。列表中的元素也会被检查。
func Refs(params map[string]any) []int {
	seen := make(map[int]struct{})
	for _, v := range params {
		if n, ok := ParseRef(v); ok {
			seen[n] = struct{}{}
			continue
		}
		if items, ok := v.([]any); ok {
			for _, item := range items {
				if n, ok := ParseRef(item); ok {
					seen[n] = struct{}{}
				}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }
