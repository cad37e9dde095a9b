package memory

import (
	"iter"
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "me": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "what": {}, "with": {}, "please": {},
}

// Keywords 把文本切分为小写关键词，忽略停用词和单字符词。
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Scored 是检索命中的事实及其得分。
type Scored struct {
	Fact
	Score float64
}

// Retrieve 返回与 query 有关键词重叠的事实，最多 max 条。
//
// 得分为命中的查询关键词占比乘以事实自身的相关度；排序依次按得分降序、
// 时间降序、插入顺序。返回的序列是惰性的，并且只能遍历一次。没有命中时
// 序列为空。
func (s *State) Retrieve(query string, max int) iter.Seq[Fact] {
	return s.RetrieveAbove(query, max, 0)
}

// RetrieveAbove 与 Retrieve 相同，但丢弃得分低于 minScore 的事实。
func (s *State) RetrieveAbove(query string, max int, minScore float64) iter.Seq[Fact] {
	scored := s.rank(query, max, minScore)
	consumed := false
	return func(yield func(Fact) bool) {
		if consumed {
			return
		}
		consumed = true
		for _, hit := range scored() {
			if !yield(hit.Fact) {
				return
			}
		}
	}
}

// rank 延迟到首次遍历时才计算排序结果。
func (s *State) rank(query string, max int, minScore float64) func() []Scored {
	facts := s.Facts()
	return func() []Scored {
		if max <= 0 {
			return nil
		}
		terms := Keywords(query)
		if len(terms) == 0 {
			return nil
		}
		type hit struct {
			Scored
			index int
		}
		hits := make([]hit, 0, len(facts))
		for i, fact := range facts {
			overlap := overlapRatio(terms, fact.Content)
			if overlap == 0 {
				continue
			}
			score := overlap * fact.Relevance
			if score < minScore {
				continue
			}
			hits = append(hits, hit{Scored: Scored{Fact: fact, Score: score}, index: i})
		}
		sort.SliceStable(hits, func(i, j int) bool {
			a, b := hits[i], hits[j]
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.After(b.Timestamp)
			}
			return a.index < b.index
		})
		if len(hits) > max {
			hits = hits[:max]
		}
		out := make([]Scored, len(hits))
		for i, h := range hits {
			out[i] = h.Scored
		}
		return out
	}
}

func overlapRatio(terms []string, content string) float64 {
	words := Keywords(content)
	if len(words) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	matched := 0
	for _, t := range terms {
		if _, ok := set[t]; ok {
			matched++
			continue
		}
		// 兼容单复数等简单词形差异。
		for w := range set {
			if len(t) > 3 && len(w) > 3 && (strings.HasPrefix(w, t) || strings.HasPrefix(t, w)) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(terms))
}
