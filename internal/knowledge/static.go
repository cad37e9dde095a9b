package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider 根据请求文本返回可作为背景事实的知识条目。
type Provider interface {
	Query(request string) []Snippet
}

// Snippet 描述一段可供规划方参考的知识，例如公式或工具使用提示。
type Snippet struct {
	Title     string   `json:"title" yaml:"title"`
	Content   string   `json:"content" yaml:"content"`
	Keywords  []string `json:"keywords" yaml:"keywords"`
	Tags      []string `json:"tags" yaml:"tags"`
	Relevance float64  `json:"relevance" yaml:"relevance"`
}

// Fact 返回写入事实库的文本。
func (s Snippet) Fact() string {
	if s.Title == "" {
		return s.Content
	}
	return s.Title + ": " + s.Content
}

// Score 返回条目的相关度，未配置时为 0.5。
func (s Snippet) Score() float64 {
	if s.Relevance <= 0 || s.Relevance > 1 {
		return 0.5
	}
	return s.Relevance
}

// StaticProvider 在内存中保存静态知识条目。
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态知识库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{items: items, maxResults: maxResults}
}

// LoadStaticProvider 从 JSON 或 YAML 文件加载知识条目，按扩展名区分格式。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识库路径失败: %w", err)
	}
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}

	var entries []Snippet
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &entries)
	default:
		err = json.Unmarshal(raw, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}
	return NewStaticProvider(entries, maxResults), nil
}

// Query 返回关键词或标签出现在请求中的条目；未配置关键词的条目总是命中。
func (p *StaticProvider) Query(request string) []Snippet {
	if p == nil {
		return nil
	}
	request = strings.ToLower(strings.TrimSpace(request))

	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, request) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

func matches(snippet Snippet, request string) bool {
	if len(snippet.Keywords) == 0 && len(snippet.Tags) == 0 {
		return true
	}
	for _, term := range append(append([]string{}, snippet.Keywords...), snippet.Tags...) {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if normalized != "" && strings.Contains(request, normalized) {
			return true
		}
	}
	return false
}

var _ Provider = (*StaticProvider)(nil)
