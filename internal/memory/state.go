package memory

import (
	"maps"
	"time"
)

const (
	// DefaultRelevance 是未指定时事实的相关度。
	DefaultRelevance = 1.0
	// KeyOriginalRequest 是原始请求在上下文中的键名。
	KeyOriginalRequest = "original_request"
)

// 常用的事实来源标签。
const (
	SourcePerception = "perception"
	SourceTool       = "tool"
	SourceFailure    = "failure"
	SourceResponse   = "response"
	SourceKnowledge  = "knowledge"
	SourceSystem     = "system"
)

// Fact 是一条带时间戳的观察，创建后不再修改。
type Fact struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Relevance float64   `json:"relevance"`
}

// State 是一次会话的记忆状态。
type State struct {
	facts       []Fact
	preferences map[string]string
	context     map[string]any
	now         func() time.Time
}

// Option 定义可选配置。
type Option func(*State)

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPreferences 以给定偏好初始化状态。
func WithPreferences(prefs map[string]string) Option {
	return func(s *State) {
		maps.Copy(s.preferences, prefs)
	}
}

// New 创建空的记忆状态。
func New(opts ...Option) *State {
	s := &State{
		preferences: make(map[string]string),
		context:     make(map[string]any),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Store 以默认相关度追加一条事实。
func (s *State) Store(content, source string) Fact {
	return s.StoreScored(content, source, DefaultRelevance)
}

// StoreScored 追加一条事实，相关度被限制在 [0,1]。不做去重，也不会失败。
func (s *State) StoreScored(content, source string, relevance float64) Fact {
	fact := Fact{
		Content:   content,
		Timestamp: s.now(),
		Source:    source,
		Relevance: clamp(relevance),
	}
	s.facts = append(s.facts, fact)
	return fact
}

// Facts 按插入顺序返回全部事实的副本。
func (s *State) Facts() []Fact {
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// Len 返回事实数量。
func (s *State) Len() int { return len(s.facts) }

// SetPreference 设置偏好，后写覆盖先写。
func (s *State) SetPreference(key, value string) {
	s.preferences[key] = value
}

// Preferences 返回偏好的副本。
func (s *State) Preferences() map[string]string {
	return maps.Clone(s.preferences)
}

// SetContext 写入上下文，后写覆盖先写。
func (s *State) SetContext(key string, value any) {
	s.context[key] = value
}

// Context 返回上下文的副本。
func (s *State) Context() map[string]any {
	return maps.Clone(s.context)
}

// Request 返回上下文中的原始请求，不存在时为空串。
func (s *State) Request() string {
	v, _ := s.context[KeyOriginalRequest].(string)
	return v
}

// Snapshot 返回可持久化的完整状态。
func (s *State) Snapshot(sessionID string) Snapshot {
	return Snapshot{
		SessionID:   sessionID,
		Facts:       s.Facts(),
		Preferences: s.Preferences(),
		Context:     s.Context(),
		SavedAt:     s.now(),
	}
}

// Snapshot 是记忆状态的序列化形态。
type Snapshot struct {
	SessionID   string            `json:"session_id"`
	Facts       []Fact            `json:"facts"`
	Preferences map[string]string `json:"preferences"`
	Context     map[string]any    `json:"context"`
	SavedAt     time.Time         `json:"saved_at"`
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
