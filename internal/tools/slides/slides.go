// Package slides 提供演示文稿工具。每个会话拥有一份草稿，关闭时以 YAML
// 文档写入输出目录。
package slides

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"MathAgent/internal/tools"
)

// Rectangle 是幻灯片上的矩形，坐标单位为英寸。
type Rectangle struct {
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
	X2 float64 `yaml:"x2"`
	Y2 float64 `yaml:"y2"`
}

// Deck 是一份单页演示文稿。
type Deck struct {
	Session    string      `yaml:"session"`
	OpenedAt   time.Time   `yaml:"opened_at"`
	ClosedAt   time.Time   `yaml:"closed_at,omitempty"`
	Rectangles []Rectangle `yaml:"rectangles,omitempty"`
	Texts      []string    `yaml:"texts,omitempty"`
}

// Studio 管理各会话的草稿。
type Studio struct {
	dir   string
	mu    sync.Mutex
	decks map[string]*Deck
}

// NewStudio 创建 Studio，dir 为空时使用 slides。
func NewStudio(dir string) *Studio {
	if dir == "" {
		dir = "slides"
	}
	return &Studio{dir: dir, decks: make(map[string]*Deck)}
}

// Path 返回会话文稿的输出路径。
func (s *Studio) Path(session string) string {
	return filepath.Join(s.dir, "deck_"+session+".yaml")
}

// Open 为会话新建草稿，已存在的草稿会被丢弃。
func (s *Studio) Open(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[session] = &Deck{Session: session, OpenedAt: time.Now().UTC()}
}

func (s *Studio) edit(session string, fn func(*Deck)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deck, ok := s.decks[session]
	if !ok {
		return tools.Failf("演示文稿尚未打开")
	}
	fn(deck)
	return nil
}

// Close 渲染并移除会话草稿，返回写入的文件路径。
func (s *Studio) Close(session string) (string, error) {
	s.mu.Lock()
	deck, ok := s.decks[session]
	delete(s.decks, session)
	s.mu.Unlock()
	if !ok {
		return "", tools.Failf("演示文稿尚未打开")
	}
	deck.ClosedAt = time.Now().UTC()
	data, err := yaml.Marshal(deck)
	if err != nil {
		return "", fmt.Errorf("渲染演示文稿失败: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	path := s.Path(session)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入演示文稿失败: %w", err)
	}
	return path, nil
}

// Tools 返回演示文稿工具。
func (s *Studio) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New(tools.Spec{
			Name:        "open_powerpoint",
			Description: "新建一份演示文稿",
			Category:    tools.CategoryPresentation,
			Result:      tools.TextResult,
		}, func(ctx context.Context, _ tools.Args) (any, error) {
			s.Open(tools.SessionFrom(ctx))
			return "PowerPoint opened successfully with a new presentation", nil
		}),
		tools.New(tools.Spec{
			Name:        "draw_rectangle",
			Description: "在第一页绘制矩形，坐标取值 1 到 8",
			Category:    tools.CategoryPresentation,
			Params: []tools.Param{
				tools.Int("x1", "左上角横坐标"), tools.Int("y1", "左上角纵坐标"),
				tools.Int("x2", "右下角横坐标"), tools.Int("y2", "右下角纵坐标"),
			},
			Result: tools.TextResult,
		}, func(ctx context.Context, args tools.Args) (any, error) {
			rect := Rectangle{X1: args.Float("x1"), Y1: args.Float("y1"), X2: args.Float("x2"), Y2: args.Float("y2")}
			if err := rect.validate(); err != nil {
				return nil, err
			}
			if err := s.edit(tools.SessionFrom(ctx), func(d *Deck) { d.Rectangles = append(d.Rectangles, rect) }); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Rectangle drawn from (%v,%v) to (%v,%v)", rect.X1, rect.Y1, rect.X2, rect.Y2), nil
		}),
		tools.New(tools.Spec{
			Name:        "add_text_in_powerpoint",
			Description: "在第一页添加文本",
			Category:    tools.CategoryPresentation,
			Params:      []tools.Param{tools.Text("text", "文本内容")},
			Result:      tools.TextResult,
		}, func(ctx context.Context, args tools.Args) (any, error) {
			text := args.String("text")
			if err := s.edit(tools.SessionFrom(ctx), func(d *Deck) { d.Texts = append(d.Texts, text) }); err != nil {
				return nil, err
			}
			return "Text added successfully", nil
		}),
		tools.New(tools.Spec{
			Name:        "close_powerpoint",
			Description: "保存并关闭演示文稿",
			Category:    tools.CategoryPresentation,
			Result:      tools.TextResult,
		}, func(ctx context.Context, _ tools.Args) (any, error) {
			path, err := s.Close(tools.SessionFrom(ctx))
			if err != nil {
				return nil, err
			}
			return "PowerPoint closed successfully: " + path, nil
		}),
	}
}

func (r Rectangle) validate() error {
	for _, v := range []float64{r.X1, r.Y1, r.X2, r.Y2} {
		if v < 1 || v > 8 {
			return tools.Failf("坐标必须在 1 到 8 之间: %v", v)
		}
	}
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return tools.Failf("右下角必须位于左上角的右下方")
	}
	return nil
}
