package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"MathAgent/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// Config 描述调用 Gemini 所需的信息。Project 与 Location 同时配置时走 Vertex AI。
type Config struct {
	APIKey      string
	Model       string
	Project     string
	Location    string
	Temperature float32
}

// Client 通过 genai SDK 调用 Gemini。
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewClient 根据配置创建 Gemini 客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{}
	switch {
	case cfg.Project != "" && cfg.Location != "":
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	case strings.TrimSpace(cfg.APIKey) != "":
		cc.APIKey = strings.TrimSpace(cfg.APIKey)
		cc.Backend = genai.BackendGeminiAPI
	default:
		return nil, errors.New("Gemini 需要配置 api_key 或 project/location")
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{client: client, model: model, temperature: cfg.Temperature}, nil
}

// Complete 实现 llm.Generator。
func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	temperature := c.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       &temperature,
	}
	if prompt.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("调用 Gemini 失败: %w", err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", errors.New("Gemini 返回内容为空")
	}
	return text, nil
}

var _ llm.Generator = (*Client)(nil)
