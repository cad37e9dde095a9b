package tools

import (
	"sync"

	xerrors "MathAgent/internal/errors"
)

// Catalog 保存按注册顺序排列的工具集合，会话开始后视为只读。
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewCatalog 创建一个空目录。
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register 校验声明后注册工具，名称重复时返回错误。
func (c *Catalog) Register(tools ...Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		spec := tool.Spec()
		if err := spec.validate(); err != nil {
			return err
		}
		if _, exists := c.tools[spec.Name]; exists {
			return xerrors.Newf(xerrors.CodeConflict, "工具 %s 已注册", spec.Name)
		}
		c.tools[spec.Name] = tool
		c.order = append(c.order, spec.Name)
	}
	return nil
}

// MustRegister 与 Register 相同，但在失败时 panic，用于内置工具集。
func (c *Catalog) MustRegister(tools ...Tool) {
	if err := c.Register(tools...); err != nil {
		panic(err)
	}
}

// Lookup 按名称返回工具。
func (c *Catalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tool, ok := c.tools[name]
	return tool, ok
}

// Spec 按名称返回工具声明。
func (c *Catalog) Spec(name string) (Spec, bool) {
	tool, ok := c.Lookup(name)
	if !ok {
		return Spec{}, false
	}
	return tool.Spec(), true
}

// Has 判断工具是否在目录中。
func (c *Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Specs 按注册顺序返回所有声明。
func (c *Catalog) Specs() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	specs := make([]Spec, 0, len(c.order))
	for _, name := range c.order {
		specs = append(specs, c.tools[name].Spec())
	}
	return specs
}

// Len 返回工具数量。
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
