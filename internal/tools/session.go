package tools

import "context"

type sessionKey struct{}

// WithSession 把会话标识附加到调用上下文，供需要会话级状态的工具使用。
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom 返回上下文中的会话标识，未设置时为空串。
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
