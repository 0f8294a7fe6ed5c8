package service

import "context"

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
	ipKey        contextKey = "ip"
	userAgentKey contextKey = "user_agent"
)

// RequestInfo 请求上下文信息,由中间件写入,审计日志读取
type RequestInfo struct {
	UserID    string
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestInfo 将请求信息写入 context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	ctx = context.WithValue(ctx, userIDKey, info.UserID)
	ctx = context.WithValue(ctx, requestIDKey, info.RequestID)
	ctx = context.WithValue(ctx, ipKey, info.IP)
	return context.WithValue(ctx, userAgentKey, info.UserAgent)
}

// RequestInfoFrom 从 context 读取请求信息
func RequestInfoFrom(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	value := func(k contextKey) string {
		s, _ := ctx.Value(k).(string)
		return s
	}
	return RequestInfo{
		UserID:    value(userIDKey),
		RequestID: value(requestIDKey),
		IP:        value(ipKey),
		UserAgent: value(userAgentKey),
	}
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	return RequestInfoFrom(ctx).IP
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	return RequestInfoFrom(ctx).UserAgent
}
