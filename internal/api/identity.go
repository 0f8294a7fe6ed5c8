package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/config"
	"github.com/mautops/budget-gin/internal/service"
)

// IdentityMiddleware 解析调用方身份
// 认证由上游网关完成,这里只读取网关注入的用户头
func IdentityMiddleware(cfg config.IdentityConfig) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = "X-User-ID"
	}

	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(header))
		if userID == "" {
			userID = cfg.DefaultUser
		}
		c.Set("user_id", userID)

		ctx := service.WithRequestInfo(c.Request.Context(), service.RequestInfo{
			UserID:    userID,
			RequestID: c.GetString("request_id"),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// actorOf 当前请求的操作人
func actorOf(c *gin.Context) string {
	return c.GetString("user_id")
}
