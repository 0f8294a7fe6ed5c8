package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// RequestLogMiddleware 请求日志中间件
func RequestLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		// 指标按路由模板聚合,避免 id 造成标签膨胀
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(method, route, status, latency.Seconds())

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"user_id":    c.GetString("user_id"),
			"method":     method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
		})

		switch {
		case status >= 500:
			entry.Error("API request")
		case status >= 400:
			entry.Warn("API request")
		default:
			entry.Info("API request")
		}
	}
}
