package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/config"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware 全局令牌桶限流
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS)
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
