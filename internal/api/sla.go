package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// SLA 监控的操作类型
const (
	OperationProposalSave   = "proposal_save"
	OperationStatusChange   = "status_change"
	OperationBudgetSave     = "budget_save"
	OperationBudgetQuery    = "budget_query"
	OperationProposalQuery  = "proposal_query"
	OperationExecutionWrite = "execution_write"
)

// SLAConfig 各操作的最大响应时间
type SLAConfig struct {
	Thresholds map[string]time.Duration
}

// DefaultSLAConfig 返回默认 SLA 配置
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{
		Thresholds: map[string]time.Duration{
			OperationProposalSave:   time.Second,
			OperationStatusChange:   500 * time.Millisecond,
			OperationBudgetSave:     time.Second,
			OperationBudgetQuery:    500 * time.Millisecond,
			OperationProposalQuery:  500 * time.Millisecond,
			OperationExecutionWrite: 500 * time.Millisecond,
		},
	}
}

// getOperation 按路由模板和方法归类操作
func getOperation(c *gin.Context) string {
	route := c.FullPath()
	method := c.Request.Method

	switch {
	case strings.HasSuffix(route, "/proposals/:id/status"):
		return OperationStatusChange
	case strings.Contains(route, "/proposals"):
		if method == http.MethodPost || method == http.MethodPut {
			return OperationProposalSave
		}
		if method == http.MethodGet {
			return OperationProposalQuery
		}
	case strings.Contains(route, "/business-budgets"):
		if method == http.MethodGet {
			return OperationBudgetQuery
		}
		return OperationBudgetSave
	case strings.Contains(route, "/executions") && method != http.MethodGet:
		return OperationExecutionWrite
	}
	return ""
}

// CheckSLA 检查是否在目标响应时间内,未配置的操作不检查
func (cfg *SLAConfig) CheckSLA(operation string, duration time.Duration) bool {
	limit, ok := cfg.Thresholds[operation]
	if !ok || limit <= 0 {
		return true
	}
	return duration <= limit
}

// SLAMonitorMiddleware SLA 监控中间件
// 超时的请求记录告警日志和指标
func SLAMonitorMiddleware(cfg *SLAConfig, logger *logrus.Logger) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultSLAConfig()
	}

	return func(c *gin.Context) {
		operation := getOperation(c)
		if operation == "" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		duration := time.Since(start)
		if !cfg.CheckSLA(operation, duration) {
			metrics.RecordSLAViolation(operation)
			logger.WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"operation":  operation,
				"path":       c.Request.URL.Path,
				"duration":   duration.String(),
				"expected":   cfg.Thresholds[operation].String(),
			}).Warn("SLA violation")
		}
	}
}
