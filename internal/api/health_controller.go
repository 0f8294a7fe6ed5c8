package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Checker 依赖健康检查
type Checker func(ctx context.Context) error

// HealthController 健康检查控制器
type HealthController struct {
	db       *gorm.DB
	checkers map[string]Checker
}

// NewHealthController 创建健康检查控制器
// checkers 为可选依赖(如 NATS),任一失败都视为不健康
func NewHealthController(db *gorm.DB, checkers map[string]Checker) *HealthController {
	return &HealthController{
		db:       db,
		checkers: checkers,
	}
}

// Check 健康检查
// @Summary      健康检查
// @Tags         系统
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	if c.db != nil {
		if err := c.checkDatabase(reqCtx); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	names := make([]string, 0, len(c.checkers))
	for name := range c.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.checkers[name](reqCtx); err != nil {
			status = "unhealthy"
			checks[name] = "unhealthy: " + err.Error()
		} else {
			checks[name] = "healthy"
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkDatabase 检查数据库连接
func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
