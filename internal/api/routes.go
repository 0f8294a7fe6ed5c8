package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mautops/budget-gin/internal/config"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Health          *HealthController
	Proposal        *ProposalController
	Budget          *BudgetController
	OperatingBudget *OperatingBudgetController
}

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, logger *logrus.Logger, ctrls *Controllers) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	// 预算更新按字段集合绑定,数字保留原始精度
	binding.EnableDecoderUseNumber = true

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	router.GET("/health", ctrls.Health.Check)
	router.GET("/metrics", MetricsHandler)
	if !config.IsProduction(cfg) {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit))
	v1.Use(IdentityMiddleware(cfg.Identity))
	v1.Use(SLAMonitorMiddleware(DefaultSLAConfig(), logger))
	{
		proposals := v1.Group("/proposals")
		{
			proposals.POST("", ctrls.Proposal.Create)
			proposals.GET("", ctrls.Proposal.List)
			proposals.GET("/:id", ctrls.Proposal.Get)
			proposals.PUT("/:id", ctrls.Proposal.Update)
			proposals.PATCH("/:id/status", ctrls.Proposal.UpdateStatus)
			proposals.DELETE("/:id", ctrls.Proposal.Delete)
			proposals.GET("/:id/history", ctrls.Proposal.History)
		}

		budgets := v1.Group("/business-budgets")
		{
			budgets.GET("", ctrls.Budget.List)
			budgets.POST("", ctrls.Budget.Create)
			budgets.GET("/statistics", ctrls.Budget.Statistics)
			budgets.GET("/:id", ctrls.Budget.Get)
			budgets.PUT("/:id", ctrls.Budget.Update)
			budgets.DELETE("/:id", ctrls.Budget.Delete)
			budgets.GET("/:id/history", ctrls.Budget.History)
		}

		operating := v1.Group("/operating-budgets")
		{
			operating.GET("", ctrls.OperatingBudget.ListBudgets)
			operating.POST("", ctrls.OperatingBudget.CreateBudget)
			operating.GET("/:id/executions", ctrls.OperatingBudget.ListExecutions)
			operating.POST("/:id/executions", ctrls.OperatingBudget.AddExecution)
			operating.POST("/:id/executions/from-proposal", ctrls.OperatingBudget.AddExecutionFromProposal)
			operating.PUT("/executions/:executionId", ctrls.OperatingBudget.UpdateExecution)
			operating.DELETE("/executions/:executionId", ctrls.OperatingBudget.DeleteExecution)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", c.Request.URL.Path)
	})

	return router
}
