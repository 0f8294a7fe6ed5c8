package container

import (
	"fmt"
	"time"

	"github.com/mautops/budget-gin/internal/api"
	"github.com/mautops/budget-gin/internal/config"
	"github.com/mautops/budget-gin/internal/database"
	"github.com/mautops/budget-gin/internal/integration"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库、事件投递、服务和后台任务
type Container struct {
	cfg          *config.Config
	logger       *logrus.Logger
	db           *gorm.DB
	natsSink     *integration.NATSSink
	eventHandler *integration.EventHandler
	collector    *metrics.Collector

	proposalSvc  service.ProposalService
	budgetSvc    service.BudgetService
	operatingSvc service.OperatingBudgetService
	executionSvc service.ExecutionService
}

// NewContainer 创建依赖注入容器
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 1. 数据库(重试 3 次,指数退避)
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 事件投递,未配置 NATS 时只写日志
	var (
		sink     integration.Sink
		natsSink *integration.NATSSink
	)
	if cfg.NATS.URL != "" {
		natsSink, err = integration.NewNATSSink(cfg.NATS.URL)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to connect nats: %w", err)
		}
		sink = natsSink
	} else {
		sink = integration.NewLogSink(logger)
	}
	eventHandler := integration.NewEventHandler(db, sink, logger, integration.EventHandlerOptions{
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		Workers:       cfg.NATS.Workers,
		QueueSize:     cfg.NATS.QueueSize,
		MaxRetries:    cfg.NATS.MaxRetries,
	})

	// 3. 服务
	auditLogSvc := service.NewAuditLogService(db)
	executionSvc := service.NewExecutionService(db)

	c := &Container{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		natsSink:     natsSink,
		eventHandler: eventHandler,
		proposalSvc:  service.NewProposalService(db, auditLogSvc, eventHandler, logger),
		budgetSvc:    service.NewBudgetService(db, executionSvc, auditLogSvc, eventHandler, logger),
		operatingSvc: service.NewOperatingBudgetService(db, auditLogSvc, eventHandler, logger),
		executionSvc: executionSvc,
	}

	// 4. 指标定期刷新
	c.collector = metrics.NewCollector(db, cfg.Metrics.RefreshSchedule, logger, executionSvc.RefreshMetrics)

	return c, nil
}

// Start 启动后台任务
func (c *Container) Start() error {
	c.eventHandler.Start()
	if err := c.collector.Start(); err != nil {
		return fmt.Errorf("failed to start metrics collector: %w", err)
	}
	return nil
}

// Controllers 构建路由所需的控制器
func (c *Container) Controllers() *api.Controllers {
	checkers := map[string]api.Checker{}
	if c.natsSink != nil {
		checkers["nats"] = c.natsSink.Ping
	}
	return &api.Controllers{
		Health:          api.NewHealthController(c.db, checkers),
		Proposal:        api.NewProposalController(c.proposalSvc, c.logger),
		Budget:          api.NewBudgetController(c.budgetSvc, c.logger),
		OperatingBudget: api.NewOperatingBudgetController(c.operatingSvc, c.logger),
	}
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Close 按依赖顺序释放资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.eventHandler != nil {
		c.eventHandler.Stop()
	}
	if c.natsSink != nil {
		if err := c.natsSink.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to drain nats connection")
		}
	}
	if c.db != nil {
		return database.Close(c.db)
	}
	return nil
}
