package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RefreshFunc 定期刷新的业务指标
type RefreshFunc func(ctx context.Context) error

// Collector 指标收集器,按 cron 表达式定期刷新
type Collector struct {
	db       *gorm.DB
	schedule string
	refresh  []RefreshFunc
	logger   *logrus.Logger
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, schedule string, logger *logrus.Logger, refresh ...RefreshFunc) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		db:       db,
		schedule: schedule,
		refresh:  refresh,
		logger:   logger,
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动指标收集器,启动时先执行一次
func (c *Collector) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, c.RunOnce); err != nil {
		return fmt.Errorf("invalid metrics schedule %q: %w", c.schedule, err)
	}
	c.RunOnce()
	c.cron.Start()
	return nil
}

// Stop 停止指标收集器并等待正在执行的任务结束
func (c *Collector) Stop() {
	c.cancel()
	<-c.cron.Stop().Done()
}

// RunOnce 执行一次采集,同一时刻只有一次采集在执行
func (c *Collector) RunOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := UpdateDatabaseConnections(c.db); err != nil {
		c.logger.WithError(err).Warn("failed to update database connection metrics")
	}
	for _, fn := range c.refresh {
		if c.ctx.Err() != nil {
			return
		}
		if err := fn(c.ctx); err != nil {
			c.logger.WithError(err).Warn("failed to refresh metrics")
		}
	}
}
