package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/budget-gin/internal/config"
	"github.com/mautops/budget-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// BuildSQLiteDSN 构建 SQLite DSN,始终开启外键约束
func BuildSQLiteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// poolConfigFrom 从配置中读取连接池参数,未设置的值使用默认值
func poolConfigFrom(cfg config.DatabaseConfig) *PoolConfig {
	pc := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		pc.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}
	return pc
}

// Connect 按配置的驱动连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return OpenSQLite(cfg.SQLitePath)
	}

	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pc := poolConfigFrom(cfg)
	sqlDB.SetMaxIdleConns(pc.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pc.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pc.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pc.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// OpenSQLite 打开 SQLite 数据库
// 只使用一个连接: 内存库每个连接都是独立的库,文件库写操作本身也是串行的
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(BuildSQLiteDSN(path)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.BusinessBudgetModel{},
		&model.BusinessBudgetDetailModel{},
		&model.BusinessBudgetApprovalModel{},
		&model.BusinessBudgetHistoryModel{},
		&model.ProposalModel{},
		&model.PurchaseItemModel{},
		&model.ServiceItemModel{},
		&model.CostDepartmentModel{},
		&model.ApprovalLineModel{},
		&model.RequestDepartmentModel{},
		&model.ProposalHistoryModel{},
		&model.OperatingBudgetModel{},
		&model.OperatingBudgetExecutionModel{},
		&model.AuditLogModel{},
		&model.EventModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes 创建组合索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		{"idx_proposals_budget_status", "CREATE INDEX IF NOT EXISTS idx_proposals_budget_status ON proposals(budget_id, status)"},
		{"idx_cost_departments_item", "CREATE INDEX IF NOT EXISTS idx_cost_departments_item ON cost_departments(proposal_id, purchase_item_id)"},
		{"idx_proposal_histories_changed", "CREATE INDEX IF NOT EXISTS idx_proposal_histories_changed ON proposal_histories(proposal_id, changed_at)"},
		{"idx_budget_histories_changed", "CREATE INDEX IF NOT EXISTS idx_budget_histories_changed ON business_budget_histories(budget_id, changed_at)"},
		{"idx_budgets_dept_year", "CREATE INDEX IF NOT EXISTS idx_budgets_dept_year ON business_budgets(executor_department, budget_year)"},
		{"idx_operating_budgets_subject_year", "CREATE INDEX IF NOT EXISTS idx_operating_budgets_subject_year ON operating_budgets(account_subject, fiscal_year)"},
		{"idx_events_status_created", "CREATE INDEX IF NOT EXISTS idx_events_status_created ON events(status, created_at)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}
	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
