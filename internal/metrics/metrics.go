package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 禀议书写操作数
	proposalOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposal_operations_total",
			Help: "Total number of proposal write operations",
		},
		[]string{"operation", "result"}, // create/update/delete, success/failure
	)

	// 禀议书状态转换数
	proposalStatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposal_status_transitions_total",
			Help: "Total number of proposal status transitions",
		},
		[]string{"from", "to"},
	)

	// 分配核对警告数
	allocationWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_warnings_total",
			Help: "Total number of cost allocation reconciliation warnings",
		},
		[]string{"code"},
	)

	// 预算变更历史行数
	budgetHistoryRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_history_rows_total",
			Help: "Total number of business budget history rows written",
		},
	)

	// 事件投递结果
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of outbox events delivered or failed",
		},
		[]string{"result"},
	)

	// 超出响应时间目标的请求数
	slaViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sla_violations_total",
			Help: "Total number of requests exceeding their response time objective",
		},
		[]string{"operation"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 禀议书状态分布
	proposalsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proposals_by_status",
			Help: "Number of proposals by status",
		},
		[]string{"status"},
	)

	// 预算组合执行情况
	budgetPortfolioAmount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "budget_portfolio_amount",
			Help: "Business budget portfolio figures in currency units",
		},
		[]string{"figure"}, // total, executed, confirmed, excess, unexecuted
	)

	budgetExecutionRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "budget_execution_rate_percent",
			Help: "Overall business budget execution rate",
		},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(proposalOperationsTotal)
	prometheus.MustRegister(proposalStatusTransitionsTotal)
	prometheus.MustRegister(allocationWarningsTotal)
	prometheus.MustRegister(budgetHistoryRowsTotal)
	prometheus.MustRegister(eventsPublishedTotal)
	prometheus.MustRegister(slaViolationsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(proposalsByStatus)
	prometheus.MustRegister(budgetPortfolioAmount)
	prometheus.MustRegister(budgetExecutionRate)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordProposalOperation 记录禀议书写操作
func RecordProposalOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	proposalOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordStatusTransition 记录状态转换
func RecordStatusTransition(from, to string) {
	proposalStatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordAllocationWarning 记录分配核对警告
func RecordAllocationWarning(code string) {
	allocationWarningsTotal.WithLabelValues(code).Inc()
}

// RecordBudgetHistoryRows 记录写入的预算历史行数
func RecordBudgetHistoryRows(n int) {
	budgetHistoryRowsTotal.Add(float64(n))
}

// RecordEventPublished 记录事件投递结果
func RecordEventPublished(ok bool) {
	if ok {
		eventsPublishedTotal.WithLabelValues("success").Inc()
		return
	}
	eventsPublishedTotal.WithLabelValues("failure").Inc()
}

// RecordSLAViolation 记录超时请求
func RecordSLAViolation(operation string) {
	slaViolationsTotal.WithLabelValues(operation).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateProposalsByStatus 更新禀议书状态分布指标
func UpdateProposalsByStatus(counts map[string]int64) {
	proposalsByStatus.Reset()
	for status, n := range counts {
		proposalsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// PortfolioFigures 预算组合指标值
type PortfolioFigures struct {
	Total         float64
	Executed      float64
	Confirmed     float64
	Excess        float64
	Unexecuted    float64
	ExecutionRate float64
}

// UpdatePortfolio 更新预算组合指标
func UpdatePortfolio(f PortfolioFigures) {
	budgetPortfolioAmount.WithLabelValues("total").Set(f.Total)
	budgetPortfolioAmount.WithLabelValues("executed").Set(f.Executed)
	budgetPortfolioAmount.WithLabelValues("confirmed").Set(f.Confirmed)
	budgetPortfolioAmount.WithLabelValues("excess").Set(f.Excess)
	budgetPortfolioAmount.WithLabelValues("unexecuted").Set(f.Unexecuted)
	budgetExecutionRate.Set(f.ExecutionRate)
}
