package service

import (
	"context"
	"fmt"

	"github.com/mautops/budget-gin/internal/execution"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetView 预算读取视图
// ConfirmedExecutionAmount 和 UnexecutedAmount 会被计算值覆盖
type BudgetView struct {
	model.BusinessBudgetModel
	TotalBudget           decimal.Decimal `json:"totalBudget"`
	BudgetExcessAmount    decimal.Decimal `json:"budgetExcessAmount"`
	ExecutionRate         int64           `json:"executionRate"`
	ApprovedProposalCount int64           `json:"approvedProposalCount"`
}

// ExecutionService 预算执行额汇总服务
// 每次读取都从已批准的禀议书重新计算,不做缓存
type ExecutionService interface {
	ForBudget(ctx context.Context, id uint) (*BudgetView, error)
	ForBudgets(ctx context.Context, budgets []*model.BusinessBudgetModel) ([]*BudgetView, error)
	Statistics(ctx context.Context, filter *repository.BudgetFilter) (*execution.Portfolio, error)
	RefreshMetrics(ctx context.Context) error
}

// executionService 执行额汇总服务实现
type executionService struct {
	db *gorm.DB
}

// NewExecutionService 创建执行额汇总服务
func NewExecutionService(db *gorm.DB) ExecutionService {
	return &executionService{db: db}
}

// ForBudget 计算单个预算的执行情况
func (s *executionService) ForBudget(ctx context.Context, id uint) (*BudgetView, error) {
	b, err := repository.NewBusinessBudgetRepository(s.db.WithContext(ctx)).FindByID(id)
	if err != nil {
		return nil, notFound(err, "budget", id)
	}
	views, err := s.ForBudgets(ctx, []*model.BusinessBudgetModel{b})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ForBudgets 批量计算预算执行情况,每次调用只执行一次分组查询
func (s *executionService) ForBudgets(ctx context.Context, budgets []*model.BusinessBudgetModel) ([]*BudgetView, error) {
	ids := make([]uint, 0, len(budgets))
	for _, b := range budgets {
		ids = append(ids, b.ID)
	}
	approved, err := repository.NewProposalRepository(s.db.WithContext(ctx)).SumApprovedByBudget(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to sum approved proposals: %w", err)
	}

	views := make([]*BudgetView, 0, len(budgets))
	for _, b := range budgets {
		views = append(views, buildView(b, approved[b.ID]))
	}
	return views, nil
}

// buildView 组合存储字段与计算字段
func buildView(b *model.BusinessBudgetModel, approved repository.ApprovedTotal) *BudgetView {
	summary := execution.Compute(figures(b), approved.Total, approved.Count)

	v := &BudgetView{
		BusinessBudgetModel:   *b,
		TotalBudget:           summary.TotalBudget,
		BudgetExcessAmount:    summary.BudgetExcessAmount,
		ExecutionRate:         summary.ExecutionRate,
		ApprovedProposalCount: summary.ApprovedProposalCount,
	}
	v.ConfirmedExecutionAmount = summary.ConfirmedExecutionAmount
	v.UnexecutedAmount = summary.UnexecutedAmount
	return v
}

func figures(b *model.BusinessBudgetModel) execution.BudgetFigures {
	return execution.BudgetFigures{
		BudgetAmount:     b.BudgetAmount,
		AdditionalBudget: b.AdditionalBudget,
		ExecutedAmount:   b.ExecutedAmount,
	}
}

// department 统计所用部门,优先执行部门
func department(b *model.BusinessBudgetModel) string {
	if b.ExecutorDepartment != "" {
		return b.ExecutorDepartment
	}
	if b.InitiatorDepartment != "" {
		return b.InitiatorDepartment
	}
	return "unassigned"
}

// Statistics 按部门和年度汇总执行情况
func (s *executionService) Statistics(ctx context.Context, filter *repository.BudgetFilter) (*execution.Portfolio, error) {
	budgets, err := repository.NewBusinessBudgetRepository(s.db.WithContext(ctx)).FindAll(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}
	views, err := s.ForBudgets(ctx, budgets)
	if err != nil {
		return nil, err
	}

	entries := make([]execution.Entry, 0, len(views))
	for _, v := range views {
		entries = append(entries, execution.Entry{
			Department: department(&v.BusinessBudgetModel),
			Year:       v.BudgetYear,
			Figures:    figures(&v.BusinessBudgetModel),
			Summary: execution.Summary{
				TotalBudget:              v.TotalBudget,
				ConfirmedExecutionAmount: v.ConfirmedExecutionAmount,
				BudgetExcessAmount:       v.BudgetExcessAmount,
				UnexecutedAmount:         v.UnexecutedAmount,
				ExecutionRate:            v.ExecutionRate,
				ApprovedProposalCount:    v.ApprovedProposalCount,
			},
		})
	}
	portfolio := execution.Rollup(entries)
	return &portfolio, nil
}

// RefreshMetrics 刷新预算组合和禀议书状态指标,由定时任务调用
func (s *executionService) RefreshMetrics(ctx context.Context) error {
	p, err := s.Statistics(ctx, nil)
	if err != nil {
		return err
	}
	f := func(d decimal.Decimal) float64 {
		v, _ := d.Float64()
		return v
	}
	metrics.UpdatePortfolio(metrics.PortfolioFigures{
		Total:         f(p.Overall.TotalBudget),
		Executed:      f(p.Overall.ExecutedAmount),
		Confirmed:     f(p.Overall.ConfirmedExecutionAmount),
		Excess:        f(p.Overall.BudgetExcessAmount),
		Unexecuted:    f(p.Overall.UnexecutedAmount),
		ExecutionRate: float64(p.Overall.ExecutionRate),
	})

	counts, err := repository.NewProposalRepository(s.db.WithContext(ctx)).StatusCounts()
	if err != nil {
		return fmt.Errorf("failed to count proposals: %w", err)
	}
	metrics.UpdateProposalsByStatus(counts)
	return nil
}
