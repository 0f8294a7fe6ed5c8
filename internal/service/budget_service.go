package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mautops/budget-gin/internal/execution"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BudgetService 事业预算服务接口
type BudgetService interface {
	Create(ctx context.Context, req *BudgetRequest, actor string) (*BudgetView, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}, actor string) (*BudgetUpdateResult, error)
	Delete(ctx context.Context, id uint, force bool, actor string) (*BudgetDeleteResult, error)
	Get(ctx context.Context, id uint) (*BudgetView, error)
	List(ctx context.Context, filter *repository.BudgetFilter) ([]*BudgetView, int64, error)
	History(ctx context.Context, id uint) ([]*model.BusinessBudgetHistoryModel, error)
	Statistics(ctx context.Context, filter *repository.BudgetFilter) (*execution.Portfolio, error)
}

// BudgetRequest 登记预算请求
type BudgetRequest struct {
	ProjectName         string          `json:"projectName"`
	InitiatorDepartment string          `json:"initiatorDepartment"`
	ExecutorDepartment  string          `json:"executorDepartment"`
	BudgetCategory      string          `json:"budgetCategory"`
	BudgetAmount        decimal.Decimal `json:"budgetAmount"`
	AdditionalBudget    decimal.Decimal `json:"additionalBudget"`
	StartDate           string          `json:"startDate"`
	EndDate             string          `json:"endDate"`
	IsEssential         bool            `json:"isEssential"`
	ProjectPurpose      string          `json:"projectPurpose"`
	BudgetYear          int             `json:"budgetYear"`
	Status              string          `json:"status"`
	ExecutedAmount      decimal.Decimal `json:"executedAmount"`
	PendingAmount       decimal.Decimal `json:"pendingAmount"`
	HoldCancelReason    string          `json:"holdCancelReason"`
	Notes               string          `json:"notes"`
	ITPlanReported      bool            `json:"itPlanReported"`
}

// BudgetUpdateResult 更新结果
type BudgetUpdateResult struct {
	Budget  *BudgetView                         `json:"budget"`
	Changes []*model.BusinessBudgetHistoryModel `json:"changes"`
}

// BudgetDeleteResult 删除结果,DetachedProposals 为强制删除时解除关联的禀议书数量
type BudgetDeleteResult struct {
	BudgetID          uint  `json:"budgetId"`
	DetachedProposals int64 `json:"detachedProposals"`
}

// BudgetInUseError 预算仍被禀议书引用
type BudgetInUseError struct {
	BudgetID  uint
	Proposals int64
}

func (e *BudgetInUseError) Error() string {
	return fmt.Sprintf("budget %d is referenced by %d proposals; retry with force=true to detach them", e.BudgetID, e.Proposals)
}

// Unwrap 使 errors.Is(err, ErrBudgetInUse) 成立
func (e *BudgetInUseError) Unwrap() error {
	return ErrBudgetInUse
}

// budgetService 事业预算服务实现
type budgetService struct {
	db        *gorm.DB
	execution ExecutionService
	recorder  BudgetHistoryRecorder
	notify    notifier
}

// NewBudgetService 创建事业预算服务
func NewBudgetService(db *gorm.DB, executionSvc ExecutionService, auditLogSvc AuditLogService, events EventPublisher, logger *logrus.Logger) BudgetService {
	return &budgetService{
		db:        db,
		execution: executionSvc,
		notify:    newNotifier(auditLogSvc, events, logger),
	}
}

// Create 登记预算,登记时不写历史
func (s *budgetService) Create(ctx context.Context, req *BudgetRequest, actor string) (*BudgetView, error) {
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = model.BudgetStatusPending
	}
	b := &model.BusinessBudgetModel{
		ProjectName:         strings.TrimSpace(req.ProjectName),
		InitiatorDepartment: strings.TrimSpace(req.InitiatorDepartment),
		ExecutorDepartment:  strings.TrimSpace(req.ExecutorDepartment),
		BudgetCategory:      req.BudgetCategory,
		BudgetAmount:        req.BudgetAmount.Round(2),
		AdditionalBudget:    req.AdditionalBudget.Round(2),
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		IsEssential:         req.IsEssential,
		ProjectPurpose:      req.ProjectPurpose,
		BudgetYear:          req.BudgetYear,
		Status:              status,
		ExecutedAmount:      req.ExecutedAmount.Round(2),
		PendingAmount:       req.PendingAmount.Round(2),
		HoldCancelReason:    req.HoldCancelReason,
		Notes:               req.Notes,
		ITPlanReported:      req.ITPlanReported,
		CreatedBy:           actor,
	}
	if err := b.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := repository.NewBusinessBudgetRepository(s.db.WithContext(ctx)).Create(b); err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}

	s.notify.after(ctx, actor, "create", model.ResourceBusinessBudget, strconv.FormatUint(uint64(b.ID), 10), "budget.created", map[string]interface{}{
		"budgetId":     b.ID,
		"projectName":  b.ProjectName,
		"budgetYear":   b.BudgetYear,
		"budgetAmount": b.BudgetAmount,
	})
	return s.execution.ForBudget(ctx, b.ID)
}

// Update 按字段更新预算,每个变更字段写一行历史
// 请求中缺失的可追踪字段会被重置为缺省值
func (s *budgetService) Update(ctx context.Context, id uint, fields map[string]interface{}, actor string) (*BudgetUpdateResult, error) {
	if actor == "" {
		return nil, invalid("changedBy", "is required")
	}

	var rows []*model.BusinessBudgetHistoryModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBusinessBudgetRepository(tx)
		b, err := repo.FindByID(id)
		if err != nil {
			return notFound(err, "budget", id)
		}

		if err := s.recorder.ApplyUntracked(b, fields); err != nil {
			return err
		}
		rows, err = s.recorder.RecordChanges(tx, b, fields, actor)
		if err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return &ValidationError{Message: err.Error()}
		}
		if err := repo.Save(b); err != nil {
			return fmt.Errorf("failed to update budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBudgetHistoryRows(len(rows))
	changed := make([]string, 0, len(rows))
	for _, r := range rows {
		changed = append(changed, r.FieldName)
	}
	s.notify.after(ctx, actor, "update", model.ResourceBusinessBudget, strconv.FormatUint(uint64(id), 10), "budget.updated", map[string]interface{}{
		"budgetId": id,
		"fields":   changed,
	})

	view, err := s.execution.ForBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BudgetUpdateResult{Budget: view, Changes: rows}, nil
}

// Delete 删除预算
// 仍被禀议书引用时返回 BudgetInUseError; force 为 true 时先解除引用再删除
func (s *budgetService) Delete(ctx context.Context, id uint, force bool, actor string) (*BudgetDeleteResult, error) {
	result := &BudgetDeleteResult{BudgetID: id}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBusinessBudgetRepository(tx)
		if _, err := repo.FindByID(id); err != nil {
			return notFound(err, "budget", id)
		}

		proposals := repository.NewProposalRepository(tx)
		n, err := proposals.CountByBudget(id)
		if err != nil {
			return fmt.Errorf("failed to count proposals: %w", err)
		}
		if n > 0 {
			if !force {
				return &BudgetInUseError{BudgetID: id, Proposals: n}
			}
			if result.DetachedProposals, err = proposals.DetachBudget(id); err != nil {
				return fmt.Errorf("failed to detach proposals: %w", err)
			}
		}

		if err := repo.Delete(id); err != nil {
			return fmt.Errorf("failed to delete budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.after(ctx, actor, "delete", model.ResourceBusinessBudget, strconv.FormatUint(uint64(id), 10), "budget.deleted", result)
	return result, nil
}

// Get 获取预算及执行情况
func (s *budgetService) Get(ctx context.Context, id uint) (*BudgetView, error) {
	return s.execution.ForBudget(ctx, id)
}

// List 分页查询预算及执行情况
func (s *budgetService) List(ctx context.Context, filter *repository.BudgetFilter) ([]*BudgetView, int64, error) {
	budgets, total, err := repository.NewBusinessBudgetRepository(s.db.WithContext(ctx)).List(filter)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.execution.ForBudgets(ctx, budgets)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// History 查询预算变更历史
func (s *budgetService) History(ctx context.Context, id uint) ([]*model.BusinessBudgetHistoryModel, error) {
	repo := repository.NewBusinessBudgetRepository(s.db.WithContext(ctx))
	ok, err := repo.Exists(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: budget %d", ErrNotFound, id)
	}
	return repo.FindHistory(id)
}

// Statistics 按部门和年度汇总
func (s *budgetService) Statistics(ctx context.Context, filter *repository.BudgetFilter) (*execution.Portfolio, error) {
	return s.execution.Statistics(ctx, filter)
}
