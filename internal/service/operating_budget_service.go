package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OperatingBudgetService 运营预算服务接口
type OperatingBudgetService interface {
	CreateBudget(ctx context.Context, req *OperatingBudgetRequest, actor string) (*model.OperatingBudgetModel, error)
	ListBudgets(ctx context.Context, fiscalYear *int) ([]*OperatingBudgetView, error)
	ListExecutions(ctx context.Context, budgetID uint) ([]*model.OperatingBudgetExecutionModel, error)
	AddExecution(ctx context.Context, budgetID uint, req *ExecutionRequest, actor string) (*model.OperatingBudgetExecutionModel, error)
	AddExecutionFromProposal(ctx context.Context, budgetID, proposalID uint, req *ExecutionRequest, actor string) (*model.OperatingBudgetExecutionModel, error)
	UpdateExecution(ctx context.Context, id uint, req *ExecutionRequest, actor string) (*model.OperatingBudgetExecutionModel, error)
	DeleteExecution(ctx context.Context, id uint, actor string) error
}

// OperatingBudgetRequest 登记运营预算请求
type OperatingBudgetRequest struct {
	AccountSubject string          `json:"accountSubject"`
	FiscalYear     int             `json:"fiscalYear"`
	BudgetAmount   decimal.Decimal `json:"budgetAmount"`
	Notes          string          `json:"notes"`
}

// OperatingBudgetView 运营预算及执行合计
type OperatingBudgetView struct {
	model.OperatingBudgetModel
	ExecutedAmount  decimal.Decimal `json:"executedAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
}

// ExecutionRequest 执行记录请求
// 来自禀议书的记录不能修改科目、确定执行额和禀议书名称
type ExecutionRequest struct {
	ProposalName             *string          `json:"proposalName"`
	AccountSubject           *string          `json:"accountSubject"`
	ConfirmedExecutionAmount *decimal.Decimal `json:"confirmedExecutionAmount"`
	ExecutionAmount          *decimal.Decimal `json:"executionAmount"`
	BillingPeriod            *string          `json:"billingPeriod"`
	ExecutionDate            *string          `json:"executionDate"`
	Notes                    *string          `json:"notes"`
}

// operatingBudgetService 运营预算服务实现
type operatingBudgetService struct {
	db     *gorm.DB
	notify notifier
}

// NewOperatingBudgetService 创建运营预算服务
func NewOperatingBudgetService(db *gorm.DB, auditLogSvc AuditLogService, events EventPublisher, logger *logrus.Logger) OperatingBudgetService {
	return &operatingBudgetService{
		db:     db,
		notify: newNotifier(auditLogSvc, events, logger),
	}
}

// CreateBudget 登记运营预算
func (s *operatingBudgetService) CreateBudget(ctx context.Context, req *OperatingBudgetRequest, actor string) (*model.OperatingBudgetModel, error) {
	b := &model.OperatingBudgetModel{
		AccountSubject: strings.TrimSpace(req.AccountSubject),
		FiscalYear:     req.FiscalYear,
		BudgetAmount:   req.BudgetAmount.Round(2),
		Notes:          req.Notes,
		CreatedBy:      actor,
	}
	if err := b.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := repository.NewOperatingBudgetRepository(s.db.WithContext(ctx)).Create(b); err != nil {
		return nil, fmt.Errorf("failed to create operating budget: %w", err)
	}
	s.notify.after(ctx, actor, "create", model.ResourceOperatingBudget, strconv.FormatUint(uint64(b.ID), 10), "", b)
	return b, nil
}

// ListBudgets 查询运营预算,附带执行合计和剩余额
func (s *operatingBudgetService) ListBudgets(ctx context.Context, fiscalYear *int) ([]*OperatingBudgetView, error) {
	repo := repository.NewOperatingBudgetRepository(s.db.WithContext(ctx))
	budgets, err := repo.List(fiscalYear)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(budgets))
	for _, b := range budgets {
		ids = append(ids, b.ID)
	}
	sums, err := repo.SumExecutions(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to sum executions: %w", err)
	}

	views := make([]*OperatingBudgetView, 0, len(budgets))
	for _, b := range budgets {
		executed := sums[b.ID]
		views = append(views, &OperatingBudgetView{
			OperatingBudgetModel: *b,
			ExecutedAmount:       executed,
			RemainingAmount:      b.BudgetAmount.Sub(executed),
		})
	}
	return views, nil
}

// ListExecutions 查询运营预算的执行记录
func (s *operatingBudgetService) ListExecutions(ctx context.Context, budgetID uint) ([]*model.OperatingBudgetExecutionModel, error) {
	repo := repository.NewOperatingBudgetRepository(s.db.WithContext(ctx))
	if _, err := repo.FindByID(budgetID); err != nil {
		return nil, notFound(err, "operating budget", budgetID)
	}
	return repo.FindExecutions(budgetID)
}

// AddExecution 手工登记执行记录,科目缺省时取预算科目
func (s *operatingBudgetService) AddExecution(ctx context.Context, budgetID uint, req *ExecutionRequest, actor string) (*model.OperatingBudgetExecutionModel, error) {
	repo := repository.NewOperatingBudgetRepository(s.db.WithContext(ctx))
	b, err := repo.FindByID(budgetID)
	if err != nil {
		return nil, notFound(err, "operating budget", budgetID)
	}

	e := &model.OperatingBudgetExecutionModel{
		BudgetID:       budgetID,
		AccountSubject: b.AccountSubject,
		CreatedBy:      actor,
	}
	applyExecution(e, req)
	if err := validateExecution(e); err != nil {
		return nil, err
	}
	if err := repo.CreateExecution(e); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	s.notify.after(ctx, actor, "create", model.ResourceExecution, strconv.FormatUint(uint64(e.ID), 10), "", e)
	return e, nil
}

// AddExecutionFromProposal 由已批准的禀议书生成执行记录
// 科目、确定执行额和名称取自禀议书,之后不可修改
func (s *operatingBudgetService) AddExecutionFromProposal(ctx context.Context, budgetID, proposalID uint, req *ExecutionRequest, actor string) (*model.OperatingBudgetExecutionModel, error) {
	var e *model.OperatingBudgetExecutionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewOperatingBudgetRepository(tx)
		if _, err := repo.FindByID(budgetID); err != nil {
			return notFound(err, "operating budget", budgetID)
		}
		p, err := repository.NewProposalRepository(tx).FindByID(proposalID)
		if err != nil {
			return notFound(err, "proposal", proposalID)
		}
		if p.Status != model.ProposalStatusApproved {
			return invalid("proposalId", "proposal %d is %s, only approved proposals can be executed", proposalID, p.Status)
		}
		exists, err := repo.ExistsForProposal(budgetID, proposalID)
		if err != nil {
			return fmt.Errorf("failed to check execution: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: proposal %d", ErrDuplicateExecution, proposalID)
		}

		id := p.ID
		e = &model.OperatingBudgetExecutionModel{
			BudgetID:                 budgetID,
			ProposalID:               &id,
			ProposalName:             p.Title,
			AccountSubject:           p.AccountSubject,
			ConfirmedExecutionAmount: p.TotalAmount,
			ExecutionAmount:          p.TotalAmount,
			FromProposal:             true,
			CreatedBy:                actor,
		}
		if req != nil {
			if err := checkImmutable(e, req); err != nil {
				return err
			}
			applyExecution(e, req)
		}
		if err := validateExecution(e); err != nil {
			return err
		}
		if err := repo.CreateExecution(e); err != nil {
			return fmt.Errorf("failed to create execution: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.after(ctx, actor, "create", model.ResourceExecution, strconv.FormatUint(uint64(e.ID), 10), "execution.from_proposal", map[string]interface{}{
		"executionId": e.ID,
		"budgetId":    budgetID,
		"proposalId":  proposalID,
		"amount":      e.ConfirmedExecutionAmount,
	})
	return e, nil
}

// UpdateExecution 修改执行记录
func (s *operatingBudgetService) UpdateExecution(ctx context.Context, id uint, req *ExecutionRequest, actor string) (*model.OperatingBudgetExecutionModel, error) {
	repo := repository.NewOperatingBudgetRepository(s.db.WithContext(ctx))
	e, err := repo.FindExecution(id)
	if err != nil {
		return nil, notFound(err, "execution", id)
	}
	if e.FromProposal {
		if err := checkImmutable(e, req); err != nil {
			return nil, err
		}
	}
	applyExecution(e, req)
	if err := validateExecution(e); err != nil {
		return nil, err
	}
	if err := repo.SaveExecution(e); err != nil {
		return nil, fmt.Errorf("failed to update execution: %w", err)
	}
	s.notify.after(ctx, actor, "update", model.ResourceExecution, strconv.FormatUint(uint64(id), 10), "", e)
	return e, nil
}

// DeleteExecution 删除执行记录
func (s *operatingBudgetService) DeleteExecution(ctx context.Context, id uint, actor string) error {
	repo := repository.NewOperatingBudgetRepository(s.db.WithContext(ctx))
	e, err := repo.FindExecution(id)
	if err != nil {
		return notFound(err, "execution", id)
	}
	if err := repo.DeleteExecution(id); err != nil {
		return fmt.Errorf("failed to delete execution: %w", err)
	}
	s.notify.after(ctx, actor, "delete", model.ResourceExecution, strconv.FormatUint(uint64(id), 10), "", e)
	return nil
}

// checkImmutable 检查是否修改了来自禀议书的不可变字段
// 按写入时的规范化结果比较,值相同视为未修改
func checkImmutable(e *model.OperatingBudgetExecutionModel, req *ExecutionRequest) error {
	if req.AccountSubject != nil && strings.TrimSpace(*req.AccountSubject) != e.AccountSubject {
		return fmt.Errorf("%w: accountSubject", ErrImmutableField)
	}
	if req.ConfirmedExecutionAmount != nil && !req.ConfirmedExecutionAmount.Round(2).Equal(e.ConfirmedExecutionAmount) {
		return fmt.Errorf("%w: confirmedExecutionAmount", ErrImmutableField)
	}
	if req.ProposalName != nil && *req.ProposalName != e.ProposalName {
		return fmt.Errorf("%w: proposalName", ErrImmutableField)
	}
	return nil
}

// applyExecution 写入请求中出现的字段
func applyExecution(e *model.OperatingBudgetExecutionModel, req *ExecutionRequest) {
	if req == nil {
		return
	}
	if req.ProposalName != nil {
		e.ProposalName = *req.ProposalName
	}
	if req.AccountSubject != nil {
		e.AccountSubject = strings.TrimSpace(*req.AccountSubject)
	}
	if req.ConfirmedExecutionAmount != nil {
		e.ConfirmedExecutionAmount = req.ConfirmedExecutionAmount.Round(2)
	}
	if req.ExecutionAmount != nil {
		e.ExecutionAmount = req.ExecutionAmount.Round(2)
	}
	if req.BillingPeriod != nil {
		e.BillingPeriod = *req.BillingPeriod
	}
	if req.ExecutionDate != nil {
		e.ExecutionDate = *req.ExecutionDate
	}
	if req.Notes != nil {
		e.Notes = *req.Notes
	}
}

func validateExecution(e *model.OperatingBudgetExecutionModel) error {
	if e.AccountSubject == "" {
		return invalid("accountSubject", "is required")
	}
	if e.ExecutionAmount.IsNegative() || e.ConfirmedExecutionAmount.IsNegative() {
		return invalid("executionAmount", "must not be negative")
	}
	if e.ExecutionDate != "" {
		if _, err := parseDate("executionDate", e.ExecutionDate); err != nil {
			return err
		}
	}
	return nil
}
