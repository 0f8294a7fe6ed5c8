package repository

import (
	"github.com/mautops/budget-gin/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OperatingBudgetRepository 运营预算仓储接口
type OperatingBudgetRepository interface {
	Create(b *model.OperatingBudgetModel) error
	FindByID(id uint) (*model.OperatingBudgetModel, error)
	List(fiscalYear *int) ([]*model.OperatingBudgetModel, error)
	SumExecutions(budgetIDs []uint) (map[uint]decimal.Decimal, error)
	CreateExecution(e *model.OperatingBudgetExecutionModel) error
	SaveExecution(e *model.OperatingBudgetExecutionModel) error
	FindExecution(id uint) (*model.OperatingBudgetExecutionModel, error)
	FindExecutions(budgetID uint) ([]*model.OperatingBudgetExecutionModel, error)
	DeleteExecution(id uint) error
	ExistsForProposal(budgetID, proposalID uint) (bool, error)
}

// operatingBudgetRepository 运营预算仓储实现
type operatingBudgetRepository struct {
	db *gorm.DB
}

// NewOperatingBudgetRepository 创建运营预算仓储
func NewOperatingBudgetRepository(db *gorm.DB) OperatingBudgetRepository {
	return &operatingBudgetRepository{db: db}
}

// Create 创建运营预算
func (r *operatingBudgetRepository) Create(b *model.OperatingBudgetModel) error {
	return r.db.Omit(clause.Associations).Create(b).Error
}

// FindByID 根据 ID 查找运营预算
func (r *operatingBudgetRepository) FindByID(id uint) (*model.OperatingBudgetModel, error) {
	var b model.OperatingBudgetModel
	if err := r.db.Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// List 查询运营预算,可按会计年度过滤
func (r *operatingBudgetRepository) List(fiscalYear *int) ([]*model.OperatingBudgetModel, error) {
	query := r.db.Model(&model.OperatingBudgetModel{})
	if fiscalYear != nil {
		query = query.Where("fiscal_year = ?", *fiscalYear)
	}
	var budgets []*model.OperatingBudgetModel
	err := query.Order("fiscal_year DESC, account_subject ASC, id ASC").Find(&budgets).Error
	return budgets, err
}

// SumExecutions 按预算汇总执行金额
func (r *operatingBudgetRepository) SumExecutions(budgetIDs []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(budgetIDs))
	if len(budgetIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		BudgetID uint
		Total    decimal.Decimal
	}
	err := r.db.Model(&model.OperatingBudgetExecutionModel{}).
		Select("budget_id, COALESCE(SUM(execution_amount), 0) AS total").
		Where("budget_id IN ?", budgetIDs).
		Group("budget_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BudgetID] = row.Total.Round(2)
	}
	return out, nil
}

// CreateExecution 创建执行记录
func (r *operatingBudgetRepository) CreateExecution(e *model.OperatingBudgetExecutionModel) error {
	return r.db.Create(e).Error
}

// SaveExecution 保存执行记录
func (r *operatingBudgetRepository) SaveExecution(e *model.OperatingBudgetExecutionModel) error {
	return r.db.Save(e).Error
}

// FindExecution 根据 ID 查找执行记录
func (r *operatingBudgetRepository) FindExecution(id uint) (*model.OperatingBudgetExecutionModel, error) {
	var e model.OperatingBudgetExecutionModel
	if err := r.db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// FindExecutions 查找预算下的全部执行记录
func (r *operatingBudgetRepository) FindExecutions(budgetID uint) ([]*model.OperatingBudgetExecutionModel, error) {
	var rows []*model.OperatingBudgetExecutionModel
	err := r.db.Where("budget_id = ?", budgetID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// DeleteExecution 删除执行记录
func (r *operatingBudgetRepository) DeleteExecution(id uint) error {
	return r.db.Where("id = ?", id).Delete(&model.OperatingBudgetExecutionModel{}).Error
}

// ExistsForProposal 判断禀议书是否已登记为该预算的执行记录
func (r *operatingBudgetRepository) ExistsForProposal(budgetID, proposalID uint) (bool, error) {
	var n int64
	err := r.db.Model(&model.OperatingBudgetExecutionModel{}).
		Where("budget_id = ? AND proposal_id = ?", budgetID, proposalID).
		Count(&n).Error
	return n > 0, err
}
