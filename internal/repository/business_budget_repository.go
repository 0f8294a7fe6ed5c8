package repository

import (
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetSortFields 预算列表允许的排序字段
var BudgetSortFields = utils.SortFields{
	"id":           "id",
	"createdAt":    "created_at",
	"budgetYear":   "budget_year",
	"budgetAmount": "budget_amount",
	"projectName":  "project_name",
}

// BusinessBudgetRepository 事业预算仓储接口
type BusinessBudgetRepository interface {
	Create(b *model.BusinessBudgetModel) error
	Save(b *model.BusinessBudgetModel) error
	FindByID(id uint) (*model.BusinessBudgetModel, error)
	Exists(id uint) (bool, error)
	Delete(id uint) error
	List(filter *BudgetFilter) ([]*model.BusinessBudgetModel, int64, error)
	FindAll(filter *BudgetFilter) ([]*model.BusinessBudgetModel, error)
	SaveHistory(rows []*model.BusinessBudgetHistoryModel) error
	FindHistory(budgetID uint) ([]*model.BusinessBudgetHistoryModel, error)
}

// BudgetFilter 预算查询过滤器
type BudgetFilter struct {
	BudgetYear *int
	Department *string // 发起部门或执行部门
	Status     *string
	Keyword    *string
	SortBy     string
	Order      string
	Page       int
	PageSize   int
}

// businessBudgetRepository 事业预算仓储实现
type businessBudgetRepository struct {
	db *gorm.DB
}

// NewBusinessBudgetRepository 创建事业预算仓储
func NewBusinessBudgetRepository(db *gorm.DB) BusinessBudgetRepository {
	return &businessBudgetRepository{db: db}
}

// Create 创建预算
func (r *businessBudgetRepository) Create(b *model.BusinessBudgetModel) error {
	return r.db.Omit(clause.Associations).Create(b).Error
}

// Save 保存预算
func (r *businessBudgetRepository) Save(b *model.BusinessBudgetModel) error {
	return r.db.Omit(clause.Associations).Save(b).Error
}

// FindByID 根据 ID 查找预算
func (r *businessBudgetRepository) FindByID(id uint) (*model.BusinessBudgetModel, error) {
	var b model.BusinessBudgetModel
	if err := r.db.Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// Exists 判断预算是否存在
func (r *businessBudgetRepository) Exists(id uint) (bool, error) {
	var n int64
	err := r.db.Model(&model.BusinessBudgetModel{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// Delete 删除预算,明细和审批记录由外键级联删除
func (r *businessBudgetRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&model.BusinessBudgetModel{}).Error
}

// scoped 应用过滤条件
func (r *businessBudgetRepository) scoped(filter *BudgetFilter) *gorm.DB {
	query := r.db.Model(&model.BusinessBudgetModel{})
	if filter == nil {
		return query
	}
	if filter.BudgetYear != nil {
		query = query.Where("budget_year = ?", *filter.BudgetYear)
	}
	if filter.Department != nil {
		query = query.Where("(initiator_department = ? OR executor_department = ?)", *filter.Department, *filter.Department)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Keyword != nil && *filter.Keyword != "" {
		query = query.Where(`project_name LIKE ? ESCAPE '\'`, "%"+utils.EscapeLike(*filter.Keyword)+"%")
	}
	return query
}

// List 分页查询预算
func (r *businessBudgetRepository) List(filter *BudgetFilter) ([]*model.BusinessBudgetModel, int64, error) {
	if filter == nil {
		filter = &BudgetFilter{}
	}
	query := r.scoped(filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, err := BudgetSortFields.OrderClause(filter.SortBy, filter.Order, "createdAt")
	if err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	var budgets []*model.BusinessBudgetModel
	err = query.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&budgets).Error
	return budgets, total, err
}

// FindAll 查询全部符合条件的预算,用于统计
func (r *businessBudgetRepository) FindAll(filter *BudgetFilter) ([]*model.BusinessBudgetModel, error) {
	var budgets []*model.BusinessBudgetModel
	err := r.scoped(filter).Order("id ASC").Find(&budgets).Error
	return budgets, err
}

// SaveHistory 追加预算变更历史
func (r *businessBudgetRepository) SaveHistory(rows []*model.BusinessBudgetHistoryModel) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.Create(&rows).Error
}

// FindHistory 按时间顺序查找预算变更历史
func (r *businessBudgetRepository) FindHistory(budgetID uint) ([]*model.BusinessBudgetHistoryModel, error) {
	var rows []*model.BusinessBudgetHistoryModel
	err := r.db.Where("budget_id = ?", budgetID).Order("changed_at ASC, id ASC").Find(&rows).Error
	return rows, err
}
