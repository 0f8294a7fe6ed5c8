package repository

import (
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProposalSortFields 禀议书列表允许的排序字段
var ProposalSortFields = utils.SortFields{
	"id":           "id",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"totalAmount":  "total_amount",
	"proposalDate": "proposal_date",
	"approvalDate": "approval_date",
	"status":       "status",
}

// ProposalRepository 禀议书仓储接口
type ProposalRepository interface {
	Create(p *model.ProposalModel) error
	Save(p *model.ProposalModel) error
	FindByID(id uint) (*model.ProposalModel, error)
	Delete(id uint) error
	List(filter *ProposalFilter) ([]*model.ProposalModel, int64, error)
	SumApprovedByBudget(budgetIDs []uint) (map[uint]ApprovedTotal, error)
	CountByBudget(budgetID uint) (int64, error)
	DetachBudget(budgetID uint) (int64, error)
	StatusCounts() (map[string]int64, error)
}

// ProposalFilter 禀议书查询过滤器
// 所有条件均以参数绑定方式拼接
type ProposalFilter struct {
	Status       *string
	ContractType *string
	BudgetID     *uint
	CreatedBy    *string
	Keyword      *string
	SortBy       string
	Order        string
	Page         int
	PageSize     int
}

// ApprovedTotal 某个预算下已批准禀议书的金额合计
type ApprovedTotal struct {
	BudgetID uint
	Total    decimal.Decimal
	Count    int64
}

// proposalRepository 禀议书仓储实现
type proposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository 创建禀议书仓储
func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

// Create 创建禀议书,不级联写入子记录
func (r *proposalRepository) Create(p *model.ProposalModel) error {
	return r.db.Omit(clause.Associations).Create(p).Error
}

// Save 保存禀议书主记录
func (r *proposalRepository) Save(p *model.ProposalModel) error {
	return r.db.Omit(clause.Associations).Save(p).Error
}

// FindByID 根据 ID 查找禀议书
func (r *proposalRepository) FindByID(id uint) (*model.ProposalModel, error) {
	var p model.ProposalModel
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete 删除禀议书,子记录由外键级联删除
func (r *proposalRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&model.ProposalModel{}).Error
}

// List 根据过滤器分页查询
func (r *proposalRepository) List(filter *ProposalFilter) ([]*model.ProposalModel, int64, error) {
	if filter == nil {
		filter = &ProposalFilter{}
	}

	query := r.db.Model(&model.ProposalModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ContractType != nil {
		query = query.Where("contract_type = ?", *filter.ContractType)
	}
	if filter.BudgetID != nil {
		query = query.Where("budget_id = ?", *filter.BudgetID)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Keyword != nil && *filter.Keyword != "" {
		like := "%" + utils.EscapeLike(*filter.Keyword) + "%"
		query = query.Where(`(title LIKE ? ESCAPE '\' OR purpose LIKE ? ESCAPE '\')`, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, err := ProposalSortFields.OrderClause(filter.SortBy, filter.Order, "createdAt")
	if err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	var proposals []*model.ProposalModel
	err = query.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&proposals).Error
	return proposals, total, err
}

// SumApprovedByBudget 按预算汇总已批准禀议书金额
// 每次调用都是一次分组查询,不做缓存
func (r *proposalRepository) SumApprovedByBudget(budgetIDs []uint) (map[uint]ApprovedTotal, error) {
	out := make(map[uint]ApprovedTotal, len(budgetIDs))
	if len(budgetIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		BudgetID uint
		Total    decimal.Decimal
		Count    int64
	}
	err := r.db.Model(&model.ProposalModel{}).
		Select("budget_id, COALESCE(SUM(total_amount), 0) AS total, COUNT(*) AS count").
		Where("budget_id IN ? AND status = ?", budgetIDs, model.ProposalStatusApproved).
		Group("budget_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.BudgetID] = ApprovedTotal{BudgetID: row.BudgetID, Total: row.Total.Round(2), Count: row.Count}
	}
	return out, nil
}

// CountByBudget 统计引用某预算的禀议书数量
func (r *proposalRepository) CountByBudget(budgetID uint) (int64, error) {
	var n int64
	err := r.db.Model(&model.ProposalModel{}).Where("budget_id = ?", budgetID).Count(&n).Error
	return n, err
}

// DetachBudget 解除禀议书与预算的关联
func (r *proposalRepository) DetachBudget(budgetID uint) (int64, error) {
	res := r.db.Model(&model.ProposalModel{}).
		Where("budget_id = ?", budgetID).
		Update("budget_id", nil)
	return res.RowsAffected, res.Error
}

// StatusCounts 按状态统计禀议书数量
func (r *proposalRepository) StatusCounts() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&model.ProposalModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// normalizePage 规范分页参数
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
