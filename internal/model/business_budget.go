package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetStatusPending 预算默认状态
const BudgetStatusPending = "대기"

// BusinessBudgetModel 事业预算数据模型
// ConfirmedExecutionAmount、UnexecutedAmount 为手工维护的列,
// 读取时由执行额汇总结果覆盖后返回
type BusinessBudgetModel struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`
	ProjectName              string          `gorm:"type:varchar(255);not null" json:"projectName"`
	InitiatorDepartment      string          `gorm:"type:varchar(128);index" json:"initiatorDepartment"`
	ExecutorDepartment       string          `gorm:"type:varchar(128);index" json:"executorDepartment"`
	BudgetCategory           string          `gorm:"type:varchar(64)" json:"budgetCategory"`
	BudgetAmount             decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"budgetAmount"`
	AdditionalBudget         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"additionalBudget"`
	StartDate                string          `gorm:"type:varchar(10)" json:"startDate"`
	EndDate                  string          `gorm:"type:varchar(10)" json:"endDate"`
	IsEssential              bool            `gorm:"not null" json:"isEssential"`
	ProjectPurpose           string          `gorm:"type:text" json:"projectPurpose"`
	BudgetYear               int             `gorm:"not null;index" json:"budgetYear"`
	Status                   string          `gorm:"type:varchar(32);not null;index" json:"status"`
	ExecutedAmount           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"executedAmount"`
	PendingAmount            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"pendingAmount"`
	ConfirmedExecutionAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"confirmedExecutionAmount"`
	UnexecutedAmount         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"unexecutedAmount"`
	HoldCancelReason         string          `gorm:"type:text" json:"holdCancelReason"`
	Notes                    string          `gorm:"type:text" json:"notes"`
	ITPlanReported           bool            `gorm:"not null" json:"itPlanReported"`
	CreatedBy                string          `gorm:"type:varchar(64)" json:"createdBy"`
	CreatedAt                time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt                time.Time       `gorm:"not null" json:"updatedAt"`

	Details   []BusinessBudgetDetailModel   `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"-"`
	Approvals []BusinessBudgetApprovalModel `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (BusinessBudgetModel) TableName() string {
	return "business_budgets"
}

// Validate 验证预算模型
func (b *BusinessBudgetModel) Validate() error {
	if b.ProjectName == "" {
		return errors.New("project name is required")
	}
	if b.BudgetYear <= 0 {
		return errors.New("budget year is required")
	}
	if b.BudgetAmount.IsNegative() || b.AdditionalBudget.IsNegative() {
		return errors.New("budget amount must not be negative")
	}
	return nil
}

// BusinessBudgetDetailModel 预算明细
type BusinessBudgetDetailModel struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	BudgetID  uint            `gorm:"not null;index" json:"budgetId"`
	ItemName  string          `gorm:"type:varchar(255);not null" json:"itemName"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"unitPrice"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	Notes     string          `gorm:"type:text" json:"notes"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TableName 指定表名
func (BusinessBudgetDetailModel) TableName() string {
	return "business_budget_details"
}

// BusinessBudgetApprovalModel 预算审批记录
type BusinessBudgetApprovalModel struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BudgetID     uint       `gorm:"not null;index" json:"budgetId"`
	ApproverName string     `gorm:"type:varchar(64);not null" json:"approverName"`
	ApproverRole string     `gorm:"type:varchar(64)" json:"approverRole"`
	Status       string     `gorm:"type:varchar(32);not null" json:"status"`
	Comment      string     `gorm:"type:text" json:"comment"`
	ApprovedAt   *time.Time `json:"approvedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TableName 指定表名
func (BusinessBudgetApprovalModel) TableName() string {
	return "business_budget_approvals"
}

// BusinessBudgetHistoryModel 预算变更历史,只追加
type BusinessBudgetHistoryModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BudgetID    uint      `gorm:"not null;index" json:"budgetId"`
	ChangedBy   string    `gorm:"type:varchar(64);not null" json:"changedBy"`
	ChangeType  string    `gorm:"type:varchar(32);not null" json:"changeType"`
	FieldName   string    `gorm:"type:varchar(64)" json:"fieldName"`
	OldValue    *string   `gorm:"type:text" json:"oldValue"`
	NewValue    *string   `gorm:"type:text" json:"newValue"`
	Description string    `gorm:"type:text" json:"description"`
	ChangedAt   time.Time `gorm:"not null;index" json:"changedAt"`
}

// TableName 指定表名
func (BusinessBudgetHistoryModel) TableName() string {
	return "business_budget_histories"
}
