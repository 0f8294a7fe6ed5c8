package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OperatingBudgetModel 运营预算(전산운용비)
type OperatingBudgetModel struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AccountSubject string          `gorm:"type:varchar(128);not null;index" json:"accountSubject"`
	FiscalYear     int             `gorm:"not null;index" json:"fiscalYear"`
	BudgetAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"budgetAmount"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedBy      string          `gorm:"type:varchar(64)" json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	Executions []OperatingBudgetExecutionModel `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (OperatingBudgetModel) TableName() string {
	return "operating_budgets"
}

// Validate 验证运营预算模型
func (b *OperatingBudgetModel) Validate() error {
	if b.AccountSubject == "" {
		return errors.New("account subject is required")
	}
	if b.FiscalYear <= 0 {
		return errors.New("fiscal year is required")
	}
	if b.BudgetAmount.IsNegative() {
		return errors.New("budget amount must not be negative")
	}
	return nil
}

// OperatingBudgetExecutionModel 运营预算执行记录
// FromProposal 为 true 时 AccountSubject、ConfirmedExecutionAmount、ProposalName 不可修改
type OperatingBudgetExecutionModel struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`
	BudgetID                 uint            `gorm:"not null;index" json:"budgetId"`
	ProposalID               *uint           `gorm:"index" json:"proposalId"`
	ProposalName             string          `gorm:"type:varchar(255)" json:"proposalName"`
	AccountSubject           string          `gorm:"type:varchar(128);not null" json:"accountSubject"`
	ConfirmedExecutionAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"confirmedExecutionAmount"`
	ExecutionAmount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"executionAmount"`
	BillingPeriod            string          `gorm:"type:varchar(32)" json:"billingPeriod"`
	ExecutionDate            string          `gorm:"type:varchar(10)" json:"executionDate"`
	Notes                    string          `gorm:"type:text" json:"notes"`
	FromProposal             bool            `gorm:"not null" json:"fromProposal"`
	CreatedBy                string          `gorm:"type:varchar(64)" json:"createdBy"`
	CreatedAt                time.Time       `json:"createdAt"`
	UpdatedAt                time.Time       `json:"updatedAt"`
}

// TableName 指定表名
func (OperatingBudgetExecutionModel) TableName() string {
	return "operating_budget_executions"
}
