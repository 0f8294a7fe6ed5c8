package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 金额以数字形式输出,与前端保持一致
	decimal.MarshalJSONWithoutQuotes = true
}

// 禀议书状态
const (
	ProposalStatusDraft     = "draft"
	ProposalStatusSubmitted = "submitted"
	ProposalStatusApproved  = "approved"
	ProposalStatusRejected  = "rejected"
)

// 合同类型
const (
	ContractTypePurchase  = "purchase"
	ContractTypeService   = "service"
	ContractTypeChange    = "change"
	ContractTypeExtension = "extension"
	ContractTypeBidding   = "bidding"
	ContractTypeFreeform  = "freeform"
)

// ContractTypes 所有合法的合同类型
var ContractTypes = []string{
	ContractTypePurchase,
	ContractTypeService,
	ContractTypeChange,
	ContractTypeExtension,
	ContractTypeBidding,
	ContractTypeFreeform,
}

// IsValidContractType 判断合同类型是否合法
func IsValidContractType(t string) bool {
	for _, ct := range ContractTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// ProposalModel 禀议书数据模型
type ProposalModel struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ContractType   string          `gorm:"type:varchar(32);not null;index" json:"contractType"`
	Title          string          `gorm:"type:varchar(255)" json:"title"`
	Purpose        string          `gorm:"type:text" json:"purpose"`
	Basis          string          `gorm:"type:text" json:"basis"`
	BudgetID       *uint           `gorm:"index" json:"budgetId"`
	ContractMethod string          `gorm:"type:varchar(64)" json:"contractMethod"`
	AccountSubject string          `gorm:"type:varchar(128)" json:"accountSubject"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"totalAmount"`
	Status         string          `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	IsDraft        bool            `gorm:"not null" json:"isDraft"`
	CreatedBy      string          `gorm:"type:varchar(64);not null;index" json:"createdBy"`
	ProposalDate   *time.Time      `json:"proposalDate"`
	ApprovalDate   *time.Time      `json:"approvalDate"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (ProposalModel) TableName() string {
	return "proposals"
}

// Validate 验证禀议书模型
func (p *ProposalModel) Validate() error {
	if p.ContractType == "" {
		return errors.New("contract type is required")
	}
	if !IsValidContractType(p.ContractType) {
		return errors.New("invalid contract type")
	}
	if p.CreatedBy == "" {
		return errors.New("created by is required")
	}
	if p.Status == "" {
		return errors.New("proposal status is required")
	}
	return nil
}

// PurchaseItemModel 采购项目
type PurchaseItemModel struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ProposalID         uint            `gorm:"not null;index" json:"proposalId"`
	Item               string          `gorm:"type:varchar(255)" json:"item"`
	ProductName        string          `gorm:"type:varchar(255)" json:"productName"`
	Quantity           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"unitPrice"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	Supplier           string          `gorm:"type:varchar(255)" json:"supplier"`
	RequestDepartment  string          `gorm:"type:varchar(128)" json:"requestDepartment"`
	ContractPeriodType string          `gorm:"type:varchar(32)" json:"contractPeriodType"`
	ContractStartDate  string          `gorm:"type:varchar(10)" json:"contractStartDate"`
	ContractEndDate    string          `gorm:"type:varchar(10)" json:"contractEndDate"`
	CreatedAt          time.Time       `json:"createdAt"`

	Proposal        *ProposalModel        `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"-"`
	CostDepartments []CostDepartmentModel `gorm:"foreignKey:PurchaseItemID" json:"-"`
}

// TableName 指定表名
func (PurchaseItemModel) TableName() string {
	return "purchase_items"
}

// ServiceItemModel 用役项目
type ServiceItemModel struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProposalID  uint            `gorm:"not null;index" json:"proposalId"`
	Item        string          `gorm:"type:varchar(255)" json:"item"`
	SkillLevel  string          `gorm:"type:varchar(32)" json:"skillLevel"`
	Personnel   int             `gorm:"not null;default:0" json:"personnel"`
	Period      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"period"` // 月
	MonthlyRate decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"monthlyRate"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	Supplier    string          `gorm:"type:varchar(255)" json:"supplier"`
	CreatedAt   time.Time       `json:"createdAt"`

	Proposal *ProposalModel `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (ServiceItemModel) TableName() string {
	return "service_items"
}

// CostDepartmentModel 费用归属部门(分摊行)
// PurchaseItemID 为空表示分摊整个禀议书,而不是某个采购项目
type CostDepartmentModel struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ProposalID     uint            `gorm:"not null;index" json:"proposalId"`
	PurchaseItemID *uint           `gorm:"index" json:"purchaseItemId"`
	Department     string          `gorm:"type:varchar(128);not null" json:"department"`
	AllocationType string          `gorm:"type:varchar(16);not null;default:'percentage'" json:"allocationType"`
	Ratio          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"ratio"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	CreatedAt      time.Time       `json:"createdAt"`

	Proposal *ProposalModel `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (CostDepartmentModel) TableName() string {
	return "cost_departments"
}

// ApprovalLineModel 审批线
type ApprovalLineModel struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProposalID    uint      `gorm:"not null;index" json:"proposalId"`
	Step          int       `gorm:"not null" json:"step"`
	Name          string    `gorm:"type:varchar(64);not null" json:"name"`
	Title         string    `gorm:"type:varchar(64)" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	IsConditional bool      `gorm:"not null;default:false" json:"isConditional"`
	CreatedAt     time.Time `json:"createdAt"`

	Proposal *ProposalModel `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (ApprovalLineModel) TableName() string {
	return "approval_lines"
}

// RequestDepartmentModel 申请部门
type RequestDepartmentModel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProposalID uint      `gorm:"not null;index" json:"proposalId"`
	Department string    `gorm:"type:varchar(128);not null" json:"department"`
	CreatedAt  time.Time `json:"createdAt"`

	Proposal *ProposalModel `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (RequestDepartmentModel) TableName() string {
	return "request_departments"
}
