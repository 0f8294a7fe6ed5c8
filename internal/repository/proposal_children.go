package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mautops/budget-gin/internal/allocation"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrItemIndexOutOfRange 分配行引用了不存在的采购项目下标
var ErrItemIndexOutOfRange = errors.New("purchase item index out of range")

// PurchaseItemInput 采购项目输入,金额由数量和单价计算
type PurchaseItemInput struct {
	Item               string          `json:"item"`
	ProductName        string          `json:"productName"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	Supplier           string          `json:"supplier"`
	RequestDepartment  string          `json:"requestDepartment"`
	ContractPeriodType string          `json:"contractPeriodType"`
	ContractStartDate  string          `json:"contractStartDate"`
	ContractEndDate    string          `json:"contractEndDate"`
}

// ServiceItemInput 用役项目输入,金额由期间和月单价计算
type ServiceItemInput struct {
	Item        string          `json:"item"`
	SkillLevel  string          `json:"skillLevel"`
	Personnel   int             `json:"personnel"`
	Period      decimal.Decimal `json:"period"`
	MonthlyRate decimal.Decimal `json:"monthlyRate"`
	Supplier    string          `json:"supplier"`
}

// AllocationInput 分配行输入,type 为空时按比例处理
type AllocationInput struct {
	Department string          `json:"department"`
	Type       string          `json:"type"`
	Value      decimal.Decimal `json:"value"`
}

// ItemAllocationInput 采购项目分配行输入
// ItemIndex 为该项目在 PurchaseItems 中的下标
type ItemAllocationInput struct {
	ItemIndex int `json:"itemIndex"`
	AllocationInput
}

// ApprovalStepInput 审批线步骤输入,step 按顺序从 1 开始编号
type ApprovalStepInput struct {
	Name          string `json:"name"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	IsConditional bool   `json:"isConditional"`
}

// ProposalChildren 禀议书的全部子记录
type ProposalChildren struct {
	PurchaseItems               []PurchaseItemInput   `json:"purchaseItems"`
	ServiceItems                []ServiceItemInput    `json:"serviceItems"`
	CostDepartments             []AllocationInput     `json:"costDepartments"`
	PurchaseItemCostAllocations []ItemAllocationInput `json:"purchaseItemCostAllocations"`
	ApprovalLine                []ApprovalStepInput   `json:"approvalLine"`
	RequestDepartments          []string              `json:"requestDepartments"`
}

// ItemsTotal 项目金额合计
func (c *ProposalChildren) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, it := range c.PurchaseItems {
		total = total.Add(PurchaseAmount(it.Quantity, it.UnitPrice))
	}
	for _, it := range c.ServiceItems {
		total = total.Add(ServiceAmount(it.Period, it.MonthlyRate))
	}
	return total
}

// HasItems 是否包含采购或用役项目
func (c *ProposalChildren) HasItems() bool {
	return c != nil && len(c.PurchaseItems)+len(c.ServiceItems) > 0
}

// PurchaseAmount 采购金额 = 数量 × 单价,取整
func PurchaseAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(0)
}

// ServiceAmount 用役金额 = 期间(月) × 月单价,取整
func ServiceAmount(period, monthlyRate decimal.Decimal) decimal.Decimal {
	return period.Mul(monthlyRate).Round(0)
}

// PurchaseItemView 读取时的采购项目,附带重建的分配行
type PurchaseItemView struct {
	model.PurchaseItemModel
	CostAllocations []allocation.Result `json:"costAllocations"`
}

// LoadedChildren 从数据库读取的子记录
type LoadedChildren struct {
	PurchaseItems      []PurchaseItemView        `json:"purchaseItems"`
	ServiceItems       []model.ServiceItemModel  `json:"serviceItems"`
	CostDepartments    []allocation.Result       `json:"costDepartments"`
	ApprovalLine       []model.ApprovalLineModel `json:"approvalLine"`
	RequestDepartments []string                  `json:"requestDepartments"`
}

// Input 转换回提交格式,分配行按采购项目下标重新编号
func (l *LoadedChildren) Input() *ProposalChildren {
	c := &ProposalChildren{}
	for i, it := range l.PurchaseItems {
		c.PurchaseItems = append(c.PurchaseItems, PurchaseItemInput{
			Item:               it.Item,
			ProductName:        it.ProductName,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice,
			Supplier:           it.Supplier,
			RequestDepartment:  it.RequestDepartment,
			ContractPeriodType: it.ContractPeriodType,
			ContractStartDate:  it.ContractStartDate,
			ContractEndDate:    it.ContractEndDate,
		})
		for _, a := range it.CostAllocations {
			c.PurchaseItemCostAllocations = append(c.PurchaseItemCostAllocations, ItemAllocationInput{
				ItemIndex:       i,
				AllocationInput: AllocationInput{Department: a.Department, Type: string(a.Type), Value: a.Value},
			})
		}
	}
	for _, it := range l.ServiceItems {
		c.ServiceItems = append(c.ServiceItems, ServiceItemInput{
			Item:        it.Item,
			SkillLevel:  it.SkillLevel,
			Personnel:   it.Personnel,
			Period:      it.Period,
			MonthlyRate: it.MonthlyRate,
			Supplier:    it.Supplier,
		})
	}
	for _, a := range l.CostDepartments {
		c.CostDepartments = append(c.CostDepartments, AllocationInput{Department: a.Department, Type: string(a.Type), Value: a.Value})
	}
	for _, step := range l.ApprovalLine {
		c.ApprovalLine = append(c.ApprovalLine, ApprovalStepInput{
			Name:          step.Name,
			Title:         step.Title,
			Description:   step.Description,
			IsConditional: step.IsConditional,
		})
	}
	c.RequestDepartments = append(c.RequestDepartments, l.RequestDepartments...)
	return c
}

// ChildSetManager 禀议书子记录管理器
// 所有写操作都在调用方传入的事务中执行
type ChildSetManager interface {
	Insert(tx *gorm.DB, proposal *model.ProposalModel, children *ProposalChildren) ([]allocation.Warning, error)
	Delete(tx *gorm.DB, proposalID uint) error
	Replace(tx *gorm.DB, proposal *model.ProposalModel, children *ProposalChildren) ([]allocation.Warning, error)
	Load(db *gorm.DB, proposalID uint) (*LoadedChildren, error)
}

// childSetManager 子记录管理器实现
type childSetManager struct{}

// NewChildSetManager 创建子记录管理器
func NewChildSetManager() ChildSetManager {
	return &childSetManager{}
}

// Insert 插入全部子记录
// 先插入采购/用役项目,再按 id 升序重新查询采购项目以确定下标到 id 的映射,最后插入分配行
func (m *childSetManager) Insert(tx *gorm.DB, proposal *model.ProposalModel, children *ProposalChildren) ([]allocation.Warning, error) {
	if children == nil {
		children = &ProposalChildren{}
	}

	if len(children.PurchaseItems) > 0 {
		rows := make([]model.PurchaseItemModel, 0, len(children.PurchaseItems))
		for _, it := range children.PurchaseItems {
			rows = append(rows, model.PurchaseItemModel{
				ProposalID:         proposal.ID,
				Item:               it.Item,
				ProductName:        it.ProductName,
				Quantity:           it.Quantity,
				UnitPrice:          it.UnitPrice,
				Amount:             PurchaseAmount(it.Quantity, it.UnitPrice),
				Supplier:           it.Supplier,
				RequestDepartment:  it.RequestDepartment,
				ContractPeriodType: it.ContractPeriodType,
				ContractStartDate:  it.ContractStartDate,
				ContractEndDate:    it.ContractEndDate,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to insert purchase items: %w", err)
		}
	}

	if len(children.ServiceItems) > 0 {
		rows := make([]model.ServiceItemModel, 0, len(children.ServiceItems))
		for _, it := range children.ServiceItems {
			rows = append(rows, model.ServiceItemModel{
				ProposalID:  proposal.ID,
				Item:        it.Item,
				SkillLevel:  it.SkillLevel,
				Personnel:   it.Personnel,
				Period:      it.Period,
				MonthlyRate: it.MonthlyRate,
				Amount:      ServiceAmount(it.Period, it.MonthlyRate),
				Supplier:    it.Supplier,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to insert service items: %w", err)
		}
	}

	var items []model.PurchaseItemModel
	if err := tx.Where("proposal_id = ?", proposal.ID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to query purchase items: %w", err)
	}

	var (
		costRows []model.CostDepartmentModel
		warnings []allocation.Warning
	)

	// 整个禀议书的分配行以禀议书总额为基数
	rows, w, err := allocationRows(proposal.ID, nil, proposal.TotalAmount, children.CostDepartments, "proposal")
	if err != nil {
		return nil, err
	}
	costRows = append(costRows, rows...)
	warnings = append(warnings, w...)

	grouped := make(map[int][]AllocationInput)
	for _, a := range children.PurchaseItemCostAllocations {
		if a.ItemIndex < 0 || a.ItemIndex >= len(items) {
			return nil, fmt.Errorf("%w: %d (have %d items)", ErrItemIndexOutOfRange, a.ItemIndex, len(items))
		}
		grouped[a.ItemIndex] = append(grouped[a.ItemIndex], a.AllocationInput)
	}
	for i, item := range items {
		specs, ok := grouped[i]
		if !ok {
			continue
		}
		itemID := item.ID
		rows, w, err := allocationRows(proposal.ID, &itemID, item.Amount, specs, fmt.Sprintf("purchaseItems[%d]", i))
		if err != nil {
			return nil, err
		}
		costRows = append(costRows, rows...)
		warnings = append(warnings, w...)
	}

	if len(costRows) > 0 {
		if err := tx.Create(&costRows).Error; err != nil {
			return nil, fmt.Errorf("failed to insert cost departments: %w", err)
		}
	}

	if len(children.ApprovalLine) > 0 {
		steps := make([]model.ApprovalLineModel, 0, len(children.ApprovalLine))
		for i, s := range children.ApprovalLine {
			steps = append(steps, model.ApprovalLineModel{
				ProposalID:    proposal.ID,
				Step:          i + 1,
				Name:          s.Name,
				Title:         s.Title,
				Description:   s.Description,
				IsConditional: s.IsConditional,
			})
		}
		if err := tx.Create(&steps).Error; err != nil {
			return nil, fmt.Errorf("failed to insert approval line: %w", err)
		}
	}

	if depts := NormalizeDepartments(children.RequestDepartments); len(depts) > 0 {
		rows := make([]model.RequestDepartmentModel, 0, len(depts))
		for _, d := range depts {
			rows = append(rows, model.RequestDepartmentModel{ProposalID: proposal.ID, Department: d})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to insert request departments: %w", err)
		}
	}

	return warnings, nil
}

// allocationRows 计算一组分配行
func allocationRows(proposalID uint, itemID *uint, base decimal.Decimal, inputs []AllocationInput, scope string) ([]model.CostDepartmentModel, []allocation.Warning, error) {
	if len(inputs) == 0 {
		return nil, nil, nil
	}

	specs := make([]allocation.Spec, 0, len(inputs))
	for _, in := range inputs {
		t, err := allocation.ParseType(in.Type)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, allocation.Spec{Department: strings.TrimSpace(in.Department), Type: t, Value: in.Value})
	}

	results, err := allocation.Allocate(base, specs)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]model.CostDepartmentModel, 0, len(results))
	for _, r := range results {
		rows = append(rows, model.CostDepartmentModel{
			ProposalID:     proposalID,
			PurchaseItemID: itemID,
			Department:     r.Department,
			AllocationType: string(r.Type),
			Ratio:          r.Value,
			Amount:         r.Amount,
		})
	}

	warnings := allocation.Reconcile(base, results)
	for i := range warnings {
		warnings[i].Scope = scope
	}
	return rows, warnings, nil
}

// Delete 删除全部子记录
// 先删除引用采购项目的分配行,再删除项目本身
func (m *childSetManager) Delete(tx *gorm.DB, proposalID uint) error {
	for _, target := range []struct {
		name  string
		model interface{}
	}{
		{"cost departments", &model.CostDepartmentModel{}},
		{"request departments", &model.RequestDepartmentModel{}},
		{"approval line", &model.ApprovalLineModel{}},
		{"purchase items", &model.PurchaseItemModel{}},
		{"service items", &model.ServiceItemModel{}},
	} {
		if err := tx.Where("proposal_id = ?", proposalID).Delete(target.model).Error; err != nil {
			return fmt.Errorf("failed to delete %s: %w", target.name, err)
		}
	}
	return nil
}

// Replace 删除并重建全部子记录,不做差异比较
func (m *childSetManager) Replace(tx *gorm.DB, proposal *model.ProposalModel, children *ProposalChildren) ([]allocation.Warning, error) {
	if err := m.Delete(tx, proposal.ID); err != nil {
		return nil, err
	}
	return m.Insert(tx, proposal, children)
}

// Load 读取全部子记录并重建分配行
func (m *childSetManager) Load(db *gorm.DB, proposalID uint) (*LoadedChildren, error) {
	var proposal model.ProposalModel
	if err := db.Select("id", "total_amount").Where("id = ?", proposalID).First(&proposal).Error; err != nil {
		return nil, err
	}

	var items []model.PurchaseItemModel
	if err := db.Where("proposal_id = ?", proposalID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load purchase items: %w", err)
	}

	var costs []model.CostDepartmentModel
	if err := db.Where("proposal_id = ?", proposalID).Order("id ASC").Find(&costs).Error; err != nil {
		return nil, fmt.Errorf("failed to load cost departments: %w", err)
	}

	out := &LoadedChildren{
		PurchaseItems:      make([]PurchaseItemView, 0, len(items)),
		ServiceItems:       []model.ServiceItemModel{},
		CostDepartments:    []allocation.Result{},
		ApprovalLine:       []model.ApprovalLineModel{},
		RequestDepartments: []string{},
	}

	byItem := make(map[uint][]allocation.Spec)
	var proposalSpecs []allocation.Spec
	for _, c := range costs {
		t, err := allocation.ParseType(c.AllocationType)
		if err != nil {
			return nil, err
		}
		spec := allocation.Spec{Department: c.Department, Type: t, Value: c.Ratio}
		if c.PurchaseItemID == nil {
			proposalSpecs = append(proposalSpecs, spec)
			continue
		}
		byItem[*c.PurchaseItemID] = append(byItem[*c.PurchaseItemID], spec)
	}

	results, err := allocation.Allocate(proposal.TotalAmount, proposalSpecs)
	if err != nil {
		return nil, err
	}
	out.CostDepartments = results

	for _, item := range items {
		results, err := allocation.Allocate(item.Amount, byItem[item.ID])
		if err != nil {
			return nil, err
		}
		out.PurchaseItems = append(out.PurchaseItems, PurchaseItemView{PurchaseItemModel: item, CostAllocations: results})
	}

	if err := db.Where("proposal_id = ?", proposalID).Order("id ASC").Find(&out.ServiceItems).Error; err != nil {
		return nil, fmt.Errorf("failed to load service items: %w", err)
	}
	if err := db.Where("proposal_id = ?", proposalID).Order("step ASC").Find(&out.ApprovalLine).Error; err != nil {
		return nil, fmt.Errorf("failed to load approval line: %w", err)
	}
	if err := db.Model(&model.RequestDepartmentModel{}).
		Where("proposal_id = ?", proposalID).
		Order("id ASC").
		Pluck("department", &out.RequestDepartments).Error; err != nil {
		return nil, fmt.Errorf("failed to load request departments: %w", err)
	}

	return out, nil
}

// NormalizeDepartments 去除首尾空白、过滤空值并按首次出现顺序去重
func NormalizeDepartments(depts []string) []string {
	seen := make(map[string]struct{}, len(depts))
	out := make([]string, 0, len(depts))
	for _, d := range depts {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
