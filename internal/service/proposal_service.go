package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mautops/budget-gin/internal/allocation"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProposalService 禀议书服务接口
// actor 为当前操作人,由调用层传入
type ProposalService interface {
	Create(ctx context.Context, req *ProposalRequest, actor string) (*SaveResult, error)
	Update(ctx context.Context, id uint, req *ProposalRequest, actor string) (*SaveResult, error)
	UpdateStatus(ctx context.Context, id uint, req *StatusRequest, actor string) (*model.ProposalModel, error)
	Delete(ctx context.Context, id uint, actor string) error
	Get(ctx context.Context, id uint) (*ProposalDetail, error)
	List(ctx context.Context, filter *repository.ProposalFilter) ([]*model.ProposalModel, int64, error)
	History(ctx context.Context, id uint) ([]*model.ProposalHistoryModel, error)
}

// ProposalRequest 创建或更新禀议书的请求
type ProposalRequest struct {
	ContractType   string          `json:"contractType"`
	Title          string          `json:"title"`
	Purpose        string          `json:"purpose"`
	Basis          string          `json:"basis"`
	BudgetID       *uint           `json:"budgetId"`
	ContractMethod string          `json:"contractMethod"`
	AccountSubject string          `json:"accountSubject"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	IsDraft        bool            `json:"isDraft"`
	CreatedBy      string          `json:"createdBy"`
	repository.ProposalChildren
}

// SaveResult 保存结果,warnings 为分配核对警告
type SaveResult struct {
	ProposalID uint                 `json:"proposalId"`
	Status     string               `json:"status"`
	Warnings   []allocation.Warning `json:"warnings"`
}

// ProposalDetail 禀议书详情,包含重建后的子记录
type ProposalDetail struct {
	model.ProposalModel
	repository.LoadedChildren
}

// proposalService 禀议书服务实现
type proposalService struct {
	db       *gorm.DB
	children repository.ChildSetManager
	states   ProposalStateMachine
	notify   notifier
	logger   *logrus.Logger
}

// NewProposalService 创建禀议书服务
func NewProposalService(db *gorm.DB, auditLogSvc AuditLogService, events EventPublisher, logger *logrus.Logger) ProposalService {
	n := newNotifier(auditLogSvc, events, logger)
	return &proposalService{
		db:       db,
		children: repository.NewChildSetManager(),
		notify:   n,
		logger:   n.logger,
	}
}

// validate 校验请求
// contractType 始终必填; 非草稿还要求目的、预算、科目和依据,且总额与项目金额合计一致
func (s *proposalService) validate(tx *gorm.DB, req *ProposalRequest, isDraft bool) error {
	if req.ContractType == "" {
		return invalid("contractType", "is required")
	}
	if !model.IsValidContractType(req.ContractType) {
		return invalid("contractType", "must be one of %s", strings.Join(model.ContractTypes, ", "))
	}
	if req.TotalAmount.IsNegative() {
		return invalid("totalAmount", "must not be negative")
	}

	if !isDraft {
		switch {
		case strings.TrimSpace(req.Purpose) == "":
			return invalid("purpose", "is required")
		case req.BudgetID == nil:
			return invalid("budgetId", "is required")
		case strings.TrimSpace(req.AccountSubject) == "":
			return invalid("accountSubject", "is required")
		case strings.TrimSpace(req.Basis) == "":
			return invalid("basis", "is required")
		}
		if req.HasItems() {
			if total := req.ItemsTotal(); !total.Equal(req.TotalAmount) {
				return invalid("totalAmount", "%s does not match line item total %s", req.TotalAmount.String(), total.String())
			}
		}
	}

	if req.BudgetID != nil {
		ok, err := repository.NewBusinessBudgetRepository(tx).Exists(*req.BudgetID)
		if err != nil {
			return fmt.Errorf("failed to check budget: %w", err)
		}
		if !ok {
			return invalid("budgetId", "budget %d does not exist", *req.BudgetID)
		}
	}
	return nil
}

// normalize 未填写总额时按项目金额合计补齐
func normalize(req *ProposalRequest) {
	if req.TotalAmount.IsZero() && req.HasItems() {
		req.TotalAmount = req.ItemsTotal()
	}
	req.TotalAmount = req.TotalAmount.Round(0)
}

// Create 创建禀议书及全部子记录
func (s *proposalService) Create(ctx context.Context, req *ProposalRequest, actor string) (result *SaveResult, err error) {
	defer func() { metrics.RecordProposalOperation("create", err) }()

	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = actor
	}
	if createdBy == "" {
		return nil, invalid("createdBy", "is required")
	}
	normalize(req)

	p := &model.ProposalModel{
		ContractType:   req.ContractType,
		Title:          req.Title,
		Purpose:        req.Purpose,
		Basis:          req.Basis,
		BudgetID:       req.BudgetID,
		ContractMethod: req.ContractMethod,
		AccountSubject: req.AccountSubject,
		TotalAmount:    req.TotalAmount,
		Status:         model.ProposalStatusDraft,
		IsDraft:        true,
		CreatedBy:      createdBy,
	}

	var warnings []allocation.Warning
	var submitted *Transition
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validate(tx, req, req.IsDraft); err != nil {
			return err
		}
		if err := repository.NewProposalRepository(tx).Create(p); err != nil {
			return fmt.Errorf("failed to create proposal: %w", err)
		}

		w, err := s.children.Insert(tx, p, &req.ProposalChildren)
		if err != nil {
			return childError(err)
		}
		warnings = w

		if err := repository.NewProposalHistoryRepository(tx).Save(&model.ProposalHistoryModel{
			ProposalID:  p.ID,
			ChangedBy:   createdBy,
			ChangeType:  model.ChangeTypeCreate,
			Description: "proposal created",
			ChangedAt:   time.Now(),
		}); err != nil {
			return fmt.Errorf("failed to save proposal history: %w", err)
		}

		// 非草稿直接进入已提交状态
		if !req.IsDraft {
			submitted = &Transition{From: p.Status, To: model.ProposalStatusSubmitted, By: createdBy}
			return s.states.Apply(tx, p, *submitted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition(submitted)
	recordWarnings(warnings)
	id := strconv.FormatUint(uint64(p.ID), 10)
	s.notify.after(ctx, actor, "create", model.ResourceProposal, id, "proposal.created", map[string]interface{}{
		"proposalId":   p.ID,
		"status":       p.Status,
		"contractType": p.ContractType,
		"budgetId":     p.BudgetID,
		"totalAmount":  p.TotalAmount,
	})

	return &SaveResult{ProposalID: p.ID, Status: p.Status, Warnings: nonNilWarnings(warnings)}, nil
}

// Update 更新禀议书主记录并整体替换子记录
// isDraft 只能由 true 变为 false,非草稿的更新不会回退状态
func (s *proposalService) Update(ctx context.Context, id uint, req *ProposalRequest, actor string) (result *SaveResult, err error) {
	defer func() { metrics.RecordProposalOperation("update", err) }()

	if actor == "" {
		return nil, invalid("changedBy", "is required")
	}
	normalize(req)

	var (
		p         *model.ProposalModel
		warnings  []allocation.Warning
		submitted *Transition
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewProposalRepository(tx)
		existing, err := repo.FindByID(id)
		if err != nil {
			return notFound(err, "proposal", id)
		}
		p = existing

		isDraft := p.IsDraft && req.IsDraft
		if err := s.validate(tx, req, isDraft); err != nil {
			return err
		}

		changes := proposalChanges(p, req)
		p.ContractType = req.ContractType
		p.Title = req.Title
		p.Purpose = req.Purpose
		p.Basis = req.Basis
		p.BudgetID = req.BudgetID
		p.ContractMethod = req.ContractMethod
		p.AccountSubject = req.AccountSubject
		p.TotalAmount = req.TotalAmount
		if err := repo.Save(p); err != nil {
			return fmt.Errorf("failed to update proposal: %w", err)
		}

		w, err := s.children.Replace(tx, p, &req.ProposalChildren)
		if err != nil {
			return childError(err)
		}
		warnings = w

		historyRepo := repository.NewProposalHistoryRepository(tx)
		now := time.Now()
		for _, c := range changes {
			if err := historyRepo.Save(&model.ProposalHistoryModel{
				ProposalID:  p.ID,
				ChangedBy:   actor,
				ChangeType:  model.ChangeTypeUpdate,
				FieldName:   c.field,
				OldValue:    c.old,
				NewValue:    c.new,
				Description: fmt.Sprintf("%s updated", c.field),
				ChangedAt:   now,
			}); err != nil {
				return fmt.Errorf("failed to save proposal history: %w", err)
			}
		}

		if p.IsDraft && !isDraft {
			submitted = &Transition{From: p.Status, To: model.ProposalStatusSubmitted, By: actor}
			return s.states.Apply(tx, p, *submitted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition(submitted)
	recordWarnings(warnings)
	s.notify.after(ctx, actor, "update", model.ResourceProposal, strconv.FormatUint(uint64(id), 10), "proposal.updated", map[string]interface{}{
		"proposalId":  p.ID,
		"status":      p.Status,
		"totalAmount": p.TotalAmount,
	})

	return &SaveResult{ProposalID: p.ID, Status: p.Status, Warnings: nonNilWarnings(warnings)}, nil
}

// UpdateStatus 通过状态机变更禀议书状态
func (s *proposalService) UpdateStatus(ctx context.Context, id uint, req *StatusRequest, actor string) (p *model.ProposalModel, err error) {
	defer func() { metrics.RecordProposalOperation("status", err) }()

	changedBy := strings.TrimSpace(req.ChangedBy)
	if changedBy == "" {
		changedBy = actor
	}
	if changedBy == "" {
		return nil, invalid("changedBy", "is required")
	}
	if req.Status == "" {
		return nil, invalid("status", "is required")
	}
	date, err := parseDate("statusDate", req.StatusDate)
	if err != nil {
		return nil, err
	}

	var from string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repository.NewProposalRepository(tx).FindByID(id)
		if err != nil {
			return notFound(err, "proposal", id)
		}
		p = existing
		from = p.Status
		return s.states.Apply(tx, p, Transition{
			To:     req.Status,
			Date:   date,
			By:     changedBy,
			Reason: req.ChangeReason,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStatusTransition(from, p.Status)
	s.notify.after(ctx, changedBy, "status", model.ResourceProposal, strconv.FormatUint(uint64(id), 10), "proposal.status_changed", map[string]interface{}{
		"proposalId": id,
		"from":       from,
		"to":         p.Status,
		"budgetId":   p.BudgetID,
		"reason":     req.ChangeReason,
	})
	return p, nil
}

// Delete 删除禀议书,子记录随外键级联删除
func (s *proposalService) Delete(ctx context.Context, id uint, actor string) (err error) {
	defer func() { metrics.RecordProposalOperation("delete", err) }()

	var p *model.ProposalModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewProposalRepository(tx)
		existing, err := repo.FindByID(id)
		if err != nil {
			return notFound(err, "proposal", id)
		}
		p = existing

		if err := s.children.Delete(tx, id); err != nil {
			return err
		}
		if err := repo.Delete(id); err != nil {
			return fmt.Errorf("failed to delete proposal: %w", err)
		}

		by := actor
		if by == "" {
			by = p.CreatedBy
		}
		return repository.NewProposalHistoryRepository(tx).Save(&model.ProposalHistoryModel{
			ProposalID:  id,
			ChangedBy:   by,
			ChangeType:  model.ChangeTypeDelete,
			FieldName:   "status",
			OldValue:    stringPtr(p.Status),
			Description: "proposal deleted",
			ChangedAt:   time.Now(),
		})
	})
	if err != nil {
		return err
	}

	s.notify.after(ctx, actor, "delete", model.ResourceProposal, strconv.FormatUint(uint64(id), 10), "proposal.deleted", map[string]interface{}{
		"proposalId": id,
		"status":     p.Status,
		"budgetId":   p.BudgetID,
	})
	return nil
}

// Get 获取禀议书详情,分配金额按当前项目金额重新计算
func (s *proposalService) Get(ctx context.Context, id uint) (*ProposalDetail, error) {
	db := s.db.WithContext(ctx)
	p, err := repository.NewProposalRepository(db).FindByID(id)
	if err != nil {
		return nil, notFound(err, "proposal", id)
	}
	children, err := s.children.Load(db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal children: %w", err)
	}
	return &ProposalDetail{ProposalModel: *p, LoadedChildren: *children}, nil
}

// List 分页查询禀议书
func (s *proposalService) List(ctx context.Context, filter *repository.ProposalFilter) ([]*model.ProposalModel, int64, error) {
	return repository.NewProposalRepository(s.db.WithContext(ctx)).List(filter)
}

// History 查询禀议书变更历史,禀议书删除后历史仍可查询
func (s *proposalService) History(ctx context.Context, id uint) ([]*model.ProposalHistoryModel, error) {
	rows, err := repository.NewProposalHistoryRepository(s.db.WithContext(ctx)).FindByProposalID(id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: proposal %d", ErrNotFound, id)
	}
	return rows, nil
}

// fieldChange 单个字段的变更
type fieldChange struct {
	field string
	old   *string
	new   *string
}

// proposalChanges 比较主记录字段
func proposalChanges(p *model.ProposalModel, req *ProposalRequest) []fieldChange {
	idString := func(id *uint) *string {
		if id == nil {
			return nil
		}
		return stringPtr(strconv.FormatUint(uint64(*id), 10))
	}
	pairs := []fieldChange{
		{"contractType", stringPtr(p.ContractType), stringPtr(req.ContractType)},
		{"title", stringPtr(p.Title), stringPtr(req.Title)},
		{"purpose", stringPtr(p.Purpose), stringPtr(req.Purpose)},
		{"basis", stringPtr(p.Basis), stringPtr(req.Basis)},
		{"budgetId", idString(p.BudgetID), idString(req.BudgetID)},
		{"contractMethod", stringPtr(p.ContractMethod), stringPtr(req.ContractMethod)},
		{"accountSubject", stringPtr(p.AccountSubject), stringPtr(req.AccountSubject)},
		{"totalAmount", stringPtr(p.TotalAmount.String()), stringPtr(req.TotalAmount.String())},
	}
	var changes []fieldChange
	for _, c := range pairs {
		if !sameValue(c.old, c.new) {
			changes = append(changes, c)
		}
	}
	return changes
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// childError 子记录的输入错误转换为校验错误
func childError(err error) error {
	switch {
	case errors.Is(err, repository.ErrItemIndexOutOfRange):
		return invalid("purchaseItemCostAllocations", "%s", err.Error())
	case errors.Is(err, allocation.ErrUnknownType):
		return invalid("allocationType", "%s", err.Error())
	}
	return err
}

// recordTransition 事务提交后记录状态转换
func recordTransition(t *Transition) {
	if t != nil {
		metrics.RecordStatusTransition(t.From, t.To)
	}
}

func recordWarnings(warnings []allocation.Warning) {
	for _, w := range warnings {
		metrics.RecordAllocationWarning(string(w.Code))
	}
}

func nonNilWarnings(w []allocation.Warning) []allocation.Warning {
	if w == nil {
		return []allocation.Warning{}
	}
	return w
}
