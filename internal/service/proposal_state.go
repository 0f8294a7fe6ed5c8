package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"gorm.io/gorm"
)

// proposalTransitions 允许的状态转换
var proposalTransitions = map[string]string{
	model.ProposalStatusDraft:     model.ProposalStatusSubmitted,
	model.ProposalStatusSubmitted: model.ProposalStatusApproved,
}

// CheckTransition 检查状态转换是否允许
// 已批准的禀议书不能退回到已提交
func CheckTransition(from, to string) error {
	if from == model.ProposalStatusApproved && to == model.ProposalStatusSubmitted {
		return ErrStatusRegression
	}
	if next, ok := proposalTransitions[from]; ok && next == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// StatusRequest 状态变更请求
type StatusRequest struct {
	Status       string `json:"status"`
	StatusDate   string `json:"statusDate"` // YYYY-MM-DD 或 RFC3339
	ChangeReason string `json:"changeReason"`
	ChangedBy    string `json:"changedBy"`
}

// Transition 一次状态转换
type Transition struct {
	From   string
	To     string
	Date   *time.Time
	By     string
	Reason string
}

// ProposalStateMachine 禀议书状态机
// 所有转换都在调用方的事务中执行,并写入一条状态历史
// 状态转换指标由调用方在提交后记录
type ProposalStateMachine struct{}

// Apply 校验并执行状态转换
func (ProposalStateMachine) Apply(tx *gorm.DB, p *model.ProposalModel, t Transition) error {
	t.From = p.Status
	if err := CheckTransition(t.From, t.To); err != nil {
		return err
	}

	now := time.Now()
	switch t.To {
	case model.ProposalStatusSubmitted:
		if err := requireSubmittable(p); err != nil {
			return err
		}
		p.IsDraft = false
		if p.ProposalDate == nil {
			date := now
			if t.Date != nil {
				date = *t.Date
			}
			p.ProposalDate = &date
		}
	case model.ProposalStatusApproved:
		if t.Date == nil {
			return invalid("statusDate", "is required for approval")
		}
		p.ApprovalDate = t.Date
	}
	p.Status = t.To

	if err := repository.NewProposalRepository(tx).Save(p); err != nil {
		return fmt.Errorf("failed to save proposal status: %w", err)
	}

	description := t.Reason
	if description == "" {
		description = fmt.Sprintf("status changed from %s to %s", t.From, t.To)
	}
	history := &model.ProposalHistoryModel{
		ProposalID:  p.ID,
		ChangedBy:   t.By,
		ChangeType:  model.ChangeTypeStatusChange,
		FieldName:   "status",
		OldValue:    stringPtr(t.From),
		NewValue:    stringPtr(t.To),
		Description: description,
		ChangedAt:   now,
	}
	if err := repository.NewProposalHistoryRepository(tx).Save(history); err != nil {
		return fmt.Errorf("failed to save status history: %w", err)
	}
	return nil
}

// requireSubmittable 提交前检查必填字段
func requireSubmittable(p *model.ProposalModel) error {
	switch {
	case strings.TrimSpace(p.Purpose) == "":
		return invalid("purpose", "is required")
	case p.BudgetID == nil:
		return invalid("budgetId", "is required")
	case strings.TrimSpace(p.AccountSubject) == "":
		return invalid("accountSubject", "is required")
	case strings.TrimSpace(p.Basis) == "":
		return invalid("basis", "is required")
	}
	return nil
}

// parseDate 解析日期,支持 YYYY-MM-DD 和 RFC3339
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, invalid(field, "invalid date %q", s)
}

func stringPtr(s string) *string {
	return &s
}
