package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fieldKind 可追踪字段的类型,决定比较方式和缺省值
type fieldKind int

const (
	kindText fieldKind = iota
	kindMoney
	kindBool
	kindStatus
)

// trackedField 可追踪字段
type trackedField struct {
	name string
	kind fieldKind
	get  func(b *model.BusinessBudgetModel) *string
	set  func(b *model.BusinessBudgetModel, v *string)
}

func textField(name string, p func(b *model.BusinessBudgetModel) *string) trackedField {
	return trackedField{
		name: name,
		kind: kindText,
		get:  func(b *model.BusinessBudgetModel) *string { return textValue(*p(b)) },
		set: func(b *model.BusinessBudgetModel, v *string) {
			*p(b) = ""
			if v != nil {
				*p(b) = *v
			}
		},
	}
}

func moneyField(name string, p func(b *model.BusinessBudgetModel) *decimal.Decimal) trackedField {
	return trackedField{
		name: name,
		kind: kindMoney,
		get:  func(b *model.BusinessBudgetModel) *string { return stringPtr(p(b).String()) },
		set: func(b *model.BusinessBudgetModel, v *string) {
			*p(b) = decimal.RequireFromString(*v)
		},
	}
}

func boolField(name string, p func(b *model.BusinessBudgetModel) *bool) trackedField {
	return trackedField{
		name: name,
		kind: kindBool,
		get:  func(b *model.BusinessBudgetModel) *string { return stringPtr(strconv.FormatBool(*p(b))) },
		set: func(b *model.BusinessBudgetModel, v *string) {
			*p(b) = *v == "true"
		},
	}
}

// budgetTrackedFields 预算变更历史追踪的字段,budgetYear 之外的其余字段不记录也不应用
// confirmedExecutionAmount 和 unexecutedAmount 为手工列,读取时仍由计算值覆盖
var budgetTrackedFields = []trackedField{
	textField("projectName", func(b *model.BusinessBudgetModel) *string { return &b.ProjectName }),
	textField("initiatorDepartment", func(b *model.BusinessBudgetModel) *string { return &b.InitiatorDepartment }),
	textField("executorDepartment", func(b *model.BusinessBudgetModel) *string { return &b.ExecutorDepartment }),
	textField("budgetCategory", func(b *model.BusinessBudgetModel) *string { return &b.BudgetCategory }),
	moneyField("budgetAmount", func(b *model.BusinessBudgetModel) *decimal.Decimal { return &b.BudgetAmount }),
	moneyField("additionalBudget", func(b *model.BusinessBudgetModel) *decimal.Decimal { return &b.AdditionalBudget }),
	textField("startDate", func(b *model.BusinessBudgetModel) *string { return &b.StartDate }),
	textField("endDate", func(b *model.BusinessBudgetModel) *string { return &b.EndDate }),
	boolField("isEssential", func(b *model.BusinessBudgetModel) *bool { return &b.IsEssential }),
	textField("projectPurpose", func(b *model.BusinessBudgetModel) *string { return &b.ProjectPurpose }),
	{
		name: "status",
		kind: kindStatus,
		get: func(b *model.BusinessBudgetModel) *string {
			return stringPtr(b.Status)
		},
		set: func(b *model.BusinessBudgetModel, v *string) {
			b.Status = *v
		},
	},
	moneyField("executedAmount", func(b *model.BusinessBudgetModel) *decimal.Decimal { return &b.ExecutedAmount }),
	moneyField("pendingAmount", func(b *model.BusinessBudgetModel) *decimal.Decimal { return &b.PendingAmount }),
	moneyField("confirmedExecutionAmount", func(b *model.BusinessBudgetModel) *decimal.Decimal { return &b.ConfirmedExecutionAmount }),
	moneyField("unexecutedAmount", func(b *model.BusinessBudgetModel) *decimal.Decimal { return &b.UnexecutedAmount }),
	textField("holdCancelReason", func(b *model.BusinessBudgetModel) *string { return &b.HoldCancelReason }),
	textField("notes", func(b *model.BusinessBudgetModel) *string { return &b.Notes }),
	boolField("itPlanReported", func(b *model.BusinessBudgetModel) *bool { return &b.ITPlanReported }),
}

// TrackedBudgetFields 可追踪字段名
func TrackedBudgetFields() []string {
	names := make([]string, 0, len(budgetTrackedFields))
	for _, f := range budgetTrackedFields {
		names = append(names, f.name)
	}
	return names
}

// BudgetChange 单个字段的变更
type BudgetChange struct {
	Field    string
	OldValue *string
	NewValue *string
	field    trackedField
}

// BudgetHistoryRecorder 预算变更历史记录器
// 请求中缺失的可追踪字段视为该类型的缺省值:
// 金额为 0,布尔为 false,状态为 대기,其余为 null。缺省值既写入历史也应用到预算上
type BudgetHistoryRecorder struct{}

// Diff 比较预算当前值与请求字段,返回有差异的字段
func (BudgetHistoryRecorder) Diff(old *model.BusinessBudgetModel, fields map[string]interface{}) ([]BudgetChange, error) {
	var changes []BudgetChange
	for _, f := range budgetTrackedFields {
		raw, present := fields[f.name]
		next, err := coerce(f, raw, present)
		if err != nil {
			return nil, err
		}
		prev := f.get(old)
		if sameValue(prev, next) {
			continue
		}
		changes = append(changes, BudgetChange{Field: f.name, OldValue: prev, NewValue: next, field: f})
	}
	return changes, nil
}

// Apply 将变更写入预算
func (BudgetHistoryRecorder) Apply(b *model.BusinessBudgetModel, changes []BudgetChange) {
	for _, c := range changes {
		c.field.set(b, c.NewValue)
	}
}

// ApplyUntracked 应用不记录历史的字段
// 目前只有 budgetYear,缺失或 null 时保持原值
func (BudgetHistoryRecorder) ApplyUntracked(b *model.BusinessBudgetModel, fields map[string]interface{}) error {
	raw, ok := fields["budgetYear"]
	if !ok || raw == nil {
		return nil
	}
	d, err := toDecimal(raw)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return invalid("budgetYear", "invalid integer: %v", raw)
	}
	b.BudgetYear = int(d.IntPart())
	return nil
}

// RecordChanges 比较、应用并在事务中写入历史,每个差异字段一行
func (r BudgetHistoryRecorder) RecordChanges(tx *gorm.DB, budget *model.BusinessBudgetModel, fields map[string]interface{}, changedBy string) ([]*model.BusinessBudgetHistoryModel, error) {
	changes, err := r.Diff(budget, fields)
	if err != nil {
		return nil, err
	}
	r.Apply(budget, changes)

	now := time.Now()
	rows := make([]*model.BusinessBudgetHistoryModel, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, &model.BusinessBudgetHistoryModel{
			BudgetID:    budget.ID,
			ChangedBy:   changedBy,
			ChangeType:  model.ChangeTypeUpdate,
			FieldName:   c.Field,
			OldValue:    c.OldValue,
			NewValue:    c.NewValue,
			Description: describe(c),
			ChangedAt:   now,
		})
	}
	if err := repository.NewBusinessBudgetRepository(tx).SaveHistory(rows); err != nil {
		return nil, fmt.Errorf("failed to save budget history: %w", err)
	}
	return rows, nil
}

func describe(c BudgetChange) string {
	show := func(v *string) string {
		if v == nil {
			return "null"
		}
		return *v
	}
	return fmt.Sprintf("%s: %s -> %s", c.Field, show(c.OldValue), show(c.NewValue))
}

// coerce 将请求值转换为可比较的字符串形式,缺失或 null 时返回缺省值
func coerce(f trackedField, raw interface{}, present bool) (*string, error) {
	if !present || raw == nil {
		switch f.kind {
		case kindMoney:
			return stringPtr("0"), nil
		case kindBool:
			return stringPtr("false"), nil
		case kindStatus:
			return stringPtr(model.BudgetStatusPending), nil
		default:
			return nil, nil
		}
	}

	switch f.kind {
	case kindMoney:
		d, err := toDecimal(raw)
		if err != nil {
			return nil, invalid(f.name, "invalid amount: %v", raw)
		}
		if d.IsNegative() {
			return nil, invalid(f.name, "must not be negative")
		}
		return stringPtr(d.Round(2).String()), nil
	case kindBool:
		b, err := toBool(raw)
		if err != nil {
			return nil, invalid(f.name, "invalid boolean: %v", raw)
		}
		return stringPtr(strconv.FormatBool(b)), nil
	case kindStatus:
		s := strings.TrimSpace(fmt.Sprint(raw))
		if s == "" {
			s = model.BudgetStatusPending
		}
		return stringPtr(s), nil
	default:
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprint(raw)
		}
		return textValue(s), nil
	}
}

// textValue 空字符串与 null 等价
func textValue(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toDecimal(raw interface{}) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported type %T", raw)
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case json.Number:
		return v.String() != "0", nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "y", "yes":
			return true, nil
		case "false", "0", "n", "no", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("unsupported boolean %v", raw)
}
