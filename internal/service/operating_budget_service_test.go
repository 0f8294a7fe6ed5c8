package service_test

import (
	"context"
	"testing"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOperatingService(db *gorm.DB, events service.EventPublisher) service.OperatingBudgetService {
	return service.NewOperatingBudgetService(db, service.NewAuditLogService(db), events, quietLogger())
}

func strPtr(s string) *string { return &s }

func decPtr(v int64) *decimal.Decimal {
	d := dec(v)
	return &d
}

// approvedProposal 写入一个已批准的禀议书
func approvedProposal(t *testing.T, db *gorm.DB, status string) *model.ProposalModel {
	p := &model.ProposalModel{
		ContractType:   model.ContractTypeService,
		Title:          "cloud hosting",
		AccountSubject: "IT operations",
		Status:         status,
		CreatedBy:      "tester",
		TotalAmount:    dec(3_600_000),
	}
	require.NoError(t, repository.NewProposalRepository(db).Create(p))
	return p
}

// TestOperatingBudgetService_Ledger 测试登记预算和执行合计
func TestOperatingBudgetService_Ledger(t *testing.T) {
	db := setupTestDB(t)
	svc := newOperatingService(db, nil)
	ctx := context.Background()

	b, err := svc.CreateBudget(ctx, &service.OperatingBudgetRequest{AccountSubject: "IT operations", FiscalYear: 2025, BudgetAmount: dec(10_000_000)}, "alice")
	require.NoError(t, err)
	_, err = svc.CreateBudget(ctx, &service.OperatingBudgetRequest{AccountSubject: "IT operations", FiscalYear: 2024, BudgetAmount: dec(8_000_000)}, "alice")
	require.NoError(t, err)
	_, err = svc.CreateBudget(ctx, &service.OperatingBudgetRequest{FiscalYear: 2025}, "alice")
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	e, err := svc.AddExecution(ctx, b.ID, &service.ExecutionRequest{
		ExecutionAmount: decPtr(1_500_000),
		BillingPeriod:   strPtr("2025-01"),
		ExecutionDate:   strPtr("2025-01-31"),
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "IT operations", e.AccountSubject)
	assert.False(t, e.FromProposal)

	_, err = svc.AddExecution(ctx, b.ID, &service.ExecutionRequest{ExecutionAmount: decPtr(500_000)}, "alice")
	require.NoError(t, err)

	_, err = svc.AddExecution(ctx, b.ID, &service.ExecutionRequest{ExecutionDate: strPtr("yesterday")}, "alice")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.AddExecution(ctx, 999, &service.ExecutionRequest{}, "alice")
	assert.ErrorIs(t, err, service.ErrNotFound)

	year := 2025
	views, err := svc.ListBudgets(ctx, &year)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].ExecutedAmount.Equal(dec(2_000_000)))
	assert.True(t, views[0].RemainingAmount.Equal(dec(8_000_000)))

	all, err := svc.ListBudgets(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rows, err := svc.ListExecutions(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, svc.DeleteExecution(ctx, rows[1].ID, "alice"))
	assert.ErrorIs(t, svc.DeleteExecution(ctx, rows[1].ID, "alice"), service.ErrNotFound)
}

// TestOperatingBudgetService_FromProposal 测试由禀议书生成执行记录
func TestOperatingBudgetService_FromProposal(t *testing.T) {
	db := setupTestDB(t)
	events := &recordingPublisher{}
	svc := newOperatingService(db, events)
	ctx := context.Background()

	b, err := svc.CreateBudget(ctx, &service.OperatingBudgetRequest{AccountSubject: "IT operations", FiscalYear: 2025, BudgetAmount: dec(10_000_000)}, "alice")
	require.NoError(t, err)

	submitted := approvedProposal(t, db, model.ProposalStatusSubmitted)
	_, err = svc.AddExecutionFromProposal(ctx, b.ID, submitted.ID, nil, "alice")
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)

	p := approvedProposal(t, db, model.ProposalStatusApproved)
	e, err := svc.AddExecutionFromProposal(ctx, b.ID, p.ID, &service.ExecutionRequest{BillingPeriod: strPtr("2025-Q1")}, "alice")
	require.NoError(t, err)
	assert.True(t, e.FromProposal)
	require.NotNil(t, e.ProposalID)
	assert.Equal(t, p.ID, *e.ProposalID)
	assert.Equal(t, "cloud hosting", e.ProposalName)
	assert.Equal(t, "IT operations", e.AccountSubject)
	assert.True(t, e.ConfirmedExecutionAmount.Equal(dec(3_600_000)))
	assert.Equal(t, "2025-Q1", e.BillingPeriod)

	_, err = svc.AddExecutionFromProposal(ctx, b.ID, p.ID, nil, "alice")
	assert.ErrorIs(t, err, service.ErrDuplicateExecution)
	_, err = svc.AddExecutionFromProposal(ctx, b.ID, 999, nil, "alice")
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.Equal(t, []string{"execution.from_proposal"}, events.published())
}

// TestOperatingBudgetService_Immutable 测试来自禀议书的字段不可修改
func TestOperatingBudgetService_Immutable(t *testing.T) {
	db := setupTestDB(t)
	svc := newOperatingService(db, nil)
	ctx := context.Background()

	b, err := svc.CreateBudget(ctx, &service.OperatingBudgetRequest{AccountSubject: "IT operations", FiscalYear: 2025, BudgetAmount: dec(10_000_000)}, "alice")
	require.NoError(t, err)
	p := approvedProposal(t, db, model.ProposalStatusApproved)
	e, err := svc.AddExecutionFromProposal(ctx, b.ID, p.ID, nil, "alice")
	require.NoError(t, err)

	for name, req := range map[string]*service.ExecutionRequest{
		"accountSubject":           {AccountSubject: strPtr("travel")},
		"confirmedExecutionAmount": {ConfirmedExecutionAmount: decPtr(1)},
		"proposalName":             {ProposalName: strPtr("renamed")},
	} {
		_, err := svc.UpdateExecution(ctx, e.ID, req, "bob")
		assert.ErrorIs(t, err, service.ErrImmutableField, name)
	}

	// 相同的值和可变字段允许修改,科目前后空白不算修改
	updated, err := svc.UpdateExecution(ctx, e.ID, &service.ExecutionRequest{
		AccountSubject:  strPtr("  IT operations "),
		ExecutionAmount: decPtr(1_200_000),
		Notes:           strPtr("first installment"),
	}, "bob")
	require.NoError(t, err)
	assert.True(t, updated.ExecutionAmount.Equal(dec(1_200_000)))
	assert.True(t, updated.ConfirmedExecutionAmount.Equal(dec(3_600_000)))

	stored, err := repository.NewOperatingBudgetRepository(db).FindExecution(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "first installment", stored.Notes)
	assert.Equal(t, "cloud hosting", stored.ProposalName)
	assert.Equal(t, "IT operations", stored.AccountSubject)

	// 手工登记的记录可以修改科目
	manual, err := svc.AddExecution(ctx, b.ID, &service.ExecutionRequest{ExecutionAmount: decPtr(100)}, "alice")
	require.NoError(t, err)
	manual, err = svc.UpdateExecution(ctx, manual.ID, &service.ExecutionRequest{AccountSubject: strPtr("travel")}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "travel", manual.AccountSubject)

	_, err = svc.UpdateExecution(ctx, 999, &service.ExecutionRequest{}, "alice")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
