package service_test

import (
	"context"
	"testing"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// linkProposal 直接写入一个指定状态的禀议书
func linkProposal(t *testing.T, db *gorm.DB, budgetID uint, status string, total int64) {
	p := &model.ProposalModel{
		ContractType: model.ContractTypePurchase,
		BudgetID:     &budgetID,
		Status:       status,
		IsDraft:      status == model.ProposalStatusDraft,
		CreatedBy:    "tester",
		TotalAmount:  dec(total),
	}
	require.NoError(t, repository.NewProposalRepository(db).Create(p))
}

// TestExecutionService_ForBudget 测试执行额实时汇总
func TestExecutionService_ForBudget(t *testing.T) {
	db := setupTestDB(t)
	svc := service.NewExecutionService(db)

	b := createBudget(t, db, 100_000_000, 120_000_000)
	linkProposal(t, db, b.ID, model.ProposalStatusApproved, 50_000_000)
	linkProposal(t, db, b.ID, model.ProposalStatusApproved, 30_000_000)
	linkProposal(t, db, b.ID, model.ProposalStatusSubmitted, 10_000_000)

	// 存储列中的手工值会被计算值覆盖
	require.NoError(t, db.Model(&model.BusinessBudgetModel{}).Where("id = ?", b.ID).
		Updates(map[string]interface{}{"confirmed_execution_amount": 1, "unexecuted_amount": 2}).Error)

	v, err := svc.ForBudget(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, v.ConfirmedExecutionAmount.Equal(dec(80_000_000)), v.ConfirmedExecutionAmount.String())
	assert.True(t, v.BudgetExcessAmount.Equal(dec(20_000_000)))
	assert.True(t, v.UnexecutedAmount.IsZero())
	assert.True(t, v.ExecutedAmount.Equal(dec(120_000_000)))
	assert.Equal(t, int64(2), v.ApprovedProposalCount)
	assert.Equal(t, int64(120), v.ExecutionRate)

	// 批准后立即反映在下一次读取中
	linkProposal(t, db, b.ID, model.ProposalStatusApproved, 5_000_000)
	v, err = svc.ForBudget(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, v.ConfirmedExecutionAmount.Equal(dec(85_000_000)))
	assert.Equal(t, int64(3), v.ApprovedProposalCount)
}

// TestExecutionService_NoProposals 测试没有禀议书的预算
func TestExecutionService_NoProposals(t *testing.T) {
	db := setupTestDB(t)
	svc := service.NewExecutionService(db)
	b := createBudget(t, db, 1_000, 250)

	v, err := svc.ForBudget(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, v.ConfirmedExecutionAmount.IsZero())
	assert.True(t, v.UnexecutedAmount.Equal(dec(750)))
	assert.True(t, v.BudgetExcessAmount.IsZero())
	assert.Equal(t, int64(25), v.ExecutionRate)

	_, err = svc.ForBudget(context.Background(), 999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// TestExecutionService_Statistics 测试按部门和年度汇总
func TestExecutionService_Statistics(t *testing.T) {
	db := setupTestDB(t)
	svc := service.NewExecutionService(db)

	it := createBudget(t, db, 1_000, 1_200)
	ops := createBudget(t, db, 2_000, 500)
	require.NoError(t, db.Model(ops).Updates(map[string]interface{}{"executor_department": "Ops", "budget_year": 2024}).Error)
	linkProposal(t, db, it.ID, model.ProposalStatusApproved, 900)
	linkProposal(t, db, ops.ID, model.ProposalStatusApproved, 400)

	p, err := svc.Statistics(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Overall.BudgetCount)
	assert.True(t, p.Overall.TotalBudget.Equal(dec(3_000)))
	assert.True(t, p.Overall.ConfirmedExecutionAmount.Equal(dec(1_300)))
	assert.True(t, p.Overall.BudgetExcessAmount.Equal(dec(200)))
	assert.True(t, p.Overall.UnexecutedAmount.Equal(dec(1_500)))
	if assert.Len(t, p.ByDepartment, 2) {
		assert.Equal(t, "IT", p.ByDepartment[0].Department)
		assert.Equal(t, "Ops", p.ByDepartment[1].Department)
	}
	if assert.Len(t, p.ByYear, 2) {
		assert.Equal(t, 2024, p.ByYear[0].Year)
	}

	year := 2025
	p, err = svc.Statistics(context.Background(), &repository.BudgetFilter{BudgetYear: &year})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Overall.BudgetCount)

	require.NoError(t, svc.RefreshMetrics(context.Background()))
}
