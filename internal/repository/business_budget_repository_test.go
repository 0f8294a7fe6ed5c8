package repository_test

import (
	"testing"
	"time"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBusinessBudgetRepository_Filter 测试预算过滤
func TestBusinessBudgetRepository_Filter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewBusinessBudgetRepository(db)

	createBudget(t, db, "network refresh", 2024)
	createBudget(t, db, "network security", 2025)
	ops := &model.BusinessBudgetModel{ProjectName: "call center", ExecutorDepartment: "Ops", BudgetYear: 2025, Status: model.BudgetStatusPending}
	require.NoError(t, repo.Create(ops))

	year := 2025
	list, total, err := repo.List(&repository.BudgetFilter{BudgetYear: &year})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	dept := "Ops"
	all, err := repo.FindAll(&repository.BudgetFilter{Department: &dept})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "call center", all[0].ProjectName)

	kw := "network"
	_, total, err = repo.List(&repository.BudgetFilter{Keyword: &kw, SortBy: "budgetYear", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

// TestBusinessBudgetRepository_DeleteCascade 测试删除预算时级联删除明细和审批记录
func TestBusinessBudgetRepository_DeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewBusinessBudgetRepository(db)
	b := createBudget(t, db, "infra", 2025)

	require.NoError(t, db.Create(&model.BusinessBudgetDetailModel{BudgetID: b.ID, ItemName: "server", Amount: dec(10)}).Error)
	require.NoError(t, db.Create(&model.BusinessBudgetApprovalModel{BudgetID: b.ID, ApproverName: "kim", Status: "approved"}).Error)

	require.NoError(t, repo.Delete(b.ID))

	exists, err := repo.Exists(b.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	var n int64
	require.NoError(t, db.Model(&model.BusinessBudgetDetailModel{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
	require.NoError(t, db.Model(&model.BusinessBudgetApprovalModel{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

// TestBusinessBudgetRepository_History 测试预算历史
func TestBusinessBudgetRepository_History(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewBusinessBudgetRepository(db)
	b := createBudget(t, db, "infra", 2025)

	require.NoError(t, repo.SaveHistory(nil))
	oldV, newV := "100", "200"
	require.NoError(t, repo.SaveHistory([]*model.BusinessBudgetHistoryModel{
		{BudgetID: b.ID, ChangedBy: "kim", ChangeType: model.ChangeTypeUpdate, FieldName: "budgetAmount", OldValue: &oldV, NewValue: &newV, ChangedAt: time.Now()},
	}))

	rows, err := repo.FindHistory(b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "budgetAmount", rows[0].FieldName)
}

// TestOperatingBudgetRepository 测试运营预算及执行记录
func TestOperatingBudgetRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewOperatingBudgetRepository(db)

	b := &model.OperatingBudgetModel{AccountSubject: "software licenses", FiscalYear: 2025, BudgetAmount: dec(1000)}
	require.NoError(t, repo.Create(b))

	pid := uint(9)
	require.NoError(t, repo.CreateExecution(&model.OperatingBudgetExecutionModel{BudgetID: b.ID, AccountSubject: b.AccountSubject, ExecutionAmount: dec(300)}))
	require.NoError(t, repo.CreateExecution(&model.OperatingBudgetExecutionModel{BudgetID: b.ID, AccountSubject: b.AccountSubject, ExecutionAmount: dec(200), ProposalID: &pid, FromProposal: true}))

	sums, err := repo.SumExecutions([]uint{b.ID})
	require.NoError(t, err)
	assert.True(t, sums[b.ID].Equal(dec(500)))

	exists, err := repo.ExistsForProposal(b.ID, pid)
	require.NoError(t, err)
	assert.True(t, exists)

	year := 2025
	list, err := repo.List(&year)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rows, err := repo.FindExecutions(b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, repo.DeleteExecution(rows[0].ID))

	rows, err = repo.FindExecutions(b.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// TestEventRepository 测试事件发件箱
func TestEventRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewEventRepository(db)

	now := time.Now()
	require.NoError(t, repo.Save(&model.EventModel{ID: "evt-1", ResourceType: model.ResourceProposal, ResourceID: "1", Type: "proposal.created", Subject: "budget.proposal.created", Data: `{"id":1}`, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.Save(&model.EventModel{ID: "evt-2", ResourceType: model.ResourceProposal, ResourceID: "1", Type: "proposal.status_changed", Subject: "budget.proposal.status_changed", Data: `{"id":1}`, CreatedAt: now.Add(time.Second), UpdatedAt: now}))
	assert.Error(t, repo.Save(&model.EventModel{ID: "evt-3"}))

	pending, err := repo.FindPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "evt-1", pending[0].ID)

	require.NoError(t, repo.UpdateStatus("evt-1", model.EventStatusSuccess, 1, ""))
	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.EventStatusSuccess])
	assert.Equal(t, int64(1), counts[model.EventStatusPending])

	events, err := repo.FindByResource(model.ResourceProposal, "1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// TestAuditLogRepository 测试审计日志
func TestAuditLogRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAuditLogRepository(db)

	require.NoError(t, repo.Save(&model.AuditLogModel{ID: "a-1", UserID: "kim", Action: "create", ResourceType: model.ResourceProposal, ResourceID: "1", CreatedAt: time.Now()}))
	assert.Error(t, repo.Save(&model.AuditLogModel{ID: "a-2"}))

	logs, err := repo.FindByUserID("kim")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	logs, err = repo.FindByResource(model.ResourceProposal, "1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
