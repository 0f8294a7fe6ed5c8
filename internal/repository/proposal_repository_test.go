package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/mautops/budget-gin/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createBudget(t *testing.T, db *gorm.DB, name string, year int) *model.BusinessBudgetModel {
	b := &model.BusinessBudgetModel{
		ProjectName:         name,
		InitiatorDepartment: "IT",
		ExecutorDepartment:  "IT",
		BudgetAmount:        dec(100_000_000),
		BudgetYear:          year,
		Status:              model.BudgetStatusPending,
	}
	require.NoError(t, repository.NewBusinessBudgetRepository(db).Create(b))
	return b
}

func createLinkedProposal(t *testing.T, db *gorm.DB, budgetID uint, status string, total int64) *model.ProposalModel {
	p := &model.ProposalModel{
		ContractType: model.ContractTypeService,
		Title:        "proposal",
		BudgetID:     &budgetID,
		Status:       status,
		CreatedBy:    "tester",
		TotalAmount:  dec(total),
	}
	require.NoError(t, repository.NewProposalRepository(db).Create(p))
	return p
}

// TestProposalRepository_FindByID 测试查找禀议书
func TestProposalRepository_FindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewProposalRepository(db)
	p := createProposal(t, db, 1000)

	found, err := repo.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractTypePurchase, found.ContractType)
	assert.True(t, found.IsDraft)
	assert.True(t, found.TotalAmount.Equal(dec(1000)))

	_, err = repo.FindByID(p.ID + 1)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

// TestProposalRepository_List 测试过滤、排序和分页
func TestProposalRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewProposalRepository(db)
	b := createBudget(t, db, "infra", 2025)

	createLinkedProposal(t, db, b.ID, model.ProposalStatusApproved, 300)
	createLinkedProposal(t, db, b.ID, model.ProposalStatusSubmitted, 100)
	createLinkedProposal(t, db, b.ID, model.ProposalStatusApproved, 200)
	createProposal(t, db, 50)

	approved := model.ProposalStatusApproved
	list, total, err := repo.List(&repository.ProposalFilter{Status: &approved, SortBy: "totalAmount", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.True(t, list[0].TotalAmount.Equal(dec(200)))

	list, total, err = repo.List(&repository.ProposalFilter{BudgetID: &b.ID, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 1)

	_, _, err = repo.List(&repository.ProposalFilter{SortBy: "title; DROP TABLE proposals"})
	assert.True(t, errors.Is(err, utils.ErrSortField))
}

// TestProposalRepository_ListKeyword 测试关键字查询对通配符转义
func TestProposalRepository_ListKeyword(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewProposalRepository(db)

	for _, title := range []string{"50% discount", "500 units", "network"} {
		p := &model.ProposalModel{ContractType: model.ContractTypePurchase, Title: title, Status: model.ProposalStatusDraft, IsDraft: true, CreatedBy: "tester"}
		require.NoError(t, repo.Create(p))
	}

	kw := "50%"
	list, total, err := repo.List(&repository.ProposalFilter{Keyword: &kw})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "50% discount", list[0].Title)
}

// TestProposalRepository_SumApprovedByBudget 测试按预算汇总已批准金额
func TestProposalRepository_SumApprovedByBudget(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewProposalRepository(db)
	a := createBudget(t, db, "a", 2025)
	b := createBudget(t, db, "b", 2025)
	c := createBudget(t, db, "c", 2025)

	createLinkedProposal(t, db, a.ID, model.ProposalStatusApproved, 30_000_000)
	createLinkedProposal(t, db, a.ID, model.ProposalStatusApproved, 50_000_000)
	createLinkedProposal(t, db, a.ID, model.ProposalStatusSubmitted, 70_000_000)
	createLinkedProposal(t, db, b.ID, model.ProposalStatusDraft, 10)

	sums, err := repo.SumApprovedByBudget([]uint{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.True(t, sums[a.ID].Total.Equal(dec(80_000_000)))
	assert.Equal(t, int64(2), sums[a.ID].Count)
	_, ok := sums[b.ID]
	assert.False(t, ok)

	empty, err := repo.SumApprovedByBudget(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestProposalRepository_DetachBudget 测试解除预算关联
func TestProposalRepository_DetachBudget(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewProposalRepository(db)
	b := createBudget(t, db, "a", 2025)
	p := createLinkedProposal(t, db, b.ID, model.ProposalStatusApproved, 10)

	n, err := repo.CountByBudget(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	affected, err := repo.DetachBudget(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	found, err := repo.FindByID(p.ID)
	require.NoError(t, err)
	assert.Nil(t, found.BudgetID)
}

// TestProposalRepository_StatusCounts 测试状态统计
func TestProposalRepository_StatusCounts(t *testing.T) {
	db := setupTestDB(t)
	b := createBudget(t, db, "a", 2025)
	createLinkedProposal(t, db, b.ID, model.ProposalStatusApproved, 10)
	createLinkedProposal(t, db, b.ID, model.ProposalStatusApproved, 10)
	createProposal(t, db, 1)

	counts, err := repository.NewProposalRepository(db).StatusCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.ProposalStatusApproved])
	assert.Equal(t, int64(1), counts[model.ProposalStatusDraft])
}

// TestProposalHistoryRepository 测试禀议书历史追加与查询
func TestProposalHistoryRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewProposalHistoryRepository(db)
	p := createProposal(t, db, 1)

	oldV, newV := "draft", "submitted"
	now := time.Now()
	require.NoError(t, repo.Save(&model.ProposalHistoryModel{ProposalID: p.ID, ChangedBy: "kim", ChangeType: model.ChangeTypeStatusChange, FieldName: "status", OldValue: &oldV, NewValue: &newV, ChangedAt: now}))
	require.NoError(t, repo.Save(&model.ProposalHistoryModel{ProposalID: p.ID, ChangedBy: "kim", ChangeType: model.ChangeTypeUpdate, ChangedAt: now.Add(time.Second)}))
	assert.Error(t, repo.Save(&model.ProposalHistoryModel{ProposalID: p.ID}))

	rows, err := repo.FindByProposalID(p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "status", rows[0].FieldName)
	assert.Equal(t, "submitted", *rows[0].NewValue)
}
