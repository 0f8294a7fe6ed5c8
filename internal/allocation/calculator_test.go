package allocation_test

import (
	"testing"

	"github.com/mautops/budget-gin/internal/allocation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// TestAllocate_Percentage 测试按比例分配
func TestAllocate_Percentage(t *testing.T) {
	specs := []allocation.Spec{
		{Department: "IT", Type: allocation.TypePercentage, Value: d(50)},
		{Department: "Ops", Type: allocation.TypePercentage, Value: d(30)},
		{Department: "Mkt", Type: allocation.TypePercentage, Value: d(20)},
	}

	results, err := allocation.Allocate(d(3_000_000), specs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "IT", results[0].Department)
	assert.True(t, results[0].Amount.Equal(d(1_500_000)))
	assert.True(t, results[1].Amount.Equal(d(900_000)))
	assert.True(t, results[2].Amount.Equal(d(600_000)))
	assert.True(t, allocation.Sum(results).Equal(d(3_000_000)))
	assert.Empty(t, allocation.Reconcile(d(3_000_000), results))
}

// TestAllocate_RoundHalfUp 测试四舍五入
func TestAllocate_RoundHalfUp(t *testing.T) {
	results, err := allocation.Allocate(d(1_001), []allocation.Spec{
		{Department: "A", Type: allocation.TypePercentage, Value: d(50)},
		{Department: "B", Type: allocation.TypePercentage, Value: d(50)},
	})
	require.NoError(t, err)

	// 500.5 → 501
	assert.Equal(t, "501", results[0].Amount.String())
	assert.Equal(t, "501", results[1].Amount.String())

	warnings := allocation.Reconcile(d(1_001), results)
	require.Len(t, warnings, 1)
	assert.Equal(t, allocation.WarnRoundingResidue, warnings[0].Code)
}

// TestAllocate_Amount 测试按金额分配
func TestAllocate_Amount(t *testing.T) {
	results, err := allocation.Allocate(d(1_000_000), []allocation.Spec{
		{Department: "IT", Type: allocation.TypeAmount, Value: d(700_000)},
		{Department: "Ops", Type: allocation.TypeAmount, Value: d(500_000)},
	})
	require.NoError(t, err)
	assert.True(t, results[0].Amount.Equal(d(700_000)))
	assert.True(t, results[1].Amount.Equal(d(500_000)))

	// 超过项目金额只给出警告
	warnings := allocation.Reconcile(d(1_000_000), results)
	require.Len(t, warnings, 1)
	assert.Equal(t, allocation.WarnAmountExceeds, warnings[0].Code)
}

// TestAllocate_Empty 测试无分配规格
func TestAllocate_Empty(t *testing.T) {
	results, err := allocation.Allocate(d(1_000), nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Nil(t, allocation.Reconcile(d(1_000), results))
}

// TestAllocate_Deterministic 测试相同输入得到相同结果
func TestAllocate_Deterministic(t *testing.T) {
	specs := []allocation.Spec{
		{Department: "IT", Type: allocation.TypePercentage, Value: decimal.RequireFromString("33.3")},
		{Department: "Ops", Type: allocation.TypePercentage, Value: decimal.RequireFromString("66.7")},
	}
	first, err := allocation.Allocate(d(777_777), specs)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := allocation.Allocate(d(777_777), specs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestAllocate_PercentageSumWarning 测试比例合计不为 100
func TestAllocate_PercentageSumWarning(t *testing.T) {
	results, err := allocation.Allocate(d(1_000), []allocation.Spec{
		{Department: "IT", Type: allocation.TypePercentage, Value: d(60)},
		{Department: "Ops", Type: allocation.TypePercentage, Value: d(30)},
	})
	require.NoError(t, err)

	warnings := allocation.Reconcile(d(1_000), results)
	require.Len(t, warnings, 1)
	assert.Equal(t, allocation.WarnPercentageSum, warnings[0].Code)
}

// TestAllocate_UnknownType 测试未知分配方式
func TestAllocate_UnknownType(t *testing.T) {
	_, err := allocation.Allocate(d(1_000), []allocation.Spec{
		{Department: "IT", Type: "ratio", Value: d(10)},
	})
	assert.ErrorIs(t, err, allocation.ErrUnknownType)
}

// TestParseType 测试分配方式解析
func TestParseType(t *testing.T) {
	typ, err := allocation.ParseType("")
	require.NoError(t, err)
	assert.Equal(t, allocation.TypePercentage, typ)

	typ, err = allocation.ParseType(" Amount ")
	require.NoError(t, err)
	assert.Equal(t, allocation.TypeAmount, typ)

	_, err = allocation.ParseType("share")
	assert.ErrorIs(t, err, allocation.ErrUnknownType)
}
