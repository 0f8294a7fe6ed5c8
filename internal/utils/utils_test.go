package utils_test

import (
	"errors"
	"testing"

	"github.com/mautops/budget-gin/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseID 测试 ID 解析
func TestParseID(t *testing.T) {
	id, err := utils.ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, in := range []string{"", "abc", "-1", "0", "1; DROP TABLE proposals"} {
		_, err := utils.ParseID(in)
		assert.Error(t, err, in)
	}
}

// TestParseOptionalID 测试可选 ID 解析
func TestParseOptionalID(t *testing.T) {
	id, err := utils.ParseOptionalID("")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = utils.ParseOptionalID("7")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(7), *id)

	_, err = utils.ParseOptionalID("x")
	assert.Error(t, err)
}

// TestSortFields_OrderClause 测试排序白名单
func TestSortFields_OrderClause(t *testing.T) {
	fields := utils.SortFields{"createdAt": "created_at", "totalAmount": "total_amount"}

	clause, err := fields.OrderClause("totalAmount", "asc", "createdAt")
	require.NoError(t, err)
	assert.Equal(t, "total_amount ASC, id ASC", clause)

	clause, err = fields.OrderClause("", "", "createdAt")
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC, id DESC", clause)

	_, err = fields.OrderClause("created_at; DROP TABLE proposals", "asc", "createdAt")
	assert.True(t, errors.Is(err, utils.ErrSortField))

	_, err = fields.OrderClause("createdAt", "sideways", "createdAt")
	assert.Error(t, err)
}

// TestEscapeLike 测试通配符转义
func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off`, utils.EscapeLike("50%_off"))
}

// TestTrimAndValidate 测试字符串清理
func TestTrimAndValidate(t *testing.T) {
	s, err := utils.TrimAndValidate("  <b>IT</b> ", 0)
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;IT&lt;/b&gt;", s)

	_, err = utils.TrimAndValidate("   ", 0)
	assert.Equal(t, utils.ErrEmptyString, err)

	_, err = utils.TrimAndValidate("abcdef", 3)
	assert.Equal(t, utils.ErrStringTooLong, err)
}
