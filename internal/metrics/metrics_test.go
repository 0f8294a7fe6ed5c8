package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// TestRecordProposalOperation 测试写操作计数
func TestRecordProposalOperation(t *testing.T) {
	before := testutil.ToFloat64(proposalOperationsTotal.WithLabelValues("create", "failure"))
	RecordProposalOperation("create", errors.New("boom"))
	RecordProposalOperation("create", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(proposalOperationsTotal.WithLabelValues("create", "failure")))
}

// TestUpdateProposalsByStatus 测试状态分布会被整体替换
func TestUpdateProposalsByStatus(t *testing.T) {
	UpdateProposalsByStatus(map[string]int64{"draft": 2, "approved": 5})
	assert.Equal(t, 2, testutil.CollectAndCount(proposalsByStatus))

	UpdateProposalsByStatus(map[string]int64{"submitted": 1})
	assert.Equal(t, 1, testutil.CollectAndCount(proposalsByStatus))
	assert.Equal(t, 1.0, testutil.ToFloat64(proposalsByStatus.WithLabelValues("submitted")))
}

// TestUpdatePortfolio 测试组合指标
func TestUpdatePortfolio(t *testing.T) {
	UpdatePortfolio(PortfolioFigures{Total: 100, Executed: 120, Excess: 20, ExecutionRate: 120})
	assert.Equal(t, 20.0, testutil.ToFloat64(budgetPortfolioAmount.WithLabelValues("excess")))
	assert.Equal(t, 120.0, testutil.ToFloat64(budgetExecutionRate))
}

// TestHandler 测试指标端点输出
func TestHandler(t *testing.T) {
	RecordAPIRequest(http.MethodGet, "/api/v1/proposals", http.StatusOK, 0.01)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "api_requests_total"))
}

// TestCollector_RunOnce 测试采集执行全部刷新函数,单个失败不影响其它
func TestCollector_RunOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	var calls int32
	c := NewCollector(db, "@every 1h", quietLogger(),
		func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("query failed")
		},
		func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	)
	c.RunOnce()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	require.NoError(t, c.Start())
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	c.Stop()

	// 停止后不再执行刷新
	c.RunOnce()
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

// TestCollector_InvalidSchedule 测试非法 cron 表达式
func TestCollector_InvalidSchedule(t *testing.T) {
	c := NewCollector(nil, "every minute", quietLogger())
	assert.Error(t, c.Start())
}
