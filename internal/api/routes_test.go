package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/api"
	"github.com/mautops/budget-gin/internal/config"
	"github.com/mautops/budget-gin/internal/database"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope 统一响应
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

// newTestRouter 基于内存数据库装配完整路由
func newTestRouter(t *testing.T) *gin.Engine {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := config.Default()
	cfg.RateLimit.Enabled = false

	audit := service.NewAuditLogService(db)
	executionSvc := service.NewExecutionService(db)
	return api.SetupRoutes(cfg, logger, &api.Controllers{
		Health:          api.NewHealthController(db, nil),
		Proposal:        api.NewProposalController(service.NewProposalService(db, audit, nil, logger), logger),
		Budget:          api.NewBudgetController(service.NewBudgetService(db, executionSvc, audit, nil, logger), logger),
		OperatingBudget: api.NewOperatingBudgetController(service.NewOperatingBudgetService(db, audit, nil, logger), logger),
	})
}

func call(t *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "kim")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// createBudgetViaAPI 登记一个 1 亿的事业预算
func createBudgetViaAPI(t *testing.T, router *gin.Engine) uint {
	code, env := call(t, router, http.MethodPost, "/api/v1/business-budgets", map[string]interface{}{
		"projectName":        "ERP renewal",
		"executorDepartment": "IT",
		"budgetYear":         2025,
		"budgetAmount":       100000000,
	})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var b struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &b)
	assert.Equal(t, "대기", b.Status)
	return b.ID
}

func proposalBody(budgetID uint) map[string]interface{} {
	return map[string]interface{}{
		"contractType":   "purchase",
		"title":          "server purchase",
		"purpose":        "capacity",
		"basis":          "annual plan",
		"budgetId":       budgetID,
		"accountSubject": "전산운용비",
		"purchaseItems": []map[string]interface{}{
			{"item": "server", "productName": "R760", "quantity": 2, "unitPrice": 1000000},
		},
		"costDepartments": []map[string]interface{}{
			{"department": "IT", "type": "percentage", "value": 60},
			{"department": "Ops", "type": "percentage", "value": 40},
		},
	}
}

// TestProposalLifecycle 测试禀议书创建、查询、审批流程
func TestProposalLifecycle(t *testing.T) {
	router := newTestRouter(t)
	budgetID := createBudgetViaAPI(t, router)

	code, env := call(t, router, http.MethodPost, "/api/v1/proposals", proposalBody(budgetID))
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var saved service.SaveResult
	decodeData(t, env, &saved)
	assert.Equal(t, "submitted", saved.Status)
	assert.NotNil(t, saved.Warnings)
	path := fmt.Sprintf("/api/v1/proposals/%d", saved.ProposalID)

	code, env = call(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	var detail struct {
		TotalAmount     float64 `json:"totalAmount"`
		CreatedBy       string  `json:"createdBy"`
		CostDepartments []struct {
			Department string  `json:"department"`
			Type       string  `json:"type"`
			Value      float64 `json:"value"`
			Amount     float64 `json:"amount"`
		} `json:"costDepartments"`
	}
	decodeData(t, env, &detail)
	assert.Equal(t, 2000000.0, detail.TotalAmount)
	assert.Equal(t, "kim", detail.CreatedBy)
	if assert.Len(t, detail.CostDepartments, 2) {
		assert.Equal(t, "IT", detail.CostDepartments[0].Department)
		assert.Equal(t, "percentage", detail.CostDepartments[0].Type)
		assert.Equal(t, 1200000.0, detail.CostDepartments[0].Amount)
	}

	code, env = call(t, router, http.MethodPatch, path+"/status", map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "statusDate", env.Field)

	code, _ = call(t, router, http.MethodPatch, path+"/status", map[string]string{"status": "approved", "statusDate": "2025-03-02"})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, router, http.MethodPatch, path+"/status", map[string]string{"status": "submitted"})
	assert.Equal(t, http.StatusBadRequest, code, env.Detail)

	code, env = call(t, router, http.MethodGet, fmt.Sprintf("/api/v1/business-budgets/%d", budgetID), nil)
	require.Equal(t, http.StatusOK, code)
	var view struct {
		ConfirmedExecutionAmount float64 `json:"confirmedExecutionAmount"`
		ApprovedProposalCount    int64   `json:"approvedProposalCount"`
	}
	decodeData(t, env, &view)
	assert.Equal(t, 2000000.0, view.ConfirmedExecutionAmount)
	assert.Equal(t, int64(1), view.ApprovedProposalCount)

	code, env = call(t, router, http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, code)
	var history []map[string]interface{}
	decodeData(t, env, &history)
	assert.GreaterOrEqual(t, len(history), 3)
}

// TestProposalValidationStatus 测试校验失败返回 400 与字段名
func TestProposalValidationStatus(t *testing.T) {
	router := newTestRouter(t)

	body := proposalBody(0)
	delete(body, "budgetId")
	code, env := call(t, router, http.MethodPost, "/api/v1/proposals", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "budgetId", env.Field)

	body = proposalBody(999)
	code, _ = call(t, router, http.MethodPost, "/api/v1/proposals", body)
	assert.Equal(t, http.StatusBadRequest, code)

	body["contractType"] = "lease"
	code, _ = call(t, router, http.MethodPost, "/api/v1/proposals", body)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, http.MethodGet, "/api/v1/proposals/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, http.MethodGet, "/api/v1/proposals/42", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, router, http.MethodPut, "/api/v1/proposals/42", proposalBody(1))
	assert.Equal(t, http.StatusNotFound, code)
}

// TestProposalList 测试分页列表
func TestProposalList(t *testing.T) {
	router := newTestRouter(t)
	budgetID := createBudgetViaAPI(t, router)
	for i := 0; i < 3; i++ {
		code, env := call(t, router, http.MethodPost, "/api/v1/proposals", proposalBody(budgetID))
		require.Equal(t, http.StatusCreated, code, env.Detail)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/proposals?budget_id=%d&page=1&page_size=2", budgetID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPage)
	assert.Len(t, resp.Data, 2)

	code, _ := call(t, router, http.MethodGet, "/api/v1/proposals?budget_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// TestBudgetUpdateAndDelete 测试预算更新历史与带引用删除
func TestBudgetUpdateAndDelete(t *testing.T) {
	router := newTestRouter(t)
	budgetID := createBudgetViaAPI(t, router)
	path := fmt.Sprintf("/api/v1/business-budgets/%d", budgetID)

	code, env := call(t, router, http.MethodPut, path, map[string]interface{}{
		"projectName":        "ERP renewal",
		"executorDepartment": "IT",
		"budgetYear":         2025,
		"budgetAmount":       120000000,
	})
	require.Equal(t, http.StatusOK, code, env.Detail)
	var updated struct {
		Changes []struct {
			FieldName string `json:"fieldName"`
			OldValue  string `json:"oldValue"`
			NewValue  string `json:"newValue"`
			ChangedBy string `json:"changedBy"`
		} `json:"changes"`
	}
	decodeData(t, env, &updated)
	if assert.Len(t, updated.Changes, 1) {
		assert.Equal(t, "budgetAmount", updated.Changes[0].FieldName)
		assert.Equal(t, "100000000", updated.Changes[0].OldValue)
		assert.Equal(t, "120000000", updated.Changes[0].NewValue)
		assert.Equal(t, "kim", updated.Changes[0].ChangedBy)
	}

	code, _ = call(t, router, http.MethodPut, path, map[string]interface{}{"projectName": "x", "budgetYear": 2025, "budgetAmount": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, router, http.MethodPost, "/api/v1/proposals", proposalBody(budgetID))
	require.Equal(t, http.StatusCreated, code, env.Detail)

	code, env = call(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(env.Data), "force=true")

	code, env = call(t, router, http.MethodDelete, path+"?force=true", nil)
	require.Equal(t, http.StatusOK, code)
	var deleted service.BudgetDeleteResult
	decodeData(t, env, &deleted)
	assert.Equal(t, int64(1), deleted.DetachedProposals)

	code, _ = call(t, router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, router, http.MethodGet, path+"/history", nil)
	assert.Equal(t, http.StatusNotFound, code, env.Detail)
}

// TestBudgetUpdateNumberPrecision 测试更新请求中的金额不经过 float64
func TestBudgetUpdateNumberPrecision(t *testing.T) {
	router := newTestRouter(t)
	budgetID := createBudgetViaAPI(t, router)
	path := fmt.Sprintf("/api/v1/business-budgets/%d", budgetID)

	code, env := call(t, router, http.MethodPut, path, map[string]interface{}{
		"projectName":        "ERP renewal",
		"executorDepartment": "IT",
		"budgetYear":         2025,
		"budgetAmount":       json.Number("12345678901234567.89"),
	})
	require.Equal(t, http.StatusOK, code, env.Detail)
	var updated struct {
		Changes []struct {
			FieldName string `json:"fieldName"`
			NewValue  string `json:"newValue"`
		} `json:"changes"`
	}
	decodeData(t, env, &updated)
	require.Len(t, updated.Changes, 1)
	assert.Equal(t, "budgetAmount", updated.Changes[0].FieldName)
	assert.Equal(t, "12345678901234567.89", updated.Changes[0].NewValue)

	req := httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestBudgetStatistics 测试汇总接口
func TestBudgetStatistics(t *testing.T) {
	router := newTestRouter(t)
	createBudgetViaAPI(t, router)

	code, env := call(t, router, http.MethodGet, "/api/v1/business-budgets/statistics?budget_year=2025", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "IT")

	code, _ = call(t, router, http.MethodGet, "/api/v1/business-budgets/statistics?budget_year=soon", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// TestOperatingBudgetFromProposal 测试由禀议书生成执行记录
func TestOperatingBudgetFromProposal(t *testing.T) {
	router := newTestRouter(t)
	budgetID := createBudgetViaAPI(t, router)

	code, env := call(t, router, http.MethodPost, "/api/v1/proposals", proposalBody(budgetID))
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var saved service.SaveResult
	decodeData(t, env, &saved)

	code, env = call(t, router, http.MethodPost, "/api/v1/operating-budgets", map[string]interface{}{
		"accountSubject": "전산운용비",
		"fiscalYear":     2025,
		"budgetAmount":   50000000,
	})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var op struct {
		ID uint `json:"id"`
	}
	decodeData(t, env, &op)
	fromPath := fmt.Sprintf("/api/v1/operating-budgets/%d/executions/from-proposal", op.ID)

	code, env = call(t, router, http.MethodPost, fromPath, map[string]interface{}{"proposalId": saved.ProposalID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "proposalId", env.Field)

	code, _ = call(t, router, http.MethodPatch, fmt.Sprintf("/api/v1/proposals/%d/status", saved.ProposalID),
		map[string]string{"status": "approved", "statusDate": "2025-03-02"})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, router, http.MethodPost, fromPath, map[string]interface{}{"proposalId": saved.ProposalID, "billingPeriod": "2025-03"})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var exec struct {
		ID                       uint    `json:"id"`
		FromProposal             bool    `json:"fromProposal"`
		ProposalName             string  `json:"proposalName"`
		ConfirmedExecutionAmount float64 `json:"confirmedExecutionAmount"`
	}
	decodeData(t, env, &exec)
	assert.True(t, exec.FromProposal)
	assert.Equal(t, "server purchase", exec.ProposalName)
	assert.Equal(t, 2000000.0, exec.ConfirmedExecutionAmount)

	code, _ = call(t, router, http.MethodPost, fromPath, map[string]interface{}{"proposalId": saved.ProposalID})
	assert.Equal(t, http.StatusConflict, code)

	execPath := fmt.Sprintf("/api/v1/operating-budgets/executions/%d", exec.ID)
	code, _ = call(t, router, http.MethodPut, execPath, map[string]interface{}{"proposalName": "renamed"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, router, http.MethodPut, execPath, map[string]interface{}{"executionAmount": 1500000})
	require.Equal(t, http.StatusOK, code, env.Detail)

	code, env = call(t, router, http.MethodGet, "/api/v1/operating-budgets?fiscal_year=2025", nil)
	require.Equal(t, http.StatusOK, code)
	var budgets []struct {
		ExecutedAmount  float64 `json:"executedAmount"`
		RemainingAmount float64 `json:"remainingAmount"`
	}
	decodeData(t, env, &budgets)
	if assert.Len(t, budgets, 1) {
		assert.Equal(t, 1500000.0, budgets[0].ExecutedAmount)
		assert.Equal(t, 48500000.0, budgets[0].RemainingAmount)
	}

	code, _ = call(t, router, http.MethodDelete, execPath, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, router, http.MethodDelete, execPath, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// TestNoRoute 测试未知路由
func TestNoRoute(t *testing.T) {
	router := newTestRouter(t)
	code, env := call(t, router, http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "route not found", env.Message)
}
