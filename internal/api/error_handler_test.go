package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/api"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/mautops/budget-gin/internal/utils"
	"github.com/stretchr/testify/assert"
)

// TestStatusOf 测试业务错误到 HTTP 状态码的映射
func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.ValidationError{Field: "purpose", Message: "purpose is required"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("save: %w", &service.ValidationError{Field: "budgetId"}), http.StatusBadRequest},
		{"input", utils.ErrInvalidIDFormat, http.StatusBadRequest},
		{"sort field", fmt.Errorf("%w: %q", utils.ErrSortField, "password"), http.StatusBadRequest},
		{"transition", fmt.Errorf("%w: draft -> approved", service.ErrInvalidTransition), http.StatusBadRequest},
		{"regression", service.ErrStatusRegression, http.StatusBadRequest},
		{"immutable", service.ErrImmutableField, http.StatusBadRequest},
		{"not found", fmt.Errorf("proposal 9: %w", service.ErrNotFound), http.StatusNotFound},
		{"in use", &service.BudgetInUseError{BudgetID: 1, Proposals: 2}, http.StatusConflict},
		{"duplicate", service.ErrDuplicateExecution, http.StatusConflict},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, api.StatusOf(c.err))
		})
	}
}

// TestErrorHandlerMiddleware 测试 c.Error 兜底转换
func TestErrorHandlerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.ErrorHandlerMiddleware())
	router.GET("/api-error", func(c *gin.Context) {
		_ = c.Error(api.WrapError(errors.New("bad input"), http.StatusBadRequest, "invalid request"))
	})
	router.GET("/plain-error", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-error", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad input")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain-error", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
