package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/mautops/budget-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
// 处理器通过 c.Error 登记、尚未写出响应的错误在这里统一转换
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusOf 业务错误对应的 HTTP 状态码
func StatusOf(err error) int {
	var (
		verr   *service.ValidationError
		inputs *utils.ValidationError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &inputs):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrStatusRegression),
		errors.Is(err, service.ErrImmutableField):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrSortField):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBudgetInUse), errors.Is(err, service.ErrDuplicateExecution):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError 输出业务错误,500 错误记录日志且不向调用方暴露细节
func respondError(c *gin.Context, logger *logrus.Logger, message string, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
		}).Error(message)
		Error(c, status, message, "internal server error")
		return
	}

	resp := ErrorResponse{Code: status, Message: message, Detail: err.Error()}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	var inUse *service.BudgetInUseError
	if errors.As(err, &inUse) {
		resp.Data = gin.H{"proposalCount": inUse.Proposals, "suggestion": "retry with force=true to detach proposals"}
	}
	c.JSON(status, resp)
}
