package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 业务错误,由控制器映射为 HTTP 状态码
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStatusRegression   = errors.New("approved proposal cannot return to submitted")
	ErrBudgetInUse        = errors.New("budget is referenced by proposals")
	ErrImmutableField     = errors.New("field cannot be changed on a proposal-derived execution")
	ErrDuplicateExecution = errors.New("proposal is already registered as an execution")
)

// ValidationError 请求字段校验错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// invalid 构造校验错误
func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// notFound 将 gorm 的记录不存在错误转换为 ErrNotFound
func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}
