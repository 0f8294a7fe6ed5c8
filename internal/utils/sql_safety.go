package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSortField 排序字段不在允许列表中
var ErrSortField = errors.New("unsupported sort field")

// SortFields 排序字段白名单,键为接口字段名,值为列名
type SortFields map[string]string

// OrderClause 生成排序子句
// 字段只能取自白名单,方向只能是 ASC 或 DESC
func (f SortFields) OrderClause(field, order, fallback string) (string, error) {
	if field == "" {
		field = fallback
	}
	column, ok := f[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSortField, field)
	}
	if order == "" {
		order = "desc"
	}
	if err := ValidateSortOrder(order); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s, id %s", column, strings.ToUpper(order), strings.ToUpper(order)), nil
}

// ValidateSortOrder 验证排序方向
func ValidateSortOrder(order string) error {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder != "ASC" && upperOrder != "DESC" {
		return errors.New("sort order must be ASC or DESC")
	}
	return nil
}
