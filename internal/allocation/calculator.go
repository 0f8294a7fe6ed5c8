package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Type 分配方式
type Type string

const (
	// TypePercentage 按比例分配,value 为百分比
	TypePercentage Type = "percentage"
	// TypeAmount 按金额分配,value 即为金额
	TypeAmount Type = "amount"
)

var hundred = decimal.NewFromInt(100)

// ErrUnknownType 未知的分配方式
var ErrUnknownType = errors.New("unknown allocation type")

// Spec 单个部门的分配规格
type Spec struct {
	Department string          `json:"department"`
	Type       Type            `json:"type"`
	Value      decimal.Decimal `json:"value"`
}

// Result 分配结果,对应持久化后返回给客户端的分配行
type Result struct {
	Department string          `json:"department"`
	Type       Type            `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Amount     decimal.Decimal `json:"amount"`
}

// ParseType 解析分配方式,空字符串按比例处理
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypePercentage, "":
		return TypePercentage, nil
	case TypeAmount:
		return TypeAmount, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Allocate 计算每个部门分摊的金额
// 比例分配按四舍五入取整到货币最小单位; 金额分配原样返回 value。
// 不校验比例之和或金额之和,核对结果由 Reconcile 给出。
func Allocate(itemAmount decimal.Decimal, specs []Spec) ([]Result, error) {
	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		var amount decimal.Decimal
		switch spec.Type {
		case TypePercentage:
			amount = PercentageOf(itemAmount, spec.Value)
		case TypeAmount:
			amount = spec.Value
		default:
			return nil, fmt.Errorf("%w: %q (department %q)", ErrUnknownType, spec.Type, spec.Department)
		}
		results = append(results, Result{
			Department: spec.Department,
			Type:       spec.Type,
			Value:      spec.Value,
			Amount:     amount,
		})
	}
	return results, nil
}

// PercentageOf 计算 amount × percent / 100,四舍五入到整数
func PercentageOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(0)
}

// Sum 汇总分配金额
func Sum(results []Result) decimal.Decimal {
	total := decimal.Zero
	for _, r := range results {
		total = total.Add(r.Amount)
	}
	return total
}
