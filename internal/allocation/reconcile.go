package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WarningCode 核对警告类型
type WarningCode string

const (
	WarnPercentageSum   WarningCode = "PERCENTAGE_SUM_MISMATCH"
	WarnAmountExceeds   WarningCode = "AMOUNT_EXCEEDS_ITEM"
	WarnRoundingResidue WarningCode = "ROUNDING_RESIDUE"
)

// Warning 分配核对警告,只提示不拒绝
// Scope 由调用方填写,标明警告所属的分配组
type Warning struct {
	Code    WarningCode `json:"code"`
	Scope   string      `json:"scope,omitempty"`
	Message string      `json:"message"`
}

// Reconcile 核对一组分配结果
//   - 比例分配合计不等于 100
//   - 金额分配合计超过项目金额
//   - 比例合计为 100 但四舍五入后金额合计与项目金额不一致
func Reconcile(itemAmount decimal.Decimal, results []Result) []Warning {
	if len(results) == 0 {
		return nil
	}

	var (
		warnings     []Warning
		percentSum   = decimal.Zero
		percentCount int
		fixedSum     = decimal.Zero
		fixedCount   int
	)
	for _, r := range results {
		switch r.Type {
		case TypePercentage:
			percentSum = percentSum.Add(r.Value)
			percentCount++
		case TypeAmount:
			fixedSum = fixedSum.Add(r.Value)
			fixedCount++
		}
	}

	if percentCount > 0 && !percentSum.Equal(hundred) {
		warnings = append(warnings, Warning{
			Code:    WarnPercentageSum,
			Message: fmt.Sprintf("percentage allocations sum to %s, expected 100", percentSum.String()),
		})
	}
	if fixedCount > 0 && fixedSum.GreaterThan(itemAmount) {
		warnings = append(warnings, Warning{
			Code:    WarnAmountExceeds,
			Message: fmt.Sprintf("fixed allocations sum to %s, exceeding item amount %s", fixedSum.String(), itemAmount.String()),
		})
	}
	if fixedCount == 0 && percentSum.Equal(hundred) {
		if total := Sum(results); !total.Equal(itemAmount) {
			warnings = append(warnings, Warning{
				Code:    WarnRoundingResidue,
				Message: fmt.Sprintf("allocated %s of %s after rounding", total.String(), itemAmount.String()),
			})
		}
	}
	return warnings
}
