package execution

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BudgetFigures 参与执行额计算的预算字段
type BudgetFigures struct {
	BudgetAmount     decimal.Decimal
	AdditionalBudget decimal.Decimal
	ExecutedAmount   decimal.Decimal
}

// Summary 单个预算的执行情况,每次读取时重新计算
type Summary struct {
	TotalBudget              decimal.Decimal `json:"totalBudget"`
	ConfirmedExecutionAmount decimal.Decimal `json:"confirmedExecutionAmount"`
	BudgetExcessAmount       decimal.Decimal `json:"budgetExcessAmount"`
	UnexecutedAmount         decimal.Decimal `json:"unexecutedAmount"`
	ExecutionRate            int64           `json:"executionRate"`
	ApprovedProposalCount    int64           `json:"approvedProposalCount"`
}

// Compute 计算预算执行情况
// confirmed 为该预算下已批准禀议书金额合计。executedAmount 是预算上手工维护的数字,
// 与 confirmed 并列返回,二者不做自动核对。
func Compute(b BudgetFigures, confirmed decimal.Decimal, approvedCount int64) Summary {
	total := b.BudgetAmount.Add(b.AdditionalBudget)

	s := Summary{
		TotalBudget:              total,
		ConfirmedExecutionAmount: confirmed,
		BudgetExcessAmount:       decimal.Max(decimal.Zero, b.ExecutedAmount.Sub(total)),
		UnexecutedAmount:         decimal.Max(decimal.Zero, total.Sub(b.ExecutedAmount)),
		ApprovedProposalCount:    approvedCount,
	}
	s.ExecutionRate = Rate(b.ExecutedAmount, total)
	return s
}

// Rate 执行率,四舍五入到整数百分比; 总预算为 0 时返回 0
func Rate(executed, total decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	return executed.Div(total).Mul(hundred).Round(0).IntPart()
}

// Entry 汇总统计的一条输入
type Entry struct {
	Department string
	Year       int
	Figures    BudgetFigures
	Summary    Summary
}

// Totals 汇总数字
type Totals struct {
	BudgetCount              int64           `json:"budgetCount"`
	TotalBudget              decimal.Decimal `json:"totalBudget"`
	ExecutedAmount           decimal.Decimal `json:"executedAmount"`
	ConfirmedExecutionAmount decimal.Decimal `json:"confirmedExecutionAmount"`
	BudgetExcessAmount       decimal.Decimal `json:"budgetExcessAmount"`
	UnexecutedAmount         decimal.Decimal `json:"unexecutedAmount"`
	ExecutionRate            int64           `json:"executionRate"`
}

// DepartmentRollup 按部门汇总
type DepartmentRollup struct {
	Department string `json:"department"`
	Totals
}

// YearRollup 按年度汇总
type YearRollup struct {
	Year int `json:"year"`
	Totals
}

// Portfolio 预算组合统计
type Portfolio struct {
	Overall      Totals             `json:"overall"`
	ByDepartment []DepartmentRollup `json:"byDepartment"`
	ByYear       []YearRollup       `json:"byYear"`
}

func (t *Totals) add(e Entry) {
	t.BudgetCount++
	t.TotalBudget = t.TotalBudget.Add(e.Summary.TotalBudget)
	t.ExecutedAmount = t.ExecutedAmount.Add(e.Figures.ExecutedAmount)
	t.ConfirmedExecutionAmount = t.ConfirmedExecutionAmount.Add(e.Summary.ConfirmedExecutionAmount)
	t.BudgetExcessAmount = t.BudgetExcessAmount.Add(e.Summary.BudgetExcessAmount)
	t.UnexecutedAmount = t.UnexecutedAmount.Add(e.Summary.UnexecutedAmount)
}

func (t *Totals) finish() {
	t.ExecutionRate = Rate(t.ExecutedAmount, t.TotalBudget)
}

// Rollup 按部门和年度汇总执行数字
// 部门、年度均按名称/年份升序排列
func Rollup(entries []Entry) Portfolio {
	var p Portfolio
	byDept := make(map[string]*Totals)
	byYear := make(map[int]*Totals)

	for _, e := range entries {
		p.Overall.add(e)

		dt, ok := byDept[e.Department]
		if !ok {
			dt = &Totals{}
			byDept[e.Department] = dt
		}
		dt.add(e)

		yt, ok := byYear[e.Year]
		if !ok {
			yt = &Totals{}
			byYear[e.Year] = yt
		}
		yt.add(e)
	}
	p.Overall.finish()

	p.ByDepartment = make([]DepartmentRollup, 0, len(byDept))
	for name, t := range byDept {
		t.finish()
		p.ByDepartment = append(p.ByDepartment, DepartmentRollup{Department: name, Totals: *t})
	}
	sort.Slice(p.ByDepartment, func(i, j int) bool {
		return p.ByDepartment[i].Department < p.ByDepartment[j].Department
	})

	p.ByYear = make([]YearRollup, 0, len(byYear))
	for year, t := range byYear {
		t.finish()
		p.ByYear = append(p.ByYear, YearRollup{Year: year, Totals: *t})
	}
	sort.Slice(p.ByYear, func(i, j int) bool { return p.ByYear[i].Year < p.ByYear[j].Year })

	return p
}
