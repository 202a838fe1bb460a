package builtin

import (
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// CoverageRule 每天恰好一人上日班、一人上当天变体的夜班
// 某个班次没有任何变量时仍然添加约束，使模型在设计期即不可行
type CoverageRule struct {
	*BaseRule
}

// NewCoverageRule 创建覆盖规则
func NewCoverageRule() *CoverageRule {
	return &CoverageRule{
		BaseRule: NewBaseRule("班次覆盖", constraint.TypeCoverage, constraint.CategoryHard, 100),
	}
}

// Encode 编码规则
func (r *CoverageRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	m := ctx.Model
	vars := ctx.Vars()

	for d := 1; d <= ctx.NumDays(); d++ {
		info := ctx.Calendar.Day(d)

		if !info.NoDayShift {
			day := vars.DayShifts(d, ctx.NumEmployees())
			if len(day) == 0 {
				stats.Diagnose("第 %d 天（%s）日班无人可排", d, info.DateString())
			}
			m.AddEquality(cpsat.SumBools(day), 1).WithName("coverage_day")
			stats.Constraints++
		}

		night := vars.NightShifts(d, ctx.NumEmployees(), info.NightKind())
		if len(night) == 0 {
			stats.Diagnose("第 %d 天（%s）%s 无人可排", d, info.DateString(), info.NightKind().Label())
		}
		m.AddEquality(cpsat.SumBools(night), 1).WithName("coverage_night")
		stats.Constraints++
	}
	return stats, nil
}

// OneShiftPerDayRule 每人每天最多一个班次
type OneShiftPerDayRule struct {
	*BaseRule
}

// NewOneShiftPerDayRule 创建每日单班规则
func NewOneShiftPerDayRule() *OneShiftPerDayRule {
	return &OneShiftPerDayRule{
		BaseRule: NewBaseRule("每日单班", constraint.TypeOneShiftPerDay, constraint.CategoryHard, 95),
	}
}

// Encode 编码规则
func (r *OneShiftPerDayRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	for e := 0; e < ctx.NumEmployees(); e++ {
		for d := 1; d <= ctx.NumDays(); d++ {
			vs := ctx.Vars().OnDay(e, d)
			if len(vs) < 2 {
				continue
			}
			ctx.Model.AddLessOrEqual(cpsat.SumBools(vs), 1)
			stats.Constraints++
		}
	}
	return stats, nil
}

// ForcedOverridesRule 强制排班变量取 1
type ForcedOverridesRule struct {
	*BaseRule
}

// NewForcedOverridesRule 创建强制排班规则
func NewForcedOverridesRule() *ForcedOverridesRule {
	return &ForcedOverridesRule{
		BaseRule: NewBaseRule("强制排班", constraint.TypeForcedOverrides, constraint.CategoryHard, 100),
	}
}

// Encode 编码规则
func (r *ForcedOverridesRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	seen := make(map[[2]int]bool)
	for _, f := range ctx.Domain.Forced {
		key := [2]int{f.Key.Employee, f.Key.Day}
		if seen[key] {
			stats.Diagnose("员工 %s 第 %d 天有多条强制排班", ctx.Employees[f.Key.Employee].Name, f.Key.Day)
		}
		seen[key] = true

		ctx.Model.AddEquality(cpsat.Sum(f.Var), 1).WithName("forced")
		stats.Constraints++
	}
	return stats, nil
}
