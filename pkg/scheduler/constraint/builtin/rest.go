package builtin

import (
	"fmt"

	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// RestBetweenNightsRule 夜班后的休息
// 不得连续两天夜班；不允许连班的员工夜班后次日不得上日班。上月最后夜班视为第 0 天的夜班。
type RestBetweenNightsRule struct {
	*BaseRule
}

// NewRestBetweenNightsRule 创建夜班休息规则
func NewRestBetweenNightsRule() *RestBetweenNightsRule {
	return &RestBetweenNightsRule{
		BaseRule: NewBaseRule("夜班后休息", constraint.TypeRestBetweenNights, constraint.CategoryHard, 90),
	}
}

// Encode 编码规则
func (r *RestBetweenNightsRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	m := ctx.Model
	vars := ctx.Vars()

	for e, emp := range ctx.Employees {
		if ctx.Domain.IsPrevNightWorker(e) {
			if night, _, ok := vars.Night(e, 1); ok {
				m.AddEquality(cpsat.Sum(night), 0)
				stats.Constraints++
			}
			if day, ok := vars.Day(e, 1); ok && !emp.AllowsDoubleShift {
				m.AddEquality(cpsat.Sum(day), 0)
				stats.Constraints++
			}
		}

		for d := 1; d < ctx.NumDays(); d++ {
			night, _, ok := vars.Night(e, d)
			if !ok {
				continue
			}
			if next, _, ok := vars.Night(e, d+1); ok {
				m.AddLessOrEqual(cpsat.Sum(night, next), 1).WithName("rest_night_night")
				stats.Constraints++
			}
			if emp.AllowsDoubleShift {
				continue
			}
			if day, ok := vars.Day(e, d+1); ok {
				m.AddLessOrEqual(cpsat.Sum(night, day), 1).WithName("rest_night_day")
				stats.Constraints++
			}
		}
	}
	return stats, nil
}

// DoubleShiftRestRule 连班后 36 小时休息
// 第 d 天夜班接第 d+1 天日班（连班）时，第 d+2 天不得上任何班
type DoubleShiftRestRule struct {
	*BaseRule
}

// NewDoubleShiftRestRule 创建连班休息规则
func NewDoubleShiftRestRule() *DoubleShiftRestRule {
	return &DoubleShiftRestRule{
		BaseRule: NewBaseRule("连班后休息", constraint.TypeDoubleShiftRest, constraint.CategoryHard, 85),
	}
}

// Encode 编码规则
func (r *DoubleShiftRestRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	m := ctx.Model
	vars := ctx.Vars()

	for e, emp := range ctx.Employees {
		// 上月最后夜班 + 第 1 天日班
		if ctx.Domain.IsPrevNightWorker(e) {
			if day, ok := vars.Day(e, 1); ok {
				for _, v := range vars.OnDay(e, 2) {
					m.AddImplication(day.Lit(), v.Not())
					stats.Constraints++
				}
			}
		}

		for d := 1; d+1 <= ctx.NumDays(); d++ {
			night, _, ok := vars.Night(e, d)
			if !ok {
				continue
			}
			day, ok := vars.Day(e, d+1)
			if !ok {
				continue
			}
			after := vars.OnDay(e, d+2)
			if len(after) == 0 {
				continue
			}

			ds := m.NewBoolVar(fmt.Sprintf("double_%s_d%d", emp.Name, d))
			stats.Indicators++
			m.AddImplication(ds.Lit(), night.Lit())
			m.AddImplication(ds.Lit(), day.Lit())
			m.AddBoolOr(night.Not(), day.Not(), ds.Lit())
			stats.Constraints += 3

			for _, v := range after {
				m.AddImplication(ds.Lit(), v.Not()).WithName("double_shift_rest")
				stats.Constraints++
			}
		}
	}
	return stats, nil
}
