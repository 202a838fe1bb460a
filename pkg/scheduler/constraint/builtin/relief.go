package builtin

import (
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// ReliefOrderingRule 接替顺序
//
// 员工 n 的不接替名单中有 m 时：
// n 上第 d 天日班 ⇒ m 不上第 d 天夜班；
// n 上第 d 天夜班 ⇒ m 不上第 d+1 天日班；
// n 是上月最后夜班的员工 ⇒ m 不上第 1 天日班。
type ReliefOrderingRule struct {
	*BaseRule
}

// NewReliefOrderingRule 创建接替顺序规则
func NewReliefOrderingRule() *ReliefOrderingRule {
	return &ReliefOrderingRule{
		BaseRule: NewBaseRule("接替顺序", constraint.TypeReliefOrdering, constraint.CategoryHard, 80),
	}
}

// Encode 编码规则
func (r *ReliefOrderingRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	m := ctx.Model
	vars := ctx.Vars()

	for n, emp := range ctx.Employees {
		for _, name := range emp.NotRelievedBy {
			o, ok := ctx.Domain.EmployeeIndex(name)
			if !ok || o == n {
				continue
			}

			if ctx.Domain.IsPrevNightWorker(n) {
				if next, ok := vars.Day(o, 1); ok {
					m.AddEquality(cpsat.Sum(next), 0)
					stats.Constraints++
				}
			}

			for d := 1; d <= ctx.NumDays(); d++ {
				if day, ok := vars.Day(n, d); ok {
					if night, _, ok := vars.Night(o, d); ok {
						m.AddImplication(day.Lit(), night.Not()).WithName("relief_day_night")
						stats.Constraints++
					}
				}
				if night, _, ok := vars.Night(n, d); ok {
					if next, ok := vars.Day(o, d+1); ok {
						m.AddImplication(night.Lit(), next.Not()).WithName("relief_night_day")
						stats.Constraints++
					}
				}
			}
		}
	}
	return stats, nil
}

// NoSingleDayShiftRule 标记员工的日班前一天必须是本人的夜班
// 第 1 天仅当该员工上了上月最后一个夜班时允许日班
type NoSingleDayShiftRule struct {
	*BaseRule
}

// NewNoSingleDayShiftRule 创建禁止单独日班规则
func NewNoSingleDayShiftRule() *NoSingleDayShiftRule {
	return &NoSingleDayShiftRule{
		BaseRule: NewBaseRule("禁止单独日班", constraint.TypeNoSingleDayShift, constraint.CategoryHard, 75),
	}
}

// Encode 编码规则
func (r *NoSingleDayShiftRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	m := ctx.Model
	vars := ctx.Vars()

	for e, emp := range ctx.Employees {
		if !emp.NoSingleDayShift {
			continue
		}
		for d := 1; d <= ctx.NumDays(); d++ {
			day, ok := vars.Day(e, d)
			if !ok {
				continue
			}
			if d == 1 {
				if !ctx.Domain.IsPrevNightWorker(e) {
					m.AddEquality(cpsat.Sum(day), 0)
					stats.Constraints++
				}
				continue
			}
			if prev, _, ok := vars.Night(e, d-1); ok {
				m.AddImplication(day.Lit(), prev.Lit())
			} else {
				m.AddEquality(cpsat.Sum(day), 0)
			}
			stats.Constraints++
		}
	}
	return stats, nil
}
