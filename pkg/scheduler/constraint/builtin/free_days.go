package builtin

import (
	"fmt"

	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// FreeWeekendRule 每人至少一个完整的休息周末
// 周末窗口为周五夜班、周六日夜班、周日日夜班，只考虑完整落在计划期内的窗口
type FreeWeekendRule struct {
	*BaseRule
}

// NewFreeWeekendRule 创建休息周末规则
func NewFreeWeekendRule() *FreeWeekendRule {
	return &FreeWeekendRule{
		BaseRule: NewBaseRule("休息周末", constraint.TypeFreeWeekend, constraint.CategoryHard, 60),
	}
}

// Encode 编码规则
func (r *FreeWeekendRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	starts := ctx.Calendar.FreeWeekendStarts()
	if len(starts) == 0 {
		return stats, nil
	}

	m := ctx.Model
	vars := ctx.Vars()
	for e, emp := range ctx.Employees {
		indicators := make([]cpsat.BoolVar, 0, len(starts))
		for _, fri := range starts {
			var window []cpsat.BoolVar
			if v, _, ok := vars.Night(e, fri); ok {
				window = append(window, v)
			}
			window = append(window, vars.OnDay(e, fri+1)...)
			window = append(window, vars.OnDay(e, fri+2)...)

			w := m.NewBoolVar(fmt.Sprintf("weekend_%s_d%d", emp.Name, fri))
			stats.Indicators++
			indicators = append(indicators, w)

			if len(window) == 0 {
				m.AddEquality(cpsat.Sum(w), 1)
				stats.Constraints++
				continue
			}
			lits := []cpsat.Literal{w.Lit()}
			for _, v := range window {
				m.AddImplication(w.Lit(), v.Not())
				lits = append(lits, v.Lit())
			}
			m.AddBoolOr(lits...)
			stats.Constraints += len(window) + 1
		}

		m.AddGreaterOrEqual(cpsat.SumBools(indicators), 1).WithName("free_weekend")
		stats.Constraints++
	}
	return stats, nil
}

// FreeDayQuotaRule 休息天数不少于计划期内周末与节假日天数
type FreeDayQuotaRule struct {
	*BaseRule
}

// NewFreeDayQuotaRule 创建休息天数规则
func NewFreeDayQuotaRule() *FreeDayQuotaRule {
	return &FreeDayQuotaRule{
		BaseRule: NewBaseRule("休息天数", constraint.TypeFreeDayQuota, constraint.CategoryHard, 70),
	}
}

// Encode 编码规则
func (r *FreeDayQuotaRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	required := ctx.Calendar.RequiredFreeDays
	if required == 0 {
		return stats, nil
	}

	for e, emp := range ctx.Employees {
		free := make([]cpsat.BoolVar, 0, ctx.NumDays())
		for d := 1; d <= ctx.NumDays(); d++ {
			free = append(free, ctx.FreeDay(e, d))
		}
		ctx.Model.AddGreaterOrEqual(cpsat.SumBools(free), int64(required)).WithName("free_day_quota")
		stats.Constraints++

		if meetings := len(ctx.Calendar.TeamMeetingDays()); ctx.NumDays()-meetings < required {
			stats.Diagnose("员工 %s 扣除团队会议日后不足 %d 个可休息日", emp.Name, required)
		}
	}
	return stats, nil
}

// MaxConsecutiveRule 连续工作天数上限
// 任意 max+1 个连续日中至少有一个休息日
type MaxConsecutiveRule struct {
	*BaseRule
}

// NewMaxConsecutiveRule 创建连续工作上限规则
func NewMaxConsecutiveRule() *MaxConsecutiveRule {
	return &MaxConsecutiveRule{
		BaseRule: NewBaseRule("连续工作上限", constraint.TypeMaxConsecutive, constraint.CategoryHard, 65),
	}
}

// Encode 编码规则
func (r *MaxConsecutiveRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	var stats constraint.Stats
	limit := ctx.MaxConsecutiveShifts
	if limit <= 0 || limit >= ctx.NumDays() {
		return stats, nil
	}

	for e := range ctx.Employees {
		for start := 1; start+limit <= ctx.NumDays(); start++ {
			window := make([]cpsat.BoolVar, 0, limit+1)
			for d := start; d <= start+limit; d++ {
				window = append(window, ctx.FreeDay(e, d))
			}
			ctx.Model.AddGreaterOrEqual(cpsat.SumBools(window), 1).WithName("max_consecutive")
			stats.Constraints++
		}
	}
	return stats, nil
}
