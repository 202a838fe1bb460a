package objective

import (
	"math"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

// 以下核算函数由目标构建与解码共用，保证两边口径一致

// DailyTargetMinutes 日目标工时
func DailyTargetMinutes(hoursPerWeek, workingDaysPerWeek int) int {
	return int(math.Round(float64(hoursPerWeek) * 60 / float64(workingDaysPerWeek)))
}

// BaseTargetMinutes 计划期目标工时：周工时 / 每周工作日 × (天数 − 应休天数) × 60
func BaseTargetMinutes(hoursPerWeek, workingDaysPerWeek int, cal *calendar.Context) int {
	perDay := float64(hoursPerWeek) / float64(workingDaysPerWeek)
	return int(math.Round(perDay * float64(cal.WorkingDays()) * 60))
}

// AdjustedTargetMinutes 按加班余额修正后的目标
func AdjustedTargetMinutes(base, overtimeMinutes int, modifier float64) int {
	return base - int(math.Round(modifier*float64(overtimeMinutes)))
}

// Credits 员工的固定抵扣
type Credits struct {
	Vacation int
	Meeting  int
}

// Total 合计
func (c Credits) Total() int {
	return c.Vacation + c.Meeting
}

// CreditsFor 计算员工的休假与团队会议抵扣
func (s Settings) CreditsFor(emp *model.Employee, cal *calendar.Context, onVacation func(day int) bool) Credits {
	var c Credits
	daily := DailyTargetMinutes(emp.HoursPerWeek, s.WorkingDaysPerWeek)
	for _, d := range cal.Days {
		if onVacation(d.Index) {
			if s.VacationCredit == VacationCreditDailyTarget && !d.IsFreeByCalendar() {
				c.Vacation += daily
			}
			continue
		}
		if d.TeamMeeting {
			c.Meeting += s.TeamMeetingCredit
		}
	}
	return c
}

// NightMinutesOn 第 day 天夜班的实际时长，最后一天按单独夜班计
func (s Settings) NightMinutesOn(cal *calendar.Context, day int, withDay bool) int {
	kind := cal.Day(day).NightKind()
	if cal.IsLastDay(day) {
		return s.Durations.NightMinutes(kind, false, false)
	}
	return s.Durations.NightMinutes(kind, withDay, cal.Day(day+1).TeamMeeting)
}

// RequiredMinutes 计划期内必须覆盖的分钟数（每天日班 + 单独夜班）
func (s Settings) RequiredMinutes(cal *calendar.Context) int {
	total := 0
	for _, d := range cal.Days {
		if !d.NoDayShift {
			total += s.Durations.DayMinutes(d)
		}
		total += s.Durations.Night(d.NightKind()).Alone
	}
	return total
}
