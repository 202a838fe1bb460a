// Package decoder 把求解结果转换为排班表与工时台账
package decoder

import (
	"strings"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler/domain"
	"github.com/paiban/roster/pkg/scheduler/objective"
)

// Assignment 求解得到的取值
// *cpsat.Response 满足该接口
type Assignment interface {
	BoolValue(b cpsat.BoolVar) bool
}

// Input 解码输入
type Input struct {
	Calendar  *calendar.Context
	Employees []*model.Employee
	Domain    *domain.Domain
}

// Output 解码结果
type Output struct {
	Roster *model.Roster
	Ledger *model.WorktimeLedger

	// CarryOut 计划期最后一个夜班的员工，供下月使用；无人时为空
	CarryOut string
}

// Decoder 解码器，只读取取值，不会再次调用求解器
type Decoder struct {
	settings objective.Settings
	clock    model.Clock
}

// New 创建解码器
func New(settings objective.Settings, clock model.Clock) *Decoder {
	return &Decoder{settings: settings, clock: clock}
}

// realized 单个员工逐日的实际班次
type realized struct {
	day   []bool // [日序号]，0 号表示上月
	night []bool
	kind  []model.ShiftKind
}

func (r realized) nightBefore(d int) bool {
	return r.night[d-1]
}

// Decode 解码
func (dc *Decoder) Decode(in Input, sol Assignment) *Output {
	cal := in.Calendar
	n := cal.NumDays()

	names := make([]string, len(in.Employees))
	for i, e := range in.Employees {
		names[i] = e.Name
	}

	out := &Output{
		Roster: model.NewRoster(cal.Days, names),
		Ledger: &model.WorktimeLedger{Entries: make([]model.WorktimeEntry, 0, len(in.Employees))},
	}

	for e, emp := range in.Employees {
		r := dc.realize(in, sol, e)
		for d := 1; d <= n; d++ {
			out.Roster.Set(d, e, dc.cell(in, r, e, d))
		}
		out.Ledger.Entries = append(out.Ledger.Entries, dc.entry(in, r, e, emp))
	}

	if w := out.Roster.WorkerOf(n, true); w >= 0 {
		out.CarryOut = names[w]
	}
	return out
}

func (dc *Decoder) realize(in Input, sol Assignment, e int) realized {
	n := in.Calendar.NumDays()
	r := realized{
		day:   make([]bool, n+2),
		night: make([]bool, n+2),
		kind:  make([]model.ShiftKind, n+2),
	}
	r.night[0] = in.Domain.IsPrevNightWorker(e)

	vars := in.Domain.Vars
	for d := 1; d <= n; d++ {
		if v, ok := vars.Day(e, d); ok && sol.BoolValue(v) {
			r.day[d] = true
		}
		if v, kind, ok := vars.Night(e, d); ok && sol.BoolValue(v) {
			r.night[d] = true
			r.kind[d] = kind
		}
	}
	return r
}

// cell 生成显示文本
//
// 日班 day_start-day_end，前一天本人夜班时为 00:00-day_end；
// 夜班 night_start-24:00；前一天夜班而当天无日班时为 00:00-night_end。
func (dc *Decoder) cell(in Input, r realized, e, d int) model.Cell {
	c := model.Cell{Vacation: in.Domain.OnVacation(e, d)}
	var parts []string

	switch {
	case r.day[d] && r.nightBefore(d):
		parts = append(parts, "00:00-"+dc.clock.DayEnd)
	case r.day[d]:
		parts = append(parts, dc.clock.DayStart+"-"+dc.clock.DayEnd)
	case r.nightBefore(d):
		parts = append(parts, "00:00-"+dc.clock.NightEnd)
	}
	if r.day[d] {
		c.Shifts = append(c.Shifts, model.ShiftDay)
	}
	if r.night[d] {
		parts = append(parts, dc.clock.NightStart+"-24:00")
		c.Shifts = append(c.Shifts, r.kind[d])
	}

	switch {
	case len(parts) > 0:
		c.Display = strings.Join(parts, ", ")
	case c.Vacation:
		c.Display = model.DisplayVacation
	default:
		c.Display = model.DisplayFree
	}
	return c
}

func (dc *Decoder) entry(in Input, r realized, e int, emp *model.Employee) model.WorktimeEntry {
	cal := in.Calendar
	s := dc.settings
	onVacation := func(day int) bool { return in.Domain.OnVacation(e, day) }

	credits := s.CreditsFor(emp, cal, onVacation)
	base := objective.BaseTargetMinutes(emp.HoursPerWeek, s.WorkingDaysPerWeek, cal)
	w := model.WorktimeEntry{
		Employee:            emp.Name,
		VacationCredit:      credits.Vacation,
		MeetingCredit:       credits.Meeting,
		BaseTargetMinutes:   base,
		TargetMinutes:       objective.AdjustedTargetMinutes(base, emp.OvertimeMinutes, s.OvertimeModifier),
		PrevOvertimeMinutes: emp.OvertimeMinutes,
		VacationDays:        in.Domain.VacationDays(e),
	}

	for d := 1; d <= cal.NumDays(); d++ {
		info := cal.Day(d)
		if r.day[d] {
			w.ShiftMinutes += s.Durations.DayMinutes(info)
			w.DayShifts++
		}
		if r.night[d] {
			w.ShiftMinutes += s.NightMinutesOn(cal, d, r.day[d+1])
			w.NightShifts++
			if r.day[d+1] {
				w.DoubleShifts++
			}
		}
		if info.IsFreeByCalendar() {
			if r.day[d] {
				w.WeekendShifts++
			}
			if r.night[d] {
				w.WeekendShifts++
			}
		}
		if dc.free(in, r, e, d) {
			w.FreeDays++
		}
	}

	w.ActualMinutes = w.ShiftMinutes + credits.Total()
	w.DeviationMinutes = w.ActualMinutes - w.TargetMinutes
	w.NewOvertimeMinutes = w.PrevOvertimeMinutes + (w.ActualMinutes - w.BaseTargetMinutes)
	return w
}

// free 与模型中的休息日指示变量口径一致
func (dc *Decoder) free(in Input, r realized, e, d int) bool {
	info := in.Calendar.Day(d)
	if info.TeamMeeting && !in.Domain.OnVacation(e, d) {
		return false
	}
	return !r.day[d] && !r.night[d] && !r.nightBefore(d)
}
