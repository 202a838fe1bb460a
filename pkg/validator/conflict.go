// Package validator 对解码后的排班表逐项复核排班规则
package validator

import (
	"fmt"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

// ConflictType 冲突类型，与规则类型同名
type ConflictType string

const (
	ConflictCoverage        ConflictType = "coverage"
	ConflictOneShift        ConflictType = "one_shift_per_day"
	ConflictRelief          ConflictType = "relief_ordering"
	ConflictSingleDayShift  ConflictType = "no_single_dayshift"
	ConflictRestTime        ConflictType = "rest_between_nights"
	ConflictDoubleShiftRest ConflictType = "double_shift_rest"
	ConflictFreeWeekend     ConflictType = "free_weekend"
	ConflictFreeDays        ConflictType = "free_day_quota"
	ConflictConsecutive     ConflictType = "max_consecutive"
	ConflictForced          ConflictType = "forced_overrides"
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	Employee string       `json:"employee,omitempty"`
	Day      int          `json:"day,omitempty"`
	Date     string       `json:"date,omitempty"`
	Message  string       `json:"message"`
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	Checks             map[ConflictType]bool // 需要检查的规则，nil 表示全部
	MaxConsecutiveDays int                   // 0 表示不限
	PrevNightWorker    string                // 上月最后夜班员工
	Forced             []model.ForcedAssignment
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

func (d *ConflictDetector) enabled(t ConflictType) bool {
	return d.config.Checks == nil || d.config.Checks[t]
}

// view 检测时使用的只读视图
type view struct {
	cal       *calendar.Context
	roster    *model.Roster
	employees []*model.Employee
	prev      int
}

func (v view) day(e, d int) bool {
	if d < 1 || d > v.cal.NumDays() {
		return false
	}
	return v.roster.At(d, e).HasDay()
}

func (v view) night(e, d int) bool {
	if d == 0 {
		return e == v.prev
	}
	if d < 1 || d > v.cal.NumDays() {
		return false
	}
	_, ok := v.roster.At(d, e).Night()
	return ok
}

func (v view) working(e, d int) bool {
	return v.day(e, d) || v.night(e, d)
}

// free 当天无班次且前一天无夜班；非休假的团队会议日不算休息
func (v view) free(e, d int) bool {
	if v.cal.Day(d).TeamMeeting && !v.roster.At(d, e).Vacation {
		return false
	}
	return !v.working(e, d) && !v.night(e, d-1)
}

func (v view) conflict(t ConflictType, e, d int, format string, args ...interface{}) Conflict {
	c := Conflict{Type: t, Severity: "error", Day: d, Message: fmt.Sprintf(format, args...)}
	if e >= 0 {
		c.Employee = v.employees[e].Name
	}
	if d >= 1 {
		c.Date = v.cal.Day(d).DateString()
	}
	return c
}

// DetectAll 检测所有冲突
func (d *ConflictDetector) DetectAll(cal *calendar.Context, employees []*model.Employee, roster *model.Roster) []Conflict {
	v := view{cal: cal, roster: roster, employees: employees, prev: -1}
	for i, e := range employees {
		if e.Name == d.config.PrevNightWorker {
			v.prev = i
		}
	}

	var conflicts []Conflict
	if d.enabled(ConflictCoverage) {
		conflicts = append(conflicts, d.detectCoverage(v)...)
	}
	if d.enabled(ConflictForced) {
		conflicts = append(conflicts, d.detectForced(v)...)
	}

	for e := range employees {
		if d.enabled(ConflictOneShift) {
			conflicts = append(conflicts, d.detectOneShift(v, e)...)
		}
		if d.enabled(ConflictRelief) {
			conflicts = append(conflicts, d.detectRelief(v, e)...)
		}
		if d.enabled(ConflictSingleDayShift) {
			conflicts = append(conflicts, d.detectSingleDayShift(v, e)...)
		}
		if d.enabled(ConflictRestTime) {
			conflicts = append(conflicts, d.detectRestTimeViolations(v, e)...)
		}
		if d.enabled(ConflictDoubleShiftRest) {
			conflicts = append(conflicts, d.detectDoubleShiftRest(v, e)...)
		}
		if d.enabled(ConflictFreeWeekend) {
			conflicts = append(conflicts, d.detectFreeWeekend(v, e)...)
		}
		if d.enabled(ConflictFreeDays) {
			conflicts = append(conflicts, d.detectFreeDays(v, e)...)
		}
		if d.enabled(ConflictConsecutive) && d.config.MaxConsecutiveDays > 0 {
			conflicts = append(conflicts, d.detectConsecutiveDaysViolations(v, e)...)
		}
	}
	return conflicts
}

// HasErrors 是否存在错误级冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == "error" {
			return true
		}
	}
	return false
}

// detectCoverage 每天一人日班（无日班日为零人）、一人上当天变体的夜班
func (d *ConflictDetector) detectCoverage(v view) []Conflict {
	var conflicts []Conflict
	for day := 1; day <= v.cal.NumDays(); day++ {
		info := v.cal.Day(day)
		dayWorkers, nightWorkers := 0, 0
		for e := range v.employees {
			cell := v.roster.At(day, e)
			if cell.HasDay() {
				dayWorkers++
			}
			if kind, ok := cell.Night(); ok {
				nightWorkers++
				if kind != info.NightKind() {
					conflicts = append(conflicts, v.conflict(ConflictCoverage, e, day,
						"夜班变体 %s 与当天的 %s 不符", kind, info.NightKind()))
				}
			}
		}

		wantDay := 1
		if info.NoDayShift {
			wantDay = 0
		}
		if dayWorkers != wantDay {
			conflicts = append(conflicts, v.conflict(ConflictCoverage, -1, day, "日班 %d 人，应为 %d 人", dayWorkers, wantDay))
		}
		if nightWorkers != 1 {
			conflicts = append(conflicts, v.conflict(ConflictCoverage, -1, day, "夜班 %d 人，应为 1 人", nightWorkers))
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectOneShift(v view, e int) []Conflict {
	var conflicts []Conflict
	for day := 1; day <= v.cal.NumDays(); day++ {
		if n := len(v.roster.At(day, e).Shifts); n > 1 {
			conflicts = append(conflicts, v.conflict(ConflictOneShift, e, day, "同一天 %d 个班次", n))
		}
	}
	return conflicts
}

// detectRelief 不接替名单中的同事不得接本员工的下一个班
func (d *ConflictDetector) detectRelief(v view, n int) []Conflict {
	var conflicts []Conflict
	for m, other := range v.employees {
		if m == n || !v.employees[n].MustNotBeRelievedBy(other.Name) {
			continue
		}
		for day := 0; day <= v.cal.NumDays(); day++ {
			if day >= 1 && v.day(n, day) && v.night(m, day) {
				conflicts = append(conflicts, v.conflict(ConflictRelief, m, day,
					"%s 日班后由 %s 接夜班", v.employees[n].Name, other.Name))
			}
			if v.night(n, day) && v.day(m, day+1) {
				conflicts = append(conflicts, v.conflict(ConflictRelief, m, day+1,
					"%s 夜班后由 %s 接日班", v.employees[n].Name, other.Name))
			}
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectSingleDayShift(v view, e int) []Conflict {
	if !v.employees[e].NoSingleDayShift {
		return nil
	}
	var conflicts []Conflict
	for day := 1; day <= v.cal.NumDays(); day++ {
		if v.day(e, day) && !v.night(e, day-1) {
			conflicts = append(conflicts, v.conflict(ConflictSingleDayShift, e, day, "日班前一天没有本人夜班"))
		}
	}
	return conflicts
}

// detectRestTimeViolations 连续夜班与夜班后接日班
func (d *ConflictDetector) detectRestTimeViolations(v view, e int) []Conflict {
	var conflicts []Conflict
	double := v.employees[e].AllowsDoubleShift
	for day := 0; day < v.cal.NumDays(); day++ {
		if !v.night(e, day) {
			continue
		}
		if v.night(e, day+1) {
			conflicts = append(conflicts, v.conflict(ConflictRestTime, e, day+1, "连续两天夜班"))
		}
		if !double && v.day(e, day+1) {
			conflicts = append(conflicts, v.conflict(ConflictRestTime, e, day+1, "夜班后次日上日班且不允许连班"))
		}
	}
	return conflicts
}

// detectDoubleShiftRest 连班后一天不得上班
func (d *ConflictDetector) detectDoubleShiftRest(v view, e int) []Conflict {
	var conflicts []Conflict
	for day := 0; day+2 <= v.cal.NumDays(); day++ {
		if v.night(e, day) && v.day(e, day+1) && v.working(e, day+2) {
			conflicts = append(conflicts, v.conflict(ConflictDoubleShiftRest, e, day+2, "连班后未休息"))
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectFreeWeekend(v view, e int) []Conflict {
	starts := v.cal.FreeWeekendStarts()
	if len(starts) == 0 {
		return nil
	}
	for _, fri := range starts {
		if !v.night(e, fri) && !v.working(e, fri+1) && !v.working(e, fri+2) {
			return nil
		}
	}
	return []Conflict{v.conflict(ConflictFreeWeekend, e, 0, "没有完整的休息周末")}
}

func (d *ConflictDetector) detectFreeDays(v view, e int) []Conflict {
	free := 0
	for day := 1; day <= v.cal.NumDays(); day++ {
		if v.free(e, day) {
			free++
		}
	}
	if free < v.cal.RequiredFreeDays {
		return []Conflict{v.conflict(ConflictFreeDays, e, 0, "休息 %d 天，少于应休的 %d 天", free, v.cal.RequiredFreeDays)}
	}
	return nil
}

// detectConsecutiveDaysViolations 检测连续工作天数
func (d *ConflictDetector) detectConsecutiveDaysViolations(v view, e int) []Conflict {
	var conflicts []Conflict
	run, start := 0, 0
	for day := 1; day <= v.cal.NumDays(); day++ {
		if v.free(e, day) {
			run = 0
			continue
		}
		if run == 0 {
			start = day
		}
		run++
		if run == d.config.MaxConsecutiveDays+1 {
			conflicts = append(conflicts, v.conflict(ConflictConsecutive, e, start,
				"连续工作超过 %d 天", d.config.MaxConsecutiveDays))
		}
	}
	return conflicts
}

// detectForced 强制排班必须出现在排班表中
func (d *ConflictDetector) detectForced(v view) []Conflict {
	var conflicts []Conflict
	for _, f := range d.config.Forced {
		e := -1
		for i, emp := range v.employees {
			if emp.Name == f.Employee {
				e = i
			}
		}
		if e < 0 || !v.cal.InRange(f.Day) {
			continue
		}
		ok := v.day(e, f.Day)
		if f.Shift.IsNight() {
			ok = v.night(e, f.Day)
		}
		if !ok {
			conflicts = append(conflicts, v.conflict(ConflictForced, e, f.Day, "强制排班 %s 未生效", f.Shift))
		}
	}
	return conflicts
}
