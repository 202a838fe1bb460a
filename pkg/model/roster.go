package model

import (
	"fmt"

	apperrors "github.com/paiban/roster/pkg/errors"
)

// DayTable 员工 × 日期 → 布尔值（休假表、偏好休息表）
// 构造后只读
type DayTable struct {
	name string
	days int
	rows map[string][]bool
}

// NewDayTable 创建日期表，name 用于错误信息
func NewDayTable(name string, days int) *DayTable {
	return &DayTable{
		name: name,
		days: days,
		rows: make(map[string][]bool),
	}
}

// SetRow 设置某员工整行，values[i] 对应第 i+1 天
func (t *DayTable) SetRow(employee string, values []bool) error {
	if len(values) != t.days {
		return fmt.Errorf("%s 中员工 %s 的列数 %d 与天数 %d 不符", t.name, employee, len(values), t.days)
	}
	row := make([]bool, len(values))
	copy(row, values)
	t.rows[employee] = row
	return nil
}

// Lookup 查询某员工某天的值，缺失员工或日期时返回 LookupError
func (t *DayTable) Lookup(employee string, day int) (bool, error) {
	row, ok := t.rows[employee]
	if !ok {
		return false, apperrors.Lookup(t.name, employee, 0)
	}
	if day < 1 || day > len(row) {
		return false, apperrors.Lookup(t.name, employee, day)
	}
	return row[day-1], nil
}

// Has 是否包含某员工
func (t *DayTable) Has(employee string) bool {
	_, ok := t.rows[employee]
	return ok
}

// Days 表的天数
func (t *DayTable) Days() int {
	return t.days
}

// Name 表名称
func (t *DayTable) Name() string {
	return t.name
}

// Count 统计某员工为 true 的天数
func (t *DayTable) Count(employee string) int {
	n := 0
	for _, v := range t.rows[employee] {
		if v {
			n++
		}
	}
	return n
}

// Cell 排班表的一格
type Cell struct {
	Shifts   []ShiftKind `json:"shifts,omitempty"` // 当天开始的班次
	Display  string      `json:"display"`
	Vacation bool        `json:"vacation,omitempty"`
}

// HasDay 当天是否上日班
func (c Cell) HasDay() bool {
	for _, k := range c.Shifts {
		if k == ShiftDay {
			return true
		}
	}
	return false
}

// Night 当天开始的夜班
func (c Cell) Night() (ShiftKind, bool) {
	for _, k := range c.Shifts {
		if k.IsNight() {
			return k, true
		}
	}
	return "", false
}

// Working 当天是否有班次开始
func (c Cell) Working() bool {
	return len(c.Shifts) > 0
}

// 显示文本
const (
	DisplayFree     = "free"
	DisplayVacation = "vacation"
)

// Roster 排班表：日期 × 员工
type Roster struct {
	Days      []Day    `json:"days"`
	Employees []string `json:"employees"`
	Cells     [][]Cell `json:"cells"` // [day-1][employee]
}

// NewRoster 创建空排班表
func NewRoster(days []Day, employees []string) *Roster {
	cells := make([][]Cell, len(days))
	for i := range cells {
		cells[i] = make([]Cell, len(employees))
	}
	return &Roster{Days: days, Employees: employees, Cells: cells}
}

// At 返回某天某员工的格子
func (r *Roster) At(day, employee int) Cell {
	return r.Cells[day-1][employee]
}

// Set 设置格子
func (r *Roster) Set(day, employee int, c Cell) {
	r.Cells[day-1][employee] = c
}

// WorkerOf 返回某天某班次的员工下标，无人时返回 -1
func (r *Roster) WorkerOf(day int, night bool) int {
	for e, c := range r.Cells[day-1] {
		if night {
			if _, ok := c.Night(); ok {
				return e
			}
		} else if c.HasDay() {
			return e
		}
	}
	return -1
}

// WorktimeEntry 单个员工的工时台账
type WorktimeEntry struct {
	Employee            string `json:"employee"`
	ShiftMinutes        int    `json:"shift_minutes"`
	VacationCredit      int    `json:"vacation_credit"`
	MeetingCredit       int    `json:"meeting_credit"`
	ActualMinutes       int    `json:"actual_minutes"`
	BaseTargetMinutes   int    `json:"base_target_minutes"`
	TargetMinutes       int    `json:"target_minutes"` // 已按加班余额调整
	DeviationMinutes    int    `json:"deviation_minutes"`
	PrevOvertimeMinutes int    `json:"prev_overtime_minutes"`
	NewOvertimeMinutes  int    `json:"new_overtime_minutes"`
	DayShifts           int    `json:"day_shifts"`
	NightShifts         int    `json:"night_shifts"`
	WeekendShifts       int    `json:"weekend_shifts"`
	DoubleShifts        int    `json:"double_shifts"`
	FreeDays            int    `json:"free_days"`
	VacationDays        int    `json:"vacation_days"`
}

// RealizedHours 实际工时（小时）
func (w WorktimeEntry) RealizedHours() float64 {
	return float64(w.ActualMinutes) / 60.0
}

// NewOvertimeHours 新加班余额（小时）
func (w WorktimeEntry) NewOvertimeHours() float64 {
	return float64(w.NewOvertimeMinutes) / 60.0
}

// WorktimeLedger 全体员工的工时台账
type WorktimeLedger struct {
	Entries []WorktimeEntry `json:"entries"`
}

// Get 按姓名查找
func (l *WorktimeLedger) Get(employee string) (WorktimeEntry, bool) {
	for _, e := range l.Entries {
		if e.Employee == employee {
			return e, true
		}
	}
	return WorktimeEntry{}, false
}

// MaxAbsDeviation 最大绝对偏差
func (l *WorktimeLedger) MaxAbsDeviation() int {
	m := 0
	for _, e := range l.Entries {
		d := e.DeviationMinutes
		if d < 0 {
			d = -d
		}
		if d > m {
			m = d
		}
	}
	return m
}
