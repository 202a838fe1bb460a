// Package model 定义排班引擎的核心数据模型
package model

import (
	"fmt"
	"strings"
	"time"
)

// ShiftKind 班次类型
type ShiftKind string

const (
	ShiftDay          ShiftKind = "d"   // 日班
	ShiftNightWeekday ShiftKind = "nwd" // 普通夜班（周四、周日）
	ShiftNightWeekend ShiftKind = "nwe" // 周末夜班（周五、周六）
	ShiftNightMidweek ShiftKind = "hwk" // 周中夜班（周一至周三）

	// ShiftNightAny 仅用于强制排班，表示当天适用的夜班变体
	ShiftNightAny ShiftKind = "n"
)

// AllShiftKinds 全部班次类型，顺序即变量创建顺序
var AllShiftKinds = []ShiftKind{ShiftDay, ShiftNightWeekday, ShiftNightWeekend, ShiftNightMidweek}

// NightKinds 全部夜班变体
var NightKinds = []ShiftKind{ShiftNightWeekday, ShiftNightWeekend, ShiftNightMidweek}

// IsNight 是否为夜班
func (k ShiftKind) IsNight() bool {
	return k == ShiftNightWeekday || k == ShiftNightWeekend || k == ShiftNightMidweek || k == ShiftNightAny
}

// Label 显示名称
func (k ShiftKind) Label() string {
	switch k {
	case ShiftDay:
		return "Day"
	case ShiftNightWeekday:
		return "Night"
	case ShiftNightWeekend:
		return "NightWeekend"
	case ShiftNightMidweek:
		return "NightHWK"
	default:
		return string(k)
	}
}

// ParseShiftKind 解析单个班次代码
// "n" 作为夜班的统称，由调用方按当天的星期类别解析为具体变体
func ParseShiftKind(s string) (ShiftKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day":
		return ShiftDay, nil
	case "n":
		return ShiftNightAny, nil
	case "nwd", "night":
		return ShiftNightWeekday, nil
	case "nwe", "night_weekend":
		return ShiftNightWeekend, nil
	case "hwk", "night_midweek":
		return ShiftNightMidweek, nil
	}
	return "", fmt.Errorf("未知班次类型 %q", s)
}

// WeekdayClass 星期类别，决定当天使用哪种夜班变体
type WeekdayClass string

const (
	ClassMidweek  WeekdayClass = "HWK"      // 周一至周三
	ClassStandard WeekdayClass = "STANDARD" // 周四、周日
	ClassWeekend  WeekdayClass = "WEEKEND"  // 周五、周六
)

// ClassOf 返回星期对应的类别（纯函数）
func ClassOf(wd time.Weekday) WeekdayClass {
	switch wd {
	case time.Monday, time.Tuesday, time.Wednesday:
		return ClassMidweek
	case time.Friday, time.Saturday:
		return ClassWeekend
	default:
		return ClassStandard
	}
}

// NightKind 该类别当天唯一适用的夜班变体
func (c WeekdayClass) NightKind() ShiftKind {
	switch c {
	case ClassMidweek:
		return ShiftNightMidweek
	case ClassWeekend:
		return ShiftNightWeekend
	default:
		return ShiftNightWeekday
	}
}

// Day 计划期内的一天
type Day struct {
	Index           int          `json:"index"` // 1..天数
	Date            time.Time    `json:"date"`
	Weekday         time.Weekday `json:"weekday"`
	Class           WeekdayClass `json:"class"`
	Weekend         bool         `json:"weekend"` // 周六、周日
	Holiday         bool         `json:"holiday"`
	HolidayName     string       `json:"holiday_name,omitempty"`
	TeamMeeting     bool         `json:"team_meeting"`
	NoDayShift      bool         `json:"no_day_shift"`
	ChildrenHoliday bool         `json:"children_holiday"`
}

// NightKind 当天适用的夜班变体
func (d Day) NightKind() ShiftKind {
	return d.Class.NightKind()
}

// IsFreeByCalendar 是否计入应休天数（周末或法定假日）
func (d Day) IsFreeByCalendar() bool {
	return d.Weekend || d.Holiday
}

// DateString 返回 YYYY-MM-DD
func (d Day) DateString() string {
	return d.Date.Format("2006-01-02")
}

// ForcedAssignment 强制指定的排班
type ForcedAssignment struct {
	Employee string    `json:"employee" yaml:"employee"`
	Day      int       `json:"day" yaml:"day"`
	Shift    ShiftKind `json:"shift" yaml:"shift"`
}

// Clock 班次的时钟时间，格式 HH:MM
type Clock struct {
	DayStart   string `json:"day_start" yaml:"day_start"`
	DayEnd     string `json:"day_end" yaml:"day_end"`
	NightStart string `json:"night_start" yaml:"night_start"`
	NightEnd   string `json:"night_end" yaml:"night_end"`
}

// DefaultClock 默认时钟
func DefaultClock() Clock {
	return Clock{
		DayStart:   "07:00",
		DayEnd:     "19:00",
		NightStart: "19:00",
		NightEnd:   "08:00",
	}
}
