// Package objective 构建工时核算与公平性目标
package objective

import (
	"fmt"

	"github.com/paiban/roster/pkg/model"
)

// NightDurations 单个夜班变体的时长（分钟）
type NightDurations struct {
	Alone         int `json:"alone" yaml:"alone" validate:"min=0"`                   // 次日无本人日班
	WithDay       int `json:"with_day" yaml:"with_day" validate:"min=0"`             // 次日本人接日班（连班）
	BeforeMeeting int `json:"before_meeting" yaml:"before_meeting" validate:"min=0"` // 次日为团队会议日
}

// Durations 各班次时长（分钟）
type Durations struct {
	Day                int `json:"day" yaml:"day" validate:"min=0"`
	DayTeamMeeting     int `json:"day_team_meeting" yaml:"day_team_meeting" validate:"min=0"`
	DayChildrenHoliday int `json:"day_children_holiday" yaml:"day_children_holiday" validate:"min=0"`

	NightWeekday NightDurations `json:"night_weekday" yaml:"night_weekday"`
	NightWeekend NightDurations `json:"night_weekend" yaml:"night_weekend"`
	NightMidweek NightDurations `json:"night_midweek" yaml:"night_midweek"`
}

// DefaultDurations 默认时长
func DefaultDurations() Durations {
	return Durations{
		Day:                720,
		DayTeamMeeting:     780,
		DayChildrenHoliday: 660,
		NightWeekday:       NightDurations{Alone: 780, WithDay: 840, BeforeMeeting: 720},
		NightWeekend:       NightDurations{Alone: 810, WithDay: 870, BeforeMeeting: 750},
		NightMidweek:       NightDurations{Alone: 750, WithDay: 810, BeforeMeeting: 690},
	}
}

// Night 返回夜班变体的时长
func (d Durations) Night(kind model.ShiftKind) NightDurations {
	switch kind {
	case model.ShiftNightWeekend:
		return d.NightWeekend
	case model.ShiftNightMidweek:
		return d.NightMidweek
	default:
		return d.NightWeekday
	}
}

// DayMinutes 当天日班时长，团队会议优先于儿童假期
func (d Durations) DayMinutes(day model.Day) int {
	switch {
	case day.TeamMeeting:
		return d.DayTeamMeeting
	case day.ChildrenHoliday:
		return d.DayChildrenHoliday
	default:
		return d.Day
	}
}

// NightMinutes 夜班时长
// withDay 表示本人次日接日班，beforeMeeting 表示次日为团队会议日
func (d Durations) NightMinutes(kind model.ShiftKind, withDay, beforeMeeting bool) int {
	n := d.Night(kind)
	switch {
	case withDay:
		return n.WithDay
	case beforeMeeting:
		return n.BeforeMeeting
	default:
		return n.Alone
	}
}

// VacationCreditMode 休假抵扣方式
type VacationCreditMode string

const (
	VacationCreditNone        VacationCreditMode = "none"
	VacationCreditDailyTarget VacationCreditMode = "daily_target" // 每个工作日休假按日目标工时计
)

// Settings 目标函数参数
type Settings struct {
	WorkingDaysPerWeek int                `json:"working_days_per_week"`
	OvertimeModifier   float64            `json:"overtime_modifier"`
	Durations          Durations          `json:"durations"`
	VacationCredit     VacationCreditMode `json:"vacation_credit"`
	TeamMeetingCredit  int                `json:"team_meeting_credit"` // 非休假员工每个团队会议日的抵扣分钟

	BalanceOvertime    bool `json:"balance_overtime"`    // 最小化最大工时偏差
	RespectPreferences bool `json:"respect_preferences"` // 次目标：减少占用期望休息日
	ForcePreferences   bool `json:"force_preferences"`   // 期望休息日作为硬约束
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{
		WorkingDaysPerWeek: 5,
		OvertimeModifier:   1.0,
		Durations:          DefaultDurations(),
		VacationCredit:     VacationCreditDailyTarget,
		TeamMeetingCredit:  60,
		BalanceOvertime:    true,
		RespectPreferences: true,
	}
}

// Validate 检查参数
func (s Settings) Validate() error {
	if s.WorkingDaysPerWeek < 1 || s.WorkingDaysPerWeek > 7 {
		return fmt.Errorf("每周工作日 %d 超出 1..7", s.WorkingDaysPerWeek)
	}
	switch s.VacationCredit {
	case VacationCreditNone, VacationCreditDailyTarget:
	default:
		return fmt.Errorf("未知的休假抵扣方式 %q", s.VacationCredit)
	}
	if s.TeamMeetingCredit < 0 {
		return fmt.Errorf("团队会议抵扣不能为负")
	}
	return nil
}
