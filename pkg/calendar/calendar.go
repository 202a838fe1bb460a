// Package calendar 计算计划期内每一天的星期类别与特殊标记
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/paiban/roster/pkg/calendar/holiday"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
)

// SpecialDays 特殊日期
// 列表项为日序号字符串（"5"、"12-14"），Rule 为可选的 RRULE（如 FREQ=MONTHLY;BYDAY=+1TU）
type SpecialDays struct {
	TeamMeeting         []string `json:"team_meeting" yaml:"team_meeting"`
	TeamMeetingRule     string   `json:"team_meeting_rule" yaml:"team_meeting_rule"`
	NoDayShift          []string `json:"no_day_shift" yaml:"no_day_shift"`
	NoDayShiftRule      string   `json:"no_day_shift_rule" yaml:"no_day_shift_rule"`
	ChildrenHoliday     []string `json:"children_holiday" yaml:"children_holiday"`
	ChildrenHolidayRule string   `json:"children_holiday_rule" yaml:"children_holiday_rule"`
}

// Options 日历参数
type Options struct {
	Year     int
	Month    time.Month
	Days     int // 计划期天数，0 表示整月
	Special  SpecialDays
	Holidays holiday.Provider
}

// Context 计划期日历，构造后只读
type Context struct {
	Year             int
	Month            time.Month
	MonthLength      int
	Days             []model.Day
	RequiredFreeDays int
	Holidays         []holiday.Holiday // 计划期内的节假日
}

// DaysIn 返回某月天数
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// New 构建日历上下文
func New(opts Options) (*Context, error) {
	if opts.Year < 1900 || opts.Year > 9999 {
		return nil, apperrors.InvalidInput("year", fmt.Sprintf("年份 %d 超出范围", opts.Year))
	}
	if opts.Month < time.January || opts.Month > time.December {
		return nil, apperrors.InvalidInput("month", fmt.Sprintf("月份 %d 超出范围", opts.Month))
	}

	monthLen := DaysIn(opts.Year, opts.Month)
	n := opts.Days
	if n == 0 {
		n = monthLen
	}
	if n < 1 || n > monthLen {
		return nil, apperrors.InvalidInput("days", fmt.Sprintf("计划期 %d 天超出 %d 月的 %d 天", n, opts.Month, monthLen))
	}

	provider := opts.Holidays
	if provider == nil {
		provider = holiday.None{}
	}
	holidays := holiday.Lookup(provider, opts.Year)

	meeting, err := collect("team_meeting", opts.Special.TeamMeeting, opts.Special.TeamMeetingRule, opts.Year, opts.Month, n)
	if err != nil {
		return nil, err
	}
	noDay, err := collect("no_day_shift", opts.Special.NoDayShift, opts.Special.NoDayShiftRule, opts.Year, opts.Month, n)
	if err != nil {
		return nil, err
	}
	children, err := collect("children_holiday", opts.Special.ChildrenHoliday, opts.Special.ChildrenHolidayRule, opts.Year, opts.Month, n)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Year:        opts.Year,
		Month:       opts.Month,
		MonthLength: monthLen,
		Days:        make([]model.Day, n),
	}

	for i := 1; i <= n; i++ {
		date := time.Date(opts.Year, opts.Month, i, 0, 0, 0, 0, time.UTC)
		wd := date.Weekday()
		name, isHoliday := holidays[date.Format("2006-01-02")]
		d := model.Day{
			Index:           i,
			Date:            date,
			Weekday:         wd,
			Class:           model.ClassOf(wd),
			Weekend:         wd == time.Saturday || wd == time.Sunday,
			Holiday:         isHoliday,
			HolidayName:     name,
			TeamMeeting:     meeting[i],
			NoDayShift:      noDay[i],
			ChildrenHoliday: children[i],
		}
		if d.IsFreeByCalendar() {
			ctx.RequiredFreeDays++
		}
		if isHoliday {
			ctx.Holidays = append(ctx.Holidays, holiday.Holiday{Date: date, Name: name})
		}
		ctx.Days[i-1] = d
	}

	return ctx, nil
}

// NumDays 计划期天数
func (c *Context) NumDays() int {
	return len(c.Days)
}

// Day 返回第 i 天（1 起）
func (c *Context) Day(i int) model.Day {
	return c.Days[i-1]
}

// InRange 日序号是否在计划期内
func (c *Context) InRange(i int) bool {
	return i >= 1 && i <= len(c.Days)
}

// IsLastDay 是否为计划期最后一天
func (c *Context) IsLastDay(i int) bool {
	return i == len(c.Days)
}

// FreeWeekendStarts 返回所有周五日序号，要求周五至周日完整落在计划期内
func (c *Context) FreeWeekendStarts() []int {
	var out []int
	for _, d := range c.Days {
		if d.Weekday == time.Friday && c.InRange(d.Index+2) {
			out = append(out, d.Index)
		}
	}
	return out
}

// TeamMeetingDays 返回团队会议日序号
func (c *Context) TeamMeetingDays() []int {
	var out []int
	for _, d := range c.Days {
		if d.TeamMeeting {
			out = append(out, d.Index)
		}
	}
	return out
}

// WorkingDays 计划期内非应休天数
func (c *Context) WorkingDays() int {
	return len(c.Days) - c.RequiredFreeDays
}

// ParseDayIndices 解析日序号列表，支持 "5"、"12-14"、"3,4" 写法
func ParseDayIndices(field string, items []string, n int) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	add := func(i int) error {
		if i < 1 || i > n {
			return apperrors.InvalidInput(field, fmt.Sprintf("日序号 %d 超出 1..%d", i, n))
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
		return nil
	}

	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if from, to, ok := strings.Cut(part, "-"); ok {
				a, err1 := strconv.Atoi(strings.TrimSpace(from))
				b, err2 := strconv.Atoi(strings.TrimSpace(to))
				if err1 != nil || err2 != nil || a > b {
					return nil, apperrors.InvalidInput(field, fmt.Sprintf("无法解析日期范围 %q", part))
				}
				for i := a; i <= b; i++ {
					if err := add(i); err != nil {
						return nil, err
					}
				}
				continue
			}
			i, err := strconv.Atoi(part)
			if err != nil {
				return nil, apperrors.InvalidInput(field, fmt.Sprintf("无法解析日序号 %q", part))
			}
			if err := add(i); err != nil {
				return nil, err
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

// ExpandRule 展开 RRULE，返回计划期内命中的日序号
func ExpandRule(field, rule string, year int, month time.Month, n int) ([]int, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, nil
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, fmt.Sprintf("字段 '%s' 的 RRULE 无法解析", field))
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, month, n, 23, 59, 59, 0, time.UTC)
	r.DTStart(start)

	var out []int
	for _, t := range r.Between(start, end, true) {
		out = append(out, t.Day())
	}
	return out, nil
}

func collect(field string, items []string, rule string, year int, month time.Month, n int) (map[int]bool, error) {
	listed, err := ParseDayIndices(field, items, n)
	if err != nil {
		return nil, err
	}
	expanded, err := ExpandRule(field, rule, year, month, n)
	if err != nil {
		return nil, err
	}

	set := make(map[int]bool, len(listed)+len(expanded))
	for _, i := range listed {
		set[i] = true
	}
	for _, i := range expanded {
		set[i] = true
	}
	return set, nil
}
