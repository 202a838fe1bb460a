package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/calendar/holiday"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler"
	"github.com/paiban/roster/pkg/scheduler/constraint"
	"github.com/paiban/roster/pkg/scheduler/objective"
)

// DefaultRosterFile 默认排班配置文件名
const DefaultRosterFile = "roster.yaml"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// RulesConfig 规则开关
type RulesConfig struct {
	Coverage          bool `yaml:"coverage"`
	OneShiftPerDay    bool `yaml:"one_shift_per_day"`
	ReliefOrdering    bool `yaml:"relief_ordering"`
	NoSingleDayShift  bool `yaml:"no_single_dayshift"`
	RestBetweenNights bool `yaml:"rest_between_nights"`
	DoubleShiftRest   bool `yaml:"double_shift_rest"`
	FreeWeekend       bool `yaml:"free_weekend"`
	FreeDayQuota      bool `yaml:"free_day_quota"`
	MaxConsecutive    bool `yaml:"max_consecutive"`
	ForcedOverrides   bool `yaml:"forced_overrides"`

	BalanceOvertime    bool `yaml:"balance_overtime"`
	RespectPreferences bool `yaml:"respect_preferences"`
	ForcePreferences   bool `yaml:"force_preferences"`
}

// EnabledSet 转换为规则集合
func (r RulesConfig) EnabledSet() constraint.EnabledSet {
	return constraint.EnabledSet{
		constraint.TypeCoverage:          r.Coverage,
		constraint.TypeOneShiftPerDay:    r.OneShiftPerDay,
		constraint.TypeReliefOrdering:    r.ReliefOrdering,
		constraint.TypeNoSingleDayShift:  r.NoSingleDayShift,
		constraint.TypeRestBetweenNights: r.RestBetweenNights,
		constraint.TypeDoubleShiftRest:   r.DoubleShiftRest,
		constraint.TypeFreeWeekend:       r.FreeWeekend,
		constraint.TypeFreeDayQuota:      r.FreeDayQuota,
		constraint.TypeMaxConsecutive:    r.MaxConsecutive,
		constraint.TypeForcedOverrides:   r.ForcedOverrides,
	}
}

// FilesConfig 输入输出文件
type FilesConfig struct {
	Employees   string `yaml:"employees" validate:"required"`
	Vacation    string `yaml:"vacation"`
	Preferences string `yaml:"preferences"`
	Output      string `yaml:"output" validate:"required"`
}

// RosterConfig 单次排班的配置
type RosterConfig struct {
	Year  int `yaml:"year" validate:"min=1900,max=9999"`
	Month int `yaml:"month" validate:"min=1,max=12"`
	Days  int `yaml:"days" validate:"min=0,max=31"` // 0 表示整月

	Country     string   `yaml:"country" validate:"omitempty,oneof=DE de none"`
	Subdivision string   `yaml:"subdivision"`
	Holidays    []string `yaml:"holidays"`

	MaxConsecutiveShifts int     `yaml:"max_consecutive_shifts" validate:"min=0"`
	WorkingDaysPerWeek   int     `yaml:"working_days_per_week" validate:"min=1,max=7"`
	OvertimeModifier     float64 `yaml:"overtime_modifier" validate:"min=0"`
	VacationCredit       string  `yaml:"vacation_credit" validate:"oneof=none daily_target"`
	TeamMeetingCredit    int     `yaml:"team_meeting_credit" validate:"min=0"`
	PreviousNightWorker  string  `yaml:"previous_night_worker"`

	TimeLimit time.Duration `yaml:"time_limit"`
	Workers   int           `yaml:"workers" validate:"min=1,max=64"`
	Seed      int64         `yaml:"seed"`

	Rules       RulesConfig              `yaml:"rules"`
	Durations   objective.Durations      `yaml:"durations"`
	Clock       model.Clock              `yaml:"clock"`
	SpecialDays calendar.SpecialDays     `yaml:"special_days"`
	Forced      []model.ForcedAssignment `yaml:"forced" validate:"dive"`
	Files       FilesConfig              `yaml:"files"`
}

// DefaultRoster 默认排班配置：当前月份、全部规则启用
func DefaultRoster() *RosterConfig {
	now := time.Now()
	obj := objective.DefaultSettings()
	sched := scheduler.DefaultSettings()
	return &RosterConfig{
		Year:                 now.Year(),
		Month:                int(now.Month()),
		Country:              "DE",
		MaxConsecutiveShifts: sched.MaxConsecutiveShifts,
		WorkingDaysPerWeek:   obj.WorkingDaysPerWeek,
		OvertimeModifier:     obj.OvertimeModifier,
		VacationCredit:       string(obj.VacationCredit),
		TeamMeetingCredit:    obj.TeamMeetingCredit,
		TimeLimit:            sched.TimeLimit,
		Workers:              sched.Workers,
		Seed:                 sched.Seed,
		Rules: RulesConfig{
			Coverage:           true,
			OneShiftPerDay:     true,
			ReliefOrdering:     true,
			NoSingleDayShift:   true,
			RestBetweenNights:  true,
			DoubleShiftRest:    true,
			FreeWeekend:        true,
			FreeDayQuota:       true,
			MaxConsecutive:     true,
			ForcedOverrides:    true,
			BalanceOvertime:    obj.BalanceOvertime,
			RespectPreferences: obj.RespectPreferences,
			ForcePreferences:   obj.ForcePreferences,
		},
		Durations: obj.Durations,
		Clock:     sched.Clock,
		Files: FilesConfig{
			Employees:   "workers.csv",
			Vacation:    "vacation.csv",
			Preferences: "preferences.csv",
			Output:      "roster.csv",
		},
	}
}

// LoadRoster 读取并校验排班配置，未出现的字段保留默认值
func LoadRoster(path string) (*RosterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.ConfigurationMissing(path)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := DefaultRoster()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "配置文件格式错误")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteRoster 写出配置文件（roster init）
func WriteRoster(path string, cfg *RosterConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv 用环境变量覆盖求解参数
func (c *RosterConfig) ApplyEnv() {
	c.TimeLimit = getEnvDuration("ROSTER_TIME_LIMIT", c.TimeLimit)
	c.Workers = getEnvInt("ROSTER_WORKERS", c.Workers)
	c.PreviousNightWorker = getEnv("ROSTER_PREVIOUS_NIGHT_WORKER", c.PreviousNightWorker)
}

// Validate 结构校验、RRULE 语法与强制排班班次代码
func (c *RosterConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidationFail, "排班配置校验失败")
	}

	rules := map[string]string{
		"special_days.team_meeting_rule":     c.SpecialDays.TeamMeetingRule,
		"special_days.no_day_shift_rule":     c.SpecialDays.NoDayShiftRule,
		"special_days.children_holiday_rule": c.SpecialDays.ChildrenHolidayRule,
	}
	for field, rule := range rules {
		if rule == "" {
			continue
		}
		if _, err := rrule.StrToRRule(rule); err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidationFail, fmt.Sprintf("%s 不是合法的 RRULE", field))
		}
	}

	for i, f := range c.Forced {
		if f.Employee == "" {
			return apperrors.InvalidInput(fmt.Sprintf("forced[%d].employee", i), "不能为空")
		}
		kind, err := model.ParseShiftKind(string(f.Shift))
		if err != nil {
			return apperrors.InvalidInput(fmt.Sprintf("forced[%d].shift", i), err.Error())
		}
		c.Forced[i].Shift = kind
	}

	return nil
}

// CalendarOptions 日历参数
func (c *RosterConfig) CalendarOptions() (calendar.Options, error) {
	providers := holiday.Combined{}
	if c.Country != "" && c.Country != "none" {
		p, err := holiday.ForRegion(c.Country, c.Subdivision)
		if err != nil {
			return calendar.Options{}, err
		}
		providers = append(providers, p)
	}
	if len(c.Holidays) > 0 {
		s, err := holiday.NewStatic(c.Holidays)
		if err != nil {
			return calendar.Options{}, err
		}
		providers = append(providers, s)
	}

	return calendar.Options{
		Year:     c.Year,
		Month:    time.Month(c.Month),
		Days:     c.Days,
		Special:  c.SpecialDays,
		Holidays: providers,
	}, nil
}

// Calendar 构建日历
func (c *RosterConfig) Calendar() (*calendar.Context, error) {
	opts, err := c.CalendarOptions()
	if err != nil {
		return nil, err
	}
	return calendar.New(opts)
}

// ObjectiveSettings 目标参数
func (c *RosterConfig) ObjectiveSettings() objective.Settings {
	return objective.Settings{
		WorkingDaysPerWeek: c.WorkingDaysPerWeek,
		OvertimeModifier:   c.OvertimeModifier,
		Durations:          c.Durations,
		VacationCredit:     objective.VacationCreditMode(c.VacationCredit),
		TeamMeetingCredit:  c.TeamMeetingCredit,
		BalanceOvertime:    c.Rules.BalanceOvertime,
		RespectPreferences: c.Rules.RespectPreferences,
		ForcePreferences:   c.Rules.ForcePreferences,
	}
}

// SchedulerSettings 排班引擎参数
func (c *RosterConfig) SchedulerSettings() scheduler.Settings {
	return scheduler.Settings{
		Rules:                c.Rules.EnabledSet(),
		Objective:            c.ObjectiveSettings(),
		Clock:                c.Clock,
		MaxConsecutiveShifts: c.MaxConsecutiveShifts,
		TimeLimit:            c.TimeLimit,
		Workers:              c.Workers,
		Seed:                 c.Seed,
	}
}
