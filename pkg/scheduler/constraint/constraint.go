// Package constraint 定义规则接口、编码上下文和规则管理器
package constraint

import (
	"fmt"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler/domain"
)

// Type 规则类型标识，同时作为配置中的开关名
type Type string

const (
	TypeCoverage          Type = "coverage"
	TypeOneShiftPerDay    Type = "one_shift_per_day"
	TypeReliefOrdering    Type = "relief_ordering"
	TypeNoSingleDayShift  Type = "no_single_dayshift"
	TypeRestBetweenNights Type = "rest_between_nights"
	TypeDoubleShiftRest   Type = "double_shift_rest"
	TypeFreeWeekend       Type = "free_weekend"
	TypeFreeDayQuota      Type = "free_day_quota"
	TypeMaxConsecutive    Type = "max_consecutive"
	TypeForcedOverrides   Type = "forced_overrides"
)

// AllTypes 全部内置规则类型
var AllTypes = []Type{
	TypeCoverage,
	TypeOneShiftPerDay,
	TypeReliefOrdering,
	TypeNoSingleDayShift,
	TypeRestBetweenNights,
	TypeDoubleShiftRest,
	TypeFreeWeekend,
	TypeFreeDayQuota,
	TypeMaxConsecutive,
	TypeForcedOverrides,
}

// Category 规则类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（进入目标函数）
)

// Rule 规则接口
// 每条规则是 Context → 约束集合 的纯函数，只向模型追加约束和指示变量
type Rule interface {
	// Name 返回规则名称
	Name() string

	// Type 返回规则类型
	Type() Type

	// Category 返回规则类别
	Category() Category

	// Weight 返回规则权重 (1-100)，决定编码顺序
	Weight() int

	// Encode 把规则编码进模型
	Encode(ctx *Context) (Stats, error)
}

// Stats 单条规则的编码统计
type Stats struct {
	Constraints int      `json:"constraints"`
	Indicators  int      `json:"indicators"`
	Diagnostics []string `json:"diagnostics,omitempty"` // 设计期可判定的问题，如无人可排的班次
}

// Add 合并统计
func (s *Stats) Add(o Stats) {
	s.Constraints += o.Constraints
	s.Indicators += o.Indicators
	s.Diagnostics = append(s.Diagnostics, o.Diagnostics...)
}

// Diagnose 记录一条诊断信息
func (s *Stats) Diagnose(format string, args ...interface{}) {
	s.Diagnostics = append(s.Diagnostics, fmt.Sprintf(format, args...))
}

// EnabledSet 启用的规则集合
type EnabledSet map[Type]bool

// AllEnabled 启用全部内置规则
func AllEnabled() EnabledSet {
	s := make(EnabledSet, len(AllTypes))
	for _, t := range AllTypes {
		s[t] = true
	}
	return s
}

// Enabled 规则是否启用
func (s EnabledSet) Enabled(t Type) bool {
	return s[t]
}

// Without 返回去掉若干规则后的副本
func (s EnabledSet) Without(types ...Type) EnabledSet {
	out := make(EnabledSet, len(s))
	for t, v := range s {
		out[t] = v
	}
	for _, t := range types {
		delete(out, t)
	}
	return out
}

// Context 编码上下文
// 除指示变量缓存外只读，由 Manager 在单线程中依次传给各规则
type Context struct {
	Model       *cpsat.Model
	Calendar    *calendar.Context
	Employees   []*model.Employee
	Domain      *domain.Domain
	Preferences *model.DayTable

	// MaxConsecutiveShifts 连续工作天数上限，0 表示不限
	MaxConsecutiveShifts int

	free      map[[2]int]cpsat.BoolVar
	freeStats Stats
}

// NewContext 创建编码上下文
func NewContext(m *cpsat.Model, cal *calendar.Context, employees []*model.Employee, d *domain.Domain) *Context {
	return &Context{
		Model:     m,
		Calendar:  cal,
		Employees: employees,
		Domain:    d,
		free:      make(map[[2]int]cpsat.BoolVar),
	}
}

// Vars 变量表
func (c *Context) Vars() *domain.VarMap {
	return c.Domain.Vars
}

// NumEmployees 员工数
func (c *Context) NumEmployees() int {
	return len(c.Employees)
}

// NumDays 计划期天数
func (c *Context) NumDays() int {
	return c.Calendar.NumDays()
}

// FreeDay 返回 free(e, d) 指示变量，首次访问时创建
//
// free 为真当且仅当员工当天没有任何班次，且前一天没有夜班（夜班跨入当天）。
// 团队会议日（非休假）与上月夜班员工的第 1 天永远不算休息。
func (c *Context) FreeDay(e, d int) cpsat.BoolVar {
	key := [2]int{e, d}
	if v, ok := c.free[key]; ok {
		return v
	}

	m := c.Model
	free := m.NewBoolVar(fmt.Sprintf("free_%s_d%d", c.Employees[e].Name, d))
	c.free[key] = free
	c.freeStats.Indicators++

	info := c.Calendar.Day(d)
	if (info.TeamMeeting && !c.Domain.OnVacation(e, d)) || (d == 1 && c.Domain.IsPrevNightWorker(e)) {
		m.AddEquality(cpsat.Sum(free), 0)
		c.freeStats.Constraints++
		return free
	}

	busy := c.Vars().OnDay(e, d)
	if prev, _, ok := c.Vars().Night(e, d-1); ok {
		busy = append(busy, prev)
	}
	if len(busy) == 0 {
		m.AddEquality(cpsat.Sum(free), 1)
		c.freeStats.Constraints++
		return free
	}

	lits := []cpsat.Literal{free.Lit()}
	for _, v := range busy {
		m.AddImplication(free.Lit(), v.Not())
		lits = append(lits, v.Lit())
	}
	m.AddBoolOr(lits...)
	c.freeStats.Constraints += len(busy) + 1
	return free
}

// TakeFreeDayStats 取出并清零 FreeDay 产生的统计，计入调用它的规则
func (c *Context) TakeFreeDayStats() Stats {
	s := c.freeStats
	c.freeStats = Stats{}
	return s
}

// HasFreeDays 是否已创建过 free 指示变量
func (c *Context) HasFreeDays() bool {
	return len(c.free) > 0
}
