// Package domain 构建稀疏的排班决策变量集合
package domain

import (
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/model"
)

// Key 决策变量键：员工下标、日序号、班次
type Key struct {
	Employee int
	Day      int
	Kind     model.ShiftKind
}

// VarMap 稀疏变量表
// 变量不存在表示结构上不可行（休假、不具备资格、被屏蔽），调用方必须先检查存在性
type VarMap struct {
	vars map[Key]cpsat.BoolVar
	keys []Key
	days int
}

// NewVarMap 创建变量表
func NewVarMap(days int) *VarMap {
	return &VarMap{
		vars: make(map[Key]cpsat.BoolVar),
		days: days,
	}
}

func (m *VarMap) put(k Key, v cpsat.BoolVar) {
	if _, ok := m.vars[k]; ok {
		return
	}
	m.vars[k] = v
	m.keys = append(m.keys, k)
}

// Lookup 查找变量
func (m *VarMap) Lookup(employee, day int, kind model.ShiftKind) (cpsat.BoolVar, bool) {
	v, ok := m.vars[Key{Employee: employee, Day: day, Kind: kind}]
	return v, ok
}

// Day 日班变量
func (m *VarMap) Day(employee, day int) (cpsat.BoolVar, bool) {
	return m.Lookup(employee, day, model.ShiftDay)
}

// Night 当天的夜班变量（任一变体）
func (m *VarMap) Night(employee, day int) (cpsat.BoolVar, model.ShiftKind, bool) {
	for _, k := range model.NightKinds {
		if v, ok := m.Lookup(employee, day, k); ok {
			return v, k, true
		}
	}
	return cpsat.BoolVar{}, "", false
}

// OnDay 员工当天的全部变量
func (m *VarMap) OnDay(employee, day int) []cpsat.BoolVar {
	var out []cpsat.BoolVar
	if v, ok := m.Day(employee, day); ok {
		out = append(out, v)
	}
	if v, _, ok := m.Night(employee, day); ok {
		out = append(out, v)
	}
	return out
}

// DayShifts 当天全部日班变量
func (m *VarMap) DayShifts(day, employees int) []cpsat.BoolVar {
	var out []cpsat.BoolVar
	for e := 0; e < employees; e++ {
		if v, ok := m.Day(e, day); ok {
			out = append(out, v)
		}
	}
	return out
}

// NightShifts 当天指定变体的全部夜班变量
func (m *VarMap) NightShifts(day, employees int, kind model.ShiftKind) []cpsat.BoolVar {
	var out []cpsat.BoolVar
	for e := 0; e < employees; e++ {
		if v, ok := m.Lookup(e, day, kind); ok {
			out = append(out, v)
		}
	}
	return out
}

// HasAny 员工在计划期内是否有任何变量
func (m *VarMap) HasAny(employee int) bool {
	for _, k := range m.keys {
		if k.Employee == employee {
			return true
		}
	}
	return false
}

// Keys 按创建顺序返回全部键（日期优先）
func (m *VarMap) Keys() []Key {
	out := make([]Key, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len 变量数
func (m *VarMap) Len() int {
	return len(m.keys)
}

// Days 计划期天数
func (m *VarMap) Days() int {
	return m.days
}
