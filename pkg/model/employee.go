// Package model 定义排班引擎的核心数据模型
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Employee 员工
type Employee struct {
	Name            string `json:"name" db:"name"`
	HoursPerWeek    int    `json:"hours_per_week" db:"hours_per_week"`
	OvertimeMinutes int    `json:"overtime_minutes" db:"overtime_minutes"` // 加班余额（分钟，可为负），跨月结转

	// 可上的班次
	Eligible map[ShiftKind]bool `json:"eligible" db:"-"`

	// 不得接替本员工的同事（本员工下班后，这些人不能接下一个班）
	NotRelievedBy []string `json:"not_relieved_by,omitempty" db:"-"`

	AllowsDoubleShift bool `json:"allows_double_shift" db:"allows_double_shift"` // 允许夜班后接次日日班
	NoSingleDayShift  bool `json:"no_single_day_shift" db:"no_single_day_shift"` // 日班前必须有前一天夜班
}

// CanWork 检查员工是否可上某班次
func (e *Employee) CanWork(kind ShiftKind) bool {
	return e.Eligible[kind]
}

// MustNotBeRelievedBy 检查 other 是否被禁止接替本员工
func (e *Employee) MustNotBeRelievedBy(other string) bool {
	for _, n := range e.NotRelievedBy {
		if n == other {
			return true
		}
	}
	return false
}

// EligibleCodes 返回排序后的班次代码
func (e *Employee) EligibleCodes() []string {
	codes := make([]string, 0, len(e.Eligible))
	for k, ok := range e.Eligible {
		if ok {
			codes = append(codes, string(k))
		}
	}
	sort.Strings(codes)
	if e.AllowsDoubleShift {
		codes = append(codes, "n+d")
	}
	return codes
}

// ParseEligibility 解析可上班次列表，如 "n,d,n+d"
// "n" 表示全部夜班变体，"n+d" 表示允许连班
func ParseEligibility(spec string) (map[ShiftKind]bool, bool, error) {
	eligible := make(map[ShiftKind]bool)
	double := false

	for _, raw := range strings.FieldsFunc(spec, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
		token := strings.ToLower(strings.TrimSpace(raw))
		switch token {
		case "":
			continue
		case "n+d", "d+n":
			double = true
		case "n":
			for _, k := range NightKinds {
				eligible[k] = true
			}
		default:
			kind, err := ParseShiftKind(token)
			if err != nil {
				return nil, false, err
			}
			eligible[kind] = true
		}
	}

	return eligible, double, nil
}

// ValidateEmployees 检查员工列表：姓名唯一、工时非负、不接替名单引用存在
func ValidateEmployees(employees []*Employee) error {
	seen := make(map[string]bool, len(employees))
	for _, e := range employees {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("员工姓名不能为空")
		}
		if seen[e.Name] {
			return fmt.Errorf("员工姓名重复: %s", e.Name)
		}
		if e.HoursPerWeek < 0 {
			return fmt.Errorf("员工 %s 的周工时不能为负", e.Name)
		}
		seen[e.Name] = true
	}

	for _, e := range employees {
		for _, other := range e.NotRelievedBy {
			if !seen[other] {
				return fmt.Errorf("员工 %s 的不接替名单引用了未知员工 %s", e.Name, other)
			}
		}
	}
	return nil
}
