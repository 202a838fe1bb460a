// Package builtin 提供内置规则实现
package builtin

import (
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// RegisterDefaultRules 注册全部内置规则到管理器
// 是否生效由编码时传入的 EnabledSet 决定
func RegisterDefaultRules(manager *constraint.Manager) {
	manager.Register(NewForcedOverridesRule())
	manager.Register(NewCoverageRule())
	manager.Register(NewOneShiftPerDayRule())
	manager.Register(NewRestBetweenNightsRule())
	manager.Register(NewDoubleShiftRestRule())
	manager.Register(NewReliefOrderingRule())
	manager.Register(NewNoSingleDayShiftRule())
	manager.Register(NewFreeDayQuotaRule())
	manager.Register(NewMaxConsecutiveRule())
	manager.Register(NewFreeWeekendRule())
}

// NewRule 按类型创建规则，未知类型返回 nil
func NewRule(t constraint.Type) constraint.Rule {
	switch t {
	case constraint.TypeCoverage:
		return NewCoverageRule()
	case constraint.TypeOneShiftPerDay:
		return NewOneShiftPerDayRule()
	case constraint.TypeReliefOrdering:
		return NewReliefOrderingRule()
	case constraint.TypeNoSingleDayShift:
		return NewNoSingleDayShiftRule()
	case constraint.TypeRestBetweenNights:
		return NewRestBetweenNightsRule()
	case constraint.TypeDoubleShiftRest:
		return NewDoubleShiftRestRule()
	case constraint.TypeFreeWeekend:
		return NewFreeWeekendRule()
	case constraint.TypeFreeDayQuota:
		return NewFreeDayQuotaRule()
	case constraint.TypeMaxConsecutive:
		return NewMaxConsecutiveRule()
	case constraint.TypeForcedOverrides:
		return NewForcedOverridesRule()
	}
	return nil
}
