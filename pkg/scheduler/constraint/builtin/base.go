// Package builtin 提供内置规则实现
package builtin

import (
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// BaseRule 规则基类
type BaseRule struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseRule 创建基础规则
func NewBaseRule(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseRule {
	return &BaseRule{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回规则名称
func (r *BaseRule) Name() string { return r.name }

// Type 返回规则类型
func (r *BaseRule) Type() constraint.Type { return r.typ }

// Category 返回规则类别
func (r *BaseRule) Category() constraint.Category { return r.category }

// Weight 返回规则权重
func (r *BaseRule) Weight() int { return r.weight }

// Encode 默认实现不添加任何约束（子类需覆盖）
func (r *BaseRule) Encode(ctx *constraint.Context) (constraint.Stats, error) {
	return constraint.Stats{}, nil
}
