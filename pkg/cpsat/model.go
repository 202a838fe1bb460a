// Package cpsat 提供进程内的约束规划求解引擎
//
// 支持布尔/有界整数变量、带启用文字的线性约束、最大值约束和单一最小化目标。
// 求解采用边界传播 + 深度优先分支定界，多个搜索线程共享当前最优解。
package cpsat

import (
	"fmt"
	"math"
)

const (
	noLower int64 = math.MinInt64
	noUpper int64 = math.MaxInt64
)

type varDef struct {
	name   string
	lb, ub int64
	isBool bool
}

// Constraint 线性约束 lb ≤ expr ≤ ub，可附加启用文字
type Constraint struct {
	name        string
	terms       []term
	offset      int64
	lb, ub      int64
	enforcement []Literal
}

// OnlyEnforceIf 仅当全部文字为真时约束生效
func (c *Constraint) OnlyEnforceIf(lits ...Literal) *Constraint {
	c.enforcement = append(c.enforcement, lits...)
	return c
}

// WithName 设置约束名称（用于调试输出）
func (c *Constraint) WithName(name string) *Constraint {
	c.name = name
	return c
}

// Name 约束名称
func (c *Constraint) Name() string {
	return c.name
}

type maxEquality struct {
	target int
	vars   []int
}

// Model 约束模型
// 模型在求解期间只读，求解后可继续追加约束进行下一轮求解
type Model struct {
	name        string
	vars        []varDef
	constraints []*Constraint
	maxEqs      []maxEquality
	objective   *LinearExpr
	hints       map[int]int64
	errs        []error
}

// NewModel 创建模型
func NewModel(name string) *Model {
	return &Model{
		name:  name,
		hints: make(map[int]int64),
	}
}

// Name 模型名称
func (m *Model) Name() string {
	return m.name
}

// NewBoolVar 创建布尔变量
func (m *Model) NewBoolVar(name string) BoolVar {
	m.vars = append(m.vars, varDef{name: name, lb: 0, ub: 1, isBool: true})
	return BoolVar{idx: len(m.vars) - 1}
}

// NewIntVar 创建整数变量，取值范围 [lb, ub]
func (m *Model) NewIntVar(lb, ub int64, name string) IntVar {
	if lb > ub {
		m.errs = append(m.errs, fmt.Errorf("变量 %s 的下界 %d 大于上界 %d", name, lb, ub))
	}
	m.vars = append(m.vars, varDef{name: name, lb: lb, ub: ub})
	return IntVar{idx: len(m.vars) - 1}
}

// NewConstant 创建常量
func (m *Model) NewConstant(value int64) IntVar {
	return m.NewIntVar(value, value, fmt.Sprintf("const_%d", value))
}

// NumVars 变量数
func (m *Model) NumVars() int {
	return len(m.vars)
}

// NumConstraints 约束数（含最大值约束）
func (m *Model) NumConstraints() int {
	return len(m.constraints) + len(m.maxEqs)
}

// VarName 返回变量名
func (m *Model) VarName(v Variable) string {
	idx := v.index()
	if idx < 0 || idx >= len(m.vars) {
		return ""
	}
	return m.vars[idx].name
}

// Bounds 返回变量的初始取值范围
func (m *Model) Bounds(v Variable) (int64, int64) {
	d := m.vars[v.index()]
	return d.lb, d.ub
}

// AddLinear 添加 lb ≤ expr ≤ ub
func (m *Model) AddLinear(expr *LinearExpr, lb, ub int64) *Constraint {
	terms, offset := expr.normalized()
	for _, t := range terms {
		if t.idx < 0 || t.idx >= len(m.vars) {
			m.errs = append(m.errs, fmt.Errorf("约束引用了不存在的变量 %d", t.idx))
		}
	}
	c := &Constraint{terms: terms, offset: offset, lb: lb, ub: ub}
	m.constraints = append(m.constraints, c)
	return c
}

// AddEquality 添加 expr == value
func (m *Model) AddEquality(expr *LinearExpr, value int64) *Constraint {
	return m.AddLinear(expr, value, value)
}

// AddLessOrEqual 添加 expr ≤ ub
func (m *Model) AddLessOrEqual(expr *LinearExpr, ub int64) *Constraint {
	return m.AddLinear(expr, noLower, ub)
}

// AddGreaterOrEqual 添加 expr ≥ lb
func (m *Model) AddGreaterOrEqual(expr *LinearExpr, lb int64) *Constraint {
	return m.AddLinear(expr, lb, noUpper)
}

// AddBoolOr 至少一个文字为真
func (m *Model) AddBoolOr(lits ...Literal) *Constraint {
	e := NewLinearExpr()
	for _, l := range lits {
		e.AddLiteral(l, 1)
	}
	return m.AddGreaterOrEqual(e, 1)
}

// AddImplication a ⇒ b
func (m *Model) AddImplication(a, b Literal) *Constraint {
	return m.AddBoolOr(a.Not(), b)
}

// AddMaxEquality target == max(vars)
func (m *Model) AddMaxEquality(target IntVar, vars []IntVar) {
	if len(vars) == 0 {
		m.errs = append(m.errs, fmt.Errorf("最大值约束 %s 的变量集合为空", m.VarName(target)))
		return
	}
	idx := make([]int, len(vars))
	for i, v := range vars {
		idx[i] = v.idx
	}
	m.maxEqs = append(m.maxEqs, maxEquality{target: target.idx, vars: idx})
}

// Minimize 设置最小化目标，重复调用会替换之前的目标
func (m *Model) Minimize(expr *LinearExpr) {
	m.objective = expr.Clone()
}

// HasObjective 是否设置了目标
func (m *Model) HasObjective() bool {
	return m.objective != nil
}

// AddHint 为变量提供搜索提示值
func (m *Model) AddHint(v Variable, value int64) {
	m.hints[v.index()] = value
}

// HintFromResponse 以上一轮的解作为提示
func (m *Model) HintFromResponse(r *Response) {
	if r == nil || !r.HasSolution() {
		return
	}
	for idx, v := range r.values {
		m.hints[idx] = v
	}
}

// ClearHints 清除提示
func (m *Model) ClearHints() {
	m.hints = make(map[int]int64)
}

// Validate 检查模型是否合法
func (m *Model) Validate() error {
	if len(m.errs) > 0 {
		return m.errs[0]
	}
	return nil
}
