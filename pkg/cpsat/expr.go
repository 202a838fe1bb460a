package cpsat

import "sort"

// Variable 可出现在线性表达式中的变量
type Variable interface {
	index() int
}

// IntVar 有界整数变量
type IntVar struct {
	idx int
}

func (v IntVar) index() int { return v.idx }

// Index 变量在模型中的序号
func (v IntVar) Index() int { return v.idx }

// BoolVar 布尔变量（取值 0/1 的整数变量）
type BoolVar struct {
	idx int
}

func (b BoolVar) index() int { return b.idx }

// Index 变量在模型中的序号
func (b BoolVar) Index() int { return b.idx }

// Lit 返回正文字
func (b BoolVar) Lit() Literal { return Literal{idx: b.idx} }

// Not 返回负文字
func (b BoolVar) Not() Literal { return Literal{idx: b.idx, negated: true} }

// Literal 布尔变量或其否定
type Literal struct {
	idx     int
	negated bool
}

// Not 取反
func (l Literal) Not() Literal { return Literal{idx: l.idx, negated: !l.negated} }

// Var 底层布尔变量
func (l Literal) Var() BoolVar { return BoolVar{idx: l.idx} }

// Negated 是否为负文字
func (l Literal) Negated() bool { return l.negated }

type term struct {
	idx   int
	coeff int64
}

// LinearExpr 线性表达式 Σ coeff·var + offset
type LinearExpr struct {
	terms  []term
	offset int64
}

// NewLinearExpr 创建空表达式
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// Sum 返回变量之和
func Sum(vars ...Variable) *LinearExpr {
	e := NewLinearExpr()
	for _, v := range vars {
		e.Add(v)
	}
	return e
}

// SumBools 返回布尔变量之和
func SumBools(vars []BoolVar) *LinearExpr {
	e := NewLinearExpr()
	for _, v := range vars {
		e.Add(v)
	}
	return e
}

// Add 加上系数为 1 的变量
func (e *LinearExpr) Add(v Variable) *LinearExpr {
	return e.AddTerm(v, 1)
}

// AddTerm 加上 coeff·v
func (e *LinearExpr) AddTerm(v Variable, coeff int64) *LinearExpr {
	if coeff != 0 {
		e.terms = append(e.terms, term{idx: v.index(), coeff: coeff})
	}
	return e
}

// AddLiteral 加上 coeff·l，负文字按 coeff·(1-v) 展开
func (e *LinearExpr) AddLiteral(l Literal, coeff int64) *LinearExpr {
	if l.negated {
		e.offset += coeff
		return e.AddTerm(l.Var(), -coeff)
	}
	return e.AddTerm(l.Var(), coeff)
}

// AddConstant 加上常数
func (e *LinearExpr) AddConstant(c int64) *LinearExpr {
	e.offset += c
	return e
}

// AddExpr 加上 coeff·other
func (e *LinearExpr) AddExpr(other *LinearExpr, coeff int64) *LinearExpr {
	for _, t := range other.terms {
		if t.coeff*coeff != 0 {
			e.terms = append(e.terms, term{idx: t.idx, coeff: t.coeff * coeff})
		}
	}
	e.offset += other.offset * coeff
	return e
}

// Len 项数
func (e *LinearExpr) Len() int {
	return len(e.terms)
}

// Offset 常数项
func (e *LinearExpr) Offset() int64 {
	return e.offset
}

// Clone 深拷贝
func (e *LinearExpr) Clone() *LinearExpr {
	c := &LinearExpr{offset: e.offset, terms: make([]term, len(e.terms))}
	copy(c.terms, e.terms)
	return c
}

// normalized 合并同一变量的项并去掉零系数，按变量序号排序
func (e *LinearExpr) normalized() ([]term, int64) {
	merged := make(map[int]int64, len(e.terms))
	for _, t := range e.terms {
		merged[t.idx] += t.coeff
	}
	out := make([]term, 0, len(merged))
	for idx, c := range merged {
		if c != 0 {
			out = append(out, term{idx: idx, coeff: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].idx < out[j].idx })
	return out, e.offset
}

func (e *LinearExpr) evaluate(values []int64) int64 {
	sum := e.offset
	for _, t := range e.terms {
		sum += t.coeff * values[t.idx]
	}
	return sum
}
