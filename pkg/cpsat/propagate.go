package cpsat

import "fmt"

type linearProp struct {
	terms       []term
	offset      int64
	lb, ub      int64
	enforcement []Literal
}

type maxProp struct {
	target int
	vars   []int
}

// compiled 模型的只读快照，由所有搜索线程共享
type compiled struct {
	lb, ub   []int64
	isBool   []bool
	lins     []linearProp
	maxes    []maxProp
	watch    [][]int // 变量 → 相关传播器编号
	scope    [][]int // 传播器编号 → 涉及的变量
	bools    []int   // 布尔变量，按创建顺序
	ints     []int   // 整数变量，按创建顺序
	hints    map[int]int64
	objLin   int // 目标对应的线性传播器编号，-1 表示无目标
	objTerms []term
	objConst int64
}

func compile(m *Model) (*compiled, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	n := len(m.vars)
	c := &compiled{
		lb:     make([]int64, n),
		ub:     make([]int64, n),
		isBool: make([]bool, n),
		watch:  make([][]int, n),
		hints:  make(map[int]int64, len(m.hints)),
		objLin: -1,
	}
	for i, v := range m.vars {
		c.lb[i], c.ub[i], c.isBool[i] = v.lb, v.ub, v.isBool
	}
	for idx, v := range m.hints {
		c.hints[idx] = v
	}

	for _, con := range m.constraints {
		for _, l := range con.enforcement {
			if l.idx < 0 || l.idx >= n || !c.isBool[l.idx] {
				return nil, fmt.Errorf("约束 %q 的启用文字不是布尔变量", con.name)
			}
		}
		c.addLinear(linearProp{
			terms:       con.terms,
			offset:      con.offset,
			lb:          con.lb,
			ub:          con.ub,
			enforcement: con.enforcement,
		})
	}

	if m.objective != nil {
		terms, offset := m.objective.normalized()
		c.objTerms, c.objConst = terms, offset
		c.objLin = len(c.lins)
		// 上界由各线程按当前最优解收紧
		c.addLinear(linearProp{terms: terms, offset: offset, lb: noLower, ub: noUpper})
	}

	for _, me := range m.maxEqs {
		id := len(c.lins) + len(c.maxes)
		c.maxes = append(c.maxes, maxProp{target: me.target, vars: me.vars})
		scope := append([]int{me.target}, me.vars...)
		c.scope = append(c.scope, scope)
		for _, v := range scope {
			c.watchVar(v, id)
		}
	}

	for i := range m.vars {
		if c.isBool[i] {
			c.bools = append(c.bools, i)
		} else {
			c.ints = append(c.ints, i)
		}
	}
	return c, nil
}

// addLinear 注册线性传播器，线性传播器编号在最大值传播器之前
func (c *compiled) addLinear(lp linearProp) {
	id := len(c.lins)
	c.lins = append(c.lins, lp)
	scope := make([]int, 0, len(lp.terms)+len(lp.enforcement))
	for _, t := range lp.terms {
		scope = append(scope, t.idx)
	}
	for _, l := range lp.enforcement {
		scope = append(scope, l.idx)
	}
	c.scope = append(c.scope, scope)
	for _, v := range scope {
		c.watchVar(v, id)
	}
}

func (c *compiled) watchVar(v, id int) {
	ws := c.watch[v]
	if len(ws) > 0 && ws[len(ws)-1] == id {
		return
	}
	c.watch[v] = append(ws, id)
}

func (c *compiled) numPropagators() int {
	return len(c.lins) + len(c.maxes)
}

type litState int8

const (
	litUnknown litState = iota
	litTrue
	litFalse
)

type trailEntry struct {
	idx    int
	lo, hi int64
}

// state 单个搜索线程的变量域与回溯轨迹
type state struct {
	c       *compiled
	lo, hi  []int64
	trail   []trailEntry
	queue   []int
	inQueue []bool
	objUB   int64
	failed  int // 最近一次冲突的传播器编号，-1 表示边界直接冲突
}

func newState(c *compiled) *state {
	s := &state{
		c:       c,
		lo:      make([]int64, len(c.lb)),
		hi:      make([]int64, len(c.ub)),
		inQueue: make([]bool, c.numPropagators()),
		objUB:   noUpper,
		failed:  -1,
	}
	copy(s.lo, c.lb)
	copy(s.hi, c.ub)
	return s
}

func (s *state) fixed(v int) bool {
	return s.lo[v] == s.hi[v]
}

func (s *state) litValue(l Literal) litState {
	if !s.fixed(l.idx) {
		return litUnknown
	}
	if (s.lo[l.idx] == 1) != l.negated {
		return litTrue
	}
	return litFalse
}

func (s *state) setLo(v int, x int64) bool {
	if x <= s.lo[v] {
		return true
	}
	if x > s.hi[v] {
		return false
	}
	s.trail = append(s.trail, trailEntry{idx: v, lo: s.lo[v], hi: s.hi[v]})
	s.lo[v] = x
	s.wake(v)
	return true
}

func (s *state) setHi(v int, x int64) bool {
	if x >= s.hi[v] {
		return true
	}
	if x < s.lo[v] {
		return false
	}
	s.trail = append(s.trail, trailEntry{idx: v, lo: s.lo[v], hi: s.hi[v]})
	s.hi[v] = x
	s.wake(v)
	return true
}

func (s *state) setLit(l Literal, value bool) bool {
	want := int64(0)
	if value != l.negated {
		want = 1
	}
	return s.setLo(l.idx, want) && s.setHi(l.idx, want)
}

func (s *state) wake(v int) {
	for _, id := range s.c.watch[v] {
		s.enqueue(id)
	}
}

func (s *state) enqueue(id int) {
	if !s.inQueue[id] {
		s.inQueue[id] = true
		s.queue = append(s.queue, id)
	}
}

func (s *state) enqueueAll() {
	for id := 0; id < s.c.numPropagators(); id++ {
		s.enqueue(id)
	}
}

func (s *state) clearQueue() {
	for _, id := range s.queue {
		s.inQueue[id] = false
	}
	s.queue = s.queue[:0]
}

// undo 回退到轨迹长度 mark
func (s *state) undo(mark int) {
	for i := len(s.trail) - 1; i >= mark; i-- {
		e := s.trail[i]
		s.lo[e.idx], s.hi[e.idx] = e.lo, e.hi
	}
	s.trail = s.trail[:mark]
}

// propagate 传播至不动点，返回 false 表示冲突
func (s *state) propagate() bool {
	s.failed = -1
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.inQueue[id] = false

		var ok bool
		if id < len(s.c.lins) {
			ok = s.propagateLinear(id)
		} else {
			ok = s.propagateMax(id - len(s.c.lins))
		}
		if !ok {
			s.failed = id
			s.clearQueue()
			return false
		}
	}
	return true
}

func (s *state) linearBounds(lp *linearProp) (int64, int64) {
	minSum, maxSum := lp.offset, lp.offset
	for _, t := range lp.terms {
		if t.coeff > 0 {
			minSum += t.coeff * s.lo[t.idx]
			maxSum += t.coeff * s.hi[t.idx]
		} else {
			minSum += t.coeff * s.hi[t.idx]
			maxSum += t.coeff * s.lo[t.idx]
		}
	}
	return minSum, maxSum
}

func (s *state) propagateLinear(id int) bool {
	lp := &s.c.lins[id]
	ub := lp.ub
	if id == s.c.objLin {
		ub = s.objUB
	}

	unknown := -1
	for i, l := range lp.enforcement {
		switch s.litValue(l) {
		case litFalse:
			return true
		case litUnknown:
			if unknown >= 0 {
				return true
			}
			unknown = i
		}
	}

	minSum, maxSum := s.linearBounds(lp)
	violated := (ub != noUpper && minSum > ub) || (lp.lb != noLower && maxSum < lp.lb)

	if unknown >= 0 {
		if violated {
			return s.setLit(lp.enforcement[unknown], false)
		}
		return true
	}
	if violated {
		return false
	}

	for _, t := range lp.terms {
		lo, hi := s.lo[t.idx], s.hi[t.idx]
		if t.coeff > 0 {
			if ub != noUpper {
				if !s.setHi(t.idx, floorDiv(ub-(minSum-t.coeff*lo), t.coeff)) {
					return false
				}
			}
			if lp.lb != noLower {
				if !s.setLo(t.idx, ceilDiv(lp.lb-(maxSum-t.coeff*hi), t.coeff)) {
					return false
				}
			}
		} else {
			if ub != noUpper {
				if !s.setLo(t.idx, ceilDiv(ub-(minSum-t.coeff*hi), t.coeff)) {
					return false
				}
			}
			if lp.lb != noLower {
				if !s.setHi(t.idx, floorDiv(lp.lb-(maxSum-t.coeff*lo), t.coeff)) {
					return false
				}
			}
		}
	}
	return true
}

func (s *state) propagateMax(i int) bool {
	mp := &s.c.maxes[i]
	maxLo, maxHi := noLower, noLower
	for _, v := range mp.vars {
		if s.lo[v] > maxLo {
			maxLo = s.lo[v]
		}
		if s.hi[v] > maxHi {
			maxHi = s.hi[v]
		}
	}
	if !s.setLo(mp.target, maxLo) || !s.setHi(mp.target, maxHi) {
		return false
	}

	tHi, tLo := s.hi[mp.target], s.lo[mp.target]
	support, last := 0, -1
	for _, v := range mp.vars {
		if !s.setHi(v, tHi) {
			return false
		}
		if s.hi[v] >= tLo {
			support++
			last = v
		}
	}
	if support == 0 {
		return false
	}
	if support == 1 {
		return s.setLo(last, tLo)
	}
	return true
}

// objectiveLowerBound 当前域下目标的下界
func (s *state) objectiveLowerBound() int64 {
	if s.c.objLin < 0 {
		return 0
	}
	minSum, _ := s.linearBounds(&s.c.lins[s.c.objLin])
	return minSum
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
