package cpsat

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
)

// valueOrder 分支时先尝试的取值策略
type valueOrder int

const (
	orderLowFirst valueOrder = iota
	orderHighFirst
	orderRandom
)

const (
	restartBase    = 128 // Luby 重启序列的冲突数单位
	lnsConflicts   = 256 // 每个邻域的冲突数上限
	activityGrowth = 1.05
	activityLimit  = 1e100
)

// strategy 单个搜索线程的策略组合
type strategy struct {
	order    valueOrder
	restarts bool // 按 Luby 序列重启
	guided   bool // 有解后优先尝试当前最优解的取值
	lns      bool // 固定最优解的大部分变量只搜索邻域，不能证明最优
}

func workerStrategy(i int) strategy {
	switch {
	case i == 0:
		return strategy{order: orderLowFirst, restarts: true, guided: true}
	case i == 1:
		return strategy{order: orderHighFirst, restarts: true, guided: true}
	case i%2 == 0:
		return strategy{order: orderRandom, restarts: true, guided: true, lns: true}
	default:
		return strategy{order: orderRandom, restarts: true}
	}
}

// incumbent 线程间共享的当前最优解
type incumbent struct {
	mu        sync.Mutex
	values    []int64
	objective int64
	found     bool
	bound     atomic.Int64 // 当前最优目标值，未找到时为 noUpper
	solutions atomic.Int64
	onImprove func(objective int64)
}

func newIncumbent() *incumbent {
	inc := &incumbent{}
	inc.bound.Store(noUpper)
	return inc
}

// offer 提交一个可行解，返回是否更新了最优解
func (inc *incumbent) offer(values []int64, objective int64) bool {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	inc.solutions.Add(1)
	if inc.found && objective >= inc.objective {
		return false
	}
	inc.values = values
	inc.objective = objective
	inc.found = true
	inc.bound.Store(objective)
	if inc.onImprove != nil {
		inc.onImprove(objective)
	}
	return true
}

// snapshot 返回的取值切片只读
func (inc *incumbent) snapshot() ([]int64, int64, bool) {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	return inc.values, inc.objective, inc.found
}

// worker 单个分支定界搜索线程
type worker struct {
	id    int
	s     *state
	inc   *incumbent
	strat strategy
	rng   *rand.Rand

	// 冲突驱动的变量活跃度（dom/wdeg）
	activity []float64
	bump     float64

	guide        []int64 // 本轮的取值偏好，来自当前最优解
	root         int     // 根节点传播后的轨迹长度
	limit        int64   // 本轮冲突上限，0 表示不限
	runConflicts int64

	ctx       context.Context
	nodes     int64
	branches  *atomic.Int64
	conflicts *atomic.Int64
	aborted   bool // 时限到达，或满足性问题已找到解
	cutoff    bool // 本轮冲突数用尽
}

func newWorker(id int, c *compiled, inc *incumbent, strat strategy, seed int64, branches, conflicts *atomic.Int64) *worker {
	w := &worker{
		id:        id,
		s:         newState(c),
		inc:       inc,
		strat:     strat,
		rng:       rand.New(rand.NewSource(seed + int64(id))),
		activity:  make([]float64, len(c.lb)),
		bump:      1,
		branches:  branches,
		conflicts: conflicts,
	}
	if strat.order == orderRandom {
		// 打破平局，让随机线程从不同的变量顺序开始
		for i := range w.activity {
			w.activity[i] = w.rng.Float64() * 1e-3
		}
	}
	return w
}

// run 执行搜索，返回 true 表示已证明不存在更优解（或无解）
func (w *worker) run(ctx context.Context) bool {
	w.ctx = ctx
	w.s.enqueueAll()
	if !w.s.propagate() {
		w.conflicts.Add(1)
		return true
	}
	w.root = len(w.s.trail)

	for n := int64(1); ; n++ {
		if ctx.Err() != nil {
			return false
		}
		if !w.tightenRoot() {
			// 在当前最优值下根节点已冲突
			w.conflicts.Add(1)
			return true
		}

		w.cutoff, w.runConflicts, w.limit, w.guide = false, 0, 0, nil
		if w.strat.restarts {
			w.limit = restartBase * luby(n)
		}
		relaxed, consistent := false, true
		if best, _, found := w.inc.snapshot(); found {
			if w.strat.guided {
				w.guide = best
			}
			if w.strat.lns && w.s.c.objLin >= 0 {
				w.limit = lnsConflicts
				relaxed, consistent = w.relax(best)
			}
		}

		if consistent && w.s.propagate() {
			w.dfs()
		} else {
			w.s.clearQueue()
			w.onConflict()
		}
		w.s.undo(w.root)
		w.s.clearQueue()

		if w.aborted {
			return false
		}
		if !w.cutoff && !relaxed {
			return true
		}
	}
}

// tightenRoot 在根节点上应用最新的目标上界
func (w *worker) tightenRoot() bool {
	c := w.s.c
	if c.objLin < 0 {
		return true
	}
	if b := w.inc.bound.Load(); b != noUpper && b-1 < w.s.objUB {
		w.s.objUB = b - 1
	}
	w.s.enqueue(c.objLin)
	if !w.s.propagate() {
		return false
	}
	// 目标上界只会变小，根节点上的收紧对之后各轮都成立
	w.root = len(w.s.trail)
	return true
}

// relax 把当前最优解中一段连续窗口之外的布尔变量固定为最优解的取值
// applied 为 false 时没有固定任何变量；ok 为 false 表示固定时已冲突
func (w *worker) relax(best []int64) (applied, ok bool) {
	bools := w.s.c.bools
	n := len(bools)
	if n < 8 {
		return false, true
	}
	w.s.failed = -1
	size := n/5 + w.rng.Intn(n/5+1)
	start := w.rng.Intn(n)
	for i, v := range bools {
		if (i-start+n)%n < size || w.rng.Intn(20) == 0 {
			continue
		}
		if !w.s.setLo(v, best[v]) || !w.s.setHi(v, best[v]) {
			return true, false
		}
	}
	return true, true
}

func (w *worker) halted() bool {
	return w.aborted || w.cutoff
}

func (w *worker) stopped() bool {
	if w.halted() {
		return true
	}
	w.nodes++
	if w.nodes&127 == 0 && w.ctx.Err() != nil {
		w.aborted = true
	}
	return w.aborted
}

// onConflict 记录冲突并提高冲突约束中变量的活跃度
func (w *worker) onConflict() {
	w.conflicts.Add(1)
	w.runConflicts++
	if w.limit > 0 && w.runConflicts >= w.limit {
		w.cutoff = true
	}

	id := w.s.failed
	if id < 0 {
		return
	}
	for _, v := range w.s.c.scope[id] {
		w.activity[v] += w.bump
	}
	w.bump *= activityGrowth
	if w.bump > activityLimit {
		for i := range w.activity {
			w.activity[i] /= activityLimit
		}
		w.bump /= activityLimit
	}
}

// syncBound 读取共享最优值并收紧本线程的目标上界
func (w *worker) syncBound() bool {
	c := w.s.c
	if c.objLin < 0 {
		return true
	}
	b := w.inc.bound.Load()
	if b == noUpper || b-1 >= w.s.objUB {
		return true
	}
	w.s.objUB = b - 1
	w.s.enqueue(c.objLin)
	return w.s.propagate()
}

// pickVar 先选活跃度最高的未固定布尔变量，平局取先创建的；布尔变量全部固定后按顺序选整数变量
func (w *worker) pickVar() int {
	best, score := -1, -1.0
	for _, v := range w.s.c.bools {
		if w.s.fixed(v) {
			continue
		}
		if a := w.activity[v]; a > score {
			best, score = v, a
		}
	}
	if best >= 0 {
		return best
	}
	for _, v := range w.s.c.ints {
		if !w.s.fixed(v) {
			return v
		}
	}
	return -1
}

// firstValue 选择布尔变量的首个尝试值
func (w *worker) firstValue(v int) int64 {
	lo, hi := w.s.lo[v], w.s.hi[v]
	if w.guide != nil {
		if g := w.guide[v]; g >= lo && g <= hi {
			return g
		}
	}
	if h, ok := w.s.c.hints[v]; ok && h >= lo && h <= hi {
		return h
	}
	switch w.strat.order {
	case orderHighFirst:
		return hi
	case orderRandom:
		if w.rng.Intn(2) == 0 {
			return lo
		}
		return hi
	default:
		return lo
	}
}

type branch struct {
	lo, hi int64
}

// branchesFor 布尔变量二选一；整数变量按提示值拆分，否则二分，小的一半在前
func (w *worker) branchesFor(v int) []branch {
	lo, hi := w.s.lo[v], w.s.hi[v]
	if w.s.c.isBool[v] {
		first := w.firstValue(v)
		return []branch{{first, first}, {1 - first, 1 - first}}
	}
	if h, ok := w.s.c.hints[v]; ok && h >= lo && h <= hi {
		out := []branch{{h, h}}
		if h > lo {
			out = append(out, branch{lo, h - 1})
		}
		if h < hi {
			out = append(out, branch{h + 1, hi})
		}
		return out
	}
	mid := lo + (hi-lo)/2
	return []branch{{lo, mid}, {mid + 1, hi}}
}

// dfs 深度优先分支定界
func (w *worker) dfs() {
	if w.stopped() {
		return
	}
	if !w.syncBound() {
		w.onConflict()
		return
	}
	c := w.s.c
	if c.objLin >= 0 && w.s.objectiveLowerBound() > w.s.objUB {
		w.s.failed = c.objLin
		w.onConflict()
		return
	}

	v := w.pickVar()
	if v < 0 {
		w.onSolution()
		return
	}

	for _, b := range w.branchesFor(v) {
		if w.halted() {
			return
		}
		w.branches.Add(1)
		mark := len(w.s.trail)
		w.s.failed = -1
		if w.s.setLo(v, b.lo) && w.s.setHi(v, b.hi) && w.s.propagate() {
			w.dfs()
		} else {
			w.s.clearQueue()
			w.onConflict()
		}
		w.s.undo(mark)
	}
}

func (w *worker) onSolution() {
	values := make([]int64, len(w.s.lo))
	copy(values, w.s.lo)

	c := w.s.c
	obj := c.objConst
	for _, t := range c.objTerms {
		obj += t.coeff * values[t.idx]
	}
	w.inc.offer(values, obj)

	if c.objLin < 0 {
		// 满足性问题，找到一个解即可
		w.aborted = true
		return
	}
	if obj-1 < w.s.objUB {
		w.s.objUB = obj - 1
	}
	// 目标传播器需要按新上界重新运行，否则剩余分支仍会枚举同值的解
	w.s.enqueue(c.objLin)
}

// luby 返回 Luby 重启序列的第 i 项（i 从 1 开始）：1 1 2 1 1 2 4 ...
func luby(i int64) int64 {
	for {
		k := int64(1)
		for (int64(1)<<k)-1 < i {
			k++
		}
		if i == (int64(1)<<k)-1 {
			return int64(1) << (k - 1)
		}
		i -= (int64(1) << (k - 1)) - 1
	}
}
