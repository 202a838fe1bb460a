package cpsat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status 求解状态
type Status string

const (
	StatusOptimal      Status = "OPTIMAL"
	StatusFeasible     Status = "FEASIBLE"
	StatusInfeasible   Status = "INFEASIBLE"
	StatusUnknown      Status = "UNKNOWN"
	StatusModelInvalid Status = "MODEL_INVALID"
)

// HasSolution 该状态是否带有可行解
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Params 求解参数
type Params struct {
	TimeLimit time.Duration // 0 表示不限时
	Workers   int           // 搜索线程数，至少为 1
	Seed      int64

	// OnSolution 每找到一个更优解时回调，可能被多个线程并发调用
	OnSolution func(objective int64, elapsed time.Duration)
}

// DefaultParams 默认参数
func DefaultParams() Params {
	return Params{
		TimeLimit: 60 * time.Second,
		Workers:   4,
		Seed:      1,
	}
}

// Stats 搜索统计
type Stats struct {
	Branches  int64         `json:"branches"`
	Conflicts int64         `json:"conflicts"`
	Solutions int64         `json:"solutions"`
	WallTime  time.Duration `json:"wall_time"`
}

// Response 求解结果
type Response struct {
	Status    Status `json:"status"`
	Objective int64  `json:"objective"`
	BestBound int64  `json:"best_bound"`
	Stats     Stats  `json:"stats"`

	values []int64
}

// HasSolution 是否有可行解
func (r *Response) HasSolution() bool {
	return r.values != nil && r.Status.HasSolution()
}

// Value 整数变量的取值
func (r *Response) Value(v Variable) int64 {
	if r.values == nil {
		return 0
	}
	return r.values[v.index()]
}

// BoolValue 布尔变量的取值
func (r *Response) BoolValue(b BoolVar) bool {
	return r.Value(b) == 1
}

// LiteralValue 文字的取值
func (r *Response) LiteralValue(l Literal) bool {
	return r.BoolValue(l.Var()) != l.negated
}

// ExprValue 线性表达式的取值
func (r *Response) ExprValue(e *LinearExpr) int64 {
	if r.values == nil {
		return 0
	}
	return e.evaluate(r.values)
}

var errSearchComplete = errors.New("search complete")

// Solver 求解器
type Solver struct {
	params Params
}

// NewSolver 创建求解器
func NewSolver(params Params) *Solver {
	if params.Workers < 1 {
		params.Workers = 1
	}
	return &Solver{params: params}
}

// Solve 求解模型
// 时限到达或 ctx 取消时返回当前最优解（FEASIBLE）或 UNKNOWN
func (s *Solver) Solve(ctx context.Context, m *Model) (*Response, error) {
	start := time.Now()

	c, err := compile(m)
	if err != nil {
		return &Response{Status: StatusModelInvalid}, fmt.Errorf("模型 %s 不合法: %w", m.Name(), err)
	}

	if s.params.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.params.TimeLimit)
		defer cancel()
	}

	inc := newIncumbent()
	if cb := s.params.OnSolution; cb != nil {
		inc.onImprove = func(obj int64) { cb(obj, time.Since(start)) }
	}
	var branches, conflicts atomic.Int64
	var proven atomic.Bool

	root := newState(c)
	root.enqueueAll()
	rootFeasible := root.propagate()
	bestBound := root.objectiveLowerBound()

	if rootFeasible {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < s.params.Workers; i++ {
			w := newWorker(i, c, inc, workerStrategy(i), s.params.Seed, &branches, &conflicts)
			g.Go(func() error {
				if w.run(gctx) {
					proven.Store(true)
					// 任一线程穷尽搜索树即可结束其他线程
					return errSearchComplete
				}
				if c.objLin < 0 {
					if _, _, found := inc.snapshot(); found {
						return errSearchComplete
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, errSearchComplete) {
			return nil, err
		}
	} else {
		conflicts.Add(1)
		proven.Store(true)
	}

	values, objective, found := inc.snapshot()
	resp := &Response{
		BestBound: bestBound,
		Stats: Stats{
			Branches:  branches.Load(),
			Conflicts: conflicts.Load(),
			Solutions: inc.solutions.Load(),
			WallTime:  time.Since(start),
		},
	}

	switch {
	case found && (proven.Load() || c.objLin < 0):
		resp.Status = StatusOptimal
		resp.Objective = objective
		resp.BestBound = objective
		resp.values = values
	case found:
		resp.Status = StatusFeasible
		resp.Objective = objective
		resp.values = values
	case proven.Load():
		resp.Status = StatusInfeasible
	default:
		resp.Status = StatusUnknown
	}
	return resp, nil
}
