package cpsat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solve(t *testing.T, m *Model, workers int) *Response {
	t.Helper()
	resp, err := NewSolver(Params{TimeLimit: 10 * time.Second, Workers: workers, Seed: 7}).Solve(context.Background(), m)
	require.NoError(t, err)
	return resp
}

func TestSolve_Satisfaction(t *testing.T) {
	m := NewModel("sat")
	x := m.NewBoolVar("x")
	y := m.NewBoolVar("y")
	m.AddEquality(Sum(x, y), 1)
	m.AddEquality(Sum(x), 1)

	resp := solve(t, m, 1)

	assert.Equal(t, StatusOptimal, resp.Status)
	assert.True(t, resp.BoolValue(x))
	assert.False(t, resp.BoolValue(y))
}

func TestSolve_EmptySlotIsInfeasible(t *testing.T) {
	m := NewModel("empty")
	m.NewBoolVar("unused")
	m.AddEquality(NewLinearExpr(), 1)

	resp := solve(t, m, 2)

	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.False(t, resp.HasSolution())
}

func TestSolve_Minimize(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("%d线程", workers), func(t *testing.T) {
			m := NewModel("min")
			x := m.NewBoolVar("x")
			y := m.NewBoolVar("y")
			z := m.NewIntVar(0, 10, "z")
			m.AddGreaterOrEqual(Sum(x, y), 1)
			m.AddGreaterOrEqual(NewLinearExpr().Add(z).AddTerm(x, -3), 0)
			m.Minimize(NewLinearExpr().AddTerm(x, 2).AddTerm(y, 5).Add(z))

			resp := solve(t, m, workers)

			require.Equal(t, StatusOptimal, resp.Status)
			// x=1 代价 2+3，y=1 代价 5
			assert.Equal(t, int64(5), resp.Objective)
			assert.Equal(t, int64(5), resp.BestBound)
		})
	}
}

func TestSolve_FreeIntegersOutsideObjective(t *testing.T) {
	tests := []struct {
		name string
		ub   int64
		vars int
	}{
		{"三个小整数", 1000, 3},
		{"一个大值域整数", 10_000_000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel("free-ints")
			b := m.NewBoolVar("b")
			for i := 0; i < tt.vars; i++ {
				m.NewIntVar(0, tt.ub, fmt.Sprintf("x%d", i))
			}
			m.Minimize(Sum(b))

			resp, err := NewSolver(Params{TimeLimit: 3 * time.Second, Workers: 1}).Solve(context.Background(), m)
			require.NoError(t, err)

			// 目标固定后不能再枚举其余整数变量的取值
			require.Equal(t, StatusOptimal, resp.Status)
			assert.Equal(t, int64(0), resp.Objective)
			assert.Less(t, resp.Stats.WallTime, time.Second)
			assert.Less(t, resp.Stats.Solutions, int64(5))
		})
	}
}

func TestSolve_PreferenceObjectiveWithFreeMinutes(t *testing.T) {
	// 与排班第二轮相同的形状：目标只含布尔违例，分钟数变量不在目标中
	m := NewModel("pref")
	var work []BoolVar
	for d := 0; d < 6; d++ {
		work = append(work, m.NewBoolVar(fmt.Sprintf("w%d", d)))
	}
	m.AddEquality(SumBools(work), 3)
	minutes := m.NewIntVar(0, 6*600, "minutes")
	expr := NewLinearExpr().Add(minutes)
	for _, w := range work {
		expr.AddTerm(w, -480)
	}
	m.AddEquality(expr, 0)
	m.NewIntVar(0, 5000, "deviation")
	m.Minimize(Sum(work[0], work[1]))

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("%d线程", workers), func(t *testing.T) {
			resp := solve(t, m, workers)

			require.Equal(t, StatusOptimal, resp.Status)
			assert.Equal(t, int64(0), resp.Objective)
			assert.Equal(t, int64(1440), resp.Value(minutes))
		})
	}
}

func TestLuby(t *testing.T) {
	want := []int64{1, 1, 2, 1, 1, 2, 4, 1, 1, 2, 1, 1, 2, 4, 8}
	for i, v := range want {
		assert.Equal(t, v, luby(int64(i+1)), "第 %d 项", i+1)
	}
}

func TestSolve_OnlyEnforceIf(t *testing.T) {
	t.Run("启用时约束生效", func(t *testing.T) {
		m := NewModel("enf")
		b := m.NewBoolVar("b")
		x := m.NewIntVar(0, 10, "x")
		m.AddGreaterOrEqual(Sum(x), 5).OnlyEnforceIf(b.Lit())
		m.AddEquality(Sum(b), 1)
		m.Minimize(Sum(x))

		resp := solve(t, m, 1)

		require.Equal(t, StatusOptimal, resp.Status)
		assert.Equal(t, int64(5), resp.Value(x))
	})

	t.Run("约束不可满足时启用文字被置假", func(t *testing.T) {
		m := NewModel("enf-reverse")
		b := m.NewBoolVar("b")
		x := m.NewIntVar(0, 3, "x")
		m.AddGreaterOrEqual(Sum(x), 5).OnlyEnforceIf(b.Lit())

		resp := solve(t, m, 1)

		require.Equal(t, StatusOptimal, resp.Status)
		assert.False(t, resp.BoolValue(b))
	})

	t.Run("负文字启用", func(t *testing.T) {
		m := NewModel("enf-not")
		b := m.NewBoolVar("b")
		x := m.NewBoolVar("x")
		m.AddEquality(Sum(x), 1).OnlyEnforceIf(b.Not())
		m.AddEquality(Sum(b), 0)

		resp := solve(t, m, 1)

		require.Equal(t, StatusOptimal, resp.Status)
		assert.True(t, resp.BoolValue(x))
	})
}

func TestSolve_Implication(t *testing.T) {
	m := NewModel("impl")
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddImplication(a.Lit(), b.Not())
	m.AddEquality(Sum(a), 1)

	resp := solve(t, m, 1)

	require.Equal(t, StatusOptimal, resp.Status)
	assert.False(t, resp.BoolValue(b))
	assert.True(t, resp.LiteralValue(b.Not()))
}

func TestSolve_MaxEquality(t *testing.T) {
	m := NewModel("max")
	a := m.NewIntVar(2, 4, "a")
	b := m.NewIntVar(7, 7, "b")
	c := m.NewIntVar(0, 9, "c")
	target := m.NewIntVar(0, 100, "max")
	m.AddMaxEquality(target, []IntVar{a, b, c})
	m.Minimize(Sum(target))

	resp := solve(t, m, 2)

	require.Equal(t, StatusOptimal, resp.Status)
	assert.Equal(t, int64(7), resp.Value(target))
	assert.LessOrEqual(t, resp.Value(c), int64(7))
}

func TestSolve_MinMaxDeviation(t *testing.T) {
	// 两人分配 4 个单位工作，目标各 2，最大偏差最小为 0
	m := NewModel("fair")
	var devs []IntVar
	work := make([][]BoolVar, 2)
	for e := 0; e < 2; e++ {
		for s := 0; s < 4; s++ {
			work[e] = append(work[e], m.NewBoolVar(fmt.Sprintf("w_%d_%d", e, s)))
		}
	}
	for s := 0; s < 4; s++ {
		m.AddEquality(Sum(work[0][s], work[1][s]), 1)
	}
	for e := 0; e < 2; e++ {
		dev := m.NewIntVar(0, 4, fmt.Sprintf("dev_%d", e))
		actual := SumBools(work[e])
		m.AddGreaterOrEqual(NewLinearExpr().Add(dev).AddExpr(actual, -1), -2)
		m.AddGreaterOrEqual(NewLinearExpr().Add(dev).AddExpr(actual, 1), 2)
		devs = append(devs, dev)
	}
	obj := m.NewIntVar(0, 4, "obj")
	m.AddMaxEquality(obj, devs)
	m.Minimize(Sum(obj))

	resp := solve(t, m, 2)

	require.Equal(t, StatusOptimal, resp.Status)
	assert.Equal(t, int64(0), resp.Objective)
	assert.Equal(t, int64(2), resp.ExprValue(SumBools(work[0])))
}

func TestSolve_ModelInvalid(t *testing.T) {
	m := NewModel("invalid")
	m.NewIntVar(5, 1, "bad")

	resp, err := NewSolver(DefaultParams()).Solve(context.Background(), m)

	assert.Error(t, err)
	assert.Equal(t, StatusModelInvalid, resp.Status)
}

func TestSolve_TimeLimitWithoutSolution(t *testing.T) {
	// 13 只鸽子放 12 个笼子，仅靠边界传播无法在时限内证明无解
	const holes = 12
	m := NewModel("pigeonhole")
	x := make([][]BoolVar, holes+1)
	for p := range x {
		for h := 0; h < holes; h++ {
			x[p] = append(x[p], m.NewBoolVar(fmt.Sprintf("p%d_h%d", p, h)))
		}
		m.AddEquality(SumBools(x[p]), 1)
	}
	for h := 0; h < holes; h++ {
		col := make([]BoolVar, 0, holes+1)
		for p := range x {
			col = append(col, x[p][h])
		}
		m.AddLessOrEqual(SumBools(col), 1)
	}

	resp, err := NewSolver(Params{TimeLimit: 50 * time.Millisecond, Workers: 2}).Solve(context.Background(), m)

	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, resp.Status)
	assert.Greater(t, resp.Stats.Branches, int64(0))
}

func TestSolve_Hints(t *testing.T) {
	m := NewModel("hint")
	x := m.NewBoolVar("x")
	y := m.NewBoolVar("y")
	m.AddEquality(Sum(x, y), 1)
	m.AddHint(x, 1)

	resp := solve(t, m, 1)

	require.Equal(t, StatusOptimal, resp.Status)
	assert.True(t, resp.BoolValue(x))
	assert.False(t, resp.BoolValue(y))
}

func TestDivRounding(t *testing.T) {
	tests := []struct {
		a, b        int64
		floor, ceil int64
	}{
		{7, 2, 3, 4},
		{-7, 2, -4, -3},
		{7, -2, -4, -3},
		{-7, -2, 3, 4},
		{6, 3, 2, 2},
		{0, 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.a, tt.b), func(t *testing.T) {
			assert.Equal(t, tt.floor, floorDiv(tt.a, tt.b))
			assert.Equal(t, tt.ceil, ceilDiv(tt.a, tt.b))
		})
	}
}
