package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler/constraint"
	"github.com/paiban/roster/pkg/scheduler/domain"
)

// fixture 规则测试夹具
type fixture struct {
	days      int
	employees []*model.Employee
	forced    []model.ForcedAssignment
	prevNight string
	meeting   []string
	noDay     []string
	maxConsec int
}

func employee(name, eligibility string, notRelievedBy ...string) *model.Employee {
	eligible, double, err := model.ParseEligibility(eligibility)
	if err != nil {
		panic(err)
	}
	return &model.Employee{
		Name:              name,
		HoursPerWeek:      40,
		Eligible:          eligible,
		AllowsDoubleShift: double,
		NotRelievedBy:     notRelievedBy,
	}
}

func forcedDays(name string, kind model.ShiftKind, days ...int) []model.ForcedAssignment {
	out := make([]model.ForcedAssignment, 0, len(days))
	for _, d := range days {
		out = append(out, model.ForcedAssignment{Employee: name, Day: d, Shift: kind})
	}
	return out
}

// encode 构建上下文并只编码指定规则
func (f fixture) encode(t *testing.T, rules ...constraint.Rule) (*constraint.Context, *constraint.Report) {
	t.Helper()

	cal, err := calendar.New(calendar.Options{
		Year: 2026, Month: time.May, Days: f.days,
		Special: calendar.SpecialDays{TeamMeeting: f.meeting, NoDayShift: f.noDay},
	})
	require.NoError(t, err)

	m := cpsat.NewModel("rule-test")
	log := zerolog.Nop()
	d, err := domain.NewBuilder(&log).Build(m, domain.Input{
		Calendar:            cal,
		Employees:           f.employees,
		Forced:              f.forced,
		PreviousNightWorker: f.prevNight,
	})
	require.NoError(t, err)

	ctx := constraint.NewContext(m, cal, f.employees, d)
	ctx.MaxConsecutiveShifts = f.maxConsec

	manager := constraint.NewManager()
	for _, r := range rules {
		manager.Register(r)
	}
	report, err := manager.Encode(ctx, constraint.AllEnabled())
	require.NoError(t, err)
	return ctx, report
}

func solve(t *testing.T, ctx *constraint.Context) *cpsat.Response {
	t.Helper()
	resp, err := cpsat.NewSolver(cpsat.Params{TimeLimit: 10 * time.Second, Workers: 1, Seed: 1}).
		Solve(context.Background(), ctx.Model)
	require.NoError(t, err)
	return resp
}

func TestRegisterDefaultRules(t *testing.T) {
	manager := constraint.NewManager()
	RegisterDefaultRules(manager)

	assert.Equal(t, len(constraint.AllTypes), manager.Count())
	for _, typ := range constraint.AllTypes {
		r := manager.GetRule(typ)
		require.NotNil(t, r, typ)
		assert.Equal(t, constraint.CategoryHard, r.Category())
		assert.Equal(t, typ, NewRule(typ).Type())
	}
	assert.Nil(t, NewRule(constraint.Type("unknown")))

	// 强制排班最先编码
	assert.Equal(t, constraint.TypeForcedOverrides, manager.GetAll()[0].Type())
}

func TestCoverageRule(t *testing.T) {
	tests := []struct {
		name      string
		employees []*model.Employee
		feasible  bool
		diagnosed bool
	}{
		{"日夜班各有一人", []*model.Employee{employee("anna", "d"), employee("bernd", "n")}, true, false},
		{"无人可上日班", []*model.Employee{employee("bernd", "n")}, false, true},
		{"无人可上夜班", []*model.Employee{employee("anna", "d")}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, report := fixture{days: 3, employees: tt.employees}.encode(t, NewCoverageRule())
			assert.Equal(t, tt.diagnosed, len(report.Diagnostics) > 0)

			resp := solve(t, ctx)
			assert.Equal(t, tt.feasible, resp.HasSolution())
			if !tt.feasible {
				assert.Equal(t, cpsat.StatusInfeasible, resp.Status)
			}
		})
	}
}

func TestCoverageRule_NoDayShift(t *testing.T) {
	f := fixture{days: 2, employees: []*model.Employee{employee("bernd", "n")}}
	ctx, _ := f.encode(t, NewCoverageRule())
	assert.False(t, solve(t, ctx).HasSolution())

	// 无日班日只需要夜班
	f.noDay = []string{"1-2"}
	ctx, report := f.encode(t, NewCoverageRule())
	assert.Empty(t, report.Diagnostics)
	assert.True(t, solve(t, ctx).HasSolution())
}

func TestCoverageRule_Assignments(t *testing.T) {
	ctx, _ := fixture{days: 7, employees: []*model.Employee{employee("anna", "d"), employee("bernd", "n")}}.
		encode(t, NewCoverageRule())
	resp := solve(t, ctx)
	require.True(t, resp.HasSolution())

	for d := 1; d <= 7; d++ {
		day, ok := ctx.Vars().Day(0, d)
		require.True(t, ok)
		assert.True(t, resp.BoolValue(day))

		night, kind, ok := ctx.Vars().Night(1, d)
		require.True(t, ok)
		assert.Equal(t, ctx.Calendar.Day(d).NightKind(), kind)
		assert.True(t, resp.BoolValue(night))
	}
}

func TestOneShiftPerDayRule(t *testing.T) {
	f := fixture{days: 1, employees: []*model.Employee{employee("anna", "d,n")}}

	ctx, _ := f.encode(t, NewCoverageRule())
	assert.True(t, solve(t, ctx).HasSolution(), "没有单班限制时可以一人包揽")

	ctx, _ = f.encode(t, NewCoverageRule(), NewOneShiftPerDayRule())
	assert.Equal(t, cpsat.StatusInfeasible, solve(t, ctx).Status)
}

func TestRestBetweenNightsRule(t *testing.T) {
	tests := []struct {
		name     string
		fixture  fixture
		feasible bool
	}{
		{
			name:     "连续两天夜班",
			fixture:  fixture{days: 2, employees: []*model.Employee{employee("anna", "n")}, forced: forcedDays("anna", model.ShiftNightAny, 1, 2)},
			feasible: false,
		},
		{
			name:     "夜班隔天",
			fixture:  fixture{days: 3, employees: []*model.Employee{employee("anna", "n")}, forced: forcedDays("anna", model.ShiftNightAny, 1, 3)},
			feasible: true,
		},
		{
			name: "夜班后次日日班且不允许连班",
			fixture: fixture{days: 2, employees: []*model.Employee{employee("anna", "d,n")},
				forced: append(forcedDays("anna", model.ShiftNightAny, 1), forcedDays("anna", model.ShiftDay, 2)...)},
			feasible: false,
		},
		{
			name: "夜班后次日日班且允许连班",
			fixture: fixture{days: 2, employees: []*model.Employee{employee("anna", "d,n,n+d")},
				forced: append(forcedDays("anna", model.ShiftNightAny, 1), forcedDays("anna", model.ShiftDay, 2)...)},
			feasible: true,
		},
		{
			name:     "上月最后夜班后第1天夜班",
			fixture:  fixture{days: 2, employees: []*model.Employee{employee("anna", "n")}, prevNight: "anna", forced: forcedDays("anna", model.ShiftNightAny, 1)},
			feasible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := tt.fixture.encode(t, NewForcedOverridesRule(), NewRestBetweenNightsRule())
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestDoubleShiftRestRule(t *testing.T) {
	emp := employee("anna", "d,n,n+d")
	double := append(forcedDays("anna", model.ShiftNightAny, 1), forcedDays("anna", model.ShiftDay, 2)...)

	tests := []struct {
		name     string
		forced   []model.ForcedAssignment
		feasible bool
	}{
		{"连班后休息", double, true},
		{"连班后次日日班", append(append([]model.ForcedAssignment{}, double...), forcedDays("anna", model.ShiftDay, 3)...), false},
		{"连班后次日夜班", append(append([]model.ForcedAssignment{}, double...), forcedDays("anna", model.ShiftNightAny, 3)...), false},
		{"连班后隔一天上班", append(append([]model.ForcedAssignment{}, double...), forcedDays("anna", model.ShiftDay, 4)...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, report := fixture{days: 4, employees: []*model.Employee{emp}, forced: tt.forced}.
				encode(t, NewForcedOverridesRule(), NewDoubleShiftRestRule())
			assert.Positive(t, report.Indicators)
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestDoubleShiftRestRule_CarryIn(t *testing.T) {
	f := fixture{
		days:      3,
		employees: []*model.Employee{employee("anna", "d,n,n+d")},
		prevNight: "anna",
		forced:    forcedDays("anna", model.ShiftDay, 1, 2),
	}
	ctx, _ := f.encode(t, NewForcedOverridesRule(), NewDoubleShiftRestRule())
	assert.False(t, solve(t, ctx).HasSolution())
}

func TestReliefOrderingRule(t *testing.T) {
	tests := []struct {
		name      string
		employees []*model.Employee
		days      int
		prevNight string
		feasible  bool
	}{
		{
			name:      "日班后不得由指定同事接夜班",
			employees: []*model.Employee{employee("anna", "d", "bernd"), employee("bernd", "n")},
			days:      1,
			feasible:  false,
		},
		{
			name:      "夜班后不得由指定同事接日班",
			employees: []*model.Employee{employee("anna", "d"), employee("bernd", "n", "anna")},
			days:      2,
			feasible:  false,
		},
		{
			name:      "上月夜班后第1天不得由指定同事接日班",
			employees: []*model.Employee{employee("anna", "d"), employee("bernd", "n", "anna"), employee("carl", "n")},
			days:      1,
			prevNight: "bernd",
			feasible:  false,
		},
		{
			name:      "反方向不受限",
			employees: []*model.Employee{employee("anna", "d"), employee("bernd", "n", "carl")},
			days:      3,
			feasible:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{days: tt.days, employees: tt.employees, prevNight: tt.prevNight}
			ctx, _ := f.encode(t, NewCoverageRule(), NewReliefOrderingRule())
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestNoSingleDayShiftRule(t *testing.T) {
	restricted := func(eligibility string) *model.Employee {
		e := employee("anna", eligibility)
		e.NoSingleDayShift = true
		return e
	}

	tests := []struct {
		name        string
		eligibility string
		forced      []model.ForcedAssignment
		prevNight   string
		feasible    bool
	}{
		{"第1天日班", "d,n,n+d", forcedDays("anna", model.ShiftDay, 1), "", false},
		{"第1天日班且上月最后夜班", "d,n,n+d", forcedDays("anna", model.ShiftDay, 1), "anna", true},
		{"不上夜班的员工不能上日班", "d", forcedDays("anna", model.ShiftDay, 3), "", false},
		{"日班迫使前一天夜班", "d,n,n+d", forcedDays("anna", model.ShiftDay, 3), "", true},
		{"夜班接日班", "d,n,n+d", append(forcedDays("anna", model.ShiftNightAny, 2), forcedDays("anna", model.ShiftDay, 3)...), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{days: 3, employees: []*model.Employee{restricted(tt.eligibility)}, forced: tt.forced, prevNight: tt.prevNight}
			ctx, _ := f.encode(t, NewForcedOverridesRule(), NewNoSingleDayShiftRule())
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestFreeWeekendRule(t *testing.T) {
	// 2026年5月：1日、8日为周五，10 天内有两个完整周末窗口
	tests := []struct {
		name     string
		forced   []model.ForcedAssignment
		feasible bool
	}{
		{"第一个周末上班", forcedDays("anna", model.ShiftDay, 2), true},
		{"两个周末都上班", forcedDays("anna", model.ShiftDay, 2, 9), false},
		{"周五夜班与下周日日班", append(forcedDays("anna", model.ShiftNightAny, 1), forcedDays("anna", model.ShiftDay, 10)...), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{days: 10, employees: []*model.Employee{employee("anna", "d,n")}, forced: tt.forced}
			ctx, report := f.encode(t, NewForcedOverridesRule(), NewFreeWeekendRule())
			assert.Equal(t, 2, report.Indicators)
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestFreeWeekendRule_NoWindow(t *testing.T) {
	// 2 天内没有完整的周五至周日
	f := fixture{days: 2, employees: []*model.Employee{employee("anna", "d")}, forced: forcedDays("anna", model.ShiftDay, 1, 2)}
	ctx, report := f.encode(t, NewForcedOverridesRule(), NewFreeWeekendRule())
	assert.Zero(t, report.Indicators)
	assert.True(t, solve(t, ctx).HasSolution())
}

func TestFreeDayQuotaRule(t *testing.T) {
	// 5月1日至7日（不含节假日）应休 2 天：2日、3日
	tests := []struct {
		name     string
		forced   []model.ForcedAssignment
		feasible bool
	}{
		{"休息两天", forcedDays("anna", model.ShiftDay, 1, 2, 3, 4, 5), true},
		{"只休一天", forcedDays("anna", model.ShiftDay, 1, 2, 3, 4, 5, 6), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{days: 7, employees: []*model.Employee{employee("anna", "d")}, forced: tt.forced}
			ctx, _ := f.encode(t, NewForcedOverridesRule(), NewFreeDayQuotaRule())
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestFreeDayQuotaRule_NightSpillover(t *testing.T) {
	// 第6天夜班延续到第7天，第7天不算休息
	forced := append(forcedDays("anna", model.ShiftDay, 1, 2, 3, 4), forcedDays("anna", model.ShiftNightAny, 6)...)
	f := fixture{days: 7, employees: []*model.Employee{employee("anna", "d,n")}, forced: forced}
	ctx, _ := f.encode(t, NewForcedOverridesRule(), NewOneShiftPerDayRule(), NewFreeDayQuotaRule())
	assert.False(t, solve(t, ctx).HasSolution())
}

func TestFreeDayQuotaRule_TeamMeeting(t *testing.T) {
	f := fixture{days: 7, employees: []*model.Employee{employee("anna", "d")}, meeting: []string{"2", "3"},
		forced: forcedDays("anna", model.ShiftDay, 1)}
	ctx, report := f.encode(t, NewForcedOverridesRule(), NewFreeDayQuotaRule())
	assert.Empty(t, report.Diagnostics)
	assert.True(t, solve(t, ctx).HasSolution())
}

func TestMaxConsecutiveRule(t *testing.T) {
	tests := []struct {
		name     string
		forced   []model.ForcedAssignment
		feasible bool
	}{
		{"连续三天", forcedDays("anna", model.ShiftDay, 1, 2, 3, 5, 6, 7), true},
		{"连续四天", forcedDays("anna", model.ShiftDay, 1, 2, 3, 4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{days: 7, employees: []*model.Employee{employee("anna", "d")}, forced: tt.forced, maxConsec: 3}
			ctx, _ := f.encode(t, NewForcedOverridesRule(), NewMaxConsecutiveRule())
			assert.Equal(t, tt.feasible, solve(t, ctx).HasSolution())
		})
	}
}

func TestMaxConsecutiveRule_Disabled(t *testing.T) {
	f := fixture{days: 7, employees: []*model.Employee{employee("anna", "d")}, forced: forcedDays("anna", model.ShiftDay, 1, 2, 3, 4, 5, 6, 7)}
	ctx, report := f.encode(t, NewForcedOverridesRule(), NewMaxConsecutiveRule())
	assert.Equal(t, 7, report.Constraints)
	assert.True(t, solve(t, ctx).HasSolution())
}

func TestForcedOverridesRule(t *testing.T) {
	f := fixture{
		days:      3,
		employees: []*model.Employee{employee("anna", "d"), employee("bernd", "n"), employee("carl", "d")},
		forced:    []model.ForcedAssignment{{Employee: "anna", Day: 2, Shift: model.ShiftNightAny}},
	}
	ctx, _ := f.encode(t, NewForcedOverridesRule(), NewCoverageRule(), NewOneShiftPerDayRule())
	resp := solve(t, ctx)
	require.True(t, resp.HasSolution())

	// 资格之外的强制夜班也会创建变量并生效
	night, kind, ok := ctx.Vars().Night(0, 2)
	require.True(t, ok)
	assert.Equal(t, model.ShiftNightWeekend, kind)
	assert.True(t, resp.BoolValue(night))

	other, _, ok := ctx.Vars().Night(1, 2)
	require.True(t, ok)
	assert.False(t, resp.BoolValue(other))
}

func TestForcedOverridesRule_Conflict(t *testing.T) {
	forced := append(forcedDays("anna", model.ShiftDay, 1), forcedDays("anna", model.ShiftNightAny, 1)...)
	f := fixture{days: 1, employees: []*model.Employee{employee("anna", "d,n")}, forced: forced}
	ctx, report := f.encode(t, NewForcedOverridesRule(), NewOneShiftPerDayRule())

	assert.Len(t, report.Diagnostics, 1)
	assert.Equal(t, cpsat.StatusInfeasible, solve(t, ctx).Status)
}
