package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/cpsat"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler/constraint"
	"github.com/paiban/roster/pkg/scheduler/objective"
	"github.com/paiban/roster/pkg/validator"
)

func newCalendar(t *testing.T, month time.Month, days int) *calendar.Context {
	t.Helper()
	cal, err := calendar.New(calendar.Options{Year: 2026, Month: month, Days: days})
	require.NoError(t, err)
	return cal
}

func newEmployee(t *testing.T, name, eligibility string) *model.Employee {
	t.Helper()
	eligible, double, err := model.ParseEligibility(eligibility)
	require.NoError(t, err)
	return &model.Employee{
		Name:              name,
		HoursPerWeek:      40,
		Eligible:          eligible,
		AllowsDoubleShift: double,
	}
}

func team(t *testing.T, names ...string) []*model.Employee {
	t.Helper()
	out := make([]*model.Employee, 0, len(names))
	for _, n := range names {
		out = append(out, newEmployee(t, n, "d,n,n+d"))
	}
	return out
}

// testSettings 关闭目标函数时求解器找到第一个可行解即为最优
func testSettings(balance bool) Settings {
	s := DefaultSettings()
	s.Objective.BalanceOvertime = balance
	s.TimeLimit = 10 * time.Second
	s.Workers = 2
	return s
}

func assertCovered(t *testing.T, res *Result, cal *calendar.Context) {
	t.Helper()
	for d := 1; d <= cal.NumDays(); d++ {
		if !cal.Day(d).NoDayShift {
			assert.GreaterOrEqual(t, res.Roster.WorkerOf(d, false), 0, "第 %d 天日班无人", d)
		}
		assert.GreaterOrEqual(t, res.Roster.WorkerOf(d, true), 0, "第 %d 天夜班无人", d)
	}
	assert.False(t, validator.HasErrors(res.Conflicts), "复核发现冲突: %v", res.Conflicts)
}

func TestGenerate_InvalidInput(t *testing.T) {
	cal := newCalendar(t, time.June, 3)
	s := New(testSettings(false))

	tests := []struct {
		name string
		in   Input
		code apperrors.Code
	}{
		{
			name: "缺少日历",
			in:   Input{Employees: team(t, "anna")},
			code: apperrors.CodeConfigurationMissing,
		},
		{
			name: "员工为空",
			in:   Input{Calendar: cal},
			code: apperrors.CodeInvalidInput,
		},
		{
			name: "姓名重复",
			in:   Input{Calendar: cal, Employees: team(t, "anna", "anna")},
			code: apperrors.CodeInvalidInput,
		},
		{
			name: "上月夜班员工不存在",
			in:   Input{Calendar: cal, Employees: team(t, "anna", "bernd"), PreviousNightWorker: "zoe"},
			code: apperrors.CodeLookupError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Generate(context.Background(), tt.in)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

// 场景 A：三名员工、7 天、全部规则
func TestGenerate_ScenarioA(t *testing.T) {
	t.Run("八月首周无完整周末窗口", func(t *testing.T) {
		// 2026-08-01 为周六，唯一的周五落在第 7 天
		cal := newCalendar(t, time.August, 7)
		require.Empty(t, cal.FreeWeekendStarts())

		res, err := New(testSettings(false)).Generate(context.Background(), Input{
			Calendar:  cal,
			Employees: team(t, "anna", "bernd", "carl"),
		})
		require.NoError(t, err)

		assert.Equal(t, cpsat.StatusOptimal, res.Status)
		assert.True(t, res.Optimal)
		assert.NotEmpty(t, res.RunID)
		assertCovered(t, res, cal)
		for _, e := range res.Ledger.Entries {
			assert.GreaterOrEqual(t, e.FreeDays, cal.RequiredFreeDays, e.Employee)
		}
		assert.NotEmpty(t, res.CarryOut)
		assert.Equal(t, 1, res.Stats.Passes)
	})

	t.Run("五月首周去掉休息周末规则", func(t *testing.T) {
		cal := newCalendar(t, time.May, 7)
		settings := testSettings(false)
		settings.Rules = constraint.AllEnabled().Without(constraint.TypeFreeWeekend)

		res, err := New(settings).Generate(context.Background(), Input{
			Calendar:  cal,
			Employees: team(t, "anna", "bernd", "carl"),
		})
		require.NoError(t, err)

		assert.Equal(t, cpsat.StatusOptimal, res.Status)
		assertCovered(t, res, cal)
		assert.Contains(t, res.Encoding.Skipped, constraint.TypeFreeWeekend)
	})

	t.Run("五月首周要求休息周末时无解", func(t *testing.T) {
		// 唯一的周末窗口所有人都要休息，周六无人可排
		cal := newCalendar(t, time.May, 7)

		res, err := New(testSettings(false)).Generate(context.Background(), Input{
			Calendar:  cal,
			Employees: team(t, "anna", "bernd", "carl"),
		})
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, apperrors.Is(err, apperrors.CodeModelInfeasible))
	})
}

// 场景 B：一名员工无法同时覆盖日班与夜班
func TestGenerate_ScenarioB(t *testing.T) {
	cal := newCalendar(t, time.June, 7)

	res, err := New(testSettings(true)).Generate(context.Background(), Input{
		Calendar:  cal,
		Employees: team(t, "anna"),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperrors.CodeModelInfeasible, apperrors.GetCode(err))
}

// 场景 C：整月休假的员工
func TestGenerate_ScenarioC(t *testing.T) {
	// 2026-06-01 至 03 为周一至周三，无应休日，目标 3 × 480
	cal := newCalendar(t, time.June, 3)
	employees := append(team(t, "anna", "bernd", "carl"), newEmployee(t, "vera", "d,n,n+d"))

	vacation := model.NewDayTable("vacation", 3)
	for _, e := range employees {
		require.NoError(t, vacation.SetRow(e.Name, []bool{false, false, false}))
	}
	require.NoError(t, vacation.SetRow("vera", []bool{true, true, true}))

	tests := []struct {
		name      string
		mode      objective.VacationCreditMode
		credit    int
		deviation int
	}{
		{name: "不抵扣", mode: objective.VacationCreditNone, credit: 0, deviation: -1440},
		{name: "按日目标抵扣", mode: objective.VacationCreditDailyTarget, credit: 1440, deviation: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings(true)
			settings.Objective.VacationCredit = tt.mode

			res, err := New(settings).Generate(context.Background(), Input{
				Calendar:  cal,
				Employees: employees,
				Vacation:  vacation,
			})
			require.NoError(t, err)
			assertCovered(t, res, cal)

			vera, ok := res.Ledger.Get("vera")
			require.True(t, ok)
			assert.Equal(t, 0, vera.ShiftMinutes)
			assert.Equal(t, 3, vera.VacationDays)
			assert.Equal(t, 1440, vera.TargetMinutes)
			assert.Equal(t, tt.credit, vera.VacationCredit)
			assert.Equal(t, tt.deviation, vera.DeviationMinutes)

			for d := 1; d <= 3; d++ {
				cell := res.Roster.At(d, 3)
				assert.True(t, cell.Vacation)
				assert.False(t, cell.Working())
			}
		})
	}
}

// 场景 D：强制排班覆盖资格限制
func TestGenerate_ScenarioD(t *testing.T) {
	cal := newCalendar(t, time.June, 5)
	employees := append(team(t, "anna", "bernd", "carl"), newEmployee(t, "xaver", "n,n+d"))
	require.False(t, employees[3].CanWork(model.ShiftDay))

	settings := testSettings(true)
	settings.TimeLimit = 3 * time.Second

	res, err := New(settings).Generate(context.Background(), Input{
		Calendar:  cal,
		Employees: employees,
		Forced:    []model.ForcedAssignment{{Employee: "xaver", Day: 5, Shift: model.ShiftDay}},
	})
	require.NoError(t, err)

	assert.Contains(t, []cpsat.Status{cpsat.StatusOptimal, cpsat.StatusFeasible}, res.Status)
	assert.True(t, res.Roster.At(5, 3).HasDay())
	assert.Equal(t, 3, res.Roster.WorkerOf(5, false))
	assertCovered(t, res, cal)

	xaver, ok := res.Ledger.Get("xaver")
	require.True(t, ok)
	assert.GreaterOrEqual(t, xaver.DayShifts, 1)
}

func TestGenerate_Preferences(t *testing.T) {
	cal := newCalendar(t, time.June, 2)
	prefs := model.NewDayTable("preferences", 2)
	for _, n := range []string{"anna", "bernd", "carl"} {
		require.NoError(t, prefs.SetRow(n, []bool{false, false}))
	}
	require.NoError(t, prefs.SetRow("anna", []bool{true, false}))

	tests := []struct {
		name    string
		balance bool
		passes  int
	}{
		{name: "只有期望休息日目标", balance: false, passes: 1},
		{name: "先均衡工时再满足期望", balance: true, passes: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(testSettings(tt.balance)).Generate(context.Background(), Input{
				Calendar:    cal,
				Employees:   team(t, "anna", "bernd", "carl"),
				Preferences: prefs,
			})
			require.NoError(t, err)

			assert.Equal(t, cpsat.StatusOptimal, res.Status)
			assert.Equal(t, tt.passes, res.Stats.Passes)
			assert.Equal(t, int64(0), res.Stats.PreferenceViolations)
			assert.False(t, res.Roster.At(1, 0).Working())
			assertCovered(t, res, cal)
		})
	}
}

func TestGenerate_PreviousNightWorker(t *testing.T) {
	cal := newCalendar(t, time.June, 3)

	res, err := New(testSettings(false)).Generate(context.Background(), Input{
		Calendar:            cal,
		Employees:           team(t, "anna", "bernd", "carl"),
		PreviousNightWorker: "anna",
	})
	require.NoError(t, err)

	// 上月夜班员工第 1 天不得再上夜班，也不得上日班（未开启连班时除外）
	cell := res.Roster.At(1, 0)
	_, night := cell.Night()
	assert.False(t, night)
	assertCovered(t, res, cal)
}

func TestNew_RegistersBuiltinRules(t *testing.T) {
	s := New(Settings{})
	assert.Equal(t, len(constraint.AllTypes), s.Manager().Count())
	for _, typ := range constraint.AllTypes {
		assert.NotNil(t, s.Manager().GetRule(typ), typ)
	}
	assert.True(t, s.Settings().Rules.Enabled(constraint.TypeCoverage))
}

func TestGenerate_FreeWeekendTwoWindows(t *testing.T) {
	// 2026-06-01 至 14：周五 5 日与 12 日各有一个完整的周五至周日窗口
	cal := newCalendar(t, time.June, 14)
	require.Equal(t, []int{5, 12}, cal.FreeWeekendStarts())

	// 每个窗口至少三人上班，六人才能保证每人都休一个周末
	employees := team(t, "anna", "bernd", "carl", "dora", "emil", "fritz")
	settings := testSettings(false)
	settings.TimeLimit = 30 * time.Second

	res, err := New(settings).Generate(context.Background(), Input{Calendar: cal, Employees: employees})
	require.NoError(t, err)
	assertCovered(t, res, cal)

	for e, emp := range employees {
		free := false
		for _, fri := range cal.FreeWeekendStarts() {
			_, friNight := res.Roster.At(fri, e).Night()
			if !friNight && !res.Roster.At(fri+1, e).Working() && !res.Roster.At(fri+2, e).Working() {
				free = true
			}
		}
		assert.True(t, free, "%s 没有休息周末", emp.Name)
	}
}

func TestGenerate_FullMonth(t *testing.T) {
	if testing.Short() {
		t.Skip("整月求解耗时较长")
	}
	cal := newCalendar(t, time.June, 0)
	require.Equal(t, 30, cal.NumDays())

	settings := testSettings(true)
	settings.TimeLimit = 30 * time.Second
	settings.Workers = 4

	res, err := New(settings).Generate(context.Background(), Input{
		Calendar:  cal,
		Employees: team(t, "anna", "bernd", "carl", "dora", "emil", "fritz"),
	})
	require.NoError(t, err)

	assert.Contains(t, []cpsat.Status{cpsat.StatusOptimal, cpsat.StatusFeasible}, res.Status)
	assertCovered(t, res, cal)
	assert.Len(t, res.Ledger.Entries, 6)
	for _, e := range res.Ledger.Entries {
		assert.GreaterOrEqual(t, e.FreeDays, cal.RequiredFreeDays, e.Employee)
	}
	assert.LessOrEqual(t, res.Stats.WallTime, settings.TimeLimit+2*time.Second)
}

func TestGenerate_TimeLimitCoversBothPasses(t *testing.T) {
	cal := newCalendar(t, time.June, 0)
	employees := team(t, "anna", "bernd", "carl", "dora", "emil", "fritz")

	prefs := model.NewDayTable("preferences", cal.NumDays())
	for i, e := range employees {
		row := make([]bool, cal.NumDays())
		row[i*5] = true
		row[i*5+2] = true
		require.NoError(t, prefs.SetRow(e.Name, row))
	}

	settings := testSettings(true)
	settings.TimeLimit = 2 * time.Second

	start := time.Now()
	res, err := New(settings).Generate(context.Background(), Input{
		Calendar:    cal,
		Employees:   employees,
		Preferences: prefs,
	})
	elapsed := time.Since(start)

	// 无论是否找到解，两轮求解合计不得超过一个时限
	assert.Less(t, elapsed, settings.TimeLimit+time.Second)
	if err == nil {
		assert.LessOrEqual(t, res.Stats.WallTime, settings.TimeLimit+500*time.Millisecond)
	}
}
