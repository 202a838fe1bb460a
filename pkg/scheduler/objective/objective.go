package objective

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/paiban/roster/pkg/cpsat"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/scheduler/constraint"
	"github.com/paiban/roster/pkg/scheduler/domain"
)

// EmployeeTerms 单个员工的工时变量
type EmployeeTerms struct {
	Employee int

	BaseTarget int
	Target     int
	Credits    Credits

	// ShiftMinutes 班次时长之和（不含抵扣）
	ShiftMinutes *cpsat.LinearExpr
	Actual       cpsat.IntVar
	Deviation    cpsat.IntVar

	// NightMinutes 每个夜班变量对应的时长变量
	NightMinutes map[domain.Key]cpsat.IntVar

	// Excluded 无任何班次变量，偏差为常数，不参与最大偏差
	Excluded bool
}

// Result 目标构建结果
type Result struct {
	Terms []EmployeeTerms

	// MaxDeviation 最大偏差变量，Primary 为 nil 时无意义
	MaxDeviation cpsat.IntVar
	Primary      *cpsat.LinearExpr
	Secondary    *cpsat.LinearExpr

	// Violations 期望休息日被占用的指示变量
	Violations map[[2]int]cpsat.BoolVar

	Capacity int
	Required int
	Staffing *apperrors.AppError // 总工时不足时的警告，非致命
}

// Builder 目标构建器
type Builder struct {
	settings Settings
	log      *zerolog.Logger
}

// NewBuilder 创建目标构建器
func NewBuilder(settings Settings, log *zerolog.Logger) *Builder {
	return &Builder{settings: settings, log: log}
}

// Build 为每个员工建立实际工时、偏差变量，并生成主次目标表达式
// 目标表达式只返回不设置，由调用方决定求解顺序
func (b *Builder) Build(ctx *constraint.Context) (*Result, error) {
	if err := b.settings.Validate(); err != nil {
		return nil, apperrors.InvalidInput("objective", err.Error())
	}

	res := &Result{
		Terms:      make([]EmployeeTerms, 0, ctx.NumEmployees()),
		Violations: make(map[[2]int]cpsat.BoolVar),
	}

	var deviations []cpsat.IntVar
	for e := range ctx.Employees {
		t := b.employeeTerms(ctx, e)
		res.Terms = append(res.Terms, t)
		res.Capacity += t.BaseTarget
		if t.Excluded {
			b.log.Info().
				Str("employee", ctx.Employees[e].Name).
				Int("deviation", t.Credits.Total()-t.Target).
				Msg("员工无可排班次，偏差为常数，不计入最大偏差")
			continue
		}
		deviations = append(deviations, t.Deviation)
	}

	res.Required = b.settings.RequiredMinutes(ctx.Calendar)
	if res.Capacity < res.Required {
		res.Staffing = apperrors.StaffingInfeasible(res.Capacity, res.Required)
	}

	if b.settings.BalanceOvertime && len(deviations) > 0 {
		var ub int64
		for _, d := range deviations {
			if _, hi := ctx.Model.Bounds(d); hi > ub {
				ub = hi
			}
		}
		res.MaxDeviation = ctx.Model.NewIntVar(0, ub, "max_deviation")
		ctx.Model.AddMaxEquality(res.MaxDeviation, deviations)
		res.Primary = cpsat.Sum(res.MaxDeviation)
	}

	if err := b.preferences(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) employeeTerms(ctx *constraint.Context, e int) EmployeeTerms {
	m := ctx.Model
	cal := ctx.Calendar
	emp := ctx.Employees[e]
	vars := ctx.Vars()
	s := b.settings

	base := BaseTargetMinutes(emp.HoursPerWeek, s.WorkingDaysPerWeek, cal)
	t := EmployeeTerms{
		Employee:     e,
		BaseTarget:   base,
		Target:       AdjustedTargetMinutes(base, emp.OvertimeMinutes, s.OvertimeModifier),
		Credits:      s.CreditsFor(emp, cal, func(day int) bool { return ctx.Domain.OnVacation(e, day) }),
		ShiftMinutes: cpsat.NewLinearExpr(),
		NightMinutes: make(map[domain.Key]cpsat.IntVar),
	}

	maxShift := 0
	for d := 1; d <= cal.NumDays(); d++ {
		if x, ok := vars.Day(e, d); ok {
			minutes := s.Durations.DayMinutes(cal.Day(d))
			t.ShiftMinutes.AddTerm(x, int64(minutes))
			maxShift += minutes
		}
		if x, kind, ok := vars.Night(e, d); ok {
			nd, hi := b.nightDuration(ctx, e, d, x)
			t.NightMinutes[domain.Key{Employee: e, Day: d, Kind: kind}] = nd
			t.ShiftMinutes.Add(nd)
			maxShift += hi
		}
	}

	credits := int64(t.Credits.Total())
	target := int64(t.Target)
	if t.ShiftMinutes.Len() == 0 {
		t.Excluded = true
		t.Actual = m.NewConstant(credits)
		t.Deviation = m.NewConstant(abs64(credits - target))
		return t
	}

	t.Actual = m.NewIntVar(credits, credits+int64(maxShift), fmt.Sprintf("actual_%s", emp.Name))
	m.AddEquality(t.ShiftMinutes.Clone().AddConstant(credits).AddTerm(t.Actual, -1), 0).WithName("actual_minutes")

	lo, hi := credits-target, credits+int64(maxShift)-target
	t.Deviation = m.NewIntVar(0, max(abs64(lo), abs64(hi)), fmt.Sprintf("deviation_%s", emp.Name))
	// deviation ≥ actual − target 且 deviation ≥ target − actual
	m.AddGreaterOrEqual(cpsat.Sum(t.Deviation).AddTerm(t.Actual, -1), -target)
	m.AddGreaterOrEqual(cpsat.Sum(t.Deviation, t.Actual), target)
	return t
}

// nightDuration 夜班时长变量，按次日是否本人日班、次日是否团队会议分情况取值
func (b *Builder) nightDuration(ctx *constraint.Context, e, d int, x cpsat.BoolVar) (cpsat.IntVar, int) {
	m := ctx.Model
	s := b.settings
	cal := ctx.Calendar

	alone := s.NightMinutesOn(cal, d, false)
	withDay := s.NightMinutesOn(cal, d, true)
	hi := max(alone, withDay)

	nd := m.NewIntVar(0, int64(hi), fmt.Sprintf("night_minutes_%s_d%d", ctx.Employees[e].Name, d))
	m.AddEquality(cpsat.Sum(nd), 0).OnlyEnforceIf(x.Not())

	next, ok := ctx.Vars().Day(e, d+1)
	if !ok {
		m.AddEquality(cpsat.Sum(nd), int64(alone)).OnlyEnforceIf(x.Lit())
		return nd, hi
	}
	m.AddEquality(cpsat.Sum(nd), int64(withDay)).OnlyEnforceIf(x.Lit(), next.Lit())
	m.AddEquality(cpsat.Sum(nd), int64(alone)).OnlyEnforceIf(x.Lit(), next.Not())
	return nd, hi
}

// preferences 期望休息日：违反指示变量之和作为次目标，或强制为 0
func (b *Builder) preferences(ctx *constraint.Context, res *Result) error {
	table := ctx.Preferences
	if table == nil || !(b.settings.RespectPreferences || b.settings.ForcePreferences) {
		return nil
	}

	m := ctx.Model
	var violated []cpsat.BoolVar
	for e, emp := range ctx.Employees {
		for d := 1; d <= ctx.NumDays(); d++ {
			preferred, err := table.Lookup(emp.Name, d)
			if err != nil {
				return err
			}
			if !preferred {
				continue
			}
			busy := ctx.Vars().OnDay(e, d)
			if len(busy) == 0 {
				continue
			}

			v := m.NewBoolVar(fmt.Sprintf("pref_violated_%s_d%d", emp.Name, d))
			lits := []cpsat.Literal{v.Not()}
			for _, x := range busy {
				m.AddImplication(x.Lit(), v.Lit())
				lits = append(lits, x.Lit())
			}
			m.AddBoolOr(lits...)
			res.Violations[[2]int{e, d}] = v
			violated = append(violated, v)
		}
	}
	if len(violated) == 0 {
		return nil
	}

	sum := cpsat.SumBools(violated)
	if b.settings.ForcePreferences {
		m.AddEquality(sum, 0).WithName("force_preferences")
		return nil
	}
	res.Secondary = sum
	return nil
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
