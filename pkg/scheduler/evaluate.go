package scheduler

import (
	"fmt"

	"github.com/paiban/roster/pkg/cpsat"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler/decoder"
	"github.com/paiban/roster/pkg/scheduler/domain"
	"github.com/paiban/roster/pkg/stats"
	"github.com/paiban/roster/pkg/validator"
)

// Evaluation 对给定排班的核算结果
type Evaluation struct {
	Roster    *model.Roster          `json:"roster"`
	Ledger    *model.WorktimeLedger  `json:"ledger"`
	CarryOut  string                 `json:"carry_out,omitempty"`
	Fairness  *stats.FairnessMetrics `json:"fairness"`
	Conflicts []validator.Conflict   `json:"conflicts,omitempty"`
	Valid     bool                   `json:"valid"`
}

// fixedAssignment 以集合表示的取值
type fixedAssignment map[int]bool

func (f fixedAssignment) BoolValue(b cpsat.BoolVar) bool {
	return f[b.Index()]
}

// Evaluate 不经求解，直接对 shifts 列出的班次做工时核算和规则复核
//
// 夜班按当天的星期类别解析为对应变体；员工不具备资格、休假或日期无日班的班次
// 返回 INVALID_INPUT。
func (s *Scheduler) Evaluate(in Input, shifts []model.ForcedAssignment) (*Evaluation, error) {
	if in.Calendar == nil {
		return nil, apperrors.ConfigurationMissing("calendar")
	}
	if err := model.ValidateEmployees(in.Employees); err != nil {
		return nil, apperrors.InvalidInput("employees", err.Error())
	}

	log := s.logger.Logger().With().Str("mode", "evaluate").Logger()
	m := cpsat.NewModel("evaluate")
	dom, err := domain.NewBuilder(&log).Build(m, domain.Input{
		Calendar:            in.Calendar,
		Employees:           in.Employees,
		Vacation:            in.Vacation,
		PreviousNightWorker: in.PreviousNightWorker,
	})
	if err != nil {
		return nil, err
	}

	values := make(fixedAssignment, len(shifts))
	for i, a := range shifts {
		e, ok := dom.EmployeeIndex(a.Employee)
		if !ok {
			return nil, apperrors.Lookup("shifts", a.Employee, a.Day)
		}
		if !in.Calendar.InRange(a.Day) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("shifts[%d].day", i), fmt.Sprintf("日期 %d 超出计划期", a.Day))
		}
		kind := a.Shift
		if kind.IsNight() {
			kind = in.Calendar.Day(a.Day).NightKind()
		}
		v, ok := dom.Vars.Lookup(e, a.Day, kind)
		if !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("shifts[%d]", i),
				fmt.Sprintf("员工 %s 在第 %d 天不能上班次 %s", a.Employee, a.Day, kind))
		}
		values[v.Index()] = true
	}

	out := decoder.New(s.settings.Objective, s.settings.Clock).
		Decode(decoder.Input{Calendar: in.Calendar, Employees: in.Employees, Domain: dom}, values)

	eval := &Evaluation{
		Roster:   out.Roster,
		Ledger:   out.Ledger,
		CarryOut: out.CarryOut,
		Fairness: stats.NewFairnessAnalyzer().Analyze(out.Ledger),
	}
	eval.Conflicts = s.verify(in, out.Roster)
	eval.Valid = !validator.HasErrors(eval.Conflicts)
	return eval, nil
}
