package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paiban/roster/internal/constraints"
	"github.com/paiban/roster/pkg/cpsat"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler"
	"github.com/paiban/roster/pkg/validator"
)

func sampleRoster() *model.Roster {
	days := []model.Day{
		{Index: 1, Date: time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC), Weekday: time.Friday},
		{Index: 2, Date: time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC), Weekday: time.Saturday, Weekend: true},
	}
	r := model.NewRoster(days, []string{"anna", "bert"})
	r.Set(1, 0, model.Cell{Shifts: []model.ShiftKind{model.ShiftDay}, Display: "T"})
	r.Set(1, 1, model.Cell{Shifts: []model.ShiftKind{model.ShiftNightWeekend}, Display: "N"})
	r.Set(2, 0, model.Cell{Display: "U", Vacation: true})
	return r
}

func TestRoster(t *testing.T) {
	out := Roster(sampleRoster())
	for _, want := range []string{"anna", "bert", "2026-06-05", "2026-06-06", "Fr", "Sa", "T", "N", "U"} {
		assert.Contains(t, out, want)
	}
}

func TestSummary(t *testing.T) {
	out := Summary(&model.WorktimeLedger{Entries: []model.WorktimeEntry{
		{Employee: "anna", ActualMinutes: 9000, TargetMinutes: 9600, DeviationMinutes: -600, NewOvertimeMinutes: -600, DayShifts: 12},
	}})
	assert.Contains(t, out, "anna")
	assert.Contains(t, out, "150.0")
	assert.Contains(t, out, "160.0")
	assert.Contains(t, out, "-10.0")
	assert.Contains(t, out, "12")
}

func TestStats(t *testing.T) {
	res := &scheduler.Result{
		RunID:    "run-1",
		Status:   cpsat.StatusFeasible,
		CarryOut: "bert",
		Stats:    scheduler.RunStats{Objective: 42, Variables: 120, Constraints: 300, WallTime: 2 * time.Second},
		Warnings: []string{"合同工时不足"},
		Conflicts: []validator.Conflict{
			{Type: validator.ConflictCoverage, Severity: "error", Date: "2026-06-05", Message: "夜班无人"},
		},
	}

	out := Stats(res)
	for _, want := range []string{"run-1", "FEASIBLE", "42", "120 / 300", "bert", "合同工时不足", "coverage", "夜班无人"} {
		assert.Contains(t, out, want)
	}
}

func TestRules(t *testing.T) {
	out := Rules(constraints.GetLibrary(scheduler.New(scheduler.DefaultSettings()).Manager()))
	for _, want := range []string{"coverage", "max_consecutive", "max_consecutive_shifts=6", "balance_overtime", "soft"} {
		assert.Contains(t, out, want)
	}
}
