package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler"
)

func employees(t *testing.T, names ...string) []*model.Employee {
	t.Helper()
	var out []*model.Employee
	for _, n := range names {
		eligible, double, err := model.ParseEligibility("n,d")
		require.NoError(t, err)
		out = append(out, &model.Employee{Name: n, HoursPerWeek: 40, Eligible: eligible, AllowsDoubleShift: double})
	}
	return out
}

func date(day int) time.Time {
	return time.Date(2026, time.June, day, 0, 0, 0, 0, time.UTC)
}

func TestBuildDayTable(t *testing.T) {
	staff := employees(t, "Paula", "Renate")

	t.Run("每名员工都有完整一行", func(t *testing.T) {
		table, err := BuildDayTable(MarkVacation, 5, staff, []DayMark{
			{Employee: "Paula", Date: date(2)},
			{Employee: "Paula", Date: date(5)},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, table.Count("Paula"))
		assert.True(t, table.Has("Renate"))
		assert.Equal(t, 0, table.Count("Renate"))

		v, err := table.Lookup("Paula", 5)
		require.NoError(t, err)
		assert.True(t, v)
	})

	t.Run("未知员工", func(t *testing.T) {
		_, err := BuildDayTable(MarkVacation, 5, staff, []DayMark{{Employee: "Zoe", Date: date(1)}})
		assert.Equal(t, apperrors.CodeLookupError, apperrors.GetCode(err))
	})

	t.Run("超出计划期", func(t *testing.T) {
		_, err := BuildDayTable(MarkPreference, 5, staff, []DayMark{{Employee: "Paula", Date: date(6)}})
		assert.Equal(t, apperrors.CodeLookupError, apperrors.GetCode(err))
	})
}

func TestEligibilityText(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"n,d", "d,nwd,nwe,hwk"},
		{"d,n+d", "d"},
		{"hwk", "hwk"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			eligible, double, err := model.ParseEligibility(tt.spec)
			require.NoError(t, err)
			e := &model.Employee{Name: "x", Eligible: eligible, AllowsDoubleShift: double}
			assert.Equal(t, tt.want, eligibilityText(e))

			// 存储形式可被重新解析
			back, _, err := model.ParseEligibility(eligibilityText(e))
			require.NoError(t, err)
			assert.Equal(t, len(eligible), len(back))
		})
	}
}

func TestNewRunRecord(t *testing.T) {
	days := []model.Day{{Index: 1, Date: date(1), Weekday: time.Monday}}
	id := uuid.New()
	result := &scheduler.Result{
		RunID:    id.String(),
		Status:   "OPTIMAL",
		Roster:   model.NewRoster(days, []string{"Paula"}),
		Ledger:   &model.WorktimeLedger{Entries: []model.WorktimeEntry{{Employee: "Paula", NewOvertimeMinutes: 60}}},
		CarryOut: "Paula",
		Stats:    scheduler.RunStats{Objective: 42},
	}

	rec, err := NewRunRecord(result)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, 2026, rec.Year)
	assert.Equal(t, time.June, rec.Month)
	assert.Equal(t, "OPTIMAL", rec.Status)
	assert.Equal(t, int64(42), rec.Objective)
	assert.Contains(t, string(rec.Ledger), `"new_overtime_minutes":60`)

	t.Run("空排班表", func(t *testing.T) {
		_, err := NewRunRecord(&scheduler.Result{RunID: id.String()})
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})
}
