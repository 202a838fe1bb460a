package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paiban/roster/pkg/model"
)

var weekdayLabels = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func hours(minutes int) string {
	return strconv.FormatFloat(float64(minutes)/60, 'f', 2, 64)
}

// WriteRoster 写出排班表：每天一行，每名员工一列
func WriteRoster(w io.Writer, roster *model.Roster) error {
	cw := csv.NewWriter(w)

	row := append([]string{"date", "weekday"}, roster.Employees...)
	if err := cw.Write(row); err != nil {
		return err
	}

	for i, day := range roster.Days {
		row := []string{day.DateString(), weekdayLabels[day.Weekday]}
		for _, c := range roster.Cells[i] {
			row = append(row, c.Display)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SummaryHeader 汇总表表头
var SummaryHeader = []string{
	"employee", "actual_hours", "target_hours", "deviation_hours",
	"prev_overtime_hours", "new_overtime_hours",
	"day_shifts", "night_shifts", "weekend_shifts", "double_shifts",
	"free_days", "vacation_days",
}

// WriteSummary 写出工时汇总
func WriteSummary(w io.Writer, ledger *model.WorktimeLedger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, e := range ledger.Entries {
		row := []string{
			e.Employee,
			hours(e.ActualMinutes),
			hours(e.TargetMinutes),
			hours(e.DeviationMinutes),
			hours(e.PrevOvertimeMinutes),
			hours(e.NewOvertimeMinutes),
			strconv.Itoa(e.DayShifts),
			strconv.Itoa(e.NightShifts),
			strconv.Itoa(e.WeekendShifts),
			strconv.Itoa(e.DoubleShifts),
			strconv.Itoa(e.FreeDays),
			strconv.Itoa(e.VacationDays),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEmployees 写出员工表，overtime 以小时计
func WriteEmployees(w io.Writer, employees []*model.Employee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EmployeeHeader); err != nil {
		return err
	}
	for _, e := range employees {
		var flags []string
		if e.NoSingleDayShift {
			flags = append(flags, FlagNoSingleDayShift)
		}
		row := []string{
			e.Name,
			strconv.Itoa(e.HoursPerWeek),
			strconv.FormatFloat(float64(e.OvertimeMinutes)/60, 'f', -1, 64),
			FormatEligibility(e),
			strings.Join(e.NotRelievedBy, ";"),
			strings.Join(flags, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatEligibility 班次资格的文本形式，全部夜班变体合写为 n
func FormatEligibility(e *model.Employee) string {
	var parts []string
	allNights := true
	for _, k := range model.NightKinds {
		if !e.CanWork(k) {
			allNights = false
		}
	}
	if allNights {
		parts = append(parts, "n")
	} else {
		for _, k := range model.NightKinds {
			if e.CanWork(k) {
				parts = append(parts, string(k))
			}
		}
	}
	if e.CanWork(model.ShiftDay) {
		parts = append(parts, string(model.ShiftDay))
	}
	if e.AllowsDoubleShift {
		parts = append(parts, "n+d")
	}
	return strings.Join(parts, ",")
}

// WriteDayTableTemplate 写出空白的日期表模板
func WriteDayTableTemplate(w io.Writer, employees []*model.Employee, days int) error {
	cw := csv.NewWriter(w)
	row := []string{ColWorkers}
	for d := 1; d <= days; d++ {
		row = append(row, strconv.Itoa(d))
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	for _, e := range employees {
		if err := cw.Write([]string{e.Name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CarryOverOvertime 返回以新加班余额替换旧余额后的员工副本
func CarryOverOvertime(employees []*model.Employee, ledger *model.WorktimeLedger) []*model.Employee {
	out := make([]*model.Employee, 0, len(employees))
	for _, e := range employees {
		c := *e
		if entry, ok := ledger.Get(e.Name); ok {
			c.OvertimeMinutes = entry.NewOvertimeMinutes
		}
		out = append(out, &c)
	}
	return out
}

// TemplateEmployees 示例员工
func TemplateEmployees() []*model.Employee {
	paula, pDouble, _ := model.ParseEligibility("n,d,n+d")
	renate, rDouble, _ := model.ParseEligibility("n,d")
	return []*model.Employee{
		{Name: "Paula", HoursPerWeek: 40, OvertimeMinutes: 12 * 60, Eligible: paula, AllowsDoubleShift: pDouble},
		{Name: "Renate", HoursPerWeek: 35, OvertimeMinutes: -5 * 60, Eligible: renate, AllowsDoubleShift: rDouble, NotRelievedBy: []string{"Paula"}},
	}
}

// WriteFile 以 fn 写出文件
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 %s 失败: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return f.Close()
}

// Exists 文件是否存在
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
