// Package render 在终端中展示排班表、工时汇总与运行统计
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/paiban/roster/internal/constraints"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler"
	"github.com/paiban/roster/pkg/validator"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	weekendStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

var weekdayLabels = [...]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"}

// Roster 排班表：每天一行，每名员工一列，周末与节假日高亮
func Roster(r *model.Roster) string {
	headers := append([]string{"Tag", "Datum"}, r.Employees...)

	rows := make([][]string, 0, len(r.Days))
	for i, day := range r.Days {
		row := []string{weekdayLabels[day.Weekday], day.DateString()}
		for _, c := range r.Cells[i] {
			row = append(row, c.Display)
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row != table.HeaderRow && row >= 0 && row < len(r.Days) && col < 2 {
				d := r.Days[row]
				if d.Weekend || d.Holiday {
					return weekendStyle.Padding(0, 1)
				}
			}
			return cellStyle
		})

	return t.String()
}

// Summary 工时汇总（单位：小时）
func Summary(ledger *model.WorktimeLedger) string {
	headers := []string{"Mitarbeiter", "Ist", "Soll", "Abw.", "ÜSt alt", "ÜSt neu", "T", "N", "WE", "T+N", "Frei", "Urlaub"}

	rows := make([][]string, 0, len(ledger.Entries))
	for _, e := range ledger.Entries {
		rows = append(rows, []string{
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
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(_, _ int) lipgloss.Style { return cellStyle }).
		String()
}

// Stats 运行统计面板
func Stats(res *scheduler.Result) string {
	status := string(res.Status)
	switch {
	case res.Optimal:
		status = okStyle.Render(status)
	case res.Status.HasSolution():
		status = warnStyle.Render(status)
	default:
		status = errorStyle.Render(status)
	}

	lines := []string{
		titleStyle.Render("求解结果"),
		field("运行", res.RunID),
		field("状态", status),
		field("目标值", strconv.FormatInt(res.Stats.Objective, 10)),
		field("期望违背", strconv.FormatInt(res.Stats.PreferenceViolations, 10)),
		field("变量/约束", fmt.Sprintf("%d / %d", res.Stats.Variables, res.Stats.Constraints)),
		field("分支/冲突", fmt.Sprintf("%d / %d", res.Stats.Branches, res.Stats.Conflicts)),
		field("耗时", res.Stats.WallTime.String()),
	}
	if res.CarryOut != "" {
		lines = append(lines, field("月末夜班", res.CarryOut))
	}
	if res.Fairness != nil {
		lines = append(lines, field("公平评分", strconv.FormatFloat(res.Fairness.OverallFairnessScore, 'f', 1, 64)))
	}

	out := []string{panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))}
	if len(res.Warnings) > 0 {
		out = append(out, warnings(res.Warnings))
	}
	if len(res.Conflicts) > 0 {
		out = append(out, Conflicts(res.Conflicts))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

// Rules 规则目录
func Rules(defs []constraints.ConstraintDefinition) string {
	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		enabled := "-"
		if d.Registered {
			enabled = "✓"
		}
		var params []string
		for _, p := range d.Params {
			params = append(params, fmt.Sprintf("%s=%s", p.Name, p.Default))
		}
		rows = append(rows, []string{d.Name, d.DisplayName, d.Type, enabled, strings.Join(params, " ")})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("规则", "名称", "类型", "注册", "参数").
		Rows(rows...).
		StyleFunc(func(_, _ int) lipgloss.Style { return cellStyle }).
		String()
}

// Conflicts 复核冲突列表
func Conflicts(conflicts []validator.Conflict) string {
	lines := make([]string, 0, len(conflicts)+1)
	lines = append(lines, titleStyle.Render("规则冲突"))
	for _, c := range conflicts {
		style := warnStyle
		if c.Severity == "error" {
			style = errorStyle
		}
		where := c.Employee
		if c.Date != "" {
			where = strings.TrimSpace(where + " " + c.Date)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", style.Render(string(c.Type)), labelStyle.Render(where), c.Message))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func warnings(ws []string) string {
	lines := []string{titleStyle.Render("警告")}
	for _, w := range ws {
		lines = append(lines, warnStyle.Render("! ")+w)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-8s", label)) + " " + value
}

func hours(minutes int) string {
	return strconv.FormatFloat(float64(minutes)/60, 'f', 1, 64)
}
