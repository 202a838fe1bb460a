// Package store 读写 CSV 格式的员工表、休假表、期望休息表与排班结果
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
)

// 员工表列名
const (
	ColName      = "name"
	ColHours     = "hours_per_week"
	ColOvertime  = "overtime" // 小时
	ColShifts    = "available_for_shift"
	ColNotRelief = "not relief"
	ColFlags     = "flags"

	// ColWorkers 休假表与期望休息表的首列
	ColWorkers = "workers"
)

// FlagNoSingleDayShift flags 列中的标记
const FlagNoSingleDayShift = "no_single_dayshift"

// EmployeeHeader 员工表表头
var EmployeeHeader = []string{ColName, ColHours, ColOvertime, ColShifts, ColNotRelief, ColFlags}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func missingColumn(table, column string) *apperrors.AppError {
	return apperrors.New(apperrors.CodeLookupError, fmt.Sprintf("%s 缺少列 '%s'", table, column)).
		WithField("table", table).
		WithField("column", column)
}

// header 列名 → 下标
type header map[string]int

func readHeader(cr *csv.Reader, table string) (header, error) {
	row, err := cr.Read()
	if err == io.EOF {
		return nil, apperrors.InvalidInput(table, "文件为空")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, fmt.Sprintf("%s 表头无法解析", table))
	}
	h := make(header, len(row))
	for i, col := range row {
		h[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return h, nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadEmployees 读取员工表
// 必需列：name、hours_per_week、available_for_shift；overtime 以小时计
func ReadEmployees(r io.Reader) ([]*model.Employee, error) {
	const table = "workers"
	cr := newReader(r)
	h, err := readHeader(cr, table)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{ColName, ColHours, ColShifts} {
		if _, ok := h[col]; !ok {
			return nil, missingColumn(table, col)
		}
	}

	var employees []*model.Employee
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, fmt.Sprintf("%s 第 %d 行无法解析", table, line))
		}
		name := h.get(row, ColName)
		if name == "" {
			continue
		}

		e, err := parseEmployee(h, row, name)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}

	if err := model.ValidateEmployees(employees); err != nil {
		return nil, apperrors.InvalidInput(table, err.Error())
	}
	return employees, nil
}

func parseEmployee(h header, row []string, name string) (*model.Employee, error) {
	hours, err := strconv.Atoi(h.get(row, ColHours))
	if err != nil {
		return nil, apperrors.InvalidInput(ColHours, fmt.Sprintf("员工 %s 的周工时 %q 不是整数", name, h.get(row, ColHours)))
	}

	overtime := 0
	if raw := h.get(row, ColOvertime); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperrors.InvalidInput(ColOvertime, fmt.Sprintf("员工 %s 的加班余额 %q 无法解析", name, raw))
		}
		overtime = int(math.Round(v * 60))
	}

	eligible, double, err := model.ParseEligibility(h.get(row, ColShifts))
	if err != nil {
		return nil, apperrors.InvalidInput(ColShifts, fmt.Sprintf("员工 %s: %v", name, err))
	}

	e := &model.Employee{
		Name:              name,
		HoursPerWeek:      hours,
		OvertimeMinutes:   overtime,
		Eligible:          eligible,
		AllowsDoubleShift: double,
		NotRelievedBy:     splitList(h.get(row, ColNotRelief)),
	}
	for _, flag := range splitList(h.get(row, ColFlags)) {
		switch strings.ToLower(flag) {
		case FlagNoSingleDayShift:
			e.NoSingleDayShift = true
		default:
			return nil, apperrors.InvalidInput(ColFlags, fmt.Sprintf("员工 %s 的标记 %q 未知", name, flag))
		}
	}
	return e, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReadDayTable 读取 员工 × 日期 表（休假表、期望休息表）
// 表头为 workers,1,2,...；x、1、true、yes 表示置位，空白表示未置位，缺少的尾部单元格视为空白
func ReadDayTable(r io.Reader, name string, days int) (*model.DayTable, error) {
	cr := newReader(r)
	h, err := readHeader(cr, name)
	if err != nil {
		return nil, err
	}
	if _, ok := h[ColWorkers]; !ok {
		return nil, missingColumn(name, ColWorkers)
	}
	for d := 1; d <= days; d++ {
		if _, ok := h[strconv.Itoa(d)]; !ok {
			return nil, missingColumn(name, strconv.Itoa(d))
		}
	}

	table := model.NewDayTable(name, days)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, fmt.Sprintf("%s 第 %d 行无法解析", name, line))
		}
		employee := h.get(row, ColWorkers)
		if employee == "" {
			continue
		}
		values := make([]bool, days)
		for d := 1; d <= days; d++ {
			v, err := parseMark(h.get(row, strconv.Itoa(d)))
			if err != nil {
				return nil, apperrors.InvalidInput(name, fmt.Sprintf("员工 %s 第 %d 天: %v", employee, d, err))
			}
			values[d-1] = v
		}
		if err := table.SetRow(employee, values); err != nil {
			return nil, apperrors.InvalidInput(name, err.Error())
		}
	}
	return table, nil
}

func parseMark(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no", "-":
		return false, nil
	case "x", "1", "true", "yes", "v":
		return true, nil
	}
	return false, fmt.Errorf("无法识别的标记 %q", s)
}

// LoadEmployees 从文件读取员工表，文件不存在时返回 CONFIGURATION_MISSING
func LoadEmployees(path string) ([]*model.Employee, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEmployees(f)
}

// LoadDayTable 从文件读取日期表，path 为空时返回 nil 表示无数据
func LoadDayTable(path, name string, days int) (*model.DayTable, error) {
	if path == "" {
		return nil, nil
	}
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDayTable(f, name, days)
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ConfigurationMissing(path).WithDetails("可运行 roster init 生成模板")
	}
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	return f, nil
}
