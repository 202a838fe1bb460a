package domain

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/cpsat"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
)

// Input 变量构建输入
type Input struct {
	Calendar  *calendar.Context
	Employees []*model.Employee
	Vacation  *model.DayTable // nil 表示无休假数据
	Forced    []model.ForcedAssignment

	// PreviousNightWorker 上月最后一个夜班的员工姓名，空表示无
	PreviousNightWorker string
}

// ForcedVar 已解析的强制排班
type ForcedVar struct {
	Key Key
	Var cpsat.BoolVar
}

// Domain 变量构建结果
type Domain struct {
	Vars *VarMap

	// PrevNightWorker 上月最后一个夜班的员工下标，-1 表示无
	PrevNightWorker int
	Forced          []ForcedVar

	vacation [][]bool // [员工][日序号-1]
	index    map[string]int
}

// Builder 变量构建器
type Builder struct {
	log *zerolog.Logger
}

// NewBuilder 创建构建器
func NewBuilder(log *zerolog.Logger) *Builder {
	return &Builder{log: log}
}

// Build 为每个（员工, 日期）创建可能存在的班次变量
//
// 日班：具备日班资格、当天未休假、当天不是无日班日。
// 夜班：只创建当天星期类别对应的变体，要求具备该变体资格且当天与次日均未休假；
// 次日超出计划期时视为未休假。强制排班总会创建对应变量。
func (b *Builder) Build(m *cpsat.Model, in Input) (*Domain, error) {
	cal := in.Calendar
	n := cal.NumDays()

	d := &Domain{
		Vars:            NewVarMap(n),
		PrevNightWorker: -1,
		index:           make(map[string]int, len(in.Employees)),
	}
	for i, e := range in.Employees {
		d.index[e.Name] = i
	}

	if err := d.loadVacation(in.Vacation, in.Employees, n); err != nil {
		return nil, err
	}

	if in.PreviousNightWorker != "" {
		i, ok := d.index[in.PreviousNightWorker]
		if !ok {
			return nil, apperrors.Lookup("employees", in.PreviousNightWorker, 0).
				WithDetails("previous_night_worker 引用了未知员工")
		}
		d.PrevNightWorker = i
	}

	// 日期优先创建，变量序号即搜索的分支顺序
	for day := 1; day <= n; day++ {
		info := cal.Day(day)
		night := info.NightKind()
		for ei, e := range in.Employees {
			if d.vacation[ei][day-1] {
				continue
			}
			if e.CanWork(model.ShiftDay) && !info.NoDayShift {
				d.create(m, ei, e.Name, day, model.ShiftDay)
			}
			if e.CanWork(night) && !d.OnVacation(ei, day+1) {
				d.create(m, ei, e.Name, day, night)
			}
		}
	}

	for _, f := range in.Forced {
		fv, err := b.resolveForced(m, d, in, f)
		if err != nil {
			return nil, err
		}
		d.Forced = append(d.Forced, fv)
	}

	b.log.Debug().
		Int("variables", d.Vars.Len()).
		Int("forced", len(d.Forced)).
		Int("previous_night_worker", d.PrevNightWorker).
		Msg("决策变量已创建")
	return d, nil
}

func (d *Domain) loadVacation(table *model.DayTable, employees []*model.Employee, n int) error {
	d.vacation = make([][]bool, len(employees))
	for i, e := range employees {
		d.vacation[i] = make([]bool, n)
		if table == nil {
			continue
		}
		for day := 1; day <= n; day++ {
			v, err := table.Lookup(e.Name, day)
			if err != nil {
				return err
			}
			d.vacation[i][day-1] = v
		}
	}
	return nil
}

func (d *Domain) create(m *cpsat.Model, employee int, name string, day int, kind model.ShiftKind) cpsat.BoolVar {
	if v, ok := d.Vars.Lookup(employee, day, kind); ok {
		return v
	}
	v := m.NewBoolVar(fmt.Sprintf("%s_d%d_%s", name, day, kind))
	d.Vars.put(Key{Employee: employee, Day: day, Kind: kind}, v)
	return v
}

func (b *Builder) resolveForced(m *cpsat.Model, d *Domain, in Input, f model.ForcedAssignment) (ForcedVar, error) {
	ei, ok := d.index[f.Employee]
	if !ok {
		return ForcedVar{}, apperrors.Lookup("forced", f.Employee, f.Day)
	}
	if !in.Calendar.InRange(f.Day) {
		return ForcedVar{}, apperrors.InvalidInput("forced",
			fmt.Sprintf("员工 %s 的强制排班日 %d 超出计划期", f.Employee, f.Day))
	}

	info := in.Calendar.Day(f.Day)
	kind := f.Shift
	switch {
	case kind == model.ShiftDay:
	case kind.IsNight():
		// 夜班统一落到当天适用的变体
		kind = info.NightKind()
	default:
		return ForcedVar{}, apperrors.InvalidInput("forced",
			fmt.Sprintf("员工 %s 第 %d 天的班次 %q 无效", f.Employee, f.Day, f.Shift))
	}

	if d.vacation[ei][f.Day-1] {
		b.log.Warn().Str("employee", f.Employee).Int("day", f.Day).Msg("强制排班落在休假日")
	}
	if kind == model.ShiftDay && info.NoDayShift {
		b.log.Warn().Str("employee", f.Employee).Int("day", f.Day).Msg("强制日班落在无日班日")
	}
	if _, exists := d.Vars.Lookup(ei, f.Day, kind); !exists {
		b.log.Info().Str("employee", f.Employee).Int("day", f.Day).Str("shift", string(kind)).
			Msg("强制排班创建了常规规则不允许的变量")
	}

	v := d.create(m, ei, f.Employee, f.Day, kind)
	return ForcedVar{Key: Key{Employee: ei, Day: f.Day, Kind: kind}, Var: v}, nil
}

// OnVacation 员工某天是否休假，超出计划期返回 false
func (d *Domain) OnVacation(employee, day int) bool {
	if day < 1 || day > len(d.vacation[employee]) {
		return false
	}
	return d.vacation[employee][day-1]
}

// VacationDays 员工休假天数
func (d *Domain) VacationDays(employee int) int {
	n := 0
	for _, v := range d.vacation[employee] {
		if v {
			n++
		}
	}
	return n
}

// EmployeeIndex 按姓名查找员工下标
func (d *Domain) EmployeeIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// IsPrevNightWorker 员工是否上过上月最后一个夜班
func (d *Domain) IsPrevNightWorker(employee int) bool {
	return d.PrevNightWorker >= 0 && d.PrevNightWorker == employee
}
