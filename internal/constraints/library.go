// Package constraints 规则目录：可在配置中开关的规则及其参数说明
package constraints

import (
	"github.com/paiban/roster/pkg/scheduler/constraint"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"` // 即配置中 rules 下的开关名
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"` // hard 硬约束, soft 软约束
	Description string            `json:"description"`
	Registered  bool              `json:"registered"`
	Params      []ConstraintParam `json:"params,omitempty"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

var descriptions = map[string]ConstraintDefinition{
	string(constraint.TypeCoverage): {
		DisplayName: "每班恰好一人",
		Description: "每天的日班和当天适用的夜班各由恰好一名员工承担；标记为无日班的日期日班为零人。",
	},
	string(constraint.TypeOneShiftPerDay): {
		DisplayName: "每日一班",
		Description: "每名员工每天最多开始一个班次。",
	},
	string(constraint.TypeReliefOrdering): {
		DisplayName: "交接禁止名单",
		Description: "员工上日班时，其不接替名单中的同事不得接当晚夜班；员工上夜班时，这些同事不得接次日日班。首日参考上月最后夜班员工。",
	},
	string(constraint.TypeNoSingleDayShift): {
		DisplayName: "禁止单独日班",
		Description: "带 no_single_dayshift 标记的员工只能在前一天上过夜班后接日班。",
	},
	string(constraint.TypeRestBetweenNights): {
		DisplayName: "夜班后休息",
		Description: "上过夜班的员工次日不得再上夜班；不允许连班的员工次日也不得上日班。",
	},
	string(constraint.TypeDoubleShiftRest): {
		DisplayName: "连班后休息",
		Description: "夜班接日班（连班）之后的一天必须休息。",
	},
	string(constraint.TypeFreeWeekend): {
		DisplayName: "完整周末",
		Description: "计划期内含完整周五至周日时，每名员工至少有一个周末的周五夜班、周六与周日全部班次均空闲。",
	},
	string(constraint.TypeFreeDayQuota): {
		DisplayName: "应休天数",
		Description: "每名员工的空闲天数不少于计划期内周末与法定假日的总数；团队会议日不算空闲。",
	},
	string(constraint.TypeMaxConsecutive): {
		DisplayName: "最大连续工作天数",
		Description: "任意连续 max_consecutive_shifts+1 天中至少有一个空闲日。",
		Params: []ConstraintParam{
			{Name: "max_consecutive_shifts", Type: "int", Description: "连续工作天数上限，0 表示不限", Default: "6", Min: "0", Max: "31"},
		},
	},
	string(constraint.TypeForcedOverrides): {
		DisplayName: "强制排班",
		Description: "forced 中列出的员工、日期、班次必须被采用，覆盖其余偏好。",
	},
}

// objectiveSwitches 目标函数开关
var objectiveSwitches = []ConstraintDefinition{
	{
		Name:        "balance_overtime",
		DisplayName: "工时均衡",
		Type:        "soft",
		Description: "最小化员工实际工时与调整后目标工时之间的最大偏差。",
		Registered:  true,
		Params: []ConstraintParam{
			{Name: "working_days_per_week", Type: "int", Description: "每周工作日数", Default: "5", Min: "1", Max: "7"},
			{Name: "overtime_modifier", Type: "float", Description: "加班余额折入目标的比例", Default: "1.0", Min: "0"},
			{Name: "vacation_credit", Type: "string", Description: "休假日计入工时的方式：none 或 daily_target", Default: "daily_target"},
			{Name: "team_meeting_credit", Type: "int", Description: "团队会议计入的分钟数", Default: "60", Min: "0"},
		},
	},
	{
		Name:        "respect_preferences",
		DisplayName: "期望休息日",
		Type:        "soft",
		Description: "最小化在期望休息日被排班的次数，在工时均衡之后作为第二目标。",
		Registered:  true,
	},
	{
		Name:        "force_preferences",
		DisplayName: "强制期望休息日",
		Type:        "hard",
		Description: "期望休息日当天不得排任何班次。",
		Registered:  true,
	},
}

// GetLibrary 按编码顺序列出规则，registered 标明管理器中是否已注册
func GetLibrary(m *constraint.Manager) []ConstraintDefinition {
	registered := make(map[constraint.Type]constraint.Rule)
	var order []constraint.Type
	if m != nil {
		for _, r := range m.GetAll() {
			registered[r.Type()] = r
			order = append(order, r.Type())
		}
	}
	for _, t := range constraint.AllTypes {
		if _, ok := registered[t]; !ok {
			order = append(order, t)
		}
	}

	library := make([]ConstraintDefinition, 0, len(order)+len(objectiveSwitches))
	for _, t := range order {
		def := descriptions[string(t)]
		def.Name = string(t)
		def.Type = string(constraint.CategoryHard)
		if r, ok := registered[t]; ok {
			def.Registered = true
			def.Type = string(r.Category())
			if def.DisplayName == "" {
				def.DisplayName = r.Name()
			}
		}
		library = append(library, def)
	}
	return append(library, objectiveSwitches...)
}
