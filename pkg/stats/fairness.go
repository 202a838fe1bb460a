// Package stats 提供排班统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/paiban/roster/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 工时公平性
	WorkloadGini        float64 `json:"workload_gini"`          // 实际工时基尼系数 (0=完全公平, 1=完全不公平)
	WorkloadStdDev      float64 `json:"workload_std_dev"`       // 实际工时标准差（小时）
	AvgHoursPerEmployee float64 `json:"avg_hours_per_employee"` // 人均工时
	MaxHours            float64 `json:"max_hours"`
	MinHours            float64 `json:"min_hours"`
	HoursRange          float64 `json:"hours_range"`

	// 目标偏差
	MaxAbsDeviationMinutes int     `json:"max_abs_deviation_minutes"`
	DeviationStdDev        float64 `json:"deviation_std_dev"` // 偏差标准差（分钟）

	// 班次类型公平性
	ShiftTypeDistribution map[string]float64 `json:"shift_type_distribution"` // day/night 占比（百分比）
	NightShiftGini        float64            `json:"night_shift_gini"`
	WeekendShiftGini      float64            `json:"weekend_shift_gini"`

	EmployeeStats []EmployeeStat `json:"employee_stats"`

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 0-100
}

// EmployeeStat 员工统计
type EmployeeStat struct {
	EmployeeName     string  `json:"employee_name"`
	TotalHours       float64 `json:"total_hours"`
	ShiftCount       int     `json:"shift_count"`
	NightShifts      int     `json:"night_shifts"`
	WeekendShifts    int     `json:"weekend_shifts"`
	DeviationMinutes int     `json:"deviation_minutes"` // 与目标的偏差
	OvertimeHours    float64 `json:"overtime_hours"`    // 新加班余额
	Deviation        float64 `json:"deviation"`         // 与平均值的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析工时台账
// 只含休假抵扣、没有任何班次的员工不参与工时分布统计
func (f *FairnessAnalyzer) Analyze(ledger *model.WorktimeLedger) *FairnessMetrics {
	if ledger == nil || len(ledger.Entries) == 0 {
		return &FairnessMetrics{
			ShiftTypeDistribution: make(map[string]float64),
			OverallFairnessScore:  100,
		}
	}

	stats := make([]EmployeeStat, 0, len(ledger.Entries))
	var hours, nights, weekends, deviations []float64
	dayTotal, nightTotal := 0, 0
	for _, e := range ledger.Entries {
		s := EmployeeStat{
			EmployeeName:     e.Employee,
			TotalHours:       e.RealizedHours(),
			ShiftCount:       e.DayShifts + e.NightShifts,
			NightShifts:      e.NightShifts,
			WeekendShifts:    e.WeekendShifts,
			DeviationMinutes: e.DeviationMinutes,
			OvertimeHours:    e.NewOvertimeHours(),
		}
		stats = append(stats, s)
		deviations = append(deviations, float64(e.DeviationMinutes))
		dayTotal += e.DayShifts
		nightTotal += e.NightShifts

		if s.ShiftCount == 0 {
			continue
		}
		hours = append(hours, s.TotalHours)
		nights = append(nights, float64(s.NightShifts))
		weekends = append(weekends, float64(s.WeekendShifts))
	}

	avgHours := f.calculateMean(hours)
	stdDev := math.Sqrt(f.calculateVariance(hours, avgHours))
	maxHours, minHours := f.calculateRange(hours)

	for i := range stats {
		if avgHours > 0 && stats[i].ShiftCount > 0 {
			stats[i].Deviation = (stats[i].TotalHours - avgHours) / avgHours * 100
		}
	}

	workloadGini := f.calculateGini(hours)
	nightGini := f.calculateGini(nights)
	weekendGini := f.calculateGini(weekends)

	dist := make(map[string]float64)
	if total := dayTotal + nightTotal; total > 0 {
		dist["day"] = float64(dayTotal) / float64(total) * 100
		dist["night"] = float64(nightTotal) / float64(total) * 100
	}

	return &FairnessMetrics{
		WorkloadGini:           workloadGini,
		WorkloadStdDev:         stdDev,
		AvgHoursPerEmployee:    avgHours,
		MaxHours:               maxHours,
		MinHours:               minHours,
		HoursRange:             maxHours - minHours,
		MaxAbsDeviationMinutes: ledger.MaxAbsDeviation(),
		DeviationStdDev:        math.Sqrt(f.calculateVariance(deviations, f.calculateMean(deviations))),
		ShiftTypeDistribution:  dist,
		NightShiftGini:         nightGini,
		WeekendShiftGini:       weekendGini,
		EmployeeStats:          stats,
		OverallFairnessScore:   f.calculateOverallScore(workloadGini, nightGini, weekendGini, stdDev, avgHours),
	}
}

// calculateMean 计算平均值
func (f *FairnessAnalyzer) calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func (f *FairnessAnalyzer) calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func (f *FairnessAnalyzer) calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func (f *FairnessAnalyzer) calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 计算综合公平性评分
func (f *FairnessAnalyzer) calculateOverallScore(workloadGini, nightGini, weekendGini, stdDev, avgHours float64) float64 {
	const (
		workloadWeight = 0.4
		nightWeight    = 0.25
		weekendWeight  = 0.25
		stdDevWeight   = 0.1
	)

	// 基尼系数转换为分数 (0=100分, 1=0分)
	workloadScore := (1 - workloadGini) * 100
	nightScore := (1 - nightGini) * 100
	weekendScore := (1 - weekendGini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avgHours > 0 {
		cv := stdDev / avgHours
		cvScore = math.Max(0, 100-cv*200)
	}

	score := workloadWeight*workloadScore +
		nightWeight*nightScore +
		weekendWeight*weekendScore +
		stdDevWeight*cvScore

	return math.Max(0, math.Min(100, score))
}
