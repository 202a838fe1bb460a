// Package scheduler 编排月度排班流水线：日历 → 决策变量 → 规则 → 目标 → 求解 → 解码
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/cpsat"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/logger"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler/constraint"
	"github.com/paiban/roster/pkg/scheduler/constraint/builtin"
	"github.com/paiban/roster/pkg/scheduler/decoder"
	"github.com/paiban/roster/pkg/scheduler/domain"
	"github.com/paiban/roster/pkg/scheduler/objective"
	"github.com/paiban/roster/pkg/stats"
	"github.com/paiban/roster/pkg/validator"
)

// Settings 排班参数
type Settings struct {
	Rules     constraint.EnabledSet
	Objective objective.Settings
	Clock     model.Clock

	// MaxConsecutiveShifts 连续工作天数上限，0 表示不限
	MaxConsecutiveShifts int

	TimeLimit time.Duration
	Workers   int
	Seed      int64
}

// DefaultSettings 默认参数：全部规则启用
func DefaultSettings() Settings {
	p := cpsat.DefaultParams()
	return Settings{
		Rules:                constraint.AllEnabled(),
		Objective:            objective.DefaultSettings(),
		Clock:                model.DefaultClock(),
		MaxConsecutiveShifts: 6,
		TimeLimit:            p.TimeLimit,
		Workers:              p.Workers,
		Seed:                 p.Seed,
	}
}

// Input 单次运行的输入，运行期间只读
type Input struct {
	Calendar            *calendar.Context
	Employees           []*model.Employee
	Vacation            *model.DayTable // nil 表示无休假
	Preferences         *model.DayTable // nil 表示无期望休息日
	Forced              []model.ForcedAssignment
	PreviousNightWorker string
}

// RunStats 运行统计
type RunStats struct {
	Status               cpsat.Status  `json:"status"`
	Objective            int64         `json:"objective"`
	BestBound            int64         `json:"best_bound"`
	PreferenceViolations int64         `json:"preference_violations"`
	Passes               int           `json:"passes"`
	Variables            int           `json:"variables"`
	Constraints          int           `json:"constraints"`
	Branches             int64         `json:"branches"`
	Conflicts            int64         `json:"conflicts"`
	Solutions            int64         `json:"solutions"`
	WallTime             time.Duration `json:"wall_time"`
}

// Result 排班结果
type Result struct {
	RunID    string                 `json:"run_id"`
	Status   cpsat.Status           `json:"status"`
	Optimal  bool                   `json:"optimal"`
	Roster   *model.Roster          `json:"roster"`
	Ledger   *model.WorktimeLedger  `json:"ledger"`
	CarryOut string                 `json:"carry_out,omitempty"`
	Stats    RunStats               `json:"stats"`
	Fairness *stats.FairnessMetrics `json:"fairness"`

	Encoding  *constraint.Report   `json:"encoding"`
	Warnings  []string             `json:"warnings,omitempty"`
	Conflicts []validator.Conflict `json:"conflicts,omitempty"`
}

// Scheduler 排班引擎
type Scheduler struct {
	settings Settings
	manager  *constraint.Manager
	logger   *logger.SchedulerLogger
}

// New 创建排班引擎并注册内置规则
func New(settings Settings) *Scheduler {
	if settings.Rules == nil {
		settings.Rules = constraint.AllEnabled()
	}
	manager := constraint.NewManager()
	builtin.RegisterDefaultRules(manager)
	return &Scheduler{
		settings: settings,
		manager:  manager,
		logger:   logger.NewSchedulerLogger(),
	}
}

// Manager 规则管理器，可注册自定义规则
func (s *Scheduler) Manager() *constraint.Manager {
	return s.manager
}

// Settings 当前参数
func (s *Scheduler) Settings() Settings {
	return s.settings
}

// Generate 生成排班
//
// 求解器证明无解时返回 MODEL_INFEASIBLE；时限内没有任何可行解时同样返回
// MODEL_INFEASIBLE，其 Cause 为 MODEL_UNKNOWN。时限内找到但未证明最优的解
// 正常返回，Optimal 为 false。
func (s *Scheduler) Generate(ctx context.Context, in Input) (*Result, error) {
	if in.Calendar == nil {
		return nil, apperrors.ConfigurationMissing("calendar")
	}
	if len(in.Employees) == 0 {
		return nil, apperrors.InvalidInput("employees", "员工列表为空")
	}
	if err := model.ValidateEmployees(in.Employees); err != nil {
		return nil, apperrors.InvalidInput("employees", err.Error())
	}

	runID := uuid.New().String()
	log := s.logger.Logger().With().Str("run_id", runID).Logger()
	s.logger.StartSchedule(runID, len(in.Employees), in.Calendar.NumDays())

	m := cpsat.NewModel(fmt.Sprintf("roster-%04d-%02d", in.Calendar.Year, in.Calendar.Month))

	dom, err := domain.NewBuilder(&log).Build(m, domain.Input{
		Calendar:            in.Calendar,
		Employees:           in.Employees,
		Vacation:            in.Vacation,
		Forced:              in.Forced,
		PreviousNightWorker: in.PreviousNightWorker,
	})
	if err != nil {
		return nil, err
	}

	cctx := constraint.NewContext(m, in.Calendar, in.Employees, dom)
	cctx.Preferences = in.Preferences
	cctx.MaxConsecutiveShifts = s.settings.MaxConsecutiveShifts

	report, err := s.manager.Encode(cctx, s.settings.Rules)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "规则编码失败")
	}

	obj, err := objective.NewBuilder(s.settings.Objective, &log).Build(cctx)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: runID, Encoding: report}
	result.Warnings = append(result.Warnings, report.Diagnostics...)
	if obj.Staffing != nil {
		s.logger.StaffingWarning(obj.Capacity, obj.Required)
		result.Warnings = append(result.Warnings, obj.Staffing.Message)
	}

	resp, passes, err := s.solve(ctx, m, obj, &log)
	if err != nil {
		return nil, err
	}
	if err := s.checkStatus(resp, report); err != nil {
		s.logger.SolveComplete(runID, string(resp.Status), resp.Stats.WallTime, 0)
		return nil, err
	}

	out := decoder.New(s.settings.Objective, s.settings.Clock).
		Decode(decoder.Input{Calendar: in.Calendar, Employees: in.Employees, Domain: dom}, resp)

	result.Status = resp.Status
	result.Optimal = resp.Status == cpsat.StatusOptimal
	result.Roster = out.Roster
	result.Ledger = out.Ledger
	result.CarryOut = out.CarryOut
	result.Fairness = stats.NewFairnessAnalyzer().Analyze(out.Ledger)
	result.Stats = RunStats{
		Status:      resp.Status,
		BestBound:   resp.BestBound,
		Passes:      passes.count,
		Variables:   m.NumVars(),
		Constraints: m.NumConstraints(),
		Branches:    passes.branches,
		Conflicts:   passes.conflicts,
		Solutions:   passes.solutions,
		WallTime:    passes.wall,
	}
	if obj.Primary != nil {
		result.Stats.Objective = resp.ExprValue(obj.Primary)
	}
	if obj.Secondary != nil {
		result.Stats.PreferenceViolations = resp.ExprValue(obj.Secondary)
	}

	result.Conflicts = s.verify(in, out.Roster)
	for _, c := range result.Conflicts {
		s.logger.ConstraintViolation(string(c.Type), c.Message)
	}

	s.logger.SolveComplete(runID, string(resp.Status), passes.wall, result.Stats.Objective)
	return result, nil
}

// passStats 多轮求解的累计统计
type passStats struct {
	count     int
	branches  int64
	conflicts int64
	solutions int64
	wall      time.Duration
}

func (p *passStats) add(r *cpsat.Response) {
	p.count++
	p.branches += r.Stats.Branches
	p.conflicts += r.Stats.Conflicts
	p.solutions += r.Stats.Solutions
	p.wall += r.Stats.WallTime
}

func (s *Scheduler) params() cpsat.Params {
	return cpsat.Params{
		TimeLimit: s.settings.TimeLimit,
		Workers:   s.settings.Workers,
		Seed:      s.settings.Seed,
	}
}

// solve 先优化主目标（最大偏差）；若还有次目标（期望休息日违例数），
// 把主目标固定在第一轮的取值上，以第一轮的解为提示再优化次目标。
// 两轮共用同一个截止时间，第二轮只能使用第一轮剩下的时间
func (s *Scheduler) solve(ctx context.Context, m *cpsat.Model, obj *objective.Result, log *zerolog.Logger) (*cpsat.Response, passStats, error) {
	var passes passStats
	params := s.params()
	if params.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.TimeLimit)
		defer cancel()
		params.TimeLimit = 0
	}
	solver := cpsat.NewSolver(params)

	first := obj.Primary
	if first == nil {
		first = obj.Secondary
	}
	if first != nil {
		m.Minimize(first)
	}

	resp, err := solver.Solve(ctx, m)
	if err != nil {
		if resp != nil && resp.Status == cpsat.StatusModelInvalid {
			return nil, passes, apperrors.Wrap(err, apperrors.CodeInternal, "约束模型不合法")
		}
		return nil, passes, apperrors.Wrap(err, apperrors.CodeInternal, "求解失败")
	}
	passes.add(resp)
	log.Debug().
		Str("status", string(resp.Status)).
		Int64("objective", resp.Objective).
		Dur("wall_time", resp.Stats.WallTime).
		Msg("第一轮求解结束")

	if obj.Primary == nil || obj.Secondary == nil || !resp.HasSolution() {
		return resp, passes, nil
	}
	if ctx.Err() != nil {
		log.Warn().Msg("时限已用尽，跳过期望休息日优化")
		return resp, passes, nil
	}

	m.AddLessOrEqual(obj.Primary.Clone(), resp.ExprValue(obj.Primary)).WithName("fix_max_deviation")
	m.HintFromResponse(resp)
	m.Minimize(obj.Secondary)

	second, err := solver.Solve(ctx, m)
	if err != nil || !second.HasSolution() {
		// 第二轮没有结果时保留第一轮的解
		ev := log.Warn()
		if err != nil {
			ev = ev.Err(err)
		} else {
			ev = ev.Str("status", string(second.Status))
		}
		ev.Msg("期望休息日优化未得到解，沿用第一轮结果")
		return resp, passes, nil
	}
	passes.add(second)

	// 第一轮未证明最优时，整体不能宣称最优
	if resp.Status != cpsat.StatusOptimal && second.Status == cpsat.StatusOptimal {
		second.Status = cpsat.StatusFeasible
	}
	log.Debug().
		Str("status", string(second.Status)).
		Int64("violations", second.Objective).
		Msg("第二轮求解结束")
	return second, passes, nil
}

// checkStatus 把无解状态转换为错误
func (s *Scheduler) checkStatus(resp *cpsat.Response, report *constraint.Report) error {
	switch resp.Status {
	case cpsat.StatusOptimal, cpsat.StatusFeasible:
		if !resp.HasSolution() {
			return apperrors.New(apperrors.CodeInternal, "求解器报告有解但未返回取值")
		}
		return nil
	case cpsat.StatusInfeasible:
		err := apperrors.ModelInfeasible("排班规则相互矛盾，不存在满足全部硬约束的排班")
		if len(report.Diagnostics) > 0 {
			err = err.WithDetails(strings.Join(report.Diagnostics, "; "))
		}
		return err
	case cpsat.StatusUnknown:
		return apperrors.ModelInfeasible("时限内未找到可行排班").
			WithCause(apperrors.ModelUnknown(fmt.Sprintf("求解在 %s 内既未找到解也未证明无解", s.settings.TimeLimit)))
	default:
		return apperrors.New(apperrors.CodeInternal, fmt.Sprintf("未知求解状态 %s", resp.Status))
	}
}

// verify 用独立的检测器复核解码结果，只检查已启用的规则
func (s *Scheduler) verify(in Input, roster *model.Roster) []validator.Conflict {
	checks := make(map[validator.ConflictType]bool, len(constraint.AllTypes))
	for _, t := range constraint.AllTypes {
		if s.settings.Rules.Enabled(t) {
			checks[validator.ConflictType(t)] = true
		}
	}
	maxConsecutive := 0
	if s.settings.Rules.Enabled(constraint.TypeMaxConsecutive) {
		maxConsecutive = s.settings.MaxConsecutiveShifts
	}
	detector := validator.NewConflictDetector(&validator.DetectorConfig{
		Checks:             checks,
		MaxConsecutiveDays: maxConsecutive,
		PrevNightWorker:    in.PreviousNightWorker,
		Forced:             in.Forced,
	})
	return detector.DetectAll(in.Calendar, in.Employees, roster)
}
