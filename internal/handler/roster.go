// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/internal/constraints"
	"github.com/paiban/roster/internal/metrics"
	"github.com/paiban/roster/internal/middleware"
	"github.com/paiban/roster/internal/repository"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/logger"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler"
)

// RunStore 排班记录存储
type RunStore interface {
	Commit(ctx context.Context, result *scheduler.Result) (*repository.RunRecord, error)
}

// RosterHandler 排班处理器
type RosterHandler struct {
	metrics *metrics.Registry
	runs    RunStore
	timeout time.Duration
	maxBody int64
}

// NewRosterHandler 创建排班处理器，runs 为 nil 时不支持持久化
func NewRosterHandler(api config.APIConfig, reg *metrics.Registry, runs RunStore) *RosterHandler {
	return &RosterHandler{
		metrics: reg,
		runs:    runs,
		timeout: api.Timeout,
		maxBody: api.MaxBody,
	}
}

// Routes 注册路由
func (h *RosterHandler) Routes(r chi.Router) {
	r.Post("/roster/generate", h.Generate)
	r.Post("/roster/evaluate", h.Evaluate)
	r.Get("/rules", h.Rules)
}

// EmployeeInput 员工输入
type EmployeeInput struct {
	Name             string   `yaml:"name"`
	HoursPerWeek     int      `yaml:"hours_per_week"`
	OvertimeMinutes  int      `yaml:"overtime_minutes"`
	Eligibility      string   `yaml:"eligibility"` // 如 "n,d,n+d"
	NotRelievedBy    []string `yaml:"not_relieved_by"`
	NoSingleDayShift bool     `yaml:"no_single_dayshift"`
}

// GenerateRequest 排班请求
//
// 请求体按 YAML 解析（JSON 是其子集），roster 字段与 roster.yaml 一致，
// 未给出的字段取默认值。vacation 与 preferences 为 员工 → 日序号列表。
type GenerateRequest struct {
	Roster      config.RosterConfig      `yaml:"roster"`
	Employees   []EmployeeInput          `yaml:"employees"`
	Vacation    map[string][]int         `yaml:"vacation"`
	Preferences map[string][]int         `yaml:"preferences"`
	Persist     bool                     `yaml:"persist"` // 保存记录并写回加班余额
	Shifts      []model.ForcedAssignment `yaml:"shifts"`  // 仅 evaluate 使用
}

// GenerateResponse 排班响应
type GenerateResponse struct {
	Success bool              `json:"success"`
	SavedID string            `json:"saved_id,omitempty"`
	Result  *scheduler.Result `json:"result"`
}

// EvaluateResponse 核算响应
type EvaluateResponse struct {
	Success    bool                  `json:"success"`
	Evaluation *scheduler.Evaluation `json:"evaluation"`
}

// Generate 生成排班
func (h *RosterHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(w, r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	in, settings, err := req.build()
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if h.timeout > 0 && (settings.TimeLimit <= 0 || settings.TimeLimit > h.timeout) {
		settings.TimeLimit = h.timeout
	}

	ctx, cancel := context.WithTimeout(r.Context(), settings.TimeLimit+30*time.Second)
	defer cancel()

	done := h.trackRun()
	start := time.Now()
	result, err := scheduler.New(settings).Generate(ctx, in)
	done()
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordFailure(string(apperrors.GetCode(err)), time.Since(start))
		}
		middleware.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordRun(result)
	}

	resp := GenerateResponse{Success: true, Result: result}
	if req.Persist {
		if h.runs == nil {
			middleware.WriteError(w, apperrors.ConfigurationMissing("database"))
			return
		}
		rec, err := h.runs.Commit(ctx, result)
		if err != nil {
			logger.WithContext(r.Context()).Error().Err(err).Str("run_id", result.RunID).Msg("保存排班记录失败")
			middleware.WriteError(w, err)
			return
		}
		resp.SavedID = rec.ID.String()
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Evaluate 核算给定排班
func (h *RosterHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(w, r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	in, settings, err := req.build()
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	shifts, err := normalizeShifts(req.Shifts)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	eval, err := scheduler.New(settings).Evaluate(in, shifts)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, EvaluateResponse{Success: true, Evaluation: eval})
}

// Rules 列出规则目录
func (h *RosterHandler) Rules(w http.ResponseWriter, _ *http.Request) {
	s := scheduler.New(scheduler.DefaultSettings())
	middleware.WriteJSON(w, http.StatusOK, constraints.LibraryResponse{
		Library: constraints.GetLibrary(s.Manager()),
	})
}

func (h *RosterHandler) trackRun() func() {
	if h.metrics == nil {
		return func() {}
	}
	return h.metrics.TrackRun()
}

func (h *RosterHandler) decode(w http.ResponseWriter, r *http.Request) (*GenerateRequest, error) {
	body := io.Reader(r.Body)
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "读取请求失败")
	}

	req := &GenerateRequest{Roster: *config.DefaultRoster()}
	if err := yaml.Unmarshal(data, req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败")
	}
	return req, nil
}

// build 校验请求并转换为排班输入
func (req *GenerateRequest) build() (scheduler.Input, scheduler.Settings, error) {
	ve := &apperrors.ValidationErrors{}
	if len(req.Employees) == 0 {
		ve.Add("employees", "员工列表不能为空")
	}
	if ve.HasErrors() {
		return scheduler.Input{}, scheduler.Settings{}, ve.ToAppError()
	}

	cfg := &req.Roster
	if err := cfg.Validate(); err != nil {
		return scheduler.Input{}, scheduler.Settings{}, err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return scheduler.Input{}, scheduler.Settings{}, err
	}

	employees, err := toEmployees(req.Employees)
	if err != nil {
		return scheduler.Input{}, scheduler.Settings{}, err
	}

	vacation, err := dayTable(repository.MarkVacation, cal.Days, employees, req.Vacation)
	if err != nil {
		return scheduler.Input{}, scheduler.Settings{}, err
	}
	preferences, err := dayTable(repository.MarkPreference, cal.Days, employees, req.Preferences)
	if err != nil {
		return scheduler.Input{}, scheduler.Settings{}, err
	}

	in := scheduler.Input{
		Calendar:            cal,
		Employees:           employees,
		Vacation:            vacation,
		Preferences:         preferences,
		Forced:              cfg.Forced,
		PreviousNightWorker: cfg.PreviousNightWorker,
	}
	return in, cfg.SchedulerSettings(), nil
}

func toEmployees(inputs []EmployeeInput) ([]*model.Employee, error) {
	employees := make([]*model.Employee, 0, len(inputs))
	for i, e := range inputs {
		eligible, double, err := model.ParseEligibility(e.Eligibility)
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("employees[%d].eligibility", i), err.Error())
		}
		employees = append(employees, &model.Employee{
			Name:              e.Name,
			HoursPerWeek:      e.HoursPerWeek,
			OvertimeMinutes:   e.OvertimeMinutes,
			Eligible:          eligible,
			AllowsDoubleShift: double,
			NotRelievedBy:     e.NotRelievedBy,
			NoSingleDayShift:  e.NoSingleDayShift,
		})
	}
	if err := model.ValidateEmployees(employees); err != nil {
		return nil, apperrors.InvalidInput("employees", err.Error())
	}
	return employees, nil
}

// dayTable 由日序号列表构造日期表，未给出时返回 nil
func dayTable(kind string, days []model.Day, employees []*model.Employee, marks map[string][]int) (*model.DayTable, error) {
	if marks == nil {
		return nil, nil
	}
	var list []repository.DayMark
	for name, indices := range marks {
		for _, d := range indices {
			if d < 1 || d > len(days) {
				return nil, apperrors.InvalidInput(kind, fmt.Sprintf("员工 %s 的日期 %d 超出计划期", name, d))
			}
			list = append(list, repository.DayMark{Employee: name, Date: days[d-1].Date})
		}
	}
	return repository.BuildDayTable(kind, len(days), employees, list)
}

func normalizeShifts(shifts []model.ForcedAssignment) ([]model.ForcedAssignment, error) {
	out := make([]model.ForcedAssignment, len(shifts))
	for i, s := range shifts {
		kind, err := model.ParseShiftKind(string(s.Shift))
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("shifts[%d].shift", i), err.Error())
		}
		out[i] = model.ForcedAssignment{Employee: s.Employee, Day: s.Day, Shift: kind}
	}
	return out, nil
}
