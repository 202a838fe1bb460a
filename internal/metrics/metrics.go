// Package metrics 提供Prometheus文本格式的监控指标
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paiban/roster/pkg/scheduler"
)

// 指标名称
const (
	HTTPRequestsTotal    = "roster_http_requests_total"
	HTTPRequestDuration  = "roster_http_request_duration_seconds"
	RunsTotal            = "roster_runs_total"
	SolveDuration        = "roster_solve_duration_seconds"
	SolverBranchesTotal  = "roster_solver_branches_total"
	SolverConflictsTotal = "roster_solver_conflicts_total"
	MaxDeviationMinutes  = "roster_max_deviation_minutes"
	PreferenceViolations = "roster_preference_violations"
	FairnessScore        = "roster_fairness_score"
	ModelVariables       = "roster_model_variables"
	ModelConstraints     = "roster_model_constraints"
	RuleConflictsTotal   = "roster_rule_conflicts_total"
	ActiveRuns           = "roster_active_runs"
	DatabaseConnections  = "roster_db_connections"
)

// Registry 指标注册表
type Registry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *Registry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
	once.Do(func() {
		registry = NewRegistry()
		registerDefaults(registry)
	})
	return registry
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func registerDefaults(r *Registry) {
	r.NewCounter(HTTPRequestsTotal, "HTTP请求总数", []string{"method", "path", "status"})
	r.NewHistogram(HTTPRequestDuration, "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300})

	r.NewCounter(RunsTotal, "排班运行次数", []string{"status"})
	r.NewHistogram(SolveDuration, "求解耗时", []string{"status"},
		[]float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300})
	r.NewCounter(SolverBranchesTotal, "求解器分支次数", nil)
	r.NewCounter(SolverConflictsTotal, "求解器冲突次数", nil)
	r.NewCounter(RuleConflictsTotal, "解码后规则复核发现的冲突", []string{"type", "severity"})

	r.NewGauge(MaxDeviationMinutes, "最近一次排班的最大工时偏差（分钟）", nil)
	r.NewGauge(PreferenceViolations, "最近一次排班未满足的期望休息日", nil)
	r.NewGauge(FairnessScore, "最近一次排班的公平性评分", nil)
	r.NewGauge(ModelVariables, "最近一次模型的变量数", nil)
	r.NewGauge(ModelConstraints, "最近一次模型的约束数", nil)
	r.NewGauge(ActiveRuns, "正在进行的排班运行", nil)
	r.NewGauge(DatabaseConnections, "数据库连接数", []string{"state"})
}

// NewCounter 创建计数器
func (r *Registry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *Registry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *Registry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *Registry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *Registry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *Registry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Value 读取当前值
func (c *Counter) Value(labelValues ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelKey(labelValues)]
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Add 增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] += value
}

// Value 读取当前值
func (g *Gauge) Value(labelValues ...string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[labelKey(labelValues)]
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}

	// counts 按桶独立计数，输出时累加
	placed := false
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
			placed = true
			break
		}
	}
	if !placed {
		h.counts[key][len(h.Buckets)]++
	}
	h.sums[key] += value
}

// Count 观测次数
func (h *Histogram) Count(labelValues ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.counts[labelKey(labelValues)] {
		n += c
	}
	return n
}

// labelValueSep 标签值分隔符，不会出现在合法标签值中
const labelValueSep = "\x1f"

func labelKey(labels []string) string {
	return strings.Join(labels, labelValueSep)
}

// WriteTo 以Prometheus文本格式输出全部指标，按名称排序
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n", c.Name, c.Help, c.Name)
		c.mu.RLock()
		for _, key := range sortedKeys(c.values) {
			fmt.Fprintf(&b, "%s%s %s\n", c.Name, braces(formatLabels(c.Labels, key)), formatFloat(c.values[key]))
		}
		c.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n", g.Name, g.Help, g.Name)
		g.mu.RLock()
		for _, key := range sortedKeys(g.values) {
			fmt.Fprintf(&b, "%s%s %s\n", g.Name, braces(formatLabels(g.Labels, key)), formatFloat(g.values[key]))
		}
		g.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s histogram\n", h.Name, h.Help, h.Name)
		h.mu.RLock()
		for _, key := range sortedKeys(h.counts) {
			labels := formatLabels(h.Labels, key)
			counts := h.counts[key]
			cumulative := 0
			for i, bucket := range h.Buckets {
				cumulative += counts[i]
				fmt.Fprintf(&b, "%s_bucket%s %d\n", h.Name, braces(joinLabels(labels, `le="`+formatFloat(bucket)+`"`)), cumulative)
			}
			cumulative += counts[len(h.Buckets)]
			fmt.Fprintf(&b, "%s_bucket%s %d\n", h.Name, braces(joinLabels(labels, `le="+Inf"`)), cumulative)
			fmt.Fprintf(&b, "%s_sum%s %s\n", h.Name, braces(labels), formatFloat(h.sums[key]))
			fmt.Fprintf(&b, "%s_count%s %d\n", h.Name, braces(labels), cumulative)
		}
		h.mu.RUnlock()
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Handler 返回Prometheus格式的指标HTTP处理器
func Handler() http.Handler {
	return HandlerFor(GetRegistry())
}

// HandlerFor 返回指定注册表的处理器
func HandlerFor(r *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	})
}

func formatLabels(names []string, key string) string {
	if len(names) == 0 {
		return ""
	}
	vals := strings.Split(key, labelValueSep)
	parts := make([]string, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		parts[i] = name + "=" + strconv.Quote(val)
	}
	return strings.Join(parts, ",")
}

func joinLabels(a, b string) string {
	if a == "" {
		return b
	}
	return a + "," + b
}

func braces(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordRequest 记录HTTP请求指标
func (r *Registry) RecordRequest(method, path string, status int, duration time.Duration) {
	if c := r.GetCounter(HTTPRequestsTotal); c != nil {
		c.Inc(method, path, strconv.Itoa(status))
	}
	if h := r.GetHistogram(HTTPRequestDuration); h != nil {
		h.Observe(duration.Seconds(), method, path)
	}
}

// RecordRun 记录一次成功的排班运行
func (r *Registry) RecordRun(result *scheduler.Result) {
	status := string(result.Status)
	if c := r.GetCounter(RunsTotal); c != nil {
		c.Inc(status)
	}
	if h := r.GetHistogram(SolveDuration); h != nil {
		h.Observe(result.Stats.WallTime.Seconds(), status)
	}
	if c := r.GetCounter(SolverBranchesTotal); c != nil {
		c.Add(float64(result.Stats.Branches))
	}
	if c := r.GetCounter(SolverConflictsTotal); c != nil {
		c.Add(float64(result.Stats.Conflicts))
	}
	if c := r.GetCounter(RuleConflictsTotal); c != nil {
		for _, conflict := range result.Conflicts {
			c.Inc(string(conflict.Type), conflict.Severity)
		}
	}

	r.setGauge(PreferenceViolations, float64(result.Stats.PreferenceViolations))
	r.setGauge(ModelVariables, float64(result.Stats.Variables))
	r.setGauge(ModelConstraints, float64(result.Stats.Constraints))
	if result.Ledger != nil {
		r.setGauge(MaxDeviationMinutes, float64(result.Ledger.MaxAbsDeviation()))
	}
	if result.Fairness != nil {
		r.setGauge(FairnessScore, result.Fairness.OverallFairnessScore)
	}
}

// RecordFailure 记录失败的排班运行，status 为错误码
func (r *Registry) RecordFailure(status string, duration time.Duration) {
	if c := r.GetCounter(RunsTotal); c != nil {
		c.Inc(status)
	}
	if h := r.GetHistogram(SolveDuration); h != nil {
		h.Observe(duration.Seconds(), status)
	}
}

// TrackRun 标记一次运行开始，返回结束回调
func (r *Registry) TrackRun() func() {
	g := r.GetGauge(ActiveRuns)
	if g == nil {
		return func() {}
	}
	g.Add(1)
	return func() { g.Add(-1) }
}

// SetDBStats 记录连接池状态
func (r *Registry) SetDBStats(open, inUse, idle int) {
	if g := r.GetGauge(DatabaseConnections); g != nil {
		g.Set(float64(open), "open")
		g.Set(float64(inUse), "in_use")
		g.Set(float64(idle), "idle")
	}
}

func (r *Registry) setGauge(name string, v float64) {
	if g := r.GetGauge(name); g != nil {
		g.Set(v)
	}
}
