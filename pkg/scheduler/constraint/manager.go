// Package constraint 定义规则接口、编码上下文和规则管理器
package constraint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paiban/roster/pkg/logger"
)

// Manager 规则管理器
type Manager struct {
	rules  []Rule
	mu     sync.RWMutex
	logger *logger.SchedulerLogger
}

// NewManager 创建规则管理器
func NewManager() *Manager {
	return &Manager{
		rules:  make([]Rule, 0),
		logger: logger.NewSchedulerLogger(),
	}
}

// Register 注册规则
func (m *Manager) Register(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 同类型规则直接替换
	for i, existing := range m.rules {
		if existing.Type() == r.Type() {
			m.rules[i] = r
			return
		}
	}

	m.rules = append(m.rules, r)

	// 按类别和权重排序：硬约束在前，权重高的在前
	sort.SliceStable(m.rules, func(i, j int) bool {
		ri, rj := m.rules[i], m.rules[j]
		if ri.Category() != rj.Category() {
			return ri.Category() == CategoryHard
		}
		return ri.Weight() > rj.Weight()
	})
}

// Unregister 注销规则
func (m *Manager) Unregister(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if r.Type() == t {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return
		}
	}
}

// GetRule 获取规则
func (m *Manager) GetRule(t Type) Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rules {
		if r.Type() == t {
			return r
		}
	}
	return nil
}

// GetAll 获取所有规则
func (m *Manager) GetAll() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Rule, len(m.rules))
	copy(result, m.rules)
	return result
}

// GetByCategory 按类别获取规则
func (m *Manager) GetByCategory(cat Category) []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Rule
	for _, r := range m.rules {
		if r.Category() == cat {
			result = append(result, r)
		}
	}
	return result
}

// RuleReport 单条规则的编码结果
type RuleReport struct {
	Type  Type   `json:"type"`
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`
}

// Report 编码报告
type Report struct {
	Rules       []RuleReport `json:"rules"`
	Skipped     []Type       `json:"skipped,omitempty"`
	Constraints int          `json:"constraints"`
	Indicators  int          `json:"indicators"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// Encode 按顺序编码所有启用的规则
func (m *Manager) Encode(ctx *Context, enabled EnabledSet) (*Report, error) {
	rules := m.GetAll()

	report := &Report{Rules: make([]RuleReport, 0, len(rules))}
	for _, r := range rules {
		if !enabled.Enabled(r.Type()) {
			report.Skipped = append(report.Skipped, r.Type())
			continue
		}

		stats, err := r.Encode(ctx)
		if err != nil {
			return nil, fmt.Errorf("编码规则 %s 失败: %w", r.Name(), err)
		}
		stats.Add(ctx.TakeFreeDayStats())

		m.logger.RuleEncoded(string(r.Type()), stats.Constraints, stats.Indicators)
		for _, d := range stats.Diagnostics {
			m.logger.ConstraintViolation(r.Name(), d)
		}

		report.Rules = append(report.Rules, RuleReport{Type: r.Type(), Name: r.Name(), Stats: stats})
		report.Constraints += stats.Constraints
		report.Indicators += stats.Indicators
		report.Diagnostics = append(report.Diagnostics, stats.Diagnostics...)
	}
	return report, nil
}

// Clear 清除所有规则
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make([]Rule, 0)
}

// Count 返回规则数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Summary 返回规则摘要
func (m *Manager) Summary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hard := 0
	soft := 0
	for _, r := range m.rules {
		if r.Category() == CategoryHard {
			hard++
		} else {
			soft++
		}
	}

	return map[string]interface{}{
		"total": len(m.rules),
		"hard":  hard,
		"soft":  soft,
	}
}
