// Package holiday 提供法定节假日查询
package holiday

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/paiban/roster/pkg/errors"
)

// Holiday 节假日
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// Provider 节假日来源
type Provider interface {
	// Holidays 返回某年的全部节假日，按日期排序
	Holidays(year int) []Holiday
}

// None 无节假日
type None struct{}

// Holidays 实现 Provider
func (None) Holidays(int) []Holiday { return nil }

// Static 由配置给出的固定日期
type Static struct {
	days []Holiday
}

// NewStatic 解析 YYYY-MM-DD 日期列表，可写作 "2026-05-01=Tag der Arbeit"
func NewStatic(entries []string) (*Static, error) {
	s := &Static{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		datePart, name, _ := strings.Cut(raw, "=")
		t, err := time.Parse("2006-01-02", strings.TrimSpace(datePart))
		if err != nil {
			return nil, apperrors.InvalidInput("holidays", fmt.Sprintf("无法解析日期 %q", raw))
		}
		if name == "" {
			name = "holiday"
		}
		s.days = append(s.days, Holiday{Date: t, Name: strings.TrimSpace(name)})
	}
	sort.Slice(s.days, func(i, j int) bool { return s.days[i].Date.Before(s.days[j].Date) })
	return s, nil
}

// Holidays 实现 Provider
func (s *Static) Holidays(year int) []Holiday {
	var out []Holiday
	for _, h := range s.days {
		if h.Date.Year() == year {
			out = append(out, h)
		}
	}
	return out
}

// Combined 合并多个来源，同一天只保留第一个名称
type Combined []Provider

// Holidays 实现 Provider
func (c Combined) Holidays(year int) []Holiday {
	seen := make(map[string]bool)
	var out []Holiday
	for _, p := range c {
		for _, h := range p.Holidays(year) {
			key := h.Date.Format("2006-01-02")
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ForRegion 按国家/州代码选择节假日来源
// 空国家代码表示不使用节假日
func ForRegion(country, subdivision string) (Provider, error) {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "":
		return None{}, nil
	case "DE":
		return NewGermany(subdivision)
	}
	return nil, apperrors.ConfigurationMissing(fmt.Sprintf("国家 %q 的节假日日历", country))
}

// Lookup 把某年的节假日转为 日期(YYYY-MM-DD) → 名称 的索引
func Lookup(p Provider, year int) map[string]string {
	out := make(map[string]string)
	for _, h := range p.Holidays(year) {
		out[h.Date.Format("2006-01-02")] = h.Name
	}
	return out
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
