package holiday

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"

	apperrors "github.com/paiban/roster/pkg/errors"
)

// 州代码 → 该州节假日（不含全国性节日时由 Holidays 合并）
var germanSubdivisions = map[string][]*cal.Holiday{
	"BB": de.HolidaysBB,
	"BE": de.HolidaysBE,
	"BW": de.HolidaysBW,
	"BY": de.HolidaysBY,
	"HB": de.HolidaysHB,
	"HE": de.HolidaysHE,
	"HH": de.HolidaysHH,
	"MV": de.HolidaysMV,
	"NI": de.HolidaysNI,
	"NW": de.HolidaysNW,
	"RP": de.HolidaysRP,
	"SH": de.HolidaysSH,
	"SL": de.HolidaysSL,
	"SN": de.HolidaysSN,
	"ST": de.HolidaysST,
	"TH": de.HolidaysTH,
}

// Germany 德国法定节假日（全国 + 州）
type Germany struct {
	subdivision string
	calendar    []*cal.Holiday
}

// NewGermany 创建德国节假日来源，subdivision 为空时只含全国性节日
func NewGermany(subdivision string) (*Germany, error) {
	sub := strings.ToUpper(strings.TrimSpace(subdivision))
	g := &Germany{subdivision: sub, calendar: de.Holidays}
	if sub == "" {
		return g, nil
	}
	state, ok := germanSubdivisions[sub]
	if !ok {
		return nil, apperrors.ConfigurationMissing(fmt.Sprintf("德国州代码 %q 的节假日日历", subdivision))
	}
	g.calendar = append(append([]*cal.Holiday{}, de.Holidays...), state...)
	return g, nil
}

// Holidays 实现 Provider
func (g *Germany) Holidays(year int) []Holiday {
	seen := make(map[string]bool, len(g.calendar))
	days := make([]Holiday, 0, len(g.calendar))
	for _, h := range g.calendar {
		actual, _ := h.Calc(year)
		// 超出生效年份范围的节日返回零值
		if actual.IsZero() || actual.Year() != year {
			continue
		}
		d := date(year, actual.Month(), actual.Day())
		key := d.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, Holiday{Date: d, Name: h.Name})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}
