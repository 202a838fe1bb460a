package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
)

// 日期标记类别
const (
	MarkVacation   = "vacation"
	MarkPreference = "preferences"
)

// DayMark 某员工某天的一条标记
type DayMark struct {
	Employee string
	Date     time.Time
}

// DayMarkRepository 休假与偏好休息标记仓储
type DayMarkRepository struct {
	db DB
}

// NewDayMarkRepository 创建日期标记仓储
func NewDayMarkRepository(db DB) *DayMarkRepository {
	return &DayMarkRepository{db: db}
}

// WithTx 返回使用事务的仓储
func (r *DayMarkRepository) WithTx(tx DB) *DayMarkRepository {
	return &DayMarkRepository{db: tx}
}

// ListMonth 查询某月某类别的全部标记
func (r *DayMarkRepository) ListMonth(ctx context.Context, kind string, year int, month time.Month) ([]DayMark, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT employee, day FROM day_marks
		WHERE kind = $1 AND day >= $2 AND day < $3
		ORDER BY employee, day
	`
	rows, err := r.db.QueryContext(ctx, query, kind, start, end)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询日期标记失败")
	}
	defer rows.Close()

	var marks []DayMark
	for rows.Next() {
		var m DayMark
		if err := rows.Scan(&m.Employee, &m.Date); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取日期标记失败")
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "遍历日期标记失败")
	}
	return marks, nil
}

// LoadTable 构造某月的日期表，每名员工都有完整一行
func (r *DayMarkRepository) LoadTable(ctx context.Context, kind string, year int, month time.Month, days int, employees []*model.Employee) (*model.DayTable, error) {
	marks, err := r.ListMonth(ctx, kind, year, month)
	if err != nil {
		return nil, err
	}
	return BuildDayTable(kind, days, employees, marks)
}

// ReplaceMonth 以 table 覆盖某月某类别的标记
func (r *DayMarkRepository) ReplaceMonth(ctx context.Context, kind string, year int, month time.Month, table *model.DayTable, employees []string) error {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	del := `DELETE FROM day_marks WHERE kind = $1 AND day >= $2 AND day < $3 AND employee = ANY($4)`
	if _, err := r.db.ExecContext(ctx, del, kind, start, end, pq.Array(employees)); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "清除日期标记失败")
	}

	ins := `INSERT INTO day_marks (kind, employee, day) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	for _, name := range employees {
		for d := 1; d <= table.Days(); d++ {
			set, err := table.Lookup(name, d)
			if err != nil {
				return err
			}
			if !set {
				continue
			}
			if _, err := r.db.ExecContext(ctx, ins, kind, name, start.AddDate(0, 0, d-1)); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, fmt.Sprintf("保存 %s 的日期标记失败", name))
			}
		}
	}
	return nil
}

// BuildDayTable 由标记构造日期表，标记超出天数或引用未知员工时返回 LookupError
func BuildDayTable(kind string, days int, employees []*model.Employee, marks []DayMark) (*model.DayTable, error) {
	rows := make(map[string][]bool, len(employees))
	for _, e := range employees {
		rows[e.Name] = make([]bool, days)
	}

	for _, m := range marks {
		row, ok := rows[m.Employee]
		if !ok {
			return nil, apperrors.Lookup(kind, m.Employee, 0)
		}
		day := m.Date.Day()
		if day > days {
			return nil, apperrors.Lookup(kind, m.Employee, day)
		}
		row[day-1] = true
	}

	table := model.NewDayTable(kind, days)
	for _, e := range employees {
		if err := table.SetRow(e.Name, rows[e.Name]); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "构造日期表失败")
		}
	}
	return table, nil
}
