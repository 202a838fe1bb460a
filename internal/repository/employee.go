package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/model"
)

// EmployeeRepository 员工仓储
type EmployeeRepository struct {
	db DB
}

// NewEmployeeRepository 创建员工仓储
func NewEmployeeRepository(db DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// WithTx 返回使用事务的仓储
func (r *EmployeeRepository) WithTx(tx DB) *EmployeeRepository {
	return &EmployeeRepository{db: tx}
}

const employeeColumns = `name, hours_per_week, overtime_minutes, eligibility, not_relieved_by,
	allows_double_shift, no_single_day_shift`

// ListActive 按姓名顺序返回在职员工
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]*model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE active ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询员工失败")
	}
	defer rows.Close()

	var employees []*model.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "遍历员工失败")
	}
	return employees, nil
}

// Get 按姓名获取员工
func (r *EmployeeRepository) Get(ctx context.Context, name string) (*model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE name = $1`

	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, name))
	if apperrors.Is(err, apperrors.CodeNotFound) {
		return nil, apperrors.Lookup("employees", name, 0)
	}
	return e, err
}

// Upsert 新增或更新员工
func (r *EmployeeRepository) Upsert(ctx context.Context, e *model.Employee) error {
	query := `
		INSERT INTO employees (
			name, hours_per_week, overtime_minutes, eligibility, not_relieved_by,
			allows_double_shift, no_single_day_shift, active, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		ON CONFLICT (name) DO UPDATE SET
			hours_per_week = EXCLUDED.hours_per_week,
			overtime_minutes = EXCLUDED.overtime_minutes,
			eligibility = EXCLUDED.eligibility,
			not_relieved_by = EXCLUDED.not_relieved_by,
			allows_double_shift = EXCLUDED.allows_double_shift,
			no_single_day_shift = EXCLUDED.no_single_day_shift,
			active = TRUE,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		e.Name, e.HoursPerWeek, e.OvertimeMinutes, eligibilityText(e), pq.Array(e.NotRelievedBy),
		e.AllowsDoubleShift, e.NoSingleDayShift, time.Now(),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, fmt.Sprintf("保存员工 %s 失败", e.Name))
	}
	return nil
}

// UpdateOvertime 写回新的加班余额
func (r *EmployeeRepository) UpdateOvertime(ctx context.Context, ledger *model.WorktimeLedger) error {
	query := `UPDATE employees SET overtime_minutes = $2, updated_at = $3 WHERE name = $1`
	now := time.Now()

	for _, entry := range ledger.Entries {
		result, err := r.db.ExecContext(ctx, query, entry.Employee, entry.NewOvertimeMinutes, now)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, fmt.Sprintf("更新员工 %s 的加班余额失败", entry.Employee))
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return apperrors.Lookup("employees", entry.Employee, 0)
		}
	}
	return nil
}

func scanEmployee(row Scanner) (*model.Employee, error) {
	var (
		e           model.Employee
		eligibility string
		notRelieved pq.StringArray
		double      bool
	)
	err := row.Scan(
		&e.Name, &e.HoursPerWeek, &e.OvertimeMinutes, &eligibility, &notRelieved,
		&double, &e.NoSingleDayShift,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.CodeNotFound, "员工不存在")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取员工失败")
	}

	eligible, fromSpec, err := model.ParseEligibility(eligibility)
	if err != nil {
		return nil, apperrors.InvalidInput("eligibility", fmt.Sprintf("员工 %s: %v", e.Name, err))
	}
	e.Eligible = eligible
	e.AllowsDoubleShift = double || fromSpec
	if len(notRelieved) > 0 {
		e.NotRelievedBy = []string(notRelieved)
	}
	return &e, nil
}

// eligibilityText 资格的存储形式，连班单独存放在 allows_double_shift
func eligibilityText(e *model.Employee) string {
	codes := ""
	for _, k := range model.AllShiftKinds {
		if !e.CanWork(k) {
			continue
		}
		if codes != "" {
			codes += ","
		}
		codes += string(k)
	}
	return codes
}
