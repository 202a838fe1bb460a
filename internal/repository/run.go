package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/scheduler"
)

// RunRecord 一次排班运行的存档
type RunRecord struct {
	ID        uuid.UUID
	Year      int
	Month     time.Month
	Status    string
	Objective int64
	CarryOut  string
	Roster    json.RawMessage
	Ledger    json.RawMessage
	CreatedAt time.Time
}

// NewRunRecord 由排班结果构造存档
func NewRunRecord(result *scheduler.Result) (*RunRecord, error) {
	id, err := uuid.Parse(result.RunID)
	if err != nil {
		id = uuid.New()
	}
	if result.Roster == nil || len(result.Roster.Days) == 0 {
		return nil, apperrors.InvalidInput("roster", "排班结果为空")
	}

	roster, err := json.Marshal(result.Roster)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "序列化排班表失败")
	}
	ledger, err := json.Marshal(result.Ledger)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "序列化工时台账失败")
	}

	first := result.Roster.Days[0].Date
	return &RunRecord{
		ID:        id,
		Year:      first.Year(),
		Month:     first.Month(),
		Status:    string(result.Status),
		Objective: result.Stats.Objective,
		CarryOut:  result.CarryOut,
		Roster:    roster,
		Ledger:    ledger,
		CreatedAt: time.Now(),
	}, nil
}

// RunRepository 排班记录仓储
type RunRepository struct {
	db DB
	tx Transactor
}

// NewRunRepository 创建排班记录仓储
func NewRunRepository(db DB, tx Transactor) *RunRepository {
	return &RunRepository{db: db, tx: tx}
}

// Create 保存排班记录
func (r *RunRepository) Create(ctx context.Context, rec *RunRecord) error {
	return insertRun(ctx, r.db, rec)
}

// Commit 在同一事务中保存排班记录并写回员工的新加班余额
func (r *RunRepository) Commit(ctx context.Context, result *scheduler.Result) (*RunRecord, error) {
	rec, err := NewRunRecord(result)
	if err != nil {
		return nil, err
	}

	err = r.tx.Transaction(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, rec); err != nil {
			return err
		}
		return NewEmployeeRepository(tx).UpdateOvertime(ctx, result.Ledger)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Latest 查询某月最近一次排班记录
func (r *RunRepository) Latest(ctx context.Context, year int, month time.Month) (*RunRecord, error) {
	query := `
		SELECT id, year, month, status, objective, carry_out, roster, ledger, created_at
		FROM roster_runs
		WHERE year = $1 AND month = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		rec RunRecord
		m   int
	)
	err := r.db.QueryRowContext(ctx, query, year, int(month)).Scan(
		&rec.ID, &rec.Year, &m, &rec.Status, &rec.Objective, &rec.CarryOut,
		&rec.Roster, &rec.Ledger, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.CodeNotFound, "该月尚无排班记录")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询排班记录失败")
	}
	rec.Month = time.Month(m)
	return &rec, nil
}

func insertRun(ctx context.Context, db DB, rec *RunRecord) error {
	query := `
		INSERT INTO roster_runs (id, year, month, status, objective, carry_out, roster, ledger, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.Year, int(rec.Month), rec.Status, rec.Objective, rec.CarryOut,
		[]byte(rec.Roster), []byte(rec.Ledger), rec.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存排班记录失败")
	}
	return nil
}
