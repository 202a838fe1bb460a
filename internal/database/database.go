// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/pkg/logger"
)

// slowQuery 超过该时长的语句记录告警
const slowQuery = 100 * time.Millisecond

// Schema 员工、日期标记与排班记录表
const Schema = `
CREATE TABLE IF NOT EXISTS employees (
	name                TEXT PRIMARY KEY,
	hours_per_week      INTEGER NOT NULL DEFAULT 0,
	overtime_minutes    INTEGER NOT NULL DEFAULT 0,
	eligibility         TEXT NOT NULL DEFAULT '',
	not_relieved_by     TEXT[] NOT NULL DEFAULT '{}',
	allows_double_shift BOOLEAN NOT NULL DEFAULT FALSE,
	no_single_day_shift BOOLEAN NOT NULL DEFAULT FALSE,
	active              BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS day_marks (
	kind     TEXT NOT NULL,
	employee TEXT NOT NULL REFERENCES employees(name) ON DELETE CASCADE,
	day      DATE NOT NULL,
	PRIMARY KEY (kind, employee, day)
);

CREATE TABLE IF NOT EXISTS roster_runs (
	id            UUID PRIMARY KEY,
	year          INTEGER NOT NULL,
	month         INTEGER NOT NULL,
	status        TEXT NOT NULL,
	objective     BIGINT NOT NULL DEFAULT 0,
	carry_out     TEXT NOT NULL DEFAULT '',
	roster        JSONB NOT NULL,
	ledger        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_roster_runs_month ON roster_runs (year, month, created_at DESC);
`

// DB 数据库连接封装
type DB struct {
	*sql.DB
	cfg *config.DatabaseConfig
}

// New 创建新的数据库连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return &DB{DB: db, cfg: cfg}, nil
}

// EnsureSchema 建表（幂等）
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("创建数据表失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务，fn 返回错误或 panic 时回滚
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}
	return nil
}

// ExecContext 执行SQL语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer observe(query, time.Now())
	return db.DB.ExecContext(ctx, query, args...)
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	defer observe(query, time.Now())
	return db.DB.QueryContext(ctx, query, args...)
}

// QueryRowContext 执行单行查询
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

func observe(query string, start time.Time) {
	if d := time.Since(start); d > slowQuery {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", d).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
