package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paiban/roster/internal/database"
	"github.com/paiban/roster/internal/repository"
	"github.com/paiban/roster/internal/store"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/logger"
	"github.com/paiban/roster/pkg/model"
)

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "将 CSV 员工表、休假表与期望休息表导入数据库",
		Long:  "按 roster.yaml 的年月导入：员工按姓名更新，当月休假与期望休息日整体替换。需要配置 DB_HOST。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if !a.cfg.Database.Enabled() {
				return apperrors.ConfigurationMissing("DB_HOST")
			}

			cal, err := a.roster.Calendar()
			if err != nil {
				return err
			}
			days := cal.NumDays()
			files := a.roster.Files

			employees, err := store.LoadEmployees(files.Employees)
			if err != nil {
				return err
			}
			tables := make(map[string]*model.DayTable, 2)
			for kind, path := range map[string]string{
				repository.MarkVacation:   files.Vacation,
				repository.MarkPreference: files.Preferences,
			} {
				t, err := store.LoadDayTable(path, kind, days)
				if err != nil {
					return err
				}
				if t != nil {
					tables[kind] = t
				}
			}

			ctx := cmd.Context()
			db, err := database.New(&a.cfg.Database)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "连接数据库失败")
			}
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				return err
			}

			names := make([]string, 0, len(employees))
			for _, e := range employees {
				names = append(names, e.Name)
			}

			err = db.Transaction(ctx, func(tx *sql.Tx) error {
				repo := repository.NewEmployeeRepository(tx)
				for _, e := range employees {
					if err := repo.Upsert(ctx, e); err != nil {
						return err
					}
				}
				marks := repository.NewDayMarkRepository(tx)
				for kind, t := range tables {
					if err := marks.ReplaceMonth(ctx, kind, cal.Year, cal.Month, t, names); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			logger.Info().
				Int("employees", len(employees)).
				Int("tables", len(tables)).
				Int("year", cal.Year).
				Int("month", int(cal.Month)).
				Msg("数据已导入")
			fmt.Fprintf(cmd.OutOrStdout(), "已导入 %d 名员工、%d 张日期表\n", len(employees), len(tables))
			return nil
		},
	}
}
