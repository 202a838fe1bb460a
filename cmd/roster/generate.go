package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/paiban/roster/internal/database"
	"github.com/paiban/roster/internal/render"
	"github.com/paiban/roster/internal/repository"
	"github.com/paiban/roster/internal/store"
	"github.com/paiban/roster/pkg/calendar"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/logger"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/scheduler"
)

// inputs 单次运行所需的员工与日期表
type inputs struct {
	employees   []*model.Employee
	vacation    *model.DayTable
	preferences *model.DayTable
}

func generateCmd(a *app) *cobra.Command {
	var (
		carryOver bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "生成排班",
		Long: `生成一个月的排班，写出排班表与工时汇总。

配置了 DB_HOST 时员工、休假与期望休息日从数据库读取，否则读取 roster.yaml 中 files 指定的 CSV 文件。
--carry-over 将新的加班余额写回员工表（数据库模式下同时保存排班记录）。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.Database.Enabled() {
				return a.generateFromDB(ctx, cmd.OutOrStdout(), carryOver, quiet)
			}
			return a.generateFromFiles(ctx, cmd.OutOrStdout(), carryOver, quiet)
		},
	}

	cmd.Flags().BoolVar(&carryOver, "carry-over", false, "将新的加班余额写回员工表")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "不在终端展示排班表")
	return cmd
}

func (a *app) generateFromFiles(ctx context.Context, out io.Writer, carryOver, quiet bool) error {
	cal, err := a.roster.Calendar()
	if err != nil {
		return err
	}
	days := cal.NumDays()
	files := a.roster.Files

	var in inputs
	in.employees, err = store.LoadEmployees(files.Employees)
	if err != nil {
		return err
	}
	if in.vacation, err = store.LoadDayTable(files.Vacation, repository.MarkVacation, days); err != nil {
		return err
	}
	if in.preferences, err = store.LoadDayTable(files.Preferences, repository.MarkPreference, days); err != nil {
		return err
	}

	result, err := a.run(ctx, out, cal, in, quiet)
	if err != nil {
		return err
	}

	if carryOver {
		updated := store.CarryOverOvertime(in.employees, result.Ledger)
		if err := store.WriteFile(files.Employees, func(w io.Writer) error {
			return store.WriteEmployees(w, updated)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "加班余额已写回 %s\n", files.Employees)
	}
	return nil
}

func (a *app) generateFromDB(ctx context.Context, out io.Writer, carryOver, quiet bool) error {
	db, err := database.New(&a.cfg.Database)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "连接数据库失败")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	cal, err := a.roster.Calendar()
	if err != nil {
		return err
	}
	year, month, days := cal.Year, cal.Month, cal.NumDays()

	var in inputs
	if in.employees, err = repository.NewEmployeeRepository(db).ListActive(ctx); err != nil {
		return err
	}
	if len(in.employees) == 0 {
		return apperrors.ConfigurationMissing("employees").WithDetails("数据库中没有在职员工，可先运行 roster sync")
	}

	marks := repository.NewDayMarkRepository(db)
	runs := repository.NewRunRepository(db, db)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := marks.LoadTable(gCtx, repository.MarkVacation, year, month, days, in.employees)
		in.vacation = t
		return err
	})
	g.Go(func() error {
		t, err := marks.LoadTable(gCtx, repository.MarkPreference, year, month, days, in.employees)
		in.preferences = t
		return err
	})
	if a.roster.PreviousNightWorker == "" {
		g.Go(func() error {
			prev := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
			rec, err := runs.Latest(gCtx, prev.Year(), prev.Month())
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			a.roster.PreviousNightWorker = rec.CarryOut
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	result, err := a.run(ctx, out, cal, in, quiet)
	if err != nil {
		return err
	}

	if carryOver {
		rec, err := runs.Commit(ctx, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "排班记录 %s 已保存，加班余额已写回数据库\n", rec.ID)
	}
	return nil
}

// run 求解并写出排班表与工时汇总
func (a *app) run(ctx context.Context, out io.Writer, cal *calendar.Context, in inputs, quiet bool) (*scheduler.Result, error) {
	s := scheduler.New(a.roster.SchedulerSettings())
	result, err := s.Generate(ctx, scheduler.Input{
		Calendar:            cal,
		Employees:           in.employees,
		Vacation:            in.vacation,
		Preferences:         in.preferences,
		Forced:              a.roster.Forced,
		PreviousNightWorker: a.roster.PreviousNightWorker,
	})
	if err != nil {
		return nil, err
	}

	output := a.roster.Files.Output
	if err := store.WriteFile(output, func(w io.Writer) error {
		return store.WriteRoster(w, result.Roster)
	}); err != nil {
		return nil, err
	}
	summary := summaryPath(output)
	if err := store.WriteFile(summary, func(w io.Writer) error {
		return store.WriteSummary(w, result.Ledger)
	}); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"run_id":  result.RunID,
		"output":  output,
		"summary": summary,
	}).Info().Msg("排班已写出")

	if !quiet {
		fmt.Fprintln(out, render.Roster(result.Roster))
		fmt.Fprintln(out, render.Summary(result.Ledger))
	}
	fmt.Fprintln(out, render.Stats(result))
	return result, nil
}

// summaryPath roster.csv → roster_summary.csv
func summaryPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_summary" + ext
}
