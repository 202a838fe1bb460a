package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/internal/store"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/logger"
)

func initCmd(a *app) *cobra.Command {
	var (
		force bool
		year  int
		month int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "生成配置文件与输入表模板",
		Long:  "在配置文件所在目录生成 roster.yaml、员工表、休假表与期望休息表模板，已存在的文件默认不覆盖。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultRoster()
			if year > 0 {
				cfg.Year = year
			}
			if month > 0 {
				cfg.Month = month
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			dir := filepath.Dir(a.configPath)
			days := calendar.DaysIn(cfg.Year, time.Month(cfg.Month))
			employees := store.TemplateEmployees()

			files := []struct {
				path  string
				write func(io.Writer) error
			}{
				{a.configPath, nil},
				{resolve(dir, cfg.Files.Employees), func(w io.Writer) error {
					return store.WriteEmployees(w, employees)
				}},
				{resolve(dir, cfg.Files.Vacation), func(w io.Writer) error {
					return store.WriteDayTableTemplate(w, employees, days)
				}},
				{resolve(dir, cfg.Files.Preferences), func(w io.Writer) error {
					return store.WriteDayTableTemplate(w, employees, days)
				}},
			}

			out := cmd.OutOrStdout()
			for _, f := range files {
				if !force && store.Exists(f.path) {
					fmt.Fprintf(out, "跳过 %s（已存在）\n", f.path)
					continue
				}
				var err error
				if f.write == nil {
					err = config.WriteRoster(f.path, cfg)
				} else {
					err = store.WriteFile(f.path, f.write)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "已生成 %s\n", f.path)
			}

			logger.WithField("dir", dir).Debug().Int("year", cfg.Year).Int("month", cfg.Month).Msg("模板已生成")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "覆盖已存在的文件")
	cmd.Flags().IntVar(&year, "year", 0, "计划年份，默认为当前年份")
	cmd.Flags().IntVar(&month, "month", 0, "计划月份，默认为当前月份")
	return cmd
}
