// 排班命令行工具
// 读取 roster.yaml 与员工表，生成一个月的排班并写出结果

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// app 命令共享的运行环境
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	roster *config.RosterConfig
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "roster",
		Short:         "月度排班生成工具",
		Long:          "根据 roster.yaml、员工表、休假表与期望休息表生成一个月的日班/夜班排班，并均衡各员工的工时。",
		Version:       fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lc := logger.DefaultConfig()
			lc.Level = a.logLevel
			lc.Output = "stderr"
			logger.Init(lc)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultRosterFile, "排班配置文件")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "日志级别 (debug, info, warn, error)")

	root.AddCommand(initCmd(a))
	root.AddCommand(generateCmd(a))
	root.AddCommand(rulesCmd(a))
	root.AddCommand(syncCmd(a))

	return root
}

// load 读取环境配置与排班配置
// 排班配置中的相对文件路径以配置文件所在目录为基准
func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	roster, err := config.LoadRoster(a.configPath)
	if err != nil {
		return err
	}
	roster.ApplyEnv()

	dir := filepath.Dir(a.configPath)
	roster.Files.Employees = resolve(dir, roster.Files.Employees)
	roster.Files.Vacation = resolve(dir, roster.Files.Vacation)
	roster.Files.Preferences = resolve(dir, roster.Files.Preferences)
	roster.Files.Output = resolve(dir, roster.Files.Output)

	a.cfg = cfg
	a.roster = roster
	return nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
