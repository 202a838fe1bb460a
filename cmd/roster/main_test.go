package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestInit(t *testing.T) {
	t.Setenv("DB_HOST", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "roster.yaml")

	out, err := execute(t, "init", "--config", cfgPath, "--year", "2026", "--month", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "已生成")

	for _, name := range []string{"roster.yaml", "workers.csv", "vacation.csv", "preferences.csv"} {
		assert.True(t, store.Exists(filepath.Join(dir, name)), name)
	}

	cfg, err := config.LoadRoster(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 2026, cfg.Year)
	assert.Equal(t, 2, cfg.Month)

	employees, err := store.LoadEmployees(filepath.Join(dir, "workers.csv"))
	require.NoError(t, err)
	assert.Len(t, employees, len(store.TemplateEmployees()))

	vacation, err := store.LoadDayTable(filepath.Join(dir, "vacation.csv"), "vacation", 28)
	require.NoError(t, err)
	assert.Equal(t, 28, vacation.Days())

	// 再次运行不覆盖
	out, err = execute(t, "init", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "跳过")
}

func TestGenerate(t *testing.T) {
	t.Setenv("DB_HOST", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "roster.yaml")

	// 2026-06-01 是周一，三天内无周末与节假日
	writeFile(t, cfgPath, `
year: 2026
month: 6
days: 3
country: none
workers: 2
time_limit: 10s
rules:
  balance_overtime: false
files:
  employees: workers.csv
  vacation: vacation.csv
  preferences: ""
  output: out/roster.csv
`)
	writeFile(t, filepath.Join(dir, "workers.csv"), strings.Join([]string{
		"name,hours_per_week,overtime,available_for_shift,not relief,flags",
		"anna,40,2,\"n,d,n+d\",,",
		"bert,40,0,\"n,d,n+d\",,",
		"carl,40,-1.5,\"n,d,n+d\",,",
	}, "\n")+"\n")
	writeFile(t, filepath.Join(dir, "vacation.csv"), strings.Join([]string{
		"workers,1,2,3",
		"anna,,,",
		"bert,,,",
		"carl,,,",
	}, "\n")+"\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0o755))

	out, err := execute(t, "generate", "--config", cfgPath, "--carry-over")
	require.NoError(t, err, out)
	assert.Contains(t, out, "anna")
	assert.Contains(t, out, "OPTIMAL")
	assert.Contains(t, out, "加班余额已写回")

	roster, err := os.ReadFile(filepath.Join(dir, "out", "roster.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(roster)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,weekday,anna,bert,carl", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2026-06-01,Mon,"))

	assert.True(t, store.Exists(filepath.Join(dir, "out", "roster_summary.csv")))

	employees, err := store.LoadEmployees(filepath.Join(dir, "workers.csv"))
	require.NoError(t, err)
	assert.Len(t, employees, 3)
}

func TestGenerate_MissingConfig(t *testing.T) {
	t.Setenv("DB_HOST", "")
	_, err := execute(t, "generate", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestRules(t *testing.T) {
	out, err := execute(t, "rules", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "coverage"`)
	assert.Contains(t, out, `"name": "force_preferences"`)
}

func TestSummaryPath(t *testing.T) {
	assert.Equal(t, "out/roster_summary.csv", summaryPath("out/roster.csv"))
	assert.Equal(t, "plan_summary", summaryPath("plan"))
}
