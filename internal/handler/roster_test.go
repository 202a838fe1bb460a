package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/internal/constraints"
	"github.com/paiban/roster/internal/metrics"
	"github.com/paiban/roster/internal/middleware"
	"github.com/paiban/roster/internal/repository"
	"github.com/paiban/roster/pkg/scheduler"
)

type fakeRuns struct {
	committed []*scheduler.Result
}

func (f *fakeRuns) Commit(_ context.Context, result *scheduler.Result) (*repository.RunRecord, error) {
	f.committed = append(f.committed, result)
	return repository.NewRunRecord(result)
}

// 2026-06-01 是周一，三天内无周末与节假日
const smallRoster = `{
  "roster": {
    "year": 2026, "month": 6, "days": 3, "country": "none",
    "workers": 2, "time_limit": "10s",
    "rules": {"balance_overtime": false}
  },
  "employees": [
    {"name": "anna", "hours_per_week": 40, "eligibility": "d,n,n+d"},
    {"name": "bert", "hours_per_week": 40, "eligibility": "d,n,n+d"},
    {"name": "carl", "hours_per_week": 40, "eligibility": "d,n,n+d"}
  ]%s
}`

func newRouter(runs RunStore) (*chi.Mux, *metrics.Registry) {
	reg := metrics.NewRegistry()
	h := NewRosterHandler(config.APIConfig{Timeout: time.Minute, MaxBody: 1 << 20}, reg, runs)
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r, reg
}

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestGenerate(t *testing.T) {
	t.Run("小规模可行", func(t *testing.T) {
		r, _ := newRouter(nil)
		rec := post(t, r, "/api/v1/roster/generate", strings.Replace(smallRoster, "%s", "", 1))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Success bool `json:"success"`
			Result  struct {
				Optimal bool `json:"optimal"`
				Roster  struct {
					Days []json.RawMessage `json:"days"`
				} `json:"roster"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Result.Optimal)
		assert.Len(t, resp.Result.Roster.Days, 3)
	})

	t.Run("保存记录", func(t *testing.T) {
		runs := &fakeRuns{}
		r, _ := newRouter(runs)
		rec := post(t, r, "/api/v1/roster/generate", strings.Replace(smallRoster, "%s", `, "persist": true`, 1))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			SavedID string `json:"saved_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, runs.committed, 1)
		_, err := uuid.Parse(resp.SavedID)
		assert.NoError(t, err)
	})

	t.Run("未配置数据库时不能保存", func(t *testing.T) {
		r, _ := newRouter(nil)
		rec := post(t, r, "/api/v1/roster/generate", strings.Replace(smallRoster, "%s", `, "persist": true`, 1))
		assert.NotEqual(t, http.StatusOK, rec.Code)
	})
}

func TestGenerate_InvalidInput(t *testing.T) {
	r, _ := newRouter(nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"请求体无法解析", `{"roster": [`, "INVALID_INPUT"},
		{"员工列表为空", `{"roster": {"year": 2026, "month": 6}}`, "VALIDATION_FAILED"},
		{"资格代码错误", `{"employees": [{"name": "anna", "eligibility": "x"}]}`, "INVALID_INPUT"},
		{"休假日期超出计划期", strings.Replace(smallRoster, "%s", `, "vacation": {"anna": [9]}`, 1), "INVALID_INPUT"},
		{"休假员工未知", strings.Replace(smallRoster, "%s", `, "vacation": {"zoe": [1]}`, 1), "LOOKUP_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, r, "/api/v1/roster/generate", tt.body)
			assert.GreaterOrEqual(t, rec.Code, 400)

			var body middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestEvaluate(t *testing.T) {
	r, _ := newRouter(nil)
	shifts := `, "shifts": [
    {"employee": "anna", "day": 1, "shift": "d"},
    {"employee": "bert", "day": 1, "shift": "n"},
    {"employee": "bert", "day": 2, "shift": "d"},
    {"employee": "anna", "day": 2, "shift": "n"},
    {"employee": "anna", "day": 3, "shift": "d"},
    {"employee": "carl", "day": 3, "shift": "n"}
  ]`

	t.Run("合法排班", func(t *testing.T) {
		rec := post(t, r, "/api/v1/roster/evaluate", strings.Replace(smallRoster, "%s", shifts, 1))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Evaluation struct {
				Valid    bool   `json:"valid"`
				CarryOut string `json:"carry_out"`
			} `json:"evaluation"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Evaluation.Valid)
		assert.Equal(t, "carl", resp.Evaluation.CarryOut)
	})

	t.Run("班次代码错误", func(t *testing.T) {
		bad := `, "shifts": [{"employee": "anna", "day": 1, "shift": "x"}]`
		rec := post(t, r, "/api/v1/roster/evaluate", strings.Replace(smallRoster, "%s", bad, 1))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRules(t *testing.T) {
	r, _ := newRouter(nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp constraints.LibraryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	byName := make(map[string]constraints.ConstraintDefinition, len(resp.Library))
	for _, def := range resp.Library {
		byName[def.Name] = def
	}
	assert.True(t, byName["coverage"].Registered)
	assert.Equal(t, "hard", byName["coverage"].Type)
	assert.Equal(t, "soft", byName["respect_preferences"].Type)
}
