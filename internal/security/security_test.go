package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paiban/roster/pkg/errors"
)

func TestKeyVerifier(t *testing.T) {
	v := NewKeyVerifier([]string{"alpha", " ", "beta"})
	require.True(t, v.Enabled())

	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"第一个密钥", "alpha", true},
		{"第二个密钥", "beta", true},
		{"错误密钥", "gamma", false},
		{"空密钥", "", false},
		{"前缀不算匹配", "alph", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
			}
		})
	}

	t.Run("未配置密钥时放行", func(t *testing.T) {
		open := NewKeyVerifier(nil)
		assert.False(t, open.Enabled())
		assert.NoError(t, open.Verify(""))
	})
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{
			name:     "Bearer token",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer pk_test123") },
			expected: "pk_test123",
		},
		{
			name:     "X-API-Key header",
			setup:    func(r *http.Request) { r.Header.Set("X-API-Key", "pk_test456") },
			expected: "pk_test456",
		},
		{
			name:     "无密钥",
			setup:    func(r *http.Request) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.setup(req)
			assert.Equal(t, tt.expected, ExtractAPIKey(req))
		})
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", ClientKey(req))

	req.Header.Set("X-API-Key", "alpha")
	key := ClientKey(req)
	assert.Contains(t, key, "key:")
	assert.NotContains(t, key, "alpha")
}

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("c1"), "第 %d 次请求应被允许", i+1)
	}
	assert.False(t, rl.Allow("c1"))
	assert.True(t, rl.Allow("c2"), "不同客户端独立计数")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("c1"), "窗口滑过后恢复")

	now = now.Add(2 * time.Minute)
	rl.sweep()
	assert.Empty(t, rl.requests)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("c1"))
	}
}
