// Package security 提供API密钥校验与请求频率限制
package security

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/paiban/roster/pkg/errors"
)

// ErrInvalidAPIKey 密钥缺失或不匹配
var ErrInvalidAPIKey = apperrors.New(apperrors.CodeUnauthorized, "无效的API密钥")

// KeyVerifier 静态API密钥校验器，只保存密钥摘要
type KeyVerifier struct {
	digests [][32]byte
}

// NewKeyVerifier 创建校验器，keys 为空时放行全部请求
func NewKeyVerifier(keys []string) *KeyVerifier {
	v := &KeyVerifier{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			v.digests = append(v.digests, sha256.Sum256([]byte(k)))
		}
	}
	return v
}

// Enabled 是否配置了密钥
func (v *KeyVerifier) Enabled() bool {
	return len(v.digests) > 0
}

// Verify 常数时间比较密钥摘要
func (v *KeyVerifier) Verify(key string) error {
	if !v.Enabled() {
		return nil
	}
	if key == "" {
		return ErrInvalidAPIKey
	}
	d := sha256.Sum256([]byte(key))
	match := 0
	for _, want := range v.digests {
		match |= subtle.ConstantTimeCompare(d[:], want[:])
	}
	if match != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// ExtractAPIKey 从请求中提取API密钥
func ExtractAPIKey(r *http.Request) string {
	// 1. 从 Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// 2. 从 X-API-Key header
	return r.Header.Get("X-API-Key")
}

// ClientKey 频率限制使用的客户端标识
func ClientKey(r *http.Request) string {
	if key := ExtractAPIKey(r); key != "" {
		sum := sha256.Sum256([]byte(key))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimiter 滑动窗口频率限制器
type RateLimiter struct {
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewRateLimiter 创建频率限制器，limit<=0 表示不限
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := prune(rl.requests[key], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Run 定期清理过期记录，直到 ctx 结束
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := rl.now().Add(-rl.window)
	for key, reqs := range rl.requests {
		if valid := prune(reqs, windowStart); len(valid) > 0 {
			rl.requests[key] = valid
		} else {
			delete(rl.requests, key)
		}
	}
}

func prune(reqs []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(reqs) && !reqs[i].After(windowStart) {
		i++
	}
	return reqs[i:]
}
