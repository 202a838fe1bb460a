// Package middleware 提供HTTP中间件
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paiban/roster/internal/metrics"
	"github.com/paiban/roster/internal/security"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/logger"
)

// RequestID 读取或生成 X-Request-ID 并写入上下文
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging 记录请求日志与指标，路径使用路由模板以控制指标基数
func Logging(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			path := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			logger.WithContext(r.Context()).Info().
				Str("method", r.Method).
				Str("path", path).
				Int("status", rw.statusCode).
				Dur("duration", duration).
				Msg("请求处理")

			if reg != nil {
				reg.RecordRequest(r.Method, path, rw.statusCode, duration)
			}
		})
	}
}

// Recovery 捕获panic并返回500
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.WithContext(r.Context()).Error().
					Interface("panic", p).
					Str("path", r.URL.Path).
					Msg("请求处理发生panic")
				WriteError(w, apperrors.New(apperrors.CodeInternal, "服务器内部错误"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// AuthConfig 认证配置
type AuthConfig struct {
	Verifier    *security.KeyVerifier
	RateLimiter *security.RateLimiter
	SkipPaths   []string // 跳过认证的路径前缀
}

// Auth API密钥校验与频率限制
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range cfg.SkipPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.Verifier != nil {
				if err := cfg.Verifier.Verify(security.ExtractAPIKey(r)); err != nil {
					logger.WithContext(r.Context()).Warn().
						Str("remote", r.RemoteAddr).
						Msg("API密钥校验失败")
					WriteError(w, err)
					return
				}
			}

			if cfg.RateLimiter != nil && !cfg.RateLimiter.Allow(security.ClientKey(r)) {
				w.Header().Set("Retry-After", "60")
				WriteError(w, apperrors.New(apperrors.CodeRateLimited, "请求过于频繁，请稍后重试"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders 安全响应头
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteError 按错误码写出JSON错误
func WriteError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: true, Code: string(apperrors.GetCode(err)), Message: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}
	status := apperrors.GetHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Int("status", status).Msg("请求处理失败")
	}
	WriteJSON(w, status, resp)
}

// WriteJSON 写出JSON响应
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
