// 排班服务
// 主程序入口

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/paiban/roster/internal/config"
	"github.com/paiban/roster/internal/database"
	"github.com/paiban/roster/internal/handler"
	"github.com/paiban/roster/internal/metrics"
	"github.com/paiban/roster/internal/middleware"
	"github.com/paiban/roster/internal/repository"
	"github.com/paiban/roster/internal/security"
	"github.com/paiban/roster/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	lc := logger.DefaultConfig()
	lc.Level = cfg.App.LogLevel
	lc.Format = cfg.App.LogFormat
	logger.Init(lc)

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("服务异常退出")
	}
	logger.Info().Msg("服务器已关闭")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.GetRegistry()

	// 数据库可选，未配置时不支持保存排班记录
	var db *database.DB
	var runs handler.RunStore
	if cfg.Database.Enabled() {
		var err error
		db, err = database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		runs = repository.NewRunRepository(db, db)
	}

	limiter := security.NewRateLimiter(cfg.API.RateLimit, time.Minute)
	verifier := security.NewKeyVerifier(cfg.API.Keys)
	if !verifier.Enabled() {
		logger.Warn().Msg("未配置 API_KEYS，接口不做密钥校验")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(reg))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Auth(middleware.AuthConfig{
		Verifier:    verifier,
		RateLimiter: limiter,
		SkipPaths:   []string{"/health", "/version", cfg.Metrics.Path},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "service": cfg.App.Name}
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				middleware.WriteJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["database"] = "ok"
		}
		middleware.WriteJSON(w, http.StatusOK, status)
	})

	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, metrics.HandlerFor(reg))
	}

	rosterHandler := handler.NewRosterHandler(cfg.API, reg, runs)
	r.Route("/api/v1", rosterHandler.Routes)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", db != nil).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.Run(gCtx)
		return nil
	})

	if db != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					s := db.Stats()
					reg.SetDBStats(s.OpenConnections, s.InUse, s.Idle)
				}
			}
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("正在关闭服务器...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器关闭失败: %w", err)
		}
		return nil
	})

	return g.Wait()
}
