package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/haven-social/haven/commod"
	"github.com/haven-social/haven/commod/cachestore"
	"github.com/haven-social/haven/commod/contentstore"
	"github.com/haven-social/haven/commod/countstore"
	"github.com/haven-social/haven/commod/oracle"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

type Server struct {
	logger *slog.Logger
	engine *commod.Engine
	db     *gorm.DB
	echo   *echo.Echo
	sched  *cron.Cron

	healthRecomputeInterval time.Duration
}

type Config struct {
	Logger                  *slog.Logger
	RedisURL                string
	OracleHost              string
	OracleToken             string
	OracleRateLimit         int
	HealthRecomputeInterval time.Duration
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	rules, err := rulestore.NewGormRuleStore(db)
	if err != nil {
		return nil, err
	}
	queue, err := queuestore.NewGormQueueStore(db)
	if err != nil {
		return nil, err
	}

	var counters countstore.CountStore
	var scores cachestore.ScoreCache
	if config.RedisURL != "" {
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, err
		}
		counters = cnt

		csh, err := cachestore.NewRedisScoreCache(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, err
		}
		scores = csh
	} else {
		counters = countstore.NewMemCountStore()
		scores = cachestore.NewMemScoreCache(20_000, 30*time.Minute)
	}

	var scorer oracle.Oracle
	if config.OracleHost != "" {
		scorer = oracle.NewHTTPOracle(config.OracleHost, config.OracleToken, config.OracleRateLimit)
	} else {
		logger.Warn("no oracle host configured; score-based rules will never match")
	}

	eng := &commod.Engine{
		Logger:   logger,
		Rules:    rules,
		Queue:    queue,
		Counters: counters,
		Oracle:   scorer,
		Scores:   scores,
		// TODO: swap in the platform content API client once its surface settles
		Content:            contentstore.NewMemContentStore(),
		AutomationHandlers: commod.DefaultAutomationHandlers(),
	}

	interval := config.HealthRecomputeInterval
	if interval == 0 {
		interval = 15 * time.Minute
	}

	return &Server{
		logger:                  logger,
		engine:                  eng,
		db:                      db,
		healthRecomputeInterval: interval,
	}, nil
}

func (s *Server) StartScheduler() {
	s.sched = cron.New()
	s.sched.Schedule(cron.Every(s.healthRecomputeInterval), cron.FuncJob(func() {
		if err := s.engine.RecomputeAllHealthScores(context.Background()); err != nil {
			s.logger.Error("periodic health recompute failed", "err", err)
		}
	}))
	s.sched.Start()
	s.logger.Info("health recompute scheduler started", "interval", s.healthRecomputeInterval)
}

func (s *Server) StopScheduler() {
	if s.sched != nil {
		s.sched.Stop()
	}
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	if err := s.db.Exec("SELECT 1").Error; err != nil {
		s.logger.Error("healthcheck can't connect to database", "err", err)
		return c.JSON(500, HealthStatus{Status: "error", Version: versioninfo.Short(), Message: "can't connect to database"})
	}
	return c.JSON(200, HealthStatus{Status: "ok", Version: versioninfo.Short()})
}

func (s *Server) RunAPI(listen string) error {

	s.logger.Info("configuring HTTP server")
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method} uri=${uri} status=${status} latency=${latency_human}\n",
	}))

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		code := 500
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		s.logger.Warn("HTTP request error", "statusCode", code, "path", ctx.Path(), "err", err)
		ctx.Response().WriteHeader(code)
	}

	e.Use(middleware.CORS())
	e.GET("/_health", s.handleHealthCheck)

	e.POST("/api/content", s.handleIngestContent)
	e.GET("/api/queue", s.handleListQueue)
	e.POST("/api/queue/:id/dispose", s.handleDispose)
	e.GET("/api/communities/:id/health", s.handleGetHealth)
	e.POST("/api/communities/:id/health/recompute", s.handleRecomputeHealth)
	e.POST("/api/rules", s.handleCreateRule)
	e.GET("/api/rules", s.handleListRules)
	e.PUT("/api/rules/:id/active", s.handleSetRuleActive)
	e.POST("/api/automation/rules", s.handleCreateAutomationRule)
	e.GET("/api/automation/rules", s.handleListAutomationRules)
	e.POST("/api/automation/rules/:id/execute", s.handleExecuteAutomationRule)
	e.GET("/api/automation/rules/:id/executions", s.handleListAutomationExecutions)
	s.echo = e

	s.logger.Info("starting moderation API daemon", "bind", listen)
	return s.echo.Start(listen)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// maps engine error taxonomy to HTTP status codes
func apiError(err error) error {
	switch {
	case errors.Is(err, commod.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, commod.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, commod.ErrRuleInactive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, rulestore.ErrInvalidRule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
