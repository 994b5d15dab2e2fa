package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/manullamas/adx-agent/internal/agent"
	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/database"
	"github.com/manullamas/adx-agent/internal/harness"
	"github.com/manullamas/adx-agent/internal/httpserver"
	"github.com/manullamas/adx-agent/internal/metrics"
	"github.com/manullamas/adx-agent/internal/middleware"
	"github.com/manullamas/adx-agent/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting adx-agent",
		zap.String("env", cfg.Agent.Env),
		zap.String("name", cfg.Agent.Name),
		zap.String("server", cfg.Harness.ServerURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick the persistence backends. Flat files are the default; Redis
	// and Postgres replace them when configured.
	var historyStore storage.HistoryStore = storage.NewCSVHistoryStore(cfg.History.Path, logger)
	var campaignLog storage.CampaignLog = storage.NewCSVCampaignLog(cfg.History.CampaignLogPath, logger)

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisDB(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis not available, using flat-file history", zap.Error(err))
		} else {
			defer rdb.Close()
			historyStore = storage.NewRedisHistoryStore(rdb.Client, logger)
			logger.Info("connected to Redis")
		}
	}

	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Database)
		if err != nil {
			logger.Warn("PostgreSQL not available, using flat-file campaign log", zap.Error(err))
		} else {
			defer db.Close()
			pgLog := storage.NewPostgresCampaignLog(db.Pool)
			if err := pgLog.Migrate(ctx); err != nil {
				logger.Fatal("migrate campaign log", zap.Error(err))
			}
			campaignLog = pgLog
			logger.Info("connected to PostgreSQL")
		}
	}

	var archive agent.Archiver
	if cfg.ClickHouse.Enabled {
		ch, err := database.NewClickHouseDB(ctx, cfg.ClickHouse)
		if err != nil {
			logger.Warn("ClickHouse not available, archiving disabled", zap.Error(err))
		} else {
			defer ch.Close()
			chArchive := storage.NewClickHouseHistoryArchive(ch.Conn, logger)
			if err := chArchive.Migrate(ctx); err != nil {
				logger.Fatal("migrate impression archive", zap.Error(err))
			}
			archive = chArchive
			logger.Info("connected to ClickHouse")
		}
	}

	m := metrics.NewMetrics("adx_agent")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	engine := agent.NewEngine(cfg, historyStore, campaignLog, archive, m, logger, rng)
	client := harness.NewClient(cfg.Harness, engine, logger)

	// Ops endpoint: health, metrics and live game state.
	handler := httpserver.NewServer(&httpserver.Dependencies{
		Engine: engine,
		Config: cfg,
		Logger: logger,
	})
	handler = middleware.NewLoggingMiddleware(logger).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(logger).Handler(handler)
	srv := &http.Server{
		Addr:        ":" + cfg.Metrics.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()
	defer srv.Close()

	// Cancel the game on interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := client.Run(ctx); err != nil {
		logger.Fatal("game failed", zap.Error(err))
	}

	logger.Info("agent stopped", zap.String("run_id", engine.RunID()))
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config

	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	// Set log level
	switch cfg.Log.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
