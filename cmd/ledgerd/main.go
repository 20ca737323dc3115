package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/odyssey-erp/buyer-ledger/internal/app"
	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
	"github.com/odyssey-erp/buyer-ledger/internal/observability"
	"github.com/odyssey-erp/buyer-ledger/internal/platform/backoffice"
	"github.com/odyssey-erp/buyer-ledger/internal/platform/cache"
	"github.com/odyssey-erp/buyer-ledger/internal/platform/db"
	"github.com/odyssey-erp/buyer-ledger/internal/shared"
	"github.com/odyssey-erp/buyer-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var ledgerCache *ledger.Cache
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, transaction cache disabled", slog.Any("error", err))
	} else {
		ledgerCache = ledger.NewCache(redisClient, cfg.LedgerCacheTTL).WithLogger(logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	jobClient, err := jobs.NewClient(cfg.Redis().AsynqOpt())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sessionManager := shared.NewSessionManager(cfg.SessionJWTSecret, shared.Settings{
		BusinessName: cfg.BusinessName,
		Region:       cfg.SMSDefaultRegion,
	})

	api := backoffice.NewClient(cfg.BackofficeBaseURL, cfg.BackofficeTimeout)
	if err := api.Ping(ctx); err != nil {
		logger.Warn("backoffice ping", slog.Any("error", err))
	}

	ledgerService := ledger.NewService(api, ledger.ServiceDeps{
		Cache:       ledgerCache,
		Log:         ledger.NewRepository(dbpool),
		Idempotency: shared.NewIdempotencyStore(dbpool),
		Queue:       jobClient,
		Metrics:     metrics,
		Logger:      logger,
	}, ledger.ServiceConfig{
		Strict:        cfg.LedgerStrict,
		DefaultRegion: cfg.SMSDefaultRegion,
	})
	ledgerHandler := ledger.NewHandler(logger, ledgerService, cfg.Location())

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		LedgerHandler:  ledgerHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("ledger listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
