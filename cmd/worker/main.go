package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

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
		slog.Default().Info("test mode detected, skipping worker startup")
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
	if cfg.BackofficeServiceToken == "" {
		logger.Error("BACKOFFICE_SERVICE_TOKEN is required for the worker")
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var ledgerCache *ledger.Cache
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		ledgerCache = ledger.NewCache(redisClient, cfg.LedgerCacheTTL).WithLogger(logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	idempotency := shared.NewIdempotencyStore(pool)
	api := backoffice.NewClient(cfg.BackofficeBaseURL, cfg.BackofficeTimeout)
	ledgerService := ledger.NewService(api, ledger.ServiceDeps{
		Cache:   ledgerCache,
		Log:     ledger.NewRepository(pool),
		Metrics: metrics,
		Logger:  logger,
	}, ledger.ServiceConfig{
		Strict:        cfg.LedgerStrict,
		DefaultRegion: cfg.SMSDefaultRegion,
	})

	serviceSession := &shared.Session{
		Token:    cfg.BackofficeServiceToken,
		Settings: shared.Settings{BusinessName: cfg.BusinessName, Region: cfg.SMSDefaultRegion},
	}
	invoiceJob := jobs.NewInvoiceSMSJob(ledgerService, serviceSession, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotency, logger, metrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceSMS, Handler: invoiceJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
