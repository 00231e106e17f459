package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ohada-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/ohada-ledger/internal/jobs"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/cache"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
	"github.com/odyssey-erp/ohada-ledger/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	services := app.NewServices(cfg, pool, redisClient, observability.NewLedgerMetrics(nil), logger)
	metrics := jobmetrics.NewMetrics(nil)

	depreciationJob := jobs.NewDepreciationJob(services.Assets, services.FiscalYears, logger, metrics)
	integrityJob := jobs.NewIntegrityJob(services.Ledger, services.FiscalYears, logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.DepreciationCron != "" {
		task, err := jobs.NewDepreciationTask(jobs.DepreciationPayload{})
		if err != nil {
			logger.Error("build depreciation task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.DepreciationCron, Task: task})
	}
	if cfg.IntegrityCron != "" {
		task, err := jobs.NewIntegrityTask(jobs.IntegrityPayload{})
		if err != nil {
			logger.Error("build integrity task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.IntegrityCron, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationMonthly, Handler: depreciationJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
