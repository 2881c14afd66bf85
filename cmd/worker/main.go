package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-aging/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-aging/internal/jobs"
	"github.com/odyssey-erp/odyssey-aging/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-aging/jobs"
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

	services, err := app.Open(ctx, cfg, logger, app.OpenOptions{Cache: true, Postgres: true})
	if err != nil {
		logger.Error("open services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close()

	redisOpts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	reportJob := jobs.NewAgingReportJob(services.Aging, services.Loader, services.PDF, services.Postgres, logger, metrics)
	reportJob.OutputDir = cfg.OutputDir

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskAgingReportGenerate, Handler: reportJob.Handle},
		{Type: jobs.TaskAgingCacheInvalidate, Handler: jobs.NewCacheInvalidateHandler(services.Aging, metrics, logger)},
	}
	var cron []jobs.CronRegistration
	if services.Pool != nil {
		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskAgingLedgerRefresh,
			Handler: jobs.NewLedgerRefreshHandler(services.Pool, cfg.Relation(), services.Aging, logger),
		})
		if cfg.LedgerRefreshCron != "" {
			cron = append(cron, jobs.CronRegistration{
				Spec:    cfg.LedgerRefreshCron,
				Task:    jobs.NewLedgerRefreshTask(),
				Options: []asynq.Option{asynq.Unique(time.Hour)},
			})
		}
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   jobs.RedisOpt(redisOpts),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency), slog.Bool("postgres", services.Pool != nil))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
