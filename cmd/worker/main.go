package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sentra-orders/sentra/internal/app"
	"github.com/sentra-orders/sentra/internal/observability"
	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/platform/db"
	"github.com/sentra-orders/sentra/internal/quotes"
	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/jobs"
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(orderRepo, nil, auditLogger, metrics, logger)

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo, orderService, auditLogger, logger)

	sweepTask, err := jobs.NewQuoteExpireTask(jobs.QuoteExpirePayload{Limit: cfg.QuoteSweepLimit})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeQuoteExpire, Handler: jobs.NewQuoteExpireHandler(quoteService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.QuoteSweepSpec, Task: sweepTask, Options: []asynq.Option{asynq.Queue(jobs.QueueSweeps), asynq.MaxRetry(3)}},
		},
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
