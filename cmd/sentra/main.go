package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/sentra-orders/sentra/internal/app"
	"github.com/sentra-orders/sentra/internal/observability"
	"github.com/sentra-orders/sentra/internal/orders"
	"github.com/sentra-orders/sentra/internal/platform/cache"
	"github.com/sentra-orders/sentra/internal/platform/db"
	"github.com/sentra-orders/sentra/internal/quotes"
	"github.com/sentra-orders/sentra/internal/shared"
	"github.com/sentra-orders/sentra/internal/timeline"
	"github.com/sentra-orders/sentra/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	validate := validator.New()
	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	orderCache := orders.NewCache(redisClient, cfg.OrderCacheTTL)
	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(orderRepo, orderCache, auditLogger, metrics, logger)
	orderHandler := orders.NewHandler(logger, orderService, validate)

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo, orderService, auditLogger, logger)
	quoteHandler := quotes.NewHandler(logger, quoteService, validate, idempotencyStore)

	timelineCache := timeline.NewCache(redisClient, cfg.TimelineCacheTTL)
	timelineService := timeline.NewService(orderService, quoteService, timelineCache, logger)
	timelineHandler := timeline.NewHandler(timelineService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		OrdersHandler:   orderHandler,
		QuotesHandler:   quoteHandler,
		TimelineHandler: timelineHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
