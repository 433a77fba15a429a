package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/warehouse-ops/internal/app"
	jobmetrics "github.com/odyssey-erp/warehouse-ops/internal/jobs"
	"github.com/odyssey-erp/warehouse-ops/internal/platform/cache"
	"github.com/odyssey-erp/warehouse-ops/jobs"
)

// The standalone worker drains the events queue only. Tasks that read the
// in-memory ledger stay on the default queue served by the API process.
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

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}

	metrics := jobmetrics.NewMetrics(nil)
	orders := jobs.NewOrderEventJob(logger, metrics)
	lowStock := jobs.NewLowStockJob(nil, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.AsynqOpt(cfg.Redis()),
		Logger:      logger,
		Concurrency: cfg.JobsConcurrency,
		Queues:      map[string]int{jobs.QueueEvents: 1},
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSalesOrderCreated, Handler: orders.Handle},
			{Type: jobs.TaskSalesOrderCanceled, Handler: orders.Handle},
			{Type: jobs.TaskSalesOrderDeleted, Handler: orders.Handle},
			{Type: jobs.TaskInventoryLowStock, Handler: lowStock.Handle},
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
