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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/warehouse-ops/cmd/odyssey/cli"
	"github.com/odyssey-erp/warehouse-ops/internal/app"
	"github.com/odyssey-erp/warehouse-ops/internal/observability"
	"github.com/odyssey-erp/warehouse-ops/internal/platform/cache"
	"github.com/odyssey-erp/warehouse-ops/jobs"
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

	if len(os.Args) > 2 && os.Args[1] == "jobs" {
		if err := cli.Run(ctx, cfg.RedisAddr, os.Args[2:], os.Stdout); err != nil {
			slog.Default().Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, idempotency keys and jobs disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	deps := app.Deps{
		Logger:  logger,
		Config:  cfg,
		Redis:   redisClient,
		Metrics: observability.NewMetrics(),
	}

	jobsOn := cfg.JobsEnabled && redisClient != nil
	if jobsOn {
		client := jobs.NewClient(cache.AsynqOpt(cfg.Redis()), logger)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(cache.AsynqOpt(cfg.Redis()))
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		deps.Events = client
		deps.Inspector = inspector
	}

	services := app.Build(deps)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      services.Router,
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if jobsOn {
		worker, err := newEmbeddedWorker(cfg, logger, services)
		if err != nil {
			logger.Error("init worker", slog.Any("error", err))
			os.Exit(1)
		}
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// newEmbeddedWorker serves every task type, including those that need the
// in-process ledger.
func newEmbeddedWorker(cfg *app.Config, logger *slog.Logger, services *app.Services) (*jobs.Worker, error) {
	var cron []jobs.CronRegistration
	if cfg.LedgerCheckCron != "" {
		task, err := jobs.NewLedgerIntegrityTask(time.Now().UTC())
		if err != nil {
			return nil, err
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.LedgerCheckCron, Task: task})
	}
	return jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.AsynqOpt(cfg.Redis()),
		Logger:      logger.With(slog.String("component", "worker")),
		Concurrency: cfg.JobsConcurrency,
		Handlers:    services.TaskHandlers(logger),
		Cron:        cron,
	})
}
