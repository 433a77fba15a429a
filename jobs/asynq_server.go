package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	"github.com/odyssey-erp/warehouse-ops/internal/platform/httpx"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	// Queues maps queue names to priorities. Defaults to events and default.
	Queues   map[string]int
	Handlers []TaskHandler
	Cron     []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{QueueEvents: 3, QueueDefault: 1}
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		Logger:      asynqLogger{logger: logger},
		LogLevel:    asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.ErrorContext(ctx, "job failed", slog.String("task", task.Type()), slog.Any("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC, Logger: asynqLogger{logger: logger}})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	w.logger.Info("worker started")
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue. It doubles as the event sink of the
// sales and inventory services.
type Client struct {
	client enqueuer
	logger *slog.Logger
}

var (
	_ sales.IntegrationHandler = (*Client)(nil)
	_ inventory.EventHandler   = (*Client)(nil)
)

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Client {
	return newClient(asynq.NewClient(redisOpts), logger)
}

func newClient(e enqueuer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: e, logger: logger}
}

// Enqueue submits an arbitrary task. A task id collision is not an error.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Debug("task already enqueued", slog.String("task", task.Type()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err)
	}
	return info, nil
}

// HandleOrderCreated enqueues TaskSalesOrderCreated.
func (c *Client) HandleOrderCreated(ctx context.Context, evt sales.OrderEvent) error {
	return c.enqueueOrder(ctx, TaskSalesOrderCreated, evt)
}

// HandleOrderCanceled enqueues TaskSalesOrderCanceled.
func (c *Client) HandleOrderCanceled(ctx context.Context, evt sales.OrderEvent) error {
	return c.enqueueOrder(ctx, TaskSalesOrderCanceled, evt)
}

// HandleOrderDeleted enqueues TaskSalesOrderDeleted.
func (c *Client) HandleOrderDeleted(ctx context.Context, evt sales.OrderEvent) error {
	return c.enqueueOrder(ctx, TaskSalesOrderDeleted, evt)
}

// HandleLowStock enqueues TaskInventoryLowStock.
func (c *Client) HandleLowStock(ctx context.Context, evt inventory.LowStockEvent) error {
	task, err := NewLowStockTask(evt)
	if err != nil {
		return err
	}
	_, err = c.Enqueue(ctx, task)
	return err
}

func (c *Client) enqueueOrder(ctx context.Context, taskType string, evt sales.OrderEvent) error {
	task, err := NewOrderEventTask(taskType, evt)
	if err != nil {
		return err
	}
	_, err = c.Enqueue(ctx, task)
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// QueueInspector reports queue statistics.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Retry   int    `json:"retry"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	queues := []string{QueueEvents, QueueDefault}
	out := make([]queueHealth, 0, len(queues))
	for _, q := range queues {
		if h.inspector == nil {
			out = append(out, queueHealth{Queue: q})
			continue
		}
		info, err := h.inspector.GetQueueInfo(q)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				out = append(out, queueHealth{Queue: q})
				continue
			}
			h.logger.Warn("jobs health", slog.String("queue", q), slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "queue inspection failed")
			return
		}
		out = append(out, queueHealth{Queue: q, Pending: info.Pending, Active: info.Active, Retry: info.Retry})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queues": out})
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...any) {
	l.logger.Debug(fmt.Sprint(args...), slog.String("component", "asynq"))
}
func (l asynqLogger) Info(args ...any) {
	l.logger.Info(fmt.Sprint(args...), slog.String("component", "asynq"))
}
func (l asynqLogger) Warn(args ...any) {
	l.logger.Warn(fmt.Sprint(args...), slog.String("component", "asynq"))
}
func (l asynqLogger) Error(args ...any) {
	l.logger.Error(fmt.Sprint(args...), slog.String("component", "asynq"))
}
func (l asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...), slog.String("component", "asynq"))
	os.Exit(1)
}
