package app

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	jobmetrics "github.com/odyssey-erp/warehouse-ops/internal/jobs"
	"github.com/odyssey-erp/warehouse-ops/internal/observability"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
	"github.com/odyssey-erp/warehouse-ops/internal/shared"
	"github.com/odyssey-erp/warehouse-ops/jobs"
)

// EventSink receives domain events from both services. *jobs.Client is the
// production implementation.
type EventSink interface {
	sales.IntegrationHandler
	inventory.EventHandler
}

// Deps are the external collaborators of the service graph.
type Deps struct {
	Logger    *slog.Logger
	Config    *Config
	Redis     *redis.Client
	Events    EventSink
	Inspector jobs.QueueInspector
	Metrics   *observability.Metrics
}

// Services is the wired service graph.
type Services struct {
	Ledger     *inventory.Ledger
	Inventory  *inventory.Service
	Sales      *sales.Service
	JobMetrics *jobmetrics.Metrics
	Router     http.Handler
}

// Build wires the ledger, the inventory and sales services and their HTTP
// handlers.
func Build(deps Deps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{DefaultTenant: sales.DefaultTenantID}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	var (
		inventoryEvents inventory.EventHandler
		salesEvents     sales.IntegrationHandler
	)
	if deps.Events != nil {
		inventoryEvents = deps.Events
		salesEvents = deps.Events
	}

	audit := shared.NewAuditLogger(logger)
	ledger := inventory.NewLedger()
	inventoryService := inventory.NewService(ledger, audit, inventory.ServiceConfig{
		LowStockThreshold: cfg.LowStockThreshold,
		Logger:            logger.With(slog.String("module", "inventory")),
		Metrics:           metrics,
	}, inventoryEvents)

	store := sales.NewStore()
	salesService := sales.NewService(store, inventoryService, sales.NewSequencer(store), audit, sales.ServiceConfig{
		DefaultTenant: cfg.DefaultTenant,
		Logger:        logger.With(slog.String("module", "sales")),
		Metrics:       metrics,
	}, salesEvents)

	var idem *shared.IdempotencyStore
	if deps.Redis != nil {
		idem = shared.NewIdempotencyStore(deps.Redis, cfg.IdempotencyTTL)
	}

	var jobHandler *jobs.Handler
	if deps.Inspector != nil {
		jobHandler = jobs.NewHandler(deps.Inspector, logger)
	}

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		SalesHandler:     sales.NewHandler(logger, salesService, idem),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	return &Services{
		Ledger:     ledger,
		Inventory:  inventoryService,
		Sales:      salesService,
		JobMetrics: jobmetrics.NewMetrics(metrics.Registerer()),
		Router:     router,
	}
}

// TaskHandlers returns the asynq handlers served by a worker that shares the
// process with the services.
func (s *Services) TaskHandlers(logger *slog.Logger) []jobs.TaskHandler {
	orders := jobs.NewOrderEventJob(logger, s.JobMetrics)
	lowStock := jobs.NewLowStockJob(s.Inventory, logger, s.JobMetrics)
	integrity := jobs.NewLedgerIntegrityJob(s.Ledger, logger, s.JobMetrics)
	return []jobs.TaskHandler{
		{Type: jobs.TaskSalesOrderCreated, Handler: orders.Handle},
		{Type: jobs.TaskSalesOrderCanceled, Handler: orders.Handle},
		{Type: jobs.TaskSalesOrderDeleted, Handler: orders.Handle},
		{Type: jobs.TaskInventoryLowStock, Handler: lowStock.Handle},
		{Type: jobs.TaskLedgerIntegrity, Handler: integrity.Handle},
	}
}
