package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-ops/internal/inventory"
	"github.com/odyssey-erp/warehouse-ops/internal/sales"
	"github.com/odyssey-erp/warehouse-ops/internal/shared"
)

type recordingSink struct {
	mu       sync.Mutex
	created  []sales.OrderEvent
	lowStock []inventory.LowStockEvent
}

func (s *recordingSink) HandleOrderCreated(_ context.Context, evt sales.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, evt)
	return nil
}

func (s *recordingSink) HandleOrderCanceled(context.Context, sales.OrderEvent) error { return nil }
func (s *recordingSink) HandleOrderDeleted(context.Context, sales.OrderEvent) error  { return nil }

func (s *recordingSink) HandleLowStock(_ context.Context, evt inventory.LowStockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lowStock = append(s.lowStock, evt)
	return nil
}

func testConfig() *Config {
	return &Config{
		DefaultTenant:     "default",
		LowStockThreshold: 5,
		IdempotencyTTL:    time.Hour,
		AppRequestTimeout: 5 * time.Second,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildServesOrderFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sink := &recordingSink{}

	svc := Build(Deps{Config: testConfig(), Redis: rdb, Events: sink})
	router := svc.Router

	rec := do(t, router, http.MethodPut, "/inventory/A/WH1", `{"on_hand":10}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := `{"customer_id":"C1","order_date":"2024-05-15","lines":[{"sku":"A","ordered_qty":6}]}`
	headers := map[string]string{shared.TenantHeader: "t1", sales.IdempotencyHeader: "req-1"}
	rec = do(t, router, http.MethodPost, "/sales/orders", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order sales.SalesOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, "t1", order.TenantID)
	require.Equal(t, "SO-20240515-001", order.OrderNumber)
	require.Equal(t, 4, svc.Inventory.Available("A"))

	rec = do(t, router, http.MethodPost, "/sales/orders", body, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 4, svc.Inventory.Available("A"))

	require.Len(t, sink.created, 1)
	require.Len(t, sink.lowStock, 1)
	require.Equal(t, 4, sink.lowStock[0].Available)

	rec = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "odyssey_sales_orders_total")
	require.Contains(t, rec.Body.String(), "odyssey_inventory_reservations_total")
	require.Contains(t, rec.Body.String(), "odyssey_http_requests_total")
}

func TestRouterDefaults(t *testing.T) {
	svc := Build(Deps{Config: testConfig()})

	rec := do(t, svc.Router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, svc.Router, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = do(t, svc.Router, http.MethodGet, "/jobs/health", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	svc := Build(Deps{Config: cfg})

	require.Equal(t, http.StatusOK, do(t, svc.Router, http.MethodGet, "/healthz", "", nil).Code)
	rec := do(t, svc.Router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestTaskHandlersCoverEveryTask(t *testing.T) {
	svc := Build(Deps{Config: testConfig()})
	handlers := svc.TaskHandlers(nil)
	types := make(map[string]bool, len(handlers))
	for _, h := range handlers {
		require.NotNil(t, h.Handler)
		types[h.Type] = true
	}
	for _, want := range []string{"sales:order_created", "sales:order_canceled", "sales:order_deleted", "inventory:low_stock", "inventory:ledger_integrity"} {
		require.True(t, types[want], want)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("LOW_STOCK_THRESHOLD", "3")
	t.Setenv("IDEMPOTENCY_TTL", "2h")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.AppAddr)
	require.Equal(t, 3, cfg.LowStockThreshold)
	require.Equal(t, 2*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, "default", cfg.DefaultTenant)
	require.False(t, cfg.IsProduction())

	t.Setenv("LOW_STOCK_THRESHOLD", "-1")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	cfg.DefaultTenant = ""
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.JobsEnabled = true
	require.Error(t, cfg.Validate())
	cfg.RedisAddr = "127.0.0.1:6379"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "127.0.0.1:6379", cfg.Redis().Addr)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "sku", "A")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "A", entry["sku"])
}

func TestTestModeFlag(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
