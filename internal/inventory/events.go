package inventory

import (
	"context"
	"time"
)

// LowStockEvent is raised when a reservation leaves a SKU at or below the configured threshold.
type LowStockEvent struct {
	SKU       string    `json:"sku"`
	Available int       `json:"available"`
	Threshold int       `json:"threshold"`
	RaisedAt  time.Time `json:"raised_at"`
}

// EventHandler receives inventory events for downstream processing.
type EventHandler interface {
	HandleLowStock(ctx context.Context, evt LowStockEvent) error
}
