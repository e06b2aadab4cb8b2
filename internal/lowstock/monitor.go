package lowstock

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/google/uuid"
)

type source interface {
	GetLowStockProducts(ctx context.Context, tenantID uuid.UUID) ([]inventory.LowStockItem, error)
}

// Monitor is the read-only view schedulers and notifiers use to pull reorder
// candidates. It never mutates inventory.
type Monitor struct {
	source source
}

// NewMonitor wraps the inventory engine's low-stock query.
func NewMonitor(src source) (*Monitor, error) {
	if src == nil {
		return nil, fmt.Errorf("low stock source required")
	}
	return &Monitor{source: src}, nil
}

// LowStock returns the tenant's records at or below their reorder point.
func (m *Monitor) LowStock(ctx context.Context, tenantID uuid.UUID) ([]inventory.LowStockItem, error) {
	items, err := m.source.GetLowStockProducts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []inventory.LowStockItem{}
	}
	return items, nil
}

// Total sums the reorder quantity suggested across items.
func Total(items []inventory.LowStockItem) int {
	total := 0
	for _, item := range items {
		total += item.ReorderQuantity
	}
	return total
}
