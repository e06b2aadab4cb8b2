package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/types"
)

// InventoryRecord holds the on-hand, reserved and available counts for one
// product at one location of a tenant.
type InventoryRecord struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	TenantID          uuid.UUID      `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_inventory_records_key,priority:1;index:idx_inventory_records_tenant_sku,priority:1"`
	ProductID         uuid.UUID      `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_records_key,priority:2"`
	Location          *string        `gorm:"column:location"`
	LocationKey       string         `gorm:"column:location_key;not null;default:'';uniqueIndex:ux_inventory_records_key,priority:3"`
	SKU               *string        `gorm:"column:sku;index:idx_inventory_records_tenant_sku,priority:2"`
	Quantity          int            `gorm:"column:quantity;not null;default:0"`
	ReservedQuantity  int            `gorm:"column:reserved_quantity;not null;default:0"`
	AvailableQuantity int            `gorm:"column:available_quantity;not null;default:0"`
	ReorderPoint      int            `gorm:"column:reorder_point;not null;default:0"`
	ReorderQuantity   int            `gorm:"column:reorder_quantity;not null;default:0"`
	Metadata          types.Metadata `gorm:"column:metadata;type:jsonb"`
	Version           int64          `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryRecord) TableName() string { return "inventory_records" }

// LocationKeyFor normalises an optional location into the unique key column.
func LocationKeyFor(location *string) string {
	if location == nil {
		return ""
	}
	return *location
}

// Recompute sets AvailableQuantity from Quantity and ReservedQuantity.
func (r *InventoryRecord) Recompute() {
	r.AvailableQuantity = r.Quantity - r.ReservedQuantity
}

// Consistent reports whether the counters satisfy
// 0 <= reserved <= quantity and available == quantity - reserved.
func (r *InventoryRecord) Consistent() bool {
	if r.ReservedQuantity < 0 || r.ReservedQuantity > r.Quantity {
		return false
	}
	return r.AvailableQuantity == r.Quantity-r.ReservedQuantity
}

// LowStock reports whether the record sits at or under a configured reorder point.
func (r *InventoryRecord) LowStock() bool {
	return r.ReorderPoint > 0 && r.Quantity <= r.ReorderPoint
}
