package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the slice of the storefront catalog the inventory engine reads.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	SKU       *string   `gorm:"column:sku"`
	Title     string    `gorm:"column:title;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
