package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/types"
)

// InventoryTransaction is an immutable ledger entry. QuantityDelta is the signed
// change booked against available stock; ReservedDelta is the change applied to
// the record's reserved quantity by the same operation.
type InventoryTransaction struct {
	ID                int64                          `gorm:"column:id;primaryKey;autoIncrement"`
	InventoryRecordID uuid.UUID                      `gorm:"column:inventory_record_id;type:uuid;not null;index:idx_inventory_transactions_record_created,priority:1;uniqueIndex:ux_inventory_transactions_reference,priority:1"`
	TenantID          uuid.UUID                      `gorm:"column:tenant_id;type:uuid;not null"`
	TransactionType   enums.InventoryTransactionType `gorm:"column:transaction_type;type:varchar(32);not null;uniqueIndex:ux_inventory_transactions_reference,priority:4"`
	QuantityDelta     int                            `gorm:"column:quantity_delta;not null"`
	ReservedDelta     int                            `gorm:"column:reserved_delta;not null;default:0"`
	ReferenceID       *string                        `gorm:"column:reference_id;uniqueIndex:ux_inventory_transactions_reference,priority:2"`
	ReferenceType     *string                        `gorm:"column:reference_type;uniqueIndex:ux_inventory_transactions_reference,priority:3"`
	Notes             *string                        `gorm:"column:notes"`
	Metadata          types.Metadata                 `gorm:"column:metadata;type:jsonb"`
	CreatedBy         *string                        `gorm:"column:created_by"`
	CreatedAt         time.Time                      `gorm:"column:created_at;autoCreateTime;index:idx_inventory_transactions_record_created,priority:2"`
}

func (InventoryTransaction) TableName() string { return "inventory_transactions" }
