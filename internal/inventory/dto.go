package inventory

import (
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/types"
	"github.com/google/uuid"
)

// Default reference types stamped on ledger entries.
const (
	ReferenceTypeOrder           = "order"
	ReferenceTypeOrderCompletion = "order_completion"
	ReferenceTypeReturn          = "return"
)

// UpsertInput creates a record or resets its on-hand quantity.
// Nil optional fields leave the stored value untouched on update.
type UpsertInput struct {
	TenantID        uuid.UUID      `json:"tenant_id" validate:"required"`
	ProductID       uuid.UUID      `json:"product_id" validate:"required"`
	Quantity        int            `json:"quantity" validate:"min=0"`
	Location        *string        `json:"location,omitempty" validate:"omitempty,min=1,max=128"`
	SKU             *string        `json:"sku,omitempty" validate:"omitempty,min=1,max=128"`
	ReorderPoint    *int           `json:"reorder_point,omitempty" validate:"omitempty,min=0"`
	ReorderQuantity *int           `json:"reorder_quantity,omitempty" validate:"omitempty,min=0"`
	Metadata        types.Metadata `json:"metadata,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
	CreatedBy       *string        `json:"created_by,omitempty"`
}

// ReserveInput holds stock against an in-flight order.
type ReserveInput struct {
	TenantID      uuid.UUID      `json:"tenant_id" validate:"required"`
	ProductID     uuid.UUID      `json:"product_id" validate:"required"`
	Quantity      int            `json:"quantity" validate:"gt=0"`
	ReferenceID   string         `json:"reference_id" validate:"required,max=255"`
	ReferenceType string         `json:"reference_type,omitempty" validate:"omitempty,max=64"`
	Location      *string        `json:"location,omitempty" validate:"omitempty,min=1,max=128"`
	Metadata      types.Metadata `json:"metadata,omitempty"`
	CreatedBy     *string        `json:"created_by,omitempty"`
}

// ReleaseInput gives back stock held by ReserveInput with the same reference.
type ReleaseInput struct {
	TenantID      uuid.UUID `json:"tenant_id" validate:"required"`
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"gt=0"`
	ReferenceID   string    `json:"reference_id" validate:"required,max=255"`
	ReferenceType string    `json:"reference_type,omitempty" validate:"omitempty,max=64"`
	Location      *string   `json:"location,omitempty" validate:"omitempty,min=1,max=128"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedBy     *string   `json:"created_by,omitempty"`
}

// CompleteItem is one line of a completed order.
type CompleteItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
	Location  *string   `json:"location,omitempty" validate:"omitempty,min=1,max=128"`
}

// CompleteInput converts an order's reservations into permanent deductions.
type CompleteInput struct {
	TenantID  uuid.UUID      `json:"tenant_id" validate:"required"`
	OrderRef  string         `json:"order_ref" validate:"required,max=255"`
	Items     []CompleteItem `json:"items" validate:"required,min=1,dive"`
	CreatedBy *string        `json:"created_by,omitempty"`
}

// ReturnInput puts sold stock back on hand.
type ReturnInput struct {
	TenantID      uuid.UUID      `json:"tenant_id" validate:"required"`
	ProductID     uuid.UUID      `json:"product_id" validate:"required"`
	Quantity      int            `json:"quantity" validate:"gt=0"`
	ReferenceID   string         `json:"reference_id" validate:"required,max=255"`
	ReferenceType string         `json:"reference_type,omitempty" validate:"omitempty,max=64"`
	Location      *string        `json:"location,omitempty" validate:"omitempty,min=1,max=128"`
	Notes         *string        `json:"notes,omitempty"`
	Metadata      types.Metadata `json:"metadata,omitempty"`
	CreatedBy     *string        `json:"created_by,omitempty"`
}

// AdjustInput books a manual stock correction. Delta is signed and must
// agree with the direction of Type.
type AdjustInput struct {
	TenantID      uuid.UUID                      `json:"tenant_id" validate:"required"`
	ProductID     uuid.UUID                      `json:"product_id" validate:"required"`
	Delta         int                            `json:"delta" validate:"ne=0"`
	Type          enums.InventoryTransactionType `json:"type" validate:"required"`
	ReferenceID   *string                        `json:"reference_id,omitempty" validate:"omitempty,max=255"`
	ReferenceType *string                        `json:"reference_type,omitempty" validate:"omitempty,max=64"`
	Location      *string                        `json:"location,omitempty" validate:"omitempty,min=1,max=128"`
	Notes         *string                        `json:"notes,omitempty"`
	Metadata      types.Metadata                 `json:"metadata,omitempty"`
	CreatedBy     *string                        `json:"created_by,omitempty"`
}

// HistoryInput reads a record's ledger, newest first.
type HistoryInput struct {
	TenantID  uuid.UUID                       `json:"tenant_id" validate:"required"`
	ProductID uuid.UUID                       `json:"product_id" validate:"required"`
	Location  *string                         `json:"location,omitempty"`
	From      *time.Time                      `json:"from,omitempty"`
	To        *time.Time                      `json:"to,omitempty"`
	Type      *enums.InventoryTransactionType `json:"type,omitempty"`
	Limit     int                             `json:"limit,omitempty" validate:"min=0"`
}

// Result reports the outcome of a single-record operation.
type Result struct {
	Success bool
	// Duplicate is set when the reference was already applied; Record and
	// Entry then describe the earlier booking. A reservation whose reference
	// was since released comes back with Success false and STATE_CONFLICT.
	Duplicate bool
	Message   string
	Code      pkgerrors.Code
	Record    *models.InventoryRecord
	Entry     *models.InventoryTransaction
}

// ItemResult is the per-line outcome of CompleteOrderInventory.
type ItemResult struct {
	ProductID      uuid.UUID
	Location       *string
	Quantity       int
	Success        bool
	Duplicate      bool
	ReorderFlagged bool
	Message        string
	Code           pkgerrors.Code
	Record         *models.InventoryRecord
}

// LowStockItem is a reorder candidate.
type LowStockItem struct {
	RecordID        uuid.UUID `json:"record_id"`
	ProductID       uuid.UUID `json:"product_id"`
	SKU             *string   `json:"sku,omitempty"`
	Location        *string   `json:"location,omitempty"`
	Quantity        int       `json:"quantity"`
	ReorderPoint    int       `json:"reorder_point"`
	ReorderQuantity int       `json:"reorder_quantity"`
}

func lowStockItemFrom(record models.InventoryRecord) LowStockItem {
	return LowStockItem{
		RecordID:        record.ID,
		ProductID:       record.ProductID,
		SKU:             record.SKU,
		Location:        record.Location,
		Quantity:        record.Quantity,
		ReorderPoint:    record.ReorderPoint,
		ReorderQuantity: record.ReorderQuantity,
	}
}
