package payloads

import (
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/google/uuid"
)

// InventoryChangedEvent describes one committed stock movement and the
// resulting counters of the record.
type InventoryChangedEvent struct {
	RecordID          uuid.UUID                      `json:"record_id"`
	TenantID          uuid.UUID                      `json:"tenant_id"`
	ProductID         uuid.UUID                      `json:"product_id"`
	Location          *string                        `json:"location,omitempty"`
	SKU               *string                        `json:"sku,omitempty"`
	TransactionType   enums.InventoryTransactionType `json:"transaction_type"`
	QuantityDelta     int                            `json:"quantity_delta"`
	ReservedDelta     int                            `json:"reserved_delta"`
	Quantity          int                            `json:"quantity"`
	ReservedQuantity  int                            `json:"reserved_quantity"`
	AvailableQuantity int                            `json:"available_quantity"`
	ReferenceID       *string                        `json:"reference_id,omitempty"`
	ReferenceType     *string                        `json:"reference_type,omitempty"`
	LedgerEntryID     int64                          `json:"ledger_entry_id"`
}

// ReorderFlaggedEvent signals that an order completion left a record at or
// below its reorder point. Reordering itself happens downstream.
type ReorderFlaggedEvent struct {
	RecordID        uuid.UUID `json:"record_id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	ProductID       uuid.UUID `json:"product_id"`
	Location        *string   `json:"location,omitempty"`
	SKU             *string   `json:"sku,omitempty"`
	Quantity        int       `json:"quantity"`
	ReorderPoint    int       `json:"reorder_point"`
	ReorderQuantity int       `json:"reorder_quantity"`
	OrderRef        string    `json:"order_ref"`
}

// LowStockItem is one reorder candidate in a sweep.
type LowStockItem struct {
	ProductID       uuid.UUID `json:"product_id"`
	SKU             *string   `json:"sku,omitempty"`
	Location        *string   `json:"location,omitempty"`
	Quantity        int       `json:"quantity"`
	ReorderPoint    int       `json:"reorder_point"`
	ReorderQuantity int       `json:"reorder_quantity"`
}

// LowStockEvent is emitted once per tenant by the scheduled low-stock sweep.
type LowStockEvent struct {
	TenantID uuid.UUID      `json:"tenant_id"`
	Items    []LowStockItem `json:"items"`
	SweptAt  time.Time      `json:"swept_at"`
}

// LedgerDriftEvent reports a record whose counters disagree with its ledger.
type LedgerDriftEvent struct {
	RecordID         uuid.UUID `json:"record_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	ProductID        uuid.UUID `json:"product_id"`
	Location         *string   `json:"location,omitempty"`
	Quantity         int       `json:"quantity"`
	LedgerQuantity   int64     `json:"ledger_quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	LedgerReserved   int64     `json:"ledger_reserved"`
	DetectedAt       time.Time `json:"detected_at"`
}
