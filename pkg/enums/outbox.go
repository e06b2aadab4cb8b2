package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateInventoryRecord OutboxAggregateType = "inventory_record"
	AggregateTenant          OutboxAggregateType = "tenant"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInventoryRecord,
	AggregateTenant,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventInventoryCreated        OutboxEventType = "inventory_created"
	EventInventoryReserved       OutboxEventType = "inventory_reserved"
	EventInventoryReleased       OutboxEventType = "inventory_released"
	EventInventoryCompleted      OutboxEventType = "inventory_completed"
	EventInventoryReturned       OutboxEventType = "inventory_returned"
	EventInventoryAdjusted       OutboxEventType = "inventory_adjusted"
	EventInventoryReorderFlagged OutboxEventType = "inventory_reorder_flagged"
	EventInventoryLowStock       OutboxEventType = "inventory_low_stock"
	EventLedgerDriftDetected     OutboxEventType = "ledger_drift_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInventoryCreated,
	EventInventoryReserved,
	EventInventoryReleased,
	EventInventoryCompleted,
	EventInventoryReturned,
	EventInventoryAdjusted,
	EventInventoryReorderFlagged,
	EventInventoryLowStock,
	EventLedgerDriftDetected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
