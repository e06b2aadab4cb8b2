package enums

import (
	"fmt"
	"strings"
)

// InventoryTransactionType is the transaction_type column of inventory_transactions.
type InventoryTransactionType string

const (
	InventoryTransactionInitial    InventoryTransactionType = "initial"
	InventoryTransactionPurchase   InventoryTransactionType = "purchase"
	InventoryTransactionSale       InventoryTransactionType = "sale"
	InventoryTransactionAdjustment InventoryTransactionType = "adjustment"
	InventoryTransactionReturn     InventoryTransactionType = "return"
	InventoryTransactionDamaged    InventoryTransactionType = "damaged"
	InventoryTransactionTransfer   InventoryTransactionType = "transfer"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionInitial,
	InventoryTransactionPurchase,
	InventoryTransactionSale,
	InventoryTransactionAdjustment,
	InventoryTransactionReturn,
	InventoryTransactionDamaged,
	InventoryTransactionTransfer,
}

// StockDirection describes which way a transaction type is allowed to move on-hand stock.
type StockDirection int

const (
	DirectionEither StockDirection = iota
	DirectionInbound
	DirectionOutbound
)

// String implements fmt.Stringer.
func (t InventoryTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical inventory transaction enum.
func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Direction returns the permitted sign of QuantityDelta for manual adjustments.
func (t InventoryTransactionType) Direction() StockDirection {
	switch t {
	case InventoryTransactionInitial, InventoryTransactionPurchase, InventoryTransactionReturn:
		return DirectionInbound
	case InventoryTransactionSale, InventoryTransactionDamaged:
		return DirectionOutbound
	case InventoryTransactionAdjustment, InventoryTransactionTransfer:
		return DirectionEither
	default:
		return DirectionEither
	}
}

// ParseInventoryTransactionType converts raw input into InventoryTransactionType.
// Upper-case wire values (SALE, RETURN) are accepted.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
