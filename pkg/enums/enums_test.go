package enums

import "testing"

func TestParseInventoryTransactionType(t *testing.T) {
	cases := map[string]InventoryTransactionType{
		"SALE":       InventoryTransactionSale,
		"return":     InventoryTransactionReturn,
		" Damaged ":  InventoryTransactionDamaged,
		"ADJUSTMENT": InventoryTransactionAdjustment,
		"initial":    InventoryTransactionInitial,
		"PURCHASE":   InventoryTransactionPurchase,
		"transfer":   InventoryTransactionTransfer,
	}
	for raw, want := range cases {
		got, err := ParseInventoryTransactionType(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s got %s", raw, want, got)
		}
	}
	if _, err := ParseInventoryTransactionType("RESTOCK"); err == nil {
		t.Fatal("expected unknown type to fail")
	}
}

func TestInventoryTransactionTypeDirection(t *testing.T) {
	if InventoryTransactionDamaged.Direction() != DirectionOutbound {
		t.Fatal("damaged must be outbound")
	}
	if InventoryTransactionPurchase.Direction() != DirectionInbound {
		t.Fatal("purchase must be inbound")
	}
	if InventoryTransactionTransfer.Direction() != DirectionEither {
		t.Fatal("transfer may go either way")
	}
	if InventoryTransactionType("bogus").IsValid() {
		t.Fatal("bogus type must be invalid")
	}
}

func TestOutboxEnums(t *testing.T) {
	if _, err := ParseOutboxEventType("inventory_reserved"); err != nil {
		t.Fatalf("expected reserved event to parse: %v", err)
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected unknown aggregate to fail")
	}
}
