package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		publicMsg string
		retryable bool
		expected  bool
	}{
		{code: CodeValidation, publicMsg: "validation failed", expected: true},
		{code: CodeNotFound, publicMsg: "resource not found", retryable: true},
		{code: CodeConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, publicMsg: "state transition disallowed", expected: true},
		{code: CodeInsufficientInventory, publicMsg: "not enough stock", expected: true},
		{code: CodeStorage, publicMsg: "storage unavailable", retryable: true},
		{code: CodeInternal, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, publicMsg: "dependency unavailable", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.Expected != tt.expected {
			t.Fatalf("code %s expected Expected=%v got %v", tt.code, tt.expected, meta.Expected)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.PublicMessage != "internal server error" {
		t.Fatalf("expected internal metadata, got %+v", meta)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeStorage, cause, "append ledger entry")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeStorage {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if !IsStorage(fmt.Errorf("outer: %w", wrapped)) {
		t.Fatalf("IsStorage should see through wrapping")
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("storage errors are retryable")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotFound, "no record")
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors carry no code")
	}
}

func TestInsufficientInventory(t *testing.T) {
	err := NewInsufficientInventory(7, 6)
	if err.Error() != "INSUFFICIENT_INVENTORY: insufficient inventory: requested 7, available 6" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsInsufficientInventory(err) || IsRetryable(err) || !IsExpected(err) {
		t.Fatalf("unexpected classification for %v", err)
	}
	details, ok := InsufficientDetails(fmt.Errorf("reserve: %w", err))
	if !ok || details.Requested != 7 || details.Available != 6 {
		t.Fatalf("unexpected details %+v ok=%v", details, ok)
	}
	if _, ok := InsufficientDetails(New(CodeNotFound, "x")); ok {
		t.Fatalf("not found error has no insufficient details")
	}
}

func TestDumpIncludesPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_inventory_records_key", TableName: "inventory_records"}
	dump := Dump(Wrap(CodeStorage, pgErr, "insert record"))
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_inventory_records_key" {
		t.Fatalf("missing pg detail: %+v", dump)
	}
	if dump.Code != CodeStorage || !dump.Retryable {
		t.Fatalf("unexpected classification: %+v", dump)
	}
	fields := dump.Fields()
	if fields["pg_table"] != "inventory_records" {
		t.Fatalf("expected pg_table field, got %v", fields)
	}
	if empty := Dump(nil); empty.TopMessage != "" || empty.Chain != nil {
		t.Fatalf("nil dump should be empty: %+v", empty)
	}
}
