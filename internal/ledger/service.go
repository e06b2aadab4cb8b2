package ledger

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Service validates ledger writes and answers audit reads.
type Service interface {
	Record(ctx context.Context, entry *models.InventoryTransaction) (int64, error)
	History(ctx context.Context, q Query) ([]models.InventoryTransaction, error)
	Reconcile(ctx context.Context, record *models.InventoryRecord) (*Reconciliation, error)
}

// Reconciliation compares a record's counters with what its ledger implies.
type Reconciliation struct {
	RecordID         uuid.UUID `json:"record_id"`
	Quantity         int       `json:"quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	LedgerAvailable  int64     `json:"ledger_available"`
	LedgerReserved   int64     `json:"ledger_reserved"`
	LedgerQuantity   int64     `json:"ledger_quantity"`
}

// Balanced reports whether on-hand and reserved stock both match the ledger.
func (r Reconciliation) Balanced() bool {
	return int64(r.Quantity) == r.LedgerQuantity && int64(r.ReservedQuantity) == r.LedgerReserved
}

// Drift is the on-hand difference between the record and its ledger.
func (r Reconciliation) Drift() int64 {
	return int64(r.Quantity) - r.LedgerQuantity
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, entry *models.InventoryTransaction) (int64, error) {
	if err := ValidateEntry(entry); err != nil {
		return 0, err
	}
	return s.repo.Append(ctx, entry)
}

// ValidateEntry checks the fields every ledger entry must carry. Only INITIAL
// entries may book zero stock.
func ValidateEntry(entry *models.InventoryTransaction) error {
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger entry is required")
	}
	if entry.InventoryRecordID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory record id is required")
	}
	if entry.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if !entry.TransactionType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid inventory transaction type %q", entry.TransactionType))
	}
	if entry.QuantityDelta == 0 && entry.ReservedDelta == 0 && entry.TransactionType != enums.InventoryTransactionInitial {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger entry must move stock")
	}
	if entry.ReferenceID != nil && entry.ReferenceType == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference type is required with a reference id")
	}
	if err := entry.Metadata.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ledger metadata")
	}
	return nil
}

func (s *service) History(ctx context.Context, q Query) ([]models.InventoryTransaction, error) {
	if q.RecordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory record id is required")
	}
	if q.Type != nil && !q.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid inventory transaction type %q", *q.Type))
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "history range end precedes start")
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultHistoryLimit
	case q.Limit > maxHistoryLimit:
		q.Limit = maxHistoryLimit
	}
	return s.repo.Query(ctx, q)
}

func (s *service) Reconcile(ctx context.Context, record *models.InventoryRecord) (*Reconciliation, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory record is required")
	}
	totals, err := s.repo.Sums(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{
		RecordID:         record.ID,
		Quantity:         record.Quantity,
		ReservedQuantity: record.ReservedQuantity,
		LedgerAvailable:  totals.QuantityTotal,
		LedgerReserved:   totals.ReservedTotal,
		LedgerQuantity:   totals.QuantityTotal + totals.ReservedTotal,
	}, nil
}
