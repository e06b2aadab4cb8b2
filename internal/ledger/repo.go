package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const referenceIndexName = "ux_inventory_transactions_reference"

// ErrDuplicateEntry is returned by Append when the reference key was already booked.
var ErrDuplicateEntry = errors.New("ledger entry already recorded for reference")

// Query filters a ledger read. Zero values mean "no filter".
type Query struct {
	RecordID uuid.UUID
	From     *time.Time
	To       *time.Time
	Type     *enums.InventoryTransactionType
	Limit    int
}

// Totals is the running sum of one record's ledger.
type Totals struct {
	QuantityTotal int64
	ReservedTotal int64
}

// Repository manages persistence for inventory ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.InventoryTransaction) (int64, error)
	Query(ctx context.Context, q Query) ([]models.InventoryTransaction, error)
	FindByReference(ctx context.Context, recordID uuid.UUID, referenceID, referenceType string, txType enums.InventoryTransactionType) (*models.InventoryTransaction, error)
	Sums(ctx context.Context, recordID uuid.UUID) (Totals, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.InventoryTransaction) (int64, error) {
	if entry == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ledger entry is required")
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if db.IsUniqueViolation(err, referenceIndexName) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrDuplicateEntry, "append ledger entry")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "append ledger entry")
	}
	return entry.ID, nil
}

func (r *repository) Query(ctx context.Context, q Query) ([]models.InventoryTransaction, error) {
	stmt := r.db.WithContext(ctx).
		Where("inventory_record_id = ?", q.RecordID)
	if q.From != nil {
		stmt = stmt.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		stmt = stmt.Where("created_at <= ?", *q.To)
	}
	if q.Type != nil {
		stmt = stmt.Where("transaction_type = ?", *q.Type)
	}
	if q.Limit > 0 {
		stmt = stmt.Limit(q.Limit)
	}

	var entries []models.InventoryTransaction
	if err := stmt.Order("id DESC").Find(&entries).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "query ledger")
	}
	return entries, nil
}

func (r *repository) FindByReference(ctx context.Context, recordID uuid.UUID, referenceID, referenceType string, txType enums.InventoryTransactionType) (*models.InventoryTransaction, error) {
	var entry models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("inventory_record_id = ? AND reference_id = ? AND reference_type = ? AND transaction_type = ?",
			recordID, referenceID, referenceType, txType).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "find ledger entry by reference")
	}
	return &entry, nil
}

func (r *repository) Sums(ctx context.Context, recordID uuid.UUID) (Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).
		Model(&models.InventoryTransaction{}).
		Select("COALESCE(SUM(quantity_delta), 0) AS quantity_total, COALESCE(SUM(reserved_delta), 0) AS reserved_total").
		Where("inventory_record_id = ?", recordID).
		Scan(&totals).Error
	if err != nil {
		return Totals{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "sum ledger")
	}
	return totals, nil
}
