package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recordKeyIndexName = "ux_inventory_records_key"

var (
	errVersionConflict = errors.New("inventory record version changed")
	errRecordExists    = errors.New("inventory record already exists")
)

// RecordRepository persists inventory records keyed by tenant, product and location.
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository returns a repository bound to the provided database.
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *RecordRepository) WithTx(tx *gorm.DB) *RecordRepository {
	if tx == nil {
		return r
	}
	return &RecordRepository{db: tx}
}

func (r *RecordRepository) keyed(ctx context.Context, tenantID, productID uuid.UUID, location *string) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND location_key = ?", tenantID, productID, models.LocationKeyFor(location))
}

// Get loads the record for a product at a location. A nil location addresses
// the product's location-less record.
func (r *RecordRepository) Get(ctx context.Context, tenantID, productID uuid.UUID, location *string) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.keyed(ctx, tenantID, productID, location).First(&record).Error; err != nil {
		return nil, recordLookupError(err, productID.String())
	}
	return &record, nil
}

// GetBySKU loads a tenant's record by SKU at a location.
func (r *RecordRepository) GetBySKU(ctx context.Context, tenantID uuid.UUID, sku string, location *string) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ? AND location_key = ?", tenantID, sku, models.LocationKeyFor(location)).
		First(&record).Error
	if err != nil {
		return nil, recordLookupError(err, sku)
	}
	return &record, nil
}

// GetForUpdate loads the record and holds a row lock until the surrounding
// transaction ends. Drivers without row locks (sqlite) fall back to the
// version check in Update.
func (r *RecordRepository) GetForUpdate(ctx context.Context, tenantID, productID uuid.UUID, location *string) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.keyed(ctx, tenantID, productID, location).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record).Error
	if err != nil {
		return nil, recordLookupError(err, productID.String())
	}
	return &record, nil
}

// LockByID is GetForUpdate keyed by record id; audits use it to re-read a
// record before acting on a mismatch.
func (r *RecordRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, recordLookupError(err, id.String())
	}
	return &record, nil
}

// Create inserts a new record. A concurrent insert of the same key surfaces
// as errRecordExists so the caller can retry against the winner's row.
func (r *RecordRepository) Create(ctx context.Context, record *models.InventoryRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Version == 0 {
		record.Version = 1
	}
	record.LocationKey = models.LocationKeyFor(record.Location)
	record.Recompute()
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, recordKeyIndexName) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, errRecordExists, "create inventory record")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create inventory record")
	}
	return nil
}

// Update writes the record's mutable columns if nobody changed it since it
// was read, then advances the in-memory version.
func (r *RecordRepository) Update(ctx context.Context, record *models.InventoryRecord) error {
	record.Recompute()
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]any{
			"quantity":           record.Quantity,
			"reserved_quantity":  record.ReservedQuantity,
			"available_quantity": record.AvailableQuantity,
			"sku":                record.SKU,
			"reorder_point":      record.ReorderPoint,
			"reorder_quantity":   record.ReorderQuantity,
			"metadata":           record.Metadata,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         now,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, res.Error, "update inventory record")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, errVersionConflict, "update inventory record")
	}
	record.Version++
	record.UpdatedAt = now
	return nil
}

// ListLowStock returns the tenant's records sitting at or under a positive reorder point.
func (r *RecordRepository) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reorder_point > 0 AND quantity <= reorder_point", tenantID).
		Order("quantity ASC, product_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list low stock records")
	}
	return records, nil
}

// ListTenants returns every tenant that owns at least one record.
func (r *RecordRepository) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	var tenants []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Distinct("tenant_id").
		Order("tenant_id").
		Pluck("tenant_id", &tenants).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list inventory tenants")
	}
	return tenants, nil
}

// ListPage walks all records in id order, starting after afterID.
func (r *RecordRepository) ListPage(ctx context.Context, afterID uuid.UUID, limit int) ([]models.InventoryRecord, error) {
	stmt := r.db.WithContext(ctx).Order("id ASC")
	if afterID != uuid.Nil {
		stmt = stmt.Where("id > ?", afterID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	var records []models.InventoryRecord
	if err := stmt.Find(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list inventory records")
	}
	return records, nil
}

func recordLookupError(err error, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
			WithDetails(map[string]any{"key": key})
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load inventory record")
}
