package catalog

import (
	"context"
	"errors"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lookup is the slice of the product catalog the inventory engine depends on.
type Lookup interface {
	Product(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
}

// Repository reads products from the shared catalog table.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Product loads a tenant's product. Missing products yield a NOT_FOUND error.
func (r *Repository) Product(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found in catalog").
			WithDetails(map[string]any{"product_id": productID.String(), "tenant_id": tenantID.String()})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load catalog product")
	}
	return &product, nil
}

// Create inserts a catalog product; used by seeding and tests.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "create catalog product")
	}
	return product, nil
}
