package lowstock

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tenantLister interface {
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
}

// JobParams configure the scheduled low-stock sweep.
type JobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Monitor *Monitor
	Tenants tenantLister
	Outbox  outbox.Emitter
	Metrics *metrics.InventoryMetrics
}

// Job sweeps every tenant and queues one inventory_low_stock event per
// tenant that has reorder candidates.
type Job struct {
	logg    *logger.Logger
	db      txRunner
	monitor *Monitor
	tenants tenantLister
	outbox  outbox.Emitter
	metrics *metrics.InventoryMetrics
	now     func() time.Time
}

// NewJob validates the sweep's collaborators.
func NewJob(params JobParams) (*Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Monitor == nil {
		return nil, fmt.Errorf("low stock monitor required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Job{
		logg:    params.Logger,
		db:      params.DB,
		monitor: params.Monitor,
		tenants: params.Tenants,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

func (j *Job) Name() string { return "inventory-low-stock" }

// Run keeps sweeping after a tenant fails; failures are combined into the
// returned error.
func (j *Job) Run(ctx context.Context) error {
	tenants, err := j.tenants.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var (
		errs       error
		candidates int
		flagged    int
		units      int
	)
	sweptAt := j.now().UTC()
	for _, tenantID := range tenants {
		tenantCtx := j.logg.WithTenantID(ctx, tenantID.String())
		items, err := j.monitor.LowStock(tenantCtx, tenantID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		if len(items) == 0 {
			continue
		}
		if err := j.publish(tenantCtx, tenantID, items, sweptAt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		candidates += len(items)
		units += Total(items)
		flagged++
	}

	j.metrics.SetLowStock(candidates)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"tenants_scanned": len(tenants),
		"tenants_flagged": flagged,
		"low_stock_items": candidates,
		"reorder_units":   units,
		"failures":        len(multierr.Errors(errs)),
	}), "low stock sweep complete")
	return errs
}

func (j *Job) publish(ctx context.Context, tenantID uuid.UUID, items []inventory.LowStockItem, sweptAt time.Time) error {
	event := payloads.LowStockEvent{TenantID: tenantID, SweptAt: sweptAt}
	for _, item := range items {
		event.Items = append(event.Items, payloads.LowStockItem{
			ProductID:       item.ProductID,
			SKU:             item.SKU,
			Location:        item.Location,
			Quantity:        item.Quantity,
			ReorderPoint:    item.ReorderPoint,
			ReorderQuantity: item.ReorderQuantity,
		})
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryLowStock,
			AggregateType: enums.AggregateTenant,
			AggregateID:   tenantID,
			TenantID:      tenantID,
			OccurredAt:    sweptAt,
			Data:          event,
		})
	})
}
