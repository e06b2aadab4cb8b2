package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const defaultAuditBatchSize = 500

// LedgerAuditJobParams configure the ledger reconciliation sweep.
type LedgerAuditJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Records   *inventory.RecordRepository
	Ledger    ledger.Repository
	Outbox    outbox.Emitter
	Metrics   *metrics.InventoryMetrics
	BatchSize int
}

// NewLedgerAuditJob builds the job that compares every record's counters with
// the sum of its ledger and reports mismatches as ledger_drift_detected events.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("record repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAuditBatchSize
	}
	return &ledgerAuditJob{
		logg:    params.Logger,
		db:      params.DB,
		records: params.Records,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type ledgerAuditJob struct {
	logg    *logger.Logger
	db      txRunner
	records *inventory.RecordRepository
	ledger  ledger.Repository
	outbox  outbox.Emitter
	metrics *metrics.InventoryMetrics
	batch   int
	now     func() time.Time
}

func (j *ledgerAuditJob) Name() string { return "inventory-ledger-audit" }

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	reader, err := ledger.NewService(j.ledger)
	if err != nil {
		return err
	}

	var (
		errs    error
		scanned int
		drifted int
		after   uuid.UUID
	)
	for {
		page, err := j.records.ListPage(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, err)
		}
		for i := range page {
			record := &page[i]
			scanned++
			recon, err := reader.Reconcile(ctx, record)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("record %s: %w", record.ID, err))
				continue
			}
			if recon.Balanced() {
				continue
			}
			confirmed, err := j.confirm(ctx, record.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("record %s: %w", record.ID, err))
				continue
			}
			if confirmed {
				drifted++
			}
		}
		if len(page) < j.batch {
			break
		}
		after = page[len(page)-1].ID
	}

	j.metrics.AddDrift(drifted)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"records_scanned": scanned,
		"records_drifted": drifted,
		"failures":        len(multierr.Errors(errs)),
	})
	if drifted > 0 {
		j.logg.Warn(logCtx, "ledger audit found drift")
	} else {
		j.logg.Info(logCtx, "ledger audit complete")
	}
	return errs
}

// confirm re-reads the record under its row lock so an operation that
// committed between the page read and the ledger sum is not reported.
func (j *ledgerAuditJob) confirm(ctx context.Context, recordID uuid.UUID) (bool, error) {
	drifted := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := j.records.WithTx(tx).LockByID(ctx, recordID)
		if err != nil {
			return err
		}
		reader, err := ledger.NewService(j.ledger.WithTx(tx))
		if err != nil {
			return err
		}
		recon, err := reader.Reconcile(ctx, record)
		if err != nil {
			return err
		}
		if recon.Balanced() {
			return nil
		}
		drifted = true
		return j.emitDrift(ctx, tx, record, recon)
	})
	return drifted, err
}

func (j *ledgerAuditJob) emitDrift(ctx context.Context, tx *gorm.DB, record *models.InventoryRecord, recon *ledger.Reconciliation) error {
	detectedAt := j.now().UTC()
	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"record_id":         record.ID.String(),
		"tenant_id":         record.TenantID.String(),
		"product_id":        record.ProductID.String(),
		"quantity":          recon.Quantity,
		"ledger_quantity":   recon.LedgerQuantity,
		"reserved_quantity": recon.ReservedQuantity,
		"ledger_reserved":   recon.LedgerReserved,
	}), "inventory record out of balance with ledger")
	return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLedgerDriftDetected,
		AggregateType: enums.AggregateInventoryRecord,
		AggregateID:   record.ID,
		TenantID:      record.TenantID,
		OccurredAt:    detectedAt,
		Data: payloads.LedgerDriftEvent{
			RecordID:         record.ID,
			TenantID:         record.TenantID,
			ProductID:        record.ProductID,
			Location:         record.Location,
			Quantity:         recon.Quantity,
			LedgerQuantity:   recon.LedgerQuantity,
			ReservedQuantity: recon.ReservedQuantity,
			LedgerReserved:   recon.LedgerReserved,
			DetectedAt:       detectedAt,
		},
	})
}
