package inventory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/internal/catalog"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	opUpsert   = "upsert"
	opReserve  = "reserve"
	opRelease  = "release"
	opComplete = "complete"
	opReturn   = "return"
	opAdjust   = "adjust"

	defaultMaxRetries   = 5
	defaultRetryBackoff = 10 * time.Millisecond
	maxRetryBackoff     = time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the reservation engine. Every mutating call runs as one
// transaction that locks the record, updates its counters and appends the
// matching ledger entry.
type Service interface {
	CreateOrUpdateInventory(ctx context.Context, input UpsertInput) (*models.InventoryRecord, error)
	Reserve(ctx context.Context, input ReserveInput) (*Result, error)
	Release(ctx context.Context, input ReleaseInput) (*Result, error)
	CompleteOrderInventory(ctx context.Context, input CompleteInput) ([]ItemResult, error)
	ProcessReturn(ctx context.Context, input ReturnInput) (*Result, error)
	AdjustStock(ctx context.Context, input AdjustInput) (*Result, error)
	GetLowStockProducts(ctx context.Context, tenantID uuid.UUID) ([]LowStockItem, error)
	GetInventory(ctx context.Context, tenantID, productID uuid.UUID, location *string) (*models.InventoryRecord, error)
	GetInventoryBySKU(ctx context.Context, tenantID uuid.UUID, sku string, location *string) (*models.InventoryRecord, error)
	History(ctx context.Context, input HistoryInput) ([]models.InventoryTransaction, error)
}

// ServiceParams wires the engine's collaborators. Outbox, Metrics and Logger are optional.
type ServiceParams struct {
	DB           txRunner
	Records      *RecordRepository
	Ledger       ledger.Repository
	Catalog      catalog.Lookup
	Outbox       outbox.Emitter
	Metrics      *metrics.InventoryMetrics
	Logger       *logger.Logger
	MaxRetries   int
	RetryBackoff time.Duration
}

type service struct {
	tx         txRunner
	records    *RecordRepository
	ledger     ledger.Repository
	history    ledger.Service
	catalog    catalog.Lookup
	outbox     outbox.Emitter
	metrics    *metrics.InventoryMetrics
	logg       *logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewService builds the reservation engine.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("inventory record repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	history, err := ledger.NewService(params.Ledger)
	if err != nil {
		return nil, err
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &service{
		tx:         params.DB,
		records:    params.Records,
		ledger:     params.Ledger,
		history:    history,
		catalog:    params.Catalog,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       logg,
		maxRetries: maxRetries,
		backoff:    backoff,
	}, nil
}

func (s *service) CreateOrUpdateInventory(ctx context.Context, input UpsertInput) (*models.InventoryRecord, error) {
	start := time.Now()
	ctx = s.logContext(ctx, input.TenantID, input.ProductID, "", "")
	record, err := s.upsert(ctx, input)
	s.finish(ctx, opUpsert, start, nil, err)
	return record, err
}

func (s *service) upsert(ctx context.Context, input UpsertInput) (*models.InventoryRecord, error) {
	if err := validateInput(input, input.Metadata); err != nil {
		return nil, err
	}
	// The catalog read happens before the transaction so it never competes
	// with the locked connection.
	product, err := s.catalog.Product(ctx, input.TenantID, input.ProductID)
	if err != nil {
		return nil, err
	}

	var out *models.InventoryRecord
	err = s.runWithRetry(ctx, opUpsert, func(tx *gorm.DB) error {
		records := s.records.WithTx(tx)
		record, err := records.GetForUpdate(ctx, input.TenantID, input.ProductID, input.Location)
		switch {
		case pkgerrors.IsNotFound(err):
			record = newRecord(input, product)
			if err := records.Create(ctx, record); err != nil {
				return err
			}
			entry := &models.InventoryTransaction{
				TransactionType: enums.InventoryTransactionInitial,
				QuantityDelta:   record.Quantity,
				Notes:           input.Notes,
				Metadata:        input.Metadata.Clone(),
				CreatedBy:       input.CreatedBy,
			}
			if err := s.appendEntry(ctx, tx, record, entry); err != nil {
				return err
			}
			out = record
			return s.emitChange(ctx, tx, enums.EventInventoryCreated, record, entry)
		case err != nil:
			return err
		}

		if input.Quantity < record.ReservedQuantity {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity cannot drop below reserved stock").
				WithDetails(map[string]any{"quantity": input.Quantity, "reserved_quantity": record.ReservedQuantity})
		}
		delta := input.Quantity - record.Quantity
		applyUpsert(record, input)
		if err := records.Update(ctx, record); err != nil {
			return err
		}
		out = record
		if delta == 0 {
			return nil
		}
		entry := &models.InventoryTransaction{
			TransactionType: enums.InventoryTransactionAdjustment,
			QuantityDelta:   delta,
			Notes:           input.Notes,
			Metadata:        input.Metadata.Clone(),
			CreatedBy:       input.CreatedBy,
		}
		if err := s.appendEntry(ctx, tx, record, entry); err != nil {
			return err
		}
		return s.emitChange(ctx, tx, enums.EventInventoryAdjusted, record, entry)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newRecord(input UpsertInput, product *models.Product) *models.InventoryRecord {
	record := &models.InventoryRecord{
		TenantID:  input.TenantID,
		ProductID: input.ProductID,
		Location:  input.Location,
		SKU:       input.SKU,
		Quantity:  input.Quantity,
		Metadata:  input.Metadata.Clone(),
	}
	if record.SKU == nil && product != nil {
		record.SKU = product.SKU
	}
	if input.ReorderPoint != nil {
		record.ReorderPoint = *input.ReorderPoint
	}
	if input.ReorderQuantity != nil {
		record.ReorderQuantity = *input.ReorderQuantity
	}
	return record
}

func applyUpsert(record *models.InventoryRecord, input UpsertInput) {
	record.Quantity = input.Quantity
	if input.SKU != nil {
		record.SKU = input.SKU
	}
	if input.ReorderPoint != nil {
		record.ReorderPoint = *input.ReorderPoint
	}
	if input.ReorderQuantity != nil {
		record.ReorderQuantity = *input.ReorderQuantity
	}
	if input.Metadata != nil {
		record.Metadata = input.Metadata.Clone()
	}
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*Result, error) {
	start := time.Now()
	refType := defaultReferenceType(input.ReferenceType, ReferenceTypeOrder)
	ctx = s.logContext(ctx, input.TenantID, input.ProductID, input.ReferenceID, refType)
	result, err := s.reserve(ctx, input, refType)
	s.finish(ctx, opReserve, start, result, err)
	return result, err
}

func (s *service) reserve(ctx context.Context, input ReserveInput, refType string) (*Result, error) {
	if err := validateInput(input, input.Metadata); err != nil {
		return nil, err
	}

	var result *Result
	err := s.runWithRetry(ctx, opReserve, func(tx *gorm.DB) error {
		record, err := s.records.WithTx(tx).GetForUpdate(ctx, input.TenantID, input.ProductID, input.Location)
		if err != nil {
			return err
		}
		ledgerRepo := s.ledger.WithTx(tx)
		prior, err := ledgerRepo.FindByReference(ctx, record.ID, input.ReferenceID, refType, enums.InventoryTransactionSale)
		if err != nil {
			return err
		}
		if prior != nil {
			released, err := ledgerRepo.FindByReference(ctx, record.ID, input.ReferenceID, refType, enums.InventoryTransactionAdjustment)
			if err != nil {
				return err
			}
			result = duplicateResult(record, prior)
			if released != nil {
				result.Success = false
				result.Code = pkgerrors.CodeStateConflict
				result.Message = "reservation already released"
				result.Entry = released
			}
			return nil
		}

		available := record.Quantity - record.ReservedQuantity
		if available < input.Quantity {
			return pkgerrors.NewInsufficientInventory(input.Quantity, available)
		}
		record.ReservedQuantity += input.Quantity
		entry := &models.InventoryTransaction{
			TransactionType: enums.InventoryTransactionSale,
			QuantityDelta:   -input.Quantity,
			ReservedDelta:   input.Quantity,
			ReferenceID:     strPtr(input.ReferenceID),
			ReferenceType:   strPtr(refType),
			Metadata:        input.Metadata.Clone(),
			CreatedBy:       input.CreatedBy,
		}
		if err := s.commit(ctx, tx, enums.EventInventoryReserved, record, entry); err != nil {
			return err
		}
		result = &Result{Success: true, Message: "reserved", Record: record, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release returns reserved stock. A missing record is reported as an
// unsuccessful result rather than an error.
func (s *service) Release(ctx context.Context, input ReleaseInput) (*Result, error) {
	start := time.Now()
	refType := defaultReferenceType(input.ReferenceType, ReferenceTypeOrder)
	ctx = s.logContext(ctx, input.TenantID, input.ProductID, input.ReferenceID, refType)
	result, err := s.release(ctx, input, refType)
	if pkgerrors.IsNotFound(err) {
		result, err = &Result{Success: false, Code: pkgerrors.CodeNotFound, Message: "inventory record not found"}, nil
	}
	s.finish(ctx, opRelease, start, result, err)
	return result, err
}

func (s *service) release(ctx context.Context, input ReleaseInput, refType string) (*Result, error) {
	if err := validateInput(input, nil); err != nil {
		return nil, err
	}

	var result *Result
	err := s.runWithRetry(ctx, opRelease, func(tx *gorm.DB) error {
		record, err := s.records.WithTx(tx).GetForUpdate(ctx, input.TenantID, input.ProductID, input.Location)
		if err != nil {
			return err
		}
		prior, err := s.ledger.WithTx(tx).FindByReference(ctx, record.ID, input.ReferenceID, refType, enums.InventoryTransactionAdjustment)
		if err != nil {
			return err
		}
		if prior != nil {
			result = duplicateResult(record, prior)
			return nil
		}

		released := min(input.Quantity, record.ReservedQuantity)
		if released == 0 {
			result = &Result{Success: true, Message: "nothing reserved", Record: record}
			return nil
		}
		record.ReservedQuantity -= released
		entry := &models.InventoryTransaction{
			TransactionType: enums.InventoryTransactionAdjustment,
			QuantityDelta:   released,
			ReservedDelta:   -released,
			ReferenceID:     strPtr(input.ReferenceID),
			ReferenceType:   strPtr(refType),
			Notes:           input.Notes,
			CreatedBy:       input.CreatedBy,
		}
		if err := s.commit(ctx, tx, enums.EventInventoryReleased, record, entry); err != nil {
			return err
		}
		result = &Result{Success: true, Message: fmt.Sprintf("released %d", released), Record: record, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ProcessReturn(ctx context.Context, input ReturnInput) (*Result, error) {
	start := time.Now()
	refType := defaultReferenceType(input.ReferenceType, ReferenceTypeReturn)
	ctx = s.logContext(ctx, input.TenantID, input.ProductID, input.ReferenceID, refType)
	result, err := s.processReturn(ctx, input, refType)
	s.finish(ctx, opReturn, start, result, err)
	return result, err
}

func (s *service) processReturn(ctx context.Context, input ReturnInput, refType string) (*Result, error) {
	if err := validateInput(input, input.Metadata); err != nil {
		return nil, err
	}

	var result *Result
	err := s.runWithRetry(ctx, opReturn, func(tx *gorm.DB) error {
		record, err := s.records.WithTx(tx).GetForUpdate(ctx, input.TenantID, input.ProductID, input.Location)
		if err != nil {
			return err
		}
		prior, err := s.ledger.WithTx(tx).FindByReference(ctx, record.ID, input.ReferenceID, refType, enums.InventoryTransactionReturn)
		if err != nil {
			return err
		}
		if prior != nil {
			result = duplicateResult(record, prior)
			return nil
		}

		record.Quantity += input.Quantity
		entry := &models.InventoryTransaction{
			TransactionType: enums.InventoryTransactionReturn,
			QuantityDelta:   input.Quantity,
			ReferenceID:     strPtr(input.ReferenceID),
			ReferenceType:   strPtr(refType),
			Notes:           input.Notes,
			Metadata:        input.Metadata.Clone(),
			CreatedBy:       input.CreatedBy,
		}
		if err := s.commit(ctx, tx, enums.EventInventoryReturned, record, entry); err != nil {
			return err
		}
		result = &Result{Success: true, Message: "returned", Record: record, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdjustStock applies a manual correction such as a damage write-off, a
// purchase receipt or a transfer. On-hand stock never drops below reserved.
func (s *service) AdjustStock(ctx context.Context, input AdjustInput) (*Result, error) {
	start := time.Now()
	refID, refType := "", ""
	if input.ReferenceID != nil {
		refID = *input.ReferenceID
		refType = string(input.Type)
		if input.ReferenceType != nil {
			refType = *input.ReferenceType
		}
	}
	ctx = s.logContext(ctx, input.TenantID, input.ProductID, refID, refType)
	result, err := s.adjust(ctx, input, refID, refType)
	s.finish(ctx, opAdjust, start, result, err)
	return result, err
}

func (s *service) adjust(ctx context.Context, input AdjustInput, refID, refType string) (*Result, error) {
	if err := validateInput(input, input.Metadata); err != nil {
		return nil, err
	}
	if err := checkAdjustment(input.Type, input.Delta); err != nil {
		return nil, err
	}

	var result *Result
	err := s.runWithRetry(ctx, opAdjust, func(tx *gorm.DB) error {
		record, err := s.records.WithTx(tx).GetForUpdate(ctx, input.TenantID, input.ProductID, input.Location)
		if err != nil {
			return err
		}
		if refID != "" {
			prior, err := s.ledger.WithTx(tx).FindByReference(ctx, record.ID, refID, refType, input.Type)
			if err != nil {
				return err
			}
			if prior != nil {
				result = duplicateResult(record, prior)
				return nil
			}
		}

		available := record.Quantity - record.ReservedQuantity
		if input.Delta < 0 && -input.Delta > available {
			return pkgerrors.NewInsufficientInventory(-input.Delta, available)
		}
		record.Quantity += input.Delta
		entry := &models.InventoryTransaction{
			TransactionType: input.Type,
			QuantityDelta:   input.Delta,
			Notes:           input.Notes,
			Metadata:        input.Metadata.Clone(),
			CreatedBy:       input.CreatedBy,
		}
		if refID != "" {
			entry.ReferenceID = strPtr(refID)
			entry.ReferenceType = strPtr(refType)
		}
		if err := s.commit(ctx, tx, enums.EventInventoryAdjusted, record, entry); err != nil {
			return err
		}
		result = &Result{Success: true, Message: "adjusted", Record: record, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkAdjustment(txType enums.InventoryTransactionType, delta int) error {
	switch txType {
	case enums.InventoryTransactionAdjustment,
		enums.InventoryTransactionDamaged,
		enums.InventoryTransactionPurchase,
		enums.InventoryTransactionTransfer:
	case enums.InventoryTransactionInitial,
		enums.InventoryTransactionSale,
		enums.InventoryTransactionReturn:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s entries are booked by their own operation", txType))
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid inventory transaction type %q", txType))
	}
	switch txType.Direction() {
	case enums.DirectionInbound:
		if delta < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s adjustments must add stock", txType))
		}
	case enums.DirectionOutbound:
		if delta > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s adjustments must remove stock", txType))
		}
	case enums.DirectionEither:
	}
	return nil
}

func (s *service) GetLowStockProducts(ctx context.Context, tenantID uuid.UUID) ([]LowStockItem, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	records, err := s.records.ListLowStock(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items := make([]LowStockItem, 0, len(records))
	for _, record := range records {
		items = append(items, lowStockItemFrom(record))
	}
	return items, nil
}

func (s *service) GetInventory(ctx context.Context, tenantID, productID uuid.UUID, location *string) (*models.InventoryRecord, error) {
	if tenantID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and product id are required")
	}
	return s.records.Get(ctx, tenantID, productID, location)
}

func (s *service) GetInventoryBySKU(ctx context.Context, tenantID uuid.UUID, sku string, location *string) (*models.InventoryRecord, error) {
	if tenantID == uuid.Nil || sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and sku are required")
	}
	return s.records.GetBySKU(ctx, tenantID, sku, location)
}

func (s *service) History(ctx context.Context, input HistoryInput) ([]models.InventoryTransaction, error) {
	if err := validateInput(input, nil); err != nil {
		return nil, err
	}
	record, err := s.records.Get(ctx, input.TenantID, input.ProductID, input.Location)
	if err != nil {
		return nil, err
	}
	return s.history.History(ctx, ledger.Query{
		RecordID: record.ID,
		From:     input.From,
		To:       input.To,
		Type:     input.Type,
		Limit:    input.Limit,
	})
}

// commit persists the mutated record, books its ledger entry and queues the
// change event, all on the caller's transaction.
func (s *service) commit(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, record *models.InventoryRecord, entry *models.InventoryTransaction) error {
	if err := s.records.WithTx(tx).Update(ctx, record); err != nil {
		return err
	}
	if err := s.appendEntry(ctx, tx, record, entry); err != nil {
		return err
	}
	return s.emitChange(ctx, tx, event, record, entry)
}

func (s *service) appendEntry(ctx context.Context, tx *gorm.DB, record *models.InventoryRecord, entry *models.InventoryTransaction) error {
	entry.InventoryRecordID = record.ID
	entry.TenantID = record.TenantID
	if err := ledger.ValidateEntry(entry); err != nil {
		return err
	}
	_, err := s.ledger.WithTx(tx).Append(ctx, entry)
	return err
}

func (s *service) emitChange(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, record *models.InventoryRecord, entry *models.InventoryTransaction) error {
	if s.outbox == nil {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateInventoryRecord,
		AggregateID:   record.ID,
		TenantID:      record.TenantID,
		Actor:         actorRef(entry.CreatedBy, record.TenantID),
		Data: payloads.InventoryChangedEvent{
			RecordID:          record.ID,
			TenantID:          record.TenantID,
			ProductID:         record.ProductID,
			Location:          record.Location,
			SKU:               record.SKU,
			TransactionType:   entry.TransactionType,
			QuantityDelta:     entry.QuantityDelta,
			ReservedDelta:     entry.ReservedDelta,
			Quantity:          record.Quantity,
			ReservedQuantity:  record.ReservedQuantity,
			AvailableQuantity: record.AvailableQuantity,
			ReferenceID:       entry.ReferenceID,
			ReferenceType:     entry.ReferenceType,
			LedgerEntryID:     entry.ID,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "queue inventory event")
	}
	return nil
}

// runWithRetry reruns fn in a fresh transaction when the write lost a race:
// a version conflict, a concurrent insert of the same key or reference, or a
// transient lock error reported by the database.
func (s *service) runWithRetry(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	for attempt := 0; ; attempt++ {
		err := s.tx.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if attempt >= s.maxRetries || !shouldRetry(err) {
			return codedError(err)
		}
		s.metrics.IncRetry(op)
		s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt+1), "retrying inventory write")
		if werr := sleepBackoff(ctx, s.backoff, attempt); werr != nil {
			return codedError(err)
		}
	}
}

// codedError treats anything the transaction returned without a code as a
// storage failure, so callers can redeliver it.
func codedError(err error) error {
	if pkgerrors.As(err) != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "inventory transaction")
}

func shouldRetry(err error) bool {
	return errors.Is(err, errVersionConflict) ||
		errors.Is(err, errRecordExists) ||
		errors.Is(err, ledger.ErrDuplicateEntry) ||
		db.IsTransient(err)
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << attempt
	if delay <= 0 || delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *service) logContext(ctx context.Context, tenantID, productID uuid.UUID, refID, refType string) context.Context {
	fields := map[string]any{
		"tenant_id":  tenantID.String(),
		"product_id": productID.String(),
	}
	if refID != "" {
		fields["reference_id"] = refID
		fields["reference_type"] = refType
	}
	return s.logg.WithFields(ctx, fields)
}

// finish records the operation outcome. Business rejections never log at error level.
func (s *service) finish(ctx context.Context, op string, start time.Time, result *Result, err error) {
	outcome := outcomeFor(result, err)
	s.metrics.Observe(op, outcome, time.Since(start))

	ctx = s.logg.WithField(ctx, "operation", op)
	switch outcome {
	case metrics.OutcomeSuccess, metrics.OutcomeDuplicate:
		s.logg.Debug(ctx, "inventory operation applied")
	case metrics.OutcomeInsufficient:
		if details, ok := pkgerrors.InsufficientDetails(err); ok {
			ctx = s.logg.WithFields(ctx, map[string]any{"requested": details.Requested, "available": details.Available})
		}
		s.logg.Info(ctx, "insufficient inventory")
	case metrics.OutcomeNotFound:
		s.logg.Warn(ctx, "inventory record not found")
	case metrics.OutcomeRejected:
		s.logg.Info(s.logg.WithField(ctx, "reason", errorMessage(err)), "inventory operation rejected")
	default:
		s.logg.Error(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "inventory operation failed", err)
	}
}

func outcomeFor(result *Result, err error) string {
	switch {
	case err == nil && result != nil && result.Code == pkgerrors.CodeStateConflict:
		return metrics.OutcomeRejected
	case err == nil && result != nil && result.Duplicate:
		return metrics.OutcomeDuplicate
	case err == nil && result != nil && result.Code == pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsInsufficientInventory(err):
		return metrics.OutcomeInsufficient
	case pkgerrors.IsNotFound(err):
		return metrics.OutcomeNotFound
	case pkgerrors.IsExpected(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func duplicateResult(record *models.InventoryRecord, prior *models.InventoryTransaction) *Result {
	return &Result{
		Success:   true,
		Duplicate: true,
		Message:   "reference already applied",
		Record:    record,
		Entry:     prior,
	}
}

func actorRef(createdBy *string, tenantID uuid.UUID) *outbox.ActorRef {
	if createdBy == nil || *createdBy == "" {
		return nil
	}
	return &outbox.ActorRef{ID: *createdBy, TenantID: tenantID}
}

func defaultReferenceType(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func errorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func strPtr(value string) *string {
	return &value
}
