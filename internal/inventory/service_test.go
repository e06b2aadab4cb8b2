package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
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
	"github.com/angelmondragon/packfinderz-inventory/pkg/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.InventoryRecord{},
		&models.InventoryTransaction{},
		&models.OutboxEvent{},
	))
	return conn
}

type harness struct {
	db       *gorm.DB
	svc      Service
	catalog  *catalog.Repository
	ledger   ledger.Repository
	outbox   *outbox.Repository
	tenantID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithDB(t, openTestDB(t))
}

func newHarnessWithDB(t *testing.T, conn *gorm.DB) *harness {
	t.Helper()
	ledgerRepo := ledger.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		DB:           db.Wrap(conn),
		Records:      NewRecordRepository(conn),
		Ledger:       ledgerRepo,
		Catalog:      catalogRepo,
		Outbox:       outbox.NewService(outboxRepo, logger.Nop()),
		Metrics:      metrics.NewInventoryMetrics(prometheus.NewRegistry()),
		Logger:       logger.Nop(),
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return &harness{
		db:       conn,
		svc:      svc,
		catalog:  catalogRepo,
		ledger:   ledgerRepo,
		outbox:   outboxRepo,
		tenantID: uuid.New(),
	}
}

func (h *harness) seedProduct(t *testing.T, sku string) uuid.UUID {
	t.Helper()
	product := &models.Product{TenantID: h.tenantID, Title: "Blue Dream 3.5g", IsActive: true}
	if sku != "" {
		product.SKU = strPtr(sku)
	}
	_, err := h.catalog.Create(context.Background(), product)
	require.NoError(t, err)
	return product.ID
}

func (h *harness) stock(t *testing.T, quantity, reorderPoint int) uuid.UUID {
	t.Helper()
	productID := h.seedProduct(t, "")
	_, err := h.svc.CreateOrUpdateInventory(context.Background(), UpsertInput{
		TenantID:     h.tenantID,
		ProductID:    productID,
		Quantity:     quantity,
		ReorderPoint: &reorderPoint,
	})
	require.NoError(t, err)
	return productID
}

func (h *harness) record(t *testing.T, productID uuid.UUID) *models.InventoryRecord {
	t.Helper()
	record, err := h.svc.GetInventory(context.Background(), h.tenantID, productID, nil)
	require.NoError(t, err)
	return record
}

// assertBalanced checks the counter invariants and that the ledger
// reconstructs the record.
func (h *harness) assertBalanced(t *testing.T, productID uuid.UUID) *models.InventoryRecord {
	t.Helper()
	record := h.record(t, productID)
	assert.True(t, record.Consistent(), "inconsistent counters: %+v", record)
	assert.GreaterOrEqual(t, record.ReservedQuantity, 0)

	totals, err := h.ledger.Sums(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(record.AvailableQuantity), totals.QuantityTotal)
	assert.Equal(t, int64(record.ReservedQuantity), totals.ReservedTotal)
	assert.Equal(t, int64(record.Quantity), totals.QuantityTotal+totals.ReservedTotal)
	if record.ReservedQuantity == 0 {
		assert.Equal(t, int64(record.Quantity), totals.QuantityTotal)
	}
	return record
}

func (h *harness) entries(t *testing.T, productID uuid.UUID) []models.InventoryTransaction {
	t.Helper()
	entries, err := h.svc.History(context.Background(), HistoryInput{TenantID: h.tenantID, ProductID: productID})
	require.NoError(t, err)
	return entries
}

func (h *harness) reserve(productID uuid.UUID, qty int, ref string) (*Result, error) {
	return h.svc.Reserve(context.Background(), ReserveInput{TenantID: h.tenantID, ProductID: productID, Quantity: qty, ReferenceID: ref})
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	conn := openTestDB(t)
	_, err := NewService(ServiceParams{Records: NewRecordRepository(conn), Ledger: ledger.NewRepository(conn), Catalog: catalog.NewRepository(conn)})
	require.Error(t, err)
	_, err = NewService(ServiceParams{DB: db.Wrap(conn), Ledger: ledger.NewRepository(conn), Catalog: catalog.NewRepository(conn)})
	require.Error(t, err)
	_, err = NewService(ServiceParams{DB: db.Wrap(conn), Records: NewRecordRepository(conn), Catalog: catalog.NewRepository(conn)})
	require.Error(t, err)
	_, err = NewService(ServiceParams{DB: db.Wrap(conn), Records: NewRecordRepository(conn), Ledger: ledger.NewRepository(conn)})
	require.Error(t, err)
}

func TestCreateOrUpdateInventory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.seedProduct(t, "BD-35")

	record, err := h.svc.CreateOrUpdateInventory(ctx, UpsertInput{
		TenantID:  h.tenantID,
		ProductID: productID,
		Quantity:  10,
		Metadata:  types.Metadata{"supplier": "north"},
		CreatedBy: strPtr("admin-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, record.Quantity)
	assert.Equal(t, 10, record.AvailableQuantity)
	require.NotNil(t, record.SKU)
	assert.Equal(t, "BD-35", *record.SKU)

	entries := h.entries(t, productID)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.InventoryTransactionInitial, entries[0].TransactionType)
	assert.Equal(t, 10, entries[0].QuantityDelta)
	require.NotNil(t, entries[0].CreatedBy)
	assert.Equal(t, "admin-1", *entries[0].CreatedBy)

	_, err = h.reserve(productID, 3, "order-1")
	require.NoError(t, err)

	record, err = h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, record.Quantity)
	assert.Equal(t, 3, record.ReservedQuantity)
	assert.Equal(t, 4, record.AvailableQuantity)

	entries = h.entries(t, productID)
	require.Len(t, entries, 3)
	assert.Equal(t, enums.InventoryTransactionAdjustment, entries[0].TransactionType)
	assert.Equal(t, -3, entries[0].QuantityDelta)

	_, err = h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: 7})
	require.NoError(t, err)
	assert.Len(t, h.entries(t, productID), 3, "unchanged quantity must not book an entry")

	_, err = h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: 2})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	h.assertBalanced(t, productID)
}

func TestCreateOrUpdateInventory_ZeroQuantityAndLocations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.seedProduct(t, "")

	record, err := h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, record.Quantity)

	shelf, err := h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: 4, Location: strPtr("warehouse-2")})
	require.NoError(t, err)
	assert.NotEqual(t, record.ID, shelf.ID)

	got, err := h.svc.GetInventory(ctx, h.tenantID, productID, strPtr("warehouse-2"))
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)

	totals, err := h.ledger.Sums(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.QuantityTotal)
}

func TestCreateOrUpdateInventory_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: uuid.New(), Quantity: 1})
	assert.True(t, pkgerrors.IsNotFound(err), "unknown catalog product: %v", err)

	productID := h.seedProduct(t, "")
	tests := []struct {
		name  string
		input UpsertInput
	}{
		{name: "missing tenant", input: UpsertInput{ProductID: productID, Quantity: 1}},
		{name: "negative quantity", input: UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: -1}},
		{name: "negative reorder point", input: UpsertInput{TenantID: h.tenantID, ProductID: productID, ReorderPoint: intPtr(-2)}},
		{name: "nested metadata", input: UpsertInput{TenantID: h.tenantID, ProductID: productID, Metadata: types.Metadata{"bad": map[string]any{}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateOrUpdateInventory(ctx, tc.input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestReserve_InsufficientLeavesRecordUntouched(t *testing.T) {
	h := newHarness(t)
	productID := h.stock(t, 5, 0)

	_, err := h.reserve(productID, 6, "order-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInsufficientInventory(err))
	details, ok := pkgerrors.InsufficientDetails(err)
	require.True(t, ok)
	assert.Equal(t, 6, details.Requested)
	assert.Equal(t, 5, details.Available)

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 0, record.ReservedQuantity)
	assert.Len(t, h.entries(t, productID), 1)
}

func TestReserve_Validation(t *testing.T) {
	h := newHarness(t)
	productID := h.stock(t, 5, 0)

	_, err := h.reserve(productID, 0, "order-1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = h.reserve(productID, 1, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = h.reserve(uuid.New(), 1, "order-1")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	h := newHarness(t)
	const (
		available = 10
		perCall   = 3
		callers   = 12
	)
	productID := h.stock(t, available, 0)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
		other        []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.reserve(productID, perCall, uuid.NewString())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.IsInsufficientInventory(err):
				insufficient++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, available/perCall, successes)
	assert.Equal(t, callers-available/perCall, insufficient)

	record := h.assertBalanced(t, productID)
	assert.Equal(t, (available/perCall)*perCall, record.ReservedQuantity)
	assert.Equal(t, available%perCall, record.AvailableQuantity)
}

func TestReserveRelease_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 0)
	before := h.record(t, productID)

	res, err := h.reserve(productID, 5, "order-1")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 5, res.Record.AvailableQuantity)

	res, err = h.svc.Release(ctx, ReleaseInput{TenantID: h.tenantID, ProductID: productID, Quantity: 5, ReferenceID: "order-1"})
	require.NoError(t, err)
	require.True(t, res.Success)

	after := h.assertBalanced(t, productID)
	assert.Equal(t, before.ReservedQuantity, after.ReservedQuantity)
	assert.Equal(t, before.AvailableQuantity, after.AvailableQuantity)

	entries := h.entries(t, productID)
	require.Len(t, entries, 3)
	added := entries[:2]
	assert.Equal(t, enums.InventoryTransactionAdjustment, added[0].TransactionType)
	assert.Equal(t, enums.InventoryTransactionSale, added[1].TransactionType)
	assert.Equal(t, -5, added[1].QuantityDelta)
	assert.Equal(t, 0, added[0].QuantityDelta+added[1].QuantityDelta)
	assert.Equal(t, 0, added[0].ReservedDelta+added[1].ReservedDelta)
}

func TestRelease_EdgeCases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Release(ctx, ReleaseInput{TenantID: h.tenantID, ProductID: uuid.New(), Quantity: 1, ReferenceID: "order-x"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, pkgerrors.CodeNotFound, res.Code)

	productID := h.stock(t, 6, 0)
	res, err = h.svc.Release(ctx, ReleaseInput{TenantID: h.tenantID, ProductID: productID, Quantity: 2, ReferenceID: "order-none"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Entry)
	assert.Len(t, h.entries(t, productID), 1)

	_, err = h.reserve(productID, 2, "order-1")
	require.NoError(t, err)
	res, err = h.svc.Release(ctx, ReleaseInput{TenantID: h.tenantID, ProductID: productID, Quantity: 5, ReferenceID: "order-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, 2, res.Entry.QuantityDelta, "release floors at the reserved quantity")

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 0, record.ReservedQuantity)
	assert.Equal(t, 6, record.AvailableQuantity)
}

func TestCompleteOrderInventory_ConvertsReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 0)
	_, err := h.reserve(productID, 2, "order-other")
	require.NoError(t, err)
	before := h.record(t, productID)

	_, err = h.reserve(productID, 3, "order-2")
	require.NoError(t, err)

	results, err := h.svc.CompleteOrderInventory(ctx, CompleteInput{
		TenantID: h.tenantID,
		OrderRef: "order-2",
		Items:    []CompleteItem{{ProductID: productID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.False(t, results[0].ReorderFlagged)

	after := h.assertBalanced(t, productID)
	assert.Equal(t, before.Quantity-3, after.Quantity)
	assert.Equal(t, before.ReservedQuantity, after.ReservedQuantity)

	var completion []models.InventoryTransaction
	for _, entry := range h.entries(t, productID) {
		if entry.ReferenceType != nil && *entry.ReferenceType == ReferenceTypeOrderCompletion {
			completion = append(completion, entry)
		}
	}
	require.Len(t, completion, 2)
	assert.Equal(t, enums.InventoryTransactionAdjustment, completion[0].TransactionType)
	assert.Equal(t, 3, completion[0].QuantityDelta)
	assert.Equal(t, -3, completion[0].ReservedDelta)
	assert.Equal(t, enums.InventoryTransactionSale, completion[1].TransactionType)
	assert.Equal(t, -3, completion[1].QuantityDelta)
}

func TestCompleteOrderInventory_WithoutReservation(t *testing.T) {
	h := newHarness(t)
	productID := h.stock(t, 4, 0)

	results, err := h.svc.CompleteOrderInventory(context.Background(), CompleteInput{
		TenantID: h.tenantID,
		OrderRef: "walk-in-1",
		Items:    []CompleteItem{{ProductID: productID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.True(t, results[0].Success)

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 1, record.Quantity)
	assert.Len(t, h.entries(t, productID), 2)
}

func TestCompleteOrderInventory_PartialFailure(t *testing.T) {
	h := newHarness(t)
	good := h.stock(t, 5, 0)
	short := h.stock(t, 1, 0)
	missing := uuid.New()

	results, err := h.svc.CompleteOrderInventory(context.Background(), CompleteInput{
		TenantID: h.tenantID,
		OrderRef: "order-3",
		Items: []CompleteItem{
			{ProductID: good, Quantity: 2},
			{ProductID: missing, Quantity: 1},
			{ProductID: short, Quantity: 4},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, pkgerrors.CodeNotFound, results[1].Code)
	assert.NotEmpty(t, results[1].Message)
	assert.False(t, results[2].Success)
	assert.Equal(t, pkgerrors.CodeInsufficientInventory, results[2].Code)

	assert.Equal(t, 3, h.assertBalanced(t, good).Quantity)
	assert.Equal(t, 1, h.assertBalanced(t, short).Quantity)
}

func TestCompleteOrderInventory_RejectsMalformedInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CompleteOrderInventory(ctx, CompleteInput{TenantID: h.tenantID, OrderRef: "order-4"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.CompleteOrderInventory(ctx, CompleteInput{
		TenantID: h.tenantID,
		OrderRef: "order-4",
		Items:    []CompleteItem{{ProductID: uuid.New(), Quantity: 0}},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCompleteOrderInventory_FlagsReorderAndQueuesEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 8, 5)

	_, err := h.reserve(productID, 3, "order-5")
	require.NoError(t, err)
	results, err := h.svc.CompleteOrderInventory(ctx, CompleteInput{
		TenantID: h.tenantID,
		OrderRef: "order-5",
		Items:    []CompleteItem{{ProductID: productID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.True(t, results[0].Success)
	assert.True(t, results[0].ReorderFlagged)

	record := h.record(t, productID)
	rows, err := h.outbox.ListByAggregate(ctx, enums.AggregateInventoryRecord, record.ID)
	require.NoError(t, err)

	var eventTypes []enums.OutboxEventType
	for _, row := range rows {
		eventTypes = append(eventTypes, row.EventType)
		assert.Equal(t, h.tenantID, row.TenantID)
	}
	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventInventoryCreated,
		enums.EventInventoryReserved,
		enums.EventInventoryCompleted,
		enums.EventInventoryReorderFlagged,
	}, eventTypes)
}

func TestProcessReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 5, 0)
	_, err := h.reserve(productID, 2, "order-6")
	require.NoError(t, err)
	before := h.record(t, productID)

	res, err := h.svc.ProcessReturn(ctx, ReturnInput{
		TenantID:    h.tenantID,
		ProductID:   productID,
		Quantity:    2,
		ReferenceID: "ret-1",
		Notes:       strPtr("damaged box, resellable"),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, enums.InventoryTransactionReturn, res.Entry.TransactionType)
	require.NotNil(t, res.Entry.ReferenceType)
	assert.Equal(t, ReferenceTypeReturn, *res.Entry.ReferenceType)

	after := h.assertBalanced(t, productID)
	assert.Equal(t, before.Quantity+2, after.Quantity)
	assert.Equal(t, before.AvailableQuantity+2, after.AvailableQuantity)
	assert.Equal(t, before.ReservedQuantity, after.ReservedQuantity)
}

func TestIdempotentRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 0)

	first, err := h.reserve(productID, 4, "order-7")
	require.NoError(t, err)
	retry, err := h.reserve(productID, 4, "order-7")
	require.NoError(t, err)
	assert.True(t, retry.Duplicate)
	assert.Equal(t, first.Entry.ID, retry.Entry.ID)
	assert.Equal(t, 4, h.record(t, productID).ReservedQuantity)

	release := ReleaseInput{TenantID: h.tenantID, ProductID: productID, Quantity: 4, ReferenceID: "order-7"}
	_, err = h.svc.Release(ctx, release)
	require.NoError(t, err)
	again, err := h.svc.Release(ctx, release)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	ret := ReturnInput{TenantID: h.tenantID, ProductID: productID, Quantity: 1, ReferenceID: "ret-7"}
	_, err = h.svc.ProcessReturn(ctx, ret)
	require.NoError(t, err)
	dup, err := h.svc.ProcessReturn(ctx, ret)
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	complete := CompleteInput{TenantID: h.tenantID, OrderRef: "order-8", Items: []CompleteItem{{ProductID: productID, Quantity: 2}}}
	_, err = h.svc.CompleteOrderInventory(ctx, complete)
	require.NoError(t, err)
	results, err := h.svc.CompleteOrderInventory(ctx, complete)
	require.NoError(t, err)
	assert.True(t, results[0].Success)
	assert.True(t, results[0].Duplicate)

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 9, record.Quantity)
	assert.Equal(t, 0, record.ReservedQuantity)
	assert.Len(t, h.entries(t, productID), 5)
}

func TestAdjustStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 0)
	_, err := h.reserve(productID, 4, "order-9")
	require.NoError(t, err)

	res, err := h.svc.AdjustStock(ctx, AdjustInput{TenantID: h.tenantID, ProductID: productID, Delta: -2, Type: enums.InventoryTransactionDamaged, Notes: strPtr("water damage")})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Record.Quantity)

	res, err = h.svc.AdjustStock(ctx, AdjustInput{
		TenantID:    h.tenantID,
		ProductID:   productID,
		Delta:       6,
		Type:        enums.InventoryTransactionPurchase,
		ReferenceID: strPtr("po-17"),
	})
	require.NoError(t, err)
	assert.Equal(t, 14, res.Record.Quantity)
	require.NotNil(t, res.Entry.ReferenceType)
	assert.Equal(t, "purchase", *res.Entry.ReferenceType)

	dup, err := h.svc.AdjustStock(ctx, AdjustInput{TenantID: h.tenantID, ProductID: productID, Delta: 6, Type: enums.InventoryTransactionPurchase, ReferenceID: strPtr("po-17")})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	_, err = h.svc.AdjustStock(ctx, AdjustInput{TenantID: h.tenantID, ProductID: productID, Delta: -11, Type: enums.InventoryTransactionTransfer})
	assert.True(t, pkgerrors.IsInsufficientInventory(err), "cannot take on-hand below reserved: %v", err)

	for name, input := range map[string]AdjustInput{
		"damaged adds":     {Delta: 1, Type: enums.InventoryTransactionDamaged},
		"purchase removes": {Delta: -1, Type: enums.InventoryTransactionPurchase},
		"sale type":        {Delta: -1, Type: enums.InventoryTransactionSale},
		"unknown type":     {Delta: 1, Type: "restock"},
		"zero delta":       {Delta: 0, Type: enums.InventoryTransactionAdjustment},
	} {
		input.TenantID, input.ProductID = h.tenantID, productID
		_, err := h.svc.AdjustStock(ctx, input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "%s: %v", name, err)
	}

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 14, record.Quantity)
	assert.Equal(t, 4, record.ReservedQuantity)
}

func TestConcreteScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 6)

	res, err := h.reserve(productID, 4, "o1")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Record.AvailableQuantity)

	_, err = h.reserve(productID, 7, "o2")
	assert.True(t, pkgerrors.IsInsufficientInventory(err))
	assert.Equal(t, 6, h.record(t, productID).AvailableQuantity)

	results, err := h.svc.CompleteOrderInventory(ctx, CompleteInput{
		TenantID: h.tenantID,
		OrderRef: "o1",
		Items:    []CompleteItem{{ProductID: productID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.True(t, results[0].Success)

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 6, record.Quantity)
	assert.Equal(t, 0, record.ReservedQuantity)
	assert.Equal(t, 6, record.AvailableQuantity)

	low, err := h.svc.GetLowStockProducts(ctx, h.tenantID)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, productID, low[0].ProductID)
	assert.Equal(t, 6, low[0].Quantity)
	assert.Equal(t, 6, low[0].ReorderPoint)
}

func TestGetLowStockProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, 6, 5)
	atPoint := h.stock(t, 5, 5)
	h.stock(t, 0, 0)

	low, err := h.svc.GetLowStockProducts(ctx, h.tenantID)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, atPoint, low[0].ProductID)

	_, err = h.svc.GetLowStockProducts(ctx, uuid.Nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestGetInventoryBySKUAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.seedProduct(t, "GG4-7")
	_, err := h.svc.CreateOrUpdateInventory(ctx, UpsertInput{TenantID: h.tenantID, ProductID: productID, Quantity: 3})
	require.NoError(t, err)
	_, err = h.reserve(productID, 1, "order-10")
	require.NoError(t, err)

	record, err := h.svc.GetInventoryBySKU(ctx, h.tenantID, "GG4-7", nil)
	require.NoError(t, err)
	assert.Equal(t, productID, record.ProductID)

	sale := enums.InventoryTransactionSale
	entries, err := h.svc.History(ctx, HistoryInput{TenantID: h.tenantID, ProductID: productID, Type: &sale})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, -1, entries[0].QuantityDelta)

	_, err = h.svc.History(ctx, HistoryInput{TenantID: h.tenantID, ProductID: uuid.New()})
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = h.svc.GetInventoryBySKU(ctx, h.tenantID, "", nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

type flakyRunner struct {
	failures int
	err      error
	calls    int
}

func (f *flakyRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return fn(nil)
}

func TestRunWithRetry(t *testing.T) {
	conflict := pkgerrors.Wrap(pkgerrors.CodeConflict, errVersionConflict, "update inventory record")

	newSvc := func(runner txRunner) *service {
		return &service{tx: runner, logg: logger.Nop(), maxRetries: 3, backoff: time.Microsecond}
	}

	runner := &flakyRunner{failures: 2, err: conflict}
	err := newSvc(runner).runWithRetry(context.Background(), opReserve, func(*gorm.DB) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)

	runner = &flakyRunner{failures: 10, err: conflict}
	err = newSvc(runner).runWithRetry(context.Background(), opReserve, func(*gorm.DB) error { return nil })
	assert.True(t, errors.Is(err, errVersionConflict))
	assert.Equal(t, 4, runner.calls)

	runner = &flakyRunner{failures: 10, err: pkgerrors.NewInsufficientInventory(2, 1)}
	err = newSvc(runner).runWithRetry(context.Background(), opReserve, func(*gorm.DB) error { return nil })
	assert.True(t, pkgerrors.IsInsufficientInventory(err))
	assert.Equal(t, 1, runner.calls, "business failures are never retried")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner = &flakyRunner{failures: 10, err: errors.New("database is locked")}
	err = newSvc(runner).runWithRetry(ctx, opReserve, func(*gorm.DB) error { return nil })
	require.Error(t, err)
	assert.Equal(t, 1, runner.calls)
}

// failingCommitRunner applies fn inside a real transaction, then rolls back
// and reports a driver failure as if the commit had been lost.
type failingCommitRunner struct {
	db  *gorm.DB
	err error
}

func (r failingCommitRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	tx.Rollback()
	return r.err
}

func TestCommitFailureSurfacesAsStorageError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 0)
	h.svc.(*service).tx = failingCommitRunner{db: h.db, err: errors.New("driver: bad connection")}

	res, err := h.reserve(productID, 3, "order-lost")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.True(t, pkgerrors.IsRetryable(err))

	_, err = h.svc.ProcessReturn(ctx, ReturnInput{TenantID: h.tenantID, ProductID: productID, Quantity: 1, ReferenceID: "ret-lost"})
	assert.True(t, pkgerrors.IsStorage(err))

	h.svc.(*service).tx = db.Wrap(h.db)
	record := h.assertBalanced(t, productID)
	assert.Equal(t, 0, record.ReservedQuantity)
	assert.Equal(t, 10, record.Quantity)
}

func TestReserveAfterReleaseReportsStateConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	productID := h.stock(t, 10, 0)

	_, err := h.reserve(productID, 4, "order-12")
	require.NoError(t, err)
	_, err = h.svc.Release(ctx, ReleaseInput{TenantID: h.tenantID, ProductID: productID, Quantity: 4, ReferenceID: "order-12"})
	require.NoError(t, err)

	again, err := h.reserve(productID, 4, "order-12")
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.True(t, again.Duplicate)
	assert.Equal(t, pkgerrors.CodeStateConflict, again.Code)
	assert.Equal(t, enums.InventoryTransactionAdjustment, again.Entry.TransactionType)

	record := h.assertBalanced(t, productID)
	assert.Equal(t, 0, record.ReservedQuantity)
	assert.Len(t, h.entries(t, productID), 3)
}

func intPtr(value int) *int {
	return &value
}
