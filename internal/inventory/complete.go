package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/payloads"
	"gorm.io/gorm"
)

// CompleteOrderInventory turns an order's reservations into sales. Each line
// commits on its own so one bad line never rolls back the others; failures
// are reported per item. Only malformed input returns an error.
func (s *service) CompleteOrderInventory(ctx context.Context, input CompleteInput) ([]ItemResult, error) {
	start := time.Now()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"tenant_id":      input.TenantID.String(),
		"reference_id":   input.OrderRef,
		"reference_type": ReferenceTypeOrderCompletion,
	})
	if err := validateInput(input, nil); err != nil {
		s.finish(ctx, opComplete, start, nil, err)
		return nil, err
	}

	results := make([]ItemResult, 0, len(input.Items))
	for _, item := range input.Items {
		itemStart := time.Now()
		itemCtx := s.logg.WithProductID(ctx, item.ProductID.String())
		res, err := s.completeItem(itemCtx, input, item)
		if err != nil {
			res = ItemResult{
				ProductID: item.ProductID,
				Location:  item.Location,
				Quantity:  item.Quantity,
				Message:   errorMessage(err),
				Code:      pkgerrors.As(err).Code(),
			}
		}
		s.finish(itemCtx, opComplete, itemStart, itemOutcome(res), err)
		results = append(results, res)
	}
	return results, nil
}

func (s *service) completeItem(ctx context.Context, input CompleteInput, item CompleteItem) (ItemResult, error) {
	out := ItemResult{ProductID: item.ProductID, Location: item.Location, Quantity: item.Quantity}
	err := s.runWithRetry(ctx, opComplete, func(tx *gorm.DB) error {
		out.Duplicate, out.ReorderFlagged, out.Record = false, false, nil

		record, err := s.records.WithTx(tx).GetForUpdate(ctx, input.TenantID, item.ProductID, item.Location)
		if err != nil {
			return err
		}
		prior, err := s.ledger.WithTx(tx).FindByReference(ctx, record.ID, input.OrderRef, ReferenceTypeOrderCompletion, enums.InventoryTransactionSale)
		if err != nil {
			return err
		}
		if prior != nil {
			out.Duplicate = true
			out.Record = record
			return nil
		}

		// Stock held for this order is consumed first; anything beyond the
		// hold must come out of available stock.
		held := min(item.Quantity, record.ReservedQuantity)
		available := record.Quantity - record.ReservedQuantity
		if unheld := item.Quantity - held; unheld > available {
			return pkgerrors.NewInsufficientInventory(unheld, available)
		}
		record.Quantity -= item.Quantity
		record.ReservedQuantity -= held
		if err := s.records.WithTx(tx).Update(ctx, record); err != nil {
			return err
		}

		sale := &models.InventoryTransaction{
			TransactionType: enums.InventoryTransactionSale,
			QuantityDelta:   -item.Quantity,
			ReferenceID:     strPtr(input.OrderRef),
			ReferenceType:   strPtr(ReferenceTypeOrderCompletion),
			CreatedBy:       input.CreatedBy,
		}
		if err := s.appendEntry(ctx, tx, record, sale); err != nil {
			return err
		}
		if held > 0 {
			conversion := &models.InventoryTransaction{
				TransactionType: enums.InventoryTransactionAdjustment,
				QuantityDelta:   held,
				ReservedDelta:   -held,
				ReferenceID:     strPtr(input.OrderRef),
				ReferenceType:   strPtr(ReferenceTypeOrderCompletion),
				Notes:           strPtr("reservation converted to sale"),
				CreatedBy:       input.CreatedBy,
			}
			if err := s.appendEntry(ctx, tx, record, conversion); err != nil {
				return err
			}
		}
		if err := s.emitChange(ctx, tx, enums.EventInventoryCompleted, record, sale); err != nil {
			return err
		}

		out.Record = record
		if record.LowStock() {
			out.ReorderFlagged = true
			return s.emitReorder(ctx, tx, record, input)
		}
		return nil
	})
	if err != nil {
		return ItemResult{}, err
	}
	out.Success = true
	switch {
	case out.Duplicate:
		out.Message = "order line already completed"
	case out.ReorderFlagged:
		out.Message = fmt.Sprintf("completed; quantity %d at or below reorder point %d", out.Record.Quantity, out.Record.ReorderPoint)
	default:
		out.Message = "completed"
	}
	return out, nil
}

func (s *service) emitReorder(ctx context.Context, tx *gorm.DB, record *models.InventoryRecord, input CompleteInput) error {
	if s.outbox == nil {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryReorderFlagged,
		AggregateType: enums.AggregateInventoryRecord,
		AggregateID:   record.ID,
		TenantID:      record.TenantID,
		Actor:         actorRef(input.CreatedBy, record.TenantID),
		Data: payloads.ReorderFlaggedEvent{
			RecordID:        record.ID,
			TenantID:        record.TenantID,
			ProductID:       record.ProductID,
			Location:        record.Location,
			SKU:             record.SKU,
			Quantity:        record.Quantity,
			ReorderPoint:    record.ReorderPoint,
			ReorderQuantity: record.ReorderQuantity,
			OrderRef:        input.OrderRef,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "queue reorder event")
	}
	return nil
}

func itemOutcome(res ItemResult) *Result {
	if res.Success {
		return &Result{Success: true, Duplicate: res.Duplicate}
	}
	return nil
}
