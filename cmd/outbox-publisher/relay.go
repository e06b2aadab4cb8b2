package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/registry"
	"gorm.io/gorm"
)

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

// delivery is the outcome of one publish attempt for an outbox row.
type delivery struct {
	event   models.OutboxEvent
	topic   string
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	err     error
}

func (d delivery) fields() map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     string(d.event.EventType),
		"aggregate_type": string(d.event.AggregateType),
		"tenant_id":      d.event.TenantID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if d.event.AggregateType == enums.AggregateInventoryRecord {
		fields["record_id"] = d.event.AggregateID.String()
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.reason != "" {
		fields["error_reason"] = string(d.reason)
	}
	if d.err != nil {
		fields["error"] = d.err.Error()
	}
	return fields
}

// relayBatch reports whether any rows were claimed.
func (s *Service) relayBatch(ctx context.Context) (bool, error) {
	busy := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		busy = len(events) > 0
		for _, event := range events {
			if err := s.settle(ctx, tx, s.deliver(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return busy, err
}

func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	out := delivery{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		out.verdict, out.reason, out.err = verdictDeadLetter, enums.OutboxDLQReasonNonRetryable, err
		return out
	}
	out.topic = resolved.Descriptor.Topic

	err = s.publish(ctx, out.topic, inventoryMessage(event, resolved.Envelope))
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		out.verdict = verdictPublished
	case errors.As(err, &nonRetryable):
		out.verdict, out.reason, out.err = verdictDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case event.AttemptCount+1 >= s.maxAttempts:
		out.verdict, out.reason = verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts
		out.err = fmt.Errorf("max publish attempts reached: %w", err)
	default:
		out.verdict, out.err = verdictRetry, err
	}
	return out
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	logCtx := s.logg.WithFields(ctx, d.fields())
	id := d.event.ID
	switch d.verdict {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
		s.logg.Info(logCtx, "inventory event published")
	case verdictRetry:
		s.logg.Warn(logCtx, "inventory event publish failed")
		if err := s.repo.MarkFailedTx(tx, id, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", id, err)
		}
	case verdictDeadLetter:
		s.logg.Warn(logCtx, "inventory event moved to dead letter")
		message := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       id,
			EventType:     d.event.EventType,
			AggregateType: d.event.AggregateType,
			AggregateID:   d.event.AggregateID,
			Payload:       d.event.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &message,
			AttemptCount:  d.event.AttemptCount,
			FailedAt:      time.Now().UTC(),
		}
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", id, err)
		}
		if err := s.repo.MarkTerminalTx(tx, id, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", id, err)
		}
	}
	return nil
}

// inventoryMessage keys the message by aggregate so one record's stock
// movements reach subscribers in commit order.
func inventoryMessage(event models.OutboxEvent, envelope outbox.PayloadEnvelope) *gcppubsub.Message {
	key := event.AggregateID.String()
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: key,
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   key,
			"tenant_id":      event.TenantID.String(),
			"schema_version": strconv.Itoa(envelope.Version),
			"occurred_at":    envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publishers.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(ctx); err != nil {
		pub.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}
