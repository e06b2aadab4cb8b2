package consumer

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

// Name is the consumer name used in idempotency keys.
const Name = "inventory-commands"

type engine interface {
	Reserve(ctx context.Context, input inventory.ReserveInput) (*inventory.Result, error)
	Release(ctx context.Context, input inventory.ReleaseInput) (*inventory.Result, error)
	CompleteOrderInventory(ctx context.Context, input inventory.CompleteInput) ([]inventory.ItemResult, error)
	ProcessReturn(ctx context.Context, input inventory.ReturnInput) (*inventory.Result, error)
}

type claimer interface {
	Claim(ctx context.Context, consumer, commandID string) (bool, error)
	Release(ctx context.Context, consumer, commandID string) error
}

// Consumer applies inventory commands delivered over Pub/Sub to the engine.
type Consumer struct {
	engine       engine
	claims       claimer
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(eng engine, claims claimer, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if eng == nil {
		return nil, errors.New("inventory engine is required")
	}
	if claims == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if subscription == nil {
		return nil, errors.New("inventory subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		engine:       eng,
		claims:       claims,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Data, msg.Attributes).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

var (
	ack  = processResult{}
	nack = processResult{nack: true}
)

func (c *Consumer) handle(ctx context.Context, messageID string, data []byte, attrs map[string]string) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)
	env, err := decodeEnvelope(data, attrs)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping malformed inventory command")
		return ack
	}
	commandID := env.CommandID
	if commandID == "" {
		commandID = messageID
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"command_id":   commandID,
		"command_type": string(env.Type),
		"tenant_id":    env.TenantID.String(),
	})

	already, err := c.claims.Claim(logCtx, Name, commandID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return nack
	}
	if already {
		c.logg.Info(logCtx, "inventory command already handled")
		return ack
	}

	if err := c.dispatch(logCtx, env); err != nil {
		if !redeliverable(err) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "inventory command rejected")
			return ack
		}
		c.logg.Error(logCtx, "inventory command failed", err)
		if relErr := c.claims.Release(logCtx, Name, commandID); relErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency claim", relErr)
		}
		return nack
	}
	return ack
}

func (c *Consumer) dispatch(ctx context.Context, env *Envelope) error {
	switch env.Type {
	case CommandReserve:
		input, err := reserveInput(env)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reserve command")
		}
		result, err := c.engine.Reserve(ctx, *input)
		if err == nil && result != nil && !result.Success {
			c.logg.Warn(c.logg.WithField(ctx, "code", string(result.Code)), result.Message)
		}
		return err
	case CommandRelease:
		input, err := releaseInput(env)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "release command")
		}
		result, err := c.engine.Release(ctx, *input)
		if err == nil && result != nil && !result.Success {
			c.logg.Warn(c.logg.WithField(ctx, "code", string(result.Code)), result.Message)
		}
		return err
	case CommandComplete:
		input, err := completeInput(env)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "complete command")
		}
		results, err := c.engine.CompleteOrderInventory(ctx, *input)
		if err != nil {
			return err
		}
		return c.checkItems(ctx, results)
	case CommandReturn:
		input, err := returnInput(env)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "return command")
		}
		_, err = c.engine.ProcessReturn(ctx, *input)
		return err
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown inventory command %q", env.Type))
	}
}

// checkItems surfaces the first storage failure among completed items so the
// whole command is redelivered. Items that already succeeded come back as
// duplicates on the retry.
func (c *Consumer) checkItems(ctx context.Context, results []inventory.ItemResult) error {
	failed := 0
	for _, item := range results {
		if item.Success {
			continue
		}
		failed++
		if pkgerrors.MetadataFor(item.Code).Retryable && item.Code != pkgerrors.CodeNotFound {
			return pkgerrors.New(item.Code, item.Message)
		}
	}
	if failed > 0 {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"items":        len(results),
			"items_failed": failed,
		}), "order completion partially applied")
	}
	return nil
}

// redeliverable reports whether a retry could succeed. Business outcomes and
// unknown products are final; uncoded failures are treated as storage.
func redeliverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pkgerrors.As(err) == nil {
		return true
	}
	if pkgerrors.IsNotFound(err) {
		return false
	}
	return pkgerrors.IsRetryable(err)
}
