package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/redis"
)

const markerProcessing = "processing"

// Manager tracks which inventory commands a consumer has already applied.
// Keys follow the `pfi:idempotency:cmd:<consumer>:<command_id>` pattern.
//
// A claim is written as "processing" and must be released on failure so a
// redelivery can retry; the ledger's own reference check remains the source
// of truth when the marker expires.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that remembers claimed commands for ttl.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Claim reports true when the command was already claimed by an earlier
// delivery; otherwise it records the claim.
func (m *Manager) Claim(ctx context.Context, consumer, commandID string) (bool, error) {
	key, err := m.key(consumer, commandID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, markerProcessing, m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// State returns the stored marker, or "" when the command is unknown.
func (m *Manager) State(ctx context.Context, consumer, commandID string) (string, error) {
	key, err := m.key(consumer, commandID)
	if err != nil {
		return "", err
	}
	value, err := m.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

// Release forgets a claim so the command can be retried.
func (m *Manager) Release(ctx context.Context, consumer, commandID string) error {
	key, err := m.key(consumer, commandID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, commandID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	commandID = strings.TrimSpace(commandID)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if commandID == "" {
		return "", errors.New("command id is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("cmd:%s", consumer), commandID), nil
}
