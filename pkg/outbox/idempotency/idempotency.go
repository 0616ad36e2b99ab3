// Package idempotency deduplicates at-least-once event deliveries per consumer.
package idempotency

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConsumerRequired = errors.New("idempotency: consumer name required")
	ErrEventIDRequired  = errors.New("idempotency: event id required")
)

// Store is the Redis surface used for claims.
type Store interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	ProcessedEventKey(consumer, eventID string) string
}

// Manager hands out one claim per consumer and event; a zero ttl keeps claims forever.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Claim is the outcome of Claim. Duplicate claims must not run the handler.
type Claim struct {
	key       string
	Duplicate bool
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency: store required")
	case ttl < 0:
		return nil, errors.New("idempotency: ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim records that consumer is handling eventID. The stored value is the claim time.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Claim, error) {
	if consumer == "" {
		return Claim{}, ErrConsumerRequired
	}
	if eventID == uuid.Nil {
		return Claim{}, ErrEventIDRequired
	}
	key := m.store.ProcessedEventKey(consumer, eventID.String())
	won, err := m.store.SetNX(ctx, key, strconv.FormatInt(m.now().Unix(), 10), m.ttl)
	if err != nil {
		return Claim{}, err
	}
	return Claim{key: key, Duplicate: !won}, nil
}

// Release drops a claim so a redelivery can run the handler again.
// Duplicate claims belong to another delivery and are left alone.
func (m *Manager) Release(ctx context.Context, claim Claim) error {
	if claim.key == "" || claim.Duplicate {
		return nil
	}
	return m.store.Del(ctx, claim.key)
}
