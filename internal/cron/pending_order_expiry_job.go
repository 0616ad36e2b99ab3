package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fanjava-backend/internal/orders"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

const (
	defaultPendingOrderTTL = 10 * 24 * time.Hour
	defaultExpiryBatchSize = 100
)

// SystemActorID identifies scheduled jobs in order status events.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-00000000c0de")

type pendingOrderLister interface {
	List(ctx context.Context, filter orders.ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}

type orderTransitioner interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*orders.OrderDTO, error)
}

// PendingOrderExpiryJobParams configure the stale order sweep.
type PendingOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderLister
	Ledger    orderTransitioner
	TTL       time.Duration
	BatchSize int
}

// NewPendingOrderExpiryJob cancels orders that stayed pending longer than the TTL.
// Cancellation goes through the ledger so stock and vendor aggregates are restored.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &pendingOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ledger: params.Ledger,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg   *logger.Logger
	orders pendingOrderLister
	ledger orderTransitioner
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return "pending-order-expiry" }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	status := enums.OrderStatusPending
	stale, err := j.orders.List(ctx, orders.ListFilter{Status: &status, CreatedBefore: &cutoff}, nil, j.batch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}
	// List fetches one extra row for cursoring.
	if len(stale) > j.batch {
		stale = stale[:j.batch]
	}

	actor := orders.Actor{UserID: SystemActorID, Role: enums.UserRoleAdmin}
	var errs error
	expired := 0
	for _, order := range stale {
		_, err := j.ledger.Transition(ctx, orders.TransitionInput{
			OrderID: order.ID,
			Actor:   actor,
			Target:  enums.OrderStatusCancelled,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.Number, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return errs
}
