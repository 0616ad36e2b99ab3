package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/analytics"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryRestocker returns units of a cancelled order to stock.
type InventoryRestocker interface {
	Restock(tx *gorm.DB, productID uuid.UUID, qty int) error
}

type statsWriter interface {
	Apply(tx *gorm.DB, vendorID uuid.UUID, delta analytics.Delta) error
}

// Service is the order ledger: the only writer of order status.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, actor Actor, input ListInput) (*OrderList, error)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// TransitionInput asks the ledger to move an order to Target.
type TransitionInput struct {
	OrderID               uuid.UUID
	Actor                 Actor
	Target                enums.OrderStatus
	TrackingNumber        *string
	EstimatedDeliveryDate *time.Time
}

// ListInput carries the optional filters of GET /orders.
type ListInput struct {
	ClientID   *uuid.UUID
	VendorID   *uuid.UUID
	Status     *enums.OrderStatus
	Pagination pagination.Params
}

var errCASLost = errors.New("order changed concurrently")

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outbox.Emitter
	inventory InventoryRestocker
	stats     statsWriter
	now       func() time.Time
}

// NewService builds the order ledger with the required dependencies.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, inventory InventoryRestocker, stats statsWriter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory restocker required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats writer required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		inventory: inventory,
		stats:     stats,
		now:       time.Now,
	}, nil
}

// Transition applies one edge of the status graph. A lost compare-and-set
// reloads the order once before giving up with a conflict.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown status %q", input.Target))
	}

	var (
		result *models.Order
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		result, err = s.transitionOnce(ctx, input)
		if !errors.Is(err, errCASLost) {
			break
		}
	}
	if errors.Is(err, errCASLost) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently; reload and retry")
	}
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(result)
	return &dto, nil
}

func (s *service) transitionOnce(ctx context.Context, input TransitionInput) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorizeTransition(input.Actor, order, input.Target); err != nil {
			return err
		}

		from := order.Status
		if from == input.Target && input.Target == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if !from.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeTransition,
				fmt.Sprintf("cannot move order from %s to %s", from, input.Target)).
				WithDetails(map[string]any{
					"from":    from,
					"to":      input.Target,
					"allowed": from.AllowedTransitions(),
				})
		}

		now := s.now().UTC()
		updates, err := transitionUpdates(order, input, now)
		if err != nil {
			return err
		}
		ok, err := repo.CompareAndSetStatus(ctx, order.ID, from, order.Version, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return errCASLost
		}

		restocked := false
		switch input.Target {
		case enums.OrderStatusCancelled:
			restocked, err = s.restockOnce(ctx, tx, repo, order, now)
			if err != nil {
				return err
			}
		case enums.OrderStatusRefunded:
			delta := analytics.Delta{RefundedCount: 1}
			if from == enums.OrderStatusDelivered {
				delta.RevenueCents = -order.SubtotalCents
			}
			if err := s.stats.Apply(tx, order.VendorID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor stats")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role},
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				Number:    order.Number,
				ClientID:  order.ClientID,
				VendorID:  order.VendorID,
				From:      from,
				To:        input.Target,
				ActorRole: input.Actor.Role,
				Restocked: restocked,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}

		result, err = repo.FindOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	return result, err
}

// restockOnce returns every line to stock if and only if this call flips the
// restocked marker, then reverses the vendor aggregates booked at checkout.
func (s *service) restockOnce(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) (bool, error) {
	flipped, err := repo.MarkRestocked(ctx, order.ID, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order restocked")
	}
	if !flipped {
		return false, nil
	}

	lines := append([]models.OrderLine(nil), order.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID.String() < lines[j].ProductID.String() })
	for _, line := range lines {
		if err := s.inventory.Restock(tx, line.ProductID, line.Quantity); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock product")
		}
	}

	delta := analytics.Delta{
		RevenueCents:   -order.SubtotalCents,
		UnitsSold:      -int64(order.Units()),
		CancelledCount: 1,
	}
	if err := s.stats.Apply(tx, order.VendorID, delta); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor stats")
	}
	return true, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canRead(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// List scopes clients to their own orders and vendors to theirs; admins see everything.
func (s *service) List(ctx context.Context, actor Actor, input ListInput) (*OrderList, error) {
	filter := ListFilter{ClientID: input.ClientID, VendorID: input.VendorID, Status: input.Status}
	switch actor.Role {
	case enums.UserRoleAdmin:
	case enums.UserRoleVendor:
		filter.VendorID = &actor.UserID
	case enums.UserRoleClient:
		filter.ClientID = &actor.UserID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor, input.Pagination.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, input.Pagination.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderDTO(&rows[i]))
	}
	return &OrderList{Orders: out, NextCursor: next}, nil
}

func authorizeTransition(actor Actor, order *models.Order, target enums.OrderStatus) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if actor.Role != enums.UserRoleVendor || order.VendorID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning vendor or an admin may change this order")
	}
	if target.RequiresAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s requires an admin", target))
	}
	return nil
}

func canRead(actor Actor, order *models.Order) bool {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return true
	case enums.UserRoleVendor:
		return order.VendorID == actor.UserID
	case enums.UserRoleClient:
		return order.ClientID == actor.UserID
	}
	return false
}

func transitionUpdates(order *models.Order, input TransitionInput, now time.Time) (map[string]any, error) {
	updates := map[string]any{
		"status":     input.Target,
		"version":    order.Version + 1,
		"updated_at": now,
	}

	if input.TrackingNumber != nil {
		if input.Target != enums.OrderStatusShipped && input.Target != enums.OrderStatusDelivered {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking_number is only accepted when shipping or delivering")
		}
		if tracking := strings.TrimSpace(*input.TrackingNumber); tracking != "" {
			updates["tracking_number"] = tracking
		}
	}
	if input.EstimatedDeliveryDate != nil {
		switch input.Target {
		case enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusShipped:
			updates["estimated_delivery_date"] = input.EstimatedDeliveryDate.UTC()
		default:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimated_delivery_date is only accepted before delivery")
		}
	}

	switch input.Target {
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	case enums.OrderStatusRefunded:
		updates["refunded_at"] = now
	}
	return updates, nil
}
