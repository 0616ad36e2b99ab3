package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/analytics"
	"github.com/angelmondragon/fanjava-backend/internal/cart"
	"github.com/angelmondragon/fanjava-backend/internal/checkout/helpers"
	"github.com/angelmondragon/fanjava-backend/internal/inventory"
	"github.com/angelmondragon/fanjava-backend/internal/orders"
	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fanjava-backend/pkg/security"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

const codeLength = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	Lines(ctx context.Context, clientID uuid.UUID) ([]cart.Item, error)
	Deduct(ctx context.Context, clientID uuid.UUID, committed map[uuid.UUID]int) error
}

type stockGuard interface {
	Lock(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Shortfalls(requested map[uuid.UUID]int, locked map[uuid.UUID]models.Product) []inventory.Shortfall
	Reserve(tx *gorm.DB, productID uuid.UUID, qty int) error
	Reload(tx *gorm.DB, ids []uuid.UUID) ([]models.Product, error)
}

type statsWriter interface {
	Apply(tx *gorm.DB, vendorID uuid.UUID, delta analytics.Delta) error
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, clientID uuid.UUID, input CheckoutInput) (*orders.CheckoutGroupDTO, error)
}

// CheckoutInput captures the delivery data of a checkout.
type CheckoutInput struct {
	Shipping   types.ShippingSnapshot
	ClientNote *string
}

// ConflictDetails is attached to the 409 returned when stock cannot cover the cart.
type ConflictDetails struct {
	Conflicts []inventory.Shortfall `json:"conflicts"`
}

// Deps groups the collaborators of the checkout service.
type Deps struct {
	Tx      txRunner
	Cart    cartReader
	Orders  orders.Repository
	Guard   stockGuard
	Stats   statsWriter
	Outbox  outbox.Emitter
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
	Config  config.CheckoutConfig
}

type service struct {
	tx      txRunner
	cart    cartReader
	orders  orders.Repository
	guard   stockGuard
	stats   statsWriter
	outbox  outbox.Emitter
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	cfg     config.CheckoutConfig
	codes   func(prefix string, n int) (string, error)
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("inventory guard required")
	}
	if deps.Stats == nil {
		return nil, fmt.Errorf("stats writer required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:      deps.Tx,
		cart:    deps.Cart,
		orders:  deps.Orders,
		guard:   deps.Guard,
		stats:   deps.Stats,
		outbox:  deps.Outbox,
		metrics: deps.Metrics,
		logg:    deps.Logger,
		cfg:     deps.Config,
		codes:   security.RandomCode,
	}, nil
}

// Execute turns the client's cart into one pending order per vendor, all or
// nothing. A guard race rolls back and retries the whole checkout once.
func (s *service) Execute(ctx context.Context, clientID uuid.UUID, input CheckoutInput) (*orders.CheckoutGroupDTO, error) {
	if clientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "client identity missing")
	}
	shipping, err := helpers.ValidateShipping(input.Shipping)
	if err != nil {
		return nil, err
	}
	input.Shipping = shipping
	if input.ClientNote != nil {
		note := strings.TrimSpace(*input.ClientNote)
		input.ClientNote = &note
		if note == "" {
			input.ClientNote = nil
		}
	}

	items, err := s.cart.Lines(ctx, clientID)
	if err != nil {
		return nil, err
	}
	raw := make([]helpers.Line, 0, len(items))
	for _, item := range items {
		raw = append(raw, helpers.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	lines := helpers.MergeLines(raw)
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if s.cfg.MaxLines > 0 && len(lines) > s.cfg.MaxLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart exceeds %d lines", s.cfg.MaxLines))
	}

	group, err := s.attempt(ctx, clientID, lines, input)
	if errors.Is(err, inventory.ErrInsufficientStock) {
		s.metrics.Inc(metrics.CheckoutRetried)
		group, err = s.attempt(ctx, clientID, lines, input)
		if errors.Is(err, inventory.ErrInsufficientStock) {
			err = s.conflictAfterRace(ctx, lines)
		}
	}
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.metrics.Inc(metrics.CheckoutConflict)
		} else {
			s.metrics.Inc(metrics.CheckoutFailed)
		}
		return nil, err
	}

	s.metrics.Inc(metrics.CheckoutCommitted)
	s.metrics.ObserveOrders(len(group.Orders))

	if err := s.cart.Deduct(ctx, clientID, helpers.Requested(lines)); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "checkout_group_id", group.ID.String()), "cart deduct after checkout failed: "+err.Error())
	}

	dto := orders.NewCheckoutGroupDTO(group)
	return &dto, nil
}

func (s *service) attempt(ctx context.Context, clientID uuid.UUID, lines []helpers.Line, input CheckoutInput) (*models.CheckoutGroup, error) {
	var result *models.CheckoutGroup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		ids := helpers.ProductIDs(lines)

		locked, err := s.guard.Lock(tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
		}
		if shortfalls := s.guard.Shortfalls(helpers.Requested(lines), locked); len(shortfalls) > 0 {
			return conflictError(shortfalls)
		}

		groups := helpers.GroupByVendor(lines, locked)
		reference, err := s.codes("REF", codeLength)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reference")
		}
		checkoutGroup := &models.CheckoutGroup{Reference: reference, ClientID: clientID}

		created := make([]models.Order, 0, len(groups))
		for _, group := range groups {
			for _, line := range group.Lines {
				if err := s.guard.Reserve(tx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
			totals := helpers.ComputeVendorTotals(group.Lines, s.cfg.DeliveryFeeCents)
			number, err := s.codes("CMD", codeLength)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
			}
			created = append(created, models.Order{
				Number:           number,
				ClientID:         clientID,
				VendorID:         group.VendorID,
				Status:           enums.OrderStatusPending,
				Version:          1,
				Shipping:         input.Shipping,
				SubtotalCents:    totals.SubtotalCents,
				DeliveryFeeCents: totals.DeliveryFeeCents,
				TotalCents:       totals.TotalCents,
				ClientNote:       input.ClientNote,
				Lines:            group.Lines,
			})
			checkoutGroup.TotalCents += totals.TotalCents
		}

		if err := ordersRepo.CreateCheckoutGroup(ctx, checkoutGroup); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout group")
		}
		refs := make([]payloads.OrderRef, 0, len(created))
		for i := range created {
			order := &created[i]
			order.CheckoutGroupID = checkoutGroup.ID
			if err := ordersRepo.CreateOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			delta := analytics.Delta{
				RevenueCents: order.SubtotalCents,
				UnitsSold:    int64(order.Units()),
				OrderCount:   1,
			}
			if err := s.stats.Apply(tx, order.VendorID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor stats")
			}
			refs = append(refs, payloads.OrderRef{
				OrderID:    order.ID,
				VendorID:   order.VendorID,
				Number:     order.Number,
				TotalCents: order.TotalCents,
			})
		}

		actor := &outbox.ActorRef{UserID: clientID, Role: enums.UserRoleClient}
		if err := s.emitLowStock(ctx, tx, ids, locked, actor); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutGroup,
			AggregateID:   checkoutGroup.ID,
			Actor:         actor,
			Data: payloads.OrderCreatedEvent{
				CheckoutGroupID: checkoutGroup.ID,
				Reference:       checkoutGroup.Reference,
				ClientID:        clientID,
				Orders:          refs,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
		}

		result, err = ordersRepo.FindCheckoutGroup(ctx, checkoutGroup.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload checkout group")
		}
		return nil
	})
	return result, err
}

func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, before map[uuid.UUID]models.Product, actor *outbox.ActorRef) error {
	after, err := s.guard.Reload(tx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload products")
	}
	for _, product := range after {
		if !inventory.CrossedThreshold(before[product.ID].Stock, product) {
			continue
		}
		if err := s.outbox.Emit(ctx, tx, inventory.LowStockEvent(product, actor)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock low event")
		}
	}
	return nil
}

// conflictAfterRace reports the itemized shortfall once the retry also lost.
func (s *service) conflictAfterRace(ctx context.Context, lines []helpers.Line) error {
	var shortfalls []inventory.Shortfall
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.guard.Lock(tx, helpers.ProductIDs(lines))
		if err != nil {
			return err
		}
		shortfalls = s.guard.Shortfalls(helpers.Requested(lines), locked)
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock after race")
	}
	return conflictError(shortfalls)
}

func conflictError(shortfalls []inventory.Shortfall) error {
	if shortfalls == nil {
		shortfalls = []inventory.Shortfall{}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for one or more products").
		WithDetails(ConflictDetails{Conflicts: shortfalls})
}
