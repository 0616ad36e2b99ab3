package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes the advisory cart. Nothing here reserves stock.
type Service interface {
	View(ctx context.Context, clientID uuid.UUID) (*View, error)
	Add(ctx context.Context, clientID, productID uuid.UUID, qty int) (*View, error)
	Update(ctx context.Context, clientID, productID uuid.UUID, qty int) (*View, error)
	Remove(ctx context.Context, clientID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, clientID uuid.UUID) error
	Lines(ctx context.Context, clientID uuid.UUID) ([]Item, error)
	Deduct(ctx context.Context, clientID uuid.UUID, committed map[uuid.UUID]int) error
}

// View is the cart priced from live product rows.
type View struct {
	Items      []LineView `json:"items"`
	ItemCount  int        `json:"item_count"`
	TotalCents int64      `json:"total_cents"`
	Total      string     `json:"total"`
}

// LineView is one priced cart line. Unavailable lines do not count toward the total.
type LineView struct {
	ProductID      uuid.UUID `json:"product_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	Name           string    `json:"name,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
	Stock          int       `json:"stock"`
	Available      bool      `json:"available"`
}

type service struct {
	store    Store
	products productLoader
	now      func() time.Time
}

func NewService(store Store, products productLoader) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{store: store, products: products, now: time.Now}, nil
}

func (s *service) View(ctx context.Context, clientID uuid.UUID) (*View, error) {
	cart, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart)
}

// Add sums into an existing line and caps the result at current stock.
func (s *service) Add(ctx context.Context, clientID, productID uuid.UUID, qty int) (*View, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds available stock").
			WithDetails(map[string]int{"requested": qty, "available": product.Stock})
	}

	cart, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if idx := cart.find(productID); idx >= 0 {
		cart.Items[idx].Quantity = min(cart.Items[idx].Quantity+qty, product.Stock)
	} else {
		cart.Items = append(cart.Items, Item{
			ProductID: productID,
			VendorID:  product.VendorID,
			Quantity:  qty,
			AddedAt:   s.now().UTC(),
		})
	}
	return s.saveAndPrice(ctx, clientID, cart)
}

// Update replaces the quantity of an existing line, capped at current stock.
func (s *service) Update(ctx context.Context, clientID, productID uuid.UUID, qty int) (*View, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	cart, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	idx := cart.find(productID)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
	}
	product, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, err
	}
	cart.Items[idx].Quantity = min(qty, product.Stock)
	if cart.Items[idx].Quantity < 1 {
		cart.remove(productID)
	}
	return s.saveAndPrice(ctx, clientID, cart)
}

func (s *service) Remove(ctx context.Context, clientID, productID uuid.UUID) (*View, error) {
	cart, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	cart.remove(productID)
	return s.saveAndPrice(ctx, clientID, cart)
}

func (s *service) Clear(ctx context.Context, clientID uuid.UUID) error {
	if err := s.store.Delete(ctx, clientID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Lines returns the raw cart lines for checkout.
func (s *service) Lines(ctx context.Context, clientID uuid.UUID) ([]Item, error) {
	cart, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

// Deduct subtracts committed quantities. Lines added after checkout read the cart survive.
func (s *service) Deduct(ctx context.Context, clientID uuid.UUID, committed map[uuid.UUID]int) error {
	if len(committed) == 0 {
		return nil
	}
	cart, err := s.load(ctx, clientID)
	if err != nil {
		return err
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		item.Quantity -= committed[item.ProductID]
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	cart.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, clientID, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (s *service) load(ctx context.Context, clientID uuid.UUID) (*Cart, error) {
	cart, err := s.store.Load(ctx, clientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) saveAndPrice(ctx context.Context, clientID uuid.UUID, cart *Cart) (*View, error) {
	cart.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, clientID, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return s.price(ctx, cart)
}

func (s *service) purchasable(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	rows, err := s.products.FindByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !rows[0].Status.Purchasable() || rows[0].Stock == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return &rows[0], nil
}

// price recomputes every line from live rows. Nothing is cached.
func (s *service) price(ctx context.Context, cart *Cart) (*View, error) {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	view := &View{Items: make([]LineView, 0, len(cart.Items))}
	for _, item := range cart.Items {
		line := LineView{ProductID: item.ProductID, VendorID: item.VendorID, Quantity: item.Quantity}
		if product, ok := byID[item.ProductID]; ok {
			line.Name = product.Name
			line.Stock = product.Stock
			line.UnitPriceCents = product.FinalPriceCents()
			line.Available = product.Status.Purchasable() && product.Stock >= item.Quantity
			if product.Status.Purchasable() {
				line.LineTotalCents = line.UnitPriceCents * int64(item.Quantity)
				view.TotalCents += line.LineTotalCents
			}
		}
		view.ItemCount += item.Quantity
		view.Items = append(view.Items, line)
	}
	view.Total = types.FormatCents(view.TotalCents)
	return view, nil
}
