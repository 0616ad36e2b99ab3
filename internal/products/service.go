package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/inventory"
	"github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

// Service exposes the public catalog and vendor product management.
type Service interface {
	CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, vendorID, productID uuid.UUID) error
	SetStock(ctx context.Context, vendorID, productID uuid.UUID, stock int) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListVendorProducts(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ProductListResult, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID      *uuid.UUID
	Name            string
	Description     string
	SKU             *string
	PriceCents      int64
	PromoPriceCents *int64
	Stock           int
	AlertThreshold  int
	Status          enums.ProductStatus
	Featured        bool
}

// UpdateProductInput holds optional mutation values. Stock is changed through SetStock only.
type UpdateProductInput struct {
	CategoryID      *uuid.UUID
	ClearCategory   bool
	Name            *string
	Description     *string
	SKU             *string
	PriceCents      *int64
	PromoPriceCents *int64
	ClearPromo      bool
	AlertThreshold  *int
	Status          *enums.ProductStatus
	Featured        *bool
}

// ListProductsInput filters the public catalog.
type ListProductsInput struct {
	CategoryID *uuid.UUID
	VendorID   *uuid.UUID
	Search     string
	Pagination pagination.Params
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	guard    *inventory.Guard
	emitter  outbox.Emitter
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, guard *inventory.Guard, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if guard == nil {
		return nil, fmt.Errorf("inventory guard required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, dbClient: dbClient, guard: guard, emitter: emitter}, nil
}

func (s *service) CreateProduct(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	status := input.Status
	if status == "" {
		status = enums.ProductStatusDraft
	}
	if err := validateVendorStatus(status); err != nil {
		return nil, err
	}
	if err := validatePricing(input.PriceCents, input.PromoPriceCents); err != nil {
		return nil, err
	}
	if input.Stock < 0 || input.AlertThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock and alert_threshold must be non-negative")
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}
	if status == enums.ProductStatusActive && input.Stock == 0 {
		status = enums.ProductStatusOutOfStock
	}

	product := &models.Product{
		VendorID:        vendorID,
		CategoryID:      input.CategoryID,
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		SKU:             trimmedOrNil(input.SKU),
		PriceCents:      input.PriceCents,
		PromoPriceCents: input.PromoPriceCents,
		Stock:           input.Stock,
		AlertThreshold:  input.AlertThreshold,
		Status:          status,
		Featured:        input.Featured,
		RatingAverage:   decimal.Zero,
		Version:         1,
	}
	if product.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, translateWriteError(err, "db: insert product")
	}
	return NewProductDTO(product, nil), nil
}

func (s *service) UpdateProduct(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	current, err := s.ownedProduct(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	price := current.PriceCents
	promo := current.PromoPriceCents
	if input.PriceCents != nil {
		price = *input.PriceCents
		fields["price_cents"] = price
	}
	if input.ClearPromo {
		promo = nil
		fields["promo_price_cents"] = nil
	} else if input.PromoPriceCents != nil {
		promo = input.PromoPriceCents
		fields["promo_price_cents"] = *promo
	}
	if err := validatePricing(price, promo); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.SKU != nil {
		fields["sku"] = trimmedOrNil(input.SKU)
	}
	if input.ClearCategory {
		fields["category_id"] = nil
	} else if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		fields["category_id"] = *input.CategoryID
	}
	if input.AlertThreshold != nil {
		if *input.AlertThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert_threshold must be non-negative")
		}
		fields["alert_threshold"] = *input.AlertThreshold
	}
	if input.Featured != nil {
		fields["featured"] = *input.Featured
	}
	if input.Status != nil {
		if err := validateVendorStatus(*input.Status); err != nil {
			return nil, err
		}
		status := *input.Status
		if status == enums.ProductStatusActive && current.Stock == 0 {
			status = enums.ProductStatusOutOfStock
		}
		fields["status"] = status
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, productID, fields); err != nil {
			return nil, translateWriteError(err, "db: update product")
		}
	}
	updated, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload product")
	}
	return NewProductDTO(updated, nil), nil
}

// DeleteProduct removes the listing. Order lines keep their snapshots.
func (s *service) DeleteProduct(ctx context.Context, vendorID, productID uuid.UUID) error {
	if _, err := s.ownedProduct(ctx, vendorID, productID); err != nil {
		return err
	}
	if _, err := s.repo.Delete(ctx, vendorID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	return nil
}

// SetStock overwrites the stock counter through the inventory guard and emits
// product_stock_low when the new value crosses the alert threshold.
func (s *service) SetStock(ctx context.Context, vendorID, productID uuid.UUID, stock int) (*ProductDTO, error) {
	if stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}

	var updated *models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.guard.Lock(tx, []uuid.UUID{productID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock product")
		}
		before, ok := locked[productID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if before.VendorID != vendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
		}

		updated, err = s.guard.SetStock(tx, productID, stock)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: set stock")
		}
		if inventory.CrossedThreshold(before.Stock, *updated) {
			actor := &outbox.ActorRef{UserID: vendorID, Role: enums.UserRoleVendor}
			if err := s.emitter.Emit(ctx, tx, inventory.LowStockEvent(*updated, actor)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock low event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewProductDTO(updated, nil), nil
}

// GetProduct returns a publicly visible product with its vendor summary.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if product.Status != enums.ProductStatusActive && product.Status != enums.ProductStatusOutOfStock {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	summary, err := s.repo.VendorSummary(ctx, product.VendorID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load vendor summary")
	}
	return NewProductDTO(product, summary), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	filter := ListFilter{
		VendorID:   input.VendorID,
		CategoryID: input.CategoryID,
		Statuses:   []enums.ProductStatus{enums.ProductStatusActive},
		Search:     input.Search,
	}
	return s.list(ctx, filter, input.Pagination)
}

// ListVendorProducts returns every product of the vendor regardless of status.
func (s *service) ListVendorProducts(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ProductListResult, error) {
	return s.list(ctx, ListFilter{VendorID: &vendorID}, params)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i], nil))
	}
	return &ProductListResult{Products: out, NextCursor: next}, nil
}

func (s *service) ownedProduct(ctx context.Context, vendorID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if product.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
	}
	return product, nil
}

func (s *service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := s.repo.CategoryExists(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "category not found")
	}
	return nil
}

func validatePricing(price int64, promo *int64) error {
	if price <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if promo != nil && (*promo < 0 || *promo >= price) {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo_price must be lower than price")
	}
	return nil
}

// Vendors pick draft, active or inactive; out_of_stock follows the stock counter.
func validateVendorStatus(status enums.ProductStatus) error {
	switch status {
	case enums.ProductStatusDraft, enums.ProductStatusActive, enums.ProductStatusInactive:
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %q cannot be set directly", status))
}

func translateWriteError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "sku already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
