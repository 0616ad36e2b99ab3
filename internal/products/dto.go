package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

// ProductDTO is the product payload returned to clients and vendors.
type ProductDTO struct {
	ID              uuid.UUID           `json:"id"`
	VendorID        uuid.UUID           `json:"vendor_id"`
	CategoryID      *uuid.UUID          `json:"category_id,omitempty"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	SKU             *string             `json:"sku,omitempty"`
	PriceCents      int64               `json:"price_cents"`
	PromoPriceCents *int64              `json:"promo_price_cents,omitempty"`
	FinalPriceCents int64               `json:"final_price_cents"`
	FinalPrice      string              `json:"final_price"`
	Stock           int                 `json:"stock"`
	AlertThreshold  int                 `json:"alert_threshold"`
	LowStock        bool                `json:"low_stock"`
	Status          enums.ProductStatus `json:"status"`
	Featured        bool                `json:"featured"`
	SalesCount      int                 `json:"sales_count"`
	RatingAverage   decimal.Decimal     `json:"rating_average"`
	RatingCount     int                 `json:"rating_count"`
	Vendor          *VendorSummaryDTO   `json:"vendor,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// VendorSummaryDTO surfaces the selling vendor on product reads.
type VendorSummaryDTO struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
}

// ProductListResult is one page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// NewProductDTO builds a DTO from the persisted model and optional vendor summary.
func NewProductDTO(product *models.Product, summary *VendorSummary) *ProductDTO {
	final := product.FinalPriceCents()
	dto := &ProductDTO{
		ID:              product.ID,
		VendorID:        product.VendorID,
		CategoryID:      product.CategoryID,
		Name:            product.Name,
		Description:     product.Description,
		SKU:             product.SKU,
		PriceCents:      product.PriceCents,
		PromoPriceCents: product.PromoPriceCents,
		FinalPriceCents: final,
		FinalPrice:      types.FormatCents(final),
		Stock:           product.Stock,
		AlertThreshold:  product.AlertThreshold,
		LowStock:        product.LowStock(),
		Status:          product.Status,
		Featured:        product.Featured,
		SalesCount:      product.SalesCount,
		RatingAverage:   product.RatingAverage,
		RatingCount:     product.RatingCount,
		CreatedAt:       product.CreatedAt,
		UpdatedAt:       product.UpdatedAt,
	}
	if summary != nil {
		dto.Vendor = &VendorSummaryDTO{ID: summary.VendorID, CompanyName: summary.CompanyName}
	}
	return dto
}
