package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

// Product is a vendor listing. Stock, Version and the sales/rating counters
// are only written through dedicated conditional updates.
type Product struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	CategoryID      *uuid.UUID          `gorm:"column:category_id;type:uuid;index"`
	Name            string              `gorm:"column:name;not null"`
	Description     string              `gorm:"column:description;not null"`
	SKU             *string             `gorm:"column:sku;uniqueIndex"`
	PriceCents      int64               `gorm:"column:price_cents;not null"`
	PromoPriceCents *int64              `gorm:"column:promo_price_cents"`
	Stock           int                 `gorm:"column:stock;not null"`
	AlertThreshold  int                 `gorm:"column:alert_threshold;not null"`
	Status          enums.ProductStatus `gorm:"column:status;type:text;not null"`
	Featured        bool                `gorm:"column:featured;not null"`
	SalesCount      int                 `gorm:"column:sales_count;not null"`
	RatingSum       int                 `gorm:"column:rating_sum;not null"`
	RatingCount     int                 `gorm:"column:rating_count;not null"`
	RatingAverage   decimal.Decimal     `gorm:"column:rating_average;type:numeric(2,1);not null"`
	Version         int                 `gorm:"column:version;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// FinalPriceCents is the price a buyer pays right now.
func (p Product) FinalPriceCents() int64 {
	return types.FinalPriceCents(p.PriceCents, p.PromoPriceCents)
}

// LowStock reports whether stock sits at or under the vendor's alert threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.AlertThreshold
}
