package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorStats holds running totals per vendor, written in the same
// transaction as the order change that moves them.
type VendorStats struct {
	VendorID       uuid.UUID `gorm:"column:vendor_id;type:uuid;primaryKey"`
	RevenueCents   int64     `gorm:"column:revenue_cents;not null"`
	UnitsSold      int64     `gorm:"column:units_sold;not null"`
	OrderCount     int64     `gorm:"column:order_count;not null"`
	CancelledCount int64     `gorm:"column:cancelled_count;not null"`
	RefundedCount  int64     `gorm:"column:refunded_count;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (VendorStats) TableName() string {
	return "vendor_stats"
}
