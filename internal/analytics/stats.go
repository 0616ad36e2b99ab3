package analytics

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
)

// Delta is a signed change to a vendor's running totals.
type Delta struct {
	RevenueCents   int64
	UnitsSold      int64
	OrderCount     int64
	CancelledCount int64
	RefundedCount  int64
}

func (d Delta) zero() bool {
	return d == Delta{}
}

// StatsWriter applies deltas to vendor_stats inside the caller's transaction.
type StatsWriter struct{}

func NewStatsWriter() *StatsWriter {
	return &StatsWriter{}
}

// Apply upserts the vendor row and adds delta to every counter.
func (w *StatsWriter) Apply(tx *gorm.DB, vendorID uuid.UUID, delta Delta) error {
	if delta.zero() {
		return nil
	}
	row := models.VendorStats{
		VendorID:       vendorID,
		RevenueCents:   delta.RevenueCents,
		UnitsSold:      delta.UnitsSold,
		OrderCount:     delta.OrderCount,
		CancelledCount: delta.CancelledCount,
		RefundedCount:  delta.RefundedCount,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"revenue_cents":   gorm.Expr("vendor_stats.revenue_cents + ?", delta.RevenueCents),
			"units_sold":      gorm.Expr("vendor_stats.units_sold + ?", delta.UnitsSold),
			"order_count":     gorm.Expr("vendor_stats.order_count + ?", delta.OrderCount),
			"cancelled_count": gorm.Expr("vendor_stats.cancelled_count + ?", delta.CancelledCount),
			"refunded_count":  gorm.Expr("vendor_stats.refunded_count + ?", delta.RefundedCount),
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
}
