package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
)

// Service provides vendor dashboards built from vendor_stats and product counters.
type Service interface {
	Summary(ctx context.Context, vendorID uuid.UUID) (*Summary, error)
	TopProducts(ctx context.Context, vendorID uuid.UUID, limit int) ([]ProductStat, error)
	LowStock(ctx context.Context, vendorID uuid.UUID, limit int) ([]ProductStat, error)
}

// Summary is the vendor's headline numbers.
type Summary struct {
	VendorID        uuid.UUID `json:"vendor_id"`
	RevenueCents    int64     `json:"revenue_cents"`
	Revenue         string    `json:"revenue"`
	UnitsSold       int64     `json:"units_sold"`
	OrderCount      int64     `json:"order_count"`
	CancelledCount  int64     `json:"cancelled_count"`
	RefundedCount   int64     `json:"refunded_count"`
	PendingOrders   int64     `json:"pending_orders"`
	ProductCount    int64     `json:"product_count"`
	ActiveProducts  int64     `json:"active_products"`
	LowStockCount   int64     `json:"low_stock_count"`
	CancellationPct Percent   `json:"cancellation_percentage"`
}

// ProductStat is one row of a top-products or low-stock listing.
type ProductStat struct {
	ProductID      uuid.UUID           `json:"product_id"`
	Name           string              `json:"name"`
	SalesCount     int                 `json:"sales_count"`
	Stock          int                 `json:"stock"`
	AlertThreshold int                 `json:"alert_threshold"`
	Status         enums.ProductStatus `json:"status"`
	RatingAverage  decimal.Decimal     `json:"rating_average"`
}

type statsReader interface {
	VendorStats(ctx context.Context, vendorID uuid.UUID) (models.VendorStats, error)
	CountProducts(ctx context.Context, vendorID uuid.UUID, statuses ...enums.ProductStatus) (int64, error)
	CountLowStock(ctx context.Context, vendorID uuid.UUID) (int64, error)
	CountOrders(ctx context.Context, vendorID uuid.UUID, status enums.OrderStatus) (int64, error)
	TopProducts(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Product, error)
	LowStock(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Product, error)
}

type service struct {
	repo statsReader
}

func NewService(repo statsReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("analytics repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Summary(ctx context.Context, vendorID uuid.UUID) (*Summary, error) {
	stats, err := s.repo.VendorStats(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor stats")
	}
	products, err := s.repo.CountProducts(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	active, err := s.repo.CountProducts(ctx, vendorID, enums.ProductStatusActive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active products")
	}
	low, err := s.repo.CountLowStock(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count low stock")
	}
	pending, err := s.repo.CountOrders(ctx, vendorID, enums.OrderStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending orders")
	}

	return &Summary{
		VendorID:        vendorID,
		RevenueCents:    stats.RevenueCents,
		Revenue:         types.FormatCents(stats.RevenueCents),
		UnitsSold:       stats.UnitsSold,
		OrderCount:      stats.OrderCount,
		CancelledCount:  stats.CancelledCount,
		RefundedCount:   stats.RefundedCount,
		PendingOrders:   pending,
		ProductCount:    products,
		ActiveProducts:  active,
		LowStockCount:   low,
		CancellationPct: Percentage(stats.CancelledCount, stats.OrderCount),
	}, nil
}

func (s *service) TopProducts(ctx context.Context, vendorID uuid.UUID, limit int) ([]ProductStat, error) {
	rows, err := s.repo.TopProducts(ctx, vendorID, clampLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load top products")
	}
	return toStats(rows), nil
}

func (s *service) LowStock(ctx context.Context, vendorID uuid.UUID, limit int) ([]ProductStat, error) {
	rows, err := s.repo.LowStock(ctx, vendorID, clampLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load low stock products")
	}
	return toStats(rows), nil
}

// Percent is a ratio scaled to 100 and rounded to one decimal. It encodes as a
// JSON number with the decimal kept, e.g. 20.0.
type Percent struct {
	value decimal.Decimal
}

func (p Percent) String() string { return p.value.StringFixed(1) }

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// Percentage is part/whole as a Percent, 0.0 when whole is zero.
func Percentage(part, whole int64) Percent {
	if whole <= 0 {
		return Percent{value: decimal.Zero}
	}
	return Percent{value: decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Round(1)}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func toStats(rows []models.Product) []ProductStat {
	out := make([]ProductStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, ProductStat{
			ProductID:      row.ID,
			Name:           row.Name,
			SalesCount:     row.SalesCount,
			Stock:          row.Stock,
			AlertThreshold: row.AlertThreshold,
			Status:         row.Status,
			RatingAverage:  row.RatingAverage,
		})
	}
	return out
}
