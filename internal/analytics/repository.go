package analytics

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/repo"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
)

// Repository reads vendor aggregates. Writes go through StatsWriter.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// VendorStats returns a zero row when the vendor has never sold anything.
func (r *Repository) VendorStats(ctx context.Context, vendorID uuid.UUID) (models.VendorStats, error) {
	var row models.VendorStats
	err := r.DB(ctx).Where("vendor_id = ?", vendorID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.VendorStats{VendorID: vendorID}, nil
	}
	return row, err
}

func (r *Repository) CountProducts(ctx context.Context, vendorID uuid.UUID, statuses ...enums.ProductStatus) (int64, error) {
	query := r.DB(ctx).Model(&models.Product{}).Where("vendor_id = ?", vendorID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *Repository) CountLowStock(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Product{}).
		Where("vendor_id = ? AND stock <= alert_threshold", vendorID).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountOrders(ctx context.Context, vendorID uuid.UUID, status enums.OrderStatus) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Order{}).
		Where("vendor_id = ? AND status = ?", vendorID, status).
		Count(&count).Error
	return count, err
}

func (r *Repository) TopProducts(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).Where("vendor_id = ? AND sales_count > 0", vendorID).
		Order("sales_count DESC").Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// LowStock lists products at or under their alert threshold, emptiest first.
func (r *Repository) LowStock(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).Where("vendor_id = ? AND stock <= alert_threshold", vendorID).
		Order("stock ASC").Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
