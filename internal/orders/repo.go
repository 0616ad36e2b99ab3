package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateCheckoutGroup(ctx context.Context, group *models.CheckoutGroup) error {
	return r.db.WithContext(ctx).Omit("Orders").Create(group).Error
}

// CreateOrder inserts the order together with its lines.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindCheckoutGroup(ctx context.Context, id uuid.UUID) (*models.CheckoutGroup, error) {
	var group models.CheckoutGroup
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("vendor_id ASC") }).
		Preload("Orders.Lines", func(db *gorm.DB) *gorm.DB { return db.Order("product_id ASC") }).
		Take(&group, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("product_id ASC") }).
		Take(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CompareAndSetStatus applies updates only if the row still holds (from, version).
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, version int, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND version = ?", id, from, version).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkRestocked flips the one-shot restock marker. False means it was already set.
func (r *repository) MarkRestocked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND restocked = ?", id, false).
		Updates(map[string]any{"restocked": true, "restocked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	var rows []models.Order
	err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("product_id ASC") }).
		Scopes(pagination.Keyset("", cursor, limit)).
		Find(&rows).Error
	return rows, err
}

// HasDeliveredPurchase reports whether the client received an order containing the product.
func (r *repository) HasDeliveredPurchase(ctx context.Context, clientID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderLine{}).
		Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("orders.client_id = ? AND orders.status = ? AND order_lines.product_id = ?",
			clientID, enums.OrderStatusDelivered, productID).
		Count(&count).Error
	return count > 0, err
}
