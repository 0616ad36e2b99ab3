package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fanjava-backend/internal/repo"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

const uniqueReviewConstraint = "reviews_client_product_key"

// ListFilter narrows a review listing.
type ListFilter struct {
	ProductID *uuid.UUID
	// Viewer also sees their own unapproved reviews when ApprovedOnly is set.
	Viewer       uuid.UUID
	ApprovedOnly bool
	PendingOnly  bool
}

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bound(tx)}
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).Select("id", "vendor_id", "name", "status", "rating_sum", "rating_count", "rating_average").
		Take(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.DB(ctx).Create(review).Error
}

// FindForUpdate loads the review holding its row lock until the transaction ends.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Take(&review, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) Save(ctx context.Context, review *models.Review) error {
	return r.DB(ctx).Save(review).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Delete(&models.Review{}, "id = ?", id).Error
}

// MarkApproved flips approved only if the review is still pending.
func (r *Repository) MarkApproved(ctx context.Context, review *models.Review) (bool, error) {
	res := r.DB(ctx).Model(&models.Review{}).
		Where("id = ? AND approved = ?", review.ID, false).
		Updates(map[string]any{
			"approved":    true,
			"approved_at": review.ApprovedAt,
			"approved_by": review.ApprovedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyRating moves the product's rating counters and recomputes the rounded
// average from the updated row.
func (r *Repository) ApplyRating(ctx context.Context, productID uuid.UUID, sumDelta, countDelta int) (*models.Product, error) {
	if sumDelta == 0 && countDelta == 0 {
		return r.FindProduct(ctx, productID)
	}
	err := r.DB(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"rating_sum":   gorm.Expr("rating_sum + ?", sumDelta),
			"rating_count": gorm.Expr("rating_count + ?", countDelta),
		}).Error
	if err != nil {
		return nil, err
	}
	product, err := r.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.RatingAverage = Average(product.RatingSum, product.RatingCount)
	err = r.DB(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("rating_average", product.RatingAverage).Error
	return product, err
}

func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	query := r.DB(ctx).Model(&models.Review{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	switch {
	case filter.PendingOnly:
		query = query.Where("approved = ?", false)
	case filter.ApprovedOnly && filter.Viewer != uuid.Nil:
		query = query.Where("(approved = ? OR client_id = ?)", true, filter.Viewer)
	case filter.ApprovedOnly:
		query = query.Where("approved = ?", true)
	}
	var rows []models.Review
	err := query.Scopes(pagination.Keyset("", cursor, limit)).Find(&rows).Error
	return rows, err
}
