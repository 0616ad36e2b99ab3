package categories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/repo"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	query := r.DB(ctx)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var rows []models.Category
	err := query.Order("position ASC").Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, category *models.Category) error {
	return r.DB(ctx).Create(category).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.DB(ctx).Take(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// BlockingProducts counts products still pointing at the category and returns a few of them.
func (r *Repository) BlockingProducts(ctx context.Context, id uuid.UUID, sample int) (int64, []models.Product, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Product{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var rows []models.Product
	err := r.DB(ctx).Select("id", "name").
		Where("category_id = ?", id).
		Order("name ASC").
		Limit(sample).
		Find(&rows).Error
	return count, rows, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Delete(&models.Category{}, "id = ?", id)
	return res.RowsAffected, res.Error
}
