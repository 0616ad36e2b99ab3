package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/repo"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
)

// ProductReader loads live product rows for pricing and stock checks.
type ProductReader struct {
	repo.Base
}

func NewProductReader(db *gorm.DB) *ProductReader {
	return &ProductReader{Base: repo.NewBase(db)}
}

func (r *ProductReader) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
