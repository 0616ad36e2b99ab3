package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

// VendorSummary is the minimal vendor data used by product read paths.
type VendorSummary struct {
	VendorID    uuid.UUID
	CompanyName string
}

// ListFilter narrows a product listing.
type ListFilter struct {
	VendorID   *uuid.UUID
	CategoryID *uuid.UUID
	Statuses   []enums.ProductStatus
	Search     string
}

// Repository persists products. Stock is never written here; see inventory.Guard.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateFields writes the catalog columns of a vendor edit and bumps version.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, vendorID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND vendor_id = ?", id, vendorID).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "first_name", "last_name", "company_name").
		Where("id = ?", vendorID).Take(&user).Error
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if user.CompanyName != nil && *user.CompanyName != "" {
		name = *user.CompanyName
	}
	return &VendorSummary{VendorID: user.ID, CompanyName: name}, nil
}

// List returns a keyset page, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	var rows []models.Product
	err := query.Scopes(pagination.Keyset("", cursor, limit)).Find(&rows).Error
	return rows, err
}
