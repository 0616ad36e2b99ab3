package categories

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
)

const blockingSampleSize = 5

type CreateRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description,omitempty"`
	Position    int     `json:"position" validate:"gte=0"`
}

type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Position    int       `json:"position"`
	Active      bool      `json:"active"`
}

// BlockingProduct identifies a product that prevents a category delete.
type BlockingProduct struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DeleteBlocked is returned as error details when products still reference the category.
type DeleteBlocked struct {
	BlockingProductCount int64             `json:"blocking_product_count"`
	BlockingProducts     []BlockingProduct `json:"blocking_products"`
}

type repository interface {
	List(ctx context.Context, includeInactive bool) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	BlockingProducts(ctx context.Context, id uuid.UUID, sample int) (int64, []models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type Service struct {
	repo repository
}

func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("category repository is required")
	}
	return &Service{repo: repo}, nil
}

func (s *Service) List(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*CategoryDTO, error) {
	name := strings.TrimSpace(req.Name)
	slug := Slugify(name)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must contain letters or digits")
	}
	category := models.Category{
		Name:        name,
		Slug:        slug,
		Description: req.Description,
		Position:    req.Position,
		Active:      true,
	}
	if err := s.repo.Create(ctx, &category); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	dto := toDTO(category)
	return &dto, nil
}

// Delete refuses while any product references the category.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	count, sample, err := s.repo.BlockingProducts(ctx, id, blockingSampleSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category products")
	}
	if count > 0 {
		return blockedError(count, sample)
	}

	if _, err := s.repo.Delete(ctx, id); err != nil {
		// a product created between the count and the delete trips the FK
		if dbpkg.IsForeignKeyViolation(err) {
			count, sample, _ = s.repo.BlockingProducts(ctx, id, blockingSampleSize)
			return blockedError(count, sample)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func blockedError(count int64, sample []models.Product) error {
	details := DeleteBlocked{BlockingProductCount: count, BlockingProducts: make([]BlockingProduct, 0, len(sample))}
	for _, p := range sample {
		details.BlockingProducts = append(details.BlockingProducts, BlockingProduct{ID: p.ID, Name: p.Name})
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "category still has products").WithDetails(details)
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

func toDTO(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Position:    c.Position,
		Active:      c.Active,
	}
}
