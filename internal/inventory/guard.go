// Package inventory is the only writer of product stock.
package inventory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
)

// ErrInsufficientStock means a conditional decrement matched no row.
var ErrInsufficientStock = errors.New("insufficient stock")

// Shortfall reports one product that cannot cover the requested quantity.
type Shortfall struct {
	ProductID uuid.UUID `json:"product"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Guard mutates stock through conditional updates. Every method expects the
// caller's transaction.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Lock loads the products with row locks, in id order so concurrent checkouts
// acquire locks in the same sequence.
func (g *Guard) Lock(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	var rows []models.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Shortfalls compares requested quantities against locked rows. Missing or
// unpurchasable products are reported with zero available.
func (g *Guard) Shortfalls(requested map[uuid.UUID]int, locked map[uuid.UUID]models.Product) []Shortfall {
	var out []Shortfall
	for id, qty := range requested {
		product, ok := locked[id]
		available := 0
		if ok && product.Status.Purchasable() {
			available = product.Stock
		}
		if qty > available {
			out = append(out, Shortfall{ProductID: id, Requested: qty, Available: available})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out
}

// Reserve decrements stock by qty only if enough remains, bumps sales_count and
// flips an emptied active product to out_of_stock.
func (g *Guard) Reserve(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive")
	}
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]any{
			"stock":       gorm.Expr("stock - ?", qty),
			"sales_count": gorm.Expr("sales_count + ?", qty),
			"version":     gorm.Expr("version + 1"),
			"status": gorm.Expr("CASE WHEN stock - ? <= 0 AND status = ? THEN ? ELSE status END",
				qty, enums.ProductStatusActive, enums.ProductStatusOutOfStock),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Restock returns qty units and reverses the sales counted by Reserve.
func (g *Guard) Restock(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":       gorm.Expr("stock + ?", qty),
			"sales_count": gorm.Expr("CASE WHEN sales_count >= ? THEN sales_count - ? ELSE 0 END", qty, qty),
			"version":     gorm.Expr("version + 1"),
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				enums.ProductStatusOutOfStock, enums.ProductStatusActive),
		}).Error
}

// SetStock overwrites the counter for a vendor edit and keeps status in step.
func (g *Guard) SetStock(tx *gorm.DB, productID uuid.UUID, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("stock cannot be negative")
	}
	res := tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":   stock,
			"version": gorm.Expr("version + 1"),
			"status": gorm.Expr("CASE WHEN ? = 0 AND status = ? THEN ? WHEN ? > 0 AND status = ? THEN ? ELSE status END",
				stock, enums.ProductStatusActive, enums.ProductStatusOutOfStock,
				stock, enums.ProductStatusOutOfStock, enums.ProductStatusActive),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var product models.Product
	if err := tx.Where("id = ?", productID).Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Reload returns current rows for ids after in-transaction updates.
func (g *Guard) Reload(tx *gorm.DB, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := tx.Where("id IN ?", ids).Order("id ASC").Find(&rows).Error
	return rows, err
}
