// Package dbtest opens throwaway SQLite databases carrying the full schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/migrate"
)

// Open returns a client over a private in-memory database. A single
// connection serialises transactions the way row locks would on Postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.ApplySQLite(context.Background(), conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db.FromGorm(conn)
}

// CreateUser inserts an active user with the given role.
func CreateUser(t testing.TB, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id.String()[:8]),
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     string(role),
		Role:         role,
		IsActive:     true,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateCategory inserts an active category.
func CreateCategory(t testing.TB, conn *gorm.DB, name string) models.Category {
	t.Helper()
	category := models.Category{
		Name:   name,
		Slug:   fmt.Sprintf("%s-%s", name, uuid.NewString()[:6]),
		Active: true,
	}
	if err := conn.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

// ProductOption customises CreateProduct.
type ProductOption func(*models.Product)

func WithPromo(cents int64) ProductOption {
	return func(p *models.Product) { p.PromoPriceCents = &cents }
}

func WithCategory(id uuid.UUID) ProductOption {
	return func(p *models.Product) { p.CategoryID = &id }
}

func WithThreshold(n int) ProductOption {
	return func(p *models.Product) { p.AlertThreshold = n }
}

func WithStatus(status enums.ProductStatus) ProductOption {
	return func(p *models.Product) { p.Status = status }
}

// CreateProduct inserts an active product owned by vendorID.
func CreateProduct(t testing.TB, conn *gorm.DB, vendorID uuid.UUID, priceCents int64, stock int, opts ...ProductOption) models.Product {
	t.Helper()
	product := models.Product{
		VendorID:       vendorID,
		Name:           "product-" + uuid.NewString()[:8],
		Description:    "test product",
		PriceCents:     priceCents,
		Stock:          stock,
		AlertThreshold: 0,
		Status:         enums.ProductStatusActive,
		RatingAverage:  decimal.Zero,
		Version:        1,
	}
	for _, opt := range opts {
		opt(&product)
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.Select("stock").Where("id = ?", productID).Take(&product).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return product.Stock
}

// Now is a fixed clock for deterministic timestamps.
func Now() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}
