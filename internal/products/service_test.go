package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/inventory"
	"github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, inventory.NewGuard(), emitter)
	require.NoError(t, err)
	return svc, client
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }

func countOutbox(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateProductValidatesPromo(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	vendor := dbtest.CreateUser(t, client.DB(), enums.UserRoleVendor)

	_, err := svc.CreateProduct(ctx, vendor.ID, CreateProductInput{Name: "Beans", PriceCents: 1000, PromoPriceCents: int64Ptr(1000)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	created, err := svc.CreateProduct(ctx, vendor.ID, CreateProductInput{
		Name:            "  Beans ",
		PriceCents:      1000,
		PromoPriceCents: int64Ptr(800),
		Stock:           0,
		Status:          enums.ProductStatusActive,
	})
	require.NoError(t, err)
	require.Equal(t, "Beans", created.Name)
	require.EqualValues(t, 800, created.FinalPriceCents)
	require.Equal(t, "8.00", created.FinalPrice)
	require.Equal(t, enums.ProductStatusOutOfStock, created.Status)

	_, err = svc.CreateProduct(ctx, vendor.ID, CreateProductInput{Name: "X", PriceCents: 100, Status: enums.ProductStatusOutOfStock})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	missing := uuid.New()
	_, err = svc.CreateProduct(ctx, vendor.ID, CreateProductInput{Name: "X", PriceCents: 100, CategoryID: &missing})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDuplicateSKUConflicts(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	vendor := dbtest.CreateUser(t, client.DB(), enums.UserRoleVendor)

	_, err := svc.CreateProduct(ctx, vendor.ID, CreateProductInput{Name: "A", PriceCents: 100, SKU: stringPtr("SKU-1")})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, vendor.ID, CreateProductInput{Name: "B", PriceCents: 100, SKU: stringPtr(" SKU-1 ")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestUpdateProductOwnershipAndPromo(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()
	vendor := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	other := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	product := dbtest.CreateProduct(t, conn, vendor.ID, 1000, 5, dbtest.WithPromo(900))

	_, err := svc.UpdateProduct(ctx, other.ID, product.ID, UpdateProductInput{Name: stringPtr("stolen")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.UpdateProduct(ctx, vendor.ID, product.ID, UpdateProductInput{PriceCents: int64Ptr(800)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "promo above new price must be rejected")

	updated, err := svc.UpdateProduct(ctx, vendor.ID, product.ID, UpdateProductInput{PriceCents: int64Ptr(800), ClearPromo: true})
	require.NoError(t, err)
	require.Nil(t, updated.PromoPriceCents)
	require.EqualValues(t, 800, updated.FinalPriceCents)
	require.Equal(t, 5, updated.Stock)
}

func TestSetStockEmitsLowStockOnCrossing(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()
	vendor := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	product := dbtest.CreateProduct(t, conn, vendor.ID, 1000, 20, dbtest.WithThreshold(5))

	dto, err := svc.SetStock(ctx, vendor.ID, product.ID, 8)
	require.NoError(t, err)
	require.Equal(t, 8, dto.Stock)
	require.EqualValues(t, 0, countOutbox(t, conn, enums.EventProductStockLow))

	dto, err = svc.SetStock(ctx, vendor.ID, product.ID, 3)
	require.NoError(t, err)
	require.True(t, dto.LowStock)
	require.EqualValues(t, 1, countOutbox(t, conn, enums.EventProductStockLow))

	dto, err = svc.SetStock(ctx, vendor.ID, product.ID, 0)
	require.NoError(t, err)
	require.Equal(t, enums.ProductStatusOutOfStock, dto.Status)
	require.EqualValues(t, 1, countOutbox(t, conn, enums.EventProductStockLow), "already below threshold")

	dto, err = svc.SetStock(ctx, vendor.ID, product.ID, 4)
	require.NoError(t, err)
	require.Equal(t, enums.ProductStatusActive, dto.Status)

	other := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	_, err = svc.SetStock(ctx, other.ID, product.ID, 50)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.Equal(t, 4, dbtest.Stock(t, conn, product.ID))
}

func TestPublicListingShowsActiveOnlyAndPaginates(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()
	vendor := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	category := dbtest.CreateCategory(t, conn, "tea")
	for i := 0; i < 3; i++ {
		dbtest.CreateProduct(t, conn, vendor.ID, 500, 3, dbtest.WithCategory(category.ID))
	}
	dbtest.CreateProduct(t, conn, vendor.ID, 500, 3, dbtest.WithCategory(category.ID), dbtest.WithStatus(enums.ProductStatusDraft))
	dbtest.CreateProduct(t, conn, vendor.ID, 500, 3)

	first, err := svc.ListProducts(ctx, ListProductsInput{CategoryID: &category.ID, Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Products, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListProducts(ctx, ListProductsInput{CategoryID: &category.ID, Pagination: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Products, 1)
	require.Empty(t, second.NextCursor)

	own, err := svc.ListVendorProducts(ctx, vendor.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, own.Products, 5)

	_, err = svc.ListProducts(ctx, ListProductsInput{Pagination: pagination.Params{Cursor: "%%%"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetProductHidesDraftsAndDeleteKeepsOrderLines(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()
	vendor := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	draft := dbtest.CreateProduct(t, conn, vendor.ID, 500, 3, dbtest.WithStatus(enums.ProductStatusDraft))
	live := dbtest.CreateProduct(t, conn, vendor.ID, 500, 3)

	_, err := svc.GetProduct(ctx, draft.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := svc.GetProduct(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Vendor)
	require.Equal(t, vendor.ID, got.Vendor.ID)

	require.NoError(t, svc.DeleteProduct(ctx, vendor.ID, live.ID))
	_, err = svc.GetProduct(ctx, live.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.True(t, pkgerrors.IsCode(svc.DeleteProduct(ctx, vendor.ID, live.ID), pkgerrors.CodeNotFound))
}
