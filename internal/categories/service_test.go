package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fanjava-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
)

func TestDeleteBlockedWhileProductsReferenceCategory(t *testing.T) {
	conn := dbtest.Open(t).DB()
	ctx := context.Background()
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	vendor := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	category := dbtest.CreateCategory(t, conn, "coffee")
	for i := 0; i < 7; i++ {
		dbtest.CreateProduct(t, conn, vendor.ID, 500, 1, dbtest.WithCategory(category.ID))
	}

	err = svc.Delete(ctx, category.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(DeleteBlocked)
	require.True(t, ok)
	require.EqualValues(t, 7, details.BlockingProductCount)
	require.Len(t, details.BlockingProducts, blockingSampleSize)

	var stillThere int64
	require.NoError(t, conn.Model(&models.Category{}).Where("id = ?", category.ID).Count(&stillThere).Error)
	require.EqualValues(t, 1, stillThere)

	require.NoError(t, conn.Where("category_id = ?", category.ID).Delete(&models.Product{}).Error)
	require.NoError(t, svc.Delete(ctx, category.ID))
	require.True(t, pkgerrors.IsCode(svc.Delete(ctx, category.ID), pkgerrors.CodeNotFound))
}

func TestCreateAndListCategories(t *testing.T) {
	conn := dbtest.Open(t).DB()
	ctx := context.Background()
	svc, _ := NewService(NewRepository(conn))

	created, err := svc.Create(ctx, CreateRequest{Name: "Café & Thé  Bio", Position: 2})
	require.NoError(t, err)
	require.Equal(t, "café-thé-bio", created.Slug)

	_, err = svc.Create(ctx, CreateRequest{Name: "café thé bio"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Create(ctx, CreateRequest{Name: "!!!"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotEqual(t, uuid.Nil, list[0].ID)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"  Robusta Beans ": "robusta-beans",
		"A--B":             "a-b",
		"":                 "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}
