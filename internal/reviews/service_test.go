package reviews

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

const body = "Great coffee, arrived fast."

type purchases map[uuid.UUID]bool

func (p purchases) HasDeliveredPurchase(_ context.Context, clientID, _ uuid.UUID) (bool, error) {
	return p[clientID], nil
}

type env struct {
	conn    *gorm.DB
	svc     Service
	product models.Product
	admin   Actor
}

func newEnv(t *testing.T, cfg config.ReviewsConfig, checker PurchaseChecker) *env {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	svc, err := NewService(NewRepository(conn), client, checker, outbox.NewService(outbox.NewRepository(conn), nil), cfg)
	require.NoError(t, err)
	vendor := dbtest.CreateUser(t, conn, enums.UserRoleVendor)
	admin := dbtest.CreateUser(t, conn, enums.UserRoleAdmin)
	return &env{
		conn:    conn,
		svc:     svc,
		product: dbtest.CreateProduct(t, conn, vendor.ID, 1000, 5),
		admin:   Actor{UserID: admin.ID, Role: enums.UserRoleAdmin},
	}
}

func (e *env) client(t *testing.T) Actor {
	t.Helper()
	u := dbtest.CreateUser(t, e.conn, enums.UserRoleClient)
	return Actor{UserID: u.ID, Role: u.Role}
}

func (e *env) review(t *testing.T, author Actor, rating int) *ReviewDTO {
	t.Helper()
	dto, err := e.svc.Create(context.Background(), author.UserID, CreateInput{ProductID: e.product.ID, Rating: rating, Body: body})
	require.NoError(t, err)
	return dto
}

func (e *env) rating(t *testing.T) *RatingSummary {
	t.Helper()
	summary, err := e.svc.AverageRating(context.Background(), e.product.ID)
	require.NoError(t, err)
	return summary
}

func reviewsConfig() config.ReviewsConfig {
	return config.ReviewsConfig{ReapproveOnEdit: true}
}

func TestCreateValidatesAndRejectsDuplicates(t *testing.T) {
	e := newEnv(t, reviewsConfig(), nil)
	ctx := context.Background()
	author := e.client(t)

	for _, input := range []CreateInput{
		{ProductID: e.product.ID, Rating: 0, Body: body},
		{ProductID: e.product.ID, Rating: 6, Body: body},
		{ProductID: e.product.ID, Rating: 4, Body: "  too short "},
	} {
		_, err := e.svc.Create(ctx, author.UserID, input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v", input)
	}

	_, err := e.svc.Create(ctx, author.UserID, CreateInput{ProductID: uuid.New(), Rating: 4, Body: body})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	created := e.review(t, author, 4)
	require.False(t, created.Approved)

	_, err = e.svc.Create(ctx, author.UserID, CreateInput{ProductID: e.product.ID, Rating: 2, Body: body})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestApprovalMaintainsAverage(t *testing.T) {
	e := newEnv(t, reviewsConfig(), nil)
	ctx := context.Background()

	ratings := []int{5, 4, 4}
	for _, r := range ratings {
		dto := e.review(t, e.client(t), r)
		_, err := e.svc.Approve(ctx, e.admin, dto.ID)
		require.NoError(t, err)
	}
	summary := e.rating(t)
	require.Equal(t, 3, summary.Count)
	require.Equal(t, "4.3", summary.Average.StringFixed(1))

	pending := e.review(t, e.client(t), 1)
	require.Equal(t, 3, e.rating(t).Count, "pending reviews stay out of the aggregate")

	_, err := e.svc.Approve(ctx, e.client(t), pending.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	approved, err := e.svc.Approve(ctx, e.admin, pending.ID)
	require.NoError(t, err)
	require.True(t, approved.Approved)
	_, err = e.svc.Approve(ctx, e.admin, pending.ID)
	require.NoError(t, err, "approve is idempotent")
	summary = e.rating(t)
	require.Equal(t, 4, summary.Count)
	require.Equal(t, "3.5", summary.Average.StringFixed(1))

	var events int64
	require.NoError(t, e.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReviewApproved).Count(&events).Error)
	require.EqualValues(t, 4, events)
}

func TestEditOfApprovedReviewReturnsToModeration(t *testing.T) {
	e := newEnv(t, reviewsConfig(), nil)
	ctx := context.Background()
	author := e.client(t)
	dto := e.review(t, author, 5)
	_, err := e.svc.Approve(ctx, e.admin, dto.ID)
	require.NoError(t, err)

	_, err = e.svc.Update(ctx, e.client(t), dto.ID, UpdateInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	rating := 2
	updated, err := e.svc.Update(ctx, author, dto.ID, UpdateInput{Rating: &rating})
	require.NoError(t, err)
	require.False(t, updated.Approved)
	require.Equal(t, 2, updated.Rating)
	summary := e.rating(t)
	require.Zero(t, summary.Count)
	require.True(t, summary.Average.IsZero())

	short := "meh"
	_, err = e.svc.Update(ctx, author, dto.ID, UpdateInput{Body: &short})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEditWithoutReapprovalAdjustsAverage(t *testing.T) {
	e := newEnv(t, config.ReviewsConfig{AutoApprove: true}, nil)
	ctx := context.Background()
	author := e.client(t)
	dto := e.review(t, author, 5)
	require.True(t, dto.Approved)
	e.review(t, e.client(t), 4)
	require.Equal(t, "4.5", e.rating(t).Average.StringFixed(1))

	rating := 3
	updated, err := e.svc.Update(ctx, author, dto.ID, UpdateInput{Rating: &rating})
	require.NoError(t, err)
	require.True(t, updated.Approved)
	summary := e.rating(t)
	require.Equal(t, 2, summary.Count)
	require.Equal(t, "3.5", summary.Average.StringFixed(1))
}

func TestDeleteRemovesApprovedRating(t *testing.T) {
	e := newEnv(t, config.ReviewsConfig{AutoApprove: true}, nil)
	ctx := context.Background()
	author := e.client(t)
	keep := e.review(t, e.client(t), 2)
	drop := e.review(t, author, 5)

	err := e.svc.Delete(ctx, e.client(t), drop.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, e.svc.Delete(ctx, author, drop.ID))
	summary := e.rating(t)
	require.Equal(t, 1, summary.Count)
	require.Equal(t, "2.0", summary.Average.StringFixed(1))

	require.NoError(t, e.svc.Delete(ctx, e.admin, keep.ID), "moderators may delete")
	require.Zero(t, e.rating(t).Count)

	err = e.svc.Delete(ctx, author, drop.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRequirePurchase(t *testing.T) {
	checker := purchases{}
	e := newEnv(t, config.ReviewsConfig{RequirePurchase: true}, checker)
	author := e.client(t)

	_, err := e.svc.Create(context.Background(), e.client(t).UserID, CreateInput{ProductID: e.product.ID, Rating: 4, Body: body})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	checker[author.UserID] = true
	e.review(t, author, 4)
}

func TestListingsRespectModeration(t *testing.T) {
	e := newEnv(t, reviewsConfig(), nil)
	ctx := context.Background()
	author := e.client(t)
	mine := e.review(t, author, 3)
	published := e.review(t, e.client(t), 5)
	_, err := e.svc.Approve(ctx, e.admin, published.ID)
	require.NoError(t, err)
	e.review(t, e.client(t), 1)

	public, err := e.svc.ListForProduct(ctx, e.product.ID, uuid.Nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, public.Reviews, 1)

	own, err := e.svc.ListForProduct(ctx, e.product.ID, author.UserID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, own.Reviews, 2)
	ids := []string{own.Reviews[0].ID.String(), own.Reviews[1].ID.String()}
	require.Contains(t, strings.Join(ids, ","), mine.ID.String())

	pending, err := e.svc.ListPending(ctx, e.admin, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, pending.Reviews, 1)
	require.NotEmpty(t, pending.NextCursor)

	_, err = e.svc.ListPending(ctx, author, pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAverageRounding(t *testing.T) {
	cases := []struct {
		sum, count int
		want       string
	}{
		{0, 0, "0.0"},
		{9, 2, "4.5"},
		{13, 3, "4.3"},
		{14, 3, "4.7"},
		{37, 8, "4.6"},
	}
	for _, tc := range cases {
		if got := Average(tc.sum, tc.count).StringFixed(1); got != tc.want {
			t.Fatalf("Average(%d, %d) = %s, want %s", tc.sum, tc.count, got, tc.want)
		}
	}
}
