package notifications

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

type harness struct {
	conn   *gorm.DB
	fanout *Fanout
	svc    Service
}

func newHarness(t *testing.T, cfg config.NotificationsConfig) *harness {
	t.Helper()
	conn := dbtest.Open(t).DB()
	repo := NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	fanout, err := NewFanout(repo, cfg, nil, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fanout.Close(0) })
	svc, err := NewService(repo, fanout, cfg, logg)
	require.NoError(t, err)
	return &harness{conn: conn, fanout: fanout, svc: svc}
}

func (h *harness) users(t *testing.T, role enums.UserRole, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, dbtest.CreateUser(t, h.conn, role).ID)
	}
	return ids
}

func broadcast(recipientType enums.RecipientType, targets ...uuid.UUID) BroadcastInput {
	return BroadcastInput{
		RecipientType: recipientType,
		TargetIDs:     targets,
		Type:          enums.NotificationTypeGeneral,
		Title:         "Maintenance",
		Body:          "The marketplace is read-only tonight.",
	}
}

func TestBroadcastByRoleIsSynchronousForSmallAudiences(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{BatchSize: 2, SyncLimit: 100})
	clients := h.users(t, enums.UserRoleClient, 5)
	h.users(t, enums.UserRoleVendor, 2)

	result, err := h.svc.Broadcast(context.Background(), broadcast(enums.RecipientClients))
	require.NoError(t, err)
	require.False(t, result.Queued)
	require.Equal(t, 5, result.RecipientCount)
	require.Equal(t, 5, result.ResolvedCount)

	var receipts []models.NotificationReceipt
	require.NoError(t, h.conn.Where("notification_id = ?", result.NotificationID).Find(&receipts).Error)
	got := map[uuid.UUID]bool{}
	for _, r := range receipts {
		got[r.UserID] = true
	}
	for _, id := range clients {
		require.True(t, got[id], "client %s missing a receipt", id)
	}
}

func TestBroadcastRejectsEmptyAudiences(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	ctx := context.Background()
	h.users(t, enums.UserRoleClient, 1)

	_, err := h.svc.Broadcast(ctx, broadcast(enums.RecipientSpecific))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "no recipients", pkgerrors.As(err).Message())

	_, err = h.svc.Broadcast(ctx, broadcast(enums.RecipientVendors))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "no vendors exist")

	_, err = h.svc.Broadcast(ctx, broadcast(enums.RecipientSpecific, uuid.New()))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "unknown ids resolve to nobody")

	var count int64
	require.NoError(t, h.conn.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestBroadcastSpecificSkipsInactiveTargets(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	ids := h.users(t, enums.UserRoleClient, 3)
	require.NoError(t, h.conn.Model(&models.User{}).Where("id = ?", ids[2]).Update("is_active", false).Error)

	result, err := h.svc.Broadcast(context.Background(), broadcast(enums.RecipientSpecific, ids[0], ids[1], ids[1], ids[2]))
	require.NoError(t, err)
	require.Equal(t, 2, result.RecipientCount)

	var stored models.Notification
	require.NoError(t, h.conn.Take(&stored, "id = ?", result.NotificationID).Error)
	require.Len(t, stored.TargetIDs, 3, "targets are kept as requested, deduplicated")
}

func TestBroadcastQueuesLargeAudiences(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{BatchSize: 2, SyncLimit: 2, PoolSize: 2})
	h.users(t, enums.UserRoleVendor, 5)
	ctx := context.Background()

	result, err := h.svc.Broadcast(ctx, broadcast(enums.RecipientAll))
	require.NoError(t, err)
	require.True(t, result.Queued)
	require.Equal(t, 5, result.ResolvedCount)
	require.Zero(t, result.RecipientCount)

	h.fanout.Wait()
	stats, err := h.svc.Stats(ctx, result.NotificationID)
	require.NoError(t, err)
	require.EqualValues(t, 5, stats.RecipientCount)
}

func TestBroadcastFallsBackInlineWithoutPool(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 1})
	h.users(t, enums.UserRoleClient, 3)

	result, err := h.svc.Broadcast(context.Background(), broadcast(enums.RecipientAll))
	require.NoError(t, err)
	require.False(t, result.Queued)
	require.Equal(t, 3, result.RecipientCount)
}

func TestReadTrackingAndStats(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	ctx := context.Background()
	ids := h.users(t, enums.UserRoleClient, 3)
	outsider := dbtest.CreateUser(t, h.conn, enums.UserRoleVendor)

	result, err := h.svc.Broadcast(ctx, broadcast(enums.RecipientClients))
	require.NoError(t, err)

	require.NoError(t, h.svc.MarkRead(ctx, ids[0], result.NotificationID))
	require.NoError(t, h.svc.MarkRead(ctx, ids[0], result.NotificationID), "mark read is idempotent")
	err = h.svc.MarkRead(ctx, outsider.ID, result.NotificationID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	stats, err := h.svc.Stats(ctx, result.NotificationID)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.RecipientCount)
	require.EqualValues(t, 1, stats.ReadCount)
	require.EqualValues(t, 2, stats.UnreadCount)
	require.Equal(t, "33.3", stats.ReadPercentage.String())
	require.Equal(t, stats.RecipientCount, stats.ReadCount+stats.UnreadCount)

	_, err = h.svc.Stats(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestToggleActiveHidesFromUnread(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	ctx := context.Background()
	client := h.users(t, enums.UserRoleClient, 1)[0]

	first, err := h.svc.Broadcast(ctx, broadcast(enums.RecipientClients))
	require.NoError(t, err)
	_, err = h.svc.Broadcast(ctx, broadcast(enums.RecipientAll))
	require.NoError(t, err)

	unread, err := h.svc.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	dto, err := h.svc.ToggleActive(ctx, first.NotificationID)
	require.NoError(t, err)
	require.False(t, dto.Active)

	unread, err = h.svc.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)

	history, err := h.svc.List(ctx, ListParams{UserID: client})
	require.NoError(t, err)
	require.Len(t, history.Items, 2, "inactive notifications stay in history")

	pending, err := h.svc.List(ctx, ListParams{UserID: client, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)

	stats, err := h.svc.Stats(ctx, first.NotificationID)
	require.NoError(t, err)
	require.False(t, stats.Active)
	require.EqualValues(t, 1, stats.RecipientCount)

	marked, err := h.svc.MarkAllRead(ctx, client)
	require.NoError(t, err)
	require.EqualValues(t, 1, marked)

	dto, err = h.svc.ToggleActive(ctx, first.NotificationID)
	require.NoError(t, err)
	require.True(t, dto.Active)
	unread, err = h.svc.UnreadCount(ctx, client)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread, "reactivated notification was never read")

	_, err = h.svc.ToggleActive(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginatesInbox(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	ctx := context.Background()
	client := h.users(t, enums.UserRoleClient, 1)[0]
	for i := 0; i < 3; i++ {
		_, err := h.svc.Broadcast(ctx, broadcast(enums.RecipientClients))
		require.NoError(t, err)
	}

	page, err := h.svc.List(ctx, ListParams{UserID: client, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := h.svc.List(ctx, ListParams{UserID: client, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.Cursor)

	_, err = h.svc.List(ctx, ListParams{UserID: client, Cursor: "bad"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNotifyValidatesContent(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	client := h.users(t, enums.UserRoleClient, 1)[0]

	_, err := h.svc.Notify(context.Background(), NotifyInput{Type: "bogus", Title: "x", Body: "y", Recipients: []uuid.UUID{client}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Notify(context.Background(), NotifyInput{Title: " ", Body: "y", Recipients: []uuid.UUID{client}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	written, err := h.svc.Notify(context.Background(), NotifyInput{Title: "Hi", Body: "Welcome", Recipients: []uuid.UUID{client, uuid.Nil}})
	require.NoError(t, err)
	require.Equal(t, 1, written)
}

// failingBatches fails the receipt batches whose call number is listed.
type failingBatches struct {
	Repository
	fail  map[int32]bool
	calls atomic.Int32
}

func (f *failingBatches) InsertReceipts(ctx context.Context, notificationID uuid.UUID, userIDs []uuid.UUID) (int, int, error) {
	if f.fail[f.calls.Add(1)] {
		return 0, 0, errors.New("connection reset")
	}
	return f.Repository.InsertReceipts(ctx, notificationID, userIDs)
}

func newFailingHarness(t *testing.T, cfg config.NotificationsConfig, fail ...int32) *harness {
	t.Helper()
	conn := dbtest.Open(t).DB()
	repo := &failingBatches{Repository: NewRepository(conn), fail: map[int32]bool{}}
	for _, n := range fail {
		repo.fail[n] = true
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	fanout, err := NewFanout(repo, cfg, nil, logg)
	require.NoError(t, err)
	svc, err := NewService(repo, fanout, cfg, logg)
	require.NoError(t, err)
	return &harness{conn: conn, fanout: fanout, svc: svc}
}

func TestBroadcastReportsPartialDelivery(t *testing.T) {
	h := newFailingHarness(t, config.NotificationsConfig{BatchSize: 3, BatchConcurrent: 1, SyncLimit: 100}, 1)
	ctx := context.Background()
	h.users(t, enums.UserRoleClient, 6)

	result, err := h.svc.Broadcast(ctx, broadcast(enums.RecipientClients))
	require.NoError(t, err)
	require.True(t, result.Incomplete)
	require.Equal(t, 3, result.RecipientCount)
	require.Equal(t, 6, result.ResolvedCount)

	stats, err := h.svc.Stats(ctx, result.NotificationID)
	require.NoError(t, err)
	require.EqualValues(t, result.RecipientCount, stats.RecipientCount)
}

func TestBroadcastWithNoReceiptsLeavesNothingBehind(t *testing.T) {
	h := newFailingHarness(t, config.NotificationsConfig{BatchSize: 3, BatchConcurrent: 1, SyncLimit: 100}, 1, 2)
	h.users(t, enums.UserRoleClient, 6)

	_, err := h.svc.Broadcast(context.Background(), broadcast(enums.RecipientClients))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var count int64
	require.NoError(t, h.conn.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestNotifyWithIDIsRepeatable(t *testing.T) {
	h := newHarness(t, config.NotificationsConfig{SyncLimit: 100})
	ctx := context.Background()
	clients := h.users(t, enums.UserRoleClient, 2)
	input := NotifyInput{ID: uuid.New(), Title: "Order shipped", Body: "Your parcel is on its way.", Recipients: clients[:1]}

	written, err := h.svc.Notify(ctx, input)
	require.NoError(t, err)
	require.Equal(t, 1, written)

	input.Recipients = clients
	written, err = h.svc.Notify(ctx, input)
	require.NoError(t, err)
	require.Equal(t, 1, written, "only the missing receipt is added")

	var notifications, receipts int64
	require.NoError(t, h.conn.Model(&models.Notification{}).Count(&notifications).Error)
	require.NoError(t, h.conn.Model(&models.NotificationReceipt{}).Where("notification_id = ?", input.ID).Count(&receipts).Error)
	require.EqualValues(t, 1, notifications)
	require.EqualValues(t, 2, receipts)
}
