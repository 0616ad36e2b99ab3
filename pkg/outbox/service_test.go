package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
)

func TestEmitStoresEnvelope(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	aggregateID := uuid.New()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductStockLow,
			AggregateType: enums.AggregateProduct,
			AggregateID:   aggregateID,
			Data:          payloads.ProductStockLowEvent{ProductID: aggregateID, Stock: 2, AlertThreshold: 5},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, rows, 1)
	require.Equal(t, aggregateID, rows[0].AggregateID)

	envelope, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, 1, envelope.Version)
	require.Equal(t, string(enums.EventProductStockLow), envelope.EventType)
	require.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.JSONEq(t, `{"product_id":"`+aggregateID.String()+`","vendor_id":"00000000-0000-0000-0000-000000000000","name":"","stock":2,"alert_threshold":5}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutGroup,
			AggregateID:   uuid.New(),
			Data:          payloads.OrderCreatedEvent{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitValidation(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Emit(ctx, nil, outbox.DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateCheckoutGroup}), outbox.ErrTxRequired)
	require.Error(t, svc.Emit(ctx, client.DB(), outbox.DomainEvent{EventType: "bogus", AggregateType: enums.AggregateOrder}))
}

func TestRepositoryLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	repo := outbox.NewRepository(client.DB())
	dlq := outbox.NewDLQRepository(client.DB())
	conn := client.DB()

	first := models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("publish timeout")))
	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("publish timeout")))
	remaining, err := repo.FetchUnpublishedForPublish(conn, 10, 2)
	require.NoError(t, err)
	require.Len(t, remaining, 1, "exhausted rows are no longer fetched")
	require.Equal(t, rows[1].ID, remaining[0].ID)

	require.NoError(t, repo.MarkPublishedTx(conn, remaining[0].ID))

	msg := "publish timeout"
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       rows[0].ID,
		EventType:     rows[0].EventType,
		AggregateType: rows[0].AggregateType,
		AggregateID:   rows[0].AggregateID,
		Payload:       rows[0].Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  2,
	}))
	require.Error(t, dlq.InsertTx(conn, models.OutboxDLQ{ErrorReason: "whatever"}))

	entry, err := dlq.FindByEventID(ctx, rows[0].ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	require.NoError(t, dlq.Requeue(ctx, rows[0].ID))
	again, err := repo.FetchUnpublishedForPublish(conn, 10, 2)
	require.NoError(t, err)
	require.Len(t, again, 1)
	require.Equal(t, rows[0].ID, again[0].ID)
	require.Zero(t, again[0].AttemptCount)
	gone, err := dlq.FindByEventID(ctx, rows[0].ID)
	require.NoError(t, err)
	require.Nil(t, gone)
	require.ErrorIs(t, dlq.Requeue(ctx, rows[0].ID), outbox.ErrNotInDLQ)
}

func TestRequeueRestoresPurgedRow(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	repo := outbox.NewRepository(client.DB())
	dlq := outbox.NewDLQRepository(client.DB())

	eventID := uuid.New()
	require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventReviewApproved,
		AggregateType: enums.AggregateReview,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		AttemptCount:  1,
	}))

	require.NoError(t, dlq.Requeue(ctx, eventID))
	rows, err := repo.FetchUnpublishedForPublish(client.DB(), 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, eventID, rows[0].ID)
	require.Equal(t, enums.EventReviewApproved, rows[0].EventType)
}

func TestDeleteFailedBeforeKeepsRecentDeadLetters(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	dlq := outbox.NewDLQRepository(client.DB())

	for range 2 {
		require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventReviewApproved,
			AggregateType: enums.AggregateReview,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{"version":1}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			AttemptCount:  1,
		}))
	}

	removed, err := dlq.DeleteFailedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = dlq.DeleteFailedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
}
