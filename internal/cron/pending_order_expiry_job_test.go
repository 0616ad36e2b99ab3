package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/internal/orders"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

type fakePendingOrders struct {
	rows   []models.Order
	filter orders.ListFilter
	limit  int
}

func (f *fakePendingOrders) List(_ context.Context, filter orders.ListFilter, _ *pagination.Cursor, limit int) ([]models.Order, error) {
	f.filter = filter
	f.limit = limit
	return f.rows, nil
}

type fakeLedger struct {
	inputs []orders.TransitionInput
	fail   map[uuid.UUID]error
}

func (f *fakeLedger) Transition(_ context.Context, input orders.TransitionInput) (*orders.OrderDTO, error) {
	f.inputs = append(f.inputs, input)
	if err := f.fail[input.OrderID]; err != nil {
		return nil, err
	}
	return &orders.OrderDTO{ID: input.OrderID}, nil
}

func newExpiryJob(t *testing.T, lister *fakePendingOrders, ledger *fakeLedger, batch int) *pendingOrderExpiryJob {
	t.Helper()
	job, err := NewPendingOrderExpiryJob(PendingOrderExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Orders:    lister,
		Ledger:    ledger,
		TTL:       48 * time.Hour,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("NewPendingOrderExpiryJob: %v", err)
	}
	return job.(*pendingOrderExpiryJob)
}

func TestPendingOrderExpiryCancelsStaleOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first, second := uuid.New(), uuid.New()
	lister := &fakePendingOrders{rows: []models.Order{{ID: first, Number: "CMDAAAAAAAAAA"}, {ID: second, Number: "CMDBBBBBBBBBB"}}}
	ledger := &fakeLedger{}
	job := newExpiryJob(t, lister, ledger, 10)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lister.filter.Status == nil || *lister.filter.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending filter, got %+v", lister.filter.Status)
	}
	if want := now.Add(-48 * time.Hour); lister.filter.CreatedBefore == nil || !lister.filter.CreatedBefore.Equal(want) {
		t.Fatalf("expected cutoff %s, got %v", want, lister.filter.CreatedBefore)
	}
	if len(ledger.inputs) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(ledger.inputs))
	}
	for _, input := range ledger.inputs {
		if input.Target != enums.OrderStatusCancelled {
			t.Fatalf("expected cancel, got %s", input.Target)
		}
		if input.Actor.UserID != SystemActorID || input.Actor.Role != enums.UserRoleAdmin {
			t.Fatalf("unexpected actor %+v", input.Actor)
		}
	}
}

func TestPendingOrderExpiryRespectsBatchSize(t *testing.T) {
	rows := make([]models.Order, 4)
	for i := range rows {
		rows[i] = models.Order{ID: uuid.New()}
	}
	lister := &fakePendingOrders{rows: rows}
	ledger := &fakeLedger{}
	job := newExpiryJob(t, lister, ledger, 3)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lister.limit != 3 {
		t.Fatalf("expected limit 3, got %d", lister.limit)
	}
	if len(ledger.inputs) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(ledger.inputs))
	}
}

func TestPendingOrderExpiryContinuesPastFailures(t *testing.T) {
	bad, good := uuid.New(), uuid.New()
	lister := &fakePendingOrders{rows: []models.Order{{ID: bad, Number: "CMDBAD0000000"}, {ID: good}}}
	ledger := &fakeLedger{fail: map[uuid.UUID]error{bad: errors.New("conflict")}}
	job := newExpiryJob(t, lister, ledger, 10)

	err := job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "CMDBAD0000000") {
		t.Fatalf("expected error naming the failed order, got %v", err)
	}
	if len(ledger.inputs) != 2 {
		t.Fatalf("expected both orders attempted, got %d", len(ledger.inputs))
	}
}
