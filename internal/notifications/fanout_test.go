package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
)

type stubWriter struct {
	mu      sync.Mutex
	batches [][]uuid.UUID
	failOn  uuid.UUID
}

func (s *stubWriter) InsertReceipts(_ context.Context, _ uuid.UUID, ids []uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, ids)
	for _, id := range ids {
		if id == s.failOn {
			return 0, 0, errors.New("insert failed")
		}
	}
	return len(ids) - 1, 1, nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matches(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(metric *dto.Metric, label, value string) bool {
	if label == "" {
		return true
	}
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == label && pair.GetValue() == value {
			return true
		}
	}
	return false
}

func TestDeliverBatchesAndJoinsFailures(t *testing.T) {
	ids := make([]uuid.UUID, 7)
	for i := range ids {
		ids[i] = uuid.New()
	}
	writer := &stubWriter{failOn: ids[3]}
	reg := prometheus.NewRegistry()
	fanout, err := NewFanout(writer, config.NotificationsConfig{BatchSize: 3, BatchConcurrent: 2}, metrics.NewFanoutMetrics(reg), nil)
	require.NoError(t, err)

	written, err := fanout.Deliver(context.Background(), uuid.New(), ids)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 1)
	require.Len(t, writer.batches, 3, "a failed batch does not stop the rest")
	require.Equal(t, 2, written)
	require.EqualValues(t, 2, counterValue(t, reg, "fanjava_notifications_receipts_total", "mode", "sync"))
	require.EqualValues(t, 2, counterValue(t, reg, "fanjava_notifications_skipped_recipients_total", "", ""))
}

func TestEnqueueWithoutPoolReportsFull(t *testing.T) {
	fanout, err := NewFanout(&stubWriter{}, config.NotificationsConfig{}, nil, nil)
	require.NoError(t, err)
	err = fanout.Enqueue(context.Background(), uuid.New(), []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestEnqueueDeliversInBackground(t *testing.T) {
	writer := &stubWriter{}
	fanout, err := NewFanout(writer, config.NotificationsConfig{BatchSize: 10, PoolSize: 1}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fanout.Close(0) })

	require.NoError(t, fanout.Enqueue(context.Background(), uuid.New(), []uuid.UUID{uuid.New(), uuid.New()}))
	fanout.Wait()
	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.batches, 1)
}
