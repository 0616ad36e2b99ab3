package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
)

const (
	modeSync  = "sync"
	modeAsync = "async"

	defaultBatchSize   = 500
	defaultConcurrency = 4
)

// ErrQueueFull is returned by Enqueue when every pool worker is busy.
var ErrQueueFull = errors.New("notification fan-out queue is full")

type receiptWriter interface {
	InsertReceipts(ctx context.Context, notificationID uuid.UUID, userIDs []uuid.UUID) (int, int, error)
}

// Fanout writes receipts in fixed-size batches, either inline or on a bounded
// background pool.
type Fanout struct {
	repo        receiptWriter
	pool        *ants.Pool
	metrics     *metrics.FanoutMetrics
	logg        *logger.Logger
	batchSize   int
	concurrency int
	wg          sync.WaitGroup
}

// NewFanout builds the fan-out engine. A zero PoolSize disables background
// delivery and Enqueue always reports ErrQueueFull.
func NewFanout(repo receiptWriter, cfg config.NotificationsConfig, m *metrics.FanoutMetrics, logg *logger.Logger) (*Fanout, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipt writer required")
	}
	f := &Fanout{
		repo:        repo,
		metrics:     m,
		logg:        logg,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.BatchConcurrent,
	}
	if f.batchSize <= 0 {
		f.batchSize = defaultBatchSize
	}
	if f.concurrency <= 0 {
		f.concurrency = defaultConcurrency
	}
	if cfg.PoolSize > 0 {
		pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("create fan-out pool: %w", err)
		}
		f.pool = pool
	}
	return f, nil
}

// Deliver writes receipts for every recipient and returns how many were
// created. A failing batch does not stop the others; all failures are joined.
func (f *Fanout) Deliver(ctx context.Context, notificationID uuid.UUID, recipients []uuid.UUID) (int, error) {
	return f.deliver(ctx, notificationID, recipients, modeSync)
}

func (f *Fanout) deliver(ctx context.Context, notificationID uuid.UUID, recipients []uuid.UUID, mode string) (int, error) {
	start := time.Now()
	var (
		written atomic.Int64
		skipped atomic.Int64
		mu      sync.Mutex
		errs    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for offset := 0; offset < len(recipients); offset += f.batchSize {
		batch := recipients[offset:min(offset+f.batchSize, len(recipients))]
		g.Go(func() error {
			n, s, err := f.repo.InsertReceipts(gctx, notificationID, batch)
			written.Add(int64(n))
			skipped.Add(int64(s))
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("receipt batch at %d: %w", offset, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	f.metrics.Observe(mode, int(written.Load()), int(skipped.Load()), time.Since(start))
	if f.logg != nil {
		logCtx := f.logg.WithFields(ctx, map[string]any{
			"notification_id": notificationID.String(),
			"mode":            mode,
			"written":         written.Load(),
			"skipped":         skipped.Load(),
		})
		if skipped.Load() > 0 {
			f.logg.Warn(logCtx, "skipped recipients that no longer exist")
		}
		if errs != nil {
			f.logg.Error(logCtx, "notification fan-out incomplete", errs)
		} else {
			f.logg.Info(logCtx, "notification fan-out complete")
		}
	}
	return int(written.Load()), errs
}

// Enqueue schedules delivery on the background pool. The request context's
// cancellation is dropped; its values (request id, actor) are kept for logs.
func (f *Fanout) Enqueue(ctx context.Context, notificationID uuid.UUID, recipients []uuid.UUID) error {
	if f.pool == nil {
		return ErrQueueFull
	}
	detached := context.WithoutCancel(ctx)
	f.wg.Add(1)
	err := f.pool.Submit(func() {
		defer f.wg.Done()
		_, _ = f.deliver(detached, notificationID, recipients, modeAsync)
	})
	if err != nil {
		f.wg.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			return ErrQueueFull
		}
		return err
	}
	return nil
}

// Wait blocks until queued deliveries finish.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// Close drains queued deliveries, then releases the pool.
func (f *Fanout) Close(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
	if f.pool == nil {
		return nil
	}
	return f.pool.ReleaseTimeout(timeout)
}
