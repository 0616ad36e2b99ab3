package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

const (
	defaultPublishedRetention  = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
)

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the outbox cleanup.
// Day counts of zero or less fall back to 30 for published rows and 90 for dead letters.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	Published     publishedPurger
	DeadLetters   deadLetterPurger
	PublishedDays int
	DLQDays       int
}

type retentionSweep struct {
	table  string
	keep   time.Duration
	delete func(context.Context, time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg   *logger.Logger
	sweeps []retentionSweep
	now    func() time.Time
}

// NewOutboxRetentionJob removes published outbox rows and, when a DLQ purger is
// given, dead letters past their retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Published == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	sweeps := []retentionSweep{{
		table:  "outbox_events",
		keep:   days(params.PublishedDays, defaultPublishedRetention),
		delete: params.Published.DeletePublishedBefore,
	}}
	if params.DeadLetters != nil {
		sweeps = append(sweeps, retentionSweep{
			table:  "outbox_dlq",
			keep:   days(params.DLQDays, defaultDeadLetterRetention),
			delete: params.DeadLetters.DeleteFailedBefore,
		})
	}
	return &outboxRetentionJob{logg: params.Logger, sweeps: sweeps, now: time.Now}, nil
}

func days(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * 24 * time.Hour
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run executes every sweep even if an earlier one fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	for _, sweep := range j.sweeps {
		cutoff := now.Add(-sweep.keep)
		removed, err := sweep.delete(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge %s: %w", sweep.table, err))
			continue
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"table":   sweep.table,
			"cutoff":  cutoff,
			"removed": removed,
		}), "retention sweep done")
	}
	return errs
}
