package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

type purgeRecorder struct {
	cutoffs []time.Time
	err     error
}

func (p *purgeRecorder) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return p.record(cutoff)
}

func (p *purgeRecorder) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return p.record(cutoff)
}

func (p *purgeRecorder) record(cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	if p.err != nil {
		return 0, p.err
	}
	return 3, nil
}

func retentionJobAt(t *testing.T, now time.Time, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	concrete := job.(*outboxRetentionJob)
	concrete.now = func() time.Time { return now }
	return concrete
}

func TestOutboxRetentionDefaults(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	published, dead := &purgeRecorder{}, &purgeRecorder{}
	job := retentionJobAt(t, now, OutboxRetentionJobParams{Published: published, DeadLetters: dead})

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []time.Time{now.AddDate(0, 0, -30)}, published.cutoffs)
	require.Equal(t, []time.Time{now.AddDate(0, 0, -90)}, dead.cutoffs)
}

func TestOutboxRetentionConfiguredDays(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	published := &purgeRecorder{}
	job := retentionJobAt(t, now, OutboxRetentionJobParams{Published: published, PublishedDays: 7})

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, []time.Time{time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)}, published.cutoffs)
	require.Len(t, job.sweeps, 1)
}

func TestOutboxRetentionKeepsSweepingAfterFailure(t *testing.T) {
	published := &purgeRecorder{err: errors.New("boom")}
	dead := &purgeRecorder{}
	job := retentionJobAt(t, time.Now(), OutboxRetentionJobParams{Published: published, DeadLetters: dead})

	err := job.Run(context.Background())
	require.ErrorContains(t, err, "purge outbox_events")
	require.Len(t, dead.cutoffs, 1)
}

func TestOutboxRetentionRequiresRepository(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	require.Error(t, err)
}
