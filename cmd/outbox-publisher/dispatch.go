package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/registry"
)

// delivery is what happened to one claimed row.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	err      error
}

// verdict decides how a delivery is settled.
type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, d := range s.deliver(ctx, events) {
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// deliver resolves and publishes rows concurrently, returning results in row order.
func (s *Service) deliver(ctx context.Context, events []models.OutboxEvent) []delivery {
	out := make([]delivery, len(events))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, event := range events {
		g.Go(func() error {
			d := delivery{event: event}
			d.resolved, d.err = s.registry.Resolve(event)
			if d.err == nil {
				d.err = s.publish(ctx, event, d.resolved)
			}
			out[i] = d
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) judge(d delivery) (verdict, enums.OutboxDLQErrorReason) {
	var permanent registry.NonRetryableError
	switch {
	case d.err == nil:
		return verdictPublished, ""
	case errors.As(d.err, &permanent):
		return verdictDeadLetter, enums.OutboxDLQReasonNonRetryable
	case d.event.AttemptCount+1 >= s.maxAttempts:
		return verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts
	default:
		return verdictRetry, ""
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	event := d.event
	logCtx := s.logg.WithFields(ctx, eventFields(event, d.resolved))
	eventType := string(event.EventType)

	v, reason := s.judge(d)
	switch v {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Inc(eventType, metrics.OutboxPublished)
		s.logg.Info(logCtx, "outbox event published")
	case verdictRetry:
		if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		s.metrics.Inc(eventType, metrics.OutboxRetry)
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"attempt_count": event.AttemptCount + 1,
			"error":         d.err.Error(),
		}), "outbox publish failed")
	case verdictDeadLetter:
		cause := d.err
		if reason == enums.OutboxDLQReasonMaxAttempts {
			cause = fmt.Errorf("max publish attempts reached: %w", d.err)
		}
		if err := s.deadLetter(tx, event, reason, cause); err != nil {
			return err
		}
		s.metrics.Inc(eventType, metrics.OutboxDLQ)
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"error_reason": reason,
			"error":        cause.Error(),
		}), "outbox event moved to dlq")
	}
	return nil
}

func (s *Service) deadLetter(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["topic"] = resolved.Descriptor.Topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
